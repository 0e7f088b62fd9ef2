package service

import (
	"context"

	"p2p-exchange/internal/core/domain"
	"p2p-exchange/internal/core/ports"
	"p2p-exchange/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const maxTradeHistory = 200

// accountService implements ports.AccountService.
type accountService struct {
	ledger    ports.WalletLedger
	tradeRepo ports.TradeRepository
}

// NewAccountService creates a new account service.
func NewAccountService(ledger ports.WalletLedger, tradeRepo ports.TradeRepository) ports.AccountService {
	return &accountService{
		ledger:    ledger,
		tradeRepo: tradeRepo,
	}
}

// Available returns the user's spendable balance for one currency and wallet type.
func (s *accountService) Available(ctx context.Context, userID uuid.UUID, currency string, walletType domain.WalletType) (decimal.Decimal, error) {
	return s.ledger.Available(ctx, userID, currency, walletType)
}

// Wallets returns every wallet owned by the user.
func (s *accountService) Wallets(ctx context.Context, userID uuid.UUID) ([]domain.Wallet, error) {
	return s.ledger.Wallets(ctx, userID)
}

// Trades returns the user's most recent trades as buyer or seller.
func (s *accountService) Trades(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Trade, error) {
	if limit < 1 || limit > maxTradeHistory {
		limit = maxTradeHistory
	}

	trades, err := s.tradeRepo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	return trades, nil
}

// Trade returns one trade the user took part in.
func (s *accountService) Trade(ctx context.Context, tradeID, userID uuid.UUID) (*domain.Trade, error) {
	trade, err := s.tradeRepo.GetByID(ctx, tradeID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if trade == nil || (trade.BuyerID != userID && trade.SellerID != userID) {
		return nil, apperror.ErrNotFound("Trade")
	}
	return trade, nil
}
