package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"p2p-exchange/config"
	"p2p-exchange/internal/core/domain"
	"p2p-exchange/internal/core/ports"
	"p2p-exchange/pkg/apperror"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// SettlementService implements ports.SettlementService.
// One acceptance is one database transaction; the transaction is retried as a whole
// when it fails with a retryable error.
type SettlementService struct {
	transactor ports.DBTransactor
	acceptRepo ports.AcceptanceRepository
	offers     ports.OfferStore
	ledger     ports.WalletLedger
	trades     ports.TradeRecorder
	publisher  ports.TradeEventPublisher
	metrics    *Metrics
	cfg        config.SettlementConfig
	log        zerolog.Logger
}

// NewSettlementService creates a new settlement coordinator.
func NewSettlementService(
	transactor ports.DBTransactor,
	acceptRepo ports.AcceptanceRepository,
	offers ports.OfferStore,
	ledger ports.WalletLedger,
	trades ports.TradeRecorder,
	publisher ports.TradeEventPublisher,
	metrics *Metrics,
	cfg config.SettlementConfig,
	log zerolog.Logger,
) *SettlementService {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 1
	}
	return &SettlementService{
		transactor: transactor,
		acceptRepo: acceptRepo,
		offers:     offers,
		ledger:     ledger,
		trades:     trades,
		publisher:  publisher,
		metrics:    metrics,
		cfg:        cfg,
		log:        log,
	}
}

// AcceptOffer settles an offer for a buyer.
// Wallet payments complete immediately (200); external payments leave a pending trade (202).
func (s *SettlementService) AcceptOffer(ctx context.Context, req ports.AcceptOfferRequest) (*ports.AcceptOfferResult, error) {
	start := time.Now()
	method, known := domain.ParsePaymentMethod(req.PaymentMethod)
	kind := method.Kind().String()

	trade, err := s.retry(ctx, "accept_offer", func() (*domain.Trade, error) {
		return s.acceptOnce(ctx, req, method, known)
	})
	if err != nil {
		s.metrics.ObserveSettlement(kind, outcome(err), time.Since(start))
		s.logFailure(err).
			Str("offer_id", req.OfferID.String()).
			Str("buyer_id", req.BuyerID.String()).
			Str("payment_method", req.PaymentMethod).
			Msg("Offer acceptance rejected")
		return nil, err
	}

	s.metrics.ObserveSettlement(kind, "ok", time.Since(start))
	s.publish(ctx, trade)

	s.log.Info().
		Str("trade_id", trade.ID.String()).
		Str("offer_id", trade.OfferID.String()).
		Str("buyer_id", trade.BuyerID.String()).
		Str("seller_id", trade.SellerID.String()).
		Str("amount", trade.Amount.String()).
		Str("quote_amount", trade.QuoteAmount.String()).
		Str("status", string(trade.Status)).
		Msg("Offer accepted")

	status := http.StatusOK
	if trade.IsPending() {
		status = http.StatusAccepted
	}
	return &ports.AcceptOfferResult{Trade: trade, HTTPStatus: status}, nil
}

func (s *SettlementService) acceptOnce(ctx context.Context, req ports.AcceptOfferRequest, method domain.PaymentMethod, known bool) (*domain.Trade, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, storageError("begin settlement", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// 1. Claim (offer, buyer). Rolled back with the rest on failure.
	if err := s.acceptRepo.Claim(ctx, dbTx, domain.NewOfferAcceptance(req.OfferID, req.BuyerID)); err != nil {
		switch {
		case errors.Is(err, ports.ErrDuplicate):
			return nil, apperror.ErrAlreadyAccepted()
		case errors.Is(err, ports.ErrUnknownUser):
			return nil, apperror.ErrNotFound("Buyer")
		case errors.Is(err, ports.ErrMissingReference):
			return nil, apperror.ErrNotFound("Offer")
		}
		return nil, storageError("claim offer", err)
	}

	// 2. The offer row lock is the single-writer gate.
	offer, err := s.offers.LoadForUpdate(ctx, dbTx, req.OfferID)
	if err != nil {
		return nil, err
	}

	if offer.SellerID == req.BuyerID {
		return nil, apperror.ErrOwnOffer()
	}
	if req.Amount != nil && !req.Amount.Equal(offer.Amount) {
		return nil, apperror.Validation("Partial fills are not supported: amount must equal the offer amount")
	}

	// 3. Payment method must be offered and known.
	if !known || !offer.Accepts(method) {
		return nil, apperror.ErrInvalidPaymentMethod()
	}

	trade := domain.NewTrade(offer, req.BuyerID, method)

	if method.Kind() == domain.PaymentKindWallet {
		err = s.settleWallet(ctx, dbTx, offer, trade)
	} else {
		err = s.settleExternal(ctx, dbTx, offer)
	}
	if err != nil {
		return nil, err
	}

	if err := s.trades.Append(ctx, dbTx, trade); err != nil {
		return nil, err
	}
	if err := s.trades.UpdateStats(ctx, dbTx, trade.BuyerID, trade.SellerID); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, storageError("commit settlement", err)
	}
	return trade, nil
}

// settleWallet moves both legs between hot wallets and closes the offer.
func (s *SettlementService) settleWallet(ctx context.Context, dbTx pgx.Tx, offer *domain.TradeOffer, trade *domain.Trade) error {
	buyerQuote, err := s.ledger.HotWallet(ctx, dbTx, trade.BuyerID, offer.QuoteCryptocurrency)
	if err != nil {
		return err
	}
	if buyerQuote == nil {
		return apperror.ErrInsufficientFunds()
	}

	sellerBaseID, err := s.sellerBaseWalletID(ctx, dbTx, offer)
	if err != nil {
		return err
	}

	buyerBase, err := s.ledger.EnsureHotWallet(ctx, dbTx, trade.BuyerID, offer.BaseCryptocurrency)
	if err != nil {
		return err
	}
	sellerQuote, err := s.ledger.EnsureHotWallet(ctx, dbTx, offer.SellerID, offer.QuoteCryptocurrency)
	if err != nil {
		return err
	}

	locked, err := s.ledger.Lock(ctx, dbTx, buyerQuote.ID, sellerBaseID, buyerBase.ID, sellerQuote.ID)
	if err != nil {
		return err
	}
	bq, sb, bb, sq := locked[buyerQuote.ID], locked[sellerBaseID], locked[buyerBase.ID], locked[sellerQuote.ID]

	if bq.Available().LessThan(trade.QuoteAmount) {
		return apperror.ErrInsufficientFunds()
	}

	if err := s.reserveSeller(ctx, dbTx, offer, sb); err != nil {
		return err
	}
	if err := s.ledger.Reserve(ctx, dbTx, bq, trade.QuoteAmount); err != nil {
		return err
	}
	if err := s.ledger.Transfer(ctx, dbTx, sb, bb, trade.Amount); err != nil {
		return err
	}
	if err := s.ledger.Transfer(ctx, dbTx, bq, sq, trade.QuoteAmount); err != nil {
		return err
	}

	return s.offers.MarkCompleted(ctx, dbTx, offer)
}

// settleExternal holds the seller's base funds and leaves the quote leg to the payment callback.
func (s *SettlementService) settleExternal(ctx context.Context, dbTx pgx.Tx, offer *domain.TradeOffer) error {
	sellerBaseID, err := s.sellerBaseWalletID(ctx, dbTx, offer)
	if err != nil {
		return err
	}

	locked, err := s.ledger.Lock(ctx, dbTx, sellerBaseID)
	if err != nil {
		return err
	}
	return s.reserveSeller(ctx, dbTx, offer, locked[sellerBaseID])
}

// sellerBaseWalletID prefers the wallet reserved at offer creation.
func (s *SettlementService) sellerBaseWalletID(ctx context.Context, dbTx pgx.Tx, offer *domain.TradeOffer) (uuid.UUID, error) {
	if offer.ReservedWalletID != nil {
		return *offer.ReservedWalletID, nil
	}
	w, err := s.ledger.HotWallet(ctx, dbTx, offer.SellerID, offer.BaseCryptocurrency)
	if err != nil {
		return uuid.Nil, err
	}
	if w == nil {
		return uuid.Nil, apperror.ErrInsufficientFunds()
	}
	return w.ID, nil
}

// reserveSeller tops the offer's reservation up to the full amount and marks the offer reserved.
func (s *SettlementService) reserveSeller(ctx context.Context, dbTx pgx.Tx, offer *domain.TradeOffer, sb *domain.Wallet) error {
	if sb.Cryptocurrency != offer.BaseCryptocurrency || sb.UserID != offer.SellerID {
		return apperror.ErrInvariantViolation(fmt.Errorf("wallet %s does not hold %s for seller %s", sb.ID, offer.BaseCryptocurrency, offer.SellerID))
	}

	held := decimal.Zero
	if offer.ReservedWalletID != nil {
		held = offer.ReservedAmount
	}
	if sb.ReservedBalance.LessThan(held) {
		return apperror.ErrInvariantViolation(fmt.Errorf("wallet %s reserved %s below offer hold %s", sb.ID, sb.ReservedBalance, held))
	}

	if missing := offer.Amount.Sub(held); missing.IsPositive() {
		if err := s.ledger.Reserve(ctx, dbTx, sb, missing); err != nil {
			return err
		}
	}

	return s.offers.MarkReserved(ctx, dbTx, offer, sb.ID, offer.Amount)
}

// ConfirmExternalPayment completes a pending trade once the seller confirms the off-platform payment.
// The reserved base amount moves to the buyer; the quote leg was paid outside the platform.
func (s *SettlementService) ConfirmExternalPayment(ctx context.Context, tradeID, sellerID uuid.UUID) (*domain.Trade, error) {
	start := time.Now()

	trade, err := s.retry(ctx, "confirm_payment", func() (*domain.Trade, error) {
		return s.confirmOnce(ctx, tradeID, sellerID)
	})
	if err != nil {
		s.metrics.ObserveSettlement("confirmation", outcome(err), time.Since(start))
		s.logFailure(err).
			Str("trade_id", tradeID.String()).
			Str("seller_id", sellerID.String()).
			Msg("Payment confirmation rejected")
		return nil, err
	}

	s.metrics.ObserveSettlement("confirmation", "ok", time.Since(start))
	s.publish(ctx, trade)

	s.log.Info().
		Str("trade_id", trade.ID.String()).
		Str("offer_id", trade.OfferID.String()).
		Msg("External payment confirmed")

	return trade, nil
}

func (s *SettlementService) confirmOnce(ctx context.Context, tradeID, sellerID uuid.UUID) (*domain.Trade, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, storageError("begin confirmation", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	trade, err := s.trades.LoadForUpdate(ctx, dbTx, tradeID)
	if err != nil {
		return nil, err
	}
	if trade.SellerID != sellerID {
		return nil, apperror.ErrNotOfferOwner()
	}
	if !trade.IsPending() {
		return nil, apperror.ErrTradeNotPending()
	}

	offer, err := s.offers.LoadAnyForUpdate(ctx, dbTx, trade.OfferID)
	if err != nil {
		return nil, err
	}
	if offer.Status != domain.OfferStatusReserved || !offer.IsReserved() {
		return nil, apperror.ErrInvariantViolation(fmt.Errorf("offer %s of pending trade %s is %s", offer.ID, trade.ID, offer.Status))
	}

	buyerBase, err := s.ledger.EnsureHotWallet(ctx, dbTx, trade.BuyerID, trade.BaseCryptocurrency)
	if err != nil {
		return nil, err
	}

	sellerBaseID := *offer.ReservedWalletID
	locked, err := s.ledger.Lock(ctx, dbTx, sellerBaseID, buyerBase.ID)
	if err != nil {
		return nil, err
	}

	if err := s.ledger.Transfer(ctx, dbTx, locked[sellerBaseID], locked[buyerBase.ID], trade.Amount); err != nil {
		return nil, err
	}
	if err := s.offers.MarkCompleted(ctx, dbTx, offer); err != nil {
		return nil, err
	}
	if err := s.trades.MarkCompleted(ctx, dbTx, trade); err != nil {
		return nil, err
	}
	if err := s.trades.UpdateStats(ctx, dbTx, trade.BuyerID, trade.SellerID); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, storageError("commit confirmation", err)
	}
	return trade, nil
}

// retry runs fn up to cfg.MaxAttempts times while it fails with a retryable error.
func (s *SettlementService) retry(ctx context.Context, op string, fn func() (*domain.Trade, error)) (*domain.Trade, error) {
	trade, err := backoff.Retry(ctx,
		func() (*domain.Trade, error) {
			t, err := fn()
			if err != nil && !apperror.IsRetryable(err) {
				return nil, backoff.Permanent(err)
			}
			return t, err
		},
		backoff.WithBackOff(backoff.NewConstantBackOff(s.cfg.RetryDelay)),
		backoff.WithMaxTries(s.cfg.MaxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.metrics.IncRetry()
			s.log.Warn().Err(err).Str("op", op).Dur("backoff", next).Msg("Retrying settlement transaction")
		}),
	)

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}
	return trade, err
}

// publish emits the committed trade. Delivery failures never undo the settlement.
func (s *SettlementService) publish(ctx context.Context, trade *domain.Trade) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, domain.NewTradeEvent(trade)); err != nil {
		s.metrics.IncPublishError()
		s.log.Error().Err(err).Str("trade_id", trade.ID.String()).Msg("Failed to publish trade event")
	}
}

func (s *SettlementService) logFailure(err error) *zerolog.Event {
	if apperror.HasCode(err, apperror.CodeInternal) || apperror.IsRetryable(err) {
		return s.log.Error().Err(err)
	}
	return s.log.Info().Err(err)
}

// outcome is the metrics label for an error.
func outcome(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return apperror.CodeInternal
}
