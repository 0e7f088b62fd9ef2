package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"p2p-exchange/internal/core/domain"
	"p2p-exchange/internal/core/ports"
	"p2p-exchange/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// OfferService implements ports.OfferService.
type OfferService struct {
	transactor ports.DBTransactor
	offerRepo  ports.OfferRepository
	offers     ports.OfferStore
	ledger     ports.WalletLedger
	metrics    *Metrics
	log        zerolog.Logger
}

// NewOfferService creates a new offer service.
func NewOfferService(
	transactor ports.DBTransactor,
	offerRepo ports.OfferRepository,
	offers ports.OfferStore,
	ledger ports.WalletLedger,
	metrics *Metrics,
	log zerolog.Logger,
) *OfferService {
	return &OfferService{
		transactor: transactor,
		offerRepo:  offerRepo,
		offers:     offers,
		ledger:     ledger,
		metrics:    metrics,
		log:        log,
	}
}

// CreateOffer validates and stores a new active offer.
// Offers payable from the platform wallet reserve the seller's base funds up front.
func (s *OfferService) CreateOffer(ctx context.Context, req ports.CreateOfferRequest) (*domain.TradeOffer, error) {
	offer, err := newOffer(req)
	if err != nil {
		return nil, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, storageError("begin create offer", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if offer.Accepts(domain.PaymentMethodWallet) {
		w, err := s.ledger.HotWallet(ctx, dbTx, offer.SellerID, offer.BaseCryptocurrency)
		if err != nil {
			return nil, err
		}
		if w == nil {
			return nil, apperror.ErrInsufficientFunds()
		}

		locked, err := s.ledger.Lock(ctx, dbTx, w.ID)
		if err != nil {
			return nil, err
		}
		if err := s.ledger.Reserve(ctx, dbTx, locked[w.ID], offer.Amount); err != nil {
			return nil, err
		}
		offer.ReservedWalletID = &w.ID
		offer.ReservedAmount = offer.Amount
	}

	if err := s.offerRepo.Create(ctx, dbTx, offer); err != nil {
		return nil, storageError("create offer", err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, storageError("commit create offer", err)
	}

	s.metrics.IncOfferCreated(offer.BaseCryptocurrency, offer.QuoteCryptocurrency)
	s.log.Info().
		Str("offer_id", offer.ID.String()).
		Str("seller_id", offer.SellerID.String()).
		Str("pair", offer.BaseCryptocurrency+"/"+offer.QuoteCryptocurrency).
		Str("amount", offer.Amount.String()).
		Bool("reserved", offer.IsReserved()).
		Msg("Offer created")

	return offer, nil
}

func newOffer(req ports.CreateOfferRequest) (*domain.TradeOffer, error) {
	base := domain.NormalizeCurrency(req.BaseCryptocurrency)
	quote := domain.NormalizeCurrency(req.QuoteCryptocurrency)

	switch {
	case base == "" || quote == "":
		return nil, apperror.ErrInvalidOffer("Base and quote currency are required")
	case base == quote:
		return nil, apperror.ErrInvalidOffer("Base and quote currency must differ")
	case !req.OfferType.Valid():
		return nil, apperror.ErrInvalidOffer("Offer type must be buy or sell")
	case !req.Amount.IsPositive() || !domain.HasValidScale(req.Amount):
		return nil, apperror.ErrInvalidAmount()
	case !req.ExchangeRate.IsPositive():
		return nil, apperror.ErrInvalidOffer("Exchange rate must be positive")
	case !domain.HasValidScale(req.ExchangeRate):
		return nil, apperror.ErrInvalidOffer(fmt.Sprintf("Exchange rate supports at most %d decimal places", domain.AmountScale))
	case !domain.QuoteAmount(req.Amount, req.ExchangeRate).IsPositive():
		return nil, apperror.ErrInvalidOffer("Quote amount rounds to zero")
	case len(req.PaymentMethods) == 0:
		return nil, apperror.ErrInvalidOffer("At least one payment method is required")
	}

	methods := make([]string, 0, len(req.PaymentMethods))
	seen := make(map[domain.PaymentMethod]bool, len(req.PaymentMethods))
	for _, raw := range req.PaymentMethods {
		m, ok := domain.ParsePaymentMethod(raw)
		if !ok {
			return nil, apperror.ErrInvalidOffer(fmt.Sprintf("Unknown payment method %q", raw))
		}
		if seen[m] {
			continue
		}
		seen[m] = true
		methods = append(methods, string(m))
	}

	var terms *string
	if req.Terms != nil {
		if t := strings.TrimSpace(*req.Terms); t != "" {
			terms = &t
		}
	}

	now := time.Now().UTC()
	return &domain.TradeOffer{
		ID:                  uuid.New(),
		SellerID:            req.SellerID,
		BaseCryptocurrency:  base,
		QuoteCryptocurrency: quote,
		OfferType:           req.OfferType,
		Amount:              req.Amount,
		ExchangeRate:        req.ExchangeRate,
		PaymentMethods:      methods,
		Terms:               terms,
		Status:              domain.OfferStatusActive,
		ReservedAmount:      decimal.Zero,
		CreatedAt:           now,
		UpdatedAt:           now,
	}, nil
}

// CancelOffer withdraws the seller's offer and releases its reservation.
// Cancelling an already completed or cancelled offer returns it unchanged.
func (s *OfferService) CancelOffer(ctx context.Context, offerID, sellerID uuid.UUID) (*domain.TradeOffer, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, storageError("begin cancel offer", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	offer, err := s.offers.LoadAnyForUpdate(ctx, dbTx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.SellerID != sellerID {
		return nil, apperror.ErrNotOfferOwner()
	}
	if offer.Status.IsTerminal() {
		return offer, nil
	}
	if offer.Status != domain.OfferStatusActive {
		return nil, apperror.ErrOfferNotActive()
	}

	if offer.IsReserved() {
		walletID := *offer.ReservedWalletID
		locked, err := s.ledger.Lock(ctx, dbTx, walletID)
		if err != nil {
			return nil, err
		}
		if err := s.ledger.Release(ctx, dbTx, locked[walletID], offer.ReservedAmount); err != nil {
			return nil, err
		}
	}

	if err := s.offers.MarkCancelled(ctx, dbTx, offer); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, storageError("commit cancel offer", err)
	}

	s.metrics.IncOfferCancelled()
	s.log.Info().
		Str("offer_id", offer.ID.String()).
		Str("seller_id", sellerID.String()).
		Msg("Offer cancelled")

	return offer, nil
}

// GetOffer returns an offer in any status.
func (s *OfferService) GetOffer(ctx context.Context, offerID uuid.UUID) (*domain.TradeOffer, error) {
	offer, err := s.offerRepo.GetByID(ctx, offerID)
	if err != nil {
		return nil, storageError("get offer", err)
	}
	if offer == nil {
		return nil, apperror.ErrNotFound("Offer")
	}
	return offer, nil
}

// ListActive returns one page of active offers, newest first, and the total match count.
func (s *OfferService) ListActive(ctx context.Context, params ports.OfferListParams) ([]domain.TradeOffer, int64, error) {
	params.BaseCryptocurrency = domain.NormalizeCurrency(params.BaseCryptocurrency)
	params.QuoteCryptocurrency = domain.NormalizeCurrency(params.QuoteCryptocurrency)
	if params.OfferType != "" && !params.OfferType.Valid() {
		return nil, 0, apperror.ErrInvalidOffer("Offer type must be buy or sell")
	}
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = defaultPageSize
	}
	if params.PageSize > maxPageSize {
		params.PageSize = maxPageSize
	}

	offers, total, err := s.offerRepo.ListActive(ctx, params)
	if err != nil {
		return nil, 0, storageError("list offers", err)
	}
	return offers, total, nil
}
