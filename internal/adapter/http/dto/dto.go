package dto

import (
	"time"

	"p2p-exchange/internal/core/domain"

	"github.com/shopspring/decimal"
)

// CreateOfferRequest is the request body for publishing an offer.
type CreateOfferRequest struct {
	BaseCryptocurrency  string           `json:"base_cryptocurrency" binding:"required,currency"`
	QuoteCryptocurrency string           `json:"quote_cryptocurrency" binding:"required,currency,nefield=BaseCryptocurrency"`
	OfferType           string           `json:"offer_type" binding:"required,oneof=buy sell"`
	Amount              *decimal.Decimal `json:"amount" binding:"required"`
	ExchangeRate        *decimal.Decimal `json:"exchange_rate" binding:"required"`
	PaymentMethods      []string         `json:"payment_methods" binding:"required,min=1,max=10,dive,required,max=50"`
	Terms               *string          `json:"terms,omitempty" binding:"omitempty,max=1000"`
}

// AcceptOfferRequest is the request body for accepting an offer.
// Amount defaults to the full offer amount.
type AcceptOfferRequest struct {
	PaymentMethod string           `json:"payment_method" binding:"required,max=50"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
}

// OfferListQuery binds the offer search query string.
type OfferListQuery struct {
	Base     string `form:"base" binding:"omitempty,currency"`
	Quote    string `form:"quote" binding:"omitempty,currency"`
	Type     string `form:"type" binding:"omitempty,oneof=buy sell"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// OfferResponse is the public view of an offer.
type OfferResponse struct {
	ID                  string   `json:"id"`
	SellerID            string   `json:"seller_id"`
	BaseCryptocurrency  string   `json:"base_cryptocurrency"`
	QuoteCryptocurrency string   `json:"quote_cryptocurrency"`
	OfferType           string   `json:"offer_type"`
	Amount              string   `json:"amount"`
	ExchangeRate        string   `json:"exchange_rate"`
	QuoteAmount         string   `json:"quote_amount"`
	PaymentMethods      []string `json:"payment_methods"`
	Terms               *string  `json:"terms,omitempty"`
	Status              string   `json:"status"`
	CreatedAt           string   `json:"created_at"`
	UpdatedAt           string   `json:"updated_at"`
}

// OfferListResponse wraps a page of active offers.
type OfferListResponse struct {
	Items      []OfferResponse `json:"items"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalPages int             `json:"total_pages"`
}

// TradeResponse is the view of a trade returned to its parties.
type TradeResponse struct {
	ID                  string  `json:"id"`
	OfferID             string  `json:"offer_id"`
	BuyerID             string  `json:"buyer_id"`
	SellerID            string  `json:"seller_id"`
	BaseCryptocurrency  string  `json:"base_cryptocurrency"`
	QuoteCryptocurrency string  `json:"quote_cryptocurrency"`
	Amount              string  `json:"amount"`
	ExchangeRate        string  `json:"exchange_rate"`
	QuoteAmount         string  `json:"quote_amount"`
	PaymentMethod       string  `json:"payment_method"`
	Status              string  `json:"status"`
	CreatedAt           string  `json:"created_at"`
	CompletedAt         *string `json:"completed_at,omitempty"`
}

// WalletResponse is the owner's view of a wallet.
type WalletResponse struct {
	ID              string `json:"id"`
	Cryptocurrency  string `json:"cryptocurrency"`
	WalletType      string `json:"wallet_type"`
	Address         string `json:"address"`
	Balance         string `json:"balance"`
	ReservedBalance string `json:"reserved_balance"`
	Available       string `json:"available"`
	UpdatedAt       string `json:"updated_at"`
}

// AvailableResponse reports the spendable total for one currency.
type AvailableResponse struct {
	Cryptocurrency string `json:"cryptocurrency"`
	WalletType     string `json:"wallet_type"`
	Available      string `json:"available"`
}

// NewOfferResponse converts a domain offer.
func NewOfferResponse(o *domain.TradeOffer) OfferResponse {
	return OfferResponse{
		ID:                  o.ID.String(),
		SellerID:            o.SellerID.String(),
		BaseCryptocurrency:  o.BaseCryptocurrency,
		QuoteCryptocurrency: o.QuoteCryptocurrency,
		OfferType:           string(o.OfferType),
		Amount:              o.Amount.String(),
		ExchangeRate:        o.ExchangeRate.String(),
		QuoteAmount:         o.QuoteAmount().StringFixed(domain.AmountScale),
		PaymentMethods:      o.PaymentMethods,
		Terms:               o.Terms,
		Status:              string(o.Status),
		CreatedAt:           formatTime(o.CreatedAt),
		UpdatedAt:           formatTime(o.UpdatedAt),
	}
}

// NewOfferListResponse converts one page of offers.
func NewOfferListResponse(offers []domain.TradeOffer, total int64, page, pageSize int) OfferListResponse {
	items := make([]OfferResponse, 0, len(offers))
	for i := range offers {
		items = append(items, NewOfferResponse(&offers[i]))
	}

	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}

	return OfferListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}

// NewTradeResponse converts a domain trade.
func NewTradeResponse(t *domain.Trade) TradeResponse {
	resp := TradeResponse{
		ID:                  t.ID.String(),
		OfferID:             t.OfferID.String(),
		BuyerID:             t.BuyerID.String(),
		SellerID:            t.SellerID.String(),
		BaseCryptocurrency:  t.BaseCryptocurrency,
		QuoteCryptocurrency: t.QuoteCryptocurrency,
		Amount:              t.Amount.String(),
		ExchangeRate:        t.ExchangeRate.String(),
		QuoteAmount:         t.QuoteAmount.StringFixed(domain.AmountScale),
		PaymentMethod:       string(t.PaymentMethod),
		Status:              string(t.Status),
		CreatedAt:           formatTime(t.CreatedAt),
	}
	if t.CompletedAt != nil {
		s := formatTime(*t.CompletedAt)
		resp.CompletedAt = &s
	}
	return resp
}

// NewTradeListResponse converts a trade history.
func NewTradeListResponse(trades []domain.Trade) []TradeResponse {
	items := make([]TradeResponse, 0, len(trades))
	for i := range trades {
		items = append(items, NewTradeResponse(&trades[i]))
	}
	return items
}

// NewWalletListResponse converts a user's wallets.
func NewWalletListResponse(wallets []domain.Wallet) []WalletResponse {
	items := make([]WalletResponse, 0, len(wallets))
	for i := range wallets {
		w := &wallets[i]
		items = append(items, WalletResponse{
			ID:              w.ID.String(),
			Cryptocurrency:  w.Cryptocurrency,
			WalletType:      string(w.WalletType),
			Address:         w.Address,
			Balance:         w.Balance.String(),
			ReservedBalance: w.ReservedBalance.String(),
			Available:       w.Available().String(),
			UpdatedAt:       formatTime(w.UpdatedAt),
		})
	}
	return items
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
