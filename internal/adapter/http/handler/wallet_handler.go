package handler

import (
	"p2p-exchange/internal/adapter/http/dto"
	"p2p-exchange/internal/adapter/http/middleware"
	"p2p-exchange/internal/core/domain"
	"p2p-exchange/internal/core/ports"
	"p2p-exchange/pkg/apperror"
	"p2p-exchange/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler handles wallet-related endpoints.
type WalletHandler struct {
	accountSvc ports.AccountService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(accountSvc ports.AccountService) *WalletHandler {
	return &WalletHandler{accountSvc: accountSvc}
}

// List handles GET /api/v1/wallets.
func (h *WalletHandler) List(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	wallets, err := h.accountSvc.Wallets(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewWalletListResponse(wallets))
}

// Available handles GET /api/v1/wallets/available?currency=BTC&type=hot.
func (h *WalletHandler) Available(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	currency := domain.NormalizeCurrency(c.Query("currency"))
	if currency == "" {
		response.Error(c, apperror.Validation("currency is required"))
		return
	}

	walletType := domain.WalletTypeHot
	if raw := c.Query("type"); raw != "" {
		wt, ok := domain.ParseWalletType(raw)
		if !ok {
			response.Error(c, apperror.Validation("type must be hot or cold"))
			return
		}
		walletType = wt
	}

	available, err := h.accountSvc.Available(c.Request.Context(), userID, currency, walletType)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.AvailableResponse{
		Cryptocurrency: currency,
		WalletType:     string(walletType),
		Available:      available.String(),
	})
}
