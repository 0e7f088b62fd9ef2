package handler

import (
	"strconv"

	"p2p-exchange/internal/adapter/http/dto"
	"p2p-exchange/internal/adapter/http/middleware"
	"p2p-exchange/internal/core/ports"
	"p2p-exchange/pkg/apperror"
	"p2p-exchange/pkg/response"

	"github.com/gin-gonic/gin"
)

// TradeHandler serves trade history and external payment confirmation.
type TradeHandler struct {
	accountSvc    ports.AccountService
	settlementSvc ports.SettlementService
}

// NewTradeHandler creates a new TradeHandler.
func NewTradeHandler(accountSvc ports.AccountService, settlementSvc ports.SettlementService) *TradeHandler {
	return &TradeHandler{
		accountSvc:    accountSvc,
		settlementSvc: settlementSvc,
	}
}

// List handles GET /api/v1/trades?limit=N.
func (h *TradeHandler) List(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))

	trades, err := h.accountSvc.Trades(c.Request.Context(), userID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewTradeListResponse(trades))
}

// Get handles GET /api/v1/trades/:id.
func (h *TradeHandler) Get(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	tradeID, ok := pathID(c, "Trade")
	if !ok {
		return
	}

	trade, err := h.accountSvc.Trade(c.Request.Context(), tradeID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewTradeResponse(trade))
}

// Confirm handles POST /api/v1/trades/:id/confirm. Only the seller may confirm.
func (h *TradeHandler) Confirm(c *gin.Context) {
	sellerID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	tradeID, ok := pathID(c, "Trade")
	if !ok {
		return
	}

	trade, err := h.settlementSvc.ConfirmExternalPayment(c.Request.Context(), tradeID, sellerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewTradeResponse(trade))
}
