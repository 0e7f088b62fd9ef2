package handler

import (
	"net/http"
	"strings"

	"p2p-exchange/internal/adapter/http/dto"
	"p2p-exchange/internal/adapter/http/middleware"
	"p2p-exchange/internal/core/domain"
	"p2p-exchange/internal/core/ports"
	"p2p-exchange/pkg/apperror"
	"p2p-exchange/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// OfferHandler handles the offer book and offer acceptance.
type OfferHandler struct {
	offerSvc      ports.OfferService
	settlementSvc ports.SettlementService
}

// NewOfferHandler creates a new OfferHandler.
func NewOfferHandler(offerSvc ports.OfferService, settlementSvc ports.SettlementService) *OfferHandler {
	return &OfferHandler{
		offerSvc:      offerSvc,
		settlementSvc: settlementSvc,
	}
}

// List handles GET /api/v1/offers.
func (h *OfferHandler) List(c *gin.Context) {
	var q dto.OfferListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.ErrInvalidOffer(err.Error()))
		return
	}

	params := ports.OfferListParams{
		BaseCryptocurrency:  q.Base,
		QuoteCryptocurrency: q.Quote,
		OfferType:           domain.OfferType(strings.ToLower(q.Type)),
		Page:                q.Page,
		PageSize:            q.PageSize,
	}
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = 20
	}

	offers, total, err := h.offerSvc.ListActive(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewOfferListResponse(offers, total, params.Page, params.PageSize))
}

// Create handles POST /api/v1/offers.
func (h *OfferHandler) Create(c *gin.Context) {
	sellerID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.CreateOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ErrInvalidOffer(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	offer, err := h.offerSvc.CreateOffer(c.Request.Context(), ports.CreateOfferRequest{
		SellerID:            sellerID,
		BaseCryptocurrency:  req.BaseCryptocurrency,
		QuoteCryptocurrency: req.QuoteCryptocurrency,
		OfferType:           domain.OfferType(req.OfferType),
		Amount:              *req.Amount,
		ExchangeRate:        *req.ExchangeRate,
		PaymentMethods:      req.PaymentMethods,
		Terms:               req.Terms,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewOfferResponse(offer))
}

// Get handles GET /api/v1/offers/:id.
func (h *OfferHandler) Get(c *gin.Context) {
	offerID, ok := pathID(c, "Offer")
	if !ok {
		return
	}

	offer, err := h.offerSvc.GetOffer(c.Request.Context(), offerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewOfferResponse(offer))
}

// Cancel handles DELETE /api/v1/offers/:id.
func (h *OfferHandler) Cancel(c *gin.Context) {
	sellerID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	offerID, ok := pathID(c, "Offer")
	if !ok {
		return
	}

	offer, err := h.offerSvc.CancelOffer(c.Request.Context(), offerID, sellerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewOfferResponse(offer))
}

// Accept handles POST /api/v1/offers/:id/accept.
// A wallet settlement answers 200; an external payment leaves the trade pending and answers 202.
func (h *OfferHandler) Accept(c *gin.Context) {
	buyerID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	offerID, ok := pathID(c, "Offer")
	if !ok {
		return
	}

	var req dto.AcceptOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if strings.TrimSpace(req.PaymentMethod) == "" {
			response.Error(c, apperror.ErrInvalidPaymentMethod())
			return
		}
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.settlementSvc.AcceptOffer(c.Request.Context(), ports.AcceptOfferRequest{
		OfferID:       offerID,
		BuyerID:       buyerID,
		PaymentMethod: req.PaymentMethod,
		Amount:        req.Amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	status := result.HTTPStatus
	if status == 0 {
		status = http.StatusOK
	}
	response.JSON(c, status, dto.NewTradeResponse(result.Trade))
}

// pathID parses the :id route parameter. Malformed ids cannot match any row, so they report not found.
func pathID(c *gin.Context, entity string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrNotFound(entity))
		return uuid.Nil, false
	}
	return id, true
}
