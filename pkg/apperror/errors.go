package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

const (
	CodeNotFound             = "OFFER_001"
	CodeOfferNotActive       = "OFFER_002"
	CodeAlreadyAccepted      = "OFFER_003"
	CodeInvalidPaymentMethod = "OFFER_004"
	CodeOwnOffer             = "OFFER_005"
	CodeNotOfferOwner        = "OFFER_006"
	CodeInvalidOffer         = "OFFER_007"
	CodeInsufficientFunds    = "WALLET_001"
	CodeInvalidAmount        = "WALLET_002"
	CodeTradeNotPending      = "TRADE_001"
	CodeInvalidToken         = "AUTH_001"
	CodeRateLimitExceeded    = "RATE_001"
	CodeInternal             = "SYS_001"
	CodeInvariantViolation   = "SYS_002"
	CodeTxConflict           = "SYS_003"
)

// ---- Offers (OFFER) ----

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrOfferNotActive() *AppError {
	return New(CodeOfferNotActive, "Offer is no longer active", http.StatusConflict)
}

func ErrAlreadyAccepted() *AppError {
	return New(CodeAlreadyAccepted, "Offer has already been accepted", http.StatusConflict)
}

func ErrInvalidPaymentMethod() *AppError {
	return New(CodeInvalidPaymentMethod, "Payment method not accepted for this offer", http.StatusBadRequest)
}

func ErrOwnOffer() *AppError {
	return New(CodeOwnOffer, "Cannot accept your own offer", http.StatusBadRequest)
}

func ErrNotOfferOwner() *AppError {
	return New(CodeNotOfferOwner, "Only the seller may modify this offer", http.StatusForbidden)
}

func ErrInvalidOffer(message string) *AppError {
	return New(CodeInvalidOffer, message, http.StatusBadRequest)
}

// ---- Wallets (WALLET) ----

func ErrInsufficientFunds() *AppError {
	return New(CodeInsufficientFunds, "Insufficient available balance", http.StatusPaymentRequired)
}

func ErrInvalidAmount() *AppError {
	return New(CodeInvalidAmount, "Invalid amount", http.StatusBadRequest)
}

// ---- Trades (TRADE) ----

func ErrTradeNotPending() *AppError {
	return New(CodeTradeNotPending, "Trade is not awaiting payment confirmation", http.StatusConflict)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimitExceeded, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}

// ErrInvariantViolation signals a ledger or state-machine consistency failure.
func ErrInvariantViolation(err error) *AppError {
	return Wrap(CodeInvariantViolation, "Internal consistency failure", http.StatusInternalServerError, err)
}

// ErrTxConflict signals a serialization failure or deadlock in the storage layer.
func ErrTxConflict(err error) *AppError {
	return Wrap(CodeTxConflict, "Concurrent update conflict, please retry", http.StatusServiceUnavailable, err)
}

// Validation returns a WALLET_002-style validation error.
func Validation(message string) *AppError {
	return New(CodeInvalidAmount, message, http.StatusBadRequest)
}

// HasCode reports whether err is an *AppError carrying code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsRetryable reports whether the settlement coordinator may retry the whole unit of work.
func IsRetryable(err error) bool {
	return HasCode(err, CodeInvariantViolation) || HasCode(err, CodeTxConflict)
}
