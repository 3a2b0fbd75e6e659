package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	authdomain "github.com/PsiTechC/medai-billing/internal/auth/domain"
	catalogdomain "github.com/PsiTechC/medai-billing/internal/catalog/domain"
	ledgerdomain "github.com/PsiTechC/medai-billing/internal/ledger/domain"
	paymentdomain "github.com/PsiTechC/medai-billing/internal/payment/domain"
	scheduledomain "github.com/PsiTechC/medai-billing/internal/schedule/domain"
)

// apiError is the wire shape for every error response.
type apiError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *apiError) Error() string { return e.Message }

var (
	ErrUnauthorized = &apiError{Status: http.StatusUnauthorized, Code: "unauthorized", Message: "authentication required"}
	ErrForbidden    = &apiError{Status: http.StatusForbidden, Code: "forbidden", Message: "insufficient permissions"}
	ErrNotFound     = &apiError{Status: http.StatusNotFound, Code: "not_found", Message: "resource not found"}
	ErrRateLimited  = &apiError{Status: http.StatusTooManyRequests, Code: "rate_limited", Message: "too many requests"}
)

func newValidationError(field, code, message string) *apiError {
	return &apiError{Status: http.StatusBadRequest, Code: code, Field: field, Message: message}
}

func invalidRequestError() *apiError {
	return &apiError{Status: http.StatusBadRequest, Code: "invalid_request", Message: "request body could not be parsed"}
}

// AbortWithError maps a domain error onto an HTTP response and stops the
// handler chain.
func AbortWithError(c *gin.Context, err error) {
	var api *apiError
	if errors.As(err, &api) {
		c.AbortWithStatusJSON(api.Status, gin.H{"error": api})
		return
	}

	status, code := classify(err)
	c.AbortWithStatusJSON(status, gin.H{"error": &apiError{
		Status:  status,
		Code:    code,
		Message: err.Error(),
	}})
}

// classify distinguishes business rejections from bad input and missing
// rows. Insufficient balance is a 402 so clients can route the user to a
// top up rather than retrying.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ledgerdomain.ErrInsufficientBalance):
		return http.StatusPaymentRequired, "insufficient_balance"
	case errors.Is(err, paymentdomain.ErrAlreadyProcessed):
		return http.StatusConflict, "payment_already_processed"
	case errors.Is(err, authdomain.ErrUserExists):
		return http.StatusConflict, "user_exists"

	case errors.Is(err, ledgerdomain.ErrLedgerNotFound),
		errors.Is(err, catalogdomain.ErrServiceNotFound),
		errors.Is(err, catalogdomain.ErrPlanNotFound),
		errors.Is(err, paymentdomain.ErrPaymentNotFound),
		errors.Is(err, authdomain.ErrUserNotFound):
		return http.StatusNotFound, "not_found"

	case errors.Is(err, authdomain.ErrInvalidCredentials),
		errors.Is(err, authdomain.ErrInvalidOTP),
		errors.Is(err, authdomain.ErrOTPExpired),
		errors.Is(err, authdomain.ErrInvalidToken):
		return http.StatusUnauthorized, "unauthorized"

	case errors.Is(err, authdomain.ErrAccessRevoked):
		return http.StatusForbidden, "access_revoked"
	case errors.Is(err, paymentdomain.ErrInvalidSignature):
		return http.StatusBadRequest, "invalid_signature"

	case errors.Is(err, ledgerdomain.ErrInvalidUser),
		errors.Is(err, ledgerdomain.ErrInvalidSeconds),
		errors.Is(err, ledgerdomain.ErrInvalidMinutes),
		errors.Is(err, catalogdomain.ErrInvalidName),
		errors.Is(err, catalogdomain.ErrInvalidID),
		errors.Is(err, catalogdomain.ErrInvalidPrice),
		errors.Is(err, catalogdomain.ErrInvalidRangeStart),
		errors.Is(err, catalogdomain.ErrRangeEndForbidden),
		errors.Is(err, catalogdomain.ErrMissingRangeEnd),
		errors.Is(err, catalogdomain.ErrInvalidRange),
		errors.Is(err, paymentdomain.ErrMissingField),
		errors.Is(err, paymentdomain.ErrInvalidAmount),
		errors.Is(err, paymentdomain.ErrInvalidID),
		errors.Is(err, paymentdomain.ErrInvalidStatus),
		errors.Is(err, paymentdomain.ErrUnknownPlan),
		errors.Is(err, paymentdomain.ErrMissingTotalMinutes),
		errors.Is(err, scheduledomain.ErrInvalidAction),
		errors.Is(err, scheduledomain.ErrPastRunAt),
		errors.Is(err, scheduledomain.ErrMissingPayload),
		errors.Is(err, scheduledomain.ErrMissingPlanID),
		errors.Is(err, scheduledomain.ErrInvalidStatus),
		errors.Is(err, authdomain.ErrInvalidEmail):
		return http.StatusBadRequest, "invalid_request"
	}
	return http.StatusInternalServerError, "internal_error"
}
