package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	linkdomain "github.com/smallbiznis/kolaffiliate/internal/affiliatelink/domain"
	attributiondomain "github.com/smallbiznis/kolaffiliate/internal/attribution/domain"
	authdomain "github.com/smallbiznis/kolaffiliate/internal/auth/domain"
	"github.com/smallbiznis/kolaffiliate/internal/authorization"
	clickdomain "github.com/smallbiznis/kolaffiliate/internal/click/domain"
	dashboarddomain "github.com/smallbiznis/kolaffiliate/internal/dashboard/domain"
	koldomain "github.com/smallbiznis/kolaffiliate/internal/kol/domain"
	ledgerdomain "github.com/smallbiznis/kolaffiliate/internal/ledger/domain"
	productdomain "github.com/smallbiznis/kolaffiliate/internal/product/domain"
	realtimedomain "github.com/smallbiznis/kolaffiliate/internal/realtime/domain"
	reconciliationdomain "github.com/smallbiznis/kolaffiliate/internal/reconciliation/domain"
	"github.com/smallbiznis/kolaffiliate/internal/scheduler"
	tierdomain "github.com/smallbiznis/kolaffiliate/internal/tier/domain"
	"gorm.io/gorm"
)

type ValidationError = reconciliationdomain.FieldError

type ValidationErrors = reconciliationdomain.ValidationErrors

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case isUnauthorizedError(err):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case isForbiddenError(err):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: forbiddenMessage(err),
		}
	case errors.Is(err, linkdomain.ErrNotFound),
		errors.Is(err, linkdomain.ErrLinkExpired),
		errors.Is(err, clickdomain.ErrInvalidLink):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "invalid or expired link",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, reconciliationdomain.ErrOrderAlreadyReconciled),
		errors.Is(err, ledgerdomain.ErrDuplicateEntry),
		errors.Is(err, scheduler.ErrJobRunning),
		errors.Is(err, scheduler.ErrJobLocked):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, realtimedomain.ErrStatsUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	case errors.Is(err, ErrInternal):
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog returns the response error type and a short code for
// the request log. Server errors never log the raw message.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	switch {
	case len(payload.Errors) > 0:
		return payload.Type, payload.Errors[0].Code
	case status >= http.StatusInternalServerError:
		return payload.Type, payload.Type
	default:
		return payload.Type, err.Error()
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, linkdomain.ErrInvalidProductID),
		errors.Is(err, linkdomain.ErrInvalidShortCode),
		errors.Is(err, linkdomain.ErrInvalidPlatform),
		errors.Is(err, productdomain.ErrInvalidID),
		errors.Is(err, dashboarddomain.ErrInvalidDateRange),
		errors.Is(err, dashboarddomain.ErrInvalidPeriod),
		errors.Is(err, tierdomain.ErrInvalidKolID),
		errors.Is(err, koldomain.ErrInvalidID),
		errors.Is(err, ledgerdomain.ErrInvalidTransition),
		errors.Is(err, ledgerdomain.ErrInvalidOrderID),
		errors.Is(err, ledgerdomain.ErrInvalidEntry),
		errors.Is(err, reconciliationdomain.ErrInvalidStatus),
		errors.Is(err, attributiondomain.ErrInvalidSeed),
		errors.Is(err, scheduler.ErrUnknownJob):
		return true
	default:
		return false
	}
}

func isUnauthorizedError(err error) bool {
	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrUnauthorized),
		errors.Is(err, authdomain.ErrInvalidToken),
		errors.Is(err, authdomain.ErrTokenExpired):
		return true
	default:
		return false
	}
}

func isForbiddenError(err error) bool {
	switch {
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, authorization.ErrInvalidActor),
		errors.Is(err, reconciliationdomain.ErrForbidden),
		errors.Is(err, koldomain.ErrNotApprovedKol),
		errors.Is(err, koldomain.ErrNotFound),
		errors.Is(err, tierdomain.ErrNotKol),
		errors.Is(err, realtimedomain.ErrSubscribeDenied):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, productdomain.ErrNotFound),
		errors.Is(err, reconciliationdomain.ErrOrderNotFound),
		errors.Is(err, ledgerdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func forbiddenMessage(err error) string {
	switch {
	case errors.Is(err, koldomain.ErrNotApprovedKol),
		errors.Is(err, koldomain.ErrNotFound):
		return "not an approved KOL"
	default:
		return "forbidden"
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, reconciliationdomain.ErrOrderAlreadyReconciled),
		errors.Is(err, ledgerdomain.ErrDuplicateEntry):
		return "order already reconciled"
	case errors.Is(err, scheduler.ErrJobRunning),
		errors.Is(err, scheduler.ErrJobLocked):
		return "job already running"
	default:
		return "conflict"
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "invalid_date_range":
		return "startDate"
	case "unknown_scheduler_job":
		return "job"
	case "invalid_status_transition":
		return "status"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "invalid_date_range":
		return "invalid date range"
	case "invalid_status_transition":
		return "order is not pending"
	default:
		return "invalid value"
	}
}
