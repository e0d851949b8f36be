package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/crm/internal/invoice/domain"
	notificationdomain "github.com/smallbiznis/crm/internal/notification/domain"
	paymentdomain "github.com/smallbiznis/crm/internal/payment/domain"
	payrolldomain "github.com/smallbiznis/crm/internal/payroll/domain"
	"github.com/smallbiznis/crm/internal/ratelimit"
	recordsdomain "github.com/smallbiznis/crm/internal/records/domain"
	"github.com/smallbiznis/crm/internal/search"
	"github.com/smallbiznis/crm/internal/serviceclient"
	taskdomain "github.com/smallbiznis/crm/internal/task/domain"
	ticketdomain "github.com/smallbiznis/crm/internal/ticket/domain"
	"gorm.io/gorm"
)

// errorResponse is the envelope every resource service answers failures with.
type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

var (
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

const (
	msgInternal    = "Internal server error"
	msgNotFound    = "Not found"
	msgConflict    = "Conflict"
	msgUnavailable = "Service Temporarily Unavailable"
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
		c.AbortWithStatusJSON(status, payload)
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorResponse) {
	if err == nil {
		return http.StatusInternalServerError, errorResponse{Message: msgInternal, Code: "internal_error"}
	}

	switch {
	case isValidationError(err):
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorResponse{Message: validationErrorMessage(code), Code: code}
	case isNotFoundError(err):
		return http.StatusNotFound, errorResponse{Message: msgNotFound, Code: "not_found"}
	case errors.Is(err, ErrConflict),
		errors.Is(err, payrolldomain.ErrConflict):
		return http.StatusConflict, errorResponse{Message: msgConflict, Code: "conflict"}
	case errors.Is(err, serviceclient.ErrUpstreamUnreachable),
		errors.Is(err, serviceclient.ErrUpstreamRejected),
		errors.Is(err, notificationdomain.ErrDeliveryFailed):
		return http.StatusBadGateway, errorResponse{Message: msgUnavailable, Code: "upstream_unavailable"}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, ratelimit.ErrLockTimeout):
		return http.StatusServiceUnavailable, errorResponse{Message: msgUnavailable, Code: "service_unavailable"}
	default:
		return http.StatusInternalServerError, errorResponse{Message: msgInternal, Code: "internal_error"}
	}
}

// validationErrors are the sentinels that mean the caller sent something wrong.
var validationErrors = []error{
	ErrInvalidRequest,
	search.ErrEmptyQuery,
	invoicedomain.ErrInvalidID,
	invoicedomain.ErrInvalidCustomerName,
	invoicedomain.ErrInvalidItems,
	invoicedomain.ErrInvalidStatus,
	paymentdomain.ErrInvalidID,
	paymentdomain.ErrInvalidInvoiceID,
	paymentdomain.ErrInvalidAmount,
	paymentdomain.ErrInvalidMethod,
	ticketdomain.ErrInvalidID,
	ticketdomain.ErrInvalidSubject,
	ticketdomain.ErrInvalidStatus,
	ticketdomain.ErrInvalidPriority,
	taskdomain.ErrInvalidID,
	taskdomain.ErrInvalidTitle,
	taskdomain.ErrInvalidStatus,
	payrolldomain.ErrInvalidID,
	payrolldomain.ErrInvalidEmployee,
	payrolldomain.ErrInvalidMonth,
	payrolldomain.ErrInvalidSalary,
	payrolldomain.ErrInvalidWorkingDays,
	payrolldomain.ErrInvalidAttendance,
	recordsdomain.ErrInvalidID,
	recordsdomain.ErrInvalidDocument,
	recordsdomain.ErrInvalidPageToken,
	notificationdomain.ErrInvalidRecipient,
	notificationdomain.ErrInvalidSubject,
	notificationdomain.ErrInvalidPageToken,
}

func isValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, invoicedomain.ErrNotFound),
		errors.Is(err, paymentdomain.ErrNotFound),
		errors.Is(err, ticketdomain.ErrNotFound),
		errors.Is(err, taskdomain.ErrNotFound),
		errors.Is(err, payrolldomain.ErrNotFound),
		errors.Is(err, recordsdomain.ErrNotFound),
		errors.Is(err, recordsdomain.ErrUnknownCollection),
		errors.Is(err, serviceclient.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return ErrInvalidRequest.Error()
}

// validationErrorMessage turns a code like invalid_amount into "Invalid amount".
func validationErrorMessage(code string) string {
	switch code {
	case search.ErrEmptyQuery.Error():
		return "Search query is required"
	case ErrInvalidRequest.Error():
		return "Invalid request"
	}
	text := strings.ReplaceAll(code, "_", " ")
	if text == "" {
		return "Invalid request"
	}
	return strings.ToUpper(text[:1]) + text[1:]
}

// classifyErrorForLog feeds error_type/error_code on the request log line.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	switch {
	case status == http.StatusBadRequest:
		return "validation_error", payload.Code
	case status == http.StatusNotFound:
		return "not_found", payload.Code
	case status == http.StatusConflict:
		return "conflict", payload.Code
	case status >= http.StatusInternalServerError && status != http.StatusInternalServerError:
		return "upstream", payload.Code
	default:
		return "internal", payload.Code
	}
}
