package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ragbendra/distributed-job-queue/internal/apperror"
)

// ErrorResponse is the standard error body for every non-2xx REST response,
// grounded in the teacher's exception.ErrorResponse — same shape, field
// names translated from the teacher's camelCase into this module's
// snake_case wire convention.
type ErrorResponse struct {
	Timestamp        time.Time         `json:"timestamp"`
	Status           int               `json:"status"`
	Error            string            `json:"error"`
	Message          string            `json:"message"`
	ValidationErrors map[string]string `json:"validation_errors,omitempty"`
}

func newErrorResponse(status int, title, message string) ErrorResponse {
	return ErrorResponse{Timestamp: time.Now().UTC(), Status: status, Error: title, Message: message}
}

// statusForKind maps the apperror taxonomy onto HTTP status codes per
// spec.md §7's error-codes table.
func statusForKind(kind apperror.Kind) int {
	switch kind {
	case apperror.KindValidation, apperror.KindInvalidTransition:
		return http.StatusBadRequest
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError translates any error returned by the store into the REST
// response spec.md §7 describes: a typed apperror.Error carries its own
// status via Kind, anything else is an opaque 500.
func writeError(c *gin.Context, err error) {
	kind, ok := apperror.KindOf(err)
	if !ok {
		c.JSON(http.StatusInternalServerError, newErrorResponse(
			http.StatusInternalServerError, "Internal Server Error", "an unexpected error occurred"))
		return
	}
	status := statusForKind(kind)
	c.JSON(status, newErrorResponse(status, titleForKind(kind), err.Error()))
}

func titleForKind(kind apperror.Kind) string {
	switch kind {
	case apperror.KindValidation:
		return "Validation Failed"
	case apperror.KindNotFound:
		return "Not Found"
	case apperror.KindInvalidTransition:
		return "Invalid Transition"
	case apperror.KindTransient:
		return "Service Unavailable"
	default:
		return "Internal Server Error"
	}
}

// writeBindError translates a Gin ShouldBindJSON failure into a 400 with
// per-field detail when the underlying error is a validator.ValidationErrors,
// mirroring the teacher's exception.HandleValidationError.
func writeBindError(c *gin.Context, err error) {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		fields := make(map[string]string, len(ve))
		for _, fe := range ve {
			fields[fe.Field()] = fe.Tag() + " validation failed"
		}
		resp := newErrorResponse(http.StatusBadRequest, "Validation Failed", "invalid request body")
		resp.ValidationErrors = fields
		c.JSON(http.StatusBadRequest, resp)
		return
	}
	c.JSON(http.StatusBadRequest, newErrorResponse(http.StatusBadRequest, "Validation Failed", err.Error()))
}

// RecoveryMiddleware recovers panics in handlers and returns a 500 instead
// of crashing the process, mirroring the teacher's
// exception.ErrorHandlerMiddleware with a zap logger in place of log.Printf.
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("api: recovered from panic", zap.Any("panic", r))
				c.JSON(http.StatusInternalServerError, newErrorResponse(
					http.StatusInternalServerError, "Internal Server Error", "an unexpected error occurred"))
				c.Abort()
			}
		}()
		c.Next()
	}
}
