package response

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/recipecast/api/internal/apperr"
)

// Error codes
const (
	CodeValidationError          = "VALIDATION_ERROR"
	CodeNotFound                 = "NOT_FOUND"
	CodeRateLimited              = "RATE_LIMITED"
	CodeQuotaExceeded            = "QUOTA_EXCEEDED"
	CodeConfigError              = "CONFIG_ERROR"
	CodeTranscriptionStartFailed = "TRANSCRIPTION_START_FAILED"
	CodeStatusCheckFailed        = "STATUS_CHECK_FAILED"
	CodeProviderError            = "PROVIDER_ERROR"
	CodeServiceError             = "SERVICE_ERROR"
)

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func Error(c *fiber.Ctx, status int, code, message string, details interface{}) error {
	return c.Status(status).JSON(ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func ValidationError(c *fiber.Ctx, message string, details interface{}) error {
	return Error(c, fiber.StatusBadRequest, CodeValidationError, message, details)
}

func NotFound(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusNotFound, CodeNotFound, message, nil)
}

func ServiceError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, CodeServiceError, message, nil)
}

// Classify maps an error kind to its HTTP status and envelope code. The order
// matters: a start or status failure caused by a rate limit or missing key is
// reported as the more specific kind.
func Classify(err error) (int, string) {
	switch {
	case errors.Is(err, apperr.ErrInvalidInput):
		return fiber.StatusBadRequest, CodeValidationError
	case errors.Is(err, apperr.ErrNotConfigured):
		return fiber.StatusServiceUnavailable, CodeConfigError
	case errors.Is(err, apperr.ErrRateLimitExceeded):
		return fiber.StatusTooManyRequests, CodeRateLimited
	case errors.Is(err, apperr.ErrQuotaExceeded):
		return fiber.StatusPaymentRequired, CodeQuotaExceeded
	case errors.Is(err, apperr.ErrVideoNotFound):
		return fiber.StatusNotFound, CodeNotFound
	case errors.Is(err, apperr.ErrTranscriptionStartFailed):
		return fiber.StatusInternalServerError, CodeTranscriptionStartFailed
	case errors.Is(err, apperr.ErrStatusCheckFailed):
		return fiber.StatusInternalServerError, CodeStatusCheckFailed
	case errors.Is(err, apperr.ErrEnrichmentFailed), errors.Is(err, apperr.ErrEnrichmentParse), errors.Is(err, apperr.ErrProviderFailed):
		return fiber.StatusBadGateway, CodeProviderError
	default:
		return fiber.StatusInternalServerError, CodeServiceError
	}
}

// FromError renders err with the status and code Classify picks and the
// error's user-facing message.
func FromError(c *fiber.Ctx, err error) error {
	status, code := Classify(err)
	return Error(c, status, code, apperr.UserMessage(err), nil)
}

func OK(c *fiber.Ctx, data interface{}) error {
	return c.JSON(data)
}
