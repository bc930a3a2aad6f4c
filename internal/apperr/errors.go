package apperr

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure that leaves a component carries exactly one of
// these so handlers can pick a response code with errors.Is.
var (
	ErrExtractionFailed         = errors.New("audio extraction failed")
	ErrUploadFailed             = errors.New("audio upload failed")
	ErrSubmissionFailed         = errors.New("transcription submission failed")
	ErrStatusCheckFailed        = errors.New("transcription status check failed")
	ErrRateLimitExceeded        = errors.New("rate limit exceeded")
	ErrQuotaExceeded            = errors.New("language model quota exceeded")
	ErrEnrichmentParse          = errors.New("failed to parse ingredients from response")
	ErrEnrichmentFailed         = errors.New("failed to extract ingredients")
	ErrStorageUnavailable       = errors.New("scratch storage unavailable")
	ErrTranscriptionStartFailed = errors.New("failed to start transcription")
	ErrNotConfigured            = errors.New("missing configuration")
	ErrInvalidInput             = errors.New("invalid input")
	ErrVideoNotFound            = errors.New("video not found")
	ErrProviderFailed           = errors.New("upstream provider failed")
)

// Error attaches a kind and a user-facing message to an underlying cause.
type Error struct {
	Kind    error
	Message string
	Err     error
}

// New builds an Error. msg may be empty, in which case the kind's text is used.
func New(kind error, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Kind != nil {
		msg = e.Kind.Error()
	}
	if e.Err == nil {
		return msg
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// UserMessage returns the message meant for API clients, never the cause chain.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Message != "" {
			return e.Message
		}
		if e.Kind != nil {
			return e.Kind.Error()
		}
	}
	return "Internal Server Error"
}

// NotConfigured reports a missing credential or setting by its environment name.
func NotConfigured(name string) *Error {
	return New(ErrNotConfigured, name+" is not set", nil)
}
