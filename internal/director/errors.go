package director

import (
	"errors"
	"strings"

	"github.com/bobarin/director/internal/services"
)

// QuotaExhaustedPrefix starts every user-facing quota message.
const QuotaExhaustedPrefix = "QUOTA_EXHAUSTED"

// ErrorKind classifies a generation failure.
type ErrorKind string

const (
	KindQuotaExceeded     ErrorKind = "quota_exceeded"
	KindMalformedResponse ErrorKind = "malformed_response"
	KindTransport         ErrorKind = "transport"
)

// ErrMalformedResponse marks a successful call whose payload failed validation.
var ErrMalformedResponse = errors.New("malformed model response")

// GenerationError is returned by every generator. Message is localized and safe to
// show to users; Err keeps the underlying cause.
type GenerationError struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *GenerationError) Error() string {
	return e.Message
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the caller may try again later with a fair chance of success.
func (e *GenerationError) Retryable() bool {
	return e.Kind == KindQuotaExceeded
}

// IsQuotaExceeded reports whether err is a rate-limit failure that outlived its retries.
func IsQuotaExceeded(err error) bool {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr.Kind == KindQuotaExceeded
	}
	return false
}

// IsQuotaMessage reports whether a stored user-facing error carries the quota marker.
func IsQuotaMessage(msg string) bool {
	return strings.Contains(msg, QuotaExhaustedPrefix)
}

// classify maps a raw failure onto a kind.
func classify(err error) ErrorKind {
	switch {
	case services.IsQuotaError(err):
		return KindQuotaExceeded
	case errors.Is(err, ErrMalformedResponse),
		errors.Is(err, services.ErrMalformedPayload),
		errors.Is(err, services.ErrNoImageData),
		errors.Is(err, services.ErrEmptyResponse):
		return KindMalformedResponse
	}
	return KindTransport
}
