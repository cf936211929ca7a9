package services

import (
	"errors"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

// QuotaMarker is the rate-limit marker looked for in error payloads and messages.
const QuotaMarker = "429"

var (
	// ErrNoImageData means the model answered without an inline image payload.
	ErrNoImageData = errors.New("no image data found in response")

	// ErrEmptyResponse means the model answered without any text to decode.
	ErrEmptyResponse = errors.New("empty response from model")

	// ErrMalformedPayload means the model answered but the payload is not the requested shape.
	ErrMalformedPayload = errors.New("malformed model payload")
)

// IsQuotaError reports whether err signals rate limiting or quota exhaustion.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED" {
			return true
		}
	}

	var oaiErr *openai.APIError
	if errors.As(err, &oaiErr) && oaiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}

	return strings.Contains(err.Error(), QuotaMarker)
}
