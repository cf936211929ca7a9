package services

import (
	"context"

	"google.golang.org/genai"
)

// ---------------------------------------------------------------------------
// Model client interfaces
// Gemini and OpenAI both implement StructuredGenerator so the director can run
// against whichever provider is configured. Image generation is Gemini only.
// ---------------------------------------------------------------------------

// StructuredRequest is a single schema-constrained generation call.
type StructuredRequest struct {
	Name              string        // Schema name, e.g. "scene_batch" (OpenAI requires one)
	Model             string        // Model identifier
	Prompt            string        // User prompt
	SystemInstruction string        // Optional system prompt
	Schema            *genai.Schema // Output schema; the root may be an object or an array
}

// StructuredGenerator returns the raw JSON value produced for a StructuredRequest.
type StructuredGenerator interface {
	GenerateStructured(ctx context.Context, req StructuredRequest) ([]byte, error)
}

// ImageRequest is a single image generation call.
type ImageRequest struct {
	Model       string
	Prompt      string
	AspectRatio string // "16:9", "9:16", "1:1", ...
}

// InlineImage is the first binary image payload found in a response.
type InlineImage struct {
	MIMEType string
	Data     []byte
}

// ImageGenerator renders an image. Implementations return ErrNoImageData when the
// response carries no inline payload.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req ImageRequest) (*InlineImage, error)
}
