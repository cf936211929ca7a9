package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"google.golang.org/genai"
)

const (
	DefaultScriptModel = "gemini-3-pro-preview"
	DefaultSeoModel    = "gemini-3-flash-preview"
	DefaultImageModel  = "gemini-2.5-flash-image"
	DefaultAspectRatio = "16:9"
)

// GeminiService talks to the Gemini API through the Google Gen AI SDK.
// It serves both schema-constrained text generation and image generation.
type GeminiService struct {
	client *genai.Client
}

// NewGeminiService creates a Gemini client for the given API key.
func NewGeminiService(ctx context.Context, apiKey string) (*GeminiService, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiService{client: client}, nil
}

// GenerateStructured issues a JSON-mode request constrained by req.Schema and
// returns the raw JSON text. Errors from the SDK are returned wrapped so the
// quota marker stays visible to IsQuotaError.
func (s *GeminiService) GenerateStructured(ctx context.Context, req StructuredRequest) ([]byte, error) {
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   req.Schema,
	}
	if req.SystemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}

	log.Printf("[Gemini] Structured request %s (model=%s, promptLen=%d)", req.Name, req.Model, len(req.Prompt))

	resp, err := s.client.Models.GenerateContent(ctx, req.Model, genai.Text(req.Prompt), config)
	if err != nil {
		return nil, fmt.Errorf("gemini %s request failed: %w", req.Name, err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, fmt.Errorf("gemini %s: %w", req.Name, ErrEmptyResponse)
	}

	return []byte(text), nil
}

// GenerateImage renders req.Prompt with an image-capable model and returns the first
// inline payload of the first candidate.
func (s *GeminiService) GenerateImage(ctx context.Context, req ImageRequest) (*InlineImage, error) {
	aspectRatio := req.AspectRatio
	if aspectRatio == "" {
		aspectRatio = DefaultAspectRatio
	}
	model := req.Model
	if model == "" {
		model = DefaultImageModel
	}

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
		ImageConfig: &genai.ImageConfig{
			AspectRatio: aspectRatio,
		},
	}

	log.Printf("[Gemini] Image request (model=%s, aspectRatio=%s, promptLen=%d)", model, aspectRatio, len(req.Prompt))

	resp, err := s.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), config)
	if err != nil {
		return nil, fmt.Errorf("gemini image request failed: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("no candidates in response: %w", ErrNoImageData)
	}

	var textParts []string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			mimeType := part.InlineData.MIMEType
			if mimeType == "" {
				mimeType = "image/png"
			}
			log.Printf("[Gemini] Image generated (%d bytes, %s)", len(part.InlineData.Data), mimeType)
			return &InlineImage{MIMEType: mimeType, Data: part.InlineData.Data}, nil
		}
		if part.Text != "" {
			textParts = append(textParts, part.Text)
		}
	}

	if len(textParts) > 0 {
		return nil, fmt.Errorf("gemini returned text instead of image (%s): %w", truncateString(textParts[0], 200), ErrNoImageData)
	}
	return nil, fmt.Errorf("got %d parts, none with inlineData: %w", len(resp.Candidates[0].Content.Parts), ErrNoImageData)
}

// truncateString truncates a string to maxLen and appends "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
