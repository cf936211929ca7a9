package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

const (
	DefaultOpenAIScriptModel = "gpt-5-mini"
	DefaultOpenAISeoModel    = "gpt-5-mini"

	// OpenAI structured outputs need an object root; array schemas are wrapped in it.
	arrayEnvelopeKey = "items"
)

// OpenAIService is a StructuredGenerator backed by OpenAI chat completions
// with a strict JSON-schema response format.
type OpenAIService struct {
	client *openai.Client
}

func NewOpenAIService(apiKey string) *OpenAIService {
	return &OpenAIService{
		client: openai.NewClient(apiKey),
	}
}

// GenerateStructured converts req.Schema to JSON Schema, runs the completion and
// returns the JSON value. Array roots are unwrapped from their envelope.
func (s *OpenAIService) GenerateStructured(ctx context.Context, req StructuredRequest) ([]byte, error) {
	schema := jsonSchemaFromGenai(req.Schema)
	wrapped := req.Schema != nil && req.Schema.Type == genai.TypeArray
	if wrapped {
		schema = map[string]any{
			"type":                 "object",
			"properties":           map[string]any{arrayEnvelopeKey: schema},
			"required":             []string{arrayEnvelopeKey},
			"additionalProperties": false,
		}
	}

	rawSchema, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	name := req.Name
	if name == "" {
		name = "response"
	}

	var messages []openai.ChatCompletionMessage
	if req.SystemInstruction != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemInstruction,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	log.Printf("[OpenAI] Structured request %s (model=%s, promptLen=%d)", name, req.Model, len(req.Prompt))

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   name,
				Schema: json.RawMessage(rawSchema),
				Strict: true,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai %s request failed: %w", name, err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai %s: no choices: %w", name, ErrEmptyResponse)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return nil, fmt.Errorf("openai %s (finish_reason=%s): %w", name, resp.Choices[0].FinishReason, ErrEmptyResponse)
	}

	if !wrapped {
		return []byte(content), nil
	}

	return unwrapEnvelope(name, content)
}

// unwrapEnvelope extracts the array value from its object envelope.
func unwrapEnvelope(name, content string) ([]byte, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &envelope); err != nil {
		return nil, fmt.Errorf("openai %s: failed to decode envelope: %v: %w", name, err, ErrMalformedPayload)
	}
	items, ok := envelope[arrayEnvelopeKey]
	if !ok {
		return nil, fmt.Errorf("openai %s: envelope missing %q (%s): %w", name, arrayEnvelopeKey, truncateString(content, 200), ErrMalformedPayload)
	}
	return items, nil
}

// jsonSchemaFromGenai renders a genai.Schema as a strict JSON Schema document:
// every object lists all its properties as required and forbids extras.
func jsonSchemaFromGenai(s *genai.Schema) map[string]any {
	if s == nil {
		return map[string]any{}
	}

	out := map[string]any{
		"type": strings.ToLower(string(s.Type)),
	}
	if s.Description != "" {
		out["description"] = s.Description
	}

	switch s.Type {
	case genai.TypeObject:
		props := make(map[string]any, len(s.Properties))
		required := make([]string, 0, len(s.Properties))
		for name, prop := range s.Properties {
			props[name] = jsonSchemaFromGenai(prop)
			required = append(required, name)
		}
		out["properties"] = props
		out["required"] = orderRequired(s.Required, required)
		out["additionalProperties"] = false
	case genai.TypeArray:
		out["items"] = jsonSchemaFromGenai(s.Items)
	}

	return out
}

func orderRequired(declared, all []string) []string {
	present := make(map[string]bool, len(all))
	for _, name := range all {
		present[name] = true
	}
	ordered := make([]string, 0, len(all))
	for _, name := range declared {
		if present[name] {
			ordered = append(ordered, name)
			delete(present, name)
		}
	}
	rest := make([]string, 0, len(present))
	for name := range present {
		rest = append(rest, name)
	}
	sort.Strings(rest)
	return append(ordered, rest...)
}
