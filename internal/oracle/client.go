// Package oracle adapts an OpenAI-compatible chat completion API into the
// generative capabilities the engine consumes: decision classification,
// escalation modeling, impact assessment, inject drafting and cancellation
// review.
//
// Every capability shares one call shape: a system prompt fixing the
// facilitator persona, a user prompt carrying session context, and a JSON
// object response parsed into engine types. Callers decide what a failed
// call means; this package only reports errors.
package oracle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/crucible-sim/crucible/internal/platform/timeouts"
)

const defaultModel = "gpt-4o-mini"

const systemPersona = "You are the facilitation engine for a multi-agency crisis-response training exercise. " +
	"You reason about participant decisions, escalation dynamics and narrative developments. " +
	"Respond only with a single JSON object matching the requested shape; no prose around it."

// Config carries oracle client settings.
type Config struct {
	APIKey string
	// BaseURL points at an alternative OpenAI-compatible endpoint. Empty
	// means the public API.
	BaseURL string
	Model   string
	// Temperature applies to every call. Zero means the API default.
	Temperature float32
}

// Client calls the chat completion API. It implements the oracle interfaces
// declared by the engine packages.
type Client struct {
	api         *openai.Client
	model       string
	temperature float32
	timeout     time.Duration
}

// New creates a client. The API key is required.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("oracle api key is required")
	}
	apiConfig := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		apiConfig.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	return &Client{
		api:         openai.NewClientWithConfig(apiConfig),
		model:       model,
		temperature: cfg.Temperature,
		timeout:     timeouts.OracleCall,
	}, nil
}

// complete performs one JSON-mode chat completion.
func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	request := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPersona},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	response, err := c.api.CreateChatCompletion(callCtx, request)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return response.Choices[0].Message.Content, nil
}
