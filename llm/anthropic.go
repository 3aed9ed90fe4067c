// ABOUTME: Anthropic Messages API adapter used for manim code generation and repair.
// ABOUTME: Schema-constrained output is requested through the system prompt since the API has no json_schema mode.

package llm

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient implements Client over the Anthropic Messages API.
type AnthropicClient struct {
	client anthropic.Client
	model  string
}

// NewAnthropicClient creates an adapter with the given API key and default model.
func NewAnthropicClient(apiKey, model string) *AnthropicClient {
	return &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (c *AnthropicClient) Name() string { return "anthropic" }

// Complete sends the request and concatenates the text content blocks.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	if model == "" {
		return nil, &ConfigurationError{SDKError: SDKError{Message: "anthropic: no model configured"}}
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	system := req.System
	if req.ResponseSchema != nil {
		// No native json_schema response format; constrain via instructions.
		system = strings.TrimSpace(system + "\n\nRespond with a single JSON object matching this JSON schema, and nothing else:\n" + string(req.ResponseSchema))
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, wrapAnthropicError(err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &Response{
		Text:  text.String(),
		Model: string(msg.Model),
		Usage: Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}, nil
}

// wrapAnthropicError converts anthropic-sdk-go errors into the taxonomy.
func wrapAnthropicError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{SDKError: SDKError{Message: "anthropic: request timed out", Cause: err}}
	}

	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		var retryAfter *float64
		if apierr.Response != nil {
			if ra := apierr.Response.Header.Get("Retry-After"); ra != "" {
				if secs, parseErr := strconv.ParseFloat(ra, 64); parseErr == nil {
					retryAfter = &secs
				}
			}
		}
		return classifyStatus("anthropic", apierr.StatusCode, fmt.Sprintf("anthropic: API error (status %d)", apierr.StatusCode), err, retryAfter)
	}

	return &ProviderError{
		SDKError:  SDKError{Message: "anthropic: request failed", Cause: err},
		Provider:  "anthropic",
		Retryable: true,
	}
}
