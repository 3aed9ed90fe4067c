// ABOUTME: OpenAI Chat Completions adapter with base URL support for compatible providers.
// ABOUTME: Maps openai-go API errors into the package error taxonomy, including Retry-After hints.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIClient implements Client over the OpenAI Chat Completions API.
// A custom base URL enables OpenAI-compatible providers.
type OpenAIClient struct {
	client openai.Client
	model  string
}

// OpenAIOption configures an OpenAIClient.
type OpenAIOption func(*[]option.RequestOption)

// WithOpenAIBaseURL points the client at an OpenAI-compatible endpoint.
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(opts *[]option.RequestOption) {
		*opts = append(*opts, option.WithBaseURL(url))
	}
}

// NewOpenAIClient creates an adapter with the given API key and default model.
func NewOpenAIClient(apiKey, model string, opts ...OpenAIOption) *OpenAIClient {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	for _, o := range opts {
		o(&reqOpts)
	}
	return &OpenAIClient{
		client: openai.NewClient(reqOpts...),
		model:  model,
	}
}

func (c *OpenAIClient) Name() string { return "openai" }

// Complete sends the request and returns the first choice's text.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	if model == "" {
		return nil, &ConfigurationError{SDKError: SDKError{Message: "openai: no model configured"}}
	}

	params := openai.ChatCompletionNewParams{Model: model}

	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}
	params.Messages = messages

	if req.ResponseSchema != nil {
		var schemaObj map[string]any
		if err := json.Unmarshal(req.ResponseSchema, &schemaObj); err != nil {
			return nil, &ConfigurationError{SDKError: SDKError{Message: "openai: invalid response schema", Cause: err}}
		}
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   req.SchemaName,
					Schema: schemaObj,
					Strict: openai.Bool(true),
				},
			},
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, wrapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &ProviderError{
			SDKError: SDKError{Message: "openai: response contained no choices"},
			Provider: "openai",
		}
	}

	return &Response{
		Text:  resp.Choices[0].Message.Content,
		Model: resp.Model,
		Usage: Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
	}, nil
}

// wrapOpenAIError converts openai-go SDK errors into the taxonomy.
func wrapOpenAIError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{SDKError: SDKError{Message: "openai: request timed out", Cause: err}}
	}

	var apierr *openai.Error
	if errors.As(err, &apierr) {
		var retryAfter *float64
		if apierr.Response != nil {
			if ra := apierr.Response.Header.Get("Retry-After"); ra != "" {
				if secs, parseErr := strconv.ParseFloat(ra, 64); parseErr == nil {
					retryAfter = &secs
				}
			}
		}
		return classifyStatus("openai", apierr.StatusCode, fmt.Sprintf("openai: API error (status %d)", apierr.StatusCode), err, retryAfter)
	}

	return &ProviderError{
		SDKError:  SDKError{Message: "openai: request failed", Cause: err},
		Provider:  "openai",
		Retryable: true, // network-level failure, worth another attempt
	}
}
