// ABOUTME: High-level GenerateText and GenerateObject helpers wrapping a Client with retry.
// ABOUTME: GenerateObject strips markdown code fences before parsing so lenient providers still yield objects.

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// GenerateText completes the request under the retry policy and returns the
// response text.
func GenerateText(ctx context.Context, c Client, policy RetryPolicy, req Request) (string, error) {
	var resp *Response
	err := Retry(ctx, policy, func() error {
		var callErr error
		resp, callErr = c.Complete(ctx, req)
		return callErr
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// GenerateObject completes the request with schema-constrained output and
// unmarshals the response into out. Providers without native schema support
// are instructed through the prompt instead; either way the response text is
// parsed here, tolerating enclosing code fences.
func GenerateObject(ctx context.Context, c Client, policy RetryPolicy, req Request, schema json.RawMessage, out any) error {
	req.ResponseSchema = schema
	if req.SchemaName == "" {
		req.SchemaName = "response"
	}

	text, err := GenerateText(ctx, c, policy, req)
	if err != nil {
		return err
	}

	raw := strings.TrimSpace(stripFences(text))
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return &NoObjectGeneratedError{
			SDKError: SDKError{
				Message: fmt.Sprintf("provider %s returned unparseable object output", c.Name()),
				Cause:   err,
			},
		}
	}
	return nil
}

// stripFences removes a single enclosing markdown code fence, if present.
// Text without fences is returned unchanged.
func stripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return text
	}
	body := trimmed[3:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		// Drop the info string (e.g. "json") on the opening fence line.
		body = body[nl+1:]
	}
	if end := strings.LastIndex(body, "```"); end >= 0 {
		body = body[:end]
	}
	return body
}
