package ai

import (
	"context"
	"errors"
	"net/http"
)

const (
	claudeOrigin     = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
)

// Claude calls the Messages API.
type Claude struct {
	base
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (c *Claude) GenerateSummary(ctx context.Context, text string) (Result, error) {
	h := http.Header{}
	h.Set("x-api-key", c.apiKey)
	h.Set("anthropic-version", anthropicVersion)
	req := claudeRequest{
		Model:       c.model,
		MaxTokens:   maxReplyTokens,
		Temperature: temperature,
		Messages:    []chatMessage{{Role: "user", Content: c.prompt(text)}},
	}
	var resp claudeResponse
	if err := c.postJSON(ctx, c.origin(claudeOrigin)+"/v1/messages", h, req, &resp); err != nil {
		return Result{}, err
	}
	if len(resp.Content) == 0 || resp.Content[0].Text == "" {
		return Result{}, &ResponseParseError{Vendor: c.vendor, Err: errors.New("empty content")}
	}
	return c.result(resp.Content[0].Text)
}
