package ai

import (
	"context"
	"errors"
	"fmt"

	openrouter "github.com/revrost/go-openrouter"
)

// RouterClient is the slice of the OpenRouter client the adapter uses.
type RouterClient interface {
	CreateChatCompletion(ctx context.Context, request openrouter.ChatCompletionRequest) (openrouter.ChatCompletionResponse, error)
}

// OpenRouter routes the request to whichever model the id names.
type OpenRouter struct {
	base
	client RouterClient
}

func newOpenRouter(b base, client RouterClient) *OpenRouter {
	if client == nil {
		client = openrouter.NewClient(b.apiKey)
	}
	return &OpenRouter{base: b, client: client}
}

func (o *OpenRouter) GenerateSummary(ctx context.Context, text string) (Result, error) {
	req := openrouter.ChatCompletionRequest{
		Model: o.model,
		Messages: []openrouter.ChatCompletionMessage{
			{Role: openrouter.ChatMessageRoleSystem, Content: openrouter.Content{Text: SystemPrompt(o.cfg.EnableAutoTags)}},
			{Role: openrouter.ChatMessageRoleUser, Content: openrouter.Content{Text: o.prompt(text)}},
		},
		Temperature: temperature,
		MaxTokens:   maxReplyTokens,
	}
	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openrouter.APIError
		if errors.As(err, &apiErr) {
			return Result{}, &APIRequestError{Vendor: o.vendor, Status: apiErr.HTTPStatusCode, Message: apiErr.Message}
		}
		return Result{}, fmt.Errorf("%s request: %w", o.vendor, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content.Text == "" {
		return Result{}, &ResponseParseError{Vendor: o.vendor, Err: errors.New("empty choices")}
	}
	return o.result(resp.Choices[0].Message.Content.Text)
}
