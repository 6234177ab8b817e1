package ai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/MitsuhaFe/Digest-AI/internal/llm"
)

const (
	openAIOrigin   = "https://api.openai.com/v1"
	deepSeekOrigin = "https://api.deepseek.com/v1"
)

// Chat serves the OpenAI-compatible vendors. OpenAI replies are forced to
// JSON mode; DeepSeek replies go through the recovery cascade.
type Chat struct {
	base
	client llm.Client
}

func newChat(b base, client llm.Client) *Chat {
	if client == nil {
		origin := openAIOrigin
		if b.vendor == VendorDeepSeek {
			origin = deepSeekOrigin
		}
		client = llm.NewOpenAI(b.apiKey, b.origin(origin), b.http)
	}
	return &Chat{base: b, client: client}
}

func (c *Chat) GenerateSummary(ctx context.Context, text string) (Result, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt(c.cfg.EnableAutoTags)},
			{Role: openai.ChatMessageRoleUser, Content: c.prompt(text)},
		},
		Temperature: temperature,
		MaxTokens:   maxReplyTokens,
	}
	if c.vendor == VendorOpenAI {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Result{}, c.requestError(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return Result{}, &ResponseParseError{Vendor: c.vendor, Err: errors.New("empty choices")}
	}
	return c.result(resp.Choices[0].Message.Content)
}

// requestError maps go-openai failures onto APIRequestError.
func (c *Chat) requestError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &APIRequestError{Vendor: c.vendor, Status: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := ""
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &APIRequestError{Vendor: c.vendor, Status: reqErr.HTTPStatusCode, Message: msg}
	}
	return fmt.Errorf("%s request: %w", c.vendor, err)
}
