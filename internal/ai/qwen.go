package ai

import (
	"context"
	"errors"
	"net/http"
)

const qwenOrigin = "https://dashscope.aliyuncs.com"

// Qwen calls the DashScope text-generation service.
type Qwen struct {
	base
}

type qwenRequest struct {
	Model string `json:"model"`
	Input struct {
		Messages []chatMessage `json:"messages"`
	} `json:"input"`
	Parameters qwenParameters `json:"parameters"`
}

type qwenParameters struct {
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"max_tokens"`
	ResultFormat string  `json:"result_format"`
}

type qwenResponse struct {
	Output struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	} `json:"output"`
}

func (q *Qwen) GenerateSummary(ctx context.Context, text string) (Result, error) {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+q.apiKey)
	req := qwenRequest{
		Model:      q.model,
		Parameters: qwenParameters{Temperature: temperature, MaxTokens: maxReplyTokens, ResultFormat: "message"},
	}
	req.Input.Messages = []chatMessage{
		{Role: "system", Content: SystemPrompt(q.cfg.EnableAutoTags)},
		{Role: "user", Content: q.prompt(text)},
	}
	var resp qwenResponse
	if err := q.postJSON(ctx, q.origin(qwenOrigin)+"/api/v1/services/aigc/text-generation/generation", h, req, &resp); err != nil {
		return Result{}, err
	}
	if len(resp.Output.Choices) == 0 || resp.Output.Choices[0].Message.Content == "" {
		return Result{}, &ResponseParseError{Vendor: q.vendor, Err: errors.New("empty choices")}
	}
	return q.result(resp.Output.Choices[0].Message.Content)
}
