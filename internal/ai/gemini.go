package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
)

const geminiOrigin = "https://generativelanguage.googleapis.com"

// Gemini calls the generateContent endpoint with the key in the query.
type Gemini struct {
	base
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiCandidate struct {
	Content json.RawMessage `json:"content"`
	Text    string          `json:"text"`
	Message *struct {
		Content string `json:"content"`
	} `json:"message"`
	Output string `json:"output"`
}

func (g *Gemini) GenerateSummary(ctx context.Context, text string) (Result, error) {
	endpoint := g.origin(geminiOrigin) + "/v1beta/models/" + url.PathEscape(g.model) + ":generateContent?key=" + url.QueryEscape(g.apiKey)
	req := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: g.prompt(text)}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     temperature,
			TopK:            32,
			TopP:            1,
			MaxOutputTokens: 8192,
		},
	}
	var resp geminiResponse
	if err := g.postJSON(ctx, endpoint, nil, req, &resp); err != nil {
		return Result{}, err
	}
	if len(resp.Candidates) == 0 {
		return Result{}, &ResponseParseError{Vendor: g.vendor, Err: errors.New("no candidates")}
	}
	return g.result(candidateText(resp.Candidates[0]))
}

// candidateText checks, in order: the first non-empty content part, the
// candidate text, message content, output, and content given as a string.
// Thinking models may emit an empty part before the answer.
func candidateText(c geminiCandidate) string {
	var structured struct {
		Parts []geminiPart `json:"parts"`
	}
	if json.Unmarshal(c.Content, &structured) == nil {
		for _, p := range structured.Parts {
			if p.Text != "" {
				return p.Text
			}
		}
	}
	switch {
	case c.Text != "":
		return c.Text
	case c.Message != nil && c.Message.Content != "":
		return c.Message.Content
	case c.Output != "":
		return c.Output
	}
	var s string
	if json.Unmarshal(c.Content, &s) == nil {
		return s
	}
	return ""
}
