package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	openrouter "github.com/revrost/go-openrouter"
	openai "github.com/sashabaranov/go-openai"

	"github.com/MitsuhaFe/Digest-AI/internal/cache"
)

func TestNew_UnsupportedVendor(t *testing.T) {
	_, err := New("grok", "k", DefaultConfig())
	if !errors.Is(err, ErrUnsupportedVendor) {
		t.Fatalf("expected ErrUnsupportedVendor, got %v", err)
	}
	if !strings.Contains(err.Error(), "grok") {
		t.Fatalf("error should name the vendor: %v", err)
	}
}

func TestNew_AllVendors(t *testing.T) {
	for _, v := range Vendors {
		a, err := New(v, "k", DefaultConfig())
		if err != nil {
			t.Fatalf("%s: %v", v, err)
		}
		if a.Vendor() != v {
			t.Fatalf("vendor = %q, want %q", a.Vendor(), v)
		}
	}
	a, _ := New("Gemini", "k", Config{Model: "gemini-pro"})
	if a.(*Gemini).Model() != "gemini-pro" {
		t.Fatalf("model override ignored")
	}
}

func TestGemini_SkipsEmptyPart(t *testing.T) {
	var gotPath, gotKey string
	var body geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":""},{"text":"{\"summary\":\"s\",\"keyPoints\":[\"a\"],\"tags\":[\"x\"]}"}]}}]}`)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.EnableAutoTags = false
	a, err := New(VendorGemini, "secret", cfg, WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	res, err := a.GenerateSummary(context.Background(), "文章正文")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	want := Result{Summary: "s", KeyPoints: []string{"a"}, SuggestedTags: []string{}}
	if !reflect.DeepEqual(res, want) {
		t.Fatalf("got %+v", res)
	}
	if gotPath != "/v1beta/models/gemini-2.5-flash:generateContent" || gotKey != "secret" {
		t.Fatalf("endpoint: path=%q key=%q", gotPath, gotKey)
	}
	gc := body.GenerationConfig
	if gc.Temperature != 0.4 || gc.TopK != 32 || gc.TopP != 1 || gc.MaxOutputTokens != 8192 {
		t.Fatalf("generation config: %+v", gc)
	}
	if len(body.Contents) != 1 || !strings.Contains(body.Contents[0].Parts[0].Text, "文章正文") {
		t.Fatalf("prompt not sent: %+v", body.Contents)
	}
}

func TestCandidateText_Alternatives(t *testing.T) {
	cases := []string{
		`{"text":"T"}`,
		`{"message":{"content":"T"}}`,
		`{"output":"T"}`,
		`{"content":"T"}`,
	}
	for _, c := range cases {
		var cand geminiCandidate
		if err := json.Unmarshal([]byte(c), &cand); err != nil {
			t.Fatalf("fixture %s: %v", c, err)
		}
		if got := candidateText(cand); got != "T" {
			t.Fatalf("%s: got %q", c, got)
		}
	}
}

func TestAPIRequestError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"invalid x-api-key"}}`)
	}))
	defer srv.Close()

	a, _ := New(VendorClaude, "bad", DefaultConfig(), WithBaseURL(srv.URL))
	_, err := a.GenerateSummary(context.Background(), "text")
	var apiErr *APIRequestError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIRequestError, got %v", err)
	}
	if apiErr.Status != 401 || apiErr.Message != "invalid x-api-key" || apiErr.Vendor != VendorClaude {
		t.Fatalf("got %+v", apiErr)
	}
}

func TestClaude_Envelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" || r.Header.Get("x-api-key") != "k" || r.Header.Get("anthropic-version") != "2023-06-01" {
			t.Errorf("bad request: %s %v", r.URL.Path, r.Header)
		}
		var req claudeRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "claude-3-haiku-20240307" || req.MaxTokens != 1024 || len(req.Messages) != 1 {
			t.Errorf("bad body: %+v", req)
		}
		reply := "好的：\n```json\n{\"summary\":\"c\",\"keyPoints\":[],\"tags\":[\"t1\"]}\n```"
		_ = json.NewEncoder(w).Encode(map[string]any{"content": []map[string]string{{"type": "text", "text": reply}}})
	}))
	defer srv.Close()

	a, _ := New(VendorClaude, "k", DefaultConfig(), WithBaseURL(srv.URL))
	res, err := a.GenerateSummary(context.Background(), "text")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Summary != "c" || !reflect.DeepEqual(res.SuggestedTags, []string{"t1"}) {
		t.Fatalf("got %+v", res)
	}
}

func TestQwen_Envelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/services/aigc/text-generation/generation" || r.Header.Get("Authorization") != "Bearer qk" {
			t.Errorf("bad request: %s", r.URL.Path)
		}
		var req qwenRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Parameters.ResultFormat != "message" || len(req.Input.Messages) != 2 || req.Input.Messages[0].Role != "system" {
			t.Errorf("bad body: %+v", req)
		}
		_, _ = io.WriteString(w, `{"output":{"choices":[{"message":{"content":"{\"summary\":\"q\",\"keyPoints\":[\"k\"]}"}}]}}`)
	}))
	defer srv.Close()

	a, _ := New(VendorQwen, "qk", DefaultConfig(), WithBaseURL(srv.URL))
	res, err := a.GenerateSummary(context.Background(), "text")
	if err != nil || res.Summary != "q" {
		t.Fatalf("got %+v err=%v", res, err)
	}
}

type fakeChat struct {
	req  openai.ChatCompletionRequest
	resp openai.ChatCompletionResponse
	err  error
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.req = req
	return f.resp, f.err
}

func chatReply(s string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: s}}}}
}

func TestChat_OpenAIUsesJSONMode(t *testing.T) {
	fc := &fakeChat{resp: chatReply(`{"summary":"o","keyPoints":["p"],"tags":["g"]}`)}
	a, _ := New(VendorOpenAI, "k", DefaultConfig(), WithChatClient(fc))
	res, err := a.GenerateSummary(context.Background(), "text")
	if err != nil || res.Summary != "o" {
		t.Fatalf("got %+v err=%v", res, err)
	}
	if fc.req.ResponseFormat == nil || fc.req.ResponseFormat.Type != openai.ChatCompletionResponseFormatTypeJSONObject {
		t.Fatalf("openai should request JSON mode")
	}
	if fc.req.Model != "gpt-3.5-turbo" || fc.req.MaxTokens != 1024 || fc.req.Messages[0].Content != SystemPrompt(true) {
		t.Fatalf("request: %+v", fc.req)
	}
}

func TestChat_DeepSeekWithoutJSONMode(t *testing.T) {
	fc := &fakeChat{resp: chatReply("结果如下：{\"summary\":\"d\",\"keyPoints\":[]}")}
	cfg := DefaultConfig()
	cfg.EnableAutoTags = false
	a, _ := New(VendorDeepSeek, "k", cfg, WithChatClient(fc))
	res, err := a.GenerateSummary(context.Background(), "text")
	if err != nil || res.Summary != "d" {
		t.Fatalf("got %+v err=%v", res, err)
	}
	if fc.req.ResponseFormat != nil || fc.req.Model != "deepseek-chat" || fc.req.Messages[0].Content != SystemPrompt(false) {
		t.Fatalf("request: %+v", fc.req)
	}
}

func TestChat_MapsAPIError(t *testing.T) {
	fc := &fakeChat{err: &openai.APIError{HTTPStatusCode: 429, Message: "rate limited"}}
	a, _ := New(VendorOpenAI, "k", DefaultConfig(), WithChatClient(fc))
	_, err := a.GenerateSummary(context.Background(), "text")
	var apiErr *APIRequestError
	if !errors.As(err, &apiErr) || apiErr.Status != 429 || apiErr.Message != "rate limited" {
		t.Fatalf("got %v", err)
	}
}

type fakeRouter struct {
	req openrouter.ChatCompletionRequest
}

func (f *fakeRouter) CreateChatCompletion(_ context.Context, req openrouter.ChatCompletionRequest) (openrouter.ChatCompletionResponse, error) {
	f.req = req
	return openrouter.ChatCompletionResponse{Choices: []openrouter.ChatCompletionChoice{{
		Message: openrouter.ChatCompletionMessage{Content: openrouter.Content{Text: `{"summary":"r","keyPoints":["x"]}`}},
	}}}, nil
}

func TestOpenRouter(t *testing.T) {
	fr := &fakeRouter{}
	a, _ := New(VendorOpenRouter, "k", DefaultConfig(), WithRouterClient(fr))
	res, err := a.GenerateSummary(context.Background(), "text")
	if err != nil || res.Summary != "r" {
		t.Fatalf("got %+v err=%v", res, err)
	}
	if fr.req.Model != "openai/gpt-3.5-turbo" || len(fr.req.Messages) != 2 {
		t.Fatalf("request: %+v", fr.req)
	}
}

type countingAdapter struct {
	calls int
}

func (c *countingAdapter) Vendor() string { return "fake" }

func (c *countingAdapter) GenerateSummary(context.Context, string) (Result, error) {
	c.calls++
	return Result{Summary: "cached", KeyPoints: []string{}, SuggestedTags: []string{}}, nil
}

func TestCached(t *testing.T) {
	next := &countingAdapter{}
	c := &Cached{Next: next, Cache: &cache.SummaryCache{Dir: t.TempDir()}, Config: DefaultConfig()}
	for i := 0; i < 3; i++ {
		res, err := c.GenerateSummary(context.Background(), "same text")
		if err != nil || res.Summary != "cached" {
			t.Fatalf("got %+v err=%v", res, err)
		}
	}
	if next.calls != 1 {
		t.Fatalf("expected one upstream call, got %d", next.calls)
	}
	if _, err := c.GenerateSummary(context.Background(), "other text"); err != nil || next.calls != 2 {
		t.Fatalf("different text should miss: calls=%d err=%v", next.calls, err)
	}
}
