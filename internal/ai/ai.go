// Package ai asks a chat model for a summary, key points and suggested tags
// of extracted text. Each vendor has its own envelope; behavior is shared.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MitsuhaFe/Digest-AI/internal/llm"
)

// Vendor identifiers accepted by New.
const (
	VendorGemini     = "gemini"
	VendorOpenAI     = "openai"
	VendorClaude     = "claude"
	VendorDeepSeek   = "deepseek"
	VendorQwen       = "qwen"
	VendorOpenRouter = "openrouter"
)

// Vendors lists the supported vendor ids in display order.
var Vendors = []string{VendorGemini, VendorOpenAI, VendorClaude, VendorDeepSeek, VendorQwen, VendorOpenRouter}

// DefaultModels maps each vendor to the model used when none is configured.
var DefaultModels = map[string]string{
	VendorGemini:     "gemini-2.5-flash",
	VendorOpenAI:     "gpt-3.5-turbo",
	VendorClaude:     "claude-3-haiku-20240307",
	VendorDeepSeek:   "deepseek-chat",
	VendorQwen:       "qwen-plus",
	VendorOpenRouter: "openai/gpt-3.5-turbo",
}

// DisplayNames are the human-readable vendor names used in messages.
var DisplayNames = map[string]string{
	VendorGemini:     "Google Gemini",
	VendorOpenAI:     "OpenAI",
	VendorClaude:     "Anthropic Claude",
	VendorDeepSeek:   "DeepSeek",
	VendorQwen:       "通义千问",
	VendorOpenRouter: "OpenRouter",
}

const (
	temperature    = 0.4
	maxReplyTokens = 1024
)

// Result is what every vendor returns. Slices are never nil.
type Result struct {
	Summary       string   `json:"summary"`
	KeyPoints     []string `json:"keyPoints"`
	SuggestedTags []string `json:"suggestedTags"`
}

// Adapter generates a summary with one vendor. A call makes exactly one
// HTTP request.
type Adapter interface {
	GenerateSummary(ctx context.Context, text string) (Result, error)
	Vendor() string
}

// Config controls prompt construction and tag handling.
type Config struct {
	SummaryLength      int    `yaml:"summaryLength" json:"summaryLength"`
	TagCount           int    `yaml:"tagCount" json:"tagCount"`
	EnableAutoTags     bool   `yaml:"enableAutoTags" json:"enableAutoTags"`
	EnableCustomPrompt bool   `yaml:"enableCustomPrompt" json:"enableCustomPrompt"`
	CustomPrompt       string `yaml:"customPrompt" json:"customPrompt"`
	// Model overrides the vendor default.
	Model string `yaml:"model" json:"model"`
}

// DefaultConfig mirrors the extension defaults.
func DefaultConfig() Config {
	return Config{SummaryLength: 200, TagCount: 3, EnableAutoTags: true}
}

var (
	// ErrUnsupportedVendor is returned by New for unknown vendor ids.
	ErrUnsupportedVendor = errors.New("unsupported vendor")
)

// APIRequestError reports a non-2xx reply from a vendor.
type APIRequestError struct {
	Vendor  string
	Status  int
	Message string
}

func (e *APIRequestError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s API request failed: %d - %s", e.Vendor, e.Status, msg)
}

// ResponseParseError means no JSON object could be recovered from the reply.
type ResponseParseError struct {
	Vendor string
	Err    error
}

func (e *ResponseParseError) Error() string {
	return fmt.Sprintf("parse %s response: %v", e.Vendor, e.Err)
}

func (e *ResponseParseError) Unwrap() error { return e.Err }

type options struct {
	httpClient *http.Client
	baseURL    string
	chat       llm.Client
	router     RouterClient
}

// Option customizes a vendor adapter.
type Option func(*options)

// WithHTTPClient sets the client used for raw HTTP vendors.
func WithHTTPClient(c *http.Client) Option { return func(o *options) { o.httpClient = c } }

// WithBaseURL points the adapter at another origin, such as a local stub.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = strings.TrimRight(u, "/") }
}

// WithChatClient injects the OpenAI-compatible client for openai and deepseek.
func WithChatClient(c llm.Client) Option { return func(o *options) { o.chat = c } }

// WithRouterClient injects the OpenRouter client.
func WithRouterClient(c RouterClient) Option { return func(o *options) { o.router = c } }

// New builds the adapter for vendor.
func New(vendor, apiKey string, cfg Config, opts ...Option) (Adapter, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	vendor = strings.ToLower(strings.TrimSpace(vendor))
	model, ok := DefaultModels[vendor]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedVendor, vendor)
	}
	if cfg.Model != "" {
		model = cfg.Model
	}
	b := base{vendor: vendor, apiKey: apiKey, model: model, cfg: cfg, baseURL: o.baseURL, http: o.httpClient}
	switch vendor {
	case VendorGemini:
		return &Gemini{base: b}, nil
	case VendorClaude:
		return &Claude{base: b}, nil
	case VendorQwen:
		return &Qwen{base: b}, nil
	case VendorOpenAI, VendorDeepSeek:
		return newChat(b, o.chat), nil
	default:
		return newOpenRouter(b, o.router), nil
	}
}

// base carries what every vendor adapter shares.
type base struct {
	vendor  string
	apiKey  string
	model   string
	cfg     Config
	baseURL string
	http    *http.Client
}

func (b base) Vendor() string { return b.vendor }

// Model reports the model the adapter calls.
func (b base) Model() string { return b.model }

func (b base) origin(def string) string {
	if b.baseURL != "" {
		return b.baseURL
	}
	return def
}

func (b base) prompt(text string) string { return BuildPrompt(b.cfg, text) }

func (b base) result(reply string) (Result, error) {
	return ParseReply(b.vendor, reply, b.cfg.EnableAutoTags)
}
