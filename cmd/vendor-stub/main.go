// Command vendor-stub answers OpenAI-compatible chat requests with a canned
// JSON summary built from the article text, for offline runs of digest with
// -model openai -ai.base http://127.0.0.1:8081/v1.
package main

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	model := os.Getenv("MODEL_ID")
	if strings.TrimSpace(model) == "" {
		model = "gpt-4o-mini"
	}
	addr := os.Getenv("ADDR")
	if strings.TrimSpace(addr) == "" {
		addr = "127.0.0.1:8081"
	}

	log.Info().Str("addr", addr).Str("model", model).Msg("vendor-stub listening")
	srv := &http.Server{Addr: addr, Handler: newHandler(model), ReadHeaderTimeout: 10 * time.Second}
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("vendor-stub stopped")
	}
}

func newHandler(model string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, openai.ModelsList{Models: []openai.Model{{ID: model, Object: "model", OwnedBy: "vendor-stub"}}})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer")) == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"missing api key","type":"invalid_request_error"}}`))
			return
		}
		var system, user string
		for _, m := range req.Messages {
			switch m.Role {
			case openai.ChatMessageRoleSystem:
				system = m.Content
			case openai.ChatMessageRoleUser:
				user = m.Content
			}
		}
		reply, _ := json.Marshal(cannedSummary(articleText(user), strings.Contains(system, "标签")))
		log.Debug().Str("model", req.Model).Int("chars", utf8.RuneCountInString(user)).Msg("chat completion")
		writeJSON(w, openai.ChatCompletionResponse{
			ID:      "chatcmpl-stub",
			Object:  "chat.completion",
			Created: time.Now().Unix(),
			Model:   model,
			Choices: []openai.ChatCompletionChoice{{
				Index:        0,
				Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: string(reply)},
				FinishReason: openai.FinishReasonStop,
			}},
		})
	})
	return mux
}

type summary struct {
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"keyPoints"`
	Tags      []string `json:"tags,omitempty"`
}

// articleText pulls the article out of the default prompt; custom prompts
// are used whole.
func articleText(prompt string) string {
	const start, end = "文章内容：", "请直接返回"
	if i := strings.Index(prompt, start); i >= 0 {
		prompt = prompt[i+len(start):]
		if j := strings.Index(prompt, end); j >= 0 {
			prompt = prompt[:j]
		}
	}
	return strings.Join(strings.Fields(prompt), " ")
}

func cannedSummary(text string, tags bool) summary {
	s := summary{Summary: truncate(text, 120), KeyPoints: sentences(text, 3)}
	if s.Summary == "" {
		s.Summary = "(empty article)"
	}
	if tags {
		s.Tags = []string{"stub"}
	}
	return s
}

func sentences(text string, n int) []string {
	out := []string{}
	var b strings.Builder
	for _, r := range text {
		b.WriteRune(r)
		if strings.ContainsRune(".!?。！？", r) {
			if s := strings.TrimSpace(b.String()); s != "" {
				out = append(out, s)
			}
			b.Reset()
			if len(out) == n {
				return out
			}
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" && len(out) < n {
		out = append(out, s)
	}
	return out
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
