package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
)

const maxErrorBody = 64 << 10

// postJSON sends one JSON request and decodes a 2xx reply into out.
func (b base) postJSON(ctx context.Context, url string, header http.Header, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", b.vendor, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("new %s request: %w", b.vendor, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	log.Debug().Str("vendor", b.vendor).Str("model", b.model).Int("bytes", len(payload)).Msg("calling model")
	resp, err := b.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", b.vendor, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIRequestError{Vendor: b.vendor, Status: resp.StatusCode, Message: vendorMessage(raw)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ResponseParseError{Vendor: b.vendor, Err: fmt.Errorf("decode envelope: %w", err)}
	}
	return nil
}

// vendorMessage reads error.message or a top-level message from an error
// body.
func vendorMessage(raw []byte) string {
	var e struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &e) != nil {
		return ""
	}
	if e.Error != nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return e.Message
}
