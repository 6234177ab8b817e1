package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html/charset"

	"github.com/MitsuhaFe/Digest-AI/internal/cache"
)

// Getter is the GET capability the site adapters depend on.
type Getter interface {
	Get(ctx context.Context, url string, header http.Header) ([]byte, string, error)
}

// HTMLTypes is the default content-type allowlist for page acquisition.
var HTMLTypes = []string{"text/html", "application/xhtml+xml"}

// APITypes covers the JSON and XML endpoints the video adapters call.
var APITypes = []string{"application/json", "text/json", "text/xml", "application/xml", "text/plain", "text/html"}

const (
	defaultMaxBody      = 32 << 20
	defaultRedirectHops = 5
)

// Client is the outbound HTTP layer shared by page acquisition and the
// platform adapters. The zero value performs single, unlimited attempts
// against HTMLTypes.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string

	// MaxAttempts counts the first try; zero means one.
	MaxAttempts       int
	PerRequestTimeout time.Duration
	// ContentTypes are accepted media type prefixes. Empty means HTMLTypes.
	ContentTypes []string
	MaxBodyBytes int64
	// RedirectMaxHops defaults to defaultRedirectHops.
	RedirectMaxHops int
	// MaxConcurrent bounds in-flight requests; zero is unbounded.
	MaxConcurrent int

	Cache *cache.HTTPCache
	// BypassCache skips revalidation; fresh responses are still stored.
	BypassCache bool

	slots     chan struct{}
	slotsOnce sync.Once
}

// StatusError reports a non-2xx, non-304 response.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d %s", e.URL, e.Status, http.StatusText(e.Status))
}

func (c *Client) getHTTPClient() *http.Client {
	hc := http.Client{Timeout: c.PerRequestTimeout}
	if c.HTTPClient != nil {
		hc = *c.HTTPClient
	}
	hc.CheckRedirect = c.checkRedirect
	return &hc
}

// Get performs a GET with the client's user agent and any extra headers and
// returns the decoded body with its media type. Transient failures (5xx and
// per-attempt timeouts) are retried up to MaxAttempts. With a cache, stored
// validators are sent and a 304 is answered from disk.
func (c *Client) Get(ctx context.Context, rawURL string, header http.Header) ([]byte, string, error) {
	var cached *cache.Page
	if c.Cache != nil && !c.BypassCache {
		if p, err := c.Cache.Lookup(ctx, rawURL); err == nil && p.Revalidatable() {
			cached = p
		}
	}
	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	for i := 1; ; i++ {
		res, err := c.tryOnce(ctx, rawURL, header, cached)
		if err == nil {
			return c.finish(ctx, rawURL, res, cached)
		}
		if !isTransient(err) || i >= attempts {
			return nil, "", err
		}
		select {
		case <-ctx.Done():
			return nil, "", ctx.Err()
		case <-time.After(time.Duration(i) * retryBackoff):
		}
	}
}

const retryBackoff = 200 * time.Millisecond

func (c *Client) finish(ctx context.Context, rawURL string, res response, cached *cache.Page) ([]byte, string, error) {
	if res.status == http.StatusNotModified {
		if cached == nil {
			return nil, "", &StatusError{URL: rawURL, Status: res.status}
		}
		return cached.Body, cached.ContentType, nil
	}
	if c.Cache != nil {
		page := cache.Page{URL: rawURL, ContentType: res.contentType, ETag: res.etag, LastModified: res.lastMod, Body: res.body}
		if err := c.Cache.Store(ctx, page); err != nil {
			log.Debug().Err(err).Str("url", rawURL).Msg("page cache write failed")
		}
	}
	return res.body, res.contentType, nil
}

type response struct {
	status      int
	body        []byte
	contentType string
	etag        string
	lastMod     string
}

func (c *Client) tryOnce(ctx context.Context, rawURL string, header http.Header, cached *cache.Page) (response, error) {
	c.acquire()
	defer c.release()

	if c.PerRequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.PerRequestTimeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return response{}, fmt.Errorf("new request: %w", err)
	}
	if !isHTTPScheme(req.URL) {
		return response{}, fmt.Errorf("unsupported URL scheme: %q", req.URL.String())
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if c.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if cached != nil {
		if cached.ETag != "" {
			req.Header.Set("If-None-Match", cached.ETag)
		}
		if cached.LastModified != "" {
			req.Header.Set("If-Modified-Since", cached.LastModified)
		}
	}

	resp, err := c.getHTTPClient().Do(req)
	if err != nil {
		return response{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return response{status: resp.StatusCode}, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return response{}, &StatusError{URL: rawURL, Status: resp.StatusCode}
	}

	limit := c.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBody
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return response{}, fmt.Errorf("read body: %w", err)
	}
	headerType := resp.Header.Get("Content-Type")
	ct := mediaType(headerType)
	if ct == "" || ct == "application/octet-stream" {
		ct = mediaType(mimetype.Detect(body).String())
	}
	if !c.allowed(ct) {
		return response{}, fmt.Errorf("unsupported content type: %s", ct)
	}
	if isTextual(ct) {
		body = decodeCharset(body, headerType)
	}
	return response{
		status:      resp.StatusCode,
		body:        body,
		contentType: ct,
		etag:        resp.Header.Get("ETag"),
		lastMod:     resp.Header.Get("Last-Modified"),
	}, nil
}

// decodeCharset converts a textual body to UTF-8 using the header charset,
// a BOM or a <meta charset>, leaving it untouched when detection fails.
func decodeCharset(body []byte, contentType string) []byte {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return body
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return body
	}
	return decoded
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.Status >= 500
}

func (c *Client) checkRedirect(req *http.Request, via []*http.Request) error {
	hops := c.RedirectMaxHops
	if hops <= 0 {
		hops = defaultRedirectHops
	}
	if len(via) >= hops {
		return fmt.Errorf("stopped after %d redirects", hops)
	}
	if !isHTTPScheme(req.URL) {
		return errors.New("redirect to unsupported scheme")
	}
	return nil
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

func mediaType(ct string) string {
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(ct))
	}
	return strings.ToLower(mt)
}

func (c *Client) allowed(ct string) bool {
	types := c.ContentTypes
	if len(types) == 0 {
		types = HTMLTypes
	}
	for _, t := range types {
		if strings.HasPrefix(ct, t) {
			return true
		}
	}
	return false
}

func isTextual(ct string) bool {
	return strings.HasPrefix(ct, "text/") || strings.HasSuffix(ct, "+xml")
}

func (c *Client) acquire() {
	if c.MaxConcurrent <= 0 {
		return
	}
	c.slotsOnce.Do(func() { c.slots = make(chan struct{}, c.MaxConcurrent) })
	c.slots <- struct{}{}
}

func (c *Client) release() {
	if c.slots != nil {
		<-c.slots
	}
}
