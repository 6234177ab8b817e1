package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/MitsuhaFe/Digest-AI/internal/cache"
)

func TestGet_PageWithUserAgent(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body><article>潮池</article></body></html>"))
	}))
	defer srv.Close()

	c := &Client{UserAgent: "Digest-AI/test", PerRequestTimeout: 2 * time.Second}
	body, ct, err := c.Get(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ct != "text/html" || !strings.Contains(string(body), "潮池") || ua != "Digest-AI/test" {
		t.Fatalf("ct=%q ua=%q body=%q", ct, ua, body)
	}
}

func TestGet_DecodesLegacyCharset(t *testing.T) {
	gbk, err := simplifiedchinese.GBK.NewEncoder().String("<html><body>你好 世界</body></html>")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=gbk")
		_, _ = w.Write([]byte(gbk))
	}))
	defer srv.Close()

	body, _, err := (&Client{}).Get(context.Background(), srv.URL, nil)
	if err != nil || !strings.Contains(string(body), "你好 世界") {
		t.Fatalf("body=%q err=%v", body, err)
	}
}

func TestGet_PlatformHeadersAndJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Referer") != "https://www.bilibili.com" || r.Header.Get("Cookie") != "SESSDATA=x" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{"code":0,"data":{"cid":12345}}`))
	}))
	defer srv.Close()

	h := http.Header{}
	h.Set("Referer", "https://www.bilibili.com")
	h.Set("Cookie", "SESSDATA=x")
	body, ct, err := (&Client{ContentTypes: APITypes}).Get(context.Background(), srv.URL, h)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ct != "application/json" || !strings.Contains(string(body), `"cid":12345`) {
		t.Fatalf("ct=%q body=%q", ct, body)
	}
}

func TestGet_ContentTypeAllowlist(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sniff" {
			w.Header().Set("Content-Type", "application/octet-stream")
		} else {
			w.Header().Set("Content-Type", "application/pdf")
		}
		_, _ = w.Write([]byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n"))
	}))
	defer srv.Close()

	if _, _, err := (&Client{}).Get(context.Background(), srv.URL+"/doc.pdf", nil); err == nil {
		t.Fatalf("pdf must be rejected by the HTML allowlist")
	}
	_, ct, err := (&Client{ContentTypes: []string{"application/pdf"}}).Get(context.Background(), srv.URL+"/sniff", nil)
	if err != nil || ct != "application/pdf" {
		t.Fatalf("sniffed type %q err=%v", ct, err)
	}
}

func TestGet_Retries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		switch {
		case r.URL.Path == "/gone":
			w.WriteHeader(http.StatusNotFound)
		case n == 1 || r.URL.Path == "/down":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html>ok</html>"))
		}
	}))
	defer srv.Close()

	c := &Client{MaxAttempts: 2, PerRequestTimeout: 2 * time.Second}
	if _, _, err := c.Get(context.Background(), srv.URL+"/flaky", nil); err != nil {
		t.Fatalf("5xx should be retried: %v", err)
	}

	atomic.StoreInt32(&calls, 0)
	_, _, err := c.Get(context.Background(), srv.URL+"/gone", nil)
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusNotFound || atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("4xx must not be retried: err=%v calls=%d", err, calls)
	}

	atomic.StoreInt32(&calls, 0)
	_, _, err = (&Client{}).Get(context.Background(), srv.URL+"/down", nil)
	if !errors.As(err, &se) || se.Status != http.StatusBadGateway || atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("zero MaxAttempts means one try: err=%v calls=%d", err, calls)
	}
}

func TestGet_RevalidatesFromCache(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte("<html>first</html>"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	c := &Client{Cache: &cache.HTTPCache{Dir: dir}}
	for i := 0; i < 2; i++ {
		body, ct, err := c.Get(context.Background(), srv.URL, nil)
		if err != nil || string(body) != "<html>first</html>" || ct != "text/html" {
			t.Fatalf("get %d: body=%q ct=%q err=%v", i, body, ct, err)
		}
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("expected two requests, got %d", n)
	}

	bypass := &Client{Cache: &cache.HTTPCache{Dir: dir}, BypassCache: true}
	if body, _, err := bypass.Get(context.Background(), srv.URL, nil); err != nil || string(body) != "<html>first</html>" {
		t.Fatalf("bypass: %q err=%v", body, err)
	}
}

func TestGet_RejectsNonHTTP(t *testing.T) {
	if _, _, err := (&Client{}).Get(context.Background(), "file:///etc/hosts", nil); err == nil {
		t.Fatalf("expected error for non-http scheme")
	}
}

func TestGet_RedirectLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.Redirect(w, r, "/watch", http.StatusFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	if _, _, err := (&Client{RedirectMaxHops: 1}).Get(context.Background(), srv.URL, nil); err == nil {
		t.Fatalf("expected redirect limit error")
	}
	if _, _, err := (&Client{}).Get(context.Background(), srv.URL, nil); err != nil {
		t.Fatalf("default hop limit: %v", err)
	}
}

func TestGet_MaxConcurrent(t *testing.T) {
	var inFlight, peak int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(100 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := &Client{ContentTypes: APITypes, MaxConcurrent: 2}
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = c.Get(context.Background(), srv.URL, nil)
		}()
	}
	wg.Wait()
	if peak > 2 {
		t.Fatalf("expected at most 2 concurrent requests, got %d", peak)
	}
}
