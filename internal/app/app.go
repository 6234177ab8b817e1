package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/MitsuhaFe/Digest-AI/internal/ai"
	"github.com/MitsuhaFe/Digest-AI/internal/cache"
	"github.com/MitsuhaFe/Digest-AI/internal/content"
	"github.com/MitsuhaFe/Digest-AI/internal/extract"
	"github.com/MitsuhaFe/Digest-AI/internal/fetch"
	"github.com/MitsuhaFe/Digest-AI/internal/page"
	"github.com/MitsuhaFe/Digest-AI/internal/store"
)

// pageTypes are the documents a save can start from.
var pageTypes = append(append([]string{}, fetch.HTMLTypes...), "application/pdf")

// documentTypes are accepted by the PDF library tier.
var documentTypes = []string{"application/pdf"}

// App wires acquisition, extraction, summarization and persistence. It is
// safe for concurrent use; each save runs its own pipeline.
type App struct {
	mu        sync.RWMutex
	cfg       Config
	pages     *fetch.Client
	api       *fetch.Client
	docs      *fetch.Client
	summaries *cache.SummaryCache
	vendor    *http.Client

	store  store.Store
	aiOpts []ai.Option
	now    func() time.Time
}

// Option customizes New.
type Option func(*App)

// WithStore uses s instead of opening the configured backend.
func WithStore(s store.Store) Option { return func(a *App) { a.store = s } }

// WithAIOptions appends options to every vendor adapter the app builds.
func WithAIOptions(opts ...ai.Option) Option {
	return func(a *App) { a.aiOpts = append(a.aiOpts, opts...) }
}

// WithClock replaces time.Now for article timestamps.
func WithClock(now func() time.Time) Option { return func(a *App) { a.now = now } }

func New(ctx context.Context, cfg Config, opts ...Option) (*App, error) {
	a := &App{now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	if a.store == nil {
		s, err := openStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.store = s
	}
	a.Reconfigure(cfg)
	return a, nil
}

func openStore(ctx context.Context, cfg Config) (store.Store, error) {
	if cfg.MinIO.Endpoint != "" {
		b, err := store.OpenBucket(ctx, cfg.MinIO)
		if err != nil {
			return nil, fmt.Errorf("open bucket store: %w", err)
		}
		return b, nil
	}
	s, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	return s, nil
}

// Reconfigure swaps the settings used by subsequent saves. The store is
// kept; storage settings only apply at startup.
func (a *App) Reconfigure(cfg Config) {
	httpClient := newHTTPClient(cfg.HTTPTimeout)
	pages := &fetch.Client{
		HTTPClient:        httpClient,
		UserAgent:         cfg.UserAgent,
		MaxAttempts:       2,
		PerRequestTimeout: cfg.HTTPTimeout,
		ContentTypes:      pageTypes,
	}
	api := &fetch.Client{
		HTTPClient:        httpClient,
		UserAgent:         cfg.UserAgent,
		PerRequestTimeout: cfg.HTTPTimeout,
		ContentTypes:      fetch.APITypes,
		MaxConcurrent:     4,
	}
	// Adapter downloads make one attempt and skip the page cache.
	docs := &fetch.Client{
		HTTPClient:        httpClient,
		UserAgent:         cfg.UserAgent,
		PerRequestTimeout: cfg.HTTPTimeout,
		ContentTypes:      documentTypes,
	}
	var summaries *cache.SummaryCache
	if cfg.CacheDir != "" {
		pages.Cache = &cache.HTTPCache{Dir: cfg.CacheDir, StrictPerms: cfg.CacheStrictPerms}
		if !cfg.NoSummaryCache {
			summaries = &cache.SummaryCache{Dir: cfg.CacheDir, StrictPerms: cfg.CacheStrictPerms}
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg = cfg
	a.pages = pages
	a.api = api
	a.docs = docs
	a.summaries = summaries
	if a.vendor == nil {
		// Vendor calls run until the save deadline.
		a.vendor = newHTTPClient(0)
	}
}

// Config returns the active settings.
func (a *App) Config() Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

type pipeline struct {
	cfg       Config
	pages     *fetch.Client
	api       *fetch.Client
	docs      *fetch.Client
	summaries *cache.SummaryCache
	vendor    *http.Client
}

func (a *App) current() pipeline {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return pipeline{cfg: a.cfg, pages: a.pages, api: a.api, docs: a.docs, summaries: a.summaries, vendor: a.vendor}
}

// Store exposes the persistence backend.
func (a *App) Store() store.Store { return a.store }

func (a *App) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// PurgeCache drops cache entries older than the configured max age.
func (a *App) PurgeCache() (int, error) {
	cfg := a.Config()
	if cfg.CacheDir == "" || cfg.CacheMaxAge <= 0 {
		return 0, nil
	}
	n, err := cache.PurgeByAge(cfg.CacheDir, cfg.CacheMaxAge)
	if err != nil {
		return n, fmt.Errorf("purge cache: %w", err)
	}
	if n > 0 {
		log.Info().Int("removed", n).Str("dir", cfg.CacheDir).Msg("cache purged")
	}
	return n, nil
}

// ClearCache removes every cached page and summary.
func (a *App) ClearCache() error {
	dir := a.Config().CacheDir
	if dir == "" {
		return nil
	}
	if err := cache.ClearDir(dir); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	log.Info().Str("dir", dir).Msg("cache cleared")
	return nil
}

// Fetch downloads rawURL and turns it into a snapshot. PDFs keep their bytes
// so the library tier does not download them again.
func (a *App) Fetch(ctx context.Context, rawURL string) (*page.Snapshot, error) {
	snap, _, err := a.acquire(ctx, a.current(), rawURL)
	return snap, err
}

func (a *App) acquire(ctx context.Context, p pipeline, rawURL string) (*page.Snapshot, fetch.Getter, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, nil, errors.New("url is empty")
	}
	body, ct, err := p.pages.Get(ctx, rawURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	if ct == "application/pdf" {
		return &page.Snapshot{URL: rawURL, MIME: ct}, prefetched{url: rawURL, body: body, ct: ct, next: p.docs}, nil
	}
	return page.FromHTML(rawURL, ct, body), p.pages, nil
}

// prefetched serves one already downloaded body and defers other URLs.
type prefetched struct {
	url  string
	body []byte
	ct   string
	next fetch.Getter
}

func (g prefetched) Get(ctx context.Context, rawURL string, header http.Header) ([]byte, string, error) {
	if rawURL == g.url {
		return g.body, g.ct, nil
	}
	return g.next.Get(ctx, rawURL, header)
}

// Extraction is a raw extraction plus its merged text, without AI.
type Extraction struct {
	Kind   string                 `json:"type"`
	Raw    *content.RawExtraction `json:"extraction"`
	Merged content.Merged         `json:"merged"`
}

// Extract runs detection, the matching adapter and the composer.
func (a *App) Extract(ctx context.Context, snap *page.Snapshot) (Extraction, error) {
	p := a.current()
	return a.extract(ctx, p, snap, p.docs)
}

func (a *App) extract(ctx context.Context, p pipeline, snap *page.Snapshot, docs fetch.Getter) (Extraction, error) {
	if snap == nil || strings.TrimSpace(snap.URL) == "" {
		return Extraction{}, errors.New("snapshot url is empty")
	}
	deps := extract.Deps{API: p.api, Documents: docs, BilibiliCookie: p.cfg.BilibiliCookie}
	raw, err := extract.Run(ctx, snap, deps)
	if err != nil {
		return Extraction{}, err
	}
	merged := content.Merge(raw.Fragments)
	log.Debug().Str("url", snap.URL).Str("kind", raw.Kind.String()).Strs("sources", merged.Sources).Int("chars", len([]rune(merged.Text))).Msg("content merged")
	return Extraction{Kind: raw.Kind.String(), Raw: raw, Merged: merged}, nil
}

// SaveOptions overrides the configured storage flags for one save.
type SaveOptions struct {
	SaveOriginalContent *bool `json:"saveOriginalContent,omitempty"`
	SaveImages          *bool `json:"saveImages,omitempty"`
}

// SaveURL fetches rawURL and saves it.
func (a *App) SaveURL(ctx context.Context, rawURL string, opts SaveOptions) (store.Article, error) {
	p := a.current()
	ctx, cancel := withTimeout(ctx, p.cfg.SaveTimeout)
	defer cancel()
	snap, docs, err := a.acquire(ctx, p, rawURL)
	if err != nil {
		return store.Article{}, err
	}
	return a.save(ctx, p, snap, docs, opts)
}

// Save extracts, summarizes and persists a snapshot. Nothing is stored when
// any step fails.
func (a *App) Save(ctx context.Context, snap *page.Snapshot, opts SaveOptions) (store.Article, error) {
	p := a.current()
	ctx, cancel := withTimeout(ctx, p.cfg.SaveTimeout)
	defer cancel()
	return a.save(ctx, p, snap, p.docs, opts)
}

func (a *App) save(ctx context.Context, p pipeline, snap *page.Snapshot, docs fetch.Getter, opts SaveOptions) (store.Article, error) {
	summarizer, err := a.summarizer(p)
	if err != nil {
		return store.Article{}, err
	}
	ex, err := a.extract(ctx, p, snap, docs)
	if err != nil {
		return store.Article{}, err
	}
	res, err := summarizer.GenerateSummary(ctx, ex.Merged.Text)
	if err != nil {
		return store.Article{}, fmt.Errorf("summarize: %w", err)
	}
	flags := saveFlags{
		original: boolOr(opts.SaveOriginalContent, p.cfg.SaveOriginalContent),
		images:   boolOr(opts.SaveImages, p.cfg.SaveImages),
	}
	art := buildArticle(ex, res, flags, uuid.NewString(), a.now().UTC())
	if err := a.store.Append(ctx, art); err != nil {
		return store.Article{}, fmt.Errorf("store article: %w", err)
	}
	log.Info().Str("id", art.ID).Str("type", art.Type).Str("vendor", summarizer.Vendor()).Str("title", art.Title).Msg("article saved")
	return art, nil
}

func (a *App) summarizer(p pipeline) (ai.Adapter, error) {
	key, err := p.cfg.APIKey()
	if err != nil {
		return nil, err
	}
	opts := []ai.Option{ai.WithHTTPClient(p.vendor)}
	if p.cfg.AIBaseURL != "" {
		opts = append(opts, ai.WithBaseURL(p.cfg.AIBaseURL))
	}
	opts = append(opts, a.aiOpts...)
	adapter, err := ai.New(p.cfg.AIModel, key, p.cfg.Summary, opts...)
	if err != nil {
		return nil, err
	}
	if p.summaries == nil {
		return adapter, nil
	}
	return &ai.Cached{Next: adapter, Cache: p.summaries, Config: p.cfg.Summary}, nil
}

func (a *App) List(ctx context.Context) ([]store.Article, error) { return a.store.List(ctx) }

func (a *App) Get(ctx context.Context, id string) (store.Article, error) {
	return a.store.Get(ctx, id)
}

func (a *App) UpdateTags(ctx context.Context, id string, tags []string) (store.Article, error) {
	return a.store.UpdateTags(ctx, id, tags)
}

func (a *App) Delete(ctx context.Context, id string) error { return a.store.Delete(ctx, id) }

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
