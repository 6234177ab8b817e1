package ai

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/MitsuhaFe/Digest-AI/internal/cache"
)

// Cached serves repeated summaries of identical prompts from disk. Only
// successful results are stored.
type Cached struct {
	Next   Adapter
	Cache  *cache.SummaryCache
	Config Config
}

func (c *Cached) Vendor() string { return c.Next.Vendor() }

func (c *Cached) GenerateSummary(ctx context.Context, text string) (Result, error) {
	if c.Cache == nil {
		return c.Next.GenerateSummary(ctx, text)
	}
	model := ""
	if m, ok := c.Next.(interface{ Model() string }); ok {
		model = m.Model()
	}
	key := cache.SummaryKey(c.Next.Vendor(), model, tagMode(c.Config)+BuildPrompt(c.Config, text))
	if raw, ok, err := c.Cache.Get(ctx, key); err == nil && ok {
		var res Result
		if json.Unmarshal(raw, &res) == nil {
			log.Debug().Str("vendor", c.Next.Vendor()).Msg("summary cache hit")
			return res, nil
		}
	}
	res, err := c.Next.GenerateSummary(ctx, text)
	if err != nil {
		return Result{}, err
	}
	if raw, err := json.Marshal(res); err == nil {
		if err := c.Cache.Save(ctx, key, raw); err != nil {
			log.Warn().Err(err).Msg("summary cache write failed")
		}
	}
	return res, nil
}

// tagMode keeps results with and without tags apart under the same prompt.
func tagMode(cfg Config) string {
	if cfg.EnableAutoTags {
		return "tags\n"
	}
	return "notags\n"
}
