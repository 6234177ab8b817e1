package main

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/MitsuhaFe/Digest-AI/internal/app"
)

// commonFlags are accepted by every command. Only flags given on the
// command line are applied, so they win over env and the config file.
type commonFlags struct {
	configPath     string
	envFiles       string
	model          string
	apiKey         string
	baseURL        string
	dbPath         string
	cacheDir       string
	cacheMaxAge    time.Duration
	noSummaryCache bool
	clearCache     bool
	listen         string
	verbose        bool
}

func bindCommon(fs *flag.FlagSet) *commonFlags {
	c := &commonFlags{}
	fs.StringVar(&c.configPath, "config", "", "Path to YAML or JSON config file (default $DIGEST_CONFIG)")
	fs.StringVar(&c.envFiles, "env", ".env", "Comma-separated dotenv files loaded before the config")
	fs.StringVar(&c.model, "model", "", "AI vendor: gemini, openai, claude, deepseek, qwen or openrouter")
	fs.StringVar(&c.apiKey, "key", "", "API key for the selected vendor")
	fs.StringVar(&c.baseURL, "ai.base", "", "Override the vendor API origin, e.g. a local stub")
	fs.StringVar(&c.dbPath, "db", "", "SQLite database path")
	fs.StringVar(&c.cacheDir, "cache.dir", "", "Cache directory path")
	fs.DurationVar(&c.cacheMaxAge, "cache.maxAge", 0, "Max age for cache entries before purge (e.g. 24h); 0 disables")
	fs.BoolVar(&c.noSummaryCache, "cache.noSummary", false, "Always call the AI vendor instead of reusing cached summaries")
	fs.BoolVar(&c.clearCache, "cache.clear", false, "Clear the cache directory before running")
	fs.StringVar(&c.listen, "listen", "", "HTTP listen address for serve")
	fs.BoolVar(&c.verbose, "v", false, "Verbose logging")
	return c
}

// resolvedConfigPath prefers the flag and falls back to DIGEST_CONFIG, which
// may come from a dotenv file.
func (c *commonFlags) resolvedConfigPath() string {
	if strings.TrimSpace(c.configPath) != "" {
		return c.configPath
	}
	return strings.TrimSpace(os.Getenv("DIGEST_CONFIG"))
}

// load builds the effective configuration: defaults, then the config file,
// then environment, then explicit flags.
func (c *commonFlags) load(fs *flag.FlagSet) (app.Config, error) {
	if err := app.LoadEnvFiles(splitList(c.envFiles)...); err != nil {
		return app.Config{}, &usageError{err: err}
	}
	cfg := app.DefaultConfig()
	if path := c.resolvedConfigPath(); path != "" {
		fc, err := app.LoadConfigFile(path)
		if err != nil {
			return cfg, usagef("load config %s: %w", path, err)
		}
		app.ApplyFileConfig(&cfg, fc)
	}
	app.ApplyEnvOverrides(&cfg)
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "model":
			cfg.AIModel = strings.ToLower(strings.TrimSpace(c.model))
		case "ai.base":
			cfg.AIBaseURL = c.baseURL
		case "db":
			cfg.DBPath = c.dbPath
		case "cache.dir":
			cfg.CacheDir = c.cacheDir
		case "cache.maxAge":
			cfg.CacheMaxAge = c.cacheMaxAge
		case "cache.noSummary":
			cfg.NoSummaryCache = c.noSummaryCache
		case "listen":
			cfg.ListenAddr = c.listen
		case "v":
			cfg.Verbose = c.verbose
		}
	})
	if c.apiKey != "" {
		if cfg.APIKeys == nil {
			cfg.APIKeys = map[string]string{}
		}
		cfg.APIKeys[cfg.AIModel] = c.apiKey
	}
	if err := app.ValidateConfig(cfg); err != nil {
		return cfg, &usageError{err: err}
	}
	return cfg, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
