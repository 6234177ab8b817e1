package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MitsuhaFe/Digest-AI/internal/ai"
	"github.com/MitsuhaFe/Digest-AI/internal/store"
)

// Config holds runtime configuration for the application.
type Config struct {
	// AI
	AIModel      string
	APIKeys      map[string]string
	LegacyAPIKey string
	AIBaseURL    string
	Summary      ai.Config

	// Save behavior
	SaveOriginalContent bool
	SaveImages          bool
	BilibiliCookie      string
	UserAgent           string

	// Storage
	DBPath string
	MinIO  store.MinIOConfig

	// Export
	PDFFontPath string

	// Cache
	CacheDir         string
	CacheMaxAge      time.Duration
	CacheStrictPerms bool
	NoSummaryCache   bool

	// Server and limits
	ListenAddr  string
	SaveTimeout time.Duration
	HTTPTimeout time.Duration
	Verbose     bool
}

const (
	defaultUserAgent   = "Digest-AI/1.0 (+https://github.com/MitsuhaFe/Digest-AI)"
	defaultDBPath      = "digest.db"
	defaultCacheDir    = ".digest-cache"
	defaultListenAddr  = "127.0.0.1:8787"
	defaultSaveTimeout = 90 * time.Second
	defaultHTTPTimeout = 20 * time.Second
)

// DefaultConfig mirrors the extension's defaults.
func DefaultConfig() Config {
	return Config{
		AIModel:             ai.VendorGemini,
		APIKeys:             map[string]string{},
		Summary:             ai.DefaultConfig(),
		SaveOriginalContent: true,
		SaveImages:          true,
		UserAgent:           defaultUserAgent,
		DBPath:              defaultDBPath,
		CacheDir:            defaultCacheDir,
		ListenAddr:          defaultListenAddr,
		SaveTimeout:         defaultSaveTimeout,
		HTTPTimeout:         defaultHTTPTimeout,
	}
}

// ErrMissingAPIKey means neither the vendor key nor the legacy key is set.
var ErrMissingAPIKey = errors.New("missing API key")

// APIKey resolves the key of the selected vendor, falling back to the legacy
// single key.
func (c Config) APIKey() (string, error) {
	vendor := strings.ToLower(strings.TrimSpace(c.AIModel))
	if k := strings.TrimSpace(c.APIKeys[vendor]); k != "" {
		return k, nil
	}
	if k := strings.TrimSpace(c.LegacyAPIKey); k != "" {
		return k, nil
	}
	name := ai.DisplayNames[vendor]
	if name == "" {
		name = c.AIModel
	}
	return "", fmt.Errorf("%w: configure the %s API key", ErrMissingAPIKey, name)
}

func (c *Config) setAPIKey(vendor, key string) {
	if c.APIKeys == nil {
		c.APIKeys = map[string]string{}
	}
	c.APIKeys[vendor] = key
}
