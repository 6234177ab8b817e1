package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/MitsuhaFe/Digest-AI/internal/ai"
	"github.com/MitsuhaFe/Digest-AI/internal/store"
)

// FileConfig is the single-file configuration schema. Keys follow the
// extension's settings names so an exported settings object can be reused.
type FileConfig struct {
	AIModel string            `yaml:"aiModel" json:"aiModel"`
	APIKey  string            `yaml:"apiKey" json:"apiKey"`
	APIKeys map[string]string `yaml:"apiKeys" json:"apiKeys"`
	AIBase  string            `yaml:"aiBaseURL" json:"aiBaseURL"`
	Model   string            `yaml:"model" json:"model"`

	SummaryLength      int    `yaml:"summaryLength" json:"summaryLength"`
	TagCount           int    `yaml:"tagCount" json:"tagCount"`
	EnableAutoTags     *bool  `yaml:"enableAutoTags" json:"enableAutoTags"`
	EnableCustomPrompt *bool  `yaml:"enableCustomPrompt" json:"enableCustomPrompt"`
	CustomPrompt       string `yaml:"customPrompt" json:"customPrompt"`

	SaveOriginalContent *bool `yaml:"saveOriginalContent" json:"saveOriginalContent"`
	SaveImages          *bool `yaml:"saveImages" json:"saveImages"`

	Bilibili struct {
		Cookie string `yaml:"cookie" json:"cookie"`
	} `yaml:"bilibili" json:"bilibili"`

	Store struct {
		Path  string            `yaml:"path" json:"path"`
		MinIO store.MinIOConfig `yaml:"minio" json:"minio"`
	} `yaml:"store" json:"store"`

	Cache struct {
		Dir            string        `yaml:"dir" json:"dir"`
		MaxAge         time.Duration `yaml:"maxAge" json:"maxAge"`
		StrictPerms    bool          `yaml:"strictPerms" json:"strictPerms"`
		DisableSummary bool          `yaml:"disableSummary" json:"disableSummary"`
	} `yaml:"cache" json:"cache"`

	HTTP struct {
		Listen    string        `yaml:"listen" json:"listen"`
		Timeout   time.Duration `yaml:"timeout" json:"timeout"`
		UserAgent string        `yaml:"userAgent" json:"userAgent"`
	} `yaml:"http" json:"http"`

	Export struct {
		PDFFont string `yaml:"pdfFont" json:"pdfFont"`
	} `yaml:"export" json:"export"`

	Save struct {
		Timeout time.Duration `yaml:"timeout" json:"timeout"`
	} `yaml:"save" json:"save"`

	Verbose bool `yaml:"verbose" json:"verbose"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays every value the file sets onto cfg. Call it on a
// DefaultConfig before env and flags are applied.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	if fc.AIModel != "" {
		cfg.AIModel = fc.AIModel
	}
	if fc.APIKey != "" {
		cfg.LegacyAPIKey = fc.APIKey
	}
	for vendor, key := range fc.APIKeys {
		if strings.TrimSpace(key) != "" {
			cfg.setAPIKey(strings.ToLower(vendor), key)
		}
	}
	if fc.AIBase != "" {
		cfg.AIBaseURL = fc.AIBase
	}
	if fc.Model != "" {
		cfg.Summary.Model = fc.Model
	}
	if fc.SummaryLength > 0 {
		cfg.Summary.SummaryLength = fc.SummaryLength
	}
	if fc.TagCount > 0 {
		cfg.Summary.TagCount = fc.TagCount
	}
	if fc.EnableAutoTags != nil {
		cfg.Summary.EnableAutoTags = *fc.EnableAutoTags
	}
	if fc.EnableCustomPrompt != nil {
		cfg.Summary.EnableCustomPrompt = *fc.EnableCustomPrompt
	}
	if fc.CustomPrompt != "" {
		cfg.Summary.CustomPrompt = fc.CustomPrompt
	}
	if fc.SaveOriginalContent != nil {
		cfg.SaveOriginalContent = *fc.SaveOriginalContent
	}
	if fc.SaveImages != nil {
		cfg.SaveImages = *fc.SaveImages
	}
	if fc.Bilibili.Cookie != "" {
		cfg.BilibiliCookie = fc.Bilibili.Cookie
	}

	if fc.Store.Path != "" {
		cfg.DBPath = fc.Store.Path
	}
	if fc.Store.MinIO.Endpoint != "" {
		cfg.MinIO = fc.Store.MinIO
	}

	if fc.Cache.Dir != "" {
		cfg.CacheDir = fc.Cache.Dir
	}
	if fc.Cache.MaxAge > 0 {
		cfg.CacheMaxAge = fc.Cache.MaxAge
	}
	if fc.Cache.StrictPerms {
		cfg.CacheStrictPerms = true
	}
	if fc.Cache.DisableSummary {
		cfg.NoSummaryCache = true
	}

	if fc.HTTP.Listen != "" {
		cfg.ListenAddr = fc.HTTP.Listen
	}
	if fc.HTTP.Timeout > 0 {
		cfg.HTTPTimeout = fc.HTTP.Timeout
	}
	if fc.HTTP.UserAgent != "" {
		cfg.UserAgent = fc.HTTP.UserAgent
	}
	if fc.Export.PDFFont != "" {
		cfg.PDFFontPath = fc.Export.PDFFont
	}
	if fc.Save.Timeout > 0 {
		cfg.SaveTimeout = fc.Save.Timeout
	}
	if fc.Verbose {
		cfg.Verbose = true
	}
}

// ValidateConfig performs minimal schema validation for required settings.
// API keys are checked at save time so list, tag and export work without one.
func ValidateConfig(cfg Config) error {
	vendor := strings.ToLower(strings.TrimSpace(cfg.AIModel))
	if vendor == "" {
		return errors.New("config: aiModel is required (or set AI_MODEL)")
	}
	if _, ok := ai.DefaultModels[vendor]; !ok {
		return fmt.Errorf("config: %w: %q", ai.ErrUnsupportedVendor, cfg.AIModel)
	}
	if cfg.Summary.SummaryLength < 0 || cfg.Summary.TagCount < 0 {
		return errors.New("config: negative summaryLength or tagCount")
	}
	if cfg.Summary.EnableCustomPrompt && strings.TrimSpace(cfg.Summary.CustomPrompt) != "" &&
		!strings.Contains(cfg.Summary.CustomPrompt, "{{TEXT}}") {
		return errors.New("config: customPrompt must contain {{TEXT}}")
	}
	if cfg.SaveTimeout < 0 || cfg.HTTPTimeout < 0 {
		return errors.New("config: negative timeouts are not allowed")
	}
	if strings.TrimSpace(cfg.DBPath) == "" && strings.TrimSpace(cfg.MinIO.Endpoint) == "" {
		return errors.New("config: store.path or store.minio.endpoint is required")
	}
	if cfg.MinIO.Endpoint != "" && strings.TrimSpace(cfg.MinIO.Bucket) == "" {
		return errors.New("config: store.minio.bucket is required with an endpoint")
	}
	return nil
}
