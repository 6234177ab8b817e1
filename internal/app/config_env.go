package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MitsuhaFe/Digest-AI/internal/ai"
)

// vendorKeyEnv maps each vendor to its API key variable.
var vendorKeyEnv = map[string]string{
	ai.VendorGemini:     "GEMINI_API_KEY",
	ai.VendorOpenAI:     "OPENAI_API_KEY",
	ai.VendorClaude:     "CLAUDE_API_KEY",
	ai.VendorDeepSeek:   "DEEPSEEK_API_KEY",
	ai.VendorQwen:       "QWEN_API_KEY",
	ai.VendorOpenRouter: "OPENROUTER_API_KEY",
}

// ApplyEnvOverrides forcefully overrides cfg fields with environment variables
// when the corresponding env vars are set. Env wins over the config file;
// flags are applied afterwards and win over env.
func ApplyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}
	setString := func(dst *string, envKey string) {
		if v := os.Getenv(envKey); v != "" {
			*dst = v
		}
	}
	setString(&cfg.AIModel, "AI_MODEL")
	setString(&cfg.LegacyAPIKey, "API_KEY")
	setString(&cfg.AIBaseURL, "AI_BASE_URL")
	setString(&cfg.Summary.Model, "AI_MODEL_NAME")
	setString(&cfg.Summary.CustomPrompt, "CUSTOM_PROMPT")
	setString(&cfg.BilibiliCookie, "BILIBILI_COOKIE")
	setString(&cfg.DBPath, "DB_PATH")
	setString(&cfg.CacheDir, "CACHE_DIR")
	setString(&cfg.ListenAddr, "LISTEN_ADDR")
	setString(&cfg.UserAgent, "USER_AGENT")
	setString(&cfg.PDFFontPath, "PDF_FONT")
	setString(&cfg.MinIO.Endpoint, "MINIO_ENDPOINT")
	setString(&cfg.MinIO.AccessKeyID, "MINIO_ACCESS_KEY")
	setString(&cfg.MinIO.SecretAccessKey, "MINIO_SECRET_KEY")
	setString(&cfg.MinIO.Bucket, "MINIO_BUCKET")
	setString(&cfg.MinIO.Prefix, "MINIO_PREFIX")
	for vendor, key := range vendorKeyEnv {
		if v := os.Getenv(key); v != "" {
			cfg.setAPIKey(vendor, v)
		}
	}

	setInt := func(dst *int, envKey string) {
		if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(envKey))); err == nil && n > 0 {
			*dst = n
		}
	}
	setInt(&cfg.Summary.SummaryLength, "SUMMARY_LENGTH")
	setInt(&cfg.Summary.TagCount, "TAG_COUNT")

	setDuration := func(dst *time.Duration, envKey string) {
		if d, err := time.ParseDuration(strings.TrimSpace(os.Getenv(envKey))); err == nil {
			*dst = d
		}
	}
	setDuration(&cfg.CacheMaxAge, "CACHE_MAX_AGE")
	setDuration(&cfg.SaveTimeout, "SAVE_TIMEOUT")
	setDuration(&cfg.HTTPTimeout, "HTTP_TIMEOUT")

	setBool := func(dst *bool, envKey string) {
		if v, ok := parseBool(os.Getenv(envKey)); ok {
			*dst = v
		}
	}
	setBool(&cfg.Summary.EnableAutoTags, "ENABLE_AUTO_TAGS")
	setBool(&cfg.Summary.EnableCustomPrompt, "ENABLE_CUSTOM_PROMPT")
	setBool(&cfg.SaveOriginalContent, "SAVE_ORIGINAL_CONTENT")
	setBool(&cfg.SaveImages, "SAVE_IMAGES")
	setBool(&cfg.CacheStrictPerms, "CACHE_STRICT_PERMS")
	setBool(&cfg.NoSummaryCache, "NO_SUMMARY_CACHE")
	setBool(&cfg.Verbose, "VERBOSE")
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}
