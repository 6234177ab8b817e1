package ai

import (
	"strconv"
	"strings"

	"github.com/MitsuhaFe/Digest-AI/internal/content"
)

// MaxPromptChars caps the article text substituted into the prompt.
const MaxPromptChars = 8000

// DefaultPromptTemplate asks for a Chinese summary, key points and tags as
// JSON. Placeholders: {{TEXT}}, {{SUMMARY_LENGTH}}, {{TAG_COUNT}}.
const DefaultPromptTemplate = `请分析以下文章内容，生成一个约 {{SUMMARY_LENGTH}} 字的简洁中文摘要、{{TAG_COUNT}} 个核心观点和 {{TAG_COUNT}} 个相关标签。

请按照以下 JSON 格式返回结果：
{
  "summary": "文章摘要内容...",
  "keyPoints": [
    "核心观点1",
    "核心观点2",
    "核心观点3"
  ],
  "tags": [
    "标签1",
    "标签2",
    "标签3"
  ]
}

文章内容：
{{TEXT}}

请直接返回 JSON 格式的结果，不要包含其他文字。`

const (
	systemPromptTags   = "你是一个专业的文章摘要助手，擅长提取文章的核心内容和关键观点，并能推荐相关标签。请始终用中文回复，并严格按照要求的 JSON 格式返回结果。"
	systemPromptNoTags = "你是一个专业的文章摘要助手，擅长提取文章的核心内容和关键观点。请始终用中文回复，并严格按照要求的 JSON 格式返回结果。"
)

// BuildPrompt fills the active template in a single pass, so placeholders
// inside the article text are left alone.
func BuildPrompt(cfg Config, text string) string {
	tmpl := DefaultPromptTemplate
	if cfg.EnableCustomPrompt && strings.TrimSpace(cfg.CustomPrompt) != "" {
		tmpl = cfg.CustomPrompt
	}
	length := cfg.SummaryLength
	if length <= 0 {
		length = 200
	}
	tags := cfg.TagCount
	if tags <= 0 {
		tags = 3
	}
	r := strings.NewReplacer(
		"{{TEXT}}", content.Truncate(text, MaxPromptChars),
		"{{SUMMARY_LENGTH}}", strconv.Itoa(length),
		"{{TAG_COUNT}}", strconv.Itoa(tags),
	)
	return r.Replace(tmpl)
}

// SystemPrompt returns the system message for chat-style vendors.
func SystemPrompt(autoTags bool) string {
	if autoTags {
		return systemPromptTags
	}
	return systemPromptNoTags
}
