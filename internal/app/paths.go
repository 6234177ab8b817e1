package app

import (
	"regexp"
	"strings"

	"github.com/MitsuhaFe/Digest-AI/internal/content"
	"github.com/MitsuhaFe/Digest-AI/internal/store"
)

var nonWordRe = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// ExportFileName derives a stable download name: the slugified title plus
// the first eight characters of the article id.
func ExportFileName(a store.Article, ext string) string {
	slug := content.Truncate(slugify(a.Title), 60)
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "article"
	}
	id := a.ID
	if len(id) > 8 {
		id = id[:8]
	}
	if id != "" {
		slug += "-" + id
	}
	return slug + "." + strings.TrimPrefix(ext, ".")
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonWordRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
