package app

import (
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/MitsuhaFe/Digest-AI/internal/ai"
	"github.com/MitsuhaFe/Digest-AI/internal/content"
	"github.com/MitsuhaFe/Digest-AI/internal/store"
)

type saveFlags struct {
	original bool
	images   bool
}

// buildArticle assembles the stored record. Video content is always kept;
// the storage flags only apply to webpages and PDFs.
func buildArticle(ex Extraction, res ai.Result, flags saveFlags, id string, now time.Time) store.Article {
	raw := ex.Raw
	art := store.Article{
		ID:                 id,
		Type:               raw.Kind.String(),
		Title:              strings.TrimSpace(raw.Title),
		URL:                raw.URL,
		Source:             resolveSource(raw),
		DateAdded:          now,
		Content:            ex.Merged.Text,
		Excerpt:            raw.Excerpt,
		Summary:            res.Summary,
		KeyPoints:          nonNil(res.KeyPoints),
		Tags:               []string{},
		SuggestedTags:      nonNil(res.SuggestedTags),
		HasOriginalContent: flags.original,
		ContentSources:     nonNil(ex.Merged.Sources),
		VideoMetadata:      raw.Video,
		PDFMetadata:        raw.PDF,
	}
	if art.Title == "" {
		art.Title = raw.URL
	}
	if raw.Webpage != nil {
		art.HTMLContent = raw.Webpage.HTML
		art.Byline = raw.Webpage.Byline
	}
	if raw.Video != nil {
		art.Byline = raw.Video.Author
	}
	if !raw.Kind.IsVideo() {
		if !flags.images {
			art.HTMLContent = StripImages(art.HTMLContent)
		}
		if !flags.original {
			art.Content = ""
			art.HTMLContent = ""
		}
	}
	return art
}

// resolveSource prefers the site name, then the video author, then the host.
func resolveSource(raw *content.RawExtraction) string {
	if raw.Webpage != nil && strings.TrimSpace(raw.Webpage.SiteName) != "" {
		return strings.TrimSpace(raw.Webpage.SiteName)
	}
	if raw.Video != nil && strings.TrimSpace(raw.Video.Author) != "" {
		return strings.TrimSpace(raw.Video.Author)
	}
	u, err := url.Parse(raw.URL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// StripImages removes <img> and <figure> elements. Fragments come back as
// fragments; a complete document keeps its <html> wrapper.
func StripImages(html string) string {
	if strings.TrimSpace(html) == "" {
		return html
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find("img, figure").Remove()
	var out string
	if strings.Contains(strings.ToLower(html), "<html") {
		out, err = doc.Html()
	} else {
		out, err = doc.Find("body").Html()
	}
	if err != nil {
		return html
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
