package extract

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/rs/zerolog/log"

	"github.com/MitsuhaFe/Digest-AI/internal/content"
	"github.com/MitsuhaFe/Digest-AI/internal/page"
)

const (
	excerptChars      = 300
	minContainerChars = 200
	webpageFragWeight = 1
)

var (
	containerSelectors = []string{
		"article",
		`[role="main"]`,
		"main",
		".article-content",
		".post-content",
		".entry-content",
		"#content",
		".content",
	}
	unwantedSelectors = "script, style, nav, header, footer, iframe, .ad, .advertisement, .social-share, .comments"
	titleSelectors    = []string{"h1", ".article-title", ".post-title", `[property="og:title"]`, `[name="twitter:title"]`}
	authorSelectors   = []string{`[rel="author"]`, ".author", ".byline", `[property="article:author"]`, `[name="author"]`}
)

// Webpage extracts the main readable text of an ordinary page.
type Webpage struct{}

func (Webpage) Kind() content.Kind { return content.KindWebpage }

// Extract runs readability first and falls back to selector-based
// extraction. It only fails when the snapshot carries no HTML at all.
func (w Webpage) Extract(ctx context.Context, snap *page.Snapshot) (*content.RawExtraction, error) {
	if strings.TrimSpace(snap.HTML) == "" {
		return nil, content.Fail(content.KindWebpage, errors.New("empty document"))
	}
	res, err := w.readable(snap)
	if err != nil {
		log.Debug().Err(err).Str("url", snap.URL).Msg("readability failed; using selector fallback")
		res = w.fallback(snap)
	}
	res.Kind = content.KindWebpage
	res.URL = snap.URL
	if res.Webpage.SiteName == "" {
		res.Webpage.SiteName = siteName(snap)
	}
	res.EnsureFragments()
	return res, nil
}

func (Webpage) readable(snap *page.Snapshot) (*content.RawExtraction, error) {
	u, err := url.Parse(snap.URL)
	if err != nil || u == nil {
		u = &url.URL{}
	}
	article, err := readability.FromReader(strings.NewReader(snap.HTML), u)
	if err != nil {
		return nil, err
	}
	text := CollapseWhitespace(article.TextContent)
	if text == "" {
		return nil, errors.New("readability found no text")
	}
	title := strings.TrimSpace(article.Title)
	if title == "" {
		title = snap.DocumentTitle()
	}
	excerpt := strings.TrimSpace(article.Excerpt)
	if excerpt == "" {
		excerpt = content.Truncate(text, excerptChars)
	}
	return &content.RawExtraction{
		Title:     title,
		Fragments: []content.Fragment{{Source: content.SourceWebpage, Text: text, Weight: webpageFragWeight}},
		Excerpt:   excerpt,
		Webpage: &content.WebpageMeta{
			Byline:   strings.TrimSpace(article.Byline),
			SiteName: siteName(snap),
			HTML:     article.Content,
			Length:   article.Length,
		},
	}, nil
}

// fallback picks the first content container with enough text, strips
// chrome and collapses whitespace. When goquery cannot parse the snapshot
// the x/net/html walk takes over.
func (Webpage) fallback(snap *page.Snapshot) *content.RawExtraction {
	doc, err := snap.Document()
	if err != nil {
		d := FromHTML(snap.HTML)
		return textOnly(snap, d.Title, d.Text)
	}
	var container *goquery.Selection
	for _, sel := range containerSelectors {
		el := doc.Find(sel).First()
		if el.Length() > 0 && len([]rune(strings.TrimSpace(el.Text()))) > minContainerChars {
			container = el
			break
		}
	}
	if container == nil {
		container = doc.Find("body").First()
	}
	htmlContent, _ := container.Html()
	clone := container.Clone()
	clone.Find(unwantedSelectors).Remove()
	text := CollapseWhitespace(clone.Text())
	if text == "" {
		text = FromHTML(snap.HTML).Text
	}
	title := firstMatch(doc, titleSelectors)
	if title == "" {
		title = snap.DocumentTitle()
	}
	res := textOnly(snap, title, text)
	res.Webpage.HTML = htmlContent
	res.Webpage.Byline = firstMatch(doc, authorSelectors)
	return res
}

func textOnly(snap *page.Snapshot, title, text string) *content.RawExtraction {
	res := &content.RawExtraction{
		Title:   title,
		Excerpt: content.Truncate(text, excerptChars),
		Webpage: &content.WebpageMeta{SiteName: siteName(snap), Length: len([]rune(text))},
	}
	if text != "" {
		res.Fragments = []content.Fragment{{Source: content.SourceWebpage, Text: text, Weight: webpageFragWeight}}
	}
	return res
}

// firstMatch returns the content attribute or trimmed text of the first
// element matching any selector, in selector order.
func firstMatch(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		el := doc.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		if v, ok := el.Attr("content"); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return strings.TrimSpace(el.Text())
	}
	return ""
}

func siteName(snap *page.Snapshot) string {
	if doc, err := snap.Document(); err == nil {
		if v, ok := doc.Find(`meta[property="og:site_name"]`).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	u, err := url.Parse(snap.URL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
