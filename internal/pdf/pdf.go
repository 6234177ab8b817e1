// Package pdf extracts text from PDF documents through a chain of sources:
// the host viewer, a parsing library over the document bytes, and the
// rendered text layers of the page.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/MitsuhaFe/Digest-AI/internal/content"
	"github.com/MitsuhaFe/Digest-AI/internal/page"
)

// MaxPages caps how many pages any source reads.
const MaxPages = 50

// Extraction methods recorded in PDFMeta.Method.
const (
	MethodViewer  = "chrome-viewer"
	MethodLibrary = "pdfjs"
	MethodDOM     = "dom"
	MethodBody    = "body"
)

const (
	defaultTitle      = "PDF文档"
	minBodyChars      = 100
	minParagraphChars = 20
	excerptParagraphs = 3
	excerptChars      = 500
	pdfFragmentWeight = 1
)

// Document is an opened PDF. Pages are numbered from 1.
type Document interface {
	NumPages() int
	PageText(ctx context.Context, n int) (string, error)
	Info() content.PDFInfo
}

// PageTextSource opens the document at a URL.
type PageTextSource interface {
	Open(ctx context.Context, url string) (Document, error)
}

// ErrNoViewer means the snapshot carried no host viewer text.
var ErrNoViewer = errors.New("no host viewer text")

var (
	filenameRe = regexp.MustCompile(`(?i)([^/]+)\.pdf`)
	hanRe      = regexp.MustCompile(`[\x{4e00}-\x{9fa5}]`)
	latinRe    = regexp.MustCompile(`[a-zA-Z]+`)
)

// Adapter extracts PDFs. A nil Viewer reads the per-page text carried by
// the snapshot; a nil Library skips the library tier.
type Adapter struct {
	Viewer  PageTextSource
	Library PageTextSource
}

func (a *Adapter) Kind() content.Kind { return content.KindDocumentPDF }

type tierResult struct {
	text      string
	pages     int
	extracted int
	method    string
	info      content.PDFInfo
}

// Extract tries each tier in order and keeps the first non-empty text.
func (a *Adapter) Extract(ctx context.Context, snap *page.Snapshot) (*content.RawExtraction, error) {
	viewer := a.Viewer
	if viewer == nil {
		viewer = SnapshotViewer{Snap: snap}
	}
	res, ok := fromSource(ctx, viewer, snap.URL, MethodViewer)
	if !ok && a.Library != nil {
		res, ok = fromSource(ctx, a.Library, snap.URL, MethodLibrary)
	}
	if !ok {
		res, ok = fromDOM(snap)
	}
	if !ok {
		return nil, content.Fail(content.KindDocumentPDF, content.ErrNoExtractableText)
	}
	info := res.info
	if info == (content.PDFInfo{}) && snap.PDFInfo != nil {
		info = *snap.PDFInfo
	}
	log.Debug().Str("url", snap.URL).Str("method", res.method).Int("pages", res.pages).Int("extracted", res.extracted).Msg("pdf text extracted")

	return &content.RawExtraction{
		Kind:      content.KindDocumentPDF,
		Title:     resolveTitle(info, snap),
		URL:       snap.URL,
		Fragments: []content.Fragment{{Source: content.SourcePDF, Text: res.text, Weight: pdfFragmentWeight}},
		Excerpt:   Excerpt(res.text),
		PDF: &content.PDFMeta{
			Pages:          res.pages,
			ExtractedPages: res.extracted,
			Method:         res.method,
			Info:           info,
			FileSize:       FormatFileSize(len(res.text)),
			WordCount:      CountWords(res.text),
		},
	}, nil
}

// fromSource reads up to MaxPages pages; pages that fail are skipped.
func fromSource(ctx context.Context, src PageTextSource, rawURL, method string) (tierResult, bool) {
	doc, err := src.Open(ctx, rawURL)
	if err != nil {
		log.Debug().Err(err).Str("method", method).Msg("pdf source unavailable")
		return tierResult{}, false
	}
	total := doc.NumPages()
	limit := total
	if limit > MaxPages {
		limit = MaxPages
	}
	var b strings.Builder
	visited := 0
	for i := 1; i <= limit; i++ {
		if ctx.Err() != nil {
			break
		}
		visited++
		text, err := doc.PageText(ctx, i)
		if err != nil {
			log.Debug().Err(err).Int("page", i).Str("method", method).Msg("skipping pdf page")
			continue
		}
		b.WriteString(text)
		b.WriteString("\n\n")
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return tierResult{}, false
	}
	return tierResult{text: text, pages: total, extracted: visited, method: method, info: doc.Info()}, true
}

// fromDOM reads rendered .textLayer nodes, else the body when it has
// enough text.
func fromDOM(snap *page.Snapshot) (tierResult, bool) {
	doc, err := snap.Document()
	if err != nil {
		return tierResult{}, false
	}
	layers := doc.Find(".textLayer")
	if layers.Length() > 0 {
		parts := make([]string, 0, layers.Length())
		layers.Each(func(_ int, s *goquery.Selection) {
			parts = append(parts, s.Text())
		})
		text := strings.TrimSpace(strings.Join(parts, "\n\n"))
		if text != "" {
			return tierResult{text: text, pages: len(parts), extracted: len(parts), method: MethodDOM}, true
		}
	}
	body := doc.Find("body").Text()
	if utf8.RuneCountInString(body) > minBodyChars {
		return tierResult{text: strings.TrimSpace(body), pages: 1, extracted: 1, method: MethodBody}, true
	}
	return tierResult{}, false
}

func resolveTitle(info content.PDFInfo, snap *page.Snapshot) string {
	if t := strings.TrimSpace(info.Title); t != "" {
		return t
	}
	if t := TitleFromURL(snap.URL); t != "" {
		return t
	}
	if t := snap.DocumentTitle(); t != "" {
		return t
	}
	return defaultTitle
}

// TitleFromURL turns the file name in a URL into a readable title.
func TitleFromURL(raw string) string {
	m := filenameRe.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	name := m[1]
	if dec, err := url.PathUnescape(name); err == nil {
		name = dec
	}
	return strings.NewReplacer("-", " ", "_", " ").Replace(name)
}

// Excerpt joins the first paragraphs longer than twenty characters.
func Excerpt(text string) string {
	var kept []string
	for _, p := range strings.Split(text, "\n\n") {
		if utf8.RuneCountInString(strings.TrimSpace(p)) > minParagraphChars {
			kept = append(kept, p)
			if len(kept) == excerptParagraphs {
				break
			}
		}
	}
	return content.Truncate(strings.Join(kept, "\n\n"), excerptChars)
}

// FormatFileSize renders a byte count as B, KB or MB.
func FormatFileSize(n int) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.2f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.2f MB", float64(n)/1024/1024)
	}
}

// CountWords counts CJK ideographs plus runs of Latin letters.
func CountWords(text string) int {
	return len(hanRe.FindAllStringIndex(text, -1)) + len(latinRe.FindAllStringIndex(text, -1))
}
