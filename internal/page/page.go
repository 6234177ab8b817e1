package page

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/MitsuhaFe/Digest-AI/internal/content"
)

// Keys of the embedded page-state objects the adapters read.
const (
	StateBilibili      = "__INITIAL_STATE__"
	StateYouTubePlayer = "ytInitialPlayerResponse"
	StateYouTubeData   = "ytInitialData"
)

// Snapshot is a read-only capture of the page being saved. The extension
// posts it as JSON; the CLI builds one from a fetched document.
type Snapshot struct {
	URL   string `json:"url"`
	MIME  string `json:"mimeType,omitempty"`
	Title string `json:"title,omitempty"`
	HTML  string `json:"html,omitempty"`

	// State holds embedded script objects keyed by their global name.
	State map[string]json.RawMessage `json:"state,omitempty"`

	// Text items per page as exposed by the host PDF viewer, if any.
	PDFPages     [][]string       `json:"pdfPages,omitempty"`
	PDFPageCount int              `json:"pdfPageCount,omitempty"`
	PDFInfo      *content.PDFInfo `json:"pdfInfo,omitempty"`

	doc *goquery.Document
}

// Kind runs the detector over the snapshot's URL and MIME type.
func (s *Snapshot) Kind() content.Kind {
	return content.Detect(s.URL, s.MIME)
}

// Document parses the HTML once and returns the shared goquery document.
// Callers that need to mutate the tree must Clone the selection first.
func (s *Snapshot) Document() (*goquery.Document, error) {
	if s.doc != nil {
		return s.doc, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse snapshot html: %w", err)
	}
	s.doc = doc
	return doc, nil
}

// DocumentTitle prefers the explicit title and falls back to <title>.
func (s *Snapshot) DocumentTitle() string {
	if t := strings.TrimSpace(s.Title); t != "" {
		return t
	}
	doc, err := s.Document()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// DecodeState unmarshals the state object stored under key into dst. It
// reports false when the key is absent or does not decode.
func (s *Snapshot) DecodeState(key string, dst any) bool {
	raw, ok := s.State[key]
	if !ok || len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}
