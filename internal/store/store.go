// Package store persists saved articles. Two backends exist: a SQLite file
// for the local server and CLI, and an S3-compatible bucket.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MitsuhaFe/Digest-AI/internal/content"
)

// ErrNotFound is returned when no article has the requested id.
var ErrNotFound = errors.New("article not found")

// Article is one saved item as shown in the dashboard.
type Article struct {
	ID                 string             `json:"id"`
	Type               string             `json:"type"`
	Title              string             `json:"title"`
	URL                string             `json:"url"`
	Source             string             `json:"source"`
	DateAdded          time.Time          `json:"dateAdded"`
	Content            string             `json:"content"`
	HTMLContent        string             `json:"htmlContent,omitempty"`
	Excerpt            string             `json:"excerpt"`
	Summary            string             `json:"summary"`
	KeyPoints          []string           `json:"keyPoints"`
	Tags               []string           `json:"tags"`
	SuggestedTags      []string           `json:"suggestedTags"`
	Byline             string             `json:"byline,omitempty"`
	HasOriginalContent bool               `json:"hasOriginalContent"`
	ContentSources     []string           `json:"contentSources"`
	VideoMetadata      *content.VideoMeta `json:"videoMetadata,omitempty"`
	PDFMetadata        *content.PDFMeta   `json:"pdfMetadata,omitempty"`
}

// Store is the persistence collaborator of the save pipeline.
type Store interface {
	Append(ctx context.Context, a Article) error
	// List returns every article, newest first.
	List(ctx context.Context) ([]Article, error)
	Get(ctx context.Context, id string) (Article, error)
	UpdateTags(ctx context.Context, id string, tags []string) (Article, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// FilterType keeps articles of the given type. "video" matches every
// video platform.
func FilterType(list []Article, kind string) []Article {
	out := make([]Article, 0, len(list))
	for _, a := range list {
		if a.Type == kind || (kind == "video" && strings.HasPrefix(a.Type, "video-")) {
			out = append(out, a)
		}
	}
	return out
}

// NormalizeTags trims, drops empties and de-duplicates while keeping order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = trimTag(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func trimTag(t string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(t), "#"))
}
