package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

const (
	pageMetaSuffix = ".meta.json"
	pageBodySuffix = ".body"
)

// Page is a fetched document plus the validators used to revalidate it.
type Page struct {
	URL          string    `json:"url"`
	ContentType  string    `json:"content_type"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	SavedAt      time.Time `json:"saved_at"`
	Body         []byte    `json:"-"`
}

// Revalidatable reports whether a conditional request can be made for p.
func (p *Page) Revalidatable() bool {
	return p != nil && (p.ETag != "" || p.LastModified != "")
}

// HTTPCache keeps fetched pages on disk so unchanged documents can be
// revalidated with If-None-Match / If-Modified-Since. Platform API calls made
// by the adapters never go through it.
type HTTPCache struct {
	Dir         string
	StrictPerms bool
}

func (c *HTTPCache) dir() dir { return dir{path: c.Dir, strict: c.StrictPerms} }

// Lookup returns the cached page for url. A miss is reported as an error
// satisfying errors.Is(err, fs.ErrNotExist).
func (c *HTTPCache) Lookup(_ context.Context, url string) (*Page, error) {
	d, key := c.dir(), digest(url)
	raw, err := os.ReadFile(d.file(key + pageMetaSuffix))
	if err != nil {
		return nil, err
	}
	var p Page
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode page meta: %w", err)
	}
	if p.Body, err = os.ReadFile(d.file(key + pageBodySuffix)); err != nil {
		return nil, err
	}
	return &p, nil
}

// Store writes the body before the metadata, so a visible entry always has
// its body.
func (c *HTTPCache) Store(_ context.Context, p Page) error {
	d, key := c.dir(), digest(p.URL)
	if err := d.write(key+pageBodySuffix, p.Body); err != nil {
		return err
	}
	if p.SavedAt.IsZero() {
		p.SavedAt = time.Now().UTC()
	}
	meta, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode page meta: %w", err)
	}
	return d.write(key+pageMetaSuffix, meta)
}
