package cache

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"
)

const summarySuffix = ".json"

// SummaryCache stores model replies so saving the same text twice with the
// same settings costs one vendor call.
type SummaryCache struct {
	Dir string
	// StrictPerms enforces 0700 on the directory and 0600 on entries.
	StrictPerms bool
}

// SummaryKey derives the entry name for a vendor, model and rendered prompt.
func SummaryKey(vendor, model, prompt string) string {
	return digest(vendor, model, "", prompt)
}

func (c *SummaryCache) dir() dir { return dir{path: c.Dir, strict: c.StrictPerms} }

// Get returns the cached reply for key. Hits refresh the entry's mtime so
// age-based purging keeps summaries that are still being reused.
func (c *SummaryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	p := c.dir().file(key + summarySuffix)
	b, err := os.ReadFile(p)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	now := time.Now()
	_ = os.Chtimes(p, now, now)
	return b, true, nil
}

func (c *SummaryCache) Save(_ context.Context, key string, data []byte) error {
	return c.dir().write(key+summarySuffix, data)
}
