package cache

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ClearDir empties dir, leaving the directory itself in place.
func ClearDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("empty dir")
	}
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// PurgeByAge removes page and summary entries older than maxAge and reports
// how many were removed. Pages age from when they were fetched, summaries
// from when they were last read. A missing dir is not an error.
func PurgeByAge(dir string, maxAge time.Duration) (int, error) {
	if maxAge <= 0 || strings.TrimSpace(dir) == "" {
		return 0, nil
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		switch name := e.Name(); {
		case strings.HasSuffix(name, pageMetaSuffix):
			if !pageExpired(path, cutoff) {
				continue
			}
			_ = os.Remove(strings.TrimSuffix(path, pageMetaSuffix) + pageBodySuffix)
			if os.Remove(path) == nil {
				removed++
			}
		case strings.HasSuffix(name, summarySuffix):
			info, err := e.Info()
			if err != nil || !info.ModTime().Before(cutoff) {
				continue
			}
			if os.Remove(path) == nil {
				removed++
			}
		}
	}
	return removed, nil
}

func pageExpired(metaPath string, cutoff time.Time) bool {
	raw, err := os.ReadFile(metaPath)
	if err != nil {
		return false
	}
	var p Page
	if json.Unmarshal(raw, &p) != nil {
		return false
	}
	return p.SavedAt.Before(cutoff)
}
