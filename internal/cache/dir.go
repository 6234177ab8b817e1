package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// dir is a flat directory of entries named by a hex digest.
type dir struct {
	path   string
	strict bool
}

func (d dir) ensure() error {
	if strings.TrimSpace(d.path) == "" {
		return errors.New("cache dir not configured")
	}
	perm := os.FileMode(0o755)
	if d.strict {
		perm = 0o700
	}
	if err := os.MkdirAll(d.path, perm); err != nil {
		return err
	}
	if d.strict {
		// MkdirAll leaves an existing directory's mode alone.
		if info, err := os.Stat(d.path); err == nil && info.Mode().Perm() != 0o700 {
			return os.Chmod(d.path, 0o700)
		}
	}
	return nil
}

func (d dir) file(name string) string { return filepath.Join(d.path, name) }

// write replaces name through a temp file and rename.
func (d dir) write(name string, data []byte) error {
	if err := d.ensure(); err != nil {
		return err
	}
	mode := os.FileMode(0o644)
	if d.strict {
		mode = 0o600
	}
	tmp, err := os.CreateTemp(d.path, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), d.file(name))
}

func digest(parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "\n")))
	return hex.EncodeToString(h[:])
}
