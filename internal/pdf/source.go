package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	lpdf "github.com/ledongthuc/pdf"

	"github.com/MitsuhaFe/Digest-AI/internal/content"
	"github.com/MitsuhaFe/Digest-AI/internal/fetch"
	"github.com/MitsuhaFe/Digest-AI/internal/page"
)

// SnapshotViewer serves the per-page text items the host viewer exposed
// in the snapshot. The URL passed to Open is ignored.
type SnapshotViewer struct {
	Snap *page.Snapshot
}

func (v SnapshotViewer) Open(context.Context, string) (Document, error) {
	if v.Snap == nil || len(v.Snap.PDFPages) == 0 {
		return nil, ErrNoViewer
	}
	return viewerDoc{snap: v.Snap}, nil
}

type viewerDoc struct {
	snap *page.Snapshot
}

func (d viewerDoc) NumPages() int {
	if d.snap.PDFPageCount > 0 {
		return d.snap.PDFPageCount
	}
	return len(d.snap.PDFPages)
}

func (d viewerDoc) PageText(_ context.Context, n int) (string, error) {
	if n < 1 || n > len(d.snap.PDFPages) {
		return "", fmt.Errorf("page %d not captured", n)
	}
	return strings.Join(d.snap.PDFPages[n-1], " "), nil
}

func (d viewerDoc) Info() content.PDFInfo {
	if d.snap.PDFInfo == nil {
		return content.PDFInfo{}
	}
	return *d.snap.PDFInfo
}

// LibrarySource downloads the document and parses it locally.
type LibrarySource struct {
	Client fetch.Getter
}

func (s *LibrarySource) Open(ctx context.Context, rawURL string) (Document, error) {
	if s.Client == nil {
		return nil, errors.New("no document client")
	}
	body, _, err := s.Client.Get(ctx, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("download pdf: %w", err)
	}
	return Parse(body)
}

// Parse opens an in-memory PDF.
func Parse(data []byte) (Document, error) {
	r, err := lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse pdf: %w", err)
	}
	return &libraryDoc{r: r}, nil
}

type libraryDoc struct {
	r *lpdf.Reader
}

func (d *libraryDoc) NumPages() int { return d.r.NumPage() }

// PageText recovers from parser panics on malformed content streams.
func (d *libraryDoc) PageText(_ context.Context, n int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: %v", n, r)
		}
	}()
	p := d.r.Page(n)
	if p.V.IsNull() {
		return "", fmt.Errorf("page %d missing", n)
	}
	return p.GetPlainText(nil)
}

func (d *libraryDoc) Info() (info content.PDFInfo) {
	defer func() {
		if recover() != nil {
			info = content.PDFInfo{}
		}
	}()
	v := d.r.Trailer().Key("Info")
	if v.IsNull() {
		return content.PDFInfo{}
	}
	return content.PDFInfo{
		Title:        v.Key("Title").Text(),
		Author:       v.Key("Author").Text(),
		Subject:      v.Key("Subject").Text(),
		Keywords:     v.Key("Keywords").Text(),
		Creator:      v.Key("Creator").Text(),
		Producer:     v.Key("Producer").Text(),
		CreationDate: v.Key("CreationDate").Text(),
		ModDate:      v.Key("ModDate").Text(),
	}
}
