package extract

import (
	"context"

	"github.com/MitsuhaFe/Digest-AI/internal/bilibili"
	"github.com/MitsuhaFe/Digest-AI/internal/content"
	"github.com/MitsuhaFe/Digest-AI/internal/fetch"
	"github.com/MitsuhaFe/Digest-AI/internal/page"
	"github.com/MitsuhaFe/Digest-AI/internal/pdf"
	"github.com/MitsuhaFe/Digest-AI/internal/youtube"
)

// Adapter turns a page snapshot into a raw extraction for one content kind.
// Implementations hold no state between calls.
type Adapter interface {
	Kind() content.Kind
	Extract(ctx context.Context, snap *page.Snapshot) (*content.RawExtraction, error)
}

// Deps are the collaborators adapters may need.
type Deps struct {
	// API fetches platform JSON and XML endpoints.
	API fetch.Getter
	// Documents fetches PDF bytes for the library tier. Nil disables it.
	Documents fetch.Getter
	// BilibiliCookie is forwarded to the Bilibili API.
	BilibiliCookie string
}

// ForKind builds the adapter for kind.
func ForKind(kind content.Kind, d Deps) Adapter {
	switch kind {
	case content.KindVideoBilibili:
		return &bilibili.Adapter{Client: d.API, Cookie: d.BilibiliCookie}
	case content.KindVideoYouTube:
		return &youtube.Adapter{Client: d.API}
	case content.KindDocumentPDF:
		a := &pdf.Adapter{}
		if d.Documents != nil {
			a.Library = &pdf.LibrarySource{Client: d.Documents}
		}
		return a
	default:
		return Webpage{}
	}
}

// Run detects the snapshot's kind and extracts it with the matching adapter.
func Run(ctx context.Context, snap *page.Snapshot, d Deps) (*content.RawExtraction, error) {
	return ForKind(snap.Kind(), d).Extract(ctx, snap)
}
