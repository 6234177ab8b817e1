package content

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingVideoID is fatal for video adapters: no bvid/aid or video id
	// could be resolved from the page.
	ErrMissingVideoID = errors.New("missing video id")
	// ErrNoExtractableText means every PDF strategy came back empty.
	ErrNoExtractableText = errors.New("no extractable text")
)

// ExtractionError tags a fatal adapter failure with the kind being extracted.
type ExtractionError struct {
	Kind Kind
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Kind, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Fail wraps err as an *ExtractionError for kind.
func Fail(kind Kind, err error) error {
	return &ExtractionError{Kind: kind, Err: err}
}
