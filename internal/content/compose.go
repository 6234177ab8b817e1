package content

import (
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxMergedChars bounds the merged text handed to a model.
const MaxMergedChars = 8000

// Merged is the composer output: one ranked text plus the sources that
// contributed to it, in the same order.
type Merged struct {
	Text    string   `json:"content"`
	Sources []string `json:"contentSources"`
}

// Merge orders fragments by descending weight, keeping discovery order for
// equal weights, joins the non-empty texts with blank lines and truncates the
// result to MaxMergedChars characters.
func Merge(fragments []Fragment) Merged {
	ordered := make([]Fragment, len(fragments))
	copy(ordered, fragments)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Weight > ordered[j].Weight
	})

	var b strings.Builder
	sources := make([]string, 0, len(ordered))
	for _, f := range ordered {
		if f.Text == "" {
			continue
		}
		b.WriteString(f.Text)
		b.WriteString("\n\n")
		sources = append(sources, f.Source)
	}
	text := norm.NFC.String(strings.TrimSpace(b.String()))
	return Merged{Text: Truncate(text, MaxMergedChars), Sources: sources}
}

// Truncate cuts s to at most n characters without splitting a rune.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// TruncateWithEllipsis behaves like Truncate but appends "..." when it cut.
func TruncateWithEllipsis(s string, n int) string {
	cut := Truncate(s, n)
	if len(cut) < len(s) {
		return cut + "..."
	}
	return s
}
