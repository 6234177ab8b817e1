package page

import (
	"encoding/json"
	"strings"

	"github.com/MitsuhaFe/Digest-AI/internal/content"
)

var stateKeys = []string{StateBilibili, StateYouTubePlayer, StateYouTubeData}

// FromHTML builds a snapshot from a fetched document. Embedded state objects
// are recovered from inline scripts of the form `name = {...};`.
func FromHTML(rawURL, contentType string, body []byte) *Snapshot {
	html := string(body)
	s := &Snapshot{URL: rawURL, MIME: contentType, HTML: html}
	for _, key := range stateKeys {
		if obj, ok := findAssignedObject(html, key); ok {
			if s.State == nil {
				s.State = make(map[string]json.RawMessage)
			}
			s.State[key] = json.RawMessage(obj)
		}
	}
	return s
}

// findAssignedObject looks for `name = {` (optionally `name"] = {`) and
// returns the balanced JSON object that follows, if it is valid JSON.
func findAssignedObject(src, name string) (string, bool) {
	from := 0
	for {
		i := strings.Index(src[from:], name)
		if i < 0 {
			return "", false
		}
		pos := from + i + len(name)
		from = pos
		pos = skipChars(src, pos, "\"'] \t\r\n")
		if pos >= len(src) || src[pos] != '=' {
			continue
		}
		pos = skipChars(src, pos+1, " \t\r\n")
		if pos >= len(src) || src[pos] != '{' {
			continue
		}
		obj, ok := content.BalancedObject(src[pos:])
		if ok && json.Valid([]byte(obj)) {
			return obj, true
		}
	}
}

func skipChars(s string, pos int, set string) int {
	for pos < len(s) && strings.IndexByte(set, s[pos]) >= 0 {
		pos++
	}
	return pos
}
