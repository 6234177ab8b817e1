package ai

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/MitsuhaFe/Digest-AI/internal/content"
)

var (
	jsonFenceRe    = regexp.MustCompile("(?is)```json\\s*(.*?)\\s*```")
	genericFenceRe = regexp.MustCompile("(?s)```\\s*(.*?)\\s*```")
)

// candidate pulls a possible JSON object out of a model reply.
type candidate func(reply string) (string, bool)

// strategies run in order; the first candidate that decodes wins.
var strategies = []candidate{
	direct,
	fenced(jsonFenceRe),
	fenced(genericFenceRe),
	content.BalancedObject,
	stripToBraces,
}

func direct(reply string) (string, bool) { return strings.TrimSpace(reply), true }

func fenced(re *regexp.Regexp) candidate {
	return func(reply string) (string, bool) {
		m := re.FindStringSubmatch(reply)
		if m == nil {
			return "", false
		}
		return strings.TrimSpace(m[1]), true
	}
}

// stripToBraces drops everything before the first '{' and after the last '}'.
func stripToBraces(reply string) (string, bool) {
	start := strings.IndexByte(reply, '{')
	end := strings.LastIndexByte(reply, '}')
	if start < 0 || end < start {
		return "", false
	}
	return reply[start : end+1], true
}

// reply is the object the prompt asks for.
type reply struct {
	Summary   string     `json:"summary"`
	KeyPoints stringList `json:"keyPoints"`
	Tags      stringList `json:"tags"`
}

// stringList accepts an array of scalars or a single string.
type stringList []string

func (l *stringList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = stringList{s}
		return nil
	}
	var items []any
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	out := make(stringList, 0, len(items))
	for _, it := range items {
		switch v := it.(type) {
		case string:
			out = append(out, v)
		case nil:
		default:
			out = append(out, fmt.Sprint(v))
		}
	}
	*l = out
	return nil
}

func decodeObject(s string) (reply, bool) {
	if !strings.HasPrefix(s, "{") {
		return reply{}, false
	}
	var r reply
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return reply{}, false
	}
	return r, true
}

// ExtractJSON runs the recovery strategies over a model reply.
func ExtractJSON(text string) (Result, bool) {
	for _, s := range strategies {
		c, ok := s(text)
		if !ok {
			continue
		}
		if r, ok := decodeObject(c); ok {
			return Result{
				Summary:       r.Summary,
				KeyPoints:     nonNil(r.KeyPoints),
				SuggestedTags: nonNil(r.Tags),
			}, true
		}
	}
	return Result{}, false
}

// ParseReply recovers the result object and applies the tag policy.
func ParseReply(vendor, text string, autoTags bool) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, &ResponseParseError{Vendor: vendor, Err: errors.New("empty reply text")}
	}
	res, ok := ExtractJSON(text)
	if !ok {
		return Result{}, &ResponseParseError{Vendor: vendor, Err: errors.New("no JSON object in reply")}
	}
	if !autoTags {
		res.SuggestedTags = []string{}
	}
	return res, nil
}

func nonNil(l stringList) []string {
	if l == nil {
		return []string{}
	}
	return []string(l)
}
