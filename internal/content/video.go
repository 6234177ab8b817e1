package content

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Fragment weights used by the video adapters.
const (
	WeightSubtitles = 10
	WeightComments  = 7
	WeightTags      = 2
	WeightStats     = 1
)

// MaxCommentsConsidered caps how many fetched comments go through the filter.
const MaxCommentsConsidered = 10

const (
	minCommentChars  = 10
	minDescription   = 10
	maxTagsInSummary = 8
	commentSampleLen = 300
)

var letterRe = regexp.MustCompile(`[\x{4e00}-\x{9fa5}a-zA-Z]`)

// FormatTime renders seconds as H:MM:SS, or M:SS under an hour.
func FormatTime(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int(math.Floor(seconds))
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// NewSegment builds a subtitle cue with its display timestamp.
func NewSegment(at float64, text string) Segment {
	return Segment{Time: at, Timestamp: FormatTime(at), Text: text}
}

// Transcript joins cue texts with single spaces.
func Transcript(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		parts = append(parts, s.Text)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// Comment is a raw comment before filtering.
type Comment struct {
	Text  string
	Likes int64
}

// IsSubstantiveComment drops short or symbol-only comments: at least ten
// characters and at least one CJK ideograph or Latin letter.
func IsSubstantiveComment(text string) bool {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < minCommentChars {
		return false
	}
	return letterRe.MatchString(text)
}

// FilterComments keeps substantive comments and orders them by likes,
// most liked first.
func FilterComments(in []Comment) []Comment {
	kept := make([]Comment, 0, len(in))
	for _, c := range in {
		c.Text = strings.TrimSpace(c.Text)
		if IsSubstantiveComment(c.Text) {
			kept = append(kept, c)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Likes > kept[j].Likes })
	return kept
}

// SummarizeComments turns filtered comments into the Comments record. It
// returns nil when nothing survived the filter.
func SummarizeComments(kept []Comment) *Comments {
	if len(kept) == 0 {
		return nil
	}
	texts := make([]string, 0, len(kept))
	for _, c := range kept {
		texts = append(texts, c.Text)
	}
	full := strings.Join(texts, "\n")
	return &Comments{
		Available: true,
		FullText:  full,
		Count:     len(kept),
		TopLikes:  kept[0].Likes,
		Sample:    TruncateWithEllipsis(full, commentSampleLen),
	}
}

// DescriptionWeight slides with the richer signals: 3 when subtitles exist,
// 6 when only comments exist, 9 otherwise.
func DescriptionWeight(hasSubtitles, hasComments bool) int {
	switch {
	case hasSubtitles:
		return 3
	case hasComments:
		return 6
	default:
		return 9
	}
}

// DescriptionFragment returns the description fragment when the description
// is long enough to be useful.
func DescriptionFragment(desc string, hasSubtitles, hasComments bool) (Fragment, bool) {
	if utf8.RuneCountInString(desc) <= minDescription {
		return Fragment{}, false
	}
	return Fragment{Source: SourceDescription, Text: desc, Weight: DescriptionWeight(hasSubtitles, hasComments)}, true
}

// TagFragment synthesizes a sentence listing up to eight tags.
func TagFragment(tags []string) (Fragment, bool) {
	if len(tags) == 0 {
		return Fragment{}, false
	}
	if len(tags) > maxTagsInSummary {
		tags = tags[:maxTagsInSummary]
	}
	text := "本视频的主题标签包括：" + strings.Join(tags, "、") + "。"
	return Fragment{Source: SourceTags, Text: text, Weight: WeightTags}, true
}

// StatsFragment describes counters that cross the popularity thresholds.
func StatsFragment(s Stats) (Fragment, bool) {
	parts := make([]string, 0, 3)
	if s.View > 10000 {
		parts = append(parts, "该视频播放量达到"+wan(s.View)+"万")
	}
	if s.Like > 1000 {
		parts = append(parts, "获得"+wan(s.Like)+"万点赞")
	}
	if s.Coin > 500 {
		parts = append(parts, wan(s.Coin)+"万投币")
	}
	if len(parts) == 0 {
		return Fragment{}, false
	}
	text := strings.Join(parts, "，") + "，说明内容受到观众欢迎。"
	return Fragment{Source: SourceStats, Text: text, Weight: WeightStats}, true
}

func wan(n int64) string {
	return strconv.FormatFloat(float64(n)/10000, 'f', 1, 64)
}

// ParseLikeCount reads display counts such as "1.2K" or "3M". Unparseable
// input counts as zero.
func ParseLikeCount(s string) int64 {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0
	}
	mult := 1.0
	switch {
	case strings.HasSuffix(s, "k"):
		mult = 1000
		s = strings.TrimSuffix(s, "k")
	case strings.HasSuffix(s, "m"):
		mult = 1000000
		s = strings.TrimSuffix(s, "m")
	}
	if mult != 1 {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0
		}
		return int64(math.Round(f * mult))
	}
	return leadingInt(s)
}

// leadingInt parses the leading decimal digits of s, ignoring the rest.
func leadingInt(s string) int64 {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0
	}
	return n
}
