// Package youtube extracts caption, comment and description fragments from
// YouTube watch pages.
package youtube

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/MitsuhaFe/Digest-AI/internal/content"
	"github.com/MitsuhaFe/Digest-AI/internal/fetch"
	"github.com/MitsuhaFe/Digest-AI/internal/page"
)

// DefaultBaseURL is where the timedtext endpoint lives.
const DefaultBaseURL = "https://www.youtube.com"

const (
	platform    = "youtube"
	excerptLen  = 300
	titleSuffix = " - YouTube"
)

var (
	watchIDRe = regexp.MustCompile(`[?&]v=([^&]+)`)
	shortIDRe = regexp.MustCompile(`youtu\.be/([^?]+)`)
)

// Adapter extracts YouTube watch pages. Without a Client captions are
// skipped and comments come from the snapshot DOM only.
type Adapter struct {
	Client fetch.Getter
	// BaseURL overrides DefaultBaseURL.
	BaseURL string
}

func (a *Adapter) Kind() content.Kind { return content.KindVideoYouTube }

type videoInfo struct {
	VideoID     string
	Title       string
	Description string
	Duration    int
	Author      string
	ChannelID   string
	Views       int64
	Thumbnail   string
}

// Extract gathers captions, then DOM comments when captions are missing,
// then the description.
func (a *Adapter) Extract(ctx context.Context, snap *page.Snapshot) (*content.RawExtraction, error) {
	info := videoInfoFrom(snap)
	if info.VideoID == "" {
		return nil, content.Fail(content.KindVideoYouTube, content.ErrMissingVideoID)
	}
	logger := log.With().Str("platform", platform).Str("video", info.VideoID).Logger()

	var (
		frags []content.Fragment
		cmts  *content.Comments
	)
	subs, err := a.captions(ctx, info.VideoID)
	if err != nil {
		logger.Debug().Err(err).Msg("captions unavailable")
	}
	if subs != nil {
		frags = append(frags, content.Fragment{Source: content.SourceSubtitles, Text: subs.FullText, Weight: content.WeightSubtitles})
	} else {
		cmts = domComments(snap)
		if cmts != nil {
			frags = append(frags, content.Fragment{Source: content.SourceComments, Text: cmts.FullText, Weight: content.WeightComments})
			logger.Debug().Int("count", cmts.Count).Msg("using page comments")
		}
	}
	if f, ok := content.DescriptionFragment(info.Description, subs != nil, cmts != nil); ok {
		frags = append(frags, f)
	}

	meta := &content.VideoMeta{
		Platform:    platform,
		VideoID:     info.VideoID,
		Description: info.Description,
		Duration:    info.Duration,
		Author:      info.Author,
		ChannelID:   info.ChannelID,
		Cover:       info.Thumbnail,
		Stats:       content.Stats{View: info.Views},
		Comments:    cmts,
	}
	switch {
	case subs != nil:
		meta.Subtitles = *subs
	case cmts != nil:
		meta.Subtitles = content.Subtitles{Message: fmt.Sprintf("该视频没有字幕，已提取 %d 条热门评论作为补充", cmts.Count)}
	default:
		meta.Subtitles = content.Subtitles{Message: "该视频没有字幕，已使用简介生成摘要"}
	}

	res := &content.RawExtraction{
		Kind:      content.KindVideoYouTube,
		Title:     info.Title,
		URL:       snap.URL,
		Fragments: frags,
		Excerpt:   content.Truncate(info.Description, excerptLen),
		Video:     meta,
	}
	res.EnsureFragments()
	return res, nil
}

// VideoID returns the id in a watch or youtu.be URL.
func VideoID(raw string) string {
	if m := watchIDRe.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	if m := shortIDRe.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return ""
}

func (a *Adapter) baseURL() string {
	if a.BaseURL != "" {
		return strings.TrimRight(a.BaseURL, "/")
	}
	return DefaultBaseURL
}

type trackList struct {
	Tracks []struct {
		LangCode string `xml:"lang_code,attr"`
		Name     string `xml:"name,attr"`
	} `xml:"track"`
}

type transcript struct {
	Texts []struct {
		Start string `xml:"start,attr"`
		Dur   string `xml:"dur,attr"`
		Text  string `xml:",chardata"`
	} `xml:"text"`
}

// captions lists the timedtext tracks, picks one and loads its cues. A nil
// result with nil error means the video has no usable captions.
func (a *Adapter) captions(ctx context.Context, videoID string) (*content.Subtitles, error) {
	if a.Client == nil {
		return nil, nil
	}
	q := url.Values{}
	q.Set("v", videoID)
	q.Set("type", "list")
	body, _, err := a.Client.Get(ctx, a.baseURL()+"/api/timedtext?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("caption list: %w", err)
	}
	var tl trackList
	if err := xml.Unmarshal(body, &tl); err != nil {
		return nil, fmt.Errorf("decode caption list: %w", err)
	}
	codes := make([]string, 0, len(tl.Tracks))
	for _, t := range tl.Tracks {
		codes = append(codes, t.LangCode)
	}
	lang, ok := pickLanguage(codes)
	if !ok {
		return nil, nil
	}

	q = url.Values{}
	q.Set("v", videoID)
	q.Set("lang", lang)
	body, _, err = a.Client.Get(ctx, a.baseURL()+"/api/timedtext?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("caption track %s: %w", lang, err)
	}
	var tr transcript
	if err := xml.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("decode caption track %s: %w", lang, err)
	}
	segs := make([]content.Segment, 0, len(tr.Texts))
	for _, cue := range tr.Texts {
		text := strings.TrimSpace(html.UnescapeString(cue.Text))
		if text == "" {
			continue
		}
		start, _ := strconv.ParseFloat(cue.Start, 64)
		segs = append(segs, content.NewSegment(start, text))
	}
	if len(segs) == 0 {
		return nil, fmt.Errorf("caption track %s is empty", lang)
	}
	return &content.Subtitles{
		Available: true,
		FullText:  content.Transcript(segs),
		Segments:  segs,
		Language:  lang,
		Method:    "api",
	}, nil
}

// pickLanguage prefers Chinese, then English, then the first track.
func pickLanguage(codes []string) (string, bool) {
	if len(codes) == 0 {
		return "", false
	}
	for _, c := range codes {
		if strings.Contains(c, "zh") || strings.Contains(c, "ch") {
			return c, true
		}
	}
	for _, c := range codes {
		if c == "en" {
			return c, true
		}
	}
	return codes[0], true
}
