// Package bilibili extracts transcript, comment and metadata fragments from
// Bilibili video pages.
package bilibili

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/MitsuhaFe/Digest-AI/internal/content"
	"github.com/MitsuhaFe/Digest-AI/internal/fetch"
	"github.com/MitsuhaFe/Digest-AI/internal/page"
)

// DefaultAPIBase is the public Bilibili API origin.
const DefaultAPIBase = "https://api.bilibili.com"

const (
	referer    = "https://www.bilibili.com"
	platform   = "bilibili"
	excerptLen = 300
)

var (
	bvRe = regexp.MustCompile(`/video/(BV[a-zA-Z0-9]+)`)
	avRe = regexp.MustCompile(`/video/av(\d+)`)

	titleSuffixes = []string{"_哔哩哔哩_bilibili", " - 哔哩哔哩"}
)

// Adapter extracts Bilibili video pages. Client is required for subtitles
// and comments; without it only page metadata is used.
type Adapter struct {
	Client fetch.Getter
	Cookie string
	// APIBase overrides DefaultAPIBase.
	APIBase string
}

func (a *Adapter) Kind() content.Kind { return content.KindVideoBilibili }

// videoInfo is the metadata resolved from page state or the DOM.
type videoInfo struct {
	Title       string
	Description string
	Duration    int
	Author      string
	Cover       string
	Bvid        string
	Aid         string
	Cid         string
	PubDate     string
	Tags        []string
	Stats       content.Stats
	StateTracks []track
}

// Extract collects fragments in a fixed order: subtitles, then comments
// when subtitles are unavailable, then description, tags and stats. Only a
// missing video id is fatal.
func (a *Adapter) Extract(ctx context.Context, snap *page.Snapshot) (*content.RawExtraction, error) {
	info := a.videoInfo(snap)
	if info.Bvid == "" && info.Aid == "" {
		return nil, content.Fail(content.KindVideoBilibili, content.ErrMissingVideoID)
	}
	logger := log.With().Str("platform", platform).Str("bvid", info.Bvid).Str("aid", info.Aid).Logger()

	var (
		frags []content.Fragment
		subs  *content.Subtitles
		cmts  *content.Comments
	)
	if info.Bvid != "" && info.Cid != "" {
		subs = a.subtitles(ctx, info)
		if subs != nil {
			frags = append(frags, content.Fragment{Source: content.SourceSubtitles, Text: subs.FullText, Weight: content.WeightSubtitles})
			logger.Debug().Int("chars", len([]rune(subs.FullText))).Str("method", subs.Method).Msg("subtitles found")
		}
	}
	if subs == nil {
		cmts = a.comments(ctx, info)
		if cmts != nil {
			frags = append(frags, content.Fragment{Source: content.SourceComments, Text: cmts.FullText, Weight: content.WeightComments})
			logger.Debug().Int("count", cmts.Count).Msg("using top comments")
		}
	}
	if f, ok := content.DescriptionFragment(info.Description, subs != nil, cmts != nil); ok {
		frags = append(frags, f)
	}
	if f, ok := content.TagFragment(info.Tags); ok {
		frags = append(frags, f)
	}
	if f, ok := content.StatsFragment(info.Stats); ok {
		frags = append(frags, f)
	}

	meta := &content.VideoMeta{
		Platform:    platform,
		VideoID:     info.Bvid,
		Description: info.Description,
		Duration:    info.Duration,
		Author:      info.Author,
		Cover:       info.Cover,
		PublishDate: info.PubDate,
		Tags:        info.Tags,
		Stats:       info.Stats,
		Comments:    cmts,
	}
	if meta.VideoID == "" {
		meta.VideoID = "av" + info.Aid
	}
	switch {
	case subs != nil:
		meta.Subtitles = *subs
	case cmts != nil:
		meta.Subtitles = content.Subtitles{Message: fmt.Sprintf("该视频没有字幕，已获取 %d 条热门评论作为补充", cmts.Count)}
	default:
		meta.Subtitles = content.Subtitles{Message: "该视频没有字幕，已综合简介、标签等信息生成摘要"}
	}

	res := &content.RawExtraction{
		Kind:      content.KindVideoBilibili,
		Title:     info.Title,
		URL:       snap.URL,
		Fragments: frags,
		Excerpt:   content.Truncate(info.Description, excerptLen),
		Video:     meta,
	}
	res.EnsureFragments()
	if len(frags) == 0 {
		logger.Warn().Msg("no video content found; using title")
	}
	return res, nil
}

func (a *Adapter) apiBase() string {
	if a.APIBase != "" {
		return strings.TrimRight(a.APIBase, "/")
	}
	return DefaultAPIBase
}

func (a *Adapter) apiHeader() http.Header {
	h := http.Header{}
	h.Set("Referer", referer)
	if a.Cookie != "" {
		h.Set("Cookie", a.Cookie)
	}
	return h
}

// videoInfo reads the embedded state, falling back to DOM selectors.
func (a *Adapter) videoInfo(snap *page.Snapshot) videoInfo {
	var st initialState
	if snap.DecodeState(page.StateBilibili, &st) && st.VideoData != nil {
		return fromState(snap, &st)
	}
	log.Debug().Str("url", snap.URL).Msg("bilibili page state unavailable; reading DOM")
	return fromDOM(snap)
}

func fromState(snap *page.Snapshot, st *initialState) videoInfo {
	v := st.VideoData
	info := videoInfo{
		Title:       v.Title,
		Description: v.Desc,
		Duration:    v.Duration,
		Author:      v.Owner.Name,
		Cover:       v.Pic,
		Bvid:        v.Bvid,
		Aid:         string(v.Aid),
		Cid:         string(v.Cid),
		Stats:       content.Stats{View: v.Stat.View, Like: v.Stat.Like, Coin: v.Stat.Coin},
		StateTracks: v.Subtitle.List,
	}
	if info.Title == "" {
		info.Title = cleanTitle(snap.DocumentTitle())
	}
	if info.Cid == "" && len(v.Pages) > 0 {
		info.Cid = string(v.Pages[0].Cid)
	}
	if v.Pubdate > 0 {
		info.PubDate = time.Unix(v.Pubdate, 0).UTC().Format(time.RFC3339)
	}
	tags := v.Tag
	if len(tags) == 0 {
		tags = st.Tags
	}
	for _, t := range tags {
		if s := strings.TrimSpace(string(t)); s != "" {
			info.Tags = append(info.Tags, s)
		}
	}
	if info.Bvid == "" && info.Aid == "" {
		info.Bvid, info.Aid = idsFromURL(snap.URL)
	}
	return info
}

func fromDOM(snap *page.Snapshot) videoInfo {
	var info videoInfo
	info.Bvid, info.Aid = idsFromURL(snap.URL)
	doc, err := snap.Document()
	if err != nil {
		info.Title = cleanTitle(snap.DocumentTitle())
		return info
	}
	info.Title = firstText(doc, "h1.video-title", ".video-title")
	if info.Title == "" {
		info.Title = cleanTitle(snap.DocumentTitle())
	}
	info.Description = firstText(doc, ".video-desc", ".basic-desc-info")
	info.Author = firstText(doc, ".up-name", ".username")
	return info
}

func idsFromURL(raw string) (bvid, aid string) {
	if m := bvRe.FindStringSubmatch(raw); m != nil {
		return m[1], ""
	}
	if m := avRe.FindStringSubmatch(raw); m != nil {
		return "", m[1]
	}
	return "", ""
}

func cleanTitle(t string) string {
	for _, s := range titleSuffixes {
		t = strings.TrimSuffix(t, s)
	}
	return strings.TrimSpace(t)
}

func firstText(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if s := strings.TrimSpace(doc.Find(sel).First().Text()); s != "" {
			return s
		}
	}
	return ""
}

// subtitles tries the player API, then the track listed in page state.
func (a *Adapter) subtitles(ctx context.Context, info videoInfo) *content.Subtitles {
	if a.Client == nil {
		return nil
	}
	s, err := a.subtitlesFromAPI(ctx, info)
	if err == nil {
		return s
	}
	log.Debug().Err(err).Str("bvid", info.Bvid).Msg("subtitle api unavailable")
	if len(info.StateTracks) == 0 || info.StateTracks[0].SubtitleURL == "" {
		return nil
	}
	s, err = a.loadTrack(ctx, info.StateTracks[0])
	if err != nil {
		log.Debug().Err(err).Str("bvid", info.Bvid).Msg("page-state subtitle unavailable")
		return nil
	}
	s.Method = "page-state"
	return s
}

func (a *Adapter) subtitlesFromAPI(ctx context.Context, info videoInfo) (*content.Subtitles, error) {
	q := url.Values{}
	q.Set("bvid", info.Bvid)
	q.Set("cid", info.Cid)
	body, _, err := a.Client.Get(ctx, a.apiBase()+"/x/player/wbi/v2?"+q.Encode(), a.apiHeader())
	if err != nil {
		return nil, fmt.Errorf("player api: %w", err)
	}
	var pr playerResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, fmt.Errorf("decode player api: %w", err)
	}
	tracks := pr.Data.Subtitle.Subtitles
	if pr.Code != 0 || len(tracks) == 0 {
		return nil, fmt.Errorf("no subtitle tracks (code %d)", pr.Code)
	}
	t := pickTrack(tracks)
	if t.SubtitleURL == "" {
		return nil, fmt.Errorf("track %q has no url", t.Lan)
	}
	s, err := a.loadTrack(ctx, t)
	if err != nil {
		return nil, err
	}
	s.Method = "api"
	return s, nil
}

// pickTrack prefers a Chinese track and otherwise takes the first.
func pickTrack(tracks []track) track {
	for _, t := range tracks {
		switch t.Lan {
		case "zh-CN", "zh-Hans", "zh-Hant":
			return t
		}
		if strings.Contains(t.LanDoc, "中文") {
			return t
		}
	}
	return tracks[0]
}

func (a *Adapter) loadTrack(ctx context.Context, t track) (*content.Subtitles, error) {
	u := t.SubtitleURL
	if strings.HasPrefix(u, "//") {
		u = "https:" + u
	}
	body, _, err := a.Client.Get(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("subtitle track: %w", err)
	}
	var tb trackBody
	if err := json.Unmarshal(body, &tb); err != nil {
		return nil, fmt.Errorf("decode subtitle track: %w", err)
	}
	segs := make([]content.Segment, 0, len(tb.Body))
	for _, cue := range tb.Body {
		segs = append(segs, content.NewSegment(cue.From, cue.Content))
	}
	full := content.Transcript(segs)
	if full == "" {
		return nil, fmt.Errorf("subtitle track %q is empty", t.Lan)
	}
	return &content.Subtitles{Available: true, FullText: full, Segments: segs, Language: t.Lan}, nil
}

// comments fetches the hottest replies and keeps the substantive ones.
func (a *Adapter) comments(ctx context.Context, info videoInfo) *content.Comments {
	if a.Client == nil {
		return nil
	}
	oid := info.Aid
	if oid == "" {
		oid = info.Bvid
	}
	q := url.Values{}
	q.Set("type", "1")
	q.Set("oid", oid)
	q.Set("sort", "2")
	q.Set("ps", "20")
	body, _, err := a.Client.Get(ctx, a.apiBase()+"/x/v2/reply?"+q.Encode(), a.apiHeader())
	if err != nil {
		log.Debug().Err(err).Str("oid", oid).Msg("comment api unavailable")
		return nil
	}
	var rr replyResponse
	if err := json.Unmarshal(body, &rr); err != nil || rr.Code != 0 {
		log.Debug().Err(err).Int("code", rr.Code).Msg("comment api returned no replies")
		return nil
	}
	replies := rr.Data.Replies
	if len(replies) > content.MaxCommentsConsidered {
		replies = replies[:content.MaxCommentsConsidered]
	}
	raw := make([]content.Comment, 0, len(replies))
	for _, r := range replies {
		raw = append(raw, content.Comment{Text: r.Content.Message, Likes: r.Like})
	}
	return content.SummarizeComments(content.FilterComments(raw))
}
