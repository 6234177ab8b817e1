package bilibili

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/MitsuhaFe/Digest-AI/internal/content"
	"github.com/MitsuhaFe/Digest-AI/internal/fetch"
	"github.com/MitsuhaFe/Digest-AI/internal/page"
)

const videoURL = "https://www.bilibili.com/video/BV1xx411c7mD"

func stateSnapshot(t *testing.T, videoData map[string]any) *page.Snapshot {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"videoData": videoData})
	if err != nil {
		t.Fatalf("marshal state: %v", err)
	}
	return &page.Snapshot{URL: videoURL, State: map[string]json.RawMessage{page.StateBilibili: raw}}
}

func TestExtract_SubtitlesBeforeDescription(t *testing.T) {
	var sawReferer, sawCookie string
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/x/player/wbi/v2":
			sawReferer = r.Header.Get("Referer")
			sawCookie = r.Header.Get("Cookie")
			if r.URL.Query().Get("bvid") != "BV1xx411c7mD" || r.URL.Query().Get("cid") != "12345" {
				t.Errorf("unexpected query %q", r.URL.RawQuery)
			}
			fmt.Fprintf(w, `{"code":0,"data":{"subtitle":{"subtitles":[
				{"lan":"en-US","lan_doc":"English","subtitle_url":"%[1]s/en.json"},
				{"lan":"zh-CN","lan_doc":"中文（中国）","subtitle_url":"%[1]s/zh.json"}]}}}`, srv.URL)
		case "/zh.json":
			_, _ = w.Write([]byte(`{"body":[{"from":0,"to":1.2,"content":"你好"},{"from":1.5,"to":3,"content":"世界"}]}`))
		case "/x/v2/reply":
			t.Errorf("comments must not be requested when subtitles exist")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	snap := stateSnapshot(t, map[string]any{
		"bvid": "BV1xx411c7mD", "aid": 170001, "cid": 12345,
		"title": "测试视频", "desc": "这是一个足够长的视频简介内容",
		"duration": 95, "owner": map[string]any{"name": "UP主"},
		"pubdate": 1700000000,
		"tag":     []any{map[string]any{"tag_name": "科技"}, "生活"},
		"stat":    map[string]any{"view": 123456, "like": 2345, "coin": 800},
	})
	a := &Adapter{Client: &fetch.Client{ContentTypes: fetch.APITypes}, Cookie: "SESSDATA=abc", APIBase: srv.URL}
	res, err := a.Extract(context.Background(), snap)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if sawReferer != "https://www.bilibili.com" || sawCookie != "SESSDATA=abc" {
		t.Fatalf("api headers: referer=%q cookie=%q", sawReferer, sawCookie)
	}
	if res.Video.Subtitles.FullText != "你好 世界" || !res.Video.Subtitles.Available || res.Video.Subtitles.Method != "api" {
		t.Fatalf("subtitles: %+v", res.Video.Subtitles)
	}
	if res.Video.Subtitles.Language != "zh-CN" {
		t.Fatalf("expected the Chinese track, got %q", res.Video.Subtitles.Language)
	}
	if segs := res.Video.Subtitles.Segments; len(segs) != 2 || segs[1].Timestamp != "0:01" {
		t.Fatalf("segments: %+v", segs)
	}
	merged := content.Merge(res.Fragments)
	want := []string{content.SourceSubtitles, content.SourceDescription, content.SourceTags, content.SourceStats}
	if !reflect.DeepEqual(merged.Sources, want) {
		t.Fatalf("sources = %v, want %v", merged.Sources, want)
	}
	if !strings.HasPrefix(merged.Text, "你好 世界\n\n") {
		t.Fatalf("merged text should lead with the transcript: %q", merged.Text)
	}
	if res.Fragments[1].Weight != 3 {
		t.Fatalf("description weight with subtitles = %d, want 3", res.Fragments[1].Weight)
	}
	if res.Video.Comments != nil {
		t.Fatalf("comments should not be fetched")
	}
	if res.Video.PublishDate != "2023-11-14T22:13:20Z" {
		t.Fatalf("pubdate = %q", res.Video.PublishDate)
	}
	if !reflect.DeepEqual(res.Video.Tags, []string{"科技", "生活"}) {
		t.Fatalf("tags = %v", res.Video.Tags)
	}
}

type fakeGetter struct {
	responses map[string]string
	calls     []string
}

func (f *fakeGetter) Get(_ context.Context, u string, _ http.Header) ([]byte, string, error) {
	f.calls = append(f.calls, u)
	for prefix, body := range f.responses {
		if strings.HasPrefix(u, prefix) {
			return []byte(body), "application/json", nil
		}
	}
	return nil, "", &fetch.StatusError{URL: u, Status: http.StatusNotFound}
}

func TestExtract_CommentsWhenNoSubtitles(t *testing.T) {
	g := &fakeGetter{responses: map[string]string{
		DefaultAPIBase + "/x/player/wbi/v2": `{"code":0,"data":{"subtitle":{"subtitles":[]}}}`,
		DefaultAPIBase + "/x/v2/reply": `{"code":0,"data":{"replies":[
			{"content":{"message":"太短了"},"like":900},
			{"content":{"message":"这个视频讲得非常清楚，受益匪浅"},"like":12},
			{"content":{"message":"😀😀😀😀😀😀😀😀😀😀😀😀"},"like":500},
			{"content":{"message":"Great explanation of the topic"},"like":40}
		]}}`,
	}}
	snap := stateSnapshot(t, map[string]any{
		"bvid": "BV1xx411c7mD", "aid": "170001", "cid": 12345,
		"title": "无字幕视频", "desc": "这是一个足够长的视频简介内容",
	})
	res, err := (&Adapter{Client: g}).Extract(context.Background(), snap)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	c := res.Video.Comments
	if c == nil || c.Count != 2 || c.TopLikes != 40 {
		t.Fatalf("comments: %+v", c)
	}
	if c.FullText != "Great explanation of the topic\n这个视频讲得非常清楚，受益匪浅" {
		t.Fatalf("comment text: %q", c.FullText)
	}
	if res.Video.Subtitles.Available || res.Video.Subtitles.Message != "该视频没有字幕，已获取 2 条热门评论作为补充" {
		t.Fatalf("subtitle marker: %+v", res.Video.Subtitles)
	}
	if len(res.Fragments) != 2 || res.Fragments[0].Weight != 7 || res.Fragments[1].Weight != 6 {
		t.Fatalf("fragments: %+v", res.Fragments)
	}
	replyCall := ""
	for _, c := range g.calls {
		if strings.Contains(c, "/x/v2/reply") {
			replyCall = c
		}
	}
	if !strings.Contains(replyCall, "oid=170001") {
		t.Fatalf("comments should be keyed by aid, got %q", replyCall)
	}
}

func TestExtract_PageStateSubtitleFallback(t *testing.T) {
	g := &fakeGetter{responses: map[string]string{
		DefaultAPIBase + "/x/player/wbi/v2": `{"code":-400}`,
		"https://aisubtitle.hdslb.com/bfs/ai/track.json": `{"body":[{"from":2,"content":"状态字幕"}]}`,
	}}
	snap := stateSnapshot(t, map[string]any{
		"bvid": "BV1xx411c7mD", "pages": []any{map[string]any{"cid": 777}},
		"title": "t",
		"subtitle": map[string]any{"list": []any{map[string]any{"lan": "ai-zh", "subtitle_url": "//aisubtitle.hdslb.com/bfs/ai/track.json"}}},
	})
	res, err := (&Adapter{Client: g}).Extract(context.Background(), snap)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if res.Video.Subtitles.Method != "page-state" || res.Video.Subtitles.FullText != "状态字幕" {
		t.Fatalf("subtitles: %+v", res.Video.Subtitles)
	}
	if !strings.Contains(g.calls[0], "cid=777") {
		t.Fatalf("cid should come from pages[0]: %q", g.calls[0])
	}
}

func TestExtract_TitleOnly(t *testing.T) {
	snap := stateSnapshot(t, map[string]any{"bvid": "BV1xx411c7mD", "title": "只有标题", "desc": "短"})
	res, err := (&Adapter{}).Extract(context.Background(), snap)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	want := []content.Fragment{{Source: content.SourceTitle, Text: "只有标题", Weight: 0}}
	if !reflect.DeepEqual(res.Fragments, want) {
		t.Fatalf("fragments = %+v", res.Fragments)
	}
	if res.Video.Subtitles.Message != "该视频没有字幕，已综合简介、标签等信息生成摘要" {
		t.Fatalf("message = %q", res.Video.Subtitles.Message)
	}
	if merged := content.Merge(res.Fragments); merged.Text != "只有标题" {
		t.Fatalf("merged = %q", merged.Text)
	}
}

func TestExtract_DescriptionWeightWithoutOtherSignals(t *testing.T) {
	snap := stateSnapshot(t, map[string]any{"bvid": "BV1xx411c7mD", "title": "t", "desc": "这是一个足够长的视频简介内容"})
	res, err := (&Adapter{}).Extract(context.Background(), snap)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(res.Fragments) != 1 || res.Fragments[0].Weight != 9 {
		t.Fatalf("fragments: %+v", res.Fragments)
	}
}

func TestExtract_MissingVideoID(t *testing.T) {
	snap := &page.Snapshot{URL: "https://www.bilibili.com/video/", HTML: "<html><title>x</title></html>"}
	_, err := (&Adapter{}).Extract(context.Background(), snap)
	if !errors.Is(err, content.ErrMissingVideoID) {
		t.Fatalf("expected ErrMissingVideoID, got %v", err)
	}
	var ee *content.ExtractionError
	if !errors.As(err, &ee) || ee.Kind != content.KindVideoBilibili {
		t.Fatalf("expected ExtractionError, got %#v", err)
	}
}

func TestExtract_DOMFallback(t *testing.T) {
	snap := &page.Snapshot{
		URL: "https://www.bilibili.com/video/av998877?p=1",
		HTML: `<html><head><title>DOM 标题_哔哩哔哩_bilibili</title></head><body>
			<div class="basic-desc-info">页面上的简介文字足够长了吧</div>
			<a class="up-name"> 作者 </a></body></html>`,
	}
	res, err := (&Adapter{}).Extract(context.Background(), snap)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if res.Title != "DOM 标题" {
		t.Fatalf("title = %q", res.Title)
	}
	if res.Video.VideoID != "av998877" || res.Video.Author != "作者" {
		t.Fatalf("meta: %+v", res.Video)
	}
	if res.Video.Description != "页面上的简介文字足够长了吧" {
		t.Fatalf("description = %q", res.Video.Description)
	}
}

func TestPickTrack(t *testing.T) {
	tracks := []track{{Lan: "en"}, {Lan: "ai-zh", LanDoc: "中文（自动生成）"}, {Lan: "zh-Hans"}}
	if got := pickTrack(tracks); got.Lan != "ai-zh" {
		t.Fatalf("got %q", got.Lan)
	}
	if got := pickTrack([]track{{Lan: "ja"}, {Lan: "en"}}); got.Lan != "ja" {
		t.Fatalf("expected first track, got %q", got.Lan)
	}
}
