package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/MitsuhaFe/Digest-AI/internal/content"
	"github.com/MitsuhaFe/Digest-AI/internal/fetch"
	"github.com/MitsuhaFe/Digest-AI/internal/page"
)

func TestVideoID(t *testing.T) {
	cases := map[string]string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ":         "dQw4w9WgXcQ",
		"https://www.youtube.com/watch?list=x&v=abc123&t=10s": "abc123",
		"https://youtu.be/xyz789?t=3":                         "xyz789",
		"https://www.youtube.com/watch":                       "",
	}
	for in, want := range cases {
		if got := VideoID(in); got != want {
			t.Fatalf("VideoID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPickLanguage(t *testing.T) {
	if got, _ := pickLanguage([]string{"fr", "en", "zh-Hans"}); got != "zh-Hans" {
		t.Fatalf("want zh-Hans, got %q", got)
	}
	if got, _ := pickLanguage([]string{"fr", "en"}); got != "en" {
		t.Fatalf("want en, got %q", got)
	}
	if got, _ := pickLanguage([]string{"fr", "de"}); got != "fr" {
		t.Fatalf("want first, got %q", got)
	}
	if _, ok := pickLanguage(nil); ok {
		t.Fatalf("no tracks should report false")
	}
}

func playerState(t *testing.T) map[string]json.RawMessage {
	t.Helper()
	player := `{"videoDetails":{"videoId":"abc123","title":"Go Concurrency","lengthSeconds":"615","author":"Gopher","channelId":"UC1","viewCount":"98765","shortDescription":"short one here","thumbnail":{"thumbnails":[{"url":"https://i.ytimg.com/1.jpg"},{"url":"https://i.ytimg.com/2.jpg"}]}}}`
	data := `{"contents":{"twoColumnWatchNextResults":{"results":{"results":{"contents":[{"videoPrimaryInfoRenderer":{}},{"videoSecondaryInfoRenderer":{"attributedDescription":{"content":"A long description of channels and goroutines."}}}]}}}}}`
	return map[string]json.RawMessage{
		page.StateYouTubePlayer: json.RawMessage(player),
		page.StateYouTubeData:   json.RawMessage(data),
	}
}

func TestExtract_Captions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		q := r.URL.Query()
		if r.URL.Path != "/api/timedtext" || q.Get("v") != "abc123" {
			http.NotFound(w, r)
			return
		}
		if q.Get("type") == "list" {
			_, _ = w.Write([]byte(`<?xml version="1.0"?><transcript_list><track id="0" name="" lang_code="de"/><track id="1" name="English" lang_code="en"/></transcript_list>`))
			return
		}
		if q.Get("lang") != "en" {
			t.Errorf("unexpected lang %q", q.Get("lang"))
		}
		_, _ = w.Write([]byte(`<?xml version="1.0"?><transcript><text start="0.5" dur="2">Tom &amp;amp; Jerry</text><text start="3" dur="1">  </text><text start="3661" dur="1">it&amp;#39;s late</text></transcript>`))
	}))
	defer srv.Close()

	snap := &page.Snapshot{URL: "https://www.youtube.com/watch?v=abc123", State: playerState(t)}
	a := &Adapter{Client: &fetch.Client{ContentTypes: fetch.APITypes}, BaseURL: srv.URL}
	res, err := a.Extract(context.Background(), snap)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	subs := res.Video.Subtitles
	if subs.FullText != "Tom & Jerry it's late" || subs.Language != "en" || subs.Method != "api" {
		t.Fatalf("subtitles: %+v", subs)
	}
	if len(subs.Segments) != 2 || subs.Segments[1].Timestamp != "1:01:01" {
		t.Fatalf("segments: %+v", subs.Segments)
	}
	want := []string{content.SourceSubtitles, content.SourceDescription}
	if got := content.Merge(res.Fragments).Sources; !reflect.DeepEqual(got, want) {
		t.Fatalf("sources = %v", got)
	}
	if res.Fragments[1].Weight != 3 || res.Fragments[1].Text != "A long description of channels and goroutines." {
		t.Fatalf("description fragment: %+v", res.Fragments[1])
	}
	v := res.Video
	if v.Duration != 615 || v.Author != "Gopher" || v.ChannelID != "UC1" || v.Stats.View != 98765 || v.Cover != "https://i.ytimg.com/1.jpg" {
		t.Fatalf("metadata: %+v", v)
	}
}

const commentsHTML = `<html><head><title>Some Video - YouTube</title></head><body>
<ytd-comment-thread-renderer><div id="content-text">Short one</div><span id="vote-count-middle">5K</span></ytd-comment-thread-renderer>
<ytd-comment-thread-renderer><div id="content-text">This explains the scheduler really well</div><span id="vote-count-middle">1.2K</span></ytd-comment-thread-renderer>
<ytd-comment-thread-renderer><div id="content-text">讲得很好，终于理解了调度器的原理</div><span id="vote-count-middle">3M</span></ytd-comment-thread-renderer>
<ytd-comment-thread-renderer><div id="content-text">!!!!!!!!!!!!!!!!</div><span id="vote-count-middle">9M</span></ytd-comment-thread-renderer>
</body></html>`

func TestExtract_CommentsWhenCaptionsMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml")
		_, _ = w.Write([]byte(`<transcript_list></transcript_list>`))
	}))
	defer srv.Close()

	snap := &page.Snapshot{URL: "https://youtu.be/zzz111", HTML: commentsHTML}
	a := &Adapter{Client: &fetch.Client{ContentTypes: fetch.APITypes}, BaseURL: srv.URL}
	res, err := a.Extract(context.Background(), snap)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if res.Title != "Some Video" {
		t.Fatalf("title = %q", res.Title)
	}
	c := res.Video.Comments
	if c == nil || c.Count != 2 || c.TopLikes != 3000000 {
		t.Fatalf("comments: %+v", c)
	}
	if c.FullText != "讲得很好，终于理解了调度器的原理\nThis explains the scheduler really well" {
		t.Fatalf("comment text: %q", c.FullText)
	}
	if res.Video.Subtitles.Message != "该视频没有字幕，已提取 2 条热门评论作为补充" {
		t.Fatalf("message: %q", res.Video.Subtitles.Message)
	}
	if len(res.Fragments) != 1 || res.Fragments[0].Weight != content.WeightComments {
		t.Fatalf("fragments: %+v", res.Fragments)
	}
}

func TestExtract_DescriptionOnly(t *testing.T) {
	snap := &page.Snapshot{URL: "https://www.youtube.com/watch?v=abc123", State: playerState(t)}
	res, err := (&Adapter{}).Extract(context.Background(), snap)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(res.Fragments) != 1 || res.Fragments[0].Weight != 9 {
		t.Fatalf("fragments: %+v", res.Fragments)
	}
	if res.Video.Subtitles.Message != "该视频没有字幕，已使用简介生成摘要" {
		t.Fatalf("message: %q", res.Video.Subtitles.Message)
	}
}

func TestExtract_MissingVideoID(t *testing.T) {
	_, err := (&Adapter{}).Extract(context.Background(), &page.Snapshot{URL: "https://www.youtube.com/watch"})
	if !errors.Is(err, content.ErrMissingVideoID) {
		t.Fatalf("expected ErrMissingVideoID, got %v", err)
	}
}
