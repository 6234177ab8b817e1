package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MitsuhaFe/Digest-AI/internal/bilibili"
	"github.com/MitsuhaFe/Digest-AI/internal/content"
	"github.com/MitsuhaFe/Digest-AI/internal/page"
	"github.com/MitsuhaFe/Digest-AI/internal/pdf"
	"github.com/MitsuhaFe/Digest-AI/internal/youtube"
)

func TestFromHTML_PrefersMainOverBody(t *testing.T) {
	html := `<!doctype html>
    <html>
      <head><title>Test Page</title></head>
      <body>
        <nav>Nav should be ignored</nav>
        <main>
          <h1>Main Heading</h1>
          <p>This is the main content paragraph.</p>
        </main>
        <footer>Footer text</footer>
      </body>
    </html>`

	doc := FromHTML(html)
	if doc.Title != "Test Page" {
		t.Fatalf("expected title 'Test Page', got %q", doc.Title)
	}
	if !strings.Contains(doc.Text, "Main Heading") || !strings.Contains(doc.Text, "This is the main content paragraph.") {
		t.Fatalf("expected main content, got %q", doc.Text)
	}
	if strings.Contains(doc.Text, "Nav should be ignored") || strings.Contains(doc.Text, "Footer text") {
		t.Fatalf("chrome leaked into text: %q", doc.Text)
	}
}

func TestFromHTML_FallbackToBody(t *testing.T) {
	doc := FromHTML(`<html><head><title>No Main</title></head><body><h2>Body Heading</h2><p>Body paragraph</p></body></html>`)
	if doc.Title != "No Main" {
		t.Fatalf("expected title 'No Main', got %q", doc.Title)
	}
	if doc.Text != "Body Heading Body paragraph" {
		t.Fatalf("unexpected text %q", doc.Text)
	}
}

func TestFromHTML_SkipsConsentAndAds(t *testing.T) {
	doc := FromHTML(`<html><body><article>
		<div class="cookie-banner">We use cookies</div>
		<div id="ad">Buy now</div>
		<p>Real words stay.</p>
	</article></body></html>`)
	if doc.Text != "Real words stay." {
		t.Fatalf("unexpected text %q", doc.Text)
	}
}

func TestCollapseWhitespace(t *testing.T) {
	if got := CollapseWhitespace("  a \n\t b   c "); got != "a b c" {
		t.Fatalf("got %q", got)
	}
}

const articleHTML = `<!doctype html>
<html>
<head>
  <title>Quiet Rivers | Field Notes</title>
  <meta property="og:site_name" content="Field Notes">
  <meta name="author" content="Lin Q">
</head>
<body>
  <nav><a href="/">Home</a> <a href="/about">About</a></nav>
  <article>
    <h1>Quiet Rivers</h1>
    <p>The river moves slowly through the valley in late autumn, carrying leaves and silt toward the lake below. Fishermen wait on the banks for the morning mist to lift before they cast.</p>
    <p>Scientists measuring the flow found that the seasonal drop in volume changes how sediment settles, which in turn shapes the spawning grounds the fish depend on each spring.</p>
    <p>Residents say the quiet months are the best time to walk the trails, when the water is clear and the only sound is the wind in the reeds along the shore.</p>
  </article>
  <footer>Copyright Field Notes</footer>
</body>
</html>`

func TestWebpage_ExtractsArticle(t *testing.T) {
	snap := &page.Snapshot{URL: "https://www.fieldnotes.example/rivers", HTML: articleHTML}
	res, err := Webpage{}.Extract(context.Background(), snap)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if res.Kind != content.KindWebpage || res.URL != snap.URL {
		t.Fatalf("unexpected kind/url: %v %q", res.Kind, res.URL)
	}
	if len(res.Fragments) != 1 || res.Fragments[0].Source != content.SourceWebpage || res.Fragments[0].Weight != 1 {
		t.Fatalf("unexpected fragments: %+v", res.Fragments)
	}
	if !strings.Contains(res.Fragments[0].Text, "spawning grounds") {
		t.Fatalf("article text missing: %q", res.Fragments[0].Text)
	}
	if strings.Contains(res.Fragments[0].Text, "Copyright Field Notes") {
		t.Fatalf("footer leaked: %q", res.Fragments[0].Text)
	}
	if res.Webpage == nil || res.Webpage.SiteName != "Field Notes" {
		t.Fatalf("site name: %+v", res.Webpage)
	}
	if res.Excerpt == "" {
		t.Fatalf("expected an excerpt")
	}
}

func TestWebpage_NormalizesWhitespace(t *testing.T) {
	gap := "   \n\n\t  "
	html := "<html><head><title>Tides</title></head><body><article>" +
		"<p>The tide pools fill" + gap + "twice a day along the northern shore, and each time the water brings small crabs and drifting kelp into the shallow basins.</p>" +
		"<p>Volunteers count" + gap + "anemones every month to track how warmer summers change which species survive in the upper pools.</p>" +
		"<p>Visitors are asked to step only on bare rock so the fragile growth near the waterline is left undisturbed.</p>" +
		"</article></body></html>"
	res, err := Webpage{}.Extract(context.Background(), &page.Snapshot{URL: "https://tides.example/pools", HTML: html})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	text := res.Fragments[0].Text
	if strings.ContainsAny(text, "\n\t") || strings.Contains(text, "  ") || text != strings.TrimSpace(text) {
		t.Fatalf("text not normalized: %q", text)
	}
	if !strings.Contains(text, "The tide pools fill twice a day") {
		t.Fatalf("text: %q", text)
	}
}

func TestWebpage_BodyOnlyPageStillHasText(t *testing.T) {
	snap := &page.Snapshot{URL: "https://example.com/x", HTML: `<html><head><title>T</title></head><body><p>Hello world</p></body></html>`}
	res, err := Webpage{}.Extract(context.Background(), snap)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	merged := content.Merge(res.Fragments)
	if !strings.Contains(merged.Text, "Hello world") {
		t.Fatalf("body text must survive, got %q", merged.Text)
	}
}

func TestWebpage_FallbackSelectors(t *testing.T) {
	long := strings.Repeat("Useful sentence about the topic. ", 10)
	snap := &page.Snapshot{URL: "https://www.blog.example/p/1", HTML: `<html><head><title>Doc Title</title>
		<meta property="og:title" content="OG Title"></head><body>
		<div class="sidebar">Side links</div>
		<div class="post-content"><script>var x = 1;</script><div class="social-share">Share!</div><p>` + long + `</p></div>
		<span class="byline">By Ada</span>
		</body></html>`}
	res := Webpage{}.fallback(snap)
	text := res.Fragments[0].Text
	if strings.Contains(text, "Side links") || strings.Contains(text, "Share!") || strings.Contains(text, "var x") {
		t.Fatalf("expected container text only, got %q", text)
	}
	if !strings.HasPrefix(text, "Useful sentence") {
		t.Fatalf("unexpected text %q", text)
	}
	if res.Title != "OG Title" {
		t.Fatalf("title = %q", res.Title)
	}
	if res.Webpage.Byline != "By Ada" {
		t.Fatalf("byline = %q", res.Webpage.Byline)
	}
	if res.Webpage.SiteName != "blog.example" {
		t.Fatalf("site name = %q", res.Webpage.SiteName)
	}
	if len([]rune(res.Excerpt)) != 300 {
		t.Fatalf("excerpt should be 300 chars, got %d", len([]rune(res.Excerpt)))
	}
}

func TestWebpage_TitleOnlyWhenNoText(t *testing.T) {
	snap := &page.Snapshot{URL: "https://example.com/empty", Title: "Only Title", HTML: `<html><body>   </body></html>`}
	res, err := Webpage{}.Extract(context.Background(), snap)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(res.Fragments) != 1 || res.Fragments[0].Source != content.SourceTitle || res.Fragments[0].Weight != 0 || res.Fragments[0].Text != "Only Title" {
		t.Fatalf("expected title fragment, got %+v", res.Fragments)
	}
}

func TestWebpage_EmptyDocumentFails(t *testing.T) {
	_, err := Webpage{}.Extract(context.Background(), &page.Snapshot{URL: "https://example.com"})
	var ee *content.ExtractionError
	if !errors.As(err, &ee) || ee.Kind != content.KindWebpage {
		t.Fatalf("expected extraction error, got %v", err)
	}
}

func TestForKind(t *testing.T) {
	if _, ok := ForKind(content.KindWebpage, Deps{}).(Webpage); !ok {
		t.Fatalf("webpage adapter")
	}
	b, ok := ForKind(content.KindVideoBilibili, Deps{BilibiliCookie: "SESSDATA=x"}).(*bilibili.Adapter)
	if !ok || b.Cookie != "SESSDATA=x" {
		t.Fatalf("bilibili adapter: %#v", b)
	}
	if _, ok := ForKind(content.KindVideoYouTube, Deps{}).(*youtube.Adapter); !ok {
		t.Fatalf("youtube adapter")
	}
	p, ok := ForKind(content.KindDocumentPDF, Deps{}).(*pdf.Adapter)
	if !ok || p.Library != nil {
		t.Fatalf("pdf adapter without documents getter: %#v", p)
	}
	for _, k := range []content.Kind{content.KindWebpage, content.KindVideoBilibili, content.KindVideoYouTube, content.KindDocumentPDF} {
		if got := ForKind(k, Deps{}).Kind(); got != k {
			t.Fatalf("ForKind(%v).Kind() = %v", k, got)
		}
	}
}
