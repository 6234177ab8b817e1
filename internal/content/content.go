package content

import "strings"

// Kind classifies what is being extracted. It is decided once per request.
type Kind int

const (
	KindWebpage Kind = iota
	KindVideoBilibili
	KindVideoYouTube
	KindDocumentPDF
)

func (k Kind) String() string {
	switch k {
	case KindVideoBilibili:
		return "video-bilibili"
	case KindVideoYouTube:
		return "video-youtube"
	case KindDocumentPDF:
		return "document-pdf"
	default:
		return "webpage"
	}
}

// IsVideo reports whether k is one of the video platform kinds.
func (k Kind) IsVideo() bool {
	return k == KindVideoBilibili || k == KindVideoYouTube
}

// Provenance tags attached to fragments.
const (
	SourceSubtitles   = "字幕"
	SourceComments    = "热门评论"
	SourceDescription = "简介"
	SourceTags        = "标签"
	SourceStats       = "统计"
	SourcePDF         = "PDF文本"
	SourceWebpage     = "网页正文"
	SourceTitle       = "标题"
)

// Fragment is one weighted unit of extracted text. Higher weights sort first
// when merged.
type Fragment struct {
	Source string `json:"source"`
	Text   string `json:"text"`
	Weight int    `json:"weight"`
}

// RawExtraction is what an adapter returns. Exactly one of Webpage, Video
// or PDF is set, matching Kind.
type RawExtraction struct {
	Kind      Kind       `json:"-"`
	Title     string     `json:"title"`
	URL       string     `json:"url"`
	Fragments []Fragment `json:"contentFragments"`
	Excerpt   string     `json:"excerpt"`

	Webpage *WebpageMeta `json:"webpage,omitempty"`
	Video   *VideoMeta   `json:"video,omitempty"`
	PDF     *PDFMeta     `json:"pdf,omitempty"`
}

// WebpageMeta carries what the readability pass found beyond plain text.
type WebpageMeta struct {
	Byline   string `json:"byline,omitempty"`
	SiteName string `json:"siteName,omitempty"`
	HTML     string `json:"html,omitempty"`
	Length   int    `json:"length"`
}

// VideoMeta is shared by the Bilibili and YouTube adapters.
type VideoMeta struct {
	Platform    string    `json:"platform"`
	VideoID     string    `json:"videoId"`
	Description string    `json:"description,omitempty"`
	Duration    int       `json:"duration"`
	Author      string    `json:"author,omitempty"`
	ChannelID   string    `json:"channelId,omitempty"`
	Cover       string    `json:"cover,omitempty"`
	PublishDate string    `json:"pubdate,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Stats       Stats     `json:"stats"`
	Subtitles   Subtitles `json:"subtitles"`
	Comments    *Comments `json:"comments,omitempty"`
}

// Stats holds platform counters. Zero means unknown.
type Stats struct {
	View int64 `json:"view"`
	Like int64 `json:"like"`
	Coin int64 `json:"coin,omitempty"`
}

// Subtitles describes the transcript obtained for a video, or why none was.
type Subtitles struct {
	Available bool      `json:"available"`
	FullText  string    `json:"fullText,omitempty"`
	Segments  []Segment `json:"segments,omitempty"`
	Language  string    `json:"language,omitempty"`
	Method    string    `json:"method,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// Segment is one subtitle cue.
type Segment struct {
	Time      float64 `json:"time"`
	Timestamp string  `json:"timestamp"`
	Text      string  `json:"text"`
}

// Comments summarizes the top comments used when a video has no subtitles.
// A nil *Comments on VideoMeta means comments were never requested.
type Comments struct {
	Available bool   `json:"available"`
	FullText  string `json:"fullText,omitempty"`
	Count     int    `json:"count"`
	TopLikes  int64  `json:"topLikes"`
	Sample    string `json:"sample,omitempty"`
}

// PDFMeta records how a document was read.
type PDFMeta struct {
	Pages          int     `json:"pages"`
	ExtractedPages int     `json:"extractedPages"`
	Method         string  `json:"method"`
	Info           PDFInfo `json:"info"`
	FileSize       string  `json:"fileSize"`
	WordCount      int     `json:"wordCount"`
}

// PDFInfo mirrors the document information dictionary.
type PDFInfo struct {
	Title        string `json:"title,omitempty"`
	Author       string `json:"author,omitempty"`
	Subject      string `json:"subject,omitempty"`
	Keywords     string `json:"keywords,omitempty"`
	Creator      string `json:"creator,omitempty"`
	Producer     string `json:"producer,omitempty"`
	CreationDate string `json:"creationDate,omitempty"`
	ModDate      string `json:"modDate,omitempty"`
}

// EnsureFragments injects the title as a weight-0 fragment when nothing else
// was found, so a successful extraction always has at least one fragment.
func (r *RawExtraction) EnsureFragments() {
	if r == nil {
		return
	}
	for _, f := range r.Fragments {
		if strings.TrimSpace(f.Text) != "" {
			return
		}
	}
	r.Fragments = []Fragment{{Source: SourceTitle, Text: r.Title, Weight: 0}}
}
