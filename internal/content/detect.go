package content

import (
	"mime"
	"net/url"
	"strings"
)

// Detect classifies a page from its URL and MIME type. The PDF check runs
// first; anything unrecognized is a plain webpage.
func Detect(rawURL, mimeType string) Kind {
	if isPDF(rawURL, mimeType) {
		return KindDocumentPDF
	}
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return KindWebpage
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case strings.Contains(host, "bilibili.com") && strings.Contains(u.Path, "/video/"):
		return KindVideoBilibili
	case strings.Contains(host, "youtube.com") && u.Path == "/watch":
		return KindVideoYouTube
	case strings.Contains(host, "youtu.be"):
		return KindVideoYouTube
	}
	return KindWebpage
}

func isPDF(rawURL, mimeType string) bool {
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil && strings.EqualFold(mt, "application/pdf") {
		return true
	}
	if strings.HasSuffix(strings.ToLower(strings.TrimSpace(rawURL)), ".pdf") {
		return true
	}
	if u, err := url.Parse(rawURL); err == nil {
		return strings.HasSuffix(strings.ToLower(u.Path), ".pdf")
	}
	return false
}
