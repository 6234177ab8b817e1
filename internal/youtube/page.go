package youtube

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/MitsuhaFe/Digest-AI/internal/content"
	"github.com/MitsuhaFe/Digest-AI/internal/page"
)

type playerResponse struct {
	VideoDetails *struct {
		VideoID          string `json:"videoId"`
		Title            string `json:"title"`
		LengthSeconds    string `json:"lengthSeconds"`
		Author           string `json:"author"`
		ChannelID        string `json:"channelId"`
		ViewCount        string `json:"viewCount"`
		ShortDescription string `json:"shortDescription"`
		Thumbnail        struct {
			Thumbnails []struct {
				URL string `json:"url"`
			} `json:"thumbnails"`
		} `json:"thumbnail"`
	} `json:"videoDetails"`
}

type initialData struct {
	Contents struct {
		TwoColumnWatchNextResults struct {
			Results struct {
				Results struct {
					Contents []struct {
						VideoSecondaryInfoRenderer *struct {
							AttributedDescription struct {
								Content string `json:"content"`
							} `json:"attributedDescription"`
						} `json:"videoSecondaryInfoRenderer"`
					} `json:"contents"`
				} `json:"results"`
			} `json:"results"`
		} `json:"twoColumnWatchNextResults"`
	} `json:"contents"`
}

// videoInfoFrom reads player state, falling back to DOM selectors.
func videoInfoFrom(snap *page.Snapshot) videoInfo {
	var pr playerResponse
	if !snap.DecodeState(page.StateYouTubePlayer, &pr) || pr.VideoDetails == nil {
		log.Debug().Str("url", snap.URL).Msg("youtube player state unavailable; reading DOM")
		return fromDOM(snap)
	}
	d := pr.VideoDetails
	info := videoInfo{
		VideoID:   d.VideoID,
		Title:     d.Title,
		Author:    d.Author,
		ChannelID: d.ChannelID,
	}
	info.Duration, _ = strconv.Atoi(d.LengthSeconds)
	info.Views, _ = strconv.ParseInt(d.ViewCount, 10, 64)
	if len(d.Thumbnail.Thumbnails) > 0 {
		info.Thumbnail = d.Thumbnail.Thumbnails[0].URL
	}
	if info.VideoID == "" {
		info.VideoID = VideoID(snap.URL)
	}
	if info.Title == "" {
		info.Title = strings.TrimSuffix(snap.DocumentTitle(), titleSuffix)
	}
	info.Description = description(snap)
	if info.Description == "" {
		info.Description = d.ShortDescription
	}
	return info
}

func description(snap *page.Snapshot) string {
	var data initialData
	if !snap.DecodeState(page.StateYouTubeData, &data) {
		return ""
	}
	for _, c := range data.Contents.TwoColumnWatchNextResults.Results.Results.Contents {
		if c.VideoSecondaryInfoRenderer != nil {
			return c.VideoSecondaryInfoRenderer.AttributedDescription.Content
		}
	}
	return ""
}

func fromDOM(snap *page.Snapshot) videoInfo {
	info := videoInfo{VideoID: VideoID(snap.URL)}
	doc, err := snap.Document()
	if err == nil {
		info.Title = firstText(doc, "h1.ytd-video-primary-info-renderer", "h1.title")
		info.Author = firstText(doc, "ytd-channel-name a", "#owner-name a")
	}
	if info.Title == "" {
		info.Title = strings.TrimSuffix(snap.DocumentTitle(), titleSuffix)
	}
	return info
}

func firstText(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if s := strings.TrimSpace(doc.Find(sel).First().Text()); s != "" {
			return s
		}
	}
	return ""
}

// domComments reads rendered comment threads from the snapshot.
func domComments(snap *page.Snapshot) *content.Comments {
	doc, err := snap.Document()
	if err != nil {
		return nil
	}
	var raw []content.Comment
	doc.Find("ytd-comment-thread-renderer").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i >= content.MaxCommentsConsidered {
			return false
		}
		textEl := s.Find("#content-text").First()
		if textEl.Length() == 0 {
			return true
		}
		raw = append(raw, content.Comment{
			Text:  textEl.Text(),
			Likes: content.ParseLikeCount(s.Find("#vote-count-middle").First().Text()),
		})
		return true
	})
	return content.SummarizeComments(content.FilterComments(raw))
}
