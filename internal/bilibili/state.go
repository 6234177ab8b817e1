package bilibili

import (
	"bytes"
	"encoding/json"
	"strings"
)

// initialState is the subset of window.__INITIAL_STATE__ the adapter reads.
type initialState struct {
	VideoData *videoData `json:"videoData"`
	Tags      []tag      `json:"tags"`
}

type videoData struct {
	Bvid     string  `json:"bvid"`
	Aid      flexID  `json:"aid"`
	Cid      flexID  `json:"cid"`
	Title    string  `json:"title"`
	Desc     string  `json:"desc"`
	Duration int     `json:"duration"`
	Pic      string  `json:"pic"`
	Pubdate  int64   `json:"pubdate"`
	Owner    owner   `json:"owner"`
	Stat     stat    `json:"stat"`
	Pages    []vpage `json:"pages"`
	Tag      []tag   `json:"tag"`
	Subtitle struct {
		List []track `json:"list"`
	} `json:"subtitle"`
}

type owner struct {
	Name string `json:"name"`
}

type stat struct {
	View int64 `json:"view"`
	Like int64 `json:"like"`
	Coin int64 `json:"coin"`
}

type vpage struct {
	Cid flexID `json:"cid"`
}

// tag decodes either {"tag_name": "..."} or a bare string.
type tag string

func (t *tag) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = tag(s)
		return nil
	}
	var obj struct {
		TagName string `json:"tag_name"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*t = tag(obj.TagName)
	return nil
}

// flexID accepts numeric or string identifiers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	if n.String() == "0" {
		*f = ""
		return nil
	}
	*f = flexID(n.String())
	return nil
}

// track is one subtitle track as listed by the player API or page state.
type track struct {
	Lan         string `json:"lan"`
	LanDoc      string `json:"lan_doc"`
	SubtitleURL string `json:"subtitle_url"`
}

type playerResponse struct {
	Code int `json:"code"`
	Data struct {
		Subtitle struct {
			Subtitles []track `json:"subtitles"`
		} `json:"subtitle"`
	} `json:"data"`
}

type trackBody struct {
	Body []struct {
		From    float64 `json:"from"`
		To      float64 `json:"to"`
		Content string  `json:"content"`
	} `json:"body"`
}

type replyResponse struct {
	Code int `json:"code"`
	Data struct {
		Replies []struct {
			Content struct {
				Message string `json:"message"`
			} `json:"content"`
			Like int64 `json:"like"`
		} `json:"replies"`
	} `json:"data"`
}
