package dto

import (
	"strings"

	"github.com/hackclub/slack-emoji-dl/internal/model"
)

// JSONEmoji represents one record of the emoji API listing.
//
// Listing providers disagree on the URL field name, so all the common
// spellings are accepted and the first non-empty one wins.
type JSONEmoji struct {
	Name          string `json:"name"`
	ImageURL      string `json:"imageUrl"`
	ImageURLSnake string `json:"image_url"`
	URL           string `json:"url"`
}

// ToEmoji converts JSONEmoji to a model.Emoji.
func (je *JSONEmoji) ToEmoji() model.Emoji {
	return model.Emoji{
		Name: strings.Trim(strings.TrimSpace(je.Name), ":"),
		URL:  FixURL(firstNonEmpty(je.ImageURL, je.ImageURLSnake, je.URL)),
	}
}

// FixURL gives scheme-relative URLs ("//host/path") an https scheme.
func FixURL(u string) string {
	u = strings.TrimSpace(u)
	if strings.HasPrefix(u, "//") {
		return "https:" + u
	}
	return u
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
