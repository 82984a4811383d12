package emoji

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/hackclub/slack-emoji-dl/internal/emoji/dto"
	"github.com/hackclub/slack-emoji-dl/internal/model"
)

// ErrEmptyListing is returned when a listing contains no downloadable emoji.
//
// This typically occurs when:
//   - The API URL points at the wrong endpoint
//   - Every entry is an alias or has no image URL
var ErrEmptyListing = errors.New("emoji listing is empty")

// ParseListing decodes an emoji listing.
//
// Two shapes are accepted:
//
//	[{"name": "wave", "imageUrl": "https://..."}, ...]   // array of records
//	{"wave": "https://...", "hi": "alias:wave"}          // Slack emoji.list style map
//
// Records keep their order; map entries are sorted by name so that repeated
// runs produce the same task order. Aliases and entries without a name or
// URL are dropped.
func ParseListing(data []byte) ([]model.Emoji, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmptyListing
	}

	var emojis []model.Emoji
	switch data[0] {
	case '[':
		var records []dto.JSONEmoji
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("decode emoji listing: %w", err)
		}
		for i := range records {
			emojis = append(emojis, records[i].ToEmoji())
		}
	case '{':
		var mapping map[string]string
		if err := json.Unmarshal(data, &mapping); err != nil {
			return nil, fmt.Errorf("decode emoji listing: %w", err)
		}
		for name, u := range mapping {
			rec := dto.JSONEmoji{Name: name, URL: u}
			emojis = append(emojis, rec.ToEmoji())
		}
		sort.Slice(emojis, func(i, j int) bool { return emojis[i].Name < emojis[j].Name })
	default:
		return nil, fmt.Errorf("decode emoji listing: unexpected leading %q", data[0])
	}

	filtered := emojis[:0]
	for _, e := range emojis {
		if e.Name == "" || e.URL == "" || e.IsAlias() {
			continue
		}
		filtered = append(filtered, e)
	}

	if len(filtered) == 0 {
		return nil, ErrEmptyListing
	}
	return filtered, nil
}
