package emoji

import (
	"context"
	"fmt"

	"github.com/hackclub/slack-emoji-dl/internal/model"
)

// Getter fetches a URL and returns the response body.
//
// *http.Client from internal/http satisfies it.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Source fetches the emoji listing from the remote API.
//
// Example usage:
//
//	src := emoji.NewSource(http.NewClient(), "https://badger.hackclub.dev/api/emoji")
//	emojis, err := src.Fetch(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("%d emoji listed\n", len(emojis))
type Source struct {
	client Getter
	apiURL string
}

// NewSource creates a Source reading apiURL through client.
func NewSource(client Getter, apiURL string) *Source {
	return &Source{client: client, apiURL: apiURL}
}

// URL returns the listing URL.
func (s *Source) URL() string {
	return s.apiURL
}

// Fetch downloads and parses the listing.
func (s *Source) Fetch(ctx context.Context) ([]model.Emoji, error) {
	body, err := s.client.Get(ctx, s.apiURL)
	if err != nil {
		return nil, fmt.Errorf("fetch emoji listing from %s: %w", s.apiURL, err)
	}

	emojis, err := ParseListing(body)
	if err != nil {
		return nil, fmt.Errorf("parse emoji listing from %s: %w", s.apiURL, err)
	}

	return emojis, nil
}
