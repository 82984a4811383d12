// Package emoji fetches and parses the remote emoji listing.
//
// # Fetching
//
// Source downloads the listing from the configured API URL:
//
//	src := emoji.NewSource(client, "https://badger.hackclub.dev/api/emoji")
//	emojis, err := src.Fetch(ctx)
//
// # Listing Format
//
// ParseListing accepts either a JSON array of records carrying a name and
// an image URL (under "imageUrl", "image_url" or "url"), or a Slack-style
// object mapping names to URLs. Alias entries ("alias:other") are dropped
// because they have no image of their own.
package emoji
