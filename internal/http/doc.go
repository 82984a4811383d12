// Package http provides the HTTP client used to fetch the emoji listing and
// download emoji images.
//
// The Client in this package handles:
//   - User-Agent headers
//   - Timeouts and connection pool sizing
//   - Request pacing via golang.org/x/time/rate
//   - Atomic file downloads with progress tracking
//   - Classification of failures into model.DownloadError kinds
//
// # Basic Usage
//
//	client := http.NewClient(http.WithMaxConnsPerHost(500))
//
//	// Fetch the listing
//	body, err := client.Get(ctx, apiURL)
//
//	// Download an image; the destination only appears once complete
//	n, err := client.DownloadFile(ctx, imageURL, "/emoji/wave.gif", nil)
//
// # Errors
//
// Both methods return *model.DownloadError values:
//
//	var de *model.DownloadError
//	if errors.As(err, &de) && de.Kind == model.KindBadStatus {
//	    fmt.Println("server said", de.StatusCode)
//	}
package http
