package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	ioutils "github.com/hackclub/slack-emoji-dl/internal/io"
	"github.com/hackclub/slack-emoji-dl/internal/model"
)

// DefaultUserAgent is sent with every request unless overridden.
const DefaultUserAgent = "slack-emoji-dl"

// DefaultTimeout bounds a whole request, body included.
const DefaultTimeout = 60 * time.Second

// Client wraps HTTP operations used to list and download emojis.
//
// Client provides:
//   - Configured User-Agent header
//   - Timeout handling
//   - Optional request pacing with a token bucket
//   - Atomic file download with progress tracking
//
// Every error returned by Get and DownloadFile is a *model.DownloadError,
// so callers can decide on retries with model.IsRetryable.
//
// Example usage:
//
//	client := NewClient(WithTimeout(30*time.Second), WithRateLimit(50, 10))
//
//	// Fetch the listing
//	body, err := client.Get(ctx, "https://badger.hackclub.dev/api/emoji")
//
//	// Download one image
//	n, err := client.DownloadFile(ctx, imageURL, "/emoji/wave.gif", nil)
type Client struct {
	httpClient *http.Client
	userAgent  string
	limiter    *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithRateLimit limits requests to rps per second with the given burst.
//
// A non-positive rps leaves requests unpaced.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithMaxConnsPerHost sizes the connection pool for n concurrent downloads.
func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) {
		if n <= 0 {
			return
		}
		c.httpClient.Transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        n,
			MaxIdleConnsPerHost: n,
			MaxConnsPerHost:     n,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}
	}
}

// NewClient creates a new HTTP client.
//
// Without options the client uses a 60 second timeout, the
// "slack-emoji-dl" User-Agent and no request pacing.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ProgressWriter tracks how many bytes passed through it.
//
// Example:
//
//	pw := &ProgressWriter{
//	    Writer: io.Discard,
//	    Total:  resp.ContentLength,
//	    OnUpdate: func(written, total int64) {
//	        fmt.Printf("%d / %d bytes\n", written, total)
//	    },
//	}
//	io.Copy(file, io.TeeReader(resp.Body, pw))
type ProgressWriter struct {
	// Writer is the underlying writer to write data to.
	Writer io.Writer

	// Total is the expected total bytes (from Content-Length header), -1 if unknown.
	Total int64

	// Written is the current number of bytes written.
	Written int64

	// OnUpdate is called after each Write with (bytesWritten, totalExpected).
	OnUpdate func(written, total int64)
}

// Write implements io.Writer, tracking progress and calling OnUpdate.
func (pw *ProgressWriter) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	pw.Written += int64(n)
	if pw.OnUpdate != nil {
		pw.OnUpdate(pw.Written, pw.Total)
	}
	return n, err
}

// Get performs a GET request and returns the response body.
//
// Returns a *model.DownloadError if:
//   - The URL is malformed (KindInvalid)
//   - The request fails or the body cannot be read (KindTransport)
//   - The response status is not 2xx (KindBadStatus)
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := c.do(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, model.TransportError(err)
	}
	return body, nil
}

// DownloadFile downloads rawURL to destPath.
//
// The body is streamed to a temporary file next to destPath and renamed
// into place only once complete; on failure destPath is left as it was.
// onProgress, if not nil, is called with (bytesWritten, totalBytes) as data
// arrives. checks run against the complete temporary file before the
// rename, after the length has been compared with Content-Length.
//
// Returns the number of bytes written. Errors are *model.DownloadError:
// KindBadStatus for non-2xx responses, KindTransport for network failures
// (including a body cut short), KindIO for local write failures and
// KindInvalid for malformed URLs. A check that returns a
// *model.DownloadError has it passed through unchanged; any other check
// error is reported as KindInvalid.
//
// Example:
//
//	n, err := client.DownloadFile(ctx, url, "/emoji/wave.gif", func(written, total int64) {
//	    fmt.Printf("%d/%d\r", written, total)
//	})
func (c *Client) DownloadFile(ctx context.Context, rawURL, destPath string, onProgress func(written, total int64), checks ...ioutils.CheckFunc) (int64, error) {
	resp, err := c.do(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var body io.Reader = resp.Body
	if onProgress != nil {
		body = io.TeeReader(resp.Body, &ProgressWriter{
			Writer:   io.Discard,
			Total:    resp.ContentLength,
			OnUpdate: onProgress,
		})
	}

	// Content-Length mismatches are caught by net/http as unexpected EOF,
	// this only guards against transports that do not enforce it.
	want := resp.ContentLength
	lengthCheck := func(_ string, n int64) error {
		if want >= 0 && n != want {
			return model.TransportError(fmt.Errorf("short body: got %d of %d bytes", n, want))
		}
		return nil
	}

	all := []ioutils.CheckFunc{lengthCheck}
	for _, check := range checks {
		all = append(all, invalidOnError(check))
	}

	n, err := ioutils.WriteFileAtomic(destPath, body, all...)
	if err != nil {
		var we *ioutils.WriteError
		var de *model.DownloadError
		switch {
		case errors.As(err, &we):
			return n, model.IOError(we)
		case errors.As(err, &de):
			return n, de
		}
		return n, model.TransportError(err)
	}

	return n, nil
}

// invalidOnError reports check failures as KindInvalid unless the check
// already classified them.
func invalidOnError(check ioutils.CheckFunc) ioutils.CheckFunc {
	return func(tmpPath string, n int64) error {
		err := check(tmpPath, n)
		if err == nil {
			return nil
		}
		var de *model.DownloadError
		if errors.As(err, &de) {
			return err
		}
		return model.InvalidError(err)
	}
}

// do sends a GET request and checks the status code.
//
// On success the caller owns resp.Body.
func (c *Client) do(ctx context.Context, rawURL string) (*http.Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, model.InvalidError(err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, model.InvalidError(fmt.Errorf("unsupported URL scheme %q in %s", u.Scheme, rawURL))
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, model.TransportError(err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, model.InvalidError(err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, model.TransportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
		return nil, model.BadStatus(resp.StatusCode)
	}

	return resp, nil
}
