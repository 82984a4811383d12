package model

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies why a single download failed.
type ErrorKind int

const (
	// KindNone is the zero value, used by outcomes that did not fail.
	KindNone ErrorKind = iota

	// KindBadStatus means the server answered with a non-2xx status.
	KindBadStatus

	// KindTransport covers connection, DNS and timeout failures.
	KindTransport

	// KindIO covers local filesystem failures (permissions, disk space, bad path).
	KindIO

	// KindInvalid means the request or the downloaded content is unusable
	// (malformed URL, body that is not an image).
	KindInvalid

	// KindCanceled means the run was cancelled before the task could finish.
	KindCanceled
)

// String returns the lower-case name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindBadStatus:
		return "bad_status"
	case KindTransport:
		return "transport"
	case KindIO:
		return "io"
	case KindInvalid:
		return "invalid"
	case KindCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// DownloadError is the error returned by the single-item downloader.
type DownloadError struct {
	Kind ErrorKind

	// StatusCode is set for KindBadStatus.
	StatusCode int

	// Err is the underlying cause, if any.
	Err error
}

func (e *DownloadError) Error() string {
	switch {
	case e.Kind == KindBadStatus:
		return fmt.Sprintf("bad status: HTTP %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// BadStatus returns a KindBadStatus error for an HTTP status code.
func BadStatus(code int) *DownloadError {
	return &DownloadError{Kind: KindBadStatus, StatusCode: code}
}

// TransportError wraps a network failure.
func TransportError(err error) *DownloadError {
	return &DownloadError{Kind: KindTransport, Err: err}
}

// IOError wraps a local filesystem failure.
func IOError(err error) *DownloadError {
	return &DownloadError{Kind: KindIO, Err: err}
}

// InvalidError wraps an unusable request or response.
func InvalidError(err error) *DownloadError {
	return &DownloadError{Kind: KindInvalid, Err: err}
}

// KindOf returns the ErrorKind of err.
//
// Context cancellation is reported as KindCanceled even when it reached the
// caller as a transport error. Errors that are not a DownloadError are
// treated as transport failures.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}

	var de *DownloadError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindTransport
}

// IsRetryable reports whether another attempt may succeed.
//
// Transport failures are always retried. Bad statuses are retried for 5xx,
// 408 Request Timeout and 429 Too Many Requests; every other 4xx is
// permanent. IO, Invalid and Canceled errors are never retried.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindTransport:
		return true
	case KindBadStatus:
		var de *DownloadError
		errors.As(err, &de)
		code := de.StatusCode
		return code >= 500 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
	default:
		return false
	}
}
