// Package fetcher downloads provider data over HTTP and FTP and parses the
// CSV and XLSX payloads the providers ship.
package fetcher

import (
	"context"
	"io"
)

// Fetcher downloads remote provider data. Implementations classify transient
// failures with resilience.TransientError so the loader framework's retry
// ceiling governs re-attempts uniformly.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL into path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// ConditionalFetcher additionally supports ETag-gated downloads for sources
// that publish large rarely-changing files.
type ConditionalFetcher interface {
	Fetcher

	// DownloadIfChanged fetches only if the ETag differs. Returns
	// (body, newETag, changed, error); body is nil when unchanged.
	DownloadIfChanged(ctx context.Context, url string, etag string) (io.ReadCloser, string, bool, error)
}
