package fetcher

import (
	"context"
	"io"
)

// Response is a streamed HTTP response. Body is already decoded and must
// be closed by the caller.
type Response struct {
	URL           string
	StatusCode    int
	ContentType   string
	ContentLength int64
	Body          io.ReadCloser
}

// Fetcher is the interface for asset fetcher implementations.
type Fetcher interface {
	// Stream issues a GET for rawURL and returns as soon as headers
	// arrive. Transport failures are returned as *types.FetchError;
	// any HTTP status, including non-200, is returned as a Response.
	Stream(ctx context.Context, rawURL string) (*Response, error)

	// Close releases any resources held by the fetcher.
	Close() error
}
