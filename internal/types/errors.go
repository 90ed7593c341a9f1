package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrNoContentFound = errors.New("no content found")
	ErrEmptySource    = errors.New("empty image source")
	ErrInvalidURL     = errors.New("invalid URL")
	ErrNoBrowser      = errors.New("browser session not open")
)

// ItemExtractionError wraps a failure reading one scanned container.
type ItemExtractionError struct {
	Index int
	Field string
	Err   error
}

func (e *ItemExtractionError) Error() string {
	return fmt.Sprintf("extract item %d (field=%s): %v", e.Index, e.Field, e.Err)
}

func (e *ItemExtractionError) Unwrap() error { return e.Err }

// DirectoryCreationError is returned when the download directory cannot be
// prepared. It aborts the whole batch.
type DirectoryCreationError struct {
	Path string
	Err  error
}

func (e *DirectoryCreationError) Error() string {
	return fmt.Sprintf("create output directory %s: %v", e.Path, e.Err)
}

func (e *DirectoryCreationError) Unwrap() error { return e.Err }

// FetchError wraps errors that occur while requesting an asset.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
	Retryable  bool
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// StorageError wraps errors that occur during record export or import.
type StorageError struct {
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
