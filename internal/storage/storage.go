// Package storage exports extracted image records to disk and reads them
// back for a later download run.
package storage

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/IshaanNene/imgharvest/internal/types"
)

// Storage is the interface for all record export backends.
type Storage interface {
	// Store persists a batch of records.
	Store(records []types.ImageRecord) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}

// FormatFromPath picks a backend from the file extension. Unknown
// extensions default to json.
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		return "jsonl"
	case ".csv":
		return "csv"
	default:
		return "json"
	}
}

// NewFileStorage creates the file backend matching path's extension.
func NewFileStorage(path string, logger *slog.Logger) (Storage, error) {
	switch format := FormatFromPath(path); format {
	case "json":
		return NewJSONStorage(path, logger)
	case "jsonl":
		return NewJSONLStorage(path, logger)
	case "csv":
		return NewCSVStorage(path, logger)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", format)
	}
}

// Export writes records to path in one step.
func Export(path string, records []types.ImageRecord, logger *slog.Logger) error {
	s, err := NewFileStorage(path, logger)
	if err != nil {
		return err
	}
	if err := s.Store(records); err != nil {
		s.Close()
		return &types.StorageError{Backend: s.Name(), Err: err}
	}
	if err := s.Close(); err != nil {
		return &types.StorageError{Backend: s.Name(), Err: err}
	}
	return nil
}
