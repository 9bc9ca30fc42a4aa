// Package storage archives generated history exports in object
// storage so past reports remain retrievable after download.
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/booklend/apiserver/config"
)

const exportContentType = "text/csv"

// ObjectStorage defines the object operations common to the supported
// backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// ExportArchive stores CSV exports under stable keys on any backend.
type ExportArchive struct {
	backend ObjectStorage
}

// NewExportArchive constructs an ExportArchive over the provided
// backend.
func NewExportArchive(backend ObjectStorage) *ExportArchive {
	return &ExportArchive{backend: backend}
}

// NewExportArchiveFromConfig selects and connects the configured
// backend. Returns nil without error when no backend is configured.
// Callers that write exports should EnsureBucket before storing.
func NewExportArchiveFromConfig(ctx context.Context, cfg config.StorageConfig) (*ExportArchive, error) {
	switch cfg.Backend {
	case config.BackendNone:
		return nil, nil
	case config.BackendMinio:
		backend, err := NewMinioBackend(cfg.Minio)
		if err != nil {
			return nil, err
		}
		return NewExportArchive(backend), nil
	case config.BackendGCS:
		backend, err := NewGCSBackend(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		return NewExportArchive(backend), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// EnsureBucket ensures the configured bucket exists.
func (a *ExportArchive) EnsureBucket(ctx context.Context) error {
	return a.backend.EnsureBucket(ctx)
}

// Store uploads one export under the given key.
func (a *ExportArchive) Store(ctx context.Context, key string, r io.Reader, size int64) error {
	return a.backend.Put(ctx, key, r, size, exportContentType)
}

// Open reads a previously archived export back.
func (a *ExportArchive) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return a.backend.Get(ctx, key)
}

// Delete removes an archived export.
func (a *ExportArchive) Delete(ctx context.Context, key string) error {
	return a.backend.Delete(ctx, key)
}

// Bucket returns the configured bucket name.
func (a *ExportArchive) Bucket() string {
	return a.backend.Bucket()
}
