package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/booklend/apiserver/config"
)

// memoryStorage backs ExportArchive tests with a plain map.
type memoryStorage struct {
	bucket       string
	objects      map[string][]byte
	contentTypes map[string]string
	ensured      bool
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{
		bucket:       "test-exports",
		objects:      make(map[string][]byte),
		contentTypes: make(map[string]string),
	}
}

func (s *memoryStorage) EnsureBucket(ctx context.Context) error {
	s.ensured = true
	return nil
}

func (s *memoryStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.objects[key] = data
	s.contentTypes[key] = contentType
	return nil
}

func (s *memoryStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memoryStorage) Delete(ctx context.Context, key string) error {
	if _, ok := s.objects[key]; !ok {
		return errors.New("object not found")
	}
	delete(s.objects, key)
	return nil
}

func (s *memoryStorage) Bucket() string {
	return s.bucket
}

var _ ObjectStorage = (*memoryStorage)(nil)

func TestExportArchiveRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := newMemoryStorage()
	archive := NewExportArchive(backend)

	if err := archive.EnsureBucket(ctx); err != nil {
		t.Fatalf("ensure bucket: %v", err)
	}
	if !backend.ensured {
		t.Error("bucket not ensured on the backend")
	}
	if archive.Bucket() != "test-exports" {
		t.Errorf("bucket = %q", archive.Bucket())
	}

	payload := []byte("Book Title,Author,User,Borrowed Date,Returned Date\n")
	key := "history-exports/abc.csv"
	if err := archive.Store(ctx, key, bytes.NewReader(payload), int64(len(payload))); err != nil {
		t.Fatalf("store: %v", err)
	}
	if ct := backend.contentTypes[key]; ct != "text/csv" {
		t.Errorf("content type = %q, want text/csv", ct)
	}

	object, err := archive.Open(ctx, key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer object.Close()
	data, err := io.ReadAll(object)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("read back %q, want %q", data, payload)
	}

	if err := archive.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := archive.Open(ctx, key); err == nil {
		t.Error("deleted export still readable")
	}
}

func TestNewExportArchiveFromConfig(t *testing.T) {
	ctx := context.Background()

	archive, err := NewExportArchiveFromConfig(ctx, config.StorageConfig{Backend: config.BackendNone})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if archive != nil {
		t.Error("expected no archive without a configured backend")
	}

	if _, err := NewExportArchiveFromConfig(ctx, config.StorageConfig{Backend: "s3"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}
