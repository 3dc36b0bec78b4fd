package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"quizsync-service/internal/domain"
)

// BlobStore keeps uploaded assets in memory (tests, single-box demos).
type BlobStore struct {
	baseURL string

	mu    sync.RWMutex
	blobs map[string]Blob
}

// Blob is a stored asset.
type Blob struct {
	Data        []byte
	ContentType string
}

// NewBlobStore serves resolved references under baseURL, e.g. "/blobs".
func NewBlobStore(baseURL string) *BlobStore {
	return &BlobStore{baseURL: strings.TrimSuffix(baseURL, "/"), blobs: make(map[string]Blob)}
}

func (s *BlobStore) Upload(_ context.Context, path string, data []byte, contentType string) (string, error) {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return "", fmt.Errorf("upload: empty path")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[path] = Blob{Data: append([]byte(nil), data...), ContentType: contentType}
	return path, nil
}

func (s *BlobStore) Resolve(_ context.Context, ref string) (string, error) {
	ref = strings.TrimPrefix(ref, "/")
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.blobs[ref]; !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrBlobNotFound, ref)
	}
	return s.baseURL + "/" + ref, nil
}

// Get returns the stored asset at path.
func (s *BlobStore) Get(path string) (Blob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, ok := s.blobs[strings.TrimPrefix(path, "/")]
	return blob, ok
}
