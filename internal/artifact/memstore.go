package artifact

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"sync"
)

// MemStore is an in-memory Store for tests. Validity rules match DirStore:
// stored bytes must clear the kind's minimum size, and captions must carry
// the WebVTT magic.
type MemStore struct {
	mu    sync.Mutex
	blobs map[Key][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{blobs: make(map[Key][]byte)}
}

// Seed stores content for key without size validation, for arranging
// test fixtures.
func (s *MemStore) Seed(key Key, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = append([]byte(nil), content...)
}

// SeedValid stores a synthetic blob just over the kind's size threshold.
func (s *MemStore) SeedValid(key Key) {
	size := key.Kind.MinSize() + 1
	blob := bytes.Repeat([]byte{0xAB}, int(size))
	if key.Kind == Caption {
		blob = append([]byte("WEBVTT\n\n"), blob...)
	}
	s.Seed(key, blob)
}

func (s *MemStore) Exists(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[key]
	if !ok || int64(len(data)) <= key.Kind.MinSize() {
		return false
	}
	if key.Kind == Caption {
		return validCaption(data)
	}
	return true
}

func (s *MemStore) Path(key Key) string {
	return filepath.Join("/mem", key.String())
}

func (s *MemStore) Open(key Key) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[key]
	if !ok {
		return nil, fmt.Errorf("artifact %s not found", key)
	}
	return io.NopCloser(bytes.NewReader(append([]byte(nil), data...))), nil
}

func (s *MemStore) Put(key Key, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.Seed(key, data)
	return nil
}
