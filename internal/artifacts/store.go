package artifacts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RefScheme prefixes every blob reference.
const RefScheme = "store://"

// ErrNotFound indicates an absent blob.
var ErrNotFound = errors.New("blob not found")

// BlobStore stores generated artifacts under opaque store:// references.
type BlobStore interface {
	// Put writes content under the given path and returns its reference.
	Put(ctx context.Context, path string, content []byte, contentType string) (string, error)

	// Get resolves a reference produced by Put.
	Get(ctx context.Context, ref string) ([]byte, error)
}

// FSStore is a BlobStore rooted in a local directory.
type FSStore struct {
	root string
}

// NewFSStore creates a filesystem-backed blob store rooted at dir.
func NewFSStore(dir string) (*FSStore, error) {
	if dir == "" {
		return nil, errors.New("artifact store root is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating artifact store root: %w", err)
	}
	return &FSStore{root: dir}, nil
}

// Put writes content under path and returns its store:// reference.
func (s *FSStore) Put(_ context.Context, path string, content []byte, _ string) (string, error) {
	full, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("creating artifact dir: %w", err)
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		return "", fmt.Errorf("writing artifact: %w", err)
	}
	return RefScheme + path, nil
}

// Get resolves a store:// reference.
func (s *FSStore) Get(_ context.Context, ref string) ([]byte, error) {
	path, ok := strings.CutPrefix(ref, RefScheme)
	if !ok {
		return nil, fmt.Errorf("%w: unrecognized reference %q", ErrNotFound, ref)
	}
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("reading artifact: %w", err)
	}
	return content, nil
}

// resolve joins path under the root, rejecting traversal outside it.
func (s *FSStore) resolve(path string) (string, error) {
	full := filepath.Join(s.root, filepath.FromSlash(path))
	rel, err := filepath.Rel(s.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("artifact path %q escapes store root", path)
	}
	return full, nil
}
