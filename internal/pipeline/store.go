package pipeline

import (
	"context"
	"sync"
)

// Store holds per-request progress keyed by request ID. Update applies a
// read-modify-write atomically with respect to concurrent callers on the
// same ID; implementations must not require callers to hold any lock across
// external collaborator calls.
type Store interface {
	// Create stores a new Request. ErrRequestExists if the ID is taken.
	Create(ctx context.Context, req *Request) error

	// Get returns a snapshot of the Request. ErrUnknownRequest if absent.
	Get(ctx context.Context, id string) (*Request, error)

	// Update atomically applies fn to the stored Request and returns the
	// updated snapshot. If fn returns an error the Request is unchanged.
	Update(ctx context.Context, id string, fn func(*Request) error) (*Request, error)

	// Delete evicts a Request. Evicting an absent ID is not an error.
	Delete(ctx context.Context, id string) error
}

// MemoryStore is an in-memory Store. It is thread-safe and suitable for
// single-process deployments; Requests live for the process lifetime unless
// explicitly deleted.
type MemoryStore struct {
	mu       sync.RWMutex
	requests map[string]*Request
}

// NewMemoryStore creates an empty in-memory request store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{requests: make(map[string]*Request)}
}

// Create stores a new Request.
func (s *MemoryStore) Create(ctx context.Context, req *Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.requests[req.ID]; exists {
		return ErrRequestExists
	}
	// Store a copy to prevent external mutation.
	s.requests[req.ID] = req.clone()
	return nil
}

// Get returns a snapshot of the Request.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, ErrUnknownRequest
	}
	return req.clone(), nil
}

// Update applies fn to a working copy and swaps it in only when fn succeeds.
func (s *MemoryStore) Update(ctx context.Context, id string, fn func(*Request) error) (*Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, ErrUnknownRequest
	}

	working := req.clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	s.requests[id] = working
	return working.clone(), nil
}

// Delete evicts a Request.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.requests, id)
	return nil
}

// Len returns the number of stored Requests.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.requests)
}
