package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dejobratic/stockledger/internal/orders/ports"
)

type entry struct {
	response ports.StoredResponse
	storedAt time.Time
}

// Store retains idempotency responses for replaying duplicate requests.
// Entries older than ttl are treated as absent; a zero ttl keeps them forever.
type Store struct {
	mu    sync.Mutex
	items map[string]entry
	ttl   time.Duration
	now   func() time.Time
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		items: make(map[string]entry),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (s *Store) Get(_ context.Context, key string) (*ports.StoredResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if resp, ok := s.live(key); ok {
		return &resp, nil
	}
	return nil, nil
}

func (s *Store) Claim(_ context.Context, key, fingerprint string) (*ports.StoredResponse, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if resp, ok := s.live(key); ok {
		return &resp, false, nil
	}
	s.items[key] = entry{response: ports.StoredResponse{Fingerprint: fingerprint}, storedAt: s.now()}
	return nil, true, nil
}

// Save fills a claimed or absent key. A completed live entry is kept.
func (s *Store) Save(_ context.Context, key string, response ports.StoredResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.live(key); ok && !existing.InProgress() {
		return nil
	}
	s.items[key] = entry{response: response, storedAt: s.now()}
	return nil
}

func (s *Store) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.items[key]; ok && existing.response.InProgress() {
		delete(s.items, key)
	}
	return nil
}

func (s *Store) live(key string) (ports.StoredResponse, bool) {
	e, ok := s.items[key]
	if !ok || (s.ttl > 0 && s.now().Sub(e.storedAt) >= s.ttl) {
		return ports.StoredResponse{}, false
	}
	return e.response, true
}
