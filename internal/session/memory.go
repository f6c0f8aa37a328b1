package session

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps sessions in process memory. Entries expire after the
// configured TTL and are swept by the go-cache janitor.
type MemoryStore struct {
	mu    sync.Mutex
	cache *cache.Cache
}

func NewMemoryStore(ttl, cleanupInterval time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if cleanupInterval <= 0 {
		cleanupInterval = ttl
	}
	return &MemoryStore{cache: cache.New(ttl, cleanupInterval)}
}

func (s *MemoryStore) Load(_ context.Context, id string) (State, error) {
	if v, found := s.cache.Get(id); found {
		if st, ok := v.(State); ok {
			return st, nil
		}
	}
	return State{}, nil
}

func (s *MemoryStore) Save(_ context.Context, id string, st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Set(id, st, cache.DefaultExpiration)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Delete(id)
	return nil
}

func (s *MemoryStore) Claim(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, _ := s.Load(ctx, id); st.HashShown {
		return false, nil
	}
	s.cache.Set(id, State{HashShown: true}, cache.DefaultExpiration)
	return true, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error {
	s.cache.Flush()
	return nil
}

// Len returns the number of live sessions.
func (s *MemoryStore) Len() int {
	return s.cache.ItemCount()
}
