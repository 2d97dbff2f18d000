package store

import (
	"context"
	"sync"
	"time"

	"github.com/regrant/regrant-auth/core"
)

// MemoryStore is an in-process NonceStore. Expired entries are evicted
// lazily on Issue at most once per TTL, and by DeleteExpired.
type MemoryStore struct {
	nonces    map[string]time.Time
	mu        sync.Mutex
	ttl       time.Duration
	opts      options
	lastSweep time.Time
}

// NewMemoryStore creates a new in-memory nonce store
func NewMemoryStore(ttl time.Duration, opts ...Option) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultNonceTTL
	}
	o := buildOptions(opts)
	return &MemoryStore{
		nonces:    make(map[string]time.Time),
		ttl:       ttl,
		opts:      o,
		lastSweep: o.now(),
	}
}

// Issue creates a nonce for address
func (s *MemoryStore) Issue(ctx context.Context, address string) (string, error) {
	nonce, err := generateNonce(s.opts.encoding)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.now()
	if now.Sub(s.lastSweep) >= s.ttl {
		s.deleteExpiredLocked(now)
	}
	s.nonces[core.NonceKey(address, nonce)] = now.Add(s.ttl)

	return nonce, nil
}

// Consume removes the nonce and reports whether it was present and unexpired
func (s *MemoryStore) Consume(ctx context.Context, address, nonce string) (bool, error) {
	key := core.NonceKey(address, nonce)

	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt, ok := s.nonces[key]
	if !ok {
		return false, nil
	}
	delete(s.nonces, key)

	return !s.opts.now().After(expiresAt), nil
}

// DeleteExpired evicts every expired nonce and returns how many were removed
func (s *MemoryStore) DeleteExpired(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.deleteExpiredLocked(s.opts.now()), nil
}

// Len returns the number of stored nonces, expired or not
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.nonces)
}

func (s *MemoryStore) deleteExpiredLocked(now time.Time) int64 {
	var n int64
	for key, expiresAt := range s.nonces {
		if now.After(expiresAt) {
			delete(s.nonces, key)
			n++
		}
	}
	s.lastSweep = now
	return n
}
