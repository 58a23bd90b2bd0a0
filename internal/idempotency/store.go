package idempotency

import (
	"context"
	"sync"
	"time"
)

// Record is one cached idempotent response. A record is immutable once
// stored except for its access timestamp.
type Record struct {
	BodyHash       string
	StatusCode     int
	Response       []byte
	CreatedAt      time.Time
	LastAccessedAt time.Time
}

// Store is a generic expiring key-value store for idempotency records.
// Each record independently expires accessExpiry after its last read and
// modifyExpiry after creation, whichever elapses first; expired records are
// treated as absent.
type Store interface {
	// Get returns the record for key and refreshes its access timestamp.
	Get(ctx context.Context, key string) (*Record, bool, error)
	// Put stores a record under key, replacing any expired leftover.
	Put(ctx context.Context, key string, record Record) error
	// Delete removes the record for key if present.
	Delete(ctx context.Context, key string) error
	// Evict removes up to limit expired records and reports how many went.
	Evict(ctx context.Context, limit int) (int, error)
}

// MemoryStore is the in-process Store implementation.
type MemoryStore struct {
	accessExpiry time.Duration
	modifyExpiry time.Duration

	mu      sync.Mutex
	records map[string]*Record

	now func() time.Time
}

func NewMemoryStore(accessExpiry, modifyExpiry time.Duration) *MemoryStore {
	return &MemoryStore{
		accessExpiry: accessExpiry,
		modifyExpiry: modifyExpiry,
		records:      make(map[string]*Record),
		now:          time.Now,
	}
}

func (s *MemoryStore) expired(record *Record, now time.Time) bool {
	return now.Sub(record.LastAccessedAt) >= s.accessExpiry ||
		now.Sub(record.CreatedAt) >= s.modifyExpiry
}

func (s *MemoryStore) Get(ctx context.Context, key string) (*Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[key]
	if !ok {
		return nil, false, nil
	}

	now := s.now()
	if s.expired(record, now) {
		delete(s.records, key)
		return nil, false, nil
	}

	record.LastAccessedAt = now
	copied := *record
	return &copied, true, nil
}

func (s *MemoryStore) Put(ctx context.Context, key string, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.LastAccessedAt = now
	s.records[key] = &record
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

func (s *MemoryStore) Evict(ctx context.Context, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	evicted := 0
	for key, record := range s.records {
		if limit > 0 && evicted >= limit {
			break
		}
		if s.expired(record, now) {
			delete(s.records, key)
			evicted++
		}
	}
	return evicted, nil
}
