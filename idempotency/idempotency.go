// Package idempotency deduplicates transaction attempts across client
// retries. An attempt registers its key before submitting; a retry that
// arrives while the first attempt is in flight, or after it already reached
// the network, gets the prior outcome instead of a second submission.
package idempotency

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrDuplicateKey is returned when an attempt with the same key is
	// already registered.
	ErrDuplicateKey = fmt.Errorf("duplicate idempotency key: attempt already registered")

	// ErrKeyNotFound is returned when looking up a non-existent key.
	ErrKeyNotFound = fmt.Errorf("idempotency key not found")
)

// Status of a registered attempt.
type Status int

const (
	StatusInFlight  Status = iota // attempt holds the key, no dispatch yet
	StatusSubmitted               // transaction reached the network
	StatusFailed                  // attempt failed before dispatch; key is retryable
)

func (s Status) String() string {
	switch s {
	case StatusInFlight:
		return "in_flight"
	case StatusSubmitted:
		return "submitted"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Record is the stored outcome of an attempt.
type Record struct {
	Key       string
	Status    Status
	TxHash    common.Hash
	FailCause string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store registers and resolves attempt keys.
type Store interface {
	// Begin claims the key for a new attempt. If the key is already held,
	// the existing record is returned along with ErrDuplicateKey.
	Begin(key string) (*Record, error)

	// MarkSubmitted records the transaction hash for a claimed key.
	MarkSubmitted(key string, hash common.Hash) error

	// MarkFailed releases the key for retry, recording the cause.
	MarkFailed(key string, cause string) error

	// Get returns the record for a key.
	Get(key string) (*Record, error)
}

// MemoryStore is the in-process Store. Records expire after the configured
// TTL so long-running processes don't accumulate settled keys.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	ttl     time.Duration

	stopChan chan struct{}
	stopped  bool
}

// NewMemoryStore creates a store. A zero ttl disables expiry.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	s := &MemoryStore{
		records:  make(map[string]*Record),
		ttl:      ttl,
		stopChan: make(chan struct{}),
	}
	if ttl > 0 {
		go s.cleanupLoop()
	}
	return s
}

// Stop terminates the expiry goroutine.
func (s *MemoryStore) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		s.stopped = true
		close(s.stopChan)
	}
}

func (s *MemoryStore) Begin(key string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[key]; ok {
		// A failed attempt releases its key; anything else is a duplicate.
		if existing.Status != StatusFailed {
			copied := *existing
			return &copied, ErrDuplicateKey
		}
	}

	now := time.Now()
	rec := &Record{Key: key, Status: StatusInFlight, CreatedAt: now, UpdatedAt: now}
	s.records[key] = rec
	copied := *rec
	return &copied, nil
}

func (s *MemoryStore) MarkSubmitted(key string, hash common.Hash) error {
	return s.update(key, func(rec *Record) {
		rec.Status = StatusSubmitted
		rec.TxHash = hash
	})
}

func (s *MemoryStore) MarkFailed(key string, cause string) error {
	return s.update(key, func(rec *Record) {
		rec.Status = StatusFailed
		rec.FailCause = cause
	})
}

func (s *MemoryStore) update(key string, apply func(*Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		return ErrKeyNotFound
	}
	apply(rec)
	rec.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) Get(key string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	copied := *rec
	return &copied, nil
}

// Size returns the number of live records.
func (s *MemoryStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(s.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.expire()
		case <-s.stopChan:
			return
		}
	}
}

func (s *MemoryStore) expire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-s.ttl)
	for key, rec := range s.records {
		// In-flight attempts are never expired out from under their owners.
		if rec.Status != StatusInFlight && rec.UpdatedAt.Before(cutoff) {
			delete(s.records, key)
		}
	}
}
