package ledger

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// MemoryStore is the in-process Store used by default and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (m *MemoryStore) Append(rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[rec.ID]; exists {
		return fmt.Errorf("ledger: record %s already exists", rec.ID)
	}
	m.records[rec.ID] = rec
	return nil
}

func (m *MemoryStore) UpdateStatus(id string, from, to Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	if rec.Status != from || !from.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s (current %s)", ErrBadTransition, from, to, rec.Status)
	}
	rec.Status = to
	now := time.Now()
	rec.ResolvedAt = &now
	m.records[id] = rec
	return nil
}

func (m *MemoryStore) MarkReplaced(originalID, cancelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[originalID]
	if !ok {
		return ErrNotFound
	}
	if !rec.Status.CanTransition(StatusReplaced) {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, rec.Status, StatusReplaced)
	}
	rec.Status = StatusReplaced
	now := time.Now()
	rec.ResolvedAt = &now
	rec.Detail = replacedDetail{rec.Detail, cancelID}
	m.records[originalID] = rec
	return nil
}

// replacedDetail wraps the original detail with the cancellation link.
type replacedDetail struct {
	Detail
	CancelTxID string
}

func (m *MemoryStore) Query(wallet common.Address, f Filter) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Record
	for _, rec := range m.records {
		if rec.Wallet != wallet {
			continue
		}
		if f.ChainID != 0 && rec.ChainID != f.ChainID {
			continue
		}
		if f.Kind != "" && rec.Kind != f.Kind {
			continue
		}
		if f.Status != "" && rec.Status != f.Status {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}
