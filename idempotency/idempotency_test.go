package idempotency

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status   Status
		expected string
	}{
		{StatusInFlight, "in_flight"},
		{StatusSubmitted, "submitted"},
		{StatusFailed, "failed"},
		{Status(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.expected {
			t.Errorf("Status(%d).String() = %q, expected %q", tt.status, got, tt.expected)
		}
	}
}

func TestMemoryStore_Begin(t *testing.T) {
	t.Run("claims a fresh key", func(t *testing.T) {
		store := NewMemoryStore(0)
		defer store.Stop()

		rec, err := store.Begin("key1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec.Status != StatusInFlight {
			t.Errorf("expected in_flight, got %v", rec.Status)
		}
	})

	t.Run("duplicate while in flight", func(t *testing.T) {
		store := NewMemoryStore(0)
		defer store.Stop()

		if _, err := store.Begin("key1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_, err := store.Begin("key1")
		if !errors.Is(err, ErrDuplicateKey) {
			t.Fatalf("expected ErrDuplicateKey, got %v", err)
		}
	})

	t.Run("duplicate after submission returns the stored hash", func(t *testing.T) {
		store := NewMemoryStore(0)
		defer store.Stop()

		hash := common.HexToHash("0x42")
		store.Begin("key1")
		if err := store.MarkSubmitted("key1", hash); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		rec, err := store.Begin("key1")
		if !errors.Is(err, ErrDuplicateKey) {
			t.Fatalf("expected ErrDuplicateKey, got %v", err)
		}
		if rec.TxHash != hash {
			t.Errorf("expected stored hash %s, got %s", hash, rec.TxHash)
		}
	})

	t.Run("failed attempt releases the key", func(t *testing.T) {
		store := NewMemoryStore(0)
		defer store.Stop()

		store.Begin("key1")
		if err := store.MarkFailed("key1", "estimation failed"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := store.Begin("key1"); err != nil {
			t.Fatalf("expected released key to be claimable, got %v", err)
		}
	})
}

func TestMemoryStore_UpdateMissingKey(t *testing.T) {
	store := NewMemoryStore(0)
	defer store.Stop()

	if err := store.MarkSubmitted("nope", common.Hash{}); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
	if err := store.MarkFailed("nope", "x"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
	if _, err := store.Get("nope"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore(20 * time.Millisecond)
	defer store.Stop()

	store.Begin("settled")
	store.MarkSubmitted("settled", common.HexToHash("0x01"))
	store.Begin("live")

	deadline := time.After(500 * time.Millisecond)
	for store.Size() > 1 {
		select {
		case <-deadline:
			t.Fatal("settled record was not expired")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if _, err := store.Get("live"); err != nil {
		t.Fatal("in-flight record must never be expired")
	}
}

func TestMemoryStore_ConcurrentBegin(t *testing.T) {
	store := NewMemoryStore(0)
	defer store.Stop()

	var wg sync.WaitGroup
	var mu sync.Mutex
	claims := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Begin("contended"); err == nil {
				mu.Lock()
				claims++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if claims != 1 {
		t.Fatalf("expected exactly one successful claim, got %d", claims)
	}
}
