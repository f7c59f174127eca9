package nonce

import (
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var testWallet = common.HexToAddress("0x1111111111111111111111111111111111111111")

func TestTracker_RecordAndLast(t *testing.T) {
	tr := NewTracker()

	if _, ok := tr.Last(testWallet, 1); ok {
		t.Fatal("expected no recorded nonce for a fresh tracker")
	}

	tr.Record(testWallet, 1, 5)
	if n, ok := tr.Last(testWallet, 1); !ok || n != 5 {
		t.Fatalf("expected last nonce 5, got %d (ok=%v)", n, ok)
	}

	// Lower or equal records are ignored.
	tr.Record(testWallet, 1, 3)
	tr.Record(testWallet, 1, 5)
	if n, _ := tr.Last(testWallet, 1); n != 5 {
		t.Fatalf("expected last nonce to stay 5, got %d", n)
	}

	// Separate chains are independent.
	tr.Record(testWallet, 137, 9)
	if n, _ := tr.Last(testWallet, 1); n != 5 {
		t.Fatalf("chain 137 record leaked into chain 1: %d", n)
	}
}

func TestTracker_Next(t *testing.T) {
	tr := NewTracker()

	// No local knowledge: chain count wins.
	if n := tr.Next(testWallet, 1, 7); n != 7 {
		t.Fatalf("expected 7, got %d", n)
	}

	// Local record ahead of a lagging node.
	tr.Record(testWallet, 1, 9)
	if n := tr.Next(testWallet, 1, 7); n != 10 {
		t.Fatalf("expected 10, got %d", n)
	}

	// Node caught up and moved past local memory.
	if n := tr.Next(testWallet, 1, 15); n != 15 {
		t.Fatalf("expected 15, got %d", n)
	}
}

func TestTracker_Forget(t *testing.T) {
	tr := NewTracker()
	tr.Record(testWallet, 1, 5)
	tr.Forget(testWallet, 1)
	if _, ok := tr.Last(testWallet, 1); ok {
		t.Fatal("expected nonce to be forgotten")
	}
}

func TestTracker_ConcurrentRecord(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n uint64) {
			defer wg.Done()
			tr.Record(testWallet, 1, n)
		}(uint64(i))
	}
	wg.Wait()
	if n, _ := tr.Last(testWallet, 1); n != 99 {
		t.Fatalf("expected highest recorded nonce 99, got %d", n)
	}
}
