package circuitbreaker

import (
	"testing"
	"time"
)

func TestBreaker_TripsAfterThreshold(t *testing.T) {
	b := New(Config{FailureThreshold: 3, SuccessThreshold: 1, Cooldown: time.Hour})

	for i := 0; i < 2; i++ {
		b.RecordFailure()
		if !b.Allow() {
			t.Fatalf("breaker opened after %d failures, threshold is 3", i+1)
		}
	}
	b.RecordFailure()
	if b.Allow() {
		t.Fatal("breaker should be open after reaching the threshold")
	}
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %s", b.State())
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := New(Config{FailureThreshold: 3, SuccessThreshold: 1, Cooldown: time.Hour})

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()
	if !b.Allow() {
		t.Fatal("success should have reset the consecutive failure count")
	}
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	b := New(Config{FailureThreshold: 1, SuccessThreshold: 2, Cooldown: 10 * time.Millisecond})

	b.RecordFailure()
	if b.Allow() {
		t.Fatal("expected open breaker")
	}

	time.Sleep(20 * time.Millisecond)
	if b.State() != StateHalfOpen {
		t.Fatalf("expected half-open after cooldown, got %s", b.State())
	}
	if !b.Allow() {
		t.Fatal("half-open must allow probes")
	}

	t.Run("probe failure reopens", func(t *testing.T) {
		b.RecordFailure()
		if b.State() != StateOpen {
			t.Fatalf("expected open after failed probe, got %s", b.State())
		}
	})

	t.Run("enough probe successes close it", func(t *testing.T) {
		time.Sleep(20 * time.Millisecond)
		b.RecordSuccess()
		b.RecordSuccess()
		if b.State() != StateClosed {
			t.Fatalf("expected closed after successful probes, got %s", b.State())
		}
	})
}

func TestBreaker_Reset(t *testing.T) {
	b := New(Config{FailureThreshold: 1, SuccessThreshold: 1, Cooldown: time.Hour})
	b.RecordFailure()
	b.Reset()
	if b.State() != StateClosed || !b.Allow() {
		t.Fatal("reset must close the breaker")
	}
	if b.Stats().ConsecutiveFailures != 0 {
		t.Fatal("reset must clear counters")
	}
}

func TestSet_PerKeyIsolation(t *testing.T) {
	s := NewSet(Config{FailureThreshold: 1, SuccessThreshold: 1, Cooldown: time.Hour})

	s.For(1).RecordFailure()
	if s.For(1).Allow() {
		t.Fatal("chain 1 breaker should be open")
	}
	if !s.For(137).Allow() {
		t.Fatal("chain 137 breaker must be unaffected")
	}
	if s.For(1) != s.For(1) {
		t.Fatal("For must return the same breaker per key")
	}
}
