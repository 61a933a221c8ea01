package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMemoryStore_SetGet(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	if err := s.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "v" {
		t.Errorf("Expected %q, got %q", "v", got)
	}
}

func TestMemoryStore_GetMissing(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	_, err := s.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	s := NewMemoryStore(WithClock(func() time.Time { return clock() }))
	defer s.Close()
	ctx := context.Background()

	if err := s.Set(ctx, "k", []byte("v"), 10*time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// Still live just before the deadline.
	clock = func() time.Time { return now.Add(9 * time.Second) }
	if _, err := s.Get(ctx, "k"); err != nil {
		t.Fatalf("Expected live entry, got %v", err)
	}

	// Expired at the deadline.
	clock = func() time.Time { return now.Add(10 * time.Second) }
	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after expiry, got %v", err)
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	s.Set(ctx, "k", []byte("v"), 0)
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}

	// Deleting a missing key is not an error.
	if err := s.Delete(ctx, "missing"); err != nil {
		t.Errorf("Delete of missing key failed: %v", err)
	}
}

func TestMemoryStore_IncrementWithTTL(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	for want := int64(1); want <= 5; want++ {
		got, err := s.IncrementWithTTL(ctx, "counter", 1, time.Minute)
		if err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
		if got != want {
			t.Errorf("Increment %d: expected %d, got %d", want, want, got)
		}
	}
}

func TestMemoryStore_IncrementExpirySetOnce(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	s := NewMemoryStore(WithClock(func() time.Time { return clock() }))
	defer s.Close()
	ctx := context.Background()

	s.IncrementWithTTL(ctx, "counter", 1, 10*time.Second)

	// A later increment must not extend the original expiry.
	clock = func() time.Time { return now.Add(9 * time.Second) }
	s.IncrementWithTTL(ctx, "counter", 1, 10*time.Second)

	clock = func() time.Time { return now.Add(10 * time.Second) }
	if _, err := s.Get(ctx, "counter"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected counter to expire at original deadline, got %v", err)
	}

	// A fresh increment after expiry starts over at delta.
	got, err := s.IncrementWithTTL(ctx, "counter", 1, 10*time.Second)
	if err != nil {
		t.Fatalf("Increment failed: %v", err)
	}
	if got != 1 {
		t.Errorf("Expected fresh counter to restart at 1, got %d", got)
	}
}

func TestMemoryStore_IncrementConcurrent(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	const goroutines = 100
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			if _, err := s.IncrementWithTTL(ctx, "counter", 1, time.Minute); err != nil {
				t.Errorf("Increment failed: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := s.IncrementWithTTL(ctx, "counter", 0, time.Minute)
	if err != nil {
		t.Fatalf("Increment failed: %v", err)
	}
	if got != goroutines {
		t.Errorf("Expected %d after %d concurrent increments, got %d", goroutines, goroutines, got)
	}
}

func TestMemoryStore_IncrementNonCounter(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	s.Set(ctx, "k", []byte("not a number"), 0)
	if _, err := s.IncrementWithTTL(ctx, "k", 1, 0); !errors.Is(err, ErrNotCounter) {
		t.Errorf("Expected ErrNotCounter, got %v", err)
	}
}

func TestMemoryStore_Sweep(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	s := NewMemoryStore(
		WithClock(func() time.Time { return clock() }),
		WithSweepInterval(10*time.Millisecond),
	)
	defer s.Close()
	ctx := context.Background()

	s.Set(ctx, "short", []byte("v"), time.Second)
	s.Set(ctx, "keep", []byte("v"), 0)

	clock = func() time.Time { return now.Add(2 * time.Second) }
	time.Sleep(50 * time.Millisecond)

	if got := s.Len(); got != 1 {
		t.Errorf("Expected 1 live entry after sweep, got %d", got)
	}
}
