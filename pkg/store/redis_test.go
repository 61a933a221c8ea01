package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client), mr
}

func TestRedisStore_SetGetDelete(t *testing.T) {
	s, _ := newTestRedisStore(t)
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

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestRedisStore_TTLExpiry(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	s.Set(ctx, "k", []byte("v"), 10*time.Second)

	mr.FastForward(9 * time.Second)
	if _, err := s.Get(ctx, "k"); err != nil {
		t.Fatalf("Expected live entry, got %v", err)
	}

	mr.FastForward(2 * time.Second)
	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after expiry, got %v", err)
	}
}

func TestRedisStore_IncrementWithTTL(t *testing.T) {
	s, _ := newTestRedisStore(t)
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

func TestRedisStore_IncrementExpirySetOnce(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	s.IncrementWithTTL(ctx, "counter", 1, 10*time.Second)

	// Second increment must not extend the expiry.
	mr.FastForward(9 * time.Second)
	s.IncrementWithTTL(ctx, "counter", 1, 10*time.Second)

	mr.FastForward(2 * time.Second)
	got, err := s.IncrementWithTTL(ctx, "counter", 1, 10*time.Second)
	if err != nil {
		t.Fatalf("Increment failed: %v", err)
	}
	if got != 1 {
		t.Errorf("Expected expired counter to restart at 1, got %d", got)
	}
}

func TestRedisStore_IncrementNonCounter(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	s.Set(ctx, "k", []byte("not a number"), 0)
	if _, err := s.IncrementWithTTL(ctx, "k", 1, 0); !errors.Is(err, ErrNotCounter) {
		t.Errorf("Expected ErrNotCounter, got %v", err)
	}
}

func TestRedisStore_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStore(client)
	mr.Close()

	ctx := context.Background()
	if _, err := s.Get(ctx, "k"); !IsUnavailable(err) {
		t.Errorf("Expected ErrUnavailable after server shutdown, got %v", err)
	}
	if _, err := s.IncrementWithTTL(ctx, "k", 1, time.Minute); !IsUnavailable(err) {
		t.Errorf("Expected ErrUnavailable after server shutdown, got %v", err)
	}
	if err := s.Ping(ctx); !IsUnavailable(err) {
		t.Errorf("Expected ErrUnavailable after server shutdown, got %v", err)
	}
}

func TestRedisStore_KeyPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	s := NewRedisStore(client, WithKeyPrefix("custom:"))

	if err := s.Set(context.Background(), "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if !mr.Exists("custom:k") {
		t.Error("Expected key to be stored under the custom prefix")
	}
}
