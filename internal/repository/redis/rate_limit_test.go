package redis

import (
	"context"
	"testing"
	"time"
)

func TestRateLimitRepository_CountsAttemptsInsideWindow(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewRateLimitRepository(client, SlidingWindowConfig{KeyPrefix: "rl", TTL: time.Hour})

	ctx := context.Background()
	base := time.Date(2025, 10, 24, 12, 0, 0, 0, time.UTC)

	for _, at := range []time.Time{base.Add(-2 * time.Minute), base.Add(-30 * time.Second), base.Add(-30 * time.Second), base} {
		if err := repo.RecordAttempt(ctx, "login:127.0.0.1", at); err != nil {
			t.Fatalf("RecordAttempt returned error: %v", err)
		}
	}

	count, err := repo.CountAttempts(ctx, "login:127.0.0.1", time.Minute, base)
	if err != nil {
		t.Fatalf("CountAttempts returned error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 attempts in window, got %d", count)
	}

	if ttl := server.TTL("rl:login:127.0.0.1"); ttl <= 0 || ttl > time.Hour {
		t.Fatalf("expected ttl within (0, 1h], got %v", ttl)
	}
}

func TestRateLimitRepository_TrimAndOldest(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewRateLimitRepository(client, SlidingWindowConfig{KeyPrefix: "rl"})

	ctx := context.Background()
	base := time.Date(2025, 10, 24, 12, 0, 0, 0, time.UTC)

	if err := repo.RecordAttempt(ctx, "otp", base.Add(-5*time.Minute)); err != nil {
		t.Fatalf("RecordAttempt returned error: %v", err)
	}
	if err := repo.RecordAttempt(ctx, "otp", base.Add(-20*time.Second)); err != nil {
		t.Fatalf("RecordAttempt returned error: %v", err)
	}

	if err := repo.TrimWindow(ctx, "otp", time.Minute, base); err != nil {
		t.Fatalf("TrimWindow returned error: %v", err)
	}

	if n, _ := client.ZCard(ctx, "rl:otp").Result(); n != 1 {
		t.Fatalf("expected trimmed set to hold one attempt, got %d", n)
	}

	oldest, ok, err := repo.OldestAttempt(ctx, "otp", time.Minute, base)
	if err != nil {
		t.Fatalf("OldestAttempt returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected an attempt inside the window")
	}
	if diff := oldest.Sub(base.Add(-20 * time.Second)); diff > time.Microsecond || diff < -time.Microsecond {
		t.Fatalf("unexpected oldest attempt %v", oldest)
	}
}

func TestRateLimitRepository_RejectsNonPositiveWindow(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewRateLimitRepository(client, SlidingWindowConfig{})

	if _, err := repo.CountAttempts(context.Background(), "x", 0, time.Now()); err == nil {
		t.Fatal("expected error for zero window")
	}
}
