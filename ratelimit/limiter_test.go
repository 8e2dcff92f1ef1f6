package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestAllowBurst(t *testing.T) {
	tests := []struct {
		name      string
		perSecond int
		calls     int
		allowed   int
	}{
		{"unlimited", 0, 50, 50},
		{"negative is unlimited", -3, 5, 5},
		{"burst of one", 1, 3, 1},
		{"burst of five", 5, 8, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New()
			got := 0
			for i := 0; i < tt.calls; i++ {
				if l.Allow("sms", tt.perSecond) {
					got++
				}
			}
			if got != tt.allowed {
				t.Fatalf("allowed %d of %d, want %d", got, tt.calls, tt.allowed)
			}
		})
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l := New()

	if !l.Allow("twilio", 1) || l.Allow("twilio", 1) {
		t.Fatal("twilio bucket should hold exactly one token")
	}
	if !l.Allow("webhook", 1) {
		t.Fatal("webhook bucket must not share twilio's tokens")
	}
}

func TestBucketRefills(t *testing.T) {
	l := New()
	for l.Allow("sms", 10) {
	}

	time.Sleep(150 * time.Millisecond)

	if !l.Allow("sms", 10) {
		t.Fatal("expected a token after 150ms at 10/s")
	}
}

func TestWaitBlocksUntilToken(t *testing.T) {
	l := New()
	for l.Allow("sms", 20) {
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	if err := l.Wait(ctx, "sms", 20); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("Wait returned after %v without blocking", elapsed)
	}

	if err := l.Wait(ctx, "other", 0); err != nil {
		t.Fatalf("unlimited Wait: %v", err)
	}
}

func TestWaitHonoursContext(t *testing.T) {
	l := New()
	l.Allow("sms", 1)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx, "sms", 1); err == nil {
		t.Fatal("expected an error once the deadline cannot be met")
	}
}

func TestRateChangeStartsFresh(t *testing.T) {
	l := New()
	l.Allow("sms", 1)
	if l.Allow("sms", 1) {
		t.Fatal("bucket at 1/s should be empty")
	}
	if !l.Allow("sms", 5) {
		t.Fatal("changing the rate should start a full bucket")
	}
}

func TestResetRefillsKey(t *testing.T) {
	l := New()
	l.Allow("sms", 1)

	l.Reset("sms")

	if !l.Allow("sms", 1) {
		t.Fatal("expected a full bucket after Reset")
	}
}

func TestConcurrentAllowNeverOverspends(t *testing.T) {
	l := New()
	const perSecond = 50

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 4*perSecond; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("sms", perSecond) {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	// A token or two may refill while the goroutines run.
	if got := allowed.Load(); got < perSecond-5 || got > perSecond+2 {
		t.Fatalf("allowed %d, want about %d", got, perSecond)
	}
}
