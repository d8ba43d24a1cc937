package vault

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"
	"time"
)

func testLogger() *log.Logger {
	return log.New(os.Stderr, "[test] ", 0)
}

func TestRateLimitedClient_PacesBackToBackCalls(t *testing.T) {
	api := newFakeAPI()
	interval := 50 * time.Millisecond
	client := NewRateLimitedClient(api, interval, time.Minute, testLogger())

	ctx := context.Background()
	if _, err := client.ListVaults(ctx); err != nil {
		t.Fatalf("first call failed: %v", err)
	}

	start := time.Now()
	if _, err := client.ListVaults(ctx); err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < interval {
		t.Errorf("second call ran after %v, want at least %v between calls", elapsed, interval)
	}
}

func TestRateLimitedClient_OpensBreakerOnRateLimit(t *testing.T) {
	api := newFakeAPI()
	api.failWith = &RateLimitError{RetryAfter: time.Minute}
	client := NewRateLimitedClient(api, time.Millisecond, time.Minute, testLogger())

	ctx := context.Background()
	if _, err := client.ListVaults(ctx); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	// The breaker must now fail fast without touching the network.
	before := api.listVaultCalls.Load()
	if _, err := client.ListVaults(ctx); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected fast ErrRateLimited while breaker open, got %v", err)
	}
	if calls := api.listVaultCalls.Load(); calls != before {
		t.Errorf("breaker-open call reached the network: %d calls, want %d", calls, before)
	}

	status := client.Status()
	if !status.Limited {
		t.Error("Status().Limited = false, want true")
	}
	if until := time.Until(status.Until); until < 50*time.Second {
		t.Errorf("breaker window %v, want close to the server-suggested minute", until)
	}
}

func TestRateLimitedClient_BreakerClosesAfterCooldown(t *testing.T) {
	api := newFakeAPI()
	api.failWith = &RateLimitError{RetryAfter: 30 * time.Millisecond}
	client := NewRateLimitedClient(api, time.Millisecond, time.Minute, testLogger())

	ctx := context.Background()
	if _, err := client.ListVaults(ctx); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	api.mu.Lock()
	api.failWith = nil
	api.mu.Unlock()

	time.Sleep(50 * time.Millisecond)

	if _, err := client.ListVaults(ctx); err != nil {
		t.Fatalf("call after cooldown failed: %v", err)
	}
	if status := client.Status(); status.Limited {
		t.Error("Status().Limited = true after cooldown expiry")
	}
}

func TestRateLimitedClient_StatusAnswersDuringInFlightCall(t *testing.T) {
	api := newFakeAPI()
	api.listItemDelay = 300 * time.Millisecond
	client := NewRateLimitedClient(api, time.Millisecond, time.Minute, testLogger())

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := client.ListItems(context.Background(), "v-devorb"); err != nil {
			t.Errorf("ListItems failed: %v", err)
		}
	}()

	// Give the call time to reach the slow fake, then query the breaker
	// state. Status must not wait for the call to finish.
	time.Sleep(50 * time.Millisecond)
	start := time.Now()
	status := client.Status()
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Status blocked for %v behind an in-flight call", elapsed)
	}
	if status.Limited {
		t.Error("Status().Limited = true with no rate-limit failure")
	}
	<-done
}

func TestRateLimitedClient_OtherErrorsPropagateUnchanged(t *testing.T) {
	api := newFakeAPI()
	sentinel := errors.New("boom")
	api.failWith = sentinel
	client := NewRateLimitedClient(api, time.Millisecond, time.Minute, testLogger())

	if _, err := client.ListVaults(context.Background()); !errors.Is(err, sentinel) {
		t.Fatalf("expected underlying error, got %v", err)
	}
	if status := client.Status(); status.Limited {
		t.Error("non-rate-limit error opened the breaker")
	}
}

func TestIsRateLimited_MessageInspection(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"typed", &RateLimitError{}, true},
		{"wrapped sentinel", errors.New("wrapped: " + ErrRateLimited.Error()), true},
		{"message 429", errors.New("unexpected status 429"), true},
		{"message too many requests", errors.New("Too Many Requests"), true},
		{"unrelated", errors.New("connection refused"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRateLimited(tc.err); got != tc.want {
				t.Errorf("IsRateLimited(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
