package vault

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Defaults for the pacing and breaker policy. The remote store enforces
// aggressive per-key limits; the interval keeps steady-state traffic under
// them and the cooldown absorbs the bursts that slip through.
const (
	DefaultMinInterval = 600 * time.Millisecond
	DefaultCooldown    = 60 * time.Second
)

// RateLimitStatus is the observable breaker state, queryable by the UI
// layer.
type RateLimitStatus struct {
	// Limited is true while the circuit breaker refuses calls.
	Limited bool

	// Until is when calls will be attempted again. Zero when not limited.
	Until time.Time
}

// RateLimitedClient wraps an API so that every remote call is serialized,
// paced to a minimum interval, and gated by a circuit breaker.
//
// Exactly one instance should exist per process; constructing two against
// the same vault doubles the effective call rate. Construct it once at
// startup and inject it into every dependent.
type RateLimitedClient struct {
	api    API
	logger *log.Logger

	// mu serializes calls. A second caller's pacing wait is computed
	// relative to the first caller's completion.
	mu      sync.Mutex
	limiter *rate.Limiter

	// stateMu guards the breaker fields separately from mu, so Status
	// stays answerable while a call is on the wire.
	stateMu   sync.Mutex
	open      bool
	openUntil time.Time
	cooldown  time.Duration
}

// NewRateLimitedClient wraps api with pacing and a circuit breaker.
// Non-positive intervals fall back to the defaults. If logger is nil, a
// default logger writing to stderr is used.
func NewRateLimitedClient(api API, minInterval, cooldown time.Duration, logger *log.Logger) *RateLimitedClient {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[vault] ", log.LstdFlags)
	}

	return &RateLimitedClient{
		api:      api,
		logger:   logger,
		limiter:  rate.NewLimiter(rate.Every(minInterval), 1),
		cooldown: cooldown,
	}
}

// Status returns the current breaker state. It never waits on an
// in-flight call.
func (c *RateLimitedClient) Status() RateLimitStatus {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	if c.open && time.Now().Before(c.openUntil) {
		return RateLimitStatus{Limited: true, Until: c.openUntil}
	}
	return RateLimitStatus{}
}

// do runs one remote operation under the pacing and breaker policy.
//
// If the breaker is open, it fails immediately with ErrRateLimited and no
// network call is attempted. Otherwise the caller is suspended until the
// minimum interval since the previous call has elapsed, then op runs. A
// rate-limit failure opens the breaker for the server-suggested window, or
// the configured cooldown when the server did not suggest one. Other
// failures propagate unchanged.
func (c *RateLimitedClient) do(ctx context.Context, name string, op func(context.Context) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stateMu.Lock()
	if c.open {
		if time.Now().Before(c.openUntil) {
			until := c.openUntil
			c.stateMu.Unlock()
			return fmt.Errorf("%s: breaker open until %s: %w",
				name, until.Format(time.RFC3339), ErrRateLimited)
		}
		c.open = false
		c.openUntil = time.Time{}
	}
	c.stateMu.Unlock()

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	err := op(ctx)
	if err == nil {
		return nil
	}

	if IsRateLimited(err) {
		window := c.cooldown
		var rle *RateLimitError
		if errors.As(err, &rle) && rle.RetryAfter > 0 {
			window = rle.RetryAfter
		}
		c.stateMu.Lock()
		c.open = true
		c.openUntil = time.Now().Add(window)
		c.stateMu.Unlock()
		c.logger.Printf("Rate limited on %s; pausing remote calls for %s", name, window)
		return fmt.Errorf("%s: %w", name, ErrRateLimited)
	}

	return err
}

// ListVaults implements API.
func (c *RateLimitedClient) ListVaults(ctx context.Context) ([]Vault, error) {
	var vaults []Vault
	err := c.do(ctx, "list vaults", func(ctx context.Context) error {
		var err error
		vaults, err = c.api.ListVaults(ctx)
		return err
	})
	return vaults, err
}

// ListItems implements API.
func (c *RateLimitedClient) ListItems(ctx context.Context, vaultID string) ([]Item, error) {
	var items []Item
	err := c.do(ctx, "list items", func(ctx context.Context) error {
		var err error
		items, err = c.api.ListItems(ctx, vaultID)
		return err
	})
	return items, err
}

// GetItem implements API.
func (c *RateLimitedClient) GetItem(ctx context.Context, vaultID, itemID string) (*Item, error) {
	var item *Item
	err := c.do(ctx, "get item", func(ctx context.Context) error {
		var err error
		item, err = c.api.GetItem(ctx, vaultID, itemID)
		return err
	})
	return item, err
}

// CreateItem implements API.
func (c *RateLimitedClient) CreateItem(ctx context.Context, vaultID string, item *Item) (*Item, error) {
	var created *Item
	err := c.do(ctx, "create item", func(ctx context.Context) error {
		var err error
		created, err = c.api.CreateItem(ctx, vaultID, item)
		return err
	})
	return created, err
}

// PutItem implements API.
func (c *RateLimitedClient) PutItem(ctx context.Context, vaultID string, item *Item) (*Item, error) {
	var updated *Item
	err := c.do(ctx, "put item", func(ctx context.Context) error {
		var err error
		updated, err = c.api.PutItem(ctx, vaultID, item)
		return err
	})
	return updated, err
}

// DeleteItem implements API.
func (c *RateLimitedClient) DeleteItem(ctx context.Context, vaultID, itemID string) error {
	return c.do(ctx, "delete item", func(ctx context.Context) error {
		return c.api.DeleteItem(ctx, vaultID, itemID)
	})
}

// ResolveRefs implements API.
func (c *RateLimitedClient) ResolveRefs(ctx context.Context, refs []string) (map[string]string, error) {
	var resolved map[string]string
	err := c.do(ctx, "resolve refs", func(ctx context.Context) error {
		var err error
		resolved, err = c.api.ResolveRefs(ctx, refs)
		return err
	})
	return resolved, err
}
