package vault

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// DefaultResolverTTL is how long a discovered vault id stays fresh before
// the next Resolve re-checks the remote listing.
const DefaultResolverTTL = 10 * time.Minute

// IDStore persists the resolved vault id across runs. The config package
// implements it; tests use an in-memory stub.
type IDStore interface {
	VaultID() string
	SetVaultID(id string) error
}

// Resolver maps the well-known vault name to its id with as few discovery
// calls as possible: memoized id first, persisted id second, a paced
// remote listing last.
type Resolver struct {
	client API
	store  IDStore
	ttl    time.Duration
	logger *log.Logger

	mu         sync.Mutex
	cachedID   string
	resolvedAt time.Time
}

// NewResolver creates a resolver. A non-positive ttl falls back to
// DefaultResolverTTL.
func NewResolver(client API, store IDStore, ttl time.Duration, logger *log.Logger) *Resolver {
	if ttl <= 0 {
		ttl = DefaultResolverTTL
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[vault] ", log.LstdFlags)
	}
	return &Resolver{
		client: client,
		store:  store,
		ttl:    ttl,
		logger: logger,
	}
}

// Resolve returns the id of the DevOrb vault.
//
// A fresh memoized id is returned without any remote call. A persisted id
// is trusted verbatim. Otherwise the vault list is fetched and matched by
// display name; the match is memoized and persisted. Returns
// ErrVaultNotFound when no vault carries the expected name; creating the
// vault is a human action, so the error is not retryable.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cachedID != "" && time.Since(r.resolvedAt) < r.ttl {
		return r.cachedID, nil
	}

	if id := r.store.VaultID(); id != "" {
		r.cachedID = id
		r.resolvedAt = time.Now()
		return id, nil
	}

	vaults, err := r.client.ListVaults(ctx)
	if err != nil {
		return "", fmt.Errorf("vault discovery: %w", err)
	}

	for _, v := range vaults {
		if v.Name == VaultName {
			r.cachedID = v.ID
			r.resolvedAt = time.Now()
			if err := r.store.SetVaultID(v.ID); err != nil {
				r.logger.Printf("Warning: failed to persist vault id: %v", err)
			}
			return v.ID, nil
		}
	}

	return "", fmt.Errorf("no vault named %q: %w", VaultName, ErrVaultNotFound)
}

// Invalidate drops the memoized id. Call it when configuration changes.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cachedID = ""
	r.resolvedAt = time.Time{}
}
