package vault

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestResolver_DiscoversByNameAndPersists(t *testing.T) {
	api := newFakeAPI()
	store := &memIDStore{}
	resolver := NewResolver(api, store, time.Minute, testLogger())

	id, err := resolver.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if id != "v-devorb" {
		t.Errorf("resolved %q, want %q", id, "v-devorb")
	}
	if store.VaultID() != "v-devorb" {
		t.Errorf("id not persisted: %q", store.VaultID())
	}
}

func TestResolver_MemoizesWithinTTL(t *testing.T) {
	api := newFakeAPI()
	resolver := NewResolver(api, &memIDStore{}, time.Minute, testLogger())

	ctx := context.Background()
	if _, err := resolver.Resolve(ctx); err != nil {
		t.Fatalf("first Resolve failed: %v", err)
	}
	if _, err := resolver.Resolve(ctx); err != nil {
		t.Fatalf("second Resolve failed: %v", err)
	}

	if calls := api.listVaultCalls.Load(); calls != 1 {
		t.Errorf("expected 1 discovery call, got %d", calls)
	}
}

func TestResolver_TrustsConfiguredID(t *testing.T) {
	api := newFakeAPI()
	store := &memIDStore{id: "v-configured"}
	resolver := NewResolver(api, store, time.Minute, testLogger())

	id, err := resolver.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if id != "v-configured" {
		t.Errorf("resolved %q, want configured id", id)
	}
	if calls := api.listVaultCalls.Load(); calls != 0 {
		t.Errorf("configured id should cost zero calls, got %d", calls)
	}
}

func TestResolver_VaultNotFound(t *testing.T) {
	api := newFakeAPI()
	api.vaults = []Vault{{ID: "v-other", Name: "Personal"}}
	resolver := NewResolver(api, &memIDStore{}, time.Minute, testLogger())

	if _, err := resolver.Resolve(context.Background()); !errors.Is(err, ErrVaultNotFound) {
		t.Fatalf("expected ErrVaultNotFound, got %v", err)
	}
}

func TestResolver_InvalidateDropsMemo(t *testing.T) {
	api := newFakeAPI()
	store := &memIDStore{}
	resolver := NewResolver(api, store, time.Minute, testLogger())

	ctx := context.Background()
	if _, err := resolver.Resolve(ctx); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	// Simulate a config change pointing at a different vault.
	store.SetVaultID("v-new")
	resolver.Invalidate()

	id, err := resolver.Resolve(ctx)
	if err != nil {
		t.Fatalf("Resolve after Invalidate failed: %v", err)
	}
	if id != "v-new" {
		t.Errorf("resolved %q, want the reconfigured id", id)
	}
}
