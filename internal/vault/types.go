// Package vault is the client side of the DevOrb remote secret store.
//
// It provides a typed REST client for the store's container/item API, a
// rate-limited wrapper that serializes and paces all remote calls behind a
// circuit breaker, a resolver that maps the well-known vault name to a
// stable id, and a short-TTL item cache with in-flight deduplication.
//
// All remote access in the rest of the codebase goes through this package;
// nothing else talks HTTP to the store.
package vault

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// VaultName is the display name of the vault that holds DevOrb data.
// Resolution matches on this constant; it is not configurable.
const VaultName = "DevOrb"

// SyncTag marks items owned by this tool. Items without it are never
// listed, mutated, or deleted.
const SyncTag = "devorb"

const (
	scopeTagPrefix  = "scope:"
	originTagPrefix = "origin:"
)

// Well-known field ids on a sync item. The remote SDK models fields as a
// list; these ids give the item a fixed schema instead of display-title
// matching.
const (
	FieldContent  = "content"
	FieldModified = "modified"
)

// Vault is a remote container of items.
type Vault struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ItemField is one named field on an item. Concealed fields come back
// empty from list calls and must be resolved through ResolveRefs.
type ItemField struct {
	ID        string `json:"id"`
	Value     string `json:"value,omitempty"`
	Concealed bool   `json:"concealed,omitempty"`
}

// Item is a full remote item as the store's API represents it.
type Item struct {
	ID        string      `json:"id,omitempty"`
	VaultID   string      `json:"vault_id,omitempty"`
	Title     string      `json:"title"`
	Tags      []string    `json:"tags,omitempty"`
	Fields    []ItemField `json:"fields,omitempty"`
	Archived  bool        `json:"archived,omitempty"`
	CreatedAt time.Time   `json:"created_at,omitempty"`
	UpdatedAt time.Time   `json:"updated_at,omitempty"`
}

// Field returns the value of the field with the given id, or "" if absent.
func (it *Item) Field(id string) string {
	for _, f := range it.Fields {
		if f.ID == id {
			return f.Value
		}
	}
	return ""
}

// Record is this system's own view of a remote item: one synced content
// unit, keyed by its logical path. It is what the reconciliation engine
// consumes; Item is a serialization detail of the remote SDK.
type Record struct {
	// ID is the opaque item id within the vault.
	ID string

	// Path is the workspace-relative path of the content unit. It is the
	// join key against local tracked files.
	Path string

	// Content is the full payload.
	Content string

	// Hash is the SHA-256 hex digest of Content.
	Hash string

	// Modified is the content's recorded modification time.
	Modified time.Time

	// Origin records which side authored the last write ("local" or
	// "remote").
	Origin string

	// Scope identifies the repository the record belongs to. Empty means
	// unscoped (visible to every workspace).
	Scope string
}

// ItemFromRecord builds the remote representation of a record.
func ItemFromRecord(rec *Record) *Item {
	tags := []string{SyncTag}
	if rec.Scope != "" {
		tags = append(tags, scopeTagPrefix+rec.Scope)
	}
	if rec.Origin != "" {
		tags = append(tags, originTagPrefix+rec.Origin)
	}

	return &Item{
		ID:    rec.ID,
		Title: rec.Path,
		Tags:  tags,
		Fields: []ItemField{
			{ID: FieldContent, Value: rec.Content, Concealed: true},
			{ID: FieldModified, Value: rec.Modified.UTC().Format(time.RFC3339)},
		},
	}
}

// RecordFromItem converts a fully resolved item back into a record.
// Returns an error if the modified field is unparseable; content may be
// legitimately empty.
func RecordFromItem(it *Item, hash func(string) string) (*Record, error) {
	rec := &Record{
		ID:      it.ID,
		Path:    it.Title,
		Content: it.Field(FieldContent),
	}

	for _, tag := range it.Tags {
		switch {
		case strings.HasPrefix(tag, scopeTagPrefix):
			rec.Scope = strings.TrimPrefix(tag, scopeTagPrefix)
		case strings.HasPrefix(tag, originTagPrefix):
			rec.Origin = strings.TrimPrefix(tag, originTagPrefix)
		}
	}

	if raw := it.Field(FieldModified); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("item %s has bad modified field %q: %w", it.ID, raw, err)
		}
		rec.Modified = ts
	} else {
		rec.Modified = it.UpdatedAt
	}

	rec.Hash = hash(rec.Content)
	return rec, nil
}

// Ref builds a secret reference for batched resolution, in the store's
// orb://vault/item/field form.
func Ref(vaultID, itemID, fieldID string) string {
	return fmt.Sprintf("orb://%s/%s/%s", vaultID, itemID, fieldID)
}

// API is the remote store surface the rest of the system depends on.
// RESTClient implements it against the real service; tests implement it
// in memory.
type API interface {
	// ListVaults returns every vault the token can read.
	ListVaults(ctx context.Context) ([]Vault, error)

	// ListItems returns non-archived items in the vault carrying SyncTag.
	// Concealed field values are omitted.
	ListItems(ctx context.Context, vaultID string) ([]Item, error)

	// GetItem returns one item with all field values populated.
	GetItem(ctx context.Context, vaultID, itemID string) (*Item, error)

	// CreateItem creates a new item and returns it with its assigned id.
	CreateItem(ctx context.Context, vaultID string, item *Item) (*Item, error)

	// PutItem fully replaces an existing item.
	PutItem(ctx context.Context, vaultID string, item *Item) (*Item, error)

	// DeleteItem removes an item permanently.
	DeleteItem(ctx context.Context, vaultID, itemID string) error

	// ResolveRefs resolves many orb:// references in one call, returning
	// a map from reference to value.
	ResolveRefs(ctx context.Context, refs []string) (map[string]string, error)
}
