package vault

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL is how long a listing stays fresh. Short on purpose:
// the cache exists to collapse the burst of reads inside one
// reconciliation pass, not to hide remote changes.
const DefaultCacheTTL = 30 * time.Second

// cacheEntry pairs a result with the time it was fetched.
type cacheEntry struct {
	records   []Record
	fetchedAt time.Time
}

// ItemCache amortizes "list everything in the vault" across many logical
// callers. Concurrent callers share one physical fetch; results are held
// for a short TTL and dropped explicitly after any mutation.
type ItemCache struct {
	client   API
	resolver *Resolver
	scope    string
	ttl      time.Duration
	logger   *log.Logger

	mu    sync.Mutex
	entry *cacheEntry
	gen   uint64
	group singleflight.Group
}

// NewItemCache creates a cache scoped to one repository. Records tagged
// with a different scope are filtered out of every result; untagged
// records pass through.
func NewItemCache(client API, resolver *Resolver, scope string, ttl time.Duration, logger *log.Logger) *ItemCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[cache] ", log.LstdFlags)
	}
	return &ItemCache{
		client:   client,
		resolver: resolver,
		scope:    scope,
		ttl:      ttl,
		logger:   logger,
	}
}

// GetAll returns every record in the vault relevant to this cache's
// scope.
//
// A fresh entry is served without remote calls. If a physical fetch is
// already in flight, callers await that same fetch rather than starting a
// second one. On fetch failure the empty result is cached anyway, so a
// hot loop of callers does not turn into a retry storm; the error is
// returned to the callers of the failing fetch and expected to be logged,
// not surfaced as a hard failure.
func (c *ItemCache) GetAll(ctx context.Context) ([]Record, error) {
	c.mu.Lock()
	if c.entry != nil && time.Since(c.entry.fetchedAt) < c.ttl {
		records := c.entry.records
		c.mu.Unlock()
		return records, nil
	}
	gen := c.gen
	c.mu.Unlock()

	v, err, _ := c.group.Do("getall", func() (any, error) {
		records, err := c.fetch(ctx)

		c.mu.Lock()
		// An Invalidate issued while this fetch was in flight makes the
		// snapshot stale before it lands; storing it would mask the
		// invalidation for a whole TTL.
		if c.gen == gen {
			c.entry = &cacheEntry{records: records, fetchedAt: time.Now()}
		}
		c.mu.Unlock()

		return records, err
	})

	records, _ := v.([]Record)
	return records, err
}

// Invalidate drops the cached listing. Every remote mutation must call
// this so the next pass starts from fresh state. A fetch in flight when
// Invalidate runs is abandoned: its result is not stored, and the next
// GetAll starts a new physical fetch instead of joining it.
func (c *ItemCache) Invalidate() {
	c.mu.Lock()
	c.entry = nil
	c.gen++
	c.mu.Unlock()
	c.group.Forget("getall")
}

// fetch performs the physical read: one item listing plus one batched
// reference resolution for every concealed field across all items.
// Sequential per-item fetches would each pay the client's pacing delay,
// so the content of N items rides on a single call.
func (c *ItemCache) fetch(ctx context.Context) ([]Record, error) {
	vaultID, err := c.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	items, err := c.client.ListItems(ctx, vaultID)
	if err != nil {
		c.logger.Printf("Item listing failed: %v", err)
		return nil, err
	}
	if len(items) == 0 {
		return []Record{}, nil
	}

	refs := make([]string, 0, len(items))
	for _, it := range items {
		refs = append(refs, Ref(vaultID, it.ID, FieldContent))
	}

	resolved, err := c.client.ResolveRefs(ctx, refs)
	if err != nil {
		c.logger.Printf("Batched field resolution failed: %v", err)
		return nil, err
	}

	records := make([]Record, 0, len(items))
	for i := range items {
		it := items[i]
		setField(&it, FieldContent, resolved[Ref(vaultID, it.ID, FieldContent)])

		rec, err := RecordFromItem(&it, HashContent)
		if err != nil {
			c.logger.Printf("Skipping malformed item %s: %v", it.ID, err)
			continue
		}
		if rec.Scope != "" && rec.Scope != c.scope {
			continue
		}
		records = append(records, *rec)
	}

	return records, nil
}

// setField replaces or appends a field value on an item.
func setField(it *Item, id, value string) {
	for i := range it.Fields {
		if it.Fields[i].ID == id {
			it.Fields[i].Value = value
			return
		}
	}
	it.Fields = append(it.Fields, ItemField{ID: id, Value: value, Concealed: true})
}

// HashContent returns the SHA-256 hex digest of content. It is the hash
// function used on both sides of every comparison; pure and cheap enough
// to recompute on every read.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
