package vault

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// fakeAPI is an in-memory remote store used across the package tests. It
// counts physical calls so tests can assert on call collapsing, and can
// be primed to fail with a given error.
type fakeAPI struct {
	mu     sync.Mutex
	vaults []Vault
	items  map[string]map[string]*Item // vaultID -> itemID -> item

	listVaultCalls  atomic.Int64
	listItemCalls   atomic.Int64
	resolveCalls    atomic.Int64
	createCalls     atomic.Int64
	putCalls        atomic.Int64
	deleteCalls     atomic.Int64
	failWith        error
	listItemDelay   time.Duration
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		vaults: []Vault{{ID: "v-devorb", Name: VaultName}, {ID: "v-other", Name: "Personal"}},
		items:  map[string]map[string]*Item{"v-devorb": {}},
	}
}

func (f *fakeAPI) addRecord(rec *Record) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	it := ItemFromRecord(rec)
	it.ID = uuid.NewString()
	it.UpdatedAt = time.Now()
	f.items["v-devorb"][it.ID] = it
	return it.ID
}

func (f *fakeAPI) fail() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failWith
}

func (f *fakeAPI) ListVaults(ctx context.Context) ([]Vault, error) {
	f.listVaultCalls.Add(1)
	if err := f.fail(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Vault(nil), f.vaults...), nil
}

func (f *fakeAPI) ListItems(ctx context.Context, vaultID string) ([]Item, error) {
	f.listItemCalls.Add(1)
	if d := f.listItemDelay; d > 0 {
		time.Sleep(d)
	}
	if err := f.fail(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	var items []Item
	for _, it := range f.items[vaultID] {
		if it.Archived {
			continue
		}
		// Concealed values are omitted from listings, as the real API does.
		listed := *it
		listed.Fields = nil
		for _, fld := range it.Fields {
			if fld.Concealed {
				listed.Fields = append(listed.Fields, ItemField{ID: fld.ID, Concealed: true})
			} else {
				listed.Fields = append(listed.Fields, fld)
			}
		}
		items = append(items, listed)
	}
	return items, nil
}

func (f *fakeAPI) GetItem(ctx context.Context, vaultID, itemID string) (*Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[vaultID][itemID]
	if !ok {
		return nil, ErrItemNotFound
	}
	copied := *it
	return &copied, nil
}

func (f *fakeAPI) CreateItem(ctx context.Context, vaultID string, item *Item) (*Item, error) {
	f.createCalls.Add(1)
	if err := f.fail(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	created := *item
	created.ID = uuid.NewString()
	created.VaultID = vaultID
	created.CreatedAt = time.Now()
	created.UpdatedAt = created.CreatedAt
	if f.items[vaultID] == nil {
		f.items[vaultID] = map[string]*Item{}
	}
	f.items[vaultID][created.ID] = &created
	return &created, nil
}

func (f *fakeAPI) PutItem(ctx context.Context, vaultID string, item *Item) (*Item, error) {
	f.putCalls.Add(1)
	if err := f.fail(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[vaultID][item.ID]; !ok {
		return nil, ErrItemNotFound
	}
	updated := *item
	updated.VaultID = vaultID
	updated.UpdatedAt = time.Now()
	f.items[vaultID][item.ID] = &updated
	return &updated, nil
}

func (f *fakeAPI) DeleteItem(ctx context.Context, vaultID, itemID string) error {
	f.deleteCalls.Add(1)
	if err := f.fail(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[vaultID][itemID]; !ok {
		return ErrItemNotFound
	}
	delete(f.items[vaultID], itemID)
	return nil
}

func (f *fakeAPI) ResolveRefs(ctx context.Context, refs []string) (map[string]string, error) {
	f.resolveCalls.Add(1)
	if err := f.fail(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	resolved := make(map[string]string, len(refs))
	for _, ref := range refs {
		parts := strings.SplitN(strings.TrimPrefix(ref, "orb://"), "/", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("bad ref %q", ref)
		}
		it, ok := f.items[parts[0]][parts[1]]
		if !ok {
			return nil, fmt.Errorf("ref %q: %w", ref, ErrItemNotFound)
		}
		resolved[ref] = it.Field(parts[2])
	}
	return resolved, nil
}

// memIDStore is an in-memory IDStore for resolver tests.
type memIDStore struct {
	mu sync.Mutex
	id string
}

func (m *memIDStore) VaultID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id
}

func (m *memIDStore) SetVaultID(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.id = id
	return nil
}
