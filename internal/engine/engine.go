package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/devorb/orb/internal/vault"
	"github.com/devorb/orb/internal/workspace"
)

// Resolution is a human's answer to a conflict prompt.
type Resolution int

const (
	// ResolutionDefer leaves both sides untouched for this pass.
	ResolutionDefer Resolution = iota

	// ResolutionKeepLocal uploads the local version.
	ResolutionKeepLocal

	// ResolutionKeepRemote materializes the remote version.
	ResolutionKeepRemote
)

// Prompter asks the human. Implementations block until the user answers
// or cancels; a nil Prompter defers every conflict.
type Prompter interface {
	// ResolveConflict presents both versions of key and returns the
	// chosen resolution.
	ResolveConflict(ctx context.Context, key, localPreview, remotePreview string) (Resolution, error)
}

// Options configure an Engine.
type Options struct {
	// Root is the workspace root directory.
	Root string

	// Scope is the repository scope new records are tagged with.
	Scope string

	// Manifest carries tracked patterns and excludes.
	Manifest *workspace.Manifest

	// AutoCreate enables materializing remote-only units locally.
	AutoCreate bool

	// Strategy picks the content-unit flavor. Defaults to FileStrategy.
	Strategy Strategy

	// Prompter resolves conflicts interactively. Nil defers them.
	Prompter Prompter

	// OnLocalWrite is called with the relative path of every file the
	// engine writes, before the write happens. The scheduler uses it to
	// suppress watcher feedback from the engine's own writes.
	OnLocalWrite func(relPath string)

	Logger *log.Logger
}

// Engine runs reconciliation passes for one workspace against one vault.
type Engine struct {
	opts     Options
	client   vault.API
	cache    *vault.ItemCache
	resolver *vault.Resolver
	strategy Strategy
	logger   *log.Logger
}

// Result summarizes one pass. Mutation counts only include writes that
// actually happened.
type Result struct {
	Uploaded    int
	Downloaded  int
	Deleted     int
	Synced      int
	Conflicted  int
	Skipped     int
	Failed      int
	Items       []PlanItem
}

// Mutations returns the total number of writes the pass performed.
func (r *Result) Mutations() int {
	return r.Uploaded + r.Downloaded + r.Deleted
}

// New creates an engine. client must be the process's rate-limited
// client; cache and resolver must be built on the same client.
func New(client vault.API, cache *vault.ItemCache, resolver *vault.Resolver, opts Options) *Engine {
	if opts.Strategy == nil {
		opts.Strategy = FileStrategy{}
	}
	if opts.Manifest == nil {
		opts.Manifest = &workspace.Manifest{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[engine] ", log.LstdFlags)
	}
	return &Engine{
		opts:     opts,
		client:   client,
		cache:    cache,
		resolver: resolver,
		strategy: opts.Strategy,
		logger:   logger,
	}
}

// Plan computes the decision for every unit key without mutating
// anything. Remote fetch failures degrade to "nothing to reconcile":
// the error is logged and an empty remote set is used, so a flaky remote
// never crashes a pass.
func (e *Engine) Plan(ctx context.Context) ([]PlanItem, error) {
	files, err := workspace.Enumerate(e.opts.Root,
		e.opts.Manifest.EffectivePatterns(), e.opts.Manifest.EffectiveExcludes())
	if err != nil {
		return nil, fmt.Errorf("enumerate workspace: %w", err)
	}

	records, err := e.cache.GetAll(ctx)
	if err != nil {
		e.logger.Printf("Remote listing unavailable, reconciling against empty set: %v", err)
		records = nil
	}

	locals := map[string]*Unit{}
	for _, u := range e.strategy.LocalUnits(files) {
		u := u
		locals[u.Key] = &u
	}

	remotes := map[string]*vault.Record{}
	localPaths := map[string]bool{}
	for _, f := range files {
		localPaths[f.RelPath] = true
	}
	for i := range records {
		rec := records[i]
		remotes[rec.Path] = &rec
	}

	keys := map[string]bool{}
	for k := range locals {
		keys[k] = true
	}
	for k := range remotes {
		keys[k] = true
	}

	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	items := make([]PlanItem, 0, len(sorted))
	for _, k := range sorted {
		item := Classify(locals[k], remotes[k], e.strategy.PlaceholderAware())

		// Env flavor: a remote key under a file that does not exist
		// locally at all is offered as copyable, not auto-applied. The
		// path being part of the join key keeps the same variable in
		// different files independent.
		if item.State == StateRemoteOnly && e.strategy.Name() == "env" {
			if rel, _, ok := SplitEnvKey(k); ok && !localPaths[rel] {
				item.State = StateMissingLocal
				item.Action = ActionNone
			}
		}

		items = append(items, item)
	}
	return items, nil
}

// Sync runs one full reconciliation pass: plan, then apply each item.
// One failing item logs and continues; it never aborts the loop over the
// others. Every remote mutation invalidates the item cache immediately,
// so the next pass starts from fresh state; this pass never patches its
// own in-memory view.
func (e *Engine) Sync(ctx context.Context) (*Result, error) {
	items, err := e.Plan(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{Items: items}
	for i := range items {
		if err := e.apply(ctx, &items[i], result); err != nil {
			result.Failed++
			if errors.Is(err, vault.ErrRateLimited) {
				// The breaker is open; every further remote call this
				// pass would fail the same way.
				e.logger.Printf("Rate limited; deferring remaining items to the next pass")
				break
			}
			e.logger.Printf("WARNING: failed to reconcile %s: %v", items[i].Key, err)
		}
	}
	return result, nil
}

// SyncPath reconciles a single unit path (file mode) or all units of one
// file (env mode).
func (e *Engine) SyncPath(ctx context.Context, relPath string) (*Result, error) {
	items, err := e.Plan(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for i := range items {
		item := &items[i]
		path := item.Key
		if item.Local != nil {
			path = item.Local.Path
		} else if rel, _, ok := SplitEnvKey(item.Key); ok && e.strategy.Name() == "env" {
			path = rel
		}
		if path != relPath {
			continue
		}
		result.Items = append(result.Items, *item)
		if err := e.apply(ctx, item, result); err != nil {
			result.Failed++
			e.logger.Printf("WARNING: failed to reconcile %s: %v", item.Key, err)
		}
	}
	return result, nil
}

// DeleteRemotePath removes every remote record belonging to one file:
// the blob record in file mode, every per-key record in env mode.
// Returns the number of records deleted; deleting a path with no
// records is a no-op, not an error. Callers are responsible for
// confirmation; the engine only executes.
func (e *Engine) DeleteRemotePath(ctx context.Context, relPath string) (int, error) {
	records, err := e.cache.GetAll(ctx)
	if err != nil {
		return 0, err
	}

	vaultID, err := e.resolver.Resolve(ctx)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for i := range records {
		rec := &records[i]
		owner := rec.Path
		if rel, _, ok := SplitEnvKey(rec.Path); ok && e.strategy.Name() == "env" {
			owner = rel
		}
		if owner != relPath {
			continue
		}
		if err := e.client.DeleteItem(ctx, vaultID, rec.ID); err != nil {
			e.cache.Invalidate()
			return deleted, fmt.Errorf("delete remote record %s: %w", rec.Path, err)
		}
		deleted++
	}

	if deleted > 0 {
		e.cache.Invalidate()
		e.logger.Printf("Deleted %d remote record(s) for %s", deleted, relPath)
	}
	return deleted, nil
}

// apply executes one plan item's action, updating counters.
func (e *Engine) apply(ctx context.Context, item *PlanItem, result *Result) error {
	switch item.Action {
	case ActionNone:
		if item.State == StateSynced {
			result.Synced++
		} else {
			result.Skipped++
		}
		return nil

	case ActionUploadCreate:
		return e.upload(ctx, item, result)

	case ActionUploadUpdate:
		return e.upload(ctx, item, result)

	case ActionDownloadCreate:
		if !e.opts.AutoCreate {
			result.Skipped++
			return nil
		}
		return e.download(item, result)

	case ActionDownloadUpdate:
		return e.download(item, result)

	case ActionConflict:
		return e.conflict(ctx, item, result)
	}
	return nil
}

// upload pushes local content to the remote, creating or replacing the
// record. Duplicate detection: an existing record for the same key is
// always updated in place, never created a second time.
func (e *Engine) upload(ctx context.Context, item *PlanItem, result *Result) error {
	vaultID, err := e.resolver.Resolve(ctx)
	if err != nil {
		return err
	}

	rec := &vault.Record{
		Path:     item.Local.Key,
		Content:  item.Local.Content,
		Modified: item.Local.ModTime,
		Origin:   "local",
		Scope:    e.opts.Scope,
	}

	if item.Remote != nil {
		rec.ID = item.Remote.ID
		if _, err := e.client.PutItem(ctx, vaultID, vault.ItemFromRecord(rec)); err != nil {
			return fmt.Errorf("update remote %s: %w", item.Key, err)
		}
	} else {
		if _, err := e.client.CreateItem(ctx, vaultID, vault.ItemFromRecord(rec)); err != nil {
			return fmt.Errorf("create remote %s: %w", item.Key, err)
		}
	}

	e.cache.Invalidate()
	result.Uploaded++
	e.logger.Printf("Uploaded %s", item.Key)
	return nil
}

// download materializes remote content locally via the strategy,
// announcing the write first so the watcher can ignore its echo.
func (e *Engine) download(item *PlanItem, result *Result) error {
	if e.opts.OnLocalWrite != nil {
		rel := item.Remote.Path
		if r, _, ok := SplitEnvKey(item.Remote.Path); ok && e.strategy.Name() == "env" {
			rel = r
		}
		e.opts.OnLocalWrite(rel)
	}

	if _, err := e.strategy.Materialize(e.opts.Root, item.Remote); err != nil {
		return err
	}

	result.Downloaded++
	e.logger.Printf("Materialized %s from remote", item.Key)
	return nil
}

// conflict asks the prompter to pick a side. Without a prompter, or when
// the human defers, nothing is written: the engine never silently picks
// a side when timestamps tie.
func (e *Engine) conflict(ctx context.Context, item *PlanItem, result *Result) error {
	if e.opts.Prompter == nil {
		result.Conflicted++
		e.logger.Printf("Conflict on %s (local %s vs remote %s); run `orb resolve`",
			item.Key,
			item.Local.ModTime.Format(time.RFC3339),
			item.Remote.Modified.Format(time.RFC3339))
		return nil
	}

	resolution, err := e.opts.Prompter.ResolveConflict(ctx, item.Key, item.Local.Content, item.Remote.Content)
	if err != nil {
		result.Conflicted++
		return fmt.Errorf("conflict prompt for %s: %w", item.Key, err)
	}

	switch resolution {
	case ResolutionKeepLocal:
		return e.upload(ctx, item, result)
	case ResolutionKeepRemote:
		return e.download(item, result)
	default:
		result.Conflicted++
		return nil
	}
}
