// Package scheduler converts raw filesystem notifications into
// reconciliation triggers.
//
// It debounces bursts of change events per path, suppresses the watcher
// echo of the engine's own writes, routes deletions through the
// git-operation classifier before anything destructive happens remotely,
// and guarantees that two full-workspace passes never overlap.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/devorb/orb/internal/engine"
	"github.com/devorb/orb/internal/gitops"
	"github.com/devorb/orb/internal/workspace"
)

const (
	// DefaultDebounce is the per-path quiet window: only the last event
	// in a burst triggers reconciliation.
	DefaultDebounce = 1 * time.Second

	// DefaultSuppressWindow is how long after one of the engine's own
	// writes events for that path are ignored.
	DefaultSuppressWindow = 5 * time.Second

	// DefaultDeleteGrace is how long a deletion is given to turn out to
	// be half of an editor safe-write (rename away, recreate) before it
	// is treated as a real deletion.
	DefaultDeleteGrace = 500 * time.Millisecond
)

// Syncer is the slice of the reconciliation engine the scheduler drives.
// *engine.Engine implements it; tests substitute a stub.
type Syncer interface {
	Sync(ctx context.Context) (*engine.Result, error)
	SyncPath(ctx context.Context, relPath string) (*engine.Result, error)
	DeleteRemotePath(ctx context.Context, relPath string) (int, error)
}

// DeleteConfirmer asks the user whether a remote record should follow a
// local deletion. Returns false to keep the remote copy.
type DeleteConfirmer interface {
	ConfirmRemoteDelete(ctx context.Context, relPath string) (bool, error)
}

// Config holds scheduler tuning knobs.
type Config struct {
	Debounce       time.Duration
	SuppressWindow time.Duration
	DeleteGrace    time.Duration
	Logger         *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Debounce:       DefaultDebounce,
		SuppressWindow: DefaultSuppressWindow,
		DeleteGrace:    DefaultDeleteGrace,
		Logger:         log.New(os.Stderr, "[watch] ", log.LstdFlags),
	}
}

// Scheduler owns the fsnotify watcher and the per-path debounce timers
// for one workspace.
type Scheduler struct {
	root       string
	manifest   *workspace.Manifest
	syncer     Syncer
	classifier *gitops.Classifier
	confirmer  DeleteConfirmer
	config     *Config

	watcher *fsnotify.Watcher

	mu         sync.Mutex
	timers     map[string]*time.Timer
	suppressed map[string]time.Time
	running    bool

	fullSyncInFlight atomic.Bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler. confirmer may be nil, in which case
// user-initiated deletions never propagate to the remote.
func New(root string, manifest *workspace.Manifest, syncer Syncer, classifier *gitops.Classifier, confirmer DeleteConfirmer, config *Config) (*Scheduler, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}
	if config.SuppressWindow <= 0 {
		config.SuppressWindow = DefaultSuppressWindow
	}
	if config.DeleteGrace <= 0 {
		config.DeleteGrace = DefaultDeleteGrace
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[watch] ", log.LstdFlags)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Scheduler{
		root:       root,
		manifest:   manifest,
		syncer:     syncer,
		classifier: classifier,
		confirmer:  confirmer,
		config:     config,
		watcher:    watcher,
		timers:     map[string]*time.Timer{},
		suppressed: map[string]time.Time{},
	}, nil
}

// Start begins watching the workspace tree and processing events. It
// returns once the watches are established; event processing continues
// in the background until Stop or ctx cancellation.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.mu.Unlock()

	if err := s.watchTree(s.root); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.processEvents(ctx)

	s.config.Logger.Printf("Watching %s", s.root)
	return nil
}

// Stop halts event processing and cancels all pending debounce timers.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	for path, timer := range s.timers {
		timer.Stop()
		delete(s.timers, path)
	}
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	s.watcher.Close()
	s.wg.Wait()
}

// MarkSelfWrite records that the engine is about to write relPath; events
// for it are ignored for the suppression window. Wire it as the engine's
// OnLocalWrite callback.
func (s *Scheduler) MarkSelfWrite(relPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suppressed[relPath] = time.Now().Add(s.config.SuppressWindow)
}

// RequestFullSync runs one full-workspace pass unless one is already in
// flight, in which case the request is dropped; the in-flight pass will
// observe the latest state at its next read anyway. Reports whether the
// pass ran.
func (s *Scheduler) RequestFullSync(ctx context.Context) bool {
	if !s.fullSyncInFlight.CompareAndSwap(false, true) {
		s.config.Logger.Printf("Full sync already in flight; dropping request")
		return false
	}
	defer s.fullSyncInFlight.Store(false)

	result, err := s.syncer.Sync(ctx)
	if err != nil {
		s.config.Logger.Printf("Full sync failed: %v", err)
		return true
	}
	s.config.Logger.Printf("Full sync: %d up, %d down, %d synced, %d conflicted, %d failed",
		result.Uploaded, result.Downloaded, result.Synced, result.Conflicted, result.Failed)
	return true
}

// processEvents is the main loop converting fsnotify events into
// debounced reconciliation triggers.
func (s *Scheduler) processEvents(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.handleEvent(ctx, event)

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// handleEvent filters and dispatches one raw event.
func (s *Scheduler) handleEvent(ctx context.Context, event fsnotify.Event) {
	rel, err := filepath.Rel(s.root, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	// New directories need their own watch for nested tracked files.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !excludedDir(rel, s.manifest.EffectiveExcludes()) {
				s.watchTree(event.Name)
			}
			return
		}
	}

	if !workspace.Matches(rel, s.manifest.EffectivePatterns(), s.manifest.EffectiveExcludes()) {
		return
	}

	if s.isSuppressed(rel) {
		return
	}

	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		s.scheduleDebounced(ctx, rel)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		s.handleDelete(ctx, rel)
	}
}

// scheduleDebounced (re)arms the per-path timer. Cancel-then-reschedule
// is the whole contract: another event inside the quiet window restarts
// it, and only the last event of a burst fires.
func (s *Scheduler) scheduleDebounced(ctx context.Context, rel string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	if timer, ok := s.timers[rel]; ok {
		timer.Stop()
	}
	s.timers[rel] = time.AfterFunc(s.config.Debounce, func() {
		s.mu.Lock()
		delete(s.timers, rel)
		s.mu.Unlock()
		s.syncPath(ctx, rel)
	})
}

// syncPath reconciles one path after its debounce window elapsed.
func (s *Scheduler) syncPath(ctx context.Context, rel string) {
	result, err := s.syncer.SyncPath(ctx, rel)
	if err != nil {
		s.config.Logger.Printf("Sync of %s failed: %v", rel, err)
		return
	}
	if result.Mutations() > 0 || result.Conflicted > 0 {
		s.config.Logger.Printf("Synced %s: %d up, %d down, %d conflicted",
			rel, result.Uploaded, result.Downloaded, result.Conflicted)
	}
}

// handleDelete routes a deletion through the classifier. VCS-attributed
// deletions preserve the remote copy unconditionally; user deletions ask
// first and only then delete remotely.
//
// Editors commonly save by renaming the file away and recreating it
// (vim backup writes, IDE safe-writes), which surfaces as a Rename
// event for a file that still exists moments later. A short grace
// period plus an existence check turns those back into plain writes
// instead of remote deletions.
func (s *Scheduler) handleDelete(ctx context.Context, rel string) {
	time.Sleep(s.config.DeleteGrace)
	if s.exists(rel) {
		s.scheduleDebounced(ctx, rel)
		return
	}

	cause := gitops.CauseUserDelete
	if s.classifier != nil {
		cause = s.classifier.Classify(rel)
	}

	if cause == gitops.CauseVCSOperation {
		s.config.Logger.Printf("%s deleted by a VCS operation; keeping remote copy", rel)
		return
	}

	if s.confirmer == nil {
		s.config.Logger.Printf("%s deleted locally; no confirmer wired, keeping remote copy", rel)
		return
	}

	confirmed, err := s.confirmer.ConfirmRemoteDelete(ctx, rel)
	if err != nil || !confirmed {
		s.config.Logger.Printf("Keeping remote copy of %s", rel)
		return
	}

	// The prompt can sit open for a while; re-check so a file recreated
	// in the meantime is synced, not deleted.
	if s.exists(rel) {
		s.scheduleDebounced(ctx, rel)
		return
	}

	if _, err := s.syncer.DeleteRemotePath(ctx, rel); err != nil {
		s.config.Logger.Printf("Failed to delete remote copy of %s: %v", rel, err)
	}
}

// exists reports whether rel currently exists under the workspace root.
func (s *Scheduler) exists(rel string) bool {
	_, err := os.Stat(filepath.Join(s.root, filepath.FromSlash(rel)))
	return err == nil
}

// isSuppressed checks (and lazily expires) the self-write mark for rel.
func (s *Scheduler) isSuppressed(rel string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	until, ok := s.suppressed[rel]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(s.suppressed, rel)
		return false
	}
	return true
}

// watchTree adds watches for dir and every non-excluded subdirectory.
func (s *Scheduler) watchTree(dir string) error {
	excludes := s.manifest.EffectiveExcludes()

	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(s.root, path)
		if relErr == nil && excludedDir(filepath.ToSlash(rel), excludes) {
			return filepath.SkipDir
		}
		if err := s.watcher.Add(path); err != nil {
			s.config.Logger.Printf("Warning: cannot watch %s: %v", path, err)
		}
		return nil
	})
}

// excludedDir reports whether any segment of rel names an excluded
// directory.
func excludedDir(rel string, excludes []string) bool {
	if rel == "." {
		return false
	}
	for _, seg := range strings.Split(rel, "/") {
		for _, ex := range excludes {
			if seg == ex {
				return true
			}
		}
	}
	return false
}
