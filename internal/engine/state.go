// Package engine is the reconciliation core: given the local tracked
// files and the remote records for one repository scope, it computes a
// plan (what to upload, what to materialize locally, what is already in
// sync, and what needs a human) and applies it.
//
// No sync journal is kept. Every pass re-derives state from scratch
// (local reads plus one fresh or cached remote listing), which makes the
// whole design idempotent and crash-safe by construction.
package engine

import (
	"time"

	"github.com/devorb/orb/internal/vault"
	"github.com/devorb/orb/internal/workspace"
)

// SyncState classifies one (local, remote) join for a single pass. It is
// always recomputed, never stored.
type SyncState string

const (
	// StateSynced means both sides hold identical content.
	StateSynced SyncState = "synced"

	// StateConflicted means content differs but neither side is clearly
	// newer; a human picks.
	StateConflicted SyncState = "conflicted"

	// StateLocalOnly means no matching remote record exists.
	StateLocalOnly SyncState = "local-only"

	// StateRemoteOnly means no matching local unit exists.
	StateRemoteOnly SyncState = "remote-only"

	// StateMissingLocal marks env keys that exist remotely under a file
	// not present in this workspace: offered as copyable, never forced.
	StateMissingLocal SyncState = "missing-locally"
)

// Action is what the apply phase does for one plan item.
type Action int

const (
	// ActionNone leaves both sides untouched.
	ActionNone Action = iota

	// ActionUploadCreate creates a new remote record from local content.
	ActionUploadCreate

	// ActionUploadUpdate overwrites the remote record with local content.
	ActionUploadUpdate

	// ActionDownloadCreate materializes a local unit from remote content.
	ActionDownloadCreate

	// ActionDownloadUpdate overwrites the local unit with remote content.
	ActionDownloadUpdate

	// ActionConflict defers to a human.
	ActionConflict
)

// String returns a human-readable representation of the action.
func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionUploadCreate:
		return "upload-create"
	case ActionUploadUpdate:
		return "upload-update"
	case ActionDownloadCreate:
		return "download-create"
	case ActionDownloadUpdate:
		return "download-update"
	case ActionConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// ConflictTolerance is the timestamp window within which two differing
// versions count as simultaneous edits. Two seconds: wide enough to
// absorb filesystem and clock granularity, narrow enough that a real
// later edit still wins.
const ConflictTolerance = 2 * time.Second

// PlanItem is the decision for one unit key.
type PlanItem struct {
	// Key is the unit join key (a relative path, or path#VAR for the
	// env flavor).
	Key string

	State  SyncState
	Action Action

	// Local is nil for remote-only keys.
	Local *Unit

	// Remote is nil for local-only keys.
	Remote *vault.Record
}

// Classify decides the state and action for one joined unit pair.
//
// Hash agreement short-circuits everything: identical content is synced
// no matter what the timestamps say. Timestamps are only the tie-breaker
// for differing content: the strictly newer side wins, and edits within
// ConflictTolerance of each other conflict.
//
// When placeholderAware is set (env flavor), a side holding a fill-me-in
// sentinel never beats and never conflicts with a side holding a real
// value: the real value wins silently.
func Classify(local *Unit, remote *vault.Record, placeholderAware bool) PlanItem {
	switch {
	case local == nil && remote == nil:
		return PlanItem{State: StateSynced, Action: ActionNone}

	case remote == nil:
		return PlanItem{
			Key:    local.Key,
			State:  StateLocalOnly,
			Action: ActionUploadCreate,
			Local:  local,
		}

	case local == nil:
		return PlanItem{
			Key:    remote.Path,
			State:  StateRemoteOnly,
			Action: ActionDownloadCreate,
			Remote: remote,
		}
	}

	item := PlanItem{Key: local.Key, Local: local, Remote: remote}

	if local.Hash == remote.Hash {
		item.State = StateSynced
		item.Action = ActionNone
		return item
	}

	if placeholderAware {
		localBlank := workspace.IsPlaceholder(local.Content)
		remoteBlank := workspace.IsPlaceholder(remote.Content)
		switch {
		case localBlank && remoteBlank:
			item.State = StateSynced
			item.Action = ActionNone
			return item
		case localBlank:
			item.State = StateRemoteOnly
			item.Action = ActionDownloadUpdate
			return item
		case remoteBlank:
			item.State = StateLocalOnly
			item.Action = ActionUploadUpdate
			return item
		}
	}

	delta := local.ModTime.Sub(remote.Modified)
	switch {
	case delta > ConflictTolerance:
		item.State = StateLocalOnly
		item.Action = ActionUploadUpdate
	case delta < -ConflictTolerance:
		item.State = StateRemoteOnly
		item.Action = ActionDownloadUpdate
	default:
		item.State = StateConflicted
		item.Action = ActionConflict
	}
	return item
}
