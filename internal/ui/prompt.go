package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/devorb/orb/internal/engine"
)

// previewLimit bounds how much of each version a conflict prompt shows.
const previewLimit = 200

// ConsolePrompter implements the engine's conflict prompt and the
// scheduler's delete confirmation with interactive terminal forms.
// On a non-interactive stdin every question resolves to the safe
// answer: defer the conflict, keep the remote copy.
type ConsolePrompter struct{}

// ResolveConflict presents both versions and asks the user to pick a
// side. Aborting the form defers the conflict.
func (ConsolePrompter) ResolveConflict(ctx context.Context, key, localPreview, remotePreview string) (engine.Resolution, error) {
	if !Interactive() {
		return engine.ResolutionDefer, nil
	}

	choice := "defer"
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title(fmt.Sprintf("Conflict on %s", key)).
			Description(conflictDescription(localPreview, remotePreview)).
			Options(
				huh.NewOption("Keep local version", "local"),
				huh.NewOption("Keep remote version", "remote"),
				huh.NewOption("Decide later", "defer"),
			).
			Value(&choice),
	))

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return engine.ResolutionDefer, nil
		}
		return engine.ResolutionDefer, err
	}

	switch choice {
	case "local":
		return engine.ResolutionKeepLocal, nil
	case "remote":
		return engine.ResolutionKeepRemote, nil
	default:
		return engine.ResolutionDefer, nil
	}
}

// ConfirmRemoteDelete asks whether the remote record should follow a
// local deletion. Non-interactive sessions and aborted forms keep the
// remote copy.
func (ConsolePrompter) ConfirmRemoteDelete(ctx context.Context, relPath string) (bool, error) {
	if !Interactive() {
		return false, nil
	}

	confirmed := false
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(fmt.Sprintf("%s was deleted locally", relPath)).
			Description("Delete the remote copy too? The remote version is kept otherwise.").
			Affirmative("Delete remote").
			Negative("Keep remote").
			Value(&confirmed),
	))

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, err
	}
	return confirmed, nil
}

// conflictDescription formats the two truncated versions side by side.
func conflictDescription(local, remote string) string {
	var b strings.Builder
	b.WriteString("Local:\n")
	b.WriteString(Truncate(local, previewLimit))
	b.WriteString("\n\nRemote:\n")
	b.WriteString(Truncate(remote, previewLimit))
	return b.String()
}

// Truncate shortens s to at most limit characters, marking the cut.
func Truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
