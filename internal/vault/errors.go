package vault

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Common errors returned by vault operations.
//
// These errors can be checked using errors.Is() for proper error handling:
//
//	if errors.Is(err, vault.ErrRateLimited) {
//	    // Back off and retry on the next scheduled pass
//	}
var (
	// ErrRateLimited is returned when the remote store is refusing calls,
	// either because it answered 429 or because the circuit breaker is
	// open and no network call was attempted.
	ErrRateLimited = errors.New("remote store rate limited")

	// ErrVaultNotFound is returned when no vault with the expected display
	// name exists in the remote account. Not retryable; the user has to
	// create the vault.
	ErrVaultNotFound = errors.New("vault not found")

	// ErrItemNotFound is returned when an item id does not exist in the
	// vault, or was archived.
	ErrItemNotFound = errors.New("item not found")

	// ErrNotConfigured is returned when a required setting (access token,
	// endpoint) is missing. Not retryable; surfaced with a setup hint.
	ErrNotConfigured = errors.New("remote store not configured")

	// ErrUnauthorized is returned when the access token is rejected.
	ErrUnauthorized = errors.New("access token rejected")
)

// RateLimitError carries the server-suggested cooldown alongside
// ErrRateLimited so the circuit breaker can honor Retry-After.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("remote store rate limited (retry after %s)", e.RetryAfter)
	}
	return "remote store rate limited"
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// IsRateLimited reports whether err represents a remote rate-limit
// condition. Besides the typed sentinel, it inspects the message for the
// well-known substrings the remote SDK uses, since not every layer
// preserves the typed error.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, keyword := range []string{"rate limit", "too many requests", "429"} {
		if strings.Contains(msg, keyword) {
			return true
		}
	}
	return false
}

// IsTransient reports whether err looks like a temporary network or
// gateway failure that the next scheduled pass may not see again.
// Classification is by message content, which is as much contract as the
// remote store offers.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())
	transientKeywords := []string{
		"timeout",
		"deadline exceeded",
		"connection refused",
		"connection reset",
		"bad gateway",
		"service unavailable",
		"temporary failure",
	}
	for _, keyword := range transientKeywords {
		if strings.Contains(msg, keyword) {
			return true
		}
	}
	return false
}
