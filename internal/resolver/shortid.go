package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dyluth/frontdesk/pkg/helpdesk"
)

// MinShortIDLength is the minimum required length for short ID prefixes.
const MinShortIDLength = 6

// maxListedMatches caps the IDs printed for an ambiguous prefix.
const maxListedMatches = 10

// RequestLookup is the part of a request store needed to resolve IDs.
// Both *helpdesk.Client and *helpdesk.MemoryStore implement it.
type RequestLookup interface {
	GetRequest(ctx context.Context, requestID string) (*helpdesk.HelpRequest, error)
	ScanRequests(ctx context.Context, prefix string) ([]string, error)
}

// ResolveRequestID resolves a short ID prefix to a full request UUID.
//
// A full UUID (36 chars, 4 hyphens) is checked for existence and returned.
// Anything shorter than MinShortIDLength is rejected. Otherwise the prefix
// must match exactly one request.
func ResolveRequestID(ctx context.Context, store RequestLookup, shortID string) (string, error) {
	if len(shortID) == 36 && strings.Count(shortID, "-") == 4 {
		if _, err := store.GetRequest(ctx, shortID); err != nil {
			if helpdesk.IsNotFound(err) {
				return "", &NotFoundError{ShortID: shortID}
			}
			return "", fmt.Errorf("failed to verify request existence: %w", err)
		}
		return shortID, nil
	}

	if len(shortID) < MinShortIDLength {
		return "", fmt.Errorf("short ID must be at least %d characters (got %d)", MinShortIDLength, len(shortID))
	}

	matches, err := store.ScanRequests(ctx, strings.ToLower(shortID))
	if err != nil {
		return "", fmt.Errorf("failed to search for request: %w", err)
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{ShortID: shortID}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguousError{ShortID: shortID, Matches: matches}
	}
}

// NotFoundError indicates no requests matched the short ID.
type NotFoundError struct {
	ShortID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no help requests found matching '%s'", e.ShortID)
}

// AmbiguousError indicates multiple requests matched the short ID.
type AmbiguousError struct {
	ShortID string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous short ID '%s' matches %d help requests", e.ShortID, len(e.Matches))
}

// FormatAmbiguousError lists the matching IDs (up to 10, then "...and N more").
func FormatAmbiguousError(err *AmbiguousError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ambiguous short ID '%s' matches %d help requests:\n", err.ShortID, len(err.Matches))

	shown := err.Matches
	if len(shown) > maxListedMatches {
		shown = shown[:maxListedMatches]
	}
	for _, id := range shown {
		fmt.Fprintf(&b, "  %s\n", id)
	}
	if extra := len(err.Matches) - len(shown); extra > 0 {
		fmt.Fprintf(&b, "  ...and %d more\n", extra)
	}

	b.WriteString("\nUse a longer prefix to uniquely identify the request.")
	return b.String()
}

// IsNotFoundError checks if an error is a NotFoundError.
func IsNotFoundError(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsAmbiguousError checks if an error is an AmbiguousError.
func IsAmbiguousError(err error) bool {
	var target *AmbiguousError
	return errors.As(err, &target)
}
