package history

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/dyluth/frontdesk/pkg/helpdesk"
)

// OutputFormat specifies how to format list output.
type OutputFormat string

const (
	// OutputFormatDefault uses a table format with truncated text
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL outputs complete records as line-delimited JSON
	OutputFormatJSONL OutputFormat = "jsonl"
)

// ParseOutputFormat maps a --output flag value to an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case "", OutputFormatDefault:
		return OutputFormatDefault, nil
	case OutputFormatJSONL:
		return OutputFormatJSONL, nil
	}
	return "", fmt.Errorf("unknown output format: %s (use 'default' or 'jsonl')", s)
}

// RequestLister is the store read needed to list help requests.
type RequestLister interface {
	ListAll(ctx context.Context) ([]*helpdesk.HelpRequest, error)
}

// EntryLister is the store read needed to list the knowledge base.
type EntryLister interface {
	ListEntries(ctx context.Context) ([]*helpdesk.KnowledgeEntry, error)
}

// FilterCriteria defines filtering options for the requests command.
// All filters are ANDed together.
type FilterCriteria struct {
	SinceTimestampMs int64           // Unix timestamp in milliseconds, 0 = no filter
	UntilTimestampMs int64           // Unix timestamp in milliseconds, 0 = no filter
	Status           helpdesk.Status // Exact status, empty = no filter
	CallerGlob       string          // Glob pattern for caller identity, empty = no filter
}

// Validate rejects an empty time window, unknown statuses and malformed
// globs up front.
func (fc *FilterCriteria) Validate() error {
	if err := fc.validateWindow(); err != nil {
		return err
	}
	if fc.Status != "" {
		if err := fc.Status.Validate(); err != nil {
			return fmt.Errorf("invalid --status: %w", err)
		}
	}
	if fc.CallerGlob != "" {
		if _, err := filepath.Match(fc.CallerGlob, ""); err != nil {
			return fmt.Errorf("invalid --caller pattern: %w", err)
		}
	}
	return nil
}

func (fc *FilterCriteria) matchesFilter(r *helpdesk.HelpRequest) bool {
	if fc.SinceTimestampMs > 0 && r.CreatedAtMs < fc.SinceTimestampMs {
		return false
	}
	if fc.UntilTimestampMs > 0 && r.CreatedAtMs > fc.UntilTimestampMs {
		return false
	}

	if fc.Status != "" && r.Status != fc.Status {
		return false
	}

	if fc.CallerGlob != "" {
		matched, err := filepath.Match(fc.CallerGlob, r.CallerIdentity)
		if err != nil || !matched {
			return false
		}
	}

	return true
}

// ListRequests writes every help request matching filters to w, oldest first.
func ListRequests(ctx context.Context, store RequestLister, instanceName string, format OutputFormat, filters *FilterCriteria, w io.Writer) error {
	if filters != nil {
		if err := filters.Validate(); err != nil {
			return err
		}
	}

	all, err := store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list help requests: %w", err)
	}

	var requests []*helpdesk.HelpRequest
	for _, r := range all {
		if filters != nil && !filters.matchesFilter(r) {
			continue
		}
		requests = append(requests, r)
	}

	sort.SliceStable(requests, func(i, j int) bool {
		return requests[i].CreatedAtMs < requests[j].CreatedAtMs
	})

	switch format {
	case OutputFormatDefault:
		FormatRequestTable(w, requests, instanceName)
	case OutputFormatJSONL:
		if err := FormatJSONL(w, requests); err != nil {
			return fmt.Errorf("failed to format JSONL output: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}

	return nil
}

// ListEntries writes the knowledge base to w in insertion order.
func ListEntries(ctx context.Context, store EntryLister, instanceName string, format OutputFormat, w io.Writer) error {
	entries, err := store.ListEntries(ctx)
	if err != nil {
		return fmt.Errorf("failed to list knowledge entries: %w", err)
	}

	switch format {
	case OutputFormatDefault:
		FormatEntryTable(w, entries, instanceName)
	case OutputFormatJSONL:
		if err := FormatJSONL(w, entries); err != nil {
			return fmt.Errorf("failed to format JSONL output: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}

	return nil
}
