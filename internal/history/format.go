package history

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dyluth/frontdesk/pkg/helpdesk"
)

// now is replaced in tests to pin relative ages.
var now = time.Now

// FormatRequestTable writes help requests as a table: ID, STATUS, CALLER, AGE, QUESTION, ANSWER.
// Returns the number of requests formatted.
func FormatRequestTable(w io.Writer, requests []*helpdesk.HelpRequest, instanceName string) int {
	if len(requests) == 0 {
		fmt.Fprintf(w, "No help requests found for instance '%s'\n", instanceName)
		return 0
	}

	fmt.Fprintf(w, "Help requests for instance '%s':\n\n", instanceName)

	fmt.Fprintf(w, "%-10s %-10s %-16s %-8s %-40s %s\n",
		"ID", "STATUS", "CALLER", "AGE", "QUESTION", "ANSWER")
	fmt.Fprintf(w, "%-10s %-10s %-16s %-8s %-40s %s\n",
		"----------", "----------", "----------------", "--------",
		"----------------------------------------", "------------------------------")

	for _, r := range requests {
		fmt.Fprintf(w, "%-10s %-10s %-16s %-8s %-40s %s\n",
			formatID(r.ID),
			r.Status,
			truncate(dash(r.CallerIdentity), 16),
			formatAge(r.CreatedAtMs),
			formatText(r.Question, 40),
			formatText(r.SupervisorAnswer, 30),
		)
	}

	fmt.Fprintf(w, "\n%s found\n", plural(len(requests), "help request", "help requests"))
	return len(requests)
}

// FormatEntryTable writes knowledge entries as a table: ID, AGE, SOURCE, QUESTION, ANSWER.
func FormatEntryTable(w io.Writer, entries []*helpdesk.KnowledgeEntry, instanceName string) int {
	if len(entries) == 0 {
		fmt.Fprintf(w, "Knowledge base for instance '%s' is empty\n", instanceName)
		return 0
	}

	fmt.Fprintf(w, "Knowledge base for instance '%s':\n\n", instanceName)

	fmt.Fprintf(w, "%-10s %-8s %-10s %-40s %s\n", "ID", "AGE", "SOURCE", "QUESTION", "ANSWER")
	fmt.Fprintf(w, "%-10s %-8s %-10s %-40s %s\n",
		"----------", "--------", "----------",
		"----------------------------------------", "------------------------------")

	for _, e := range entries {
		fmt.Fprintf(w, "%-10s %-8s %-10s %-40s %s\n",
			formatID(e.ID),
			formatAge(e.CreatedAtMs),
			dash(formatID(e.LearnedFromRequestID)),
			formatText(e.Question, 40),
			formatText(e.Answer, 30),
		)
	}

	fmt.Fprintf(w, "\n%s\n", plural(len(entries), "entry", "entries"))
	return len(entries)
}

// FormatJSONL writes each record as a single JSON object on its own line.
func FormatJSONL[T any](w io.Writer, records []T) error {
	for _, record := range records {
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to marshal record to JSON: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}
	return nil
}

// FormatSingleJSON writes v as pretty-printed JSON followed by a newline.
func FormatSingleJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record to JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	fmt.Fprintln(w)
	return nil
}

// formatID truncates a UUID to its first 8 characters.
func formatID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatText keeps the first non-empty line, truncated to max characters.
func formatText(text string, max int) string {
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return truncate(trimmed, max)
		}
	}
	return "-"
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) > max {
		return string(r[:max-3]) + "..."
	}
	return s
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}

// formatAge renders a Unix ms timestamp as "42s ago", "5m ago", "3h ago" or "2d ago".
func formatAge(timestampMs int64) string {
	if timestampMs == 0 {
		return "-"
	}

	diff := now().Sub(time.UnixMilli(timestampMs))
	if diff < 0 {
		diff = 0
	}

	switch {
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}
