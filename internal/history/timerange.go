package history

import (
	"fmt"
	"time"
)

// ParseTimeBound converts a --since or --until value to Unix milliseconds.
// A Go duration ("90m", "2h") counts back from the current time. Any other
// value must be an RFC3339 timestamp.
func ParseTimeBound(value string) (int64, error) {
	if value == "" {
		return 0, fmt.Errorf("time bound is empty")
	}

	if d, err := time.ParseDuration(value); err == nil {
		if d < 0 {
			return 0, fmt.Errorf("%q counts back from now and cannot be negative", value)
		}
		return now().Add(-d).UnixMilli(), nil
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return 0, fmt.Errorf("%q is neither a duration like '1h30m' nor an RFC3339 time like '2025-10-29T13:00:00Z'", value)
	}
	return t.UnixMilli(), nil
}

// SetTimeRange fills the creation-time window from the --since and --until
// flags. An empty flag leaves that end of the window open.
func (fc *FilterCriteria) SetTimeRange(since, until string) error {
	bounds := []struct {
		flag  string
		value string
		dst   *int64
	}{
		{"--since", since, &fc.SinceTimestampMs},
		{"--until", until, &fc.UntilTimestampMs},
	}
	for _, b := range bounds {
		if b.value == "" {
			*b.dst = 0
			continue
		}
		ms, err := ParseTimeBound(b.value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", b.flag, err)
		}
		*b.dst = ms
	}
	return fc.validateWindow()
}

func (fc *FilterCriteria) validateWindow() error {
	if fc.SinceTimestampMs > 0 && fc.UntilTimestampMs > 0 && fc.SinceTimestampMs >= fc.UntilTimestampMs {
		return fmt.Errorf("--since must be before --until")
	}
	return nil
}
