package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/frontdesk/pkg/helpdesk"
)

// OutputFormat selects how activity is rendered.
type OutputFormat string

const (
	// OutputFormatDefault is human-readable output with timestamps and emojis
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSON is line-delimited JSON for programmatic processing
	OutputFormatJSON OutputFormat = "json"
)

// ActivitySource is a store that publishes live events.
type ActivitySource interface {
	SubscribeRequestEvents(ctx context.Context) (*helpdesk.Subscription[helpdesk.RequestEvent], error)
	SubscribeNotifications(ctx context.Context) (*helpdesk.Subscription[helpdesk.Notification], error)
}

// Formatter renders one event per call.
type Formatter interface {
	FormatRequestEvent(event *helpdesk.RequestEvent) error
	FormatNotification(n *helpdesk.Notification) error
	FormatError(err error) error
}

// NewFormatter returns the formatter for format writing to w.
func NewFormatter(format OutputFormat, w io.Writer) (Formatter, error) {
	switch format {
	case OutputFormatDefault, "":
		return &defaultFormatter{writer: w}, nil
	case OutputFormatJSON:
		return &jsonFormatter{encoder: json.NewEncoder(w)}, nil
	}
	return nil, fmt.Errorf("unknown output format: %s", format)
}

// StreamActivity subscribes to request events and notifications and renders
// them until ctx is cancelled.
func StreamActivity(ctx context.Context, source ActivitySource, format OutputFormat, w io.Writer) error {
	formatter, err := NewFormatter(format, w)
	if err != nil {
		return err
	}

	events, err := source.SubscribeRequestEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to request events: %w", err)
	}
	defer events.Close()

	notifications, err := source.SubscribeNotifications(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to notifications: %w", err)
	}
	defer notifications.Close()

	return Stream(ctx, events, notifications, formatter)
}

// Stream renders events from already-open subscriptions. It returns nil when
// ctx is cancelled and an error if either subscription closes underneath it.
// Undecodable messages are reported through the formatter and skipped.
func Stream(ctx context.Context, events *helpdesk.Subscription[helpdesk.RequestEvent], notifications *helpdesk.Subscription[helpdesk.Notification], formatter Formatter) error {
	eventErrs, noteErrs := events.Errors(), notifications.Errors()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-events.Events():
			if !ok {
				return streamClosed(ctx, "request event")
			}
			if err := formatter.FormatRequestEvent(event); err != nil {
				return err
			}

		case n, ok := <-notifications.Events():
			if !ok {
				return streamClosed(ctx, "notification")
			}
			if err := formatter.FormatNotification(n); err != nil {
				return err
			}

		case err, ok := <-eventErrs:
			if !ok {
				eventErrs = nil
				continue
			}
			if ferr := formatter.FormatError(err); ferr != nil {
				return ferr
			}

		case err, ok := <-noteErrs:
			if !ok {
				noteErrs = nil
				continue
			}
			if ferr := formatter.FormatError(err); ferr != nil {
				return ferr
			}
		}
	}
}

func streamClosed(ctx context.Context, what string) error {
	if ctx.Err() != nil {
		return nil
	}
	return fmt.Errorf("%s subscription closed unexpectedly", what)
}

type defaultFormatter struct {
	writer io.Writer
}

func (f *defaultFormatter) FormatRequestEvent(event *helpdesk.RequestEvent) error {
	ts := formatClock(event.AtMs)
	var line string
	switch event.Type {
	case helpdesk.EventRequestCreated:
		caller, question := "-", ""
		if event.Request != nil {
			caller, question = event.Request.CallerIdentity, event.Request.Question
		}
		line = fmt.Sprintf("📞 Help requested: id=%s, caller=%s, question=%q", event.RequestID, caller, question)
	case helpdesk.EventRequestResolved:
		line = fmt.Sprintf("✅ Resolved: id=%s", event.RequestID)
	case helpdesk.EventRequestUnresolved:
		line = fmt.Sprintf("⌛ Timed out: id=%s", event.RequestID)
	default:
		line = fmt.Sprintf("❓ %s: id=%s, status=%s", event.Type, event.RequestID, event.Status)
	}
	_, err := fmt.Fprintf(f.writer, "[%s] %s\n", ts, line)
	return err
}

func (f *defaultFormatter) FormatNotification(n *helpdesk.Notification) error {
	ts := formatClock(n.SentAtMs)
	var line string
	switch n.Kind {
	case helpdesk.NotificationSupervisor:
		line = fmt.Sprintf("🔔 Supervisor paged: request=%s", n.RequestID)
	case helpdesk.NotificationCustomer:
		line = fmt.Sprintf("💬 Texted %s: %s", n.CallerIdentity, n.Message)
	default:
		line = fmt.Sprintf("📨 %s: %s", n.Kind, n.Message)
	}
	_, err := fmt.Fprintf(f.writer, "[%s] %s\n", ts, line)
	return err
}

func (f *defaultFormatter) FormatError(err error) error {
	_, werr := fmt.Fprintf(f.writer, "⚠️  Skipped malformed message: %v\n", err)
	return werr
}

type jsonFormatter struct {
	encoder *json.Encoder
}

type jsonLine struct {
	Channel string `json:"channel"`
	Data    any    `json:"data"`
}

func (f *jsonFormatter) FormatRequestEvent(event *helpdesk.RequestEvent) error {
	return f.encoder.Encode(jsonLine{Channel: "request_events", Data: event})
}

func (f *jsonFormatter) FormatNotification(n *helpdesk.Notification) error {
	return f.encoder.Encode(jsonLine{Channel: "notifications", Data: n})
}

// FormatError drops decode errors so the output stays valid JSONL.
func (f *jsonFormatter) FormatError(error) error {
	return nil
}

func formatClock(ms int64) string {
	if ms == 0 {
		return "--:--:--"
	}
	return time.UnixMilli(ms).Format("15:04:05")
}
