// Package notify implements the supervisor and caller notifications. Nothing
// is actually delivered: messages are logged and, when Redis is available,
// published for consoles such as `frontdesk watch`.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dyluth/frontdesk/pkg/helpdesk"
	"go.uber.org/zap"
)

// Notifier is the outbound message port used by the lifecycle manager.
type Notifier interface {
	NotifySupervisorOfNewRequest(ctx context.Context, requestID, question, callerIdentity string) error
	NotifyCustomerOfResolution(ctx context.Context, callerIdentity, message string) error
}

// LogNotifier writes each notification as a structured log line.
type LogNotifier struct {
	logger       *zap.Logger
	dashboardURL string
}

// NewLogNotifier creates a LogNotifier. dashboardURL is included in supervisor
// notifications so the reader knows where to answer.
func NewLogNotifier(logger *zap.Logger, dashboardURL string) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{
		logger:       logger.With(zap.String("component", "notify")),
		dashboardURL: strings.TrimRight(dashboardURL, "/"),
	}
}

// NotifySupervisorOfNewRequest logs a new help request.
func (n *LogNotifier) NotifySupervisorOfNewRequest(_ context.Context, requestID, question, callerIdentity string) error {
	fields := []zap.Field{
		zap.String("event_type", helpdesk.NotificationSupervisor),
		zap.String("request_id", requestID),
		zap.String("question", question),
		zap.String("caller", callerIdentity),
	}
	if n.dashboardURL != "" {
		fields = append(fields, zap.String("action",
			fmt.Sprintf("POST %s/api/requests/%s/respond to answer", n.dashboardURL, requestID)))
	}
	n.logger.Info("new help request", fields...)
	return nil
}

// NotifyCustomerOfResolution logs a simulated text message to the caller.
func (n *LogNotifier) NotifyCustomerOfResolution(_ context.Context, callerIdentity, message string) error {
	n.logger.Info("simulated text message",
		zap.String("event_type", helpdesk.NotificationCustomer),
		zap.String("to", callerIdentity),
		zap.String("message", message))
	return nil
}

// Publisher publishes notification records. *helpdesk.Client implements it.
type Publisher interface {
	PublishNotification(ctx context.Context, n *helpdesk.Notification) error
}

// PublishNotifier publishes each notification on the instance's Pub/Sub channel.
type PublishNotifier struct {
	publisher Publisher
	now       func() time.Time
}

// NewPublishNotifier creates a PublishNotifier. A nil clock means time.Now.
func NewPublishNotifier(publisher Publisher, now func() time.Time) *PublishNotifier {
	if now == nil {
		now = time.Now
	}
	return &PublishNotifier{publisher: publisher, now: now}
}

// NotifySupervisorOfNewRequest publishes a supervisor notification.
func (n *PublishNotifier) NotifySupervisorOfNewRequest(ctx context.Context, requestID, question, callerIdentity string) error {
	return n.publisher.PublishNotification(ctx, &helpdesk.Notification{
		Kind:           helpdesk.NotificationSupervisor,
		RequestID:      requestID,
		CallerIdentity: callerIdentity,
		Question:       question,
		SentAtMs:       n.now().UnixMilli(),
	})
}

// NotifyCustomerOfResolution publishes a caller notification.
func (n *PublishNotifier) NotifyCustomerOfResolution(ctx context.Context, callerIdentity, message string) error {
	return n.publisher.PublishNotification(ctx, &helpdesk.Notification{
		Kind:           helpdesk.NotificationCustomer,
		CallerIdentity: callerIdentity,
		Message:        message,
		SentAtMs:       n.now().UnixMilli(),
	})
}

// Multi sends every notification to all notifiers, even when some fail.
// The returned error joins all failures.
type Multi []Notifier

// NotifySupervisorOfNewRequest fans out to every notifier.
func (m Multi) NotifySupervisorOfNewRequest(ctx context.Context, requestID, question, callerIdentity string) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifySupervisorOfNewRequest(ctx, requestID, question, callerIdentity); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NotifyCustomerOfResolution fans out to every notifier.
func (m Multi) NotifyCustomerOfResolution(ctx context.Context, callerIdentity, message string) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyCustomerOfResolution(ctx, callerIdentity, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
