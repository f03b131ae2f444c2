// Package lifecycle owns the help request state machine: escalation, supervisor
// resolution with knowledge capture, and timing out requests nobody answered.
//
// State machine:
//
//	pending ──respond──▶ resolved
//	   │
//	   └──timeout sweep──▶ unresolved
//
// Both terminal states are final. Transitions are compare-and-set in the
// store, so a concurrent respond and sweep cannot both win.
package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dyluth/frontdesk/internal/matcher"
	"github.com/dyluth/frontdesk/internal/metrics"
	"github.com/dyluth/frontdesk/pkg/helpdesk"
	"go.uber.org/zap"
)

// DefaultStoreTimeout bounds each individual store call.
const DefaultStoreTimeout = 5 * time.Second

// RequestStore persists help requests. Transition must be an atomic
// compare-and-set returning helpdesk.ErrTransitionConflict when the current
// status is not from, and helpdesk.ErrNotFound for unknown IDs.
type RequestStore interface {
	CreateRequest(ctx context.Context, r *helpdesk.HelpRequest) (string, error)
	GetRequest(ctx context.Context, requestID string) (*helpdesk.HelpRequest, error)
	ListByStatus(ctx context.Context, status helpdesk.Status) ([]*helpdesk.HelpRequest, error)
	ListAll(ctx context.Context) ([]*helpdesk.HelpRequest, error)
	Transition(ctx context.Context, requestID string, from, to helpdesk.Status, fields helpdesk.TransitionFields) error
}

// KnowledgeStore persists learned question/answer pairs. Append-only.
type KnowledgeStore interface {
	AddEntry(ctx context.Context, question, answer, sourceRequestID string) (string, error)
	ListEntries(ctx context.Context) ([]*helpdesk.KnowledgeEntry, error)
}

// AtomicResolver is implemented by request stores that can resolve a request
// and append its knowledge entry as one unit.
type AtomicResolver interface {
	ResolveWithEntry(ctx context.Context, requestID, answer string, resolvedAtMs int64, entry *helpdesk.KnowledgeEntry) error
}

// Notifier delivers (or simulates) outbound messages.
type Notifier interface {
	NotifySupervisorOfNewRequest(ctx context.Context, requestID, question, callerIdentity string) error
	NotifyCustomerOfResolution(ctx context.Context, callerIdentity, message string) error
}

// Manager runs the request state machine against injected stores.
// It keeps no request state of its own and is safe for concurrent use.
type Manager struct {
	requests     RequestStore
	knowledge    KnowledgeStore
	notifier     Notifier
	logger       *zap.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
	storeTimeout time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithStoreTimeout bounds each store call. Zero disables the bound.
func WithStoreTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.storeTimeout = d
	}
}

// WithLogger sets the structured event logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics records lifecycle counters.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// NewManager creates a Manager. A nil notifier drops notifications.
func NewManager(requests RequestStore, knowledge KnowledgeStore, notifier Notifier, opts ...Option) *Manager {
	m := &Manager{
		requests:     requests,
		knowledge:    knowledge,
		notifier:     notifier,
		logger:       zap.NewNop(),
		now:          time.Now,
		storeTimeout: DefaultStoreTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.notifier == nil {
		m.notifier = nopNotifier{}
	}
	m.logger = m.logger.With(zap.String("component", "lifecycle"))
	return m
}

// Now returns the manager's current time.
func (m *Manager) Now() time.Time {
	return m.now()
}

// Create escalates a question. The request is stored as pending before the
// supervisor is notified; a notification failure is logged, not returned.
// Identical questions are not deduplicated.
func (m *Manager) Create(ctx context.Context, question, callerIdentity string) (string, error) {
	req := &helpdesk.HelpRequest{
		Question:       question,
		CallerIdentity: callerIdentity,
		Status:         helpdesk.StatusPending,
		CreatedAtMs:    m.now().UnixMilli(),
	}

	storeCtx, cancel := m.storeCtx(ctx)
	id, err := m.requests.CreateRequest(storeCtx, req)
	cancel()
	if err != nil {
		return "", storeErr("create_request", err)
	}

	m.metrics.RequestCreated()
	m.logEvent("request_created",
		zap.String("request_id", id),
		zap.String("caller", callerIdentity),
		zap.String("question", question))

	if err := m.notifier.NotifySupervisorOfNewRequest(ctx, id, question, callerIdentity); err != nil {
		m.notificationFailed(helpdesk.NotificationSupervisor, id, err)
	}

	return id, nil
}

// Respond resolves a pending request with the supervisor's answer, learns the
// answer under the normalized question, then notifies the caller.
//
// The answer is trimmed; a blank answer is a *ValidationError and nothing is
// read or written. A request that is no longer pending yields an
// *AlreadyResolvedError and no knowledge entry.
func (m *Manager) Respond(ctx context.Context, requestID, answer string) (*helpdesk.HelpRequest, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, &ValidationError{Field: "answer", Reason: "answer cannot be empty"}
	}

	req, err := m.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != helpdesk.StatusPending {
		return nil, &AlreadyResolvedError{ID: requestID, Status: req.Status}
	}

	resolvedAtMs := m.now().UnixMilli()
	entry := &helpdesk.KnowledgeEntry{
		Question:             matcher.Normalize(req.Question),
		Answer:               answer,
		LearnedFromRequestID: requestID,
	}

	if err := m.resolve(ctx, requestID, answer, resolvedAtMs, entry); err != nil {
		return nil, err
	}

	req.Status = helpdesk.StatusResolved
	req.ResolvedAtMs = resolvedAtMs
	req.SupervisorAnswer = answer

	m.metrics.RequestClosed(string(helpdesk.StatusResolved), 1)
	m.logEvent("request_resolved",
		zap.String("request_id", requestID),
		zap.String("knowledge_entry_id", entry.ID),
		zap.String("normalized_question", entry.Question))

	message := fmt.Sprintf("Re: '%s'\n\n%s", req.Question, answer)
	if err := m.notifier.NotifyCustomerOfResolution(ctx, req.CallerIdentity, message); err != nil {
		m.notificationFailed(helpdesk.NotificationCustomer, requestID, err)
	}

	return req, nil
}

// resolve performs the pending → resolved transition and the knowledge append.
// With an AtomicResolver both happen in one store operation. Otherwise the
// transition commits first; if the append then fails the request stays
// resolved and the StoreError is returned.
func (m *Manager) resolve(ctx context.Context, requestID, answer string, resolvedAtMs int64, entry *helpdesk.KnowledgeEntry) error {
	storeCtx, cancel := m.storeCtx(ctx)
	defer cancel()

	if atomic, ok := m.requests.(AtomicResolver); ok {
		if err := atomic.ResolveWithEntry(storeCtx, requestID, answer, resolvedAtMs, entry); err != nil {
			return m.transitionErr(ctx, requestID, "resolve_with_entry", err)
		}
		return nil
	}

	fields := helpdesk.TransitionFields{ResolvedAtMs: resolvedAtMs, SupervisorAnswer: answer}
	err := m.requests.Transition(storeCtx, requestID, helpdesk.StatusPending, helpdesk.StatusResolved, fields)
	if err != nil {
		return m.transitionErr(ctx, requestID, "transition", err)
	}

	entryCtx, entryCancel := m.storeCtx(ctx)
	defer entryCancel()
	entryID, err := m.knowledge.AddEntry(entryCtx, entry.Question, entry.Answer, entry.LearnedFromRequestID)
	if err != nil {
		m.logger.Error("request resolved but knowledge entry was not stored",
			zap.String("request_id", requestID), zap.Error(err))
		return storeErr("add_entry", err)
	}
	entry.ID = entryID
	return nil
}

// transitionErr maps store transition failures. A lost compare-and-set
// becomes *AlreadyResolvedError carrying the status that won.
func (m *Manager) transitionErr(ctx context.Context, requestID, op string, err error) error {
	switch {
	case helpdesk.IsNotFound(err):
		return &NotFoundError{ID: requestID}
	case helpdesk.IsConflict(err):
		status := helpdesk.StatusResolved
		if current, getErr := m.getRequest(ctx, requestID); getErr == nil {
			status = current.Status
		}
		m.logEvent("resolve_conflict",
			zap.String("request_id", requestID),
			zap.String("status", string(status)))
		return &AlreadyResolvedError{ID: requestID, Status: status}
	default:
		return storeErr(op, err)
	}
}

// TimeoutSweep marks every pending request created more than threshold ago as
// unresolved and returns how many were moved. Requests resolved concurrently
// are skipped. If ctx is cancelled the remaining requests are left pending and
// the count so far is returned with the context error.
func (m *Manager) TimeoutSweep(ctx context.Context, threshold time.Duration) (int, error) {
	now := m.now()
	cutoffMs := now.Add(-threshold).UnixMilli()

	storeCtx, cancel := m.storeCtx(ctx)
	pending, err := m.requests.ListByStatus(storeCtx, helpdesk.StatusPending)
	cancel()
	if err != nil {
		return 0, storeErr("list_pending", err)
	}

	timedOut := 0
	defer func() {
		m.metrics.RequestClosed(string(helpdesk.StatusUnresolved), timedOut)
	}()

	fields := helpdesk.TransitionFields{ResolvedAtMs: now.UnixMilli()}
	for _, req := range pending {
		if err := ctx.Err(); err != nil {
			return timedOut, err
		}
		if req.CreatedAtMs >= cutoffMs {
			continue
		}

		storeCtx, cancel := m.storeCtx(ctx)
		err := m.requests.Transition(storeCtx, req.ID, helpdesk.StatusPending, helpdesk.StatusUnresolved, fields)
		cancel()
		switch {
		case err == nil:
			timedOut++
			m.logEvent("request_timed_out",
				zap.String("request_id", req.ID),
				zap.Duration("age", now.Sub(req.CreatedAt())))
		case helpdesk.IsConflict(err), helpdesk.IsNotFound(err):
			m.logger.Debug("skipping request closed during sweep",
				zap.String("request_id", req.ID), zap.Error(err))
		default:
			return timedOut, storeErr("transition", err)
		}
	}

	m.logEvent("timeout_sweep_completed",
		zap.Int("pending_seen", len(pending)),
		zap.Int("timed_out", timedOut),
		zap.Duration("threshold", threshold))
	return timedOut, nil
}

func (m *Manager) getRequest(ctx context.Context, requestID string) (*helpdesk.HelpRequest, error) {
	storeCtx, cancel := m.storeCtx(ctx)
	defer cancel()

	req, err := m.requests.GetRequest(storeCtx, requestID)
	if err != nil {
		if helpdesk.IsNotFound(err) {
			return nil, &NotFoundError{ID: requestID}
		}
		return nil, storeErr("get_request", err)
	}
	return req, nil
}

func (m *Manager) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.storeTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, m.storeTimeout)
}

func (m *Manager) notificationFailed(kind, requestID string, err error) {
	m.metrics.NotificationFailed(kind)
	m.logger.Warn("notification failed",
		zap.String("event_type", "notification_failed"),
		zap.String("kind", kind),
		zap.String("request_id", requestID),
		zap.Error(err))
}

// logEvent logs a structured lifecycle event.
func (m *Manager) logEvent(eventType string, fields ...zap.Field) {
	m.logger.Info(eventType, append(fields, zap.String("event_type", eventType))...)
}

type nopNotifier struct{}

func (nopNotifier) NotifySupervisorOfNewRequest(context.Context, string, string, string) error {
	return nil
}

func (nopNotifier) NotifyCustomerOfResolution(context.Context, string, string) error {
	return nil
}
