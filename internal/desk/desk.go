// Package desk exposes the receptionist operations to front ends: the voice
// agent tools (check the knowledge base, request help), the supervisor
// actions (answer, time out) and the dashboard queries.
package desk

import (
	"context"
	"sort"
	"time"

	"github.com/dyluth/frontdesk/internal/lifecycle"
	"github.com/dyluth/frontdesk/internal/matcher"
	"github.com/dyluth/frontdesk/internal/metrics"
	"github.com/dyluth/frontdesk/pkg/helpdesk"
	"go.uber.org/zap"
)

// Desk wires the matcher and lifecycle manager to the stores.
type Desk struct {
	manager   *lifecycle.Manager
	sweeper   *lifecycle.Sweeper
	requests  lifecycle.RequestStore
	knowledge lifecycle.KnowledgeStore
	matcher   *matcher.Matcher
	metrics   *metrics.Metrics
	logger    *zap.Logger

	storeTimeout time.Duration
}

// Option configures a Desk.
type Option func(*Desk)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Desk) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics records knowledge lookups.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Desk) {
		d.metrics = m
	}
}

// WithStoreTimeout bounds each store read. Zero or negative disables the
// bound. The default is lifecycle.DefaultStoreTimeout.
func WithStoreTimeout(timeout time.Duration) Option {
	return func(d *Desk) {
		d.storeTimeout = timeout
	}
}

// New creates a Desk. A nil matcher uses matcher.Default().
func New(manager *lifecycle.Manager, sweeper *lifecycle.Sweeper, requests lifecycle.RequestStore, knowledge lifecycle.KnowledgeStore, m *matcher.Matcher, opts ...Option) *Desk {
	if m == nil {
		m = matcher.Default()
	}
	d := &Desk{
		manager:   manager,
		sweeper:   sweeper,
		requests:  requests,
		knowledge: knowledge,
		matcher:   m,
		logger:    zap.NewNop(),

		storeTimeout: lifecycle.DefaultStoreTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With(zap.String("component", "desk"))
	return d
}

// CheckKnowledgeBase returns a learned answer for question, if one is close enough.
// A store failure is returned as a *lifecycle.StoreError.
func (d *Desk) CheckKnowledgeBase(ctx context.Context, question string) (string, bool, error) {
	entries, err := d.listEntries(ctx)
	if err != nil {
		return "", false, err
	}

	match, ok := d.matcher.FindBestAnswer(question, entries)

	result := metrics.LookupMiss
	switch {
	case ok && match.Decision == matcher.DecisionExactOrSubstring:
		result = metrics.LookupHitExact
	case ok:
		result = metrics.LookupHitFuzzy
	}
	bestScore := -1.0
	if match.Entry != nil && match.Decision == matcher.DecisionFuzzy {
		bestScore = match.Score
	}
	d.metrics.ObserveLookup(result, bestScore)

	fields := []zap.Field{
		zap.String("event_type", "knowledge_lookup"),
		zap.String("question", question),
		zap.String("result", result),
		zap.Int("entries", len(entries)),
	}
	if match.Entry != nil {
		fields = append(fields,
			zap.String("entry_id", match.Entry.ID),
			zap.String("decision", match.Decision.String()),
			zap.Float64("score", match.Score))
	}
	d.logger.Debug("knowledge lookup", fields...)

	if !ok {
		return "", false, nil
	}
	return match.Answer(), true, nil
}

// RequestHelp escalates a question to the supervisor and returns the request ID.
func (d *Desk) RequestHelp(ctx context.Context, question, callerIdentity string) (string, error) {
	return d.manager.Create(ctx, question, callerIdentity)
}

// AskResult is the outcome of Ask: either a learned answer or an escalation.
type AskResult struct {
	Found     bool   `json:"found"`
	Answer    string `json:"answer,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Ask answers from the knowledge base and escalates on a miss, the way the
// voice agent uses the two tools.
func (d *Desk) Ask(ctx context.Context, question, callerIdentity string) (*AskResult, error) {
	answer, found, err := d.CheckKnowledgeBase(ctx, question)
	if err != nil {
		return nil, err
	}
	if found {
		return &AskResult{Found: true, Answer: answer}, nil
	}

	id, err := d.RequestHelp(ctx, question, callerIdentity)
	if err != nil {
		return nil, err
	}
	return &AskResult{RequestID: id}, nil
}

// SubmitSupervisorAnswer resolves a pending request. Errors are the typed
// errors of package lifecycle.
func (d *Desk) SubmitSupervisorAnswer(ctx context.Context, requestID, answer string) (*helpdesk.HelpRequest, error) {
	return d.manager.Respond(ctx, requestID, answer)
}

// RunTimeoutSweep runs one sweep with the configured threshold.
func (d *Desk) RunTimeoutSweep(ctx context.Context) (int, error) {
	return d.sweeper.RunOnce(ctx)
}

// Stats summarizes the request and knowledge stores.
type Stats struct {
	Pending          int `json:"pending"`
	Resolved         int `json:"resolved"`
	Unresolved       int `json:"unresolved"`
	Total            int `json:"total"`
	KnowledgeEntries int `json:"total_kb_entries"`
}

// Stats counts requests by status and knowledge entries.
func (d *Desk) Stats(ctx context.Context) (*Stats, error) {
	all, err := d.listAll(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := d.listEntries(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{Total: len(all), KnowledgeEntries: len(entries)}
	for _, r := range all {
		switch r.Status {
		case helpdesk.StatusPending:
			stats.Pending++
		case helpdesk.StatusResolved:
			stats.Resolved++
		case helpdesk.StatusUnresolved:
			stats.Unresolved++
		}
	}
	return stats, nil
}

// PendingRequests returns pending requests, newest first.
func (d *Desk) PendingRequests(ctx context.Context) ([]*helpdesk.HelpRequest, error) {
	pending, err := d.listByStatus(ctx, helpdesk.StatusPending)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].CreatedAtMs > pending[j].CreatedAtMs
	})
	return pending, nil
}

// History holds closed requests, each list most recently closed first.
type History struct {
	Resolved   []*helpdesk.HelpRequest `json:"resolved"`
	Unresolved []*helpdesk.HelpRequest `json:"unresolved"`
}

// History returns resolved and unresolved requests.
func (d *Desk) History(ctx context.Context) (*History, error) {
	resolved, err := d.listByStatus(ctx, helpdesk.StatusResolved)
	if err != nil {
		return nil, err
	}
	unresolved, err := d.listByStatus(ctx, helpdesk.StatusUnresolved)
	if err != nil {
		return nil, err
	}

	for _, list := range [][]*helpdesk.HelpRequest{resolved, unresolved} {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].ResolvedAtMs > list[j].ResolvedAtMs
		})
	}
	return &History{Resolved: resolved, Unresolved: unresolved}, nil
}

// KnowledgeBase returns learned entries, newest first.
func (d *Desk) KnowledgeBase(ctx context.Context) ([]*helpdesk.KnowledgeEntry, error) {
	entries, err := d.listEntries(ctx)
	if err != nil {
		return nil, err
	}

	// Reverse insertion order first so equal timestamps still list newest first.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAtMs > entries[j].CreatedAtMs
	})
	return entries, nil
}

// Request returns a single request or a *lifecycle.NotFoundError.
func (d *Desk) Request(ctx context.Context, requestID string) (*helpdesk.HelpRequest, error) {
	storeCtx, cancel := d.storeCtx(ctx)
	defer cancel()

	req, err := d.requests.GetRequest(storeCtx, requestID)
	if err != nil {
		if helpdesk.IsNotFound(err) {
			return nil, &lifecycle.NotFoundError{ID: requestID}
		}
		return nil, &lifecycle.StoreError{Op: "get_request", Err: err}
	}
	return req, nil
}

// AllRequests returns every request, oldest first.
func (d *Desk) AllRequests(ctx context.Context) ([]*helpdesk.HelpRequest, error) {
	return d.listAll(ctx)
}

func (d *Desk) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.storeTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.storeTimeout)
}

func (d *Desk) listEntries(ctx context.Context) ([]*helpdesk.KnowledgeEntry, error) {
	storeCtx, cancel := d.storeCtx(ctx)
	defer cancel()

	entries, err := d.knowledge.ListEntries(storeCtx)
	if err != nil {
		return nil, &lifecycle.StoreError{Op: "list_entries", Err: err}
	}
	return entries, nil
}

func (d *Desk) listAll(ctx context.Context) ([]*helpdesk.HelpRequest, error) {
	storeCtx, cancel := d.storeCtx(ctx)
	defer cancel()

	all, err := d.requests.ListAll(storeCtx)
	if err != nil {
		return nil, &lifecycle.StoreError{Op: "list_requests", Err: err}
	}
	return all, nil
}

func (d *Desk) listByStatus(ctx context.Context, status helpdesk.Status) ([]*helpdesk.HelpRequest, error) {
	storeCtx, cancel := d.storeCtx(ctx)
	defer cancel()

	list, err := d.requests.ListByStatus(storeCtx, status)
	if err != nil {
		return nil, &lifecycle.StoreError{Op: "list_" + string(status), Err: err}
	}
	return list, nil
}
