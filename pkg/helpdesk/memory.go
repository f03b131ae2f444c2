package helpdesk

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process request and knowledge store. Every operation
// holds one mutex, so transitions are compare-and-set like the Redis scripts.
// It is used by tests and by `frontdesk serve --memory`.
type MemoryStore struct {
	mu       sync.Mutex
	requests map[string]*HelpRequest
	order    []string
	entries  []*KnowledgeEntry
	now      func() time.Time
}

// NewMemoryStore creates an empty store. now stamps knowledge entries; nil means time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		requests: make(map[string]*HelpRequest),
		now:      now,
	}
}

// Ping always succeeds.
func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// CreateRequest stores a copy of r, assigning a UUID when r.ID is empty.
func (m *MemoryStore) CreateRequest(ctx context.Context, r *HelpRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if err := r.Validate(); err != nil {
		return "", fmt.Errorf("invalid request: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.requests[r.ID]; exists {
		return "", fmt.Errorf("request %s already exists", r.ID)
	}
	copied := *r
	m.requests[r.ID] = &copied
	m.order = append(m.order, r.ID)
	return r.ID, nil
}

// GetRequest returns a copy of the request or an error wrapping ErrNotFound.
func (m *MemoryStore) GetRequest(ctx context.Context, requestID string) (*HelpRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", requestID, ErrNotFound)
	}
	copied := *r
	return &copied, nil
}

// ListByStatus returns copies of all requests in status, oldest first.
func (m *MemoryStore) ListByStatus(ctx context.Context, status Status) ([]*HelpRequest, error) {
	if err := status.Validate(); err != nil {
		return nil, err
	}
	return m.list(ctx, func(r *HelpRequest) bool { return r.Status == status })
}

// ListAll returns copies of all requests, oldest first.
func (m *MemoryStore) ListAll(ctx context.Context) ([]*HelpRequest, error) {
	return m.list(ctx, func(*HelpRequest) bool { return true })
}

func (m *MemoryStore) list(ctx context.Context, keep func(*HelpRequest) bool) ([]*HelpRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*HelpRequest, 0, len(m.order))
	for _, id := range m.order {
		r := m.requests[id]
		if keep(r) {
			copied := *r
			out = append(out, &copied)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAtMs < out[j].CreatedAtMs
	})
	return out, nil
}

// Transition moves a request from one status to another if it is currently in from.
func (m *MemoryStore) Transition(ctx context.Context, requestID string, from, to Status, fields TransitionFields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := to.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.transitionLocked(requestID, from, to, fields)
}

func (m *MemoryStore) transitionLocked(requestID string, from, to Status, fields TransitionFields) error {
	r, ok := m.requests[requestID]
	if !ok {
		return fmt.Errorf("request %s: %w", requestID, ErrNotFound)
	}
	if r.Status != from {
		return fmt.Errorf("request %s is no longer %s: %w", requestID, from, ErrTransitionConflict)
	}

	r.Status = to
	r.ResolvedAtMs = fields.ResolvedAtMs
	r.SupervisorAnswer = fields.SupervisorAnswer
	return nil
}

// ResolveWithEntry resolves a pending request and appends its entry under one lock.
func (m *MemoryStore) ResolveWithEntry(ctx context.Context, requestID, answer string, resolvedAtMs int64, entry *KnowledgeEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAtMs == 0 {
		entry.CreatedAtMs = resolvedAtMs
	}
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid knowledge entry: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	fields := TransitionFields{ResolvedAtMs: resolvedAtMs, SupervisorAnswer: answer}
	if err := m.transitionLocked(requestID, StatusPending, StatusResolved, fields); err != nil {
		return err
	}
	copied := *entry
	m.entries = append(m.entries, &copied)
	return nil
}

// AddEntry appends a knowledge entry and returns its ID.
func (m *MemoryStore) AddEntry(ctx context.Context, question, answer, sourceRequestID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	entry := &KnowledgeEntry{
		ID:                   uuid.New().String(),
		Question:             question,
		Answer:               answer,
		LearnedFromRequestID: sourceRequestID,
		CreatedAtMs:          m.now().UnixMilli(),
	}
	if err := entry.Validate(); err != nil {
		return "", fmt.Errorf("invalid knowledge entry: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = append(m.entries, entry)
	return entry.ID, nil
}

// ListEntries returns copies of all knowledge entries in insertion order.
func (m *MemoryStore) ListEntries(ctx context.Context) ([]*KnowledgeEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*KnowledgeEntry, len(m.entries))
	for i, e := range m.entries {
		copied := *e
		out[i] = &copied
	}
	return out, nil
}

// ScanRequests returns the sorted IDs of all requests starting with prefix.
func (m *MemoryStore) ScanRequests(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string
	for id := range m.requests {
		if strings.HasPrefix(id, prefix) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
