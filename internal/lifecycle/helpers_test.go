package lifecycle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dyluth/frontdesk/pkg/helpdesk"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: t0}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type supervisorCall struct {
	requestID, question, caller string
}

type customerCall struct {
	caller, message string
}

type recordingNotifier struct {
	mu         sync.Mutex
	supervisor []supervisorCall
	customer   []customerCall
	failWith   error
}

func (n *recordingNotifier) NotifySupervisorOfNewRequest(_ context.Context, requestID, question, caller string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.supervisor = append(n.supervisor, supervisorCall{requestID, question, caller})
	return n.failWith
}

func (n *recordingNotifier) NotifyCustomerOfResolution(_ context.Context, caller, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.customer = append(n.customer, customerCall{caller, message})
	return n.failWith
}

func (n *recordingNotifier) customerCalls() []customerCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]customerCall(nil), n.customer...)
}

// plainStore hides ResolveWithEntry so the manager takes the two-step path.
type plainStore struct {
	RequestStore
}

var errRedisDown = errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")

// flakyStore fails selected calls a set number of times.
type flakyStore struct {
	*helpdesk.MemoryStore
	createFailures atomic.Int32
	listFailures   atomic.Int32
	addFailures    atomic.Int32
}

func (s *flakyStore) CreateRequest(ctx context.Context, r *helpdesk.HelpRequest) (string, error) {
	if s.createFailures.Add(-1) >= 0 {
		return "", errRedisDown
	}
	return s.MemoryStore.CreateRequest(ctx, r)
}

func (s *flakyStore) ListByStatus(ctx context.Context, status helpdesk.Status) ([]*helpdesk.HelpRequest, error) {
	if s.listFailures.Add(-1) >= 0 {
		return nil, errRedisDown
	}
	return s.MemoryStore.ListByStatus(ctx, status)
}

func (s *flakyStore) AddEntry(ctx context.Context, question, answer, sourceRequestID string) (string, error) {
	if s.addFailures.Add(-1) >= 0 {
		return "", errRedisDown
	}
	return s.MemoryStore.AddEntry(ctx, question, answer, sourceRequestID)
}

// racingStore closes the request right after it is read, as if a sweep ran
// between Respond's read and its compare-and-set.
type racingStore struct {
	*helpdesk.MemoryStore
	once sync.Once
}

func (s *racingStore) GetRequest(ctx context.Context, requestID string) (*helpdesk.HelpRequest, error) {
	req, err := s.MemoryStore.GetRequest(ctx, requestID)
	if err == nil {
		s.once.Do(func() {
			_ = s.MemoryStore.Transition(ctx, requestID, helpdesk.StatusPending, helpdesk.StatusUnresolved,
				helpdesk.TransitionFields{ResolvedAtMs: 1})
		})
	}
	return req, err
}

type fixture struct {
	store    *helpdesk.MemoryStore
	clock    *fakeClock
	notifier *recordingNotifier
	manager  *Manager
}

func newFixture(t *testing.T) *fixture {
	clock := newFakeClock()
	store := helpdesk.NewMemoryStore(clock.Now)
	notifier := &recordingNotifier{}
	manager := NewManager(store, store, notifier,
		WithClock(clock.Now),
		WithLogger(zaptest.NewLogger(t)))
	return &fixture{store: store, clock: clock, notifier: notifier, manager: manager}
}
