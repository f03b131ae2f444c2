package desk

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dyluth/frontdesk/internal/lifecycle"
	"github.com/dyluth/frontdesk/internal/matcher"
	"github.com/dyluth/frontdesk/internal/metrics"
	"github.com/dyluth/frontdesk/pkg/helpdesk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func setupDesk(t *testing.T) (*Desk, *helpdesk.MemoryStore, *clock) {
	c := &clock{now: t0}
	store := helpdesk.NewMemoryStore(c.Now)
	logger := zaptest.NewLogger(t)
	manager := lifecycle.NewManager(store, store, nil, lifecycle.WithClock(c.Now), lifecycle.WithLogger(logger))
	sweeper := lifecycle.NewSweeper(manager, lifecycle.DefaultSweeperConfig())
	return New(manager, sweeper, store, store, nil, WithLogger(logger), WithMetrics(metrics.New())), store, c
}

func TestDesk_EndToEnd(t *testing.T) {
	d, _, c := setupDesk(t)
	ctx := context.Background()

	_, found, err := d.CheckKnowledgeBase(ctx, "keratin treatment price")
	require.NoError(t, err)
	require.False(t, found)

	id, err := d.RequestHelp(ctx, "keratin treatment price", "+15550100")
	require.NoError(t, err)

	c.now = t0.Add(30 * time.Minute)
	req, err := d.SubmitSupervisorAnswer(ctx, id, "Yes, $150, 3 hours")
	require.NoError(t, err)
	assert.Equal(t, helpdesk.StatusResolved, req.Status)

	kb, err := d.KnowledgeBase(ctx)
	require.NoError(t, err)
	require.Len(t, kb, 1)
	assert.Equal(t, "keratin treatment price", kb[0].Question)

	answer, found, err := d.CheckKnowledgeBase(ctx, "keratin treatment cost")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Yes, $150, 3 hours", answer)
}

func TestDesk_Ask(t *testing.T) {
	d, store, _ := setupDesk(t)
	ctx := context.Background()

	_, err := store.AddEntry(ctx, "parking", "Free parking behind the salon", "")
	require.NoError(t, err)

	hit, err := d.Ask(ctx, "Is there parking?", "+1")
	require.NoError(t, err)
	assert.Equal(t, &AskResult{Found: true, Answer: "Free parking behind the salon"}, hit)

	miss, err := d.Ask(ctx, "Do you sell wigs?", "+1")
	require.NoError(t, err)
	assert.False(t, miss.Found)
	require.NotEmpty(t, miss.RequestID)

	req, err := d.Request(ctx, miss.RequestID)
	require.NoError(t, err)
	assert.Equal(t, helpdesk.StatusPending, req.Status)
}

func TestDesk_RunTimeoutSweep(t *testing.T) {
	d, _, c := setupDesk(t)
	ctx := context.Background()

	id, err := d.RequestHelp(ctx, "q", "+1")
	require.NoError(t, err)

	c.now = t0.Add(4*time.Hour + time.Minute)
	n, err := d.RunTimeoutSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	req, err := d.Request(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, helpdesk.StatusUnresolved, req.Status)
}

func TestDesk_DashboardQueries(t *testing.T) {
	d, _, c := setupDesk(t)
	ctx := context.Background()

	first, err := d.RequestHelp(ctx, "first", "+1")
	require.NoError(t, err)
	c.now = t0.Add(time.Minute)
	second, err := d.RequestHelp(ctx, "second", "+2")
	require.NoError(t, err)
	c.now = t0.Add(2 * time.Minute)
	third, err := d.RequestHelp(ctx, "third", "+3")
	require.NoError(t, err)
	c.now = t0.Add(3 * time.Minute)
	fourth, err := d.RequestHelp(ctx, "fourth", "+4")
	require.NoError(t, err)

	c.now = t0.Add(10 * time.Minute)
	_, err = d.SubmitSupervisorAnswer(ctx, first, "a1")
	require.NoError(t, err)
	c.now = t0.Add(20 * time.Minute)
	_, err = d.SubmitSupervisorAnswer(ctx, second, "a2")
	require.NoError(t, err)

	c.now = t0.Add(5 * time.Hour)
	_, err = d.RunTimeoutSweep(ctx)
	require.NoError(t, err)
	c.now = t0.Add(5*time.Hour + time.Minute)
	pendingID, err := d.RequestHelp(ctx, "fresh", "+5")
	require.NoError(t, err)

	t.Run("stats", func(t *testing.T) {
		stats, err := d.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, &Stats{Pending: 1, Resolved: 2, Unresolved: 2, Total: 5, KnowledgeEntries: 2}, stats)
	})

	t.Run("pending newest first", func(t *testing.T) {
		pending, err := d.PendingRequests(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, pendingID, pending[0].ID)
	})

	t.Run("history by resolution time", func(t *testing.T) {
		h, err := d.History(ctx)
		require.NoError(t, err)
		require.Len(t, h.Resolved, 2)
		assert.Equal(t, second, h.Resolved[0].ID)
		assert.Equal(t, first, h.Resolved[1].ID)
		require.Len(t, h.Unresolved, 2)
		assert.ElementsMatch(t, []string{third, fourth}, []string{h.Unresolved[0].ID, h.Unresolved[1].ID})
	})

	t.Run("knowledge newest first", func(t *testing.T) {
		kb, err := d.KnowledgeBase(ctx)
		require.NoError(t, err)
		require.Len(t, kb, 2)
		assert.Equal(t, "a2", kb[0].Answer)
		assert.Equal(t, "a1", kb[1].Answer)
	})

	t.Run("all requests oldest first", func(t *testing.T) {
		all, err := d.AllRequests(ctx)
		require.NoError(t, err)
		require.Len(t, all, 5)
		assert.Equal(t, first, all[0].ID)
		assert.Equal(t, pendingID, all[4].ID)
	})
}

func TestDesk_Errors(t *testing.T) {
	d, _, _ := setupDesk(t)
	ctx := context.Background()

	_, err := d.Request(ctx, "missing")
	assert.True(t, lifecycle.IsNotFound(err))

	_, err = d.SubmitSupervisorAnswer(ctx, "missing", "answer")
	assert.True(t, lifecycle.IsNotFound(err))

	_, err = d.SubmitSupervisorAnswer(ctx, "missing", " ")
	assert.True(t, lifecycle.IsValidation(err))
}

type brokenKnowledge struct{}

func (brokenKnowledge) AddEntry(context.Context, string, string, string) (string, error) {
	return "", errors.New("connection refused")
}

func (brokenKnowledge) ListEntries(context.Context) ([]*helpdesk.KnowledgeEntry, error) {
	return nil, errors.New("connection refused")
}

func TestDesk_StoreUnavailable(t *testing.T) {
	store := helpdesk.NewMemoryStore(nil)
	manager := lifecycle.NewManager(store, brokenKnowledge{}, nil)
	d := New(manager, lifecycle.NewSweeper(manager, lifecycle.DefaultSweeperConfig()), store, brokenKnowledge{}, matcher.Default())

	_, _, err := d.CheckKnowledgeBase(context.Background(), "anything")
	assert.True(t, lifecycle.IsStoreUnavailable(err))

	_, err = d.Stats(context.Background())
	assert.True(t, lifecycle.IsStoreUnavailable(err))

	_, err = d.Ask(context.Background(), "anything", "+1")
	assert.True(t, lifecycle.IsStoreUnavailable(err))
}

// hangingStore blocks every read until the caller's context is done.
type hangingStore struct {
	*helpdesk.MemoryStore
}

func (hangingStore) ListEntries(ctx context.Context) ([]*helpdesk.KnowledgeEntry, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (hangingStore) ListAll(ctx context.Context) ([]*helpdesk.HelpRequest, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (hangingStore) ListByStatus(ctx context.Context, _ helpdesk.Status) ([]*helpdesk.HelpRequest, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (hangingStore) GetRequest(ctx context.Context, _ string) (*helpdesk.HelpRequest, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestDesk_StoreTimeout(t *testing.T) {
	store := hangingStore{helpdesk.NewMemoryStore(nil)}
	manager := lifecycle.NewManager(store, store, nil, lifecycle.WithStoreTimeout(50*time.Millisecond))
	d := New(manager, lifecycle.NewSweeper(manager, lifecycle.DefaultSweeperConfig()), store, store, nil,
		WithLogger(zaptest.NewLogger(t)), WithStoreTimeout(50*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	calls := map[string]func() error{
		"check knowledge base": func() error { _, _, err := d.CheckKnowledgeBase(ctx, "parking"); return err },
		"stats":                func() error { _, err := d.Stats(ctx); return err },
		"pending":              func() error { _, err := d.PendingRequests(ctx); return err },
		"history":              func() error { _, err := d.History(ctx); return err },
		"knowledge base":       func() error { _, err := d.KnowledgeBase(ctx); return err },
		"request":              func() error { _, err := d.Request(ctx, "abc"); return err },
		"all requests":         func() error { _, err := d.AllRequests(ctx); return err },
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			start := time.Now()
			err := call()
			elapsed := time.Since(start)

			require.Error(t, err)
			assert.True(t, lifecycle.IsStoreUnavailable(err), "got %v", err)
			assert.ErrorIs(t, err, context.DeadlineExceeded)
			assert.Less(t, elapsed, time.Second, "store timeout was not applied")
		})
	}
	assert.NoError(t, ctx.Err(), "caller deadline must not be what ended the calls")
}

func TestDesk_DefaultStoreTimeout(t *testing.T) {
	d, _, _ := setupDesk(t)
	assert.Equal(t, lifecycle.DefaultStoreTimeout, d.storeTimeout)

	d = New(nil, nil, nil, nil, nil, WithStoreTimeout(0))
	ctx, cancel := d.storeCtx(context.Background())
	defer cancel()
	_, hasDeadline := ctx.Deadline()
	assert.False(t, hasDeadline)
}
