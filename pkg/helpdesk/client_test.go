package helpdesk

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestClient creates a test client connected to a miniredis instance
func setupTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func newPendingRequest(question, caller string, createdAtMs int64) *HelpRequest {
	return &HelpRequest{
		Question:       question,
		CallerIdentity: caller,
		Status:         StatusPending,
		CreatedAtMs:    createdAtMs,
	}
}

func TestNewClient(t *testing.T) {
	t.Run("creates client successfully", func(t *testing.T) {
		client, _ := setupTestClient(t)
		assert.NotNil(t, client)
		assert.Equal(t, "test-instance", client.InstanceName())
	})

	t.Run("rejects empty instance name", func(t *testing.T) {
		_, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "instance name cannot be empty")
	})
}

func TestConnect(t *testing.T) {
	t.Run("connects to a running server", func(t *testing.T) {
		mr := miniredis.RunT(t)

		client, err := Connect(context.Background(), &redis.Options{Addr: mr.Addr()}, "test-instance", 2)
		require.NoError(t, err)
		defer client.Close()

		assert.NoError(t, client.Ping(context.Background()))
	})

	t.Run("gives up after retries", func(t *testing.T) {
		opts := &redis.Options{
			Addr:        "localhost:9",
			DialTimeout: 20 * time.Millisecond,
			MaxRetries:  -1,
		}

		_, err := Connect(context.Background(), opts, "test-instance", 1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "redis not reachable")
	})
}

func TestCreateAndGetRequest(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()

	t.Run("assigns an id and stores all fields", func(t *testing.T) {
		req := newPendingRequest("Do you offer keratin treatments?", "+15550100", 1700000000000)

		id, err := client.CreateRequest(ctx, req)
		require.NoError(t, err)
		_, err = uuid.Parse(id)
		require.NoError(t, err)
		assert.Equal(t, id, req.ID)

		got, err := client.GetRequest(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, req, got)

		assert.True(t, mr.Exists(RequestKey("test-instance", id)))
		members, err := mr.Members(StatusIndexKey("test-instance", StatusPending))
		require.NoError(t, err)
		assert.Contains(t, members, id)
	})

	t.Run("rejects invalid request", func(t *testing.T) {
		_, err := client.CreateRequest(ctx, &HelpRequest{Status: "open", CreatedAtMs: 1})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid request")
	})

	t.Run("missing request is not found", func(t *testing.T) {
		_, err := client.GetRequest(ctx, uuid.New().String())
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
	})

	t.Run("identical questions get distinct ids", func(t *testing.T) {
		a, err := client.CreateRequest(ctx, newPendingRequest("same question", "+1", 10))
		require.NoError(t, err)
		b, err := client.CreateRequest(ctx, newPendingRequest("same question", "+2", 10))
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})
}

func TestListRequests(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	first, err := client.CreateRequest(ctx, newPendingRequest("first", "+1", 1000))
	require.NoError(t, err)
	second, err := client.CreateRequest(ctx, newPendingRequest("second", "+2", 2000))
	require.NoError(t, err)
	third, err := client.CreateRequest(ctx, newPendingRequest("third", "+3", 3000))
	require.NoError(t, err)

	require.NoError(t, client.Transition(ctx, second, StatusPending, StatusUnresolved, TransitionFields{ResolvedAtMs: 5000}))

	t.Run("list all is chronological", func(t *testing.T) {
		all, err := client.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{first, second, third}, []string{all[0].ID, all[1].ID, all[2].ID})
	})

	t.Run("list by status follows the index", func(t *testing.T) {
		pending, err := client.ListByStatus(ctx, StatusPending)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, first, pending[0].ID)
		assert.Equal(t, third, pending[1].ID)

		unresolved, err := client.ListByStatus(ctx, StatusUnresolved)
		require.NoError(t, err)
		require.Len(t, unresolved, 1)
		assert.Equal(t, second, unresolved[0].ID)
		assert.Equal(t, int64(5000), unresolved[0].ResolvedAtMs)
		assert.Empty(t, unresolved[0].SupervisorAnswer)

		resolved, err := client.ListByStatus(ctx, StatusResolved)
		require.NoError(t, err)
		assert.Empty(t, resolved)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		_, err := client.ListByStatus(ctx, Status("archived"))
		assert.Error(t, err)
	})
}

func TestTransition(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("pending to resolved writes fields", func(t *testing.T) {
		id, err := client.CreateRequest(ctx, newPendingRequest("hours?", "+1", 1000))
		require.NoError(t, err)

		err = client.Transition(ctx, id, StatusPending, StatusResolved, TransitionFields{
			ResolvedAtMs:     2000,
			SupervisorAnswer: "9am to 7pm",
		})
		require.NoError(t, err)

		got, err := client.GetRequest(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, StatusResolved, got.Status)
		assert.Equal(t, int64(2000), got.ResolvedAtMs)
		assert.Equal(t, "9am to 7pm", got.SupervisorAnswer)
	})

	t.Run("second transition from pending conflicts", func(t *testing.T) {
		id, err := client.CreateRequest(ctx, newPendingRequest("parking?", "+1", 1000))
		require.NoError(t, err)

		require.NoError(t, client.Transition(ctx, id, StatusPending, StatusResolved, TransitionFields{ResolvedAtMs: 2000, SupervisorAnswer: "street"}))

		err = client.Transition(ctx, id, StatusPending, StatusUnresolved, TransitionFields{ResolvedAtMs: 3000})
		require.Error(t, err)
		assert.True(t, IsConflict(err))

		got, err := client.GetRequest(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, StatusResolved, got.Status)
		assert.Equal(t, "street", got.SupervisorAnswer)
	})

	t.Run("missing request is not found", func(t *testing.T) {
		err := client.Transition(ctx, uuid.New().String(), StatusPending, StatusResolved, TransitionFields{ResolvedAtMs: 1})
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
	})

	t.Run("concurrent transitions have exactly one winner", func(t *testing.T) {
		id, err := client.CreateRequest(ctx, newPendingRequest("walk-ins?", "+1", 1000))
		require.NoError(t, err)

		var wg sync.WaitGroup
		results := make(chan error, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- client.Transition(ctx, id, StatusPending, StatusResolved, TransitionFields{ResolvedAtMs: 2000, SupervisorAnswer: "yes"})
			}()
		}
		wg.Wait()
		close(results)

		wins, conflicts := 0, 0
		for err := range results {
			if err == nil {
				wins++
			} else if IsConflict(err) {
				conflicts++
			}
		}
		assert.Equal(t, 1, wins)
		assert.Equal(t, 7, conflicts)
	})
}

func TestResolveWithEntry(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("resolves and learns in one step", func(t *testing.T) {
		id, err := client.CreateRequest(ctx, newPendingRequest("keratin treatment price", "+1", 1000))
		require.NoError(t, err)

		entry := &KnowledgeEntry{Question: "keratin treatment price", Answer: "Yes, $150, 3 hours", LearnedFromRequestID: id}
		require.NoError(t, client.ResolveWithEntry(ctx, id, "Yes, $150, 3 hours", 2000, entry))
		assert.NotEmpty(t, entry.ID)

		got, err := client.GetRequest(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, StatusResolved, got.Status)
		assert.Equal(t, "Yes, $150, 3 hours", got.SupervisorAnswer)

		entries, err := client.ListEntries(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, entry.ID, entries[0].ID)
		assert.Equal(t, "keratin treatment price", entries[0].Question)
		assert.Equal(t, id, entries[0].LearnedFromRequestID)
		assert.Equal(t, int64(2000), entries[0].CreatedAtMs)
	})

	t.Run("conflict writes no entry", func(t *testing.T) {
		before, err := client.ListEntries(ctx)
		require.NoError(t, err)

		id, err := client.CreateRequest(ctx, newPendingRequest("perms?", "+1", 1000))
		require.NoError(t, err)
		require.NoError(t, client.Transition(ctx, id, StatusPending, StatusUnresolved, TransitionFields{ResolvedAtMs: 1500}))

		err = client.ResolveWithEntry(ctx, id, "yes", 2000, &KnowledgeEntry{Question: "perms", Answer: "yes", LearnedFromRequestID: id})
		require.Error(t, err)
		assert.True(t, IsConflict(err))

		after, err := client.ListEntries(ctx)
		require.NoError(t, err)
		assert.Len(t, after, len(before))
	})
}

func TestKnowledgeEntries(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("empty knowledge base lists nothing", func(t *testing.T) {
		entries, err := client.ListEntries(ctx)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("entries come back in insertion order", func(t *testing.T) {
		questions := []string{"zebra stripes", "apple pie", "mango lassi"}
		for _, q := range questions {
			_, err := client.AddEntry(ctx, q, "answer to "+q, "")
			require.NoError(t, err)
		}

		entries, err := client.ListEntries(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		for i, q := range questions {
			assert.Equal(t, q, entries[i].Question)
			assert.Equal(t, "answer to "+q, entries[i].Answer)
			assert.Empty(t, entries[i].LearnedFromRequestID)
		}
	})

	t.Run("rejects empty answer", func(t *testing.T) {
		_, err := client.AddEntry(ctx, "question", "", "")
		assert.Error(t, err)
	})
}

func TestScanRequests(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	id, err := client.CreateRequest(ctx, newPendingRequest("q", "+1", 1000))
	require.NoError(t, err)

	matches, err := client.ScanRequests(ctx, id[:8])
	require.NoError(t, err)
	assert.Equal(t, []string{id}, matches)

	none, err := client.ScanRequests(ctx, "zzzzzzzz")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSubscriptions(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("request events follow the lifecycle", func(t *testing.T) {
		sub, err := client.SubscribeRequestEvents(ctx)
		require.NoError(t, err)
		defer sub.Close()

		id, err := client.CreateRequest(ctx, newPendingRequest("color?", "+1", 1000))
		require.NoError(t, err)
		require.NoError(t, client.Transition(ctx, id, StatusPending, StatusUnresolved, TransitionFields{ResolvedAtMs: 2000}))

		for _, want := range []string{EventRequestCreated, EventRequestUnresolved} {
			select {
			case event := <-sub.Events():
				assert.Equal(t, want, event.Type)
				assert.Equal(t, id, event.RequestID)
			case <-time.After(time.Second):
				t.Fatalf("timeout waiting for %s event", want)
			}
		}
	})

	t.Run("notifications are delivered", func(t *testing.T) {
		sub, err := client.SubscribeNotifications(ctx)
		require.NoError(t, err)
		defer sub.Close()

		require.NoError(t, client.PublishNotification(ctx, &Notification{
			Kind:           NotificationCustomer,
			CallerIdentity: "+15550100",
			Message:        "Re: 'hours?'\n\n9-7",
			SentAtMs:       1000,
		}))

		select {
		case n := <-sub.Events():
			assert.Equal(t, NotificationCustomer, n.Kind)
			assert.Equal(t, "+15550100", n.CallerIdentity)
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for notification")
		}
	})

	t.Run("close is idempotent", func(t *testing.T) {
		sub, err := client.SubscribeNotifications(ctx)
		require.NoError(t, err)
		assert.NoError(t, sub.Close())
		assert.NoError(t, sub.Close())
	})
}
