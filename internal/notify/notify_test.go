package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/frontdesk/pkg/helpdesk"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLogNotifier(zap.New(core), "http://localhost:8080/")
	ctx := context.Background()

	require.NoError(t, n.NotifySupervisorOfNewRequest(ctx, "req-1", "Do you do perms?", "+15550100"))
	require.NoError(t, n.NotifyCustomerOfResolution(ctx, "+15550100", "Re: 'Do you do perms?'\n\nYes"))

	entries := logs.All()
	require.Len(t, entries, 2)

	supervisor := entries[0].ContextMap()
	assert.Equal(t, "new help request", entries[0].Message)
	assert.Equal(t, helpdesk.NotificationSupervisor, supervisor["event_type"])
	assert.Equal(t, "req-1", supervisor["request_id"])
	assert.Equal(t, "notify", supervisor["component"])
	assert.Equal(t, "POST http://localhost:8080/api/requests/req-1/respond to answer", supervisor["action"])

	customer := entries[1].ContextMap()
	assert.Equal(t, helpdesk.NotificationCustomer, customer["event_type"])
	assert.Equal(t, "+15550100", customer["to"])
}

func TestLogNotifier_NoDashboard(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLogNotifier(zap.New(core), "")

	require.NoError(t, n.NotifySupervisorOfNewRequest(context.Background(), "req-1", "q", "+1"))
	_, hasAction := logs.All()[0].ContextMap()["action"]
	assert.False(t, hasAction)
}

func TestPublishNotifier(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := helpdesk.NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	sub, err := client.SubscribeNotifications(ctx)
	require.NoError(t, err)
	defer sub.Close()

	fixed := time.UnixMilli(1700000000000)
	n := NewPublishNotifier(client, func() time.Time { return fixed })

	require.NoError(t, n.NotifySupervisorOfNewRequest(ctx, "req-1", "q?", "+1"))
	require.NoError(t, n.NotifyCustomerOfResolution(ctx, "+1", "Re: 'q?'\n\na"))

	var got []*helpdesk.Notification
	for len(got) < 2 {
		select {
		case msg := <-sub.Events():
			got = append(got, msg)
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for notifications")
		}
	}

	assert.Equal(t, &helpdesk.Notification{
		Kind: helpdesk.NotificationSupervisor, RequestID: "req-1", CallerIdentity: "+1",
		Question: "q?", SentAtMs: fixed.UnixMilli(),
	}, got[0])
	assert.Equal(t, &helpdesk.Notification{
		Kind: helpdesk.NotificationCustomer, CallerIdentity: "+1",
		Message: "Re: 'q?'\n\na", SentAtMs: fixed.UnixMilli(),
	}, got[1])
}

type failingNotifier struct {
	err   error
	calls int
}

func (f *failingNotifier) NotifySupervisorOfNewRequest(context.Context, string, string, string) error {
	f.calls++
	return f.err
}

func (f *failingNotifier) NotifyCustomerOfResolution(context.Context, string, string) error {
	f.calls++
	return f.err
}

func TestMulti(t *testing.T) {
	ctx := context.Background()
	errA := errors.New("publish failed")
	errB := errors.New("sms failed")

	t.Run("all succeed", func(t *testing.T) {
		a, b := &failingNotifier{}, &failingNotifier{}
		m := Multi{a, b}
		assert.NoError(t, m.NotifySupervisorOfNewRequest(ctx, "id", "q", "+1"))
		assert.NoError(t, m.NotifyCustomerOfResolution(ctx, "+1", "msg"))
		assert.Equal(t, 2, a.calls)
		assert.Equal(t, 2, b.calls)
	})

	t.Run("failures are joined and do not stop fan-out", func(t *testing.T) {
		a, ok, b := &failingNotifier{err: errA}, &failingNotifier{}, &failingNotifier{err: errB}
		m := Multi{a, ok, b}

		err := m.NotifyCustomerOfResolution(ctx, "+1", "msg")
		require.Error(t, err)
		assert.ErrorIs(t, err, errA)
		assert.ErrorIs(t, err, errB)
		assert.Equal(t, 1, ok.calls)
		assert.Equal(t, 1, b.calls)
	})

	t.Run("empty multi is a no-op", func(t *testing.T) {
		assert.NoError(t, Multi{}.NotifySupervisorOfNewRequest(ctx, "id", "q", "+1"))
	})
}
