package helpdesk

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// transitionScript is a compare-and-set on request status.
// Returns -1 when the request is missing, 0 on status mismatch, 1 on success.
//
// KEYS: request hash, from-status set, to-status set
// ARGV: from, to, request id, resolved_at_ms, supervisor_answer
var transitionScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then
  return -1
end
if status ~= ARGV[1] then
  return 0
end
redis.call('HSET', KEYS[1], 'status', ARGV[2], 'resolved_at_ms', ARGV[4], 'supervisor_answer', ARGV[5])
redis.call('SREM', KEYS[2], ARGV[3])
redis.call('SADD', KEYS[3], ARGV[3])
return 1
`)

// resolveScript is transitionScript plus the knowledge entry append, as one unit.
//
// KEYS: request hash, pending set, resolved set, entry hash, knowledge order list
// ARGV: pending, resolved, request id, resolved_at_ms, supervisor_answer, entry id, entry field/value pairs...
var resolveScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then
  return -1
end
if status ~= ARGV[1] then
  return 0
end
redis.call('HSET', KEYS[1], 'status', ARGV[2], 'resolved_at_ms', ARGV[4], 'supervisor_answer', ARGV[5])
redis.call('SREM', KEYS[2], ARGV[3])
redis.call('SADD', KEYS[3], ARGV[3])
redis.call('HSET', KEYS[4], unpack(ARGV, 7))
redis.call('RPUSH', KEYS[5], ARGV[6])
return 1
`)

// Client provides instance-scoped Redis storage for help requests and
// knowledge entries. All keys and channels are namespaced with the instance
// name. The client is safe for concurrent use.
type Client struct {
	rdb          *redis.Client
	instanceName string
	logger       *zap.Logger
	now          func() time.Time
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the logger used for best-effort failures such as event publishing.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the clock used to stamp knowledge entries.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient creates a new helpdesk client for the specified instance.
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string, opts ...ClientOption) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	c := &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
		logger:       zap.NewNop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Connect creates a client and pings Redis with exponential backoff until it
// answers or maxRetries is exhausted. The client is closed on failure.
func Connect(ctx context.Context, redisOpts *redis.Options, instanceName string, maxRetries uint64, opts ...ClientOption) (*Client, error) {
	client, err := NewClient(redisOpts, instanceName, opts...)
	if err != nil {
		return nil, err
	}

	backoff := retry.WithMaxRetries(maxRetries, retry.NewExponential(250*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := client.Ping(ctx); err != nil {
			client.logger.Warn("redis not reachable, retrying",
				zap.String("addr", redisOpts.Addr), zap.Error(err))
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("redis not reachable at %s: %w", redisOpts.Addr, err)
	}

	return client, nil
}

// InstanceName returns the namespace this client writes to.
func (c *Client) InstanceName() string {
	return c.instanceName
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// CreateRequest stores a new help request and publishes a creation event.
// Assigns a UUID when r.ID is empty and writes it back to r.
// The hash, timeline, and status index are written in one MULTI/EXEC.
func (c *Client) CreateRequest(ctx context.Context, r *HelpRequest) (string, error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}

	if err := r.Validate(); err != nil {
		return "", fmt.Errorf("invalid request: %w", err)
	}

	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, RequestKey(c.instanceName, r.ID), RequestToHash(r))
		pipe.ZAdd(ctx, RequestTimelineKey(c.instanceName), redis.Z{
			Score:  float64(r.CreatedAtMs),
			Member: r.ID,
		})
		pipe.SAdd(ctx, StatusIndexKey(c.instanceName, r.Status), r.ID)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to write request to Redis: %w", err)
	}

	copied := *r
	c.publishRequestEvent(ctx, &RequestEvent{
		Type:      EventRequestCreated,
		RequestID: r.ID,
		Status:    r.Status,
		AtMs:      r.CreatedAtMs,
		Request:   &copied,
	})

	return r.ID, nil
}

// GetRequest retrieves a help request by ID.
// Returns an error wrapping ErrNotFound if the request doesn't exist.
func (c *Client) GetRequest(ctx context.Context, requestID string) (*HelpRequest, error) {
	hashData, err := c.rdb.HGetAll(ctx, RequestKey(c.instanceName, requestID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read request from Redis: %w", err)
	}

	// HGetAll returns an empty map for non-existent keys
	if len(hashData) == 0 {
		return nil, fmt.Errorf("request %s: %w", requestID, ErrNotFound)
	}

	request, err := HashToRequest(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize request %s: %w", requestID, err)
	}

	return request, nil
}

// ListByStatus returns every request in the given status, oldest first.
func (c *Client) ListByStatus(ctx context.Context, status Status) ([]*HelpRequest, error) {
	if err := status.Validate(); err != nil {
		return nil, err
	}

	ids, err := c.rdb.SMembers(ctx, StatusIndexKey(c.instanceName, status)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s index: %w", status, err)
	}

	requests, err := c.fetchRequests(ctx, ids)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(requests, func(i, j int) bool {
		return requests[i].CreatedAtMs < requests[j].CreatedAtMs
	})
	return requests, nil
}

// ListAll returns every request, oldest first.
func (c *Client) ListAll(ctx context.Context) ([]*HelpRequest, error) {
	ids, err := c.rdb.ZRange(ctx, RequestTimelineKey(c.instanceName), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read request timeline: %w", err)
	}
	return c.fetchRequests(ctx, ids)
}

// fetchRequests loads request hashes in one pipeline, preserving the order of ids.
// IDs whose hash has disappeared are skipped.
func (c *Client) fetchRequests(ctx context.Context, ids []string) ([]*HelpRequest, error) {
	if len(ids) == 0 {
		return []*HelpRequest{}, nil
	}

	pipe := c.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, RequestKey(c.instanceName, id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to read requests from Redis: %w", err)
	}

	requests := make([]*HelpRequest, 0, len(ids))
	for i, cmd := range cmds {
		hashData := cmd.Val()
		if len(hashData) == 0 {
			continue
		}
		request, err := HashToRequest(hashData)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize request %s: %w", ids[i], err)
		}
		requests = append(requests, request)
	}
	return requests, nil
}

// Transition atomically moves a request from one status to another, writing
// the resolution fields in the same step. Returns an error wrapping
// ErrNotFound if the request is missing, or ErrTransitionConflict if its
// current status is not from.
func (c *Client) Transition(ctx context.Context, requestID string, from, to Status, fields TransitionFields) error {
	if err := to.Validate(); err != nil {
		return err
	}

	keys := []string{
		RequestKey(c.instanceName, requestID),
		StatusIndexKey(c.instanceName, from),
		StatusIndexKey(c.instanceName, to),
	}
	result, err := transitionScript.Run(ctx, c.rdb, keys,
		string(from), string(to), requestID, fields.ResolvedAtMs, fields.SupervisorAnswer).Int()
	if err != nil {
		return fmt.Errorf("failed to transition request %s: %w", requestID, err)
	}

	if err := scriptOutcome(requestID, from, result); err != nil {
		return err
	}

	c.publishRequestEvent(ctx, &RequestEvent{
		Type:      EventTypeForStatus(to),
		RequestID: requestID,
		Status:    to,
		AtMs:      fields.ResolvedAtMs,
	})
	return nil
}

// ResolveWithEntry resolves a pending request and appends its knowledge entry
// in a single atomic script. Assigns entry.ID and entry.CreatedAtMs when unset.
// Returns the same errors as Transition; on conflict nothing is written.
func (c *Client) ResolveWithEntry(ctx context.Context, requestID, answer string, resolvedAtMs int64, entry *KnowledgeEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAtMs == 0 {
		entry.CreatedAtMs = resolvedAtMs
	}
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid knowledge entry: %w", err)
	}

	keys := []string{
		RequestKey(c.instanceName, requestID),
		StatusIndexKey(c.instanceName, StatusPending),
		StatusIndexKey(c.instanceName, StatusResolved),
		KnowledgeKey(c.instanceName, entry.ID),
		KnowledgeOrderKey(c.instanceName),
	}
	args := []interface{}{
		string(StatusPending), string(StatusResolved), requestID, resolvedAtMs, answer, entry.ID,
	}
	args = append(args, hashArgs(EntryToHash(entry), entryFields)...)

	result, err := resolveScript.Run(ctx, c.rdb, keys, args...).Int()
	if err != nil {
		return fmt.Errorf("failed to resolve request %s: %w", requestID, err)
	}

	if err := scriptOutcome(requestID, StatusPending, result); err != nil {
		return err
	}

	c.publishRequestEvent(ctx, &RequestEvent{
		Type:      EventRequestResolved,
		RequestID: requestID,
		Status:    StatusResolved,
		AtMs:      resolvedAtMs,
	})
	return nil
}

// scriptOutcome maps a CAS script result to the store sentinels.
func scriptOutcome(requestID string, from Status, result int) error {
	switch result {
	case 1:
		return nil
	case -1:
		return fmt.Errorf("request %s: %w", requestID, ErrNotFound)
	default:
		return fmt.Errorf("request %s is no longer %s: %w", requestID, from, ErrTransitionConflict)
	}
}

// AddEntry appends a knowledge entry and returns its ID.
func (c *Client) AddEntry(ctx context.Context, question, answer, sourceRequestID string) (string, error) {
	entry := &KnowledgeEntry{
		ID:                   uuid.New().String(),
		Question:             question,
		Answer:               answer,
		LearnedFromRequestID: sourceRequestID,
		CreatedAtMs:          c.now().UnixMilli(),
	}
	if err := entry.Validate(); err != nil {
		return "", fmt.Errorf("invalid knowledge entry: %w", err)
	}

	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, KnowledgeKey(c.instanceName, entry.ID), EntryToHash(entry))
		pipe.RPush(ctx, KnowledgeOrderKey(c.instanceName), entry.ID)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to write knowledge entry to Redis: %w", err)
	}

	return entry.ID, nil
}

// ListEntries returns every knowledge entry in insertion order.
func (c *Client) ListEntries(ctx context.Context) ([]*KnowledgeEntry, error) {
	ids, err := c.rdb.LRange(ctx, KnowledgeOrderKey(c.instanceName), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge order: %w", err)
	}
	if len(ids) == 0 {
		return []*KnowledgeEntry{}, nil
	}

	pipe := c.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, KnowledgeKey(c.instanceName, id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to read knowledge entries from Redis: %w", err)
	}

	entries := make([]*KnowledgeEntry, 0, len(ids))
	for i, cmd := range cmds {
		hashData := cmd.Val()
		if len(hashData) == 0 {
			continue
		}
		entry, err := HashToEntry(hashData)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize knowledge entry %s: %w", ids[i], err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ScanRequests returns the IDs of all requests whose ID starts with prefix.
// Uses SCAN so large instances don't block the server.
func (c *Client) ScanRequests(ctx context.Context, prefix string) ([]string, error) {
	keyPrefix := RequestKeyPrefix(c.instanceName)
	iter := c.rdb.Scan(ctx, 0, keyPrefix+prefix+"*", 0).Iterator()

	var ids []string
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), keyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan requests: %w", err)
	}

	sort.Strings(ids)
	return ids, nil
}

// PublishNotification publishes a simulated notification for observers.
func (c *Client) PublishNotification(ctx context.Context, n *Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	if err := c.rdb.Publish(ctx, NotificationsChannel(c.instanceName), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// publishRequestEvent publishes a lifecycle event. The write it describes has
// already committed, so failures are logged and not returned.
func (c *Client) publishRequestEvent(ctx context.Context, event *RequestEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		c.logger.Warn("failed to marshal request event", zap.String("request_id", event.RequestID), zap.Error(err))
		return
	}

	if err := c.rdb.Publish(ctx, RequestEventsChannel(c.instanceName), payload).Err(); err != nil {
		c.logger.Warn("failed to publish request event",
			zap.String("request_id", event.RequestID),
			zap.String("event_type", event.Type),
			zap.Error(err))
	}
}

// Subscription represents an active Pub/Sub subscription.
// Caller must call Close() when done to clean up resources.
type Subscription[T any] struct {
	events <-chan *T
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of decoded messages.
// The channel is closed when the subscription is closed or the context is cancelled.
func (s *Subscription[T]) Events() <-chan *T {
	return s.events
}

// Errors returns the channel of non-fatal decode errors.
// The subscription continues after errors; bad messages are skipped.
func (s *Subscription[T]) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Safe to call multiple times. Implements io.Closer.
func (s *Subscription[T]) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeRequestEvents subscribes to request lifecycle events for this instance.
func (c *Client) SubscribeRequestEvents(ctx context.Context) (*Subscription[RequestEvent], error) {
	return subscribe[RequestEvent](ctx, c.rdb, RequestEventsChannel(c.instanceName))
}

// SubscribeNotifications subscribes to simulated notifications for this instance.
func (c *Client) SubscribeNotifications(ctx context.Context) (*Subscription[Notification], error) {
	return subscribe[Notification](ctx, c.rdb, NotificationsChannel(c.instanceName))
}

// subscribe starts a goroutine decoding JSON messages from channel.
// Events are delivered on a buffered channel (size 10); Redis Pub/Sub is
// at-most-once, so slow subscribers may miss messages.
func subscribe[T any](ctx context.Context, rdb *redis.Client, channel string) (*Subscription[T], error) {
	pubsub := rdb.Subscribe(ctx, channel)

	// Wait for the subscription to be confirmed so no message published after
	// this call returns is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	eventsChan := make(chan *T, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var event T
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal message on %s: %w", channel, err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &event:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription[T]{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}
