//go:build integration

package helpdesk

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container for testing.
func setupRedis(t *testing.T) (string, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cleanup := func() {
		if err := redisC.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	}

	return fmt.Sprintf("redis://%s:%s", host, port.Port()), cleanup
}

// TestIntegration_ResolveRaceAgainstRealRedis runs the Lua scripts against a
// real server, where EVALSHA/EVAL fallback and script caching are exercised.
func TestIntegration_ResolveRaceAgainstRealRedis(t *testing.T) {
	redisURL, cleanup := setupRedis(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("Failed to parse Redis URL: %v", err)
	}

	client, err := Connect(ctx, opts, "integration", 5)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	id, err := client.CreateRequest(ctx, &HelpRequest{
		Question:       "Do you take walk-ins?",
		CallerIdentity: "+15550100",
		Status:         StatusPending,
		CreatedAtMs:    time.Now().UnixMilli(),
	})
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	resolved, timedOut := 0, 0
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			entry := &KnowledgeEntry{Question: "walk ins", Answer: "Yes", LearnedFromRequestID: id}
			if client.ResolveWithEntry(ctx, id, "Yes", time.Now().UnixMilli(), entry) == nil {
				mu.Lock()
				resolved++
				mu.Unlock()
			}
		}()
		go func() {
			defer wg.Done()
			fields := TransitionFields{ResolvedAtMs: time.Now().UnixMilli()}
			if client.Transition(ctx, id, StatusPending, StatusUnresolved, fields) == nil {
				mu.Lock()
				timedOut++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if resolved+timedOut != 1 {
		t.Fatalf("expected exactly one winning transition, got %d resolved and %d timed out", resolved, timedOut)
	}

	entries, err := client.ListEntries(ctx)
	if err != nil {
		t.Fatalf("Failed to list entries: %v", err)
	}
	if len(entries) != resolved {
		t.Fatalf("expected %d knowledge entries, got %d", resolved, len(entries))
	}
}
