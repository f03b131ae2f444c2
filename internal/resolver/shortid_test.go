package resolver

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/dyluth/frontdesk/pkg/helpdesk"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, store *helpdesk.MemoryStore, ids ...string) {
	t.Helper()
	for _, id := range ids {
		_, err := store.CreateRequest(context.Background(), &helpdesk.HelpRequest{
			ID: id, Question: "q", CallerIdentity: "+1", Status: helpdesk.StatusPending, CreatedAtMs: 1,
		})
		require.NoError(t, err)
	}
}

func TestResolveRequestID(t *testing.T) {
	ctx := context.Background()
	store := helpdesk.NewMemoryStore(nil)
	seed(t, store,
		"abcdef01-0000-4000-8000-000000000001",
		"abcdef02-0000-4000-8000-000000000002",
		"12345678-0000-4000-8000-000000000003",
	)

	t.Run("full uuid", func(t *testing.T) {
		id, err := ResolveRequestID(ctx, store, "12345678-0000-4000-8000-000000000003")
		require.NoError(t, err)
		assert.Equal(t, "12345678-0000-4000-8000-000000000003", id)
	})

	t.Run("full uuid that does not exist", func(t *testing.T) {
		_, err := ResolveRequestID(ctx, store, uuid.New().String())
		assert.True(t, IsNotFoundError(err))
	})

	t.Run("unique prefix", func(t *testing.T) {
		id, err := ResolveRequestID(ctx, store, "123456")
		require.NoError(t, err)
		assert.Equal(t, "12345678-0000-4000-8000-000000000003", id)
	})

	t.Run("prefix is case insensitive", func(t *testing.T) {
		id, err := ResolveRequestID(ctx, store, "ABCDEF01")
		require.NoError(t, err)
		assert.Equal(t, "abcdef01-0000-4000-8000-000000000001", id)
	})

	t.Run("ambiguous prefix", func(t *testing.T) {
		_, err := ResolveRequestID(ctx, store, "abcdef")
		require.Error(t, err)
		assert.True(t, IsAmbiguousError(err))
		var ambiguous *AmbiguousError
		require.ErrorAs(t, err, &ambiguous)
		assert.Len(t, ambiguous.Matches, 2)
	})

	t.Run("no match", func(t *testing.T) {
		_, err := ResolveRequestID(ctx, store, "ffffff")
		assert.True(t, IsNotFoundError(err))
	})

	t.Run("too short", func(t *testing.T) {
		_, err := ResolveRequestID(ctx, store, "abc")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least 6 characters")
	})
}

func TestFormatAmbiguousError(t *testing.T) {
	t.Run("lists all matches", func(t *testing.T) {
		msg := FormatAmbiguousError(&AmbiguousError{ShortID: "abcdef", Matches: []string{"abcdef-1", "abcdef-2"}})
		assert.Contains(t, msg, "matches 2 help requests")
		assert.Contains(t, msg, "  abcdef-1\n")
		assert.NotContains(t, msg, "more")
	})

	t.Run("truncates after ten", func(t *testing.T) {
		matches := make([]string, 13)
		for i := range matches {
			matches[i] = fmt.Sprintf("abcdef-%02d", i)
		}
		msg := FormatAmbiguousError(&AmbiguousError{ShortID: "abcdef", Matches: matches})
		assert.Equal(t, 10, strings.Count(msg, "  abcdef-"))
		assert.Contains(t, msg, "...and 3 more")
	})
}
