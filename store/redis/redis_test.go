package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadsmith/agentgraph/memory"
)

func TestSemanticStore(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	store := NewSemanticStore(Options{Addr: mr.Addr()})
	defer store.Close()

	ctx := context.Background()

	// Upsert then read back
	err = store.Upsert(ctx, "user1", "ticket_42", memory.Record{Content: "Ticket 42 status: New"})
	require.NoError(t, err)

	rec, ok, err := store.Get(ctx, "user1", "ticket_42")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Ticket 42 status: New", rec.Content)
	assert.Equal(t, memory.KindSemantic, rec.Kind)
	assert.Equal(t, "ticket_42", rec.Key)

	// Second write under the same key overwrites in place
	err = store.Upsert(ctx, "user1", "ticket_42", memory.Record{Content: "Ticket 42 status: Resolved"})
	require.NoError(t, err)

	rec, ok, err = store.Get(ctx, "user1", "ticket_42")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Ticket 42 status: Resolved", rec.Content)

	results, err := store.Search(ctx, "user1", "ticket status", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	// Missing key
	_, ok, err = store.Get(ctx, "user1", "ticket_404")
	require.NoError(t, err)
	assert.False(t, ok)

	// Foreign namespace sees nothing
	results, err = store.Search(ctx, "user2", "ticket", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSemanticStore_SearchRanksByRelevance(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	store := NewSemanticStore(Options{Addr: mr.Addr()})
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, "u", "device_kindle", memory.Record{Content: "Customer has a Kindle Paperwhite"}))
	require.NoError(t, store.Upsert(ctx, "u", "customer_alice", memory.Record{Content: "Customer name: Alice"}))

	results, err := store.Search(ctx, "u", "kindle paperwhite battery", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "device_kindle", results[0].Key)
}

func TestPreferenceStore(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	store := NewPreferenceStore(Options{Addr: mr.Addr()})
	defer store.Close()

	ctx := context.Background()

	_, ok, err := store.Get(ctx, "user1", "tone")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "user1", "tone", "casual"))
	require.NoError(t, store.Set(ctx, "user1", "contact", "email"))
	require.NoError(t, store.Set(ctx, "user1", "tone", "formal"))

	value, ok, err := store.Get(ctx, "user1", "tone")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "formal", value)

	all, err := store.All(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"tone": "formal", "contact": "email"}, all)
}
