package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadsmith/agentgraph/memory"
	memstore "github.com/threadsmith/agentgraph/store/memory"
)

func TestSemantic_DeterministicKeyOverwrite(t *testing.T) {
	t.Parallel()

	store := memstore.NewSemantic()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "user1", "ticket_42", memory.Record{Content: "Ticket 42 status: New"}))
	require.NoError(t, store.Upsert(ctx, "user1", "ticket_42", memory.Record{Content: "Ticket 42 status: Resolved"}))

	rec, ok, err := store.Get(ctx, "user1", "ticket_42")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Ticket 42 status: Resolved", rec.Content)

	// Exactly one record under that key
	all, err := store.Search(ctx, "user1", "ticket", 10)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSemantic_NamespaceIsolation(t *testing.T) {
	t.Parallel()

	store := memstore.NewSemantic()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "user1", "k", memory.Record{Content: "user1 fact"}))

	_, ok, err := store.Get(ctx, "user2", "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEpisodic_RecencyBiasedSearch(t *testing.T) {
	t.Parallel()

	store := memstore.NewEpisodic()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.Put(ctx, "user1", "ep_old", memory.Record{
		Content:   "Customer tried rebooting the router",
		CreatedAt: now.AddDate(0, 0, -120),
	}))
	require.NoError(t, store.Put(ctx, "user1", "ep_new", memory.Record{
		Content:   "Customer tried rebooting the router",
		CreatedAt: now.Add(-time.Minute),
	}))

	results, err := store.Search(ctx, "user1", "rebooting router", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "ep_new", results[0].Key)
}

func TestPreferences_Upsert(t *testing.T) {
	t.Parallel()

	store := memstore.NewPreferences()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "user1", "tone", "casual"))
	require.NoError(t, store.Set(ctx, "user1", "tone", "formal"))

	value, ok, err := store.Get(ctx, "user1", "tone")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "formal", value)

	all, err := store.All(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"tone": "formal"}, all)
}

func TestStore_BundlesAllThree(t *testing.T) {
	t.Parallel()

	store := memstore.NewStore()
	assert.NotNil(t, store.Semantic)
	assert.NotNil(t, store.Episodic)
	assert.NotNil(t, store.Preferences)
}
