package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketStore_CreateAssignsSequentialIDs(t *testing.T) {
	t.Parallel()

	store := NewTicketStore()

	first := store.Create("Alice", "Router offline", "", "")
	second := store.Create("Bob", "Slow wifi", "Archer AX50", "High")

	assert.Equal(t, "1", first.ID)
	assert.Equal(t, "2", second.ID)
	assert.Equal(t, "New", first.Status)
	assert.Equal(t, "-", first.Device)
	assert.Equal(t, "Medium", first.Priority)
	assert.Equal(t, "Archer AX50", second.Device)
	require.Len(t, first.Notes, 1)
	assert.Equal(t, "Router offline", first.Notes[0].Text)
}

func TestTicketStore_Update(t *testing.T) {
	t.Parallel()

	store := NewTicketStore()
	created := store.Create("Alice", "Router offline", "", "")

	updated, err := store.Update(created.ID, "Tried rebooting, no luck", "Netgear Nighthawk", "Escalated")
	require.NoError(t, err)

	assert.Equal(t, "Escalated", updated.Status)
	assert.Equal(t, "Netgear Nighthawk", updated.Device)
	require.Len(t, updated.Notes, 2)
	assert.Equal(t, "Tried rebooting, no luck", updated.Notes[1].Text)

	_, err = store.Update("999", "note", "", "")
	assert.ErrorContains(t, err, "not found")
}

func TestTicketStore_GetReturnsCopy(t *testing.T) {
	t.Parallel()

	store := NewTicketStore()
	created := store.Create("Alice", "Router offline", "", "")

	got, ok := store.Get(created.ID)
	require.True(t, ok)

	// Mutating the copy must not leak into the store.
	got.Status = "Closed"
	got.Notes[0].Text = "tampered"

	fresh, ok := store.Get(created.ID)
	require.True(t, ok)
	assert.Equal(t, "New", fresh.Status)
	assert.Equal(t, "Router offline", fresh.Notes[0].Text)

	_, ok = store.Get("999")
	assert.False(t, ok)
}
