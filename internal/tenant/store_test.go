// ABOUTME: Tests for the workspace selection store.
// ABOUTME: Validates TTL expiry, LRU refresh on read, capacity eviction, and clear.

package tenant

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_GetMiss(t *testing.T) {
	store := NewSelectionStore(time.Hour, 100)
	defer store.Close()

	_, ok := store.Get("unknown")
	assert.False(t, ok)
}

func TestStore_SetGet(t *testing.T) {
	store := NewSelectionStore(time.Hour, 100)
	defer store.Close()

	store.Set("u1", "org-A", "ws-1")

	selection, ok := store.Get("u1")
	require.True(t, ok)
	assert.Equal(t, Selection{OrgID: "org-A", WorkspaceID: "ws-1"}, selection)
}

func TestStore_TTLExpiry(t *testing.T) {
	store := NewSelectionStore(10*time.Millisecond, 100)
	defer store.Close()

	store.Set("u1", "org-A", "ws-1")
	time.Sleep(20 * time.Millisecond)

	_, ok := store.Get("u1")
	assert.False(t, ok)
	assert.Equal(t, 0, store.Size(), "expired entry should be deleted on read")
}

func TestStore_ReadRefreshesRecency(t *testing.T) {
	store := NewSelectionStore(50*time.Millisecond, 100)
	defer store.Close()

	store.Set("u1", "org-A", "ws-1")

	// Keep reading past the original TTL; each read should push expiry out.
	for i := 0; i < 3; i++ {
		time.Sleep(30 * time.Millisecond)
		_, ok := store.Get("u1")
		require.True(t, ok, "read %d should refresh the entry", i)
	}
}

func TestStore_CapacityEviction(t *testing.T) {
	const maxSize = 20
	store := NewSelectionStore(time.Hour, maxSize)
	defer store.Close()

	for i := 0; i < maxSize; i++ {
		store.Set(fmt.Sprintf("u-%03d", i), "org-A", "ws-1")
		time.Sleep(time.Millisecond)
		assert.LessOrEqual(t, store.Size(), maxSize)
	}

	store.Set("u-new", "org-A", "ws-1")
	assert.Equal(t, maxSize-2+1, store.Size())

	_, ok := store.Get("u-000")
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = store.Get("u-new")
	assert.True(t, ok)
}

func TestStore_ReadSavesFromEviction(t *testing.T) {
	const maxSize = 10
	store := NewSelectionStore(time.Hour, maxSize)
	defer store.Close()

	for i := 0; i < maxSize; i++ {
		store.Set(fmt.Sprintf("u-%03d", i), "org-A", "ws-1")
		time.Sleep(time.Millisecond)
	}

	// u-000 is the oldest, but reading it makes it the most recent.
	_, ok := store.Get("u-000")
	require.True(t, ok)
	time.Sleep(time.Millisecond)

	// Eviction claims ceil(10 * 0.1) = 1 entry: now u-001, not u-000.
	store.Set("u-new", "org-A", "ws-1")

	_, ok = store.Get("u-000")
	assert.True(t, ok, "recently read entry should survive eviction")
	_, ok = store.Get("u-001")
	assert.False(t, ok, "oldest unread entry should be evicted instead")
}

func TestStore_Clear(t *testing.T) {
	store := NewSelectionStore(time.Hour, 100)
	defer store.Close()

	store.Set("u1", "org-A", "ws-1")
	store.Clear("u1")

	_, ok := store.Get("u1")
	assert.False(t, ok)

	// Clearing an absent subject is a no-op.
	store.Clear("u2")
}

func TestStore_Sweep(t *testing.T) {
	store := NewSelectionStore(10*time.Millisecond, 100)
	defer store.Close()

	store.Set("u1", "org-A", "ws-1")
	store.Set("u2", "org-B", "ws-2")
	time.Sleep(20 * time.Millisecond)
	store.Set("u3", "org-C", "ws-3")

	store.sweep()

	assert.Equal(t, 1, store.Size())
	_, ok := store.Get("u3")
	assert.True(t, ok)
}

func TestStore_CloseTwice(t *testing.T) {
	store := NewSelectionStore(time.Hour, 100)
	store.Close()
	store.Close()
}
