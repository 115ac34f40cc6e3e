// ABOUTME: Bounded TTL store mapping subject IDs to their chosen org/workspace pair.
// ABOUTME: Reads refresh recency (LRU); a background sweep bounds memory under low traffic.

package tenant

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Selection is a subject's chosen organisation and workspace.
type Selection struct {
	OrgID       string
	WorkspaceID string
}

// selectionEntry tracks a stored selection and its recency.
type selectionEntry struct {
	selection    Selection
	lastAccessed time.Time
}

// SelectionStore remembers which workspace each subject works in. It is
// keyed by subject ID, not token, so a selection survives token rotation.
// Entries expire after the TTL since last access; reads refresh recency so
// active users are least likely to be evicted. One instance exists per
// process and is not replicated, so a load balancer moving a user to
// another instance may re-prompt them for selection.
type SelectionStore struct {
	mu      sync.Mutex
	entries map[string]*selectionEntry
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// sweepInterval is how often the background sweep scans for expired entries.
// The sweep is hygiene only: Get already self-expires on read.
const sweepInterval = time.Hour

// NewSelectionStore creates a selection store with the given TTL and maximum
// size. A background goroutine periodically removes expired entries.
func NewSelectionStore(ttl time.Duration, maxSize int) *SelectionStore {
	s := &SelectionStore{
		entries: make(map[string]*selectionEntry),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

// Get returns the stored selection for a subject, or false if absent or
// expired. A valid hit refreshes the entry's recency before returning.
func (s *SelectionStore) Get(subjectID string) (Selection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[subjectID]
	if !ok {
		return Selection{}, false
	}
	if time.Since(entry.lastAccessed) > s.ttl {
		delete(s.entries, subjectID)
		return Selection{}, false
	}

	entry.lastAccessed = time.Now()
	return entry.selection, true
}

// Set stores a selection for a subject. If the store is at capacity, the
// oldest tenth of entries by recency is evicted first so the size bound
// is never exceeded.
func (s *SelectionStore) Set(subjectID, orgID, workspaceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[subjectID]; !exists && len(s.entries) >= s.maxSize {
		s.evictOldest(int(math.Ceil(float64(s.maxSize) * 0.1)))
	}

	s.entries[subjectID] = &selectionEntry{
		selection:    Selection{OrgID: orgID, WorkspaceID: workspaceID},
		lastAccessed: time.Now(),
	}
}

// Clear removes a subject's selection so the next resolution re-prompts
// (or re-auto-selects in the unambiguous case).
func (s *SelectionStore) Clear(subjectID string) {
	s.mu.Lock()
	delete(s.entries, subjectID)
	s.mu.Unlock()
}

// Size returns the number of stored selections.
func (s *SelectionStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// evictOldest removes the n least recently accessed entries. Must be called with mu held.
func (s *SelectionStore) evictOldest(n int) {
	type aged struct {
		subjectID    string
		lastAccessed time.Time
	}
	all := make([]aged, 0, len(s.entries))
	for subjectID, entry := range s.entries {
		all = append(all, aged{subjectID: subjectID, lastAccessed: entry.lastAccessed})
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].lastAccessed.Before(all[j].lastAccessed)
	})

	if n > len(all) {
		n = len(all)
	}
	for _, a := range all[:n] {
		delete(s.entries, a.subjectID)
	}
}

// sweepLoop runs in a background goroutine, periodically removing expired entries.
func (s *SelectionStore) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.done:
			return
		}
	}
}

// sweep removes all entries past the TTL.
func (s *SelectionStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for subjectID, entry := range s.entries {
		if now.Sub(entry.lastAccessed) > s.ttl {
			delete(s.entries, subjectID)
		}
	}
}

// Close stops the background sweep goroutine. It is safe to call multiple times.
func (s *SelectionStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		close(s.done)
		s.closed = true
	}
}
