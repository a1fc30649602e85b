package concept

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// DefaultGroup is the partition used when topology grouping is disabled or
// no group matches.
const DefaultGroup = ""

// History is the shared store of archived concepts, keyed by an opaque group
// id and then by history id. Inserts, removals, and snapshots are safe for
// concurrent use by all members; each individual operation is atomic.
type History struct {
	mu     sync.RWMutex
	nextID atomic.Int64
	groups map[string]map[int64]*Concept
}

// NewHistory creates an empty store. One History is constructed per ensemble
// run and passed by reference to every member.
func NewHistory() *History {
	return &History{groups: make(map[string]map[int64]*Concept)}
}

// Commit archives a pending snapshot, assigning its monotonic history id.
func (h *History) Commit(c *Concept, groupID string) int64 {
	id := h.nextID.Add(1)

	h.mu.Lock()
	c.mu.Lock()
	c.historyID = id
	c.mu.Unlock()
	g, ok := h.groups[groupID]
	if !ok {
		g = make(map[int64]*Concept)
		h.groups[groupID] = g
	}
	g[id] = c
	h.mu.Unlock()

	log.Debug().
		Int64("history_id", id).
		Int("source_slot", c.SourceSlot()).
		Str("group", groupID).
		Float64("error_at_warning", c.ErrorAtWarning()).
		Msg("concept archived")
	return id
}

// Take removes and returns the concept with the given id, or ok=false when a
// concurrent promotion already claimed it. At most one caller wins.
func (h *History) Take(groupID string, id int64) (*Concept, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	g, ok := h.groups[groupID]
	if !ok {
		return nil, false
	}
	c, ok := g[id]
	if !ok {
		return nil, false
	}
	delete(g, id)
	return c, true
}

// Snapshot returns a point-in-time copy of the concepts in a group. Later
// inserts and removals by other members do not affect the returned slice, so
// comparisons made during one warning window stay stable for its lifetime.
func (h *History) Snapshot(groupID string) []*Concept {
	h.mu.RLock()
	defer h.mu.RUnlock()

	g := h.groups[groupID]
	out := make([]*Concept, 0, len(g))
	for _, c := range g {
		out = append(out, c)
	}
	return out
}

// Size returns the total number of archived concepts across all groups.
func (h *History) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, g := range h.groups {
		n += len(g)
	}
	return n
}

// GroupSize returns the number of archived concepts in one group.
func (h *History) GroupSize(groupID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[groupID])
}
