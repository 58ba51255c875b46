package model

// HistoryCapacity is the maximum number of recently-completed layer ids
// LayerHistory retains.
const HistoryCapacity = 10

// LayerHistory is the bounded, ordered sequence of most-recently-completed
// layer ids, newest first. It is owned exclusively by the votemap processor
// and mutated only on match_end (spec §3, §4.5).
type LayerHistory struct {
	entries []string
}

// NewLayerHistory builds a LayerHistory seeded with the given entries, which
// must already be ordered newest first, truncated to HistoryCapacity. Seed
// entries are prepended in reverse so the first argument ends up newest.
func NewLayerHistory(seed ...string) *LayerHistory {
	h := &LayerHistory{}
	for i := len(seed) - 1; i >= 0; i-- {
		h.Prepend(seed[i])
	}
	return h
}

// Prepend adds id as the newest entry, evicting the oldest if the history is
// already at capacity.
func (h *LayerHistory) Prepend(id string) {
	entries := append([]string{id}, h.entries...)
	if len(entries) > HistoryCapacity {
		entries = entries[:HistoryCapacity]
	}
	h.entries = entries
}

// Slice returns a copy of the history, newest first.
func (h *LayerHistory) Slice() []string {
	out := make([]string, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of entries currently retained.
func (h *LayerHistory) Len() int {
	return len(h.entries)
}

// Take returns the first n entries (most recent), or fewer if the history is
// shorter than n. A negative or zero n returns an empty slice.
func (h *LayerHistory) Take(n int) []string {
	if n <= 0 || len(h.entries) == 0 {
		return nil
	}
	if n > len(h.entries) {
		n = len(h.entries)
	}
	out := make([]string, n)
	copy(out, h.entries[:n])
	return out
}
