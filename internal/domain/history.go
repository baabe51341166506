package domain

// History is a fixed-capacity FIFO log backed by a ring buffer: O(1) append
// with eviction of the oldest entry once full.
type History[T any] struct {
	items []T
	idx   int
	full  bool
}

// NewHistory creates a history with the given capacity (minimum 1).
func NewHistory[T any](capacity int) *History[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &History[T]{items: make([]T, capacity)}
}

// Append adds an entry, evicting the oldest if the history is at capacity.
func (h *History[T]) Append(item T) {
	h.items[h.idx] = item
	h.idx++
	if h.idx == len(h.items) {
		h.idx = 0
		h.full = true
	}
}

// Len returns the number of stored entries.
func (h *History[T]) Len() int {
	if h.full {
		return len(h.items)
	}
	return h.idx
}

// Cap returns the fixed capacity.
func (h *History[T]) Cap() int { return len(h.items) }

// Items returns entries in insertion order, oldest first.
func (h *History[T]) Items() []T {
	out := make([]T, 0, h.Len())
	if h.full {
		out = append(out, h.items[h.idx:]...)
	}
	out = append(out, h.items[:h.idx]...)
	return out
}

// Last returns the most recent entry, or the zero value if empty.
func (h *History[T]) Last() (T, bool) {
	var zero T
	if h.Len() == 0 {
		return zero, false
	}
	i := h.idx - 1
	if i < 0 {
		i = len(h.items) - 1
	}
	return h.items[i], true
}
