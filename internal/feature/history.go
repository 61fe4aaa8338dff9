package feature

import "github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/domain"

// HistoryCapacity bounds the per-key tick history. FIFO eviction on overflow.
const HistoryCapacity = 100

// history is a fixed-capacity ring of ticks for one market key, ordered by
// arrival. Never reordered, never unbounded. Not safe for concurrent use;
// the engine serializes access.
type history struct {
	buf   []domain.Tick
	head  int // index of the oldest tick
	count int
}

func newHistory(capacity int) *history {
	if capacity <= 0 {
		capacity = HistoryCapacity
	}
	return &history{buf: make([]domain.Tick, capacity)}
}

// push appends a tick, evicting the oldest when full.
func (h *history) push(t domain.Tick) {
	if h.count < len(h.buf) {
		h.buf[(h.head+h.count)%len(h.buf)] = t
		h.count++
		return
	}
	// Full: overwrite the oldest slot and advance head.
	h.buf[h.head] = t
	h.head = (h.head + 1) % len(h.buf)
}

// len returns the number of retained ticks.
func (h *history) len() int {
	return h.count
}

// at returns the i-th retained tick, 0 = oldest.
func (h *history) at(i int) domain.Tick {
	return h.buf[(h.head+i)%len(h.buf)]
}

// last returns the n most recent ticks in arrival order. If fewer than n
// are retained, all of them are returned.
func (h *history) last(n int) []domain.Tick {
	if n > h.count {
		n = h.count
	}
	out := make([]domain.Tick, n)
	for i := 0; i < n; i++ {
		out[i] = h.at(h.count - n + i)
	}
	return out
}

// window returns all retained ticks with TimestampMs >= cutoff, in arrival
// order. History is time-ascending, so this is a suffix.
func (h *history) window(cutoffMs int64) []domain.Tick {
	// Find the first index inside the window.
	start := h.count
	for i := 0; i < h.count; i++ {
		if h.at(i).TimestampMs >= cutoffMs {
			start = i
			break
		}
	}
	out := make([]domain.Tick, 0, h.count-start)
	for i := start; i < h.count; i++ {
		out = append(out, h.at(i))
	}
	return out
}
