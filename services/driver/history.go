package driver

import (
	"sync"

	"github.com/AminderM/Magic-33-sub001/internal/pkg/models"
)

// HistoryCapacity is the number of samples kept for display
const HistoryCapacity = 20

// History is a fixed size ring of recent samples
type History struct {
	mu    sync.RWMutex
	items []models.LocationSample
	next  int
	full  bool
}

// NewHistory creates a history holding up to capacity samples
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = HistoryCapacity
	}
	return &History{items: make([]models.LocationSample, capacity)}
}

// Add records a sample, evicting the oldest when full
func (h *History) Add(sample models.LocationSample) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.items[h.next] = sample
	h.next = (h.next + 1) % len(h.items)
	if h.next == 0 {
		h.full = true
	}
}

// Len returns the number of samples held
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.full {
		return len(h.items)
	}
	return h.next
}

// Recent returns the held samples, most recent first
func (h *History) Recent() []models.LocationSample {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := h.next
	if h.full {
		n = len(h.items)
	}

	out := make([]models.LocationSample, 0, n)
	for i := 1; i <= n; i++ {
		idx := (h.next - i + len(h.items)) % len(h.items)
		out = append(out, h.items[idx])
	}
	return out
}

// Latest returns the most recent sample
func (h *History) Latest() (models.LocationSample, bool) {
	recent := h.Recent()
	if len(recent) == 0 {
		return models.LocationSample{}, false
	}
	return recent[0], true
}
