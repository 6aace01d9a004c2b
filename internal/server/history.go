package server

import (
	"sync"

	"github.com/afroash/holdtrack/internal/models"
)

// EventHistory is a bounded ring of recent hold events replayed to new watchers
type EventHistory struct {
	capacity    int
	events      []models.HoldEvent
	mutex       sync.RWMutex
	totalEvents int64
}

// HistoryStats contains statistics about the event history
type HistoryStats struct {
	Capacity    int   `json:"capacity"`
	Buffered    int   `json:"buffered"`
	TotalEvents int64 `json:"total_events"`
}

// NewEventHistory creates a history keeping at most capacity events.
// A capacity of zero disables replay.
func NewEventHistory(capacity int) *EventHistory {
	if capacity < 0 {
		capacity = 0
	}
	return &EventHistory{
		capacity: capacity,
		events:   make([]models.HoldEvent, 0, capacity),
	}
}

// Add appends an event, evicting the oldest when full
func (h *EventHistory) Add(event models.HoldEvent) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.totalEvents++
	if h.capacity == 0 {
		return
	}
	if len(h.events) >= h.capacity {
		h.events = h.events[1:] // Remove oldest
	}
	h.events = append(h.events, event)
}

// Latest returns up to n most recent events, oldest first.
// n <= 0 returns everything buffered.
func (h *EventHistory) Latest(n int) []models.HoldEvent {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	start := 0
	if n > 0 && len(h.events) > n {
		start = len(h.events) - n
	}
	result := make([]models.HoldEvent, len(h.events)-start)
	copy(result, h.events[start:])
	return result
}

// Stats returns statistics about the history
func (h *EventHistory) Stats() HistoryStats {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return HistoryStats{
		Capacity:    h.capacity,
		Buffered:    len(h.events),
		TotalEvents: h.totalEvents,
	}
}
