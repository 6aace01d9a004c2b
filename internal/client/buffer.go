package client

import (
	"fmt"
	"sync"
	"time"

	"github.com/afroash/holdtrack/internal/models"
)

// EventBuffer is a thread-safe FIFO of hold events received from the stream.
// It decouples the websocket read loop from slower consumers.
type EventBuffer struct {
	events     []models.HoldEvent
	capacity   int
	dropOldest bool
	mutex      sync.RWMutex
	stats      BufferStats
}

// BufferStats tracks buffer usage statistics
type BufferStats struct {
	TotalPushed   int64
	TotalDropped  int64
	HighWaterMark int
	LastPushTime  time.Time
	LastDropTime  time.Time
}

// NewEventBuffer creates a new event buffer with given capacity
func NewEventBuffer(capacity int, dropOldest bool) *EventBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &EventBuffer{
		events:     make([]models.HoldEvent, 0, capacity),
		capacity:   capacity,
		dropOldest: dropOldest,
	}
}

// Push adds an event to the buffer.
// Returns false if the event was dropped (full and dropOldest=false).
func (b *EventBuffer) Push(event models.HoldEvent) bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	now := time.Now()
	if len(b.events) >= b.capacity {
		b.stats.TotalDropped++
		b.stats.LastDropTime = now
		if !b.dropOldest {
			return false
		}
		b.events = b.events[1:]
	}
	b.events = append(b.events, event)
	b.stats.TotalPushed++
	b.stats.LastPushTime = now
	b.stats.HighWaterMark = max(b.stats.HighWaterMark, len(b.events))
	return true
}

// PopBatch removes and returns up to n events, oldest first
func (b *EventBuffer) PopBatch(n int) []models.HoldEvent {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	count := min(n, len(b.events))
	if count <= 0 {
		return nil
	}
	out := make([]models.HoldEvent, count)
	copy(out, b.events[:count])
	b.events = b.events[count:]
	return out
}

// Peek returns up to n events without removing them
func (b *EventBuffer) Peek(n int) []models.HoldEvent {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	count := min(n, len(b.events))
	if count <= 0 {
		return nil
	}
	out := make([]models.HoldEvent, count)
	copy(out, b.events[:count])
	return out
}

// Size returns the number of buffered events
func (b *EventBuffer) Size() int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return len(b.events)
}

func (b *EventBuffer) IsFull() bool {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return len(b.events) >= b.capacity
}

func (b *EventBuffer) IsEmpty() bool {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return len(b.events) == 0
}

// Clear drops all buffered events and resets counters
func (b *EventBuffer) Clear() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.events = make([]models.HoldEvent, 0, b.capacity)
	b.stats = BufferStats{}
}

// Capacity returns the maximum capacity of the buffer
func (b *EventBuffer) Capacity() int {
	return b.capacity
}

// Stats returns a copy of current buffer statistics
func (b *EventBuffer) Stats() BufferStats {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return b.stats
}

func (b *EventBuffer) String() string {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	mode := "drop-newest"
	if b.dropOldest {
		mode = "drop-oldest"
	}
	return fmt.Sprintf("EventBuffer[%d/%d, dropped: %d, mode: %s]",
		len(b.events), b.capacity, b.stats.TotalDropped, mode)
}
