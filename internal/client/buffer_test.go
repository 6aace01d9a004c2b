package client

import (
	"sync"
	"testing"
	"time"

	"github.com/afroash/holdtrack/internal/models"
)

func testEvent(holdID int64) models.HoldEvent {
	return models.HoldEvent{
		Action:     models.HoldCreated,
		DeviceID:   "D1",
		Hold:       &models.Hold{ID: holdID, DeviceID: "D1", Label: "QWER0001"},
		OccurredAt: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestNewEventBuffer(t *testing.T) {
	buf := NewEventBuffer(100, true)

	if buf.Capacity() != 100 {
		t.Errorf("Capacity = %d, want 100", buf.Capacity())
	}
	if !buf.IsEmpty() {
		t.Error("New buffer should be empty")
	}
	if got := NewEventBuffer(0, true).Capacity(); got != 1 {
		t.Errorf("Capacity for 0 = %d, want 1", got)
	}
}

func TestEventBuffer_PopBatch(t *testing.T) {
	buf := NewEventBuffer(10, true)
	for i := int64(1); i <= 5; i++ {
		buf.Push(testEvent(i))
	}

	events := buf.PopBatch(3)
	if len(events) != 3 {
		t.Fatalf("PopBatch(3) returned %d events, want 3", len(events))
	}
	if events[0].Hold.ID != 1 || events[2].Hold.ID != 3 {
		t.Errorf("PopBatch order = %d..%d, want 1..3", events[0].Hold.ID, events[2].Hold.ID)
	}
	if buf.Size() != 2 {
		t.Errorf("Size after pop = %d, want 2", buf.Size())
	}

	rest := buf.PopBatch(10)
	if len(rest) != 2 {
		t.Errorf("PopBatch(10) returned %d events, want 2", len(rest))
	}
	if buf.PopBatch(1) != nil {
		t.Error("PopBatch on empty buffer should return nil")
	}
}

func TestEventBuffer_Peek(t *testing.T) {
	buf := NewEventBuffer(10, true)
	buf.Push(testEvent(1))
	buf.Push(testEvent(2))

	events := buf.Peek(5)
	if len(events) != 2 {
		t.Fatalf("Peek returned %d events, want 2", len(events))
	}
	if buf.Size() != 2 {
		t.Error("Peek should not remove events")
	}
}

func TestEventBuffer_DropOldest(t *testing.T) {
	buf := NewEventBuffer(3, true)
	for i := int64(1); i <= 5; i++ {
		if !buf.Push(testEvent(i)) {
			t.Errorf("Push(%d) should succeed in drop-oldest mode", i)
		}
	}

	events := buf.Peek(3)
	if events[0].Hold.ID != 3 {
		t.Errorf("Oldest event = %d, want 3", events[0].Hold.ID)
	}
	if stats := buf.Stats(); stats.TotalDropped != 2 || stats.TotalPushed != 5 {
		t.Errorf("Stats = %+v, want 2 dropped and 5 pushed", stats)
	}
}

func TestEventBuffer_DropNewest(t *testing.T) {
	buf := NewEventBuffer(2, false)
	buf.Push(testEvent(1))
	buf.Push(testEvent(2))

	if buf.Push(testEvent(3)) {
		t.Error("Push should fail when full in drop-newest mode")
	}
	if !buf.IsFull() {
		t.Error("Buffer should be full")
	}
	if events := buf.Peek(2); events[1].Hold.ID != 2 {
		t.Errorf("Newest event = %d, want 2", events[1].Hold.ID)
	}
}

func TestEventBuffer_ClearAndString(t *testing.T) {
	buf := NewEventBuffer(2, false)
	buf.Push(testEvent(1))
	buf.Push(testEvent(2))
	buf.Push(testEvent(3))

	if got, want := buf.String(), "EventBuffer[2/2, dropped: 1, mode: drop-newest]"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	buf.Clear()
	if !buf.IsEmpty() {
		t.Error("Buffer should be empty after Clear")
	}
	if stats := buf.Stats(); stats.TotalPushed != 0 || stats.HighWaterMark != 0 {
		t.Errorf("Stats after Clear = %+v, want zero", stats)
	}
}

func TestEventBuffer_ThreadSafety(t *testing.T) {
	buf := NewEventBuffer(1000, true)
	var wg sync.WaitGroup

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				buf.Push(testEvent(int64(i)))
			}
		}()
	}
	for r := 0; r < 2; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				buf.PopBatch(5)
				buf.Stats()
			}
		}()
	}
	wg.Wait()

	if stats := buf.Stats(); stats.TotalPushed != 1000 {
		t.Errorf("TotalPushed = %d, want 1000", stats.TotalPushed)
	}
}

func BenchmarkEventBuffer_Push(b *testing.B) {
	buf := NewEventBuffer(1000, true)
	event := testEvent(1)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Push(event)
	}
}
