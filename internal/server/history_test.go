package server

import (
	"testing"

	"github.com/afroash/holdtrack/internal/models"
)

func event(id int64) models.HoldEvent {
	return models.HoldEvent{Action: models.HoldCreated, Hold: &models.Hold{ID: id}}
}

func TestEventHistory_Add(t *testing.T) {
	history := NewEventHistory(3)

	for i := int64(1); i <= 5; i++ {
		history.Add(event(i))
	}

	latest := history.Latest(0)
	if len(latest) != 3 {
		t.Fatalf("Expected 3 buffered events, got %d", len(latest))
	}
	if latest[0].Hold.ID != 3 || latest[2].Hold.ID != 5 {
		t.Errorf("Expected events 3..5 oldest first, got %d..%d", latest[0].Hold.ID, latest[2].Hold.ID)
	}

	stats := history.Stats()
	if stats.TotalEvents != 5 {
		t.Errorf("Expected 5 total events, got %d", stats.TotalEvents)
	}
	if stats.Buffered != 3 {
		t.Errorf("Expected 3 buffered, got %d", stats.Buffered)
	}
}

func TestEventHistory_LatestN(t *testing.T) {
	history := NewEventHistory(10)
	for i := int64(1); i <= 4; i++ {
		history.Add(event(i))
	}

	latest := history.Latest(2)
	if len(latest) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(latest))
	}
	if latest[0].Hold.ID != 3 || latest[1].Hold.ID != 4 {
		t.Errorf("Unexpected events: %d, %d", latest[0].Hold.ID, latest[1].Hold.ID)
	}

	if got := len(history.Latest(100)); got != 4 {
		t.Errorf("Expected 4 events, got %d", got)
	}
}

func TestEventHistory_ZeroCapacity(t *testing.T) {
	history := NewEventHistory(0)
	history.Add(event(1))

	if got := len(history.Latest(0)); got != 0 {
		t.Errorf("Expected no buffered events, got %d", got)
	}
	if history.Stats().TotalEvents != 1 {
		t.Error("Expected event to be counted")
	}
}
