package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewMessage(t *testing.T) {
	event := HoldEvent{
		Action:     HoldCreated,
		DeviceID:   "D1",
		Hold:       &Hold{ID: 1, DeviceID: "D1", Label: "QWER0001", Start: time.Now()},
		OccurredAt: time.Now(),
	}

	msg, err := NewMessage(MessageTypeHoldEvent, event)
	if err != nil {
		t.Fatalf("NewMessage failed: %v", err)
	}

	if msg.Type != MessageTypeHoldEvent {
		t.Errorf("Type = %v, want %v", msg.Type, MessageTypeHoldEvent)
	}
	if msg.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
	if len(msg.Payload) == 0 {
		t.Error("Payload should not be empty")
	}
}

func TestMessage_UnmarshalPayload(t *testing.T) {
	end := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	original := HoldEvent{
		Action:   HoldReleased,
		DeviceID: "D1",
		Hold: &Hold{
			ID:       7,
			DeviceID: "D1",
			Label:    "QWER0001",
			Start:    time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
			End:      &end,
		},
		OccurredAt: time.Date(2023, 1, 2, 0, 0, 1, 0, time.UTC),
	}

	msg, err := NewMessage(MessageTypeHoldEvent, original)
	if err != nil {
		t.Fatalf("NewMessage failed: %v", err)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var envelope Message
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	var decoded HoldEvent
	if err := envelope.UnmarshalPayload(&decoded); err != nil {
		t.Fatalf("UnmarshalPayload failed: %v", err)
	}

	if decoded.Action != HoldReleased {
		t.Errorf("Action = %v, want %v", decoded.Action, HoldReleased)
	}
	if decoded.Hold == nil || decoded.Hold.ID != 7 {
		t.Fatalf("Hold mismatch: %+v", decoded.Hold)
	}
	if decoded.Hold.End == nil || !decoded.Hold.End.Equal(end) {
		t.Errorf("End = %v, want %v", decoded.Hold.End, end)
	}
	if decoded.Previous != nil {
		t.Errorf("Previous = %+v, want nil", decoded.Previous)
	}
}

func TestMessage_UnmarshalPayload_Invalid(t *testing.T) {
	msg := &Message{Type: MessageTypeHeartbeat, Payload: json.RawMessage(`{"uptime":"x"}`)}

	var hb HeartbeatMessage
	if err := msg.UnmarshalPayload(&hb); err == nil {
		t.Error("expected error for mistyped payload")
	}
}
