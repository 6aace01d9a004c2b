package models

import (
	"encoding/json"
	"time"
)

// MessageType represents the type of WebSocket message
type MessageType string

const (
	MessageTypeHoldEvent MessageType = "hold_event"
	MessageTypeHeartbeat MessageType = "heartbeat"
	MessageTypeAck       MessageType = "ack"
	MessageTypeError     MessageType = "error"
)

// HoldAction names the lifecycle transition carried by a hold event
type HoldAction string

const (
	HoldCreated  HoldAction = "created"
	HoldReleased HoldAction = "released"
	HoldReplaced HoldAction = "replaced"
	HoldAdjusted HoldAction = "adjusted"
	HoldDeleted  HoldAction = "deleted"
)

// Message is the envelope for all WebSocket communications
type Message struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage creates a new message with the given type and payload
func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      msgType,
		Payload:   payloadJSON,
		Timestamp: time.Now(),
	}, nil
}

// HoldEvent is the payload for MessageTypeHoldEvent
type HoldEvent struct {
	Action     HoldAction `json:"action"`
	DeviceID   string     `json:"deviceId"`
	Hold       *Hold      `json:"hold"`
	Previous   *Hold      `json:"previous,omitempty"`
	OccurredAt time.Time  `json:"occurredAt"`
}

// HeartbeatMessage is the payload for MessageTypeHeartbeat
type HeartbeatMessage struct {
	WatcherID string `json:"watcher_id"`
	Uptime    int64  `json:"uptime"`
	Received  int64  `json:"received"`
}

// AckMessage is the payload for MessageTypeAck
type AckMessage struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

// ErrorMessage is the payload for MessageTypeError
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// UnmarshalPayload unmarshals the message payload into the provided struct
func (m *Message) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(m.Payload, v)
}
