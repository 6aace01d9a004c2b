// Package migrate imports a JSONL event log of account and device events
// into the hold store.
package migrate

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Device event types
const (
	DeviceClaimed = "DEVICE_CLAIMED"
	DeviceRetired = "DEVICE_RETIRED"
	DeviceDropped = "DEVICE_DROPPED"
)

const maxLineSize = 1 << 20

// AccountEvent is one ACCOUNT_* line of the event log
type AccountEvent struct {
	Type      string  `json:"type"`
	StreamID  string  `json:"streamId"`
	EventID   int     `json:"eventId"`
	AccountID string  `json:"accountId"`
	APIKey    *string `json:"apiKey"`
	Timestamp string  `json:"timestamp"`
}

// DeviceEvent is one DEVICE_* line of the event log
type DeviceEvent struct {
	Type      string  `json:"type"`
	StreamID  string  `json:"streamId"`
	EventID   int     `json:"eventId"`
	OrgID     string  `json:"orgId"`
	DeviceID  string  `json:"deviceId"`
	Label     string  `json:"label"`
	IMEI      string  `json:"imei"`
	ClaimedAt *string `json:"claimedAt"`
	RetiredAt *string `json:"retiredAt"`
	Timestamp string  `json:"timestamp"`
}

// EventLog holds the parsed events in file order
type EventLog struct {
	Accounts []AccountEvent
	Devices  []DeviceEvent
	Skipped  int
}

// ReadEvents parses a JSONL event log. Lines that are neither account nor
// device events are logged and counted as skipped; malformed JSON fails.
func ReadEvents(r io.Reader, logger zerolog.Logger) (*EventLog, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	out := &EventLog{}
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal([]byte(line), &head); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		switch {
		case strings.HasPrefix(head.Type, "DEVICE"):
			var event DeviceEvent
			if err := json.Unmarshal([]byte(line), &event); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			out.Devices = append(out.Devices, event)
		case strings.HasPrefix(head.Type, "ACCOUNT"):
			var event AccountEvent
			if err := json.Unmarshal([]byte(line), &event); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			out.Accounts = append(out.Accounts, event)
		default:
			logger.Warn().Int("line", lineNo).Str("type", head.Type).Msg("Unidentified event skipped")
			out.Skipped++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}
	return out, nil
}

// parseInstant parses an ISO-8601 instant such as 2019-05-02T08:15:30Z
func parseInstant(field string, value *string) (time.Time, error) {
	if value == nil || *value == "" {
		return time.Time{}, fmt.Errorf("%s is missing", field)
	}
	t, err := time.Parse(time.RFC3339Nano, *value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", field, err)
	}
	return t.UTC(), nil
}

// optionalInstant returns nil for a missing or unparseable timestamp
func optionalInstant(value string) *time.Time {
	t, err := parseInstant("timestamp", &value)
	if err != nil {
		return nil
	}
	return &t
}
