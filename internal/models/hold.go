package models

import (
	"fmt"
	"sort"
	"time"
)

// LabelLength is the exact number of characters a station label carries
const LabelLength = 8

// Account owns zero or more devices
type Account struct {
	ID        string     `json:"id" db:"id"`
	APIKey    *string    `json:"apiKey,omitempty" db:"api_key"`
	CreatedAt *time.Time `json:"createdAt,omitempty" db:"created_at"`
}

// Device is a physical measurement device registered under an account
type Device struct {
	ID        string     `json:"id" db:"id"`
	AccountID string     `json:"accountId" db:"account_id"`
	CreatedAt *time.Time `json:"createdAt,omitempty" db:"created_at"`
}

// Hold is a device's time-bounded claim on a label and its station imei.
// A nil End marks the hold as active.
type Hold struct {
	ID       int64      `json:"id" db:"id"`
	DeviceID string     `json:"deviceId" db:"device_id"`
	Label    string     `json:"label" db:"label"`
	IMEI     *string    `json:"imei" db:"imei"`
	Start    time.Time  `json:"start" db:"start_at"`
	End      *time.Time `json:"end" db:"end_at"`
}

// IsActive reports whether the hold has not been closed yet
func (h *Hold) IsActive() bool {
	return h.End == nil
}

// EffectiveEnd returns the hold's end, or now when the hold is still active
func (h *Hold) EffectiveEnd(now time.Time) time.Time {
	if h.End == nil {
		return now
	}
	return *h.End
}

// Copy returns a deep copy of the Hold
func (h *Hold) Copy() *Hold {
	if h == nil {
		return nil
	}
	c := *h
	if h.IMEI != nil {
		imei := *h.IMEI
		c.IMEI = &imei
	}
	if h.End != nil {
		end := *h.End
		c.End = &end
	}
	return &c
}

func (h *Hold) String() string {
	end := "active"
	if h.End != nil {
		end = h.End.Format(time.RFC3339)
	}
	return fmt.Sprintf("Hold %d: device %s, label %s, %s -> %s",
		h.ID,
		h.DeviceID,
		h.Label,
		h.Start.Format(time.RFC3339),
		end)
}

// SortHoldsByStart returns a copy of holds ordered by ascending start
func SortHoldsByStart(holds []*Hold) []*Hold {
	sorted := make([]*Hold, len(holds))
	copy(sorted, holds)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})
	return sorted
}
