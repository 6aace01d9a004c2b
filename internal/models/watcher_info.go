package models

import "time"

// WatcherInfo describes a stream subscriber process
type WatcherInfo struct {
	ID        string    `json:"id"`
	Version   string    `json:"version"`
	StartTime time.Time `json:"start_time"`
}

// Uptime returns the duration since the watcher started
func (w *WatcherInfo) Uptime() time.Duration {
	return time.Since(w.StartTime)
}

// NewWatcherInfo creates a new WatcherInfo with the current time as start time
func NewWatcherInfo(id, version string) *WatcherInfo {
	return &WatcherInfo{
		ID:        id,
		Version:   version,
		StartTime: time.Now(),
	}
}
