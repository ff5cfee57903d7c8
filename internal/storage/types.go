package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// BroadcastRecord describes one publish attempt.
// Keep it compact and schema-stable.
type BroadcastRecord struct {
	ID      string    `json:"id"`
	At      time.Time `json:"at"`
	Trigger string    `json:"trigger"`
	Topic   string    `json:"topic"`
	Author  string    `json:"author"`
	// Timestamp is the message timestamp in Unix seconds.
	Timestamp uint64 `json:"timestamp"`
	Size      int    `json:"size"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	TookMS    int64  `json:"took_ms"`
}

// defaultRecent caps RecentBroadcasts when limit <= 0.
const defaultRecent = 50
