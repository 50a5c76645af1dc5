package schemas

import (
	"encoding/json"
	"time"
)

// -- Browser Artifact Schemas --

// ConsoleLog represents a single entry from the browser's console.
type ConsoleLog struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
	Source    string    `json:"source,omitempty"`
	URL       string    `json:"url,omitempty"`
	Line      int64     `json:"line,omitempty"`
}

// BridgeCallKind distinguishes the two operations of the mocked host API.
type BridgeCallKind string

const (
	BridgeInvoke BridgeCallKind = "invoke"
	BridgeSend   BridgeCallKind = "send"
)

// BridgeCall is one call the page made against the mocked host API.
type BridgeCall struct {
	Seq     int             `json:"seq"`
	Kind    BridgeCallKind  `json:"kind"`
	Channel string          `json:"channel"`
	Args    json.RawMessage `json:"args,omitempty"`
	// Handled is false when the channel had no rule and the default was returned.
	Handled bool      `json:"handled"`
	At      time.Time `json:"at"`
}
