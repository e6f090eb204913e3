package models

import (
	"time"

	jsoniter "github.com/json-iterator/go"
)

// StreamPackage is the envelope of every frame pushed down a subscriber
// socket. Exactly one of CallID and SessionID is set, depending on which
// kind of channel the frame belongs to.
type StreamPackage struct {
	Type      string         `json:"type"`
	CallID    string         `json:"call_id,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Message   string         `json:"message,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

func (v StreamPackage) Marshal() []byte {
	data, _ := jsoniter.Marshal(v)
	return data
}

// ClientPacket is a frame sent upstream by a subscriber.
type ClientPacket struct {
	Type     string         `json:"type"`
	Field    *string        `json:"field,omitempty"`
	Content  string         `json:"content,omitempty"`
	Position map[string]any `json:"position,omitempty"`
}
