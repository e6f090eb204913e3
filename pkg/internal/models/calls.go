package models

import (
	"time"

	"gorm.io/datatypes"
)

type CallStatus = string

const (
	CallStatusRegistered = CallStatus("registered")
	CallStatusOngoing    = CallStatus("ongoing")
	CallStatusEnded      = CallStatus("ended")
	CallStatusUnknown    = CallStatus("unknown")
	CallStatusFailed     = CallStatus("failed")
)

type CallDirection = string

const (
	CallDirectionInbound  = CallDirection("inbound")
	CallDirectionOutbound = CallDirection("outbound")
)

// Call tracks one conversation on the voice provider. The row is created
// when the call is placed or registered; afterwards only the event
// processor advances its status.
type Call struct {
	BaseModel

	ProviderCallID string        `json:"provider_call_id" gorm:"uniqueIndex"`
	AgentID        string        `json:"agent_id"`
	FromNumber     string        `json:"from_number"`
	ToNumber       string        `json:"to_number"`
	Direction      CallDirection `json:"direction"`
	Status         CallStatus    `json:"status"`

	StartAt      *time.Time        `json:"start_at"`
	EndAt        *time.Time        `json:"end_at"`
	DurationMS   *int64            `json:"duration_ms"`
	RecordingURL *string           `json:"recording_url"`
	Transcript   *string           `json:"transcript"`
	Analysis     datatypes.JSONMap `json:"analysis"`

	Events []CallEvent `json:"events"`
}

// CallEvent is the immutable audit record of one inbound provider webhook.
type CallEvent struct {
	BaseModel

	Type    string            `json:"type"`
	Payload datatypes.JSONMap `json:"payload"`
	CallID  uint              `json:"call_id"`
	Call    Call              `json:"call"`
}
