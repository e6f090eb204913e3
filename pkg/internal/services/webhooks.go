package services

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/voicedeskhq/voicedesk/pkg/internal/models"
)

// CallStore is the persistence collaborator of the event processor. The
// audit row and the field transition are written in one transaction so a
// half-applied webhook can never be observed.
type CallStore interface {
	FindCallByProviderID(id string) (models.Call, error)
	RecordEventWithTransition(callID uint, eventType string, payload map[string]any, fields map[string]any) error
}

const (
	OutcomeProcessed    = "processed"
	OutcomeIgnored      = "ignored"
	OutcomeCallNotFound = "call_not_found"
)

type WebhookOutcome struct {
	Status         string `json:"status"`
	Reason         string `json:"reason,omitempty"`
	EventType      string `json:"event_type,omitempty"`
	CallID         uint   `json:"call_id,omitempty"`
	ProviderCallID string `json:"provider_call_id,omitempty"`
}

// CallEventProcessor advances call state from inbound provider webhooks and
// emits exactly one broadcast per processed event. Events for the same
// provider call id are serialized so the audit row, the transition and the
// broadcast stay one atomic unit in channel order.
type CallEventProcessor struct {
	store      CallStore
	dispatcher *Dispatcher

	callLocks sync.Map
}

func NewCallEventProcessor(store CallStore, dispatcher *Dispatcher) *CallEventProcessor {
	return &CallEventProcessor{
		store:      store,
		dispatcher: dispatcher,
	}
}

func (v *CallEventProcessor) Process(eventType, providerCallID string, data map[string]any) (WebhookOutcome, error) {
	if len(eventType) == 0 || len(providerCallID) == 0 {
		log.Warn().Str("event", eventType).Msg("Ignored a provider webhook with missing fields...")
		return WebhookOutcome{Status: OutcomeIgnored, Reason: "missing_fields"}, nil
	}

	lock, _ := v.callLocks.LoadOrStore(providerCallID, &sync.Mutex{})
	lock.(*sync.Mutex).Lock()
	defer lock.(*sync.Mutex).Unlock()

	call, err := v.store.FindCallByProviderID(providerCallID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// The call was started outside this process, or the webhook
			// raced ahead of the local record. Expected, not an error.
			log.Info().Str("provider_call_id", providerCallID).Str("event", eventType).
				Msg("Provider webhook for a call we do not know about...")
			return WebhookOutcome{
				Status:         OutcomeCallNotFound,
				EventType:      eventType,
				ProviderCallID: providerCallID,
			}, nil
		}
		return WebhookOutcome{}, err
	}

	if data == nil {
		data = map[string]any{}
	}

	now := time.Now()
	fields := map[string]any{}
	pkg := models.StreamPackage{
		Type:      eventType,
		CallID:    providerCallID,
		Timestamp: now,
	}

	switch eventType {
	case "call_started":
		fields["status"] = models.CallStatusOngoing
		fields["start_at"] = now
		pkg.Data = data
	case "call_ended":
		fields["status"] = models.CallStatusEnded
		fields["end_at"] = now
		if ms, ok := asInt64(data["call_length_ms"]); ok {
			fields["duration_ms"] = ms
		}
		if url, ok := data["recording_url"].(string); ok {
			fields["recording_url"] = url
		}
		if transcript, ok := data["transcript"].(string); ok {
			fields["transcript"] = transcript
		}
		if analysis, ok := data["call_analysis"].(map[string]any); ok {
			fields["analysis"] = datatypes.JSONMap(analysis)
		}
		pkg.Data = data
	case "call_error", "call_failed":
		// Provider-reported failure is absorbing, whatever the prior state.
		if reason, ok := data["status"].(string); ok && reason == models.CallStatusUnknown {
			fields["status"] = models.CallStatusUnknown
		} else {
			fields["status"] = models.CallStatusFailed
		}
		pkg.Data = data
	case "agent_response", "user_speech":
		speaker, contentKey := "agent", "response"
		if eventType == "user_speech" {
			speaker, contentKey = "human", "transcript"
		}
		content, _ := data[contentKey].(string)
		isFinal := true
		if flag, ok := data["is_final"].(bool); ok {
			isFinal = flag
		}
		pkg.Type = "transcript_update"
		pkg.Data = map[string]any{
			"speaker":   speaker,
			"content":   content,
			"is_final":  isFinal,
			"timestamp": eventTimestamp(data, now),
		}
	case "tool_call":
		var tool struct {
			ToolCall struct {
				Function struct {
					Name      string `json:"name"`
					Arguments any    `json:"arguments"`
				} `json:"function"`
			} `json:"tool_call"`
			Result any `json:"result"`
		}
		models.FitStruct(data, &tool)
		pkg.Data = map[string]any{
			"function_name": tool.ToolCall.Function.Name,
			"arguments":     tool.ToolCall.Function.Arguments,
			"result":        tool.Result,
			"timestamp":     eventTimestamp(data, now),
		}
	case "speech_detected":
		speaker, ok := data["speaker"].(string)
		if !ok {
			speaker = "unknown"
		}
		detected := true
		if flag, ok := data["detected"].(bool); ok {
			detected = flag
		}
		pkg.Data = map[string]any{"speaker": speaker, "detected": detected}
	default:
		// Forward-compatible passthrough, tagged with the original type.
		pkg.Data = data
	}

	if err := v.store.RecordEventWithTransition(call.ID, eventType, data, fields); err != nil {
		log.Error().Err(err).Str("provider_call_id", providerCallID).Str("event", eventType).
			Msg("Unable to persist provider webhook...")
		return WebhookOutcome{}, err
	}

	v.dispatcher.Broadcast(call.ProviderCallID, pkg)

	// Terminal events retire the per-call lock entry so the map stays
	// bounded by the set of live calls.
	switch eventType {
	case "call_ended", "call_error", "call_failed":
		v.callLocks.Delete(providerCallID)
	}

	return WebhookOutcome{
		Status:         OutcomeProcessed,
		EventType:      eventType,
		CallID:         call.ID,
		ProviderCallID: providerCallID,
	}, nil
}

func eventTimestamp(data map[string]any, fallback time.Time) any {
	if stamp, ok := data["timestamp"]; ok {
		return stamp
	}
	return fallback
}

func asInt64(value any) (int64, bool) {
	switch typed := value.(type) {
	case float64:
		return int64(typed), true
	case int64:
		return typed, true
	case int:
		return int64(typed), true
	case string:
		if parsed, err := strconv.ParseInt(typed, 10, 64); err == nil {
			return parsed, true
		}
	}
	return 0, false
}
