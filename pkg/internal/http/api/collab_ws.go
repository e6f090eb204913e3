package api

import (
	"fmt"
	"time"

	"github.com/gofiber/contrib/websocket"
	jsoniter "github.com/json-iterator/go"

	"github.com/voicedeskhq/voicedesk/pkg/internal/models"
	"github.com/voicedeskhq/voicedesk/pkg/internal/services"
)

// collabGateway serves collaborative editing sessions with live presence.
func collabGateway(c *websocket.Conn) {
	sessionID := c.Params("sessionId")
	userID := c.Query("user_id", "anonymous")

	var userInfo map[string]any
	if raw := c.Query("user_info"); len(raw) > 0 {
		_ = jsoniter.Unmarshal([]byte(raw), &userInfo)
	}

	// Presence registration happens before any client input is read, so the
	// join broadcast and the snapshot reply are ordered ahead of everything
	// the new user sends.
	services.Registry.Subscribe(sessionID, userID, c)
	services.Presence.OnConnect(sessionID, userID, userInfo)

	// On the way out the socket leaves the registry first, so the farewell
	// broadcast cannot be delivered to the user who is already gone.
	defer func() {
		services.Registry.Unsubscribe(sessionID, userID)
		services.Presence.OnDisconnect(sessionID, userID)
	}()

	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			break
		}
		packet, err := decodeClientPacket(raw)
		if err != nil {
			services.Streams.SendDirect(sessionID, userID, models.StreamPackage{
				Type:      "error",
				SessionID: sessionID,
				Message:   "unable to unmarshal your packet, requires json request",
				Timestamp: time.Now(),
			})
			continue
		}

		dealCollabPacket(sessionID, userID, packet)
	}
}

func dealCollabPacket(sessionID, userID string, packet models.ClientPacket) {
	now := time.Now()

	switch packet.Type {
	case "ping":
		services.Streams.SendDirect(sessionID, userID, models.StreamPackage{
			Type:      "pong",
			SessionID: sessionID,
			Timestamp: now,
		})
	case "start_editing":
		services.Presence.SetEditing(sessionID, userID, packet.Field)
	case "stop_editing":
		services.Presence.SetEditing(sessionID, userID, nil)
	case "typing":
		services.Streams.Broadcast(sessionID, models.StreamPackage{
			Type:      "user_typing",
			SessionID: sessionID,
			Data: map[string]any{
				"user_id": userID,
				"field":   packet.Field,
				"content": packet.Content,
			},
			Timestamp: now,
		}, userID)
	case "cursor_position":
		services.Streams.Broadcast(sessionID, models.StreamPackage{
			Type:      "cursor_update",
			SessionID: sessionID,
			Data: map[string]any{
				"user_id":  userID,
				"field":    packet.Field,
				"position": packet.Position,
			},
			Timestamp: now,
		}, userID)
	case "request_presence":
		services.Streams.SendDirect(sessionID, userID, models.StreamPackage{
			Type:      "session_presence",
			SessionID: sessionID,
			Data:      map[string]any{"users": services.Presence.Snapshot(sessionID)},
			Timestamp: now,
		})
	default:
		services.Streams.SendDirect(sessionID, userID, models.StreamPackage{
			Type:      "error",
			SessionID: sessionID,
			Message:   fmt.Sprintf("unknown packet type: %s", packet.Type),
			Timestamp: now,
		})
	}
}
