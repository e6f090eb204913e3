package api

import (
	"fmt"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/voicedeskhq/voicedesk/pkg/internal/models"
	"github.com/voicedeskhq/voicedesk/pkg/internal/services"
)

// callGateway serves live call-event subscribers. Viewers are anonymous, so
// each connection gets its own subscriber identity.
func callGateway(c *websocket.Conn) {
	callID := c.Params("callId")
	clientID := uuid.NewString()

	// Push connection
	services.Registry.Subscribe(callID, clientID, c)

	// Pop connection; a failed broadcast may have dropped it already, the
	// registry treats that as a no-op.
	defer services.Registry.Unsubscribe(callID, clientID)

	// Event loop
	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			break
		}
		packet, err := decodeClientPacket(raw)
		if err != nil {
			services.Streams.SendDirect(callID, clientID, models.StreamPackage{
				Type:      "error",
				CallID:    callID,
				Message:   "unable to unmarshal your packet, requires json request",
				Timestamp: time.Now(),
			})
			continue
		}

		switch packet.Type {
		case "ping":
			services.Streams.SendDirect(callID, clientID, models.StreamPackage{
				Type:      "pong",
				CallID:    callID,
				Timestamp: time.Now(),
			})
		case "subscribe":
			services.Streams.SendDirect(callID, clientID, models.StreamPackage{
				Type:      "subscribed",
				CallID:    callID,
				Message:   fmt.Sprintf("Subscribed to call %s updates", callID),
				Timestamp: time.Now(),
			})
		default:
			services.Streams.SendDirect(callID, clientID, models.StreamPackage{
				Type:      "error",
				CallID:    callID,
				Message:   fmt.Sprintf("unknown packet type: %s", packet.Type),
				Timestamp: time.Now(),
			})
		}
	}
}

// decodeClientPacket yields a fresh packet per frame; fields a frame leaves
// out must not inherit values from an earlier frame.
func decodeClientPacket(raw []byte) (models.ClientPacket, error) {
	var packet models.ClientPacket
	if err := jsoniter.Unmarshal(raw, &packet); err != nil {
		return packet, err
	}
	return packet, nil
}
