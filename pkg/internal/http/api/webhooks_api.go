package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/voicedeskhq/voicedesk/pkg/internal/services"
)

func handleProviderWebhook(c *fiber.Ctx) error {
	var payload struct {
		Event string         `json:"event"`
		Data  map[string]any `json:"data"`
	}

	// Malformed bodies are answered 200/ignored so the provider does not
	// keep retrying garbage; only persistence failures deserve a retry.
	if err := c.BodyParser(&payload); err != nil {
		log.Warn().Err(err).Msg("Unable to parse provider webhook body...")
		return c.JSON(services.WebhookOutcome{
			Status: services.OutcomeIgnored,
			Reason: "malformed_body",
		})
	}

	providerCallID, _ := payload.Data["call_id"].(string)

	outcome, err := services.CallEvents.Process(payload.Event, providerCallID, payload.Data)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	return c.JSON(outcome)
}

func testProviderWebhook(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "webhook_active",
		"message":   "Provider webhook endpoint is accessible",
		"timestamp": time.Now(),
		"endpoint":  "/api/webhooks/provider",
		"websocket": "/api/calls/ws/:callId",
		"supported_events": []string{
			"call_started",
			"call_ended",
			"agent_response",
			"user_speech",
			"tool_call",
			"speech_detected",
		},
	})
}
