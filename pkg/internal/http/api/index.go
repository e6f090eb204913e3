package api

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

func MapAPIs(app *fiber.App, baseURL string) {
	api := app.Group(baseURL).Name("API")
	{
		webhooks := api.Group("/webhooks").Name("Webhooks API")
		{
			webhooks.Post("/provider", handleProviderWebhook)
			webhooks.Get("/provider/test", testProviderWebhook)
		}

		calls := api.Group("/calls").Name("Calls API")
		{
			calls.Get("/", listCall)
			calls.Get("/ws/:callId", websocket.New(callGateway))
			calls.Get("/:callId", getCall)
			calls.Get("/:callId/events", listCallEvent)
			calls.Post("/", createCall)
			calls.Post("/inbound", registerInboundCall)
		}

		collab := api.Group("/collab").Name("Collaboration API")
		{
			collab.Post("/sessions", createCollabSession)
			collab.Get("/sessions/:sessionId", getCollabSession)
			collab.Get("/sessions/:sessionId/presence", getSessionPresence)
			collab.Get("/sessions/:sessionId/ws", websocket.New(collabGateway))
		}
	}
}
