package api

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/voicedeskhq/voicedesk/pkg/internal/models"
	"github.com/voicedeskhq/voicedesk/pkg/internal/services"
)

type stubCallStore struct {
	calls  map[string]models.Call
	writes int
	fail   bool
}

func (v *stubCallStore) FindCallByProviderID(id string) (models.Call, error) {
	if call, ok := v.calls[id]; ok {
		return call, nil
	}
	return models.Call{}, gorm.ErrRecordNotFound
}

func (v *stubCallStore) RecordEventWithTransition(callID uint, eventType string, payload map[string]any, fields map[string]any) error {
	if v.fail {
		return errors.New("connection refused")
	}
	v.writes++
	return nil
}

func newWebhookTestApp(store services.CallStore) *fiber.App {
	services.Registry = services.NewChannelRegistry()
	services.Streams = services.NewDispatcher(services.Registry)
	services.Presence = services.NewPresenceTracker(services.Streams)
	services.CallEvents = services.NewCallEventProcessor(store, services.Streams)

	app := fiber.New()
	MapAPIs(app, "/api")
	return app
}

func postWebhook(t *testing.T, app *fiber.App, body string) (int, map[string]any) {
	t.Helper()

	request := httptest.NewRequest(fiber.MethodPost, "/api/webhooks/provider", strings.NewReader(body))
	request.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	response, err := app.Test(request)
	require.NoError(t, err)

	raw, err := io.ReadAll(response.Body)
	require.NoError(t, err)

	var decoded map[string]any
	if len(raw) > 0 {
		_ = jsoniter.Unmarshal(raw, &decoded)
	}
	return response.StatusCode, decoded
}

func TestWebhookMissingCallID(t *testing.T) {
	store := &stubCallStore{}
	app := newWebhookTestApp(store)

	status, body := postWebhook(t, app, `{"event":"call_started","data":{}}`)
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, services.OutcomeIgnored, body["status"])
	require.Equal(t, "missing_fields", body["reason"])
	require.Zero(t, store.writes)
}

func TestWebhookUnknownCall(t *testing.T) {
	app := newWebhookTestApp(&stubCallStore{})

	status, body := postWebhook(t, app, `{"event":"call_started","data":{"call_id":"call_999"}}`)
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, services.OutcomeCallNotFound, body["status"])
}

func TestWebhookProcessed(t *testing.T) {
	store := &stubCallStore{calls: map[string]models.Call{
		"call_123": {
			BaseModel:      models.BaseModel{ID: 7},
			ProviderCallID: "call_123",
			Status:         models.CallStatusRegistered,
		},
	}}
	app := newWebhookTestApp(store)

	status, body := postWebhook(t, app, `{"event":"call_started","data":{"call_id":"call_123"}}`)
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, services.OutcomeProcessed, body["status"])
	require.Equal(t, "call_started", body["event_type"])
	require.Equal(t, 1, store.writes)
}

func TestWebhookPersistenceFailureIsServerError(t *testing.T) {
	store := &stubCallStore{
		calls: map[string]models.Call{
			"call_123": {
				BaseModel:      models.BaseModel{ID: 7},
				ProviderCallID: "call_123",
				Status:         models.CallStatusRegistered,
			},
		},
		fail: true,
	}
	app := newWebhookTestApp(store)

	status, _ := postWebhook(t, app, `{"event":"call_started","data":{"call_id":"call_123"}}`)
	require.Equal(t, fiber.StatusInternalServerError, status)
}

func TestWebhookMalformedBodyIsIgnored(t *testing.T) {
	store := &stubCallStore{}
	app := newWebhookTestApp(store)

	status, body := postWebhook(t, app, `{not json`)
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, services.OutcomeIgnored, body["status"])
	require.Zero(t, store.writes)
}

func TestWebhookConnectivityProbe(t *testing.T) {
	app := newWebhookTestApp(&stubCallStore{})

	request := httptest.NewRequest(fiber.MethodGet, "/api/webhooks/provider/test", nil)
	response, err := app.Test(request)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, response.StatusCode)
}
