package services

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/viper"
)

// Thin client for the voice provider's REST API. Consumed by the REST
// surface only; the realtime core never calls out to the provider.

type ProviderCallRequest struct {
	FromNumber      string `json:"from_number"`
	ToNumber        string `json:"to_number"`
	OverrideAgentID string `json:"override_agent_id,omitempty"`
}

type ProviderCall struct {
	CallID  string `json:"call_id"`
	AgentID string `json:"agent_id"`
	Status  string `json:"call_status"`
}

func CreateProviderCall(request ProviderCallRequest) (ProviderCall, error) {
	return requestProvider(fiber.MethodPost, "/v2/create-phone-call", request)
}

func GetProviderCall(id string) (ProviderCall, error) {
	return requestProvider(fiber.MethodGet, fmt.Sprintf("/v2/get-call/%s", id), nil)
}

func requestProvider(method, path string, payload any) (ProviderCall, error) {
	var out ProviderCall

	agent := fiber.AcquireAgent()
	defer fiber.ReleaseAgent(agent)

	request := agent.Request()
	request.Header.SetMethod(method)
	request.SetRequestURI(viper.GetString("provider.endpoint") + path)
	request.Header.Set(fiber.HeaderAuthorization, "Bearer "+viper.GetString("provider.api_key"))

	if payload != nil {
		raw, err := jsoniter.Marshal(payload)
		if err != nil {
			return out, err
		}
		request.Header.SetContentType(fiber.MIMEApplicationJSON)
		request.SetBody(raw)
	}

	if err := agent.Parse(); err != nil {
		return out, err
	}

	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return out, errs[0]
	}
	if status >= fiber.StatusBadRequest {
		return out, fmt.Errorf("provider responded with status %d: %s", status, string(body))
	}

	if err := jsoniter.Unmarshal(body, &out); err != nil {
		return out, err
	}
	return out, nil
}
