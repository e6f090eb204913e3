package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/voicedeskhq/voicedesk/pkg/internal/http/exts"
	"github.com/voicedeskhq/voicedesk/pkg/internal/services"
)

func listCall(c *fiber.Ctx) error {
	take := c.QueryInt("take", 20)
	offset := c.QueryInt("offset", 0)
	direction := c.Query("direction")

	if calls, err := services.ListCall(take, offset, direction); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	} else {
		return c.JSON(calls)
	}
}

func getCall(c *fiber.Ctx) error {
	id, err := c.ParamsInt("callId")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if call, err := services.GetCall(uint(id)); err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	} else {
		return c.JSON(call)
	}
}

func listCallEvent(c *fiber.Ctx) error {
	id, err := c.ParamsInt("callId")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	take := c.QueryInt("take", 100)
	offset := c.QueryInt("offset", 0)

	call, err := services.GetCall(uint(id))
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}

	if events, err := services.ListCallEvent(call, take, offset); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	} else {
		return c.JSON(events)
	}
}

func createCall(c *fiber.Ctx) error {
	var data struct {
		AgentID    string `json:"agent_id"`
		FromNumber string `json:"from_number" validate:"required"`
		ToNumber   string `json:"to_number" validate:"required"`
	}
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	if call, err := services.PlaceCall(data.AgentID, data.FromNumber, data.ToNumber); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	} else {
		return c.Status(fiber.StatusCreated).JSON(call)
	}
}

func registerInboundCall(c *fiber.Ctx) error {
	var data struct {
		ProviderCallID string `json:"provider_call_id" validate:"required"`
		AgentID        string `json:"agent_id"`
		FromNumber     string `json:"from_number"`
		ToNumber       string `json:"to_number"`
	}
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	if call, err := services.RegisterInboundCall(data.ProviderCallID, data.AgentID, data.FromNumber, data.ToNumber); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	} else {
		return c.Status(fiber.StatusCreated).JSON(call)
	}
}
