package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/voicedeskhq/voicedesk/pkg/internal/database"
	"github.com/voicedeskhq/voicedesk/pkg/internal/http/exts"
	"github.com/voicedeskhq/voicedesk/pkg/internal/models"
	"github.com/voicedeskhq/voicedesk/pkg/internal/services"
)

func createCollabSession(c *fiber.Ctx) error {
	var data struct {
		AccountName string `json:"account_name" validate:"required"`
	}
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	session := models.CollabSession{
		Alias:       uuid.NewString(),
		AccountName: data.AccountName,
		Status:      models.SessionStatusActive,
	}
	if err := database.C.Save(&session).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	return c.Status(fiber.StatusCreated).JSON(session)
}

func getCollabSession(c *fiber.Ctx) error {
	alias := c.Params("sessionId")

	var session models.CollabSession
	if err := database.C.Where(models.CollabSession{Alias: alias}).First(&session).Error; err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}

	return c.JSON(session)
}

func getSessionPresence(c *fiber.Ctx) error {
	alias := c.Params("sessionId")

	return c.JSON(fiber.Map{
		"session_id": alias,
		"users":      services.Presence.Snapshot(alias),
	})
}
