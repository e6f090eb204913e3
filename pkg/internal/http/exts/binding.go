package exts

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validation = validator.New(validator.WithRequiredStructEnabled())

func ValidateStruct(target any) error {
	return validation.Struct(target)
}

func BindAndValidate(c *fiber.Ctx, target any) error {
	if err := c.BodyParser(target); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	} else if err := ValidateStruct(target); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	return nil
}
