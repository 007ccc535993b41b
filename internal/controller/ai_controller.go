package controller

import (
	"codecollab-be/internal/dto"
	"codecollab-be/internal/pkg/serverutils"
	"codecollab-be/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type IAiController interface {
	RegisterRoutes(r fiber.Router)
	Complete(ctx *fiber.Ctx) error
}

type aiController struct {
	service  service.IAiService
	validate *validator.Validate
}

func NewAiController(service service.IAiService) IAiController {
	return &aiController{
		service:  service,
		validate: validator.New(),
	}
}

func (c *aiController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/ai")
	h.Post("/complete", c.Complete)
}

func (c *aiController) Complete(ctx *fiber.Ctx) error {
	var req dto.CompletionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "invalid request body"))
	}
	if err := c.validate.Struct(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "prompt is required"))
	}

	res, err := c.service.Complete(ctx.Context(), req)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, "ai service error"))
	}
	return ctx.JSON(serverutils.SuccessResponse(res))
}
