package handlers

import "github.com/gofiber/fiber/v2"

// HealthHandler answers liveness probes and the root banner.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

func (h *HealthHandler) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"message": "Zendesk Reporting API is running",
	})
}
