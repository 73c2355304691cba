package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/oaps-analytics/zendesk-reporting/internal/service"
)

// UsersHandler lists the agents in the configured groups.
type UsersHandler struct {
	reports *service.ReportService
}

func NewUsersHandler(reports *service.ReportService) *UsersHandler {
	return &UsersHandler{reports: reports}
}

func (h *UsersHandler) List(c *fiber.Ctx) error {
	users, err := h.reports.ListAgents(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"users": users})
}
