package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/oaps-analytics/zendesk-reporting/internal/api/dto"
	"github.com/oaps-analytics/zendesk-reporting/internal/service"
	"github.com/oaps-analytics/zendesk-reporting/pkg/util"
)

const (
	defaultCommentLimit = 3
	maxCommentLimit     = 10
)

// TicketsHandler serves the ticket listing, update and comment endpoints.
type TicketsHandler struct {
	reports *service.ReportService
}

func NewTicketsHandler(reports *service.ReportService) *TicketsHandler {
	return &TicketsHandler{reports: reports}
}

// filtersFromQuery reads the shared filter query parameters.
func filtersFromQuery(c *fiber.Ctx) service.TicketFilters {
	return service.TicketFilters{
		GroupIDs: splitCSV(c.Query("group_ids")),
		Statuses: splitCSV(c.Query("statuses")),
		IDsCSV:   c.Query("ids_csv"),
	}
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func ticketIDParam(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0, util.NewValidationError("Ticket id must be numeric", map[string]any{
			"id": c.Params("id"),
		})
	}
	return id, nil
}

// MeetingWindow returns the current reporting period.
func (h *TicketsHandler) MeetingWindow(c *fiber.Ctx) error {
	return c.JSON(h.reports.MeetingWindow())
}

// List returns enriched ticket rows together with the meeting window they
// were evaluated against. Buckets are computed unless bucketed=false.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	bucketed := true
	if raw := c.Query("bucketed"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return util.NewValidationError("bucketed must be a boolean", map[string]any{
				"bucketed": raw,
			})
		}
		bucketed = parsed
	}

	rows, window, err := h.reports.BuildRows(c.UserContext(), filtersFromQuery(c), bucketed)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"rows":          rows,
		"meetingWindow": window,
	})
}

// Patch updates ticket status and/or assignee. An empty body is accepted
// and reported as a no-op.
func (h *TicketsHandler) Patch(c *fiber.Ctx) error {
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}

	var req dto.PatchTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("Invalid request body", nil)
	}

	result, err := h.reports.PatchTicket(c.UserContext(), id, req.Status, req.AssigneeID)
	if err != nil {
		return err
	}
	if result.Noop {
		return c.JSON(fiber.Map{"ok": true, "noop": true})
	}
	return c.JSON(fiber.Map{"ok": true, "ticket": result.Ticket})
}

// PostComment attaches a comment to a ticket.
func (h *TicketsHandler) PostComment(c *fiber.Ctx) error {
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}

	var req dto.CommentRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("Invalid request body", nil)
	}
	if strings.TrimSpace(req.Body) == "" {
		return util.NewValidationError("Comment body must not be empty", nil)
	}

	ticket, err := h.reports.AddComment(c.UserContext(), id, req.Body, req.IsPublic, req.AuthorID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true, "ticket": ticket})
}

// GetComments returns the newest comments, capped between 1 and 10.
func (h *TicketsHandler) GetComments(c *fiber.Ctx) error {
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}

	limit := defaultCommentLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxCommentLimit {
			return util.NewValidationError("limit must be between 1 and 10", map[string]any{
				"limit": raw,
			})
		}
		limit = parsed
	}

	comments, err := h.reports.LastComments(c.UserContext(), id, limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true, "comments": comments})
}
