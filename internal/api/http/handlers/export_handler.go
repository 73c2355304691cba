package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/oaps-analytics/zendesk-reporting/internal/service"
)

// ExportHandler triggers workbook exports and exposes the last export
// metadata.
type ExportHandler struct {
	exports *service.ExportService
}

func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Export runs the full pipeline: rows, workbook, SharePoint upload, email
// notification, metadata persistence.
func (h *ExportHandler) Export(c *fiber.Ctx) error {
	result, err := h.exports.ExportAndNotify(c.UserContext(), filtersFromQuery(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"ok":            true,
		"sharepointUrl": result.SharepointURL,
		"filename":      result.Filename,
	})
}

// Last returns the metadata of the most recent export, if any.
func (h *ExportHandler) Last(c *fiber.Ctx) error {
	meta, ok := h.exports.LastExportMetadata()
	if !ok {
		return c.JSON(fiber.Map{
			"ok":     false,
			"detail": "No export metadata found",
		})
	}
	return c.JSON(fiber.Map{"ok": true, "meta": meta})
}
