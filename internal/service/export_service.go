package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/oaps-analytics/zendesk-reporting/internal/domain"
	"github.com/oaps-analytics/zendesk-reporting/internal/persistence"
	"github.com/oaps-analytics/zendesk-reporting/internal/report"
)

// Uploader pushes a rendered report to cloud storage.
type Uploader interface {
	UploadBytes(ctx context.Context, filename string, content []byte) (string, error)
}

// Notifier announces a completed export.
type Notifier interface {
	SendExportLink(ctx context.Context, sharepointURL, filename string) error
}

// ExportResult is what a successful export hands back to the client.
type ExportResult struct {
	SharepointURL string
	Filename      string
}

// ExportService sequences the export pipeline: build rows, render the
// workbook, upload, notify, persist metadata. Each external stage fails
// with its own upstream error so a lost upload is distinguishable from a
// missed notification.
type ExportService struct {
	reports  *ReportService
	uploader Uploader
	notifier Notifier
	meta     *persistence.MetaStore
	clock    *report.Clock
	logger   *zap.Logger
}

// ExportDependencies bundles collaborators for the export service.
type ExportDependencies struct {
	Reports  *ReportService
	Uploader Uploader
	Notifier Notifier
	Meta     *persistence.MetaStore
	Clock    *report.Clock
	Logger   *zap.Logger
}

// NewExportService constructs the service.
func NewExportService(deps ExportDependencies) *ExportService {
	return &ExportService{
		reports:  deps.Reports,
		uploader: deps.Uploader,
		notifier: deps.Notifier,
		meta:     deps.Meta,
		clock:    deps.Clock,
		logger:   deps.Logger,
	}
}

// ExportAndNotify runs the full export. An upload failure stops the
// sequence before the email is attempted. A notification failure surfaces
// even though the upload already succeeded, so the link is durable either
// way. Metadata persistence is best-effort and never fails the export.
func (s *ExportService) ExportAndNotify(ctx context.Context, filters TicketFilters) (ExportResult, error) {
	s.logger.Info("starting export")

	rows, _, err := s.reports.BuildRows(ctx, filters, true)
	if err != nil {
		return ExportResult{}, err
	}

	content, filename, err := report.Workbook(rows, s.clock)
	if err != nil {
		return ExportResult{}, err
	}
	s.logger.Info("workbook created", zap.String("filename", filename), zap.Int("bytes", len(content)))

	webURL, err := s.uploader.UploadBytes(ctx, filename, content)
	if err != nil {
		return ExportResult{}, err
	}

	if err := s.notifier.SendExportLink(ctx, webURL, filename); err != nil {
		return ExportResult{}, err
	}

	meta := domain.ExportMetadata{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Filename:      filename,
		SharepointURL: webURL,
		Rows:          len(rows),
		Filters: domain.ExportFilters{
			GroupIDs: filters.GroupIDs,
			Statuses: filters.Statuses,
			IDsCSV:   optional(filters.IDsCSV),
		},
	}
	if err := s.meta.Write(meta); err != nil {
		// The client already has a valid result; a metadata write problem
		// must not fail the export.
		s.logger.Warn("failed to write export metadata", zap.Error(err))
	}

	s.logger.Info("export completed", zap.String("web_url", webURL))
	return ExportResult{SharepointURL: webURL, Filename: filename}, nil
}

// LastExportMetadata returns the persisted metadata from the most recent
// export, or ok=false when none exists.
func (s *ExportService) LastExportMetadata() (domain.ExportMetadata, bool) {
	return s.meta.Read()
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
