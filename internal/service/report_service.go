package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/oaps-analytics/zendesk-reporting/internal/domain"
	"github.com/oaps-analytics/zendesk-reporting/internal/report"
)

// TicketSource is the narrow view of the ticketing API the services need.
type TicketSource interface {
	report.ResolutionSource
	ShowMany(ctx context.Context, ticketIDs []string) ([]domain.Ticket, error)
	Search(ctx context.Context, groupIDs, statuses []string) ([]domain.Ticket, error)
	GetUser(ctx context.Context, userID int64) (*domain.User, error)
	UpdateTicket(ctx context.Context, ticketID int64, fields map[string]any) (*domain.Ticket, error)
	AddComment(ctx context.Context, ticketID int64, body string, public bool, authorID *int64) (*domain.Ticket, error)
	ListComments(ctx context.Context, ticketID int64, limit int) ([]domain.Comment, error)
	ListAgents(ctx context.Context) ([]domain.User, error)
}

// TicketFilters selects the ticket set for listing and export. Explicit ids
// win over the group/status search.
type TicketFilters struct {
	GroupIDs []string
	Statuses []string
	IDsCSV   string
}

// ReportService runs the fetch, normalize, enrich, bucket pipeline shared
// by the listing and export paths.
type ReportService struct {
	source   TicketSource
	enricher *report.Enricher
	clock    *report.Clock
	logger   *zap.Logger
}

// ReportDependencies bundles collaborators for the report service.
type ReportDependencies struct {
	Source   TicketSource
	Enricher *report.Enricher
	Clock    *report.Clock
	Logger   *zap.Logger
}

// NewReportService constructs the service.
func NewReportService(deps ReportDependencies) *ReportService {
	return &ReportService{
		source:   deps.Source,
		enricher: deps.Enricher,
		clock:    deps.Clock,
		logger:   deps.Logger,
	}
}

// MeetingWindow exposes the current reporting period.
func (s *ReportService) MeetingWindow() domain.MeetingWindow {
	return s.clock.MeetingWindow()
}

// resolveTickets fetches the ticket set: by explicit ids when given,
// otherwise by group/status search.
func (s *ReportService) resolveTickets(ctx context.Context, filters TicketFilters) ([]domain.Ticket, error) {
	if strings.TrimSpace(filters.IDsCSV) != "" {
		var ids []string
		for _, part := range strings.Split(filters.IDsCSV, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				ids = append(ids, trimmed)
			}
		}
		tickets, err := s.source.ShowMany(ctx, ids)
		if err != nil {
			return nil, err
		}
		s.logger.Info("fetched tickets via show_many", zap.Int("count", len(tickets)))
		return tickets, nil
	}

	tickets, err := s.source.Search(ctx, filters.GroupIDs, filters.Statuses)
	if err != nil {
		return nil, err
	}
	s.logger.Info("fetched tickets via search", zap.Int("count", len(tickets)))
	return tickets, nil
}

// BuildRows runs the full enrichment pipeline and returns export-ready rows
// together with the meeting window they were evaluated against.
func (s *ReportService) BuildRows(ctx context.Context, filters TicketFilters, bucketed bool) ([]domain.TicketRow, domain.MeetingWindow, error) {
	tickets, err := s.resolveTickets(ctx, filters)
	if err != nil {
		return nil, domain.MeetingWindow{}, err
	}

	statusMap := report.BuildStatusMap(tickets)
	s.enricher.EnrichResolutionTimes(ctx, statusMap)

	window := s.clock.MeetingWindow()
	rows := report.BuildTicketRows(tickets, statusMap, window, bucketed, s.clock)
	s.logger.Info("built ticket rows", zap.Int("rows", len(rows)))
	return rows, window, nil
}

// PatchResult carries the outcome of a ticket update.
type PatchResult struct {
	Noop   bool
	Ticket *domain.Ticket
}

// PatchTicket updates status and/or assignee. A reassignment auto-attaches
// the assignee's group when the user lookup succeeds; lookup failure is
// soft and the reassignment proceeds without the group. No recognized
// field means a no-op, and the source is never called.
func (s *ReportService) PatchTicket(ctx context.Context, ticketID int64, status *string, assigneeID *int64) (PatchResult, error) {
	fields := map[string]any{}
	if status != nil {
		fields["status"] = *status
	}
	if assigneeID != nil {
		fields["assignee_id"] = *assigneeID
		if user, err := s.source.GetUser(ctx, *assigneeID); err != nil {
			s.logger.Warn("could not enrich assignee with group",
				zap.Int64("assignee_id", *assigneeID), zap.Error(err))
		} else if user != nil && user.GroupID != nil {
			fields["group_id"] = *user.GroupID
			s.logger.Info("auto-updating group for reassignment",
				zap.Int64("group_id", *user.GroupID), zap.String("assignee", user.Name))
		}
	}
	if len(fields) == 0 {
		s.logger.Info("no-op patch", zap.Int64("ticket_id", ticketID))
		return PatchResult{Noop: true}, nil
	}

	ticket, err := s.source.UpdateTicket(ctx, ticketID, fields)
	if err != nil {
		return PatchResult{}, err
	}
	return PatchResult{Ticket: ticket}, nil
}

// AddComment attaches a comment to a ticket.
func (s *ReportService) AddComment(ctx context.Context, ticketID int64, body string, public bool, authorID *int64) (*domain.Ticket, error) {
	return s.source.AddComment(ctx, ticketID, body, public, authorID)
}

// LastComments returns the newest comments for inline display.
func (s *ReportService) LastComments(ctx context.Context, ticketID int64, limit int) ([]domain.Comment, error) {
	return s.source.ListComments(ctx, ticketID, limit)
}

// ListAgents returns the agents in the configured groups.
func (s *ReportService) ListAgents(ctx context.Context) ([]domain.User, error) {
	return s.source.ListAgents(ctx)
}
