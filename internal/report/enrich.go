package report

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/oaps-analytics/zendesk-reporting/internal/domain"
)

// isoLayouts covers the timestamp shapes the upstream emits: timezone-aware
// RFC 3339 and naive ISO-8601, with or without fractional seconds.
var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseISO parses an ISO-8601 timestamp. Naive values are assumed to
// already be in the report zone; aware values are converted into it.
func ParseISO(value string, loc *time.Location) (time.Time, bool) {
	for _, layout := range isoLayouts[:2] {
		if t, err := time.Parse(layout, value); err == nil {
			return t.In(loc), true
		}
	}
	for _, layout := range isoLayouts[2:] {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// BuildStatusMap indexes tickets by integer id. String ids are coerced when
// digit-only; anything else is dropped. Duplicate ids keep the last
// occurrence.
func BuildStatusMap(tickets []domain.Ticket) domain.StatusMap {
	m := make(domain.StatusMap, len(tickets))
	for _, t := range tickets {
		id, ok := t.ID.Int()
		if !ok {
			continue
		}
		m[id] = &domain.StatusEntry{Status: t.Status, UpdatedAt: t.UpdatedAt}
	}
	return m
}

// ResolutionSource looks up when a ticket was resolved: the metrics
// endpoint first, then the audit history.
type ResolutionSource interface {
	MetricsSolvedAt(ctx context.Context, ticketID int64) (string, error)
	LastResolutionFromAudits(ctx context.Context, ticketID int64) (string, error)
}

// ResolutionCache stores resolved-at timestamps across report pulls. A
// resolved ticket's timestamp never changes, so cached values never go
// stale.
type ResolutionCache interface {
	GetResolvedAt(ctx context.Context, ticketID int64) (string, bool)
	SetResolvedAt(ctx context.Context, ticketID int64, resolvedAt string)
}

// Enricher attaches resolution times to status entries.
type Enricher struct {
	Source ResolutionSource
	Cache  ResolutionCache
	Logger *zap.Logger
}

// EnrichResolutionTimes mutates statusMap in place, attaching ResolvedAt to
// solved/closed entries only. Lookup failures are soft: logged and the
// entry left unresolved.
func (e *Enricher) EnrichResolutionTimes(ctx context.Context, statusMap domain.StatusMap) {
	for id, entry := range statusMap {
		if !domain.IsResolved(entry.Status) {
			continue
		}
		if e.Cache != nil {
			if cached, ok := e.Cache.GetResolvedAt(ctx, id); ok {
				entry.ResolvedAt = cached
				continue
			}
		}

		resolved, err := e.Source.MetricsSolvedAt(ctx, id)
		if err != nil {
			e.Logger.Warn("metrics fetch failed", zap.Int64("ticket_id", id), zap.Error(err))
			resolved = ""
		}
		if resolved == "" {
			resolved, err = e.Source.LastResolutionFromAudits(ctx, id)
			if err != nil {
				e.Logger.Warn("audit fetch failed", zap.Int64("ticket_id", id), zap.Error(err))
				resolved = ""
			}
		}
		if resolved != "" {
			entry.ResolvedAt = resolved
			if e.Cache != nil {
				e.Cache.SetResolvedAt(ctx, id, resolved)
			}
		}
	}
}

// AgeBucket maps days open to the triage label. Thresholds are strict
// lower bounds: exactly 30 days is still "Over 20 Days".
func AgeBucket(daysOpen int) string {
	switch {
	case daysOpen > 30:
		return domain.BucketOver30
	case daysOpen > 20:
		return domain.BucketOver20
	case daysOpen > 10:
		return domain.BucketOver10
	default:
		return domain.BucketUnder10
	}
}

// BuildTicketRows projects tickets into enriched rows. When bucketed is
// false the categorical label is omitted but the raw age stays populated.
// closedByMeeting is set only for solved/closed tickets whose resolved (or
// updated) timestamp falls inside the window, inclusive on both ends.
func BuildTicketRows(tickets []domain.Ticket, statusMap domain.StatusMap, window domain.MeetingWindow, bucketed bool, clock *Clock) []domain.TicketRow {
	now := clock.Now()
	rows := make([]domain.TicketRow, 0, len(tickets))

	for _, t := range tickets {
		status := strings.ToLower(t.Status)
		days := 0
		if t.CreatedAt != "" {
			if created, ok := ParseISO(t.CreatedAt, clock.Location()); ok {
				days = int(now.Sub(created).Hours() / 24)
				if days < 0 {
					days = 0
				}
			}
		}

		var bucket *string
		if bucketed {
			b := AgeBucket(days)
			bucket = &b
		}

		closedByMeeting := false
		if domain.IsResolved(status) {
			if id, ok := t.ID.Int(); ok {
				if entry, found := statusMap[id]; found {
					ts := entry.ResolvedAt
					if ts == "" {
						ts = entry.UpdatedAt
					}
					if ts != "" {
						if resolved, ok := ParseISO(ts, clock.Location()); ok {
							closedByMeeting = !resolved.Before(window.Start) && !resolved.After(window.End)
						}
					}
				}
			}
		}

		rows = append(rows, domain.TicketRow{
			ID:              t.ID,
			Subject:         t.Subject,
			Group:           t.GroupID,
			Status:          status,
			AssigneeID:      t.AssigneeID,
			AgeBucket:       bucket,
			AgeDays:         days,
			ClosedByMeeting: closedByMeeting,
		})
	}
	return rows
}
