package zendesk

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/oaps-analytics/zendesk-reporting/internal/domain"
)

// MetricsSolvedAt returns the solved timestamp from the ticket metrics
// endpoint, or empty when the ticket has none.
func (c *Client) MetricsSolvedAt(ctx context.Context, ticketID int64) (string, error) {
	base, _, err := c.resolve()
	if err != nil {
		return "", err
	}

	var resp struct {
		TicketMetric struct {
			SolvedAt string `json:"solved_at"`
		} `json:"ticket_metric"`
	}
	reqURL := fmt.Sprintf("%s/tickets/%d/metrics.json", base, ticketID)
	if err := c.do(ctx, http.MethodGet, reqURL, nil, &resp); err != nil {
		return "", err
	}
	return resp.TicketMetric.SolvedAt, nil
}

type auditEvent struct {
	Type  string `json:"type"`
	Field string `json:"field"`
	Value string `json:"value"`
}

type audit struct {
	CreatedAt string       `json:"created_at"`
	Events    []auditEvent `json:"events"`
}

// LastResolutionFromAudits scans paginated audit history for transitions
// into solved/closed and returns the timestamp of the final matching event
// encountered. Pages are scanned in API order, so the result is the last
// match seen, not necessarily the chronologically latest one.
func (c *Client) LastResolutionFromAudits(ctx context.Context, ticketID int64) (string, error) {
	base, _, err := c.resolve()
	if err != nil {
		return "", err
	}
	c.logger.Debug("scanning audits", zap.Int64("ticket_id", ticketID))

	next := fmt.Sprintf("%s/tickets/%d/audits.json", base, ticketID)
	var last string
	for next != "" {
		var page struct {
			Audits   []audit `json:"audits"`
			NextPage string  `json:"next_page"`
		}
		if err := c.do(ctx, http.MethodGet, next, nil, &page); err != nil {
			return "", err
		}
		for _, a := range page.Audits {
			for _, ev := range a.Events {
				if ev.Type == "Change" && ev.Field == "status" && domain.IsResolved(ev.Value) {
					last = a.CreatedAt
				}
			}
		}
		next = page.NextPage
		if next != "" {
			c.sleep(pageDelay)
		}
	}
	return last, nil
}
