package zendesk

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/oaps-analytics/zendesk-reporting/internal/domain"
)

const showManyChunk = 100

// ShowMany batch-fetches tickets by id, chunked to the API's page-size
// limit. Non-digit ids are dropped before the call.
func (c *Client) ShowMany(ctx context.Context, ticketIDs []string) ([]domain.Ticket, error) {
	base, _, err := c.resolve()
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, id := range ticketIDs {
		if _, ok := domain.TicketID(id).Int(); ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return []domain.Ticket{}, nil
	}

	c.logger.Info("fetching tickets via show_many", zap.Int("count", len(ids)))
	var out []domain.Ticket
	for start := 0; start < len(ids); start += showManyChunk {
		end := start + showManyChunk
		if end > len(ids) {
			end = len(ids)
		}
		reqURL := fmt.Sprintf("%s/tickets/show_many.json?ids=%s", base, strings.Join(ids[start:end], ","))
		var page struct {
			Tickets []domain.Ticket `json:"tickets"`
		}
		if err := c.do(ctx, http.MethodGet, reqURL, nil, &page); err != nil {
			return nil, err
		}
		out = append(out, page.Tickets...)
	}
	return out, nil
}

// searchResult is the heterogeneous search hit; only ticket-typed results
// are kept and normalized to the canonical shape.
type searchResult struct {
	ResultType string `json:"result_type"`
	domain.Ticket
}

// Search finds tickets by group and/or status, following the next-page
// cursor until exhausted.
func (c *Client) Search(ctx context.Context, groupIDs, statuses []string) ([]domain.Ticket, error) {
	base, _, err := c.resolve()
	if err != nil {
		return nil, err
	}

	query := buildSearchQuery(groupIDs, statuses)
	c.logger.Info("searching tickets", zap.String("query", query))

	next := fmt.Sprintf("%s/search.json?query=%s&per_page=100", base, url.QueryEscape(query))
	var tickets []domain.Ticket
	for next != "" {
		var page struct {
			Results  []searchResult `json:"results"`
			NextPage string         `json:"next_page"`
		}
		if err := c.do(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, err
		}
		for _, res := range page.Results {
			if res.ResultType != "ticket" {
				continue
			}
			tickets = append(tickets, res.Ticket)
		}
		next = page.NextPage
		if next != "" {
			c.sleep(pageDelay)
		}
	}
	c.logger.Info("search complete", zap.Int("tickets", len(tickets)))
	return tickets, nil
}

func buildSearchQuery(groupIDs, statuses []string) string {
	parts := []string{"type:ticket"}
	if clause := orClause("group_id", groupIDs); clause != "" {
		parts = append(parts, clause)
	}
	if clause := orClause("status", statuses); clause != "" {
		parts = append(parts, clause)
	}
	return strings.Join(parts, " ")
}

func orClause(field string, values []string) string {
	var terms []string
	for _, v := range values {
		if v != "" {
			terms = append(terms, field+":"+v)
		}
	}
	if len(terms) == 0 {
		return ""
	}
	return "(" + strings.Join(terms, " OR ") + ")"
}

// UpdateTicket applies the given fields to a ticket and returns the updated
// copy.
func (c *Client) UpdateTicket(ctx context.Context, ticketID int64, fields map[string]any) (*domain.Ticket, error) {
	base, _, err := c.resolve()
	if err != nil {
		return nil, err
	}
	c.logger.Info("updating ticket", zap.Int64("ticket_id", ticketID), zap.Any("fields", fields))

	var resp struct {
		Ticket domain.Ticket `json:"ticket"`
	}
	reqURL := fmt.Sprintf("%s/tickets/%d.json", base, ticketID)
	if err := c.do(ctx, http.MethodPut, reqURL, map[string]any{"ticket": fields}, &resp); err != nil {
		return nil, err
	}
	return &resp.Ticket, nil
}

// AddComment attaches a comment to a ticket, public or internal.
func (c *Client) AddComment(ctx context.Context, ticketID int64, body string, public bool, authorID *int64) (*domain.Ticket, error) {
	base, _, err := c.resolve()
	if err != nil {
		return nil, err
	}

	comment := map[string]any{"body": body, "public": public}
	if authorID != nil {
		comment["author_id"] = *authorID
	}
	visibility := "internal"
	if public {
		visibility = "public"
	}
	c.logger.Info("adding comment", zap.Int64("ticket_id", ticketID), zap.String("visibility", visibility))

	var resp struct {
		Ticket domain.Ticket `json:"ticket"`
	}
	reqURL := fmt.Sprintf("%s/tickets/%d.json", base, ticketID)
	payload := map[string]any{"ticket": map[string]any{"comment": comment}}
	if err := c.do(ctx, http.MethodPut, reqURL, payload, &resp); err != nil {
		return nil, err
	}
	return &resp.Ticket, nil
}

// ListComments returns the newest comments for a ticket, capped at limit.
func (c *Client) ListComments(ctx context.Context, ticketID int64, limit int) ([]domain.Comment, error) {
	base, _, err := c.resolve()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 3
	}

	var resp struct {
		Comments []domain.Comment `json:"comments"`
	}
	reqURL := fmt.Sprintf("%s/tickets/%d/comments.json?sort_order=desc&per_page=%d", base, ticketID, limit)
	if err := c.do(ctx, http.MethodGet, reqURL, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Comments) > limit {
		resp.Comments = resp.Comments[:limit]
	}
	return resp.Comments, nil
}
