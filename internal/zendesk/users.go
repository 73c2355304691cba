package zendesk

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/oaps-analytics/zendesk-reporting/internal/domain"
)

// GetUser fetches one user by id, primarily for reassignment enrichment.
// Returns nil without error when the API reports no user payload.
func (c *Client) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	base, _, err := c.resolve()
	if err != nil {
		return nil, err
	}

	var resp struct {
		User *domain.User `json:"user"`
	}
	reqURL := fmt.Sprintf("%s/users/%d.json", base, userID)
	if err := c.do(ctx, http.MethodGet, reqURL, nil, &resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

// ListAgents pages through all agents and keeps those in the configured
// groups. An empty group configuration keeps everyone.
func (c *Client) ListAgents(ctx context.Context) ([]domain.User, error) {
	base, _, err := c.resolve()
	if err != nil {
		return nil, err
	}

	allowed := make(map[string]bool, len(c.groupIDs))
	for _, gid := range c.groupIDs {
		allowed[gid] = true
	}

	next := base + "/users.json?role=agent&per_page=100"
	users := []domain.User{}
	for next != "" {
		var page struct {
			Users    []domain.User `json:"users"`
			NextPage string        `json:"next_page"`
		}
		if err := c.do(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, err
		}
		for _, u := range page.Users {
			if len(allowed) == 0 || (u.GroupID != nil && allowed[strconv.FormatInt(*u.GroupID, 10)]) {
				users = append(users, u)
			}
		}
		next = page.NextPage
		if next != "" {
			c.sleep(pageDelay)
		}
	}
	c.logger.Info("fetched agents", zap.Int("count", len(users)))
	return users, nil
}
