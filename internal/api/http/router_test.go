package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oaps-analytics/zendesk-reporting/internal/api/http/handlers"
	"github.com/oaps-analytics/zendesk-reporting/internal/auth"
	"github.com/oaps-analytics/zendesk-reporting/internal/config"
	"github.com/oaps-analytics/zendesk-reporting/internal/domain"
	"github.com/oaps-analytics/zendesk-reporting/internal/observability"
	"github.com/oaps-analytics/zendesk-reporting/internal/persistence"
	"github.com/oaps-analytics/zendesk-reporting/internal/report"
	"github.com/oaps-analytics/zendesk-reporting/internal/service"
)

// stubSource is a TicketSource serving canned data for route tests.
type stubSource struct {
	tickets  []domain.Ticket
	users    []domain.User
	updated  map[string]any
	comments []domain.Comment
}

func (s *stubSource) ShowMany(context.Context, []string) ([]domain.Ticket, error) {
	return s.tickets, nil
}

func (s *stubSource) Search(context.Context, []string, []string) ([]domain.Ticket, error) {
	return s.tickets, nil
}

func (s *stubSource) GetUser(context.Context, int64) (*domain.User, error) {
	return nil, nil
}

func (s *stubSource) UpdateTicket(_ context.Context, _ int64, fields map[string]any) (*domain.Ticket, error) {
	s.updated = fields
	return &domain.Ticket{ID: "5", Status: "solved"}, nil
}

func (s *stubSource) AddComment(_ context.Context, _ int64, body string, _ bool, _ *int64) (*domain.Ticket, error) {
	s.comments = append(s.comments, domain.Comment{Body: body})
	return &domain.Ticket{ID: "5"}, nil
}

func (s *stubSource) ListComments(context.Context, int64, int) ([]domain.Comment, error) {
	return s.comments, nil
}

func (s *stubSource) ListAgents(context.Context) ([]domain.User, error) {
	return s.users, nil
}

func (s *stubSource) MetricsSolvedAt(context.Context, int64) (string, error) {
	return "", nil
}

func (s *stubSource) LastResolutionFromAudits(context.Context, int64) (string, error) {
	return "", nil
}

type stubUploader struct{ uploads int }

func (u *stubUploader) UploadBytes(context.Context, string, []byte) (string, error) {
	u.uploads++
	return "https://sharepoint.example/report.xlsx", nil
}

type stubNotifier struct{ sends int }

func (n *stubNotifier) SendExportLink(context.Context, string, string) error {
	n.sends++
	return nil
}

func newTestApp(t *testing.T, src *stubSource) *fiber.App {
	t.Helper()
	logger := zap.NewNop()
	cfg := &config.Config{
		App:       config.AppConfig{Env: "production", RequestTimeoutSeconds: 5},
		RateLimit: config.RateLimitConfig{WindowSeconds: 60, MaxRequests: 1000},
	}

	clock, err := report.NewClock("UTC", func() time.Time {
		return time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	})
	require.NoError(t, err)

	reports := service.NewReportService(service.ReportDependencies{
		Source:   src,
		Enricher: &report.Enricher{Source: src, Logger: logger},
		Clock:    clock,
		Logger:   logger,
	})
	exports := service.NewExportService(service.ExportDependencies{
		Reports:  reports,
		Uploader: &stubUploader{},
		Notifier: &stubNotifier{},
		Meta:     persistence.NewMetaStore(filepath.Join(t.TempDir(), "export_meta.json"), logger),
		Clock:    clock,
		Logger:   logger,
	})

	app := fiber.New()
	RegisterMiddlewares(app, cfg, logger, observability.NewMetrics())
	RegisterRoutes(app, RouteConfig{
		Health:      handlers.NewHealthHandler(),
		Tickets:     handlers.NewTicketsHandler(reports),
		Export:      handlers.NewExportHandler(exports),
		Users:       handlers.NewUsersHandler(reports),
		AccessGuard: auth.NewMiddleware(logger),
		RateLimiter: NewRateLimiter(cfg.RateLimit, nil),
	}, logger)
	return app
}

func authedRequest(method, path string, body string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer route-secret")
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func setRouteEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "production")
	t.Setenv("UNIT_MODE", "")
	t.Setenv("API_AUTH_TOKEN", "route-secret")
}

func TestRootIsPublic(t *testing.T) {
	setRouteEnv(t)
	app := newTestApp(t, &stubSource{})

	for _, path := range []string{"/", "/health"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.Equal(t, "ok", body["status"])
	}
}

func TestTicketsRequireAuth(t *testing.T) {
	setRouteEnv(t)
	app := newTestApp(t, &stubSource{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/tickets", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/api/tickets", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer wrong")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestListTicketsOnBothPrefixes(t *testing.T) {
	setRouteEnv(t)
	src := &stubSource{tickets: []domain.Ticket{
		{ID: "1", Status: "open", CreatedAt: "2025-03-01T10:00:00Z"},
	}}
	app := newTestApp(t, src)

	for _, prefix := range []string{"/api", "/api/v2"} {
		resp, err := app.Test(authedRequest(http.MethodGet, prefix+"/tickets", ""))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode, prefix)

		body := decodeBody(t, resp)
		rows := body["rows"].([]any)
		require.Len(t, rows, 1)
		row := rows[0].(map[string]any)
		assert.Equal(t, float64(1), row["id"])
		assert.Equal(t, "Over 10 Days", row["ageBucket"])
		assert.NotNil(t, body["meetingWindow"])
	}
}

func TestListTicketsUnbucketed(t *testing.T) {
	setRouteEnv(t)
	src := &stubSource{tickets: []domain.Ticket{
		{ID: "1", Status: "open", CreatedAt: "2025-03-01T10:00:00Z"},
	}}
	app := newTestApp(t, src)

	resp, err := app.Test(authedRequest(http.MethodGet, "/api/tickets?bucketed=false", ""))
	require.NoError(t, err)
	body := decodeBody(t, resp)
	row := body["rows"].([]any)[0].(map[string]any)
	assert.Nil(t, row["ageBucket"])
	assert.Equal(t, float64(13), row["ageDays"])
}

func TestMeetingWindowNeedsNoAuth(t *testing.T) {
	setRouteEnv(t)
	app := newTestApp(t, &stubSource{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v2/tickets/meeting-window", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Contains(t, body, "start")
	assert.Contains(t, body, "end")
}

func TestPatchTicketNoopBody(t *testing.T) {
	setRouteEnv(t)
	src := &stubSource{}
	app := newTestApp(t, src)

	resp, err := app.Test(authedRequest(http.MethodPatch, "/api/tickets/5", "{}"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["noop"])
	assert.Nil(t, src.updated, "no upstream call for an empty patch")
}

func TestPatchTicketStatus(t *testing.T) {
	setRouteEnv(t)
	src := &stubSource{}
	app := newTestApp(t, src)

	resp, err := app.Test(authedRequest(http.MethodPatch, "/api/tickets/5", `{"status":"solved"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "solved", src.updated["status"])

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["ok"])
	assert.NotNil(t, body["ticket"])
}

func TestPatchTicketRejectsBadID(t *testing.T) {
	setRouteEnv(t)
	app := newTestApp(t, &stubSource{})

	resp, err := app.Test(authedRequest(http.MethodPatch, "/api/tickets/not-a-number", "{}"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPostCommentRejectsEmptyBody(t *testing.T) {
	setRouteEnv(t)
	app := newTestApp(t, &stubSource{})

	resp, err := app.Test(authedRequest(http.MethodPost, "/api/tickets/5/comments", `{"body":"   "}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPostAndGetComments(t *testing.T) {
	setRouteEnv(t)
	src := &stubSource{}
	app := newTestApp(t, src)

	resp, err := app.Test(authedRequest(http.MethodPost, "/api/tickets/5/comments", `{"body":"following up","is_public":false}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(authedRequest(http.MethodGet, "/api/tickets/5/comments", ""))
	require.NoError(t, err)
	body := decodeBody(t, resp)
	comments := body["comments"].([]any)
	require.Len(t, comments, 1)
	assert.Equal(t, "following up", comments[0].(map[string]any)["body"])
}

func TestGetCommentsLimitValidation(t *testing.T) {
	setRouteEnv(t)
	app := newTestApp(t, &stubSource{})

	for _, limit := range []string{"0", "11", "-1", "abc"} {
		resp, err := app.Test(authedRequest(http.MethodGet, "/api/tickets/5/comments?limit="+limit, ""))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "limit=%s", limit)
	}
}

func TestUsersEndpoint(t *testing.T) {
	setRouteEnv(t)
	group := int64(18)
	src := &stubSource{users: []domain.User{{ID: 1, Name: "Ana", GroupID: &group}}}
	app := newTestApp(t, src)

	for _, path := range []string{"/api/users", "/api/v2/users", "/api/tickets/users"} {
		resp, err := app.Test(authedRequest(http.MethodGet, path, ""))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode, path)

		body := decodeBody(t, resp)
		users := body["users"].([]any)
		require.Len(t, users, 1)
		assert.Equal(t, "Ana", users[0].(map[string]any)["name"])
	}
}

func TestExportLastBeforeAnyExport(t *testing.T) {
	setRouteEnv(t)
	app := newTestApp(t, &stubSource{})

	resp, err := app.Test(authedRequest(http.MethodGet, "/api/tickets/export/last", ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "No export metadata found", body["detail"])
}

func TestExportFlow(t *testing.T) {
	setRouteEnv(t)
	src := &stubSource{tickets: []domain.Ticket{
		{ID: "1", Status: "open", CreatedAt: "2025-03-01T10:00:00Z"},
	}}
	app := newTestApp(t, src)

	resp, err := app.Test(authedRequest(http.MethodPost, "/api/tickets/export", ""), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "https://sharepoint.example/report.xlsx", body["sharepointUrl"])
	assert.Equal(t, "Ticket Breakdown 3.14.2025.xlsx", body["filename"])

	resp, err = app.Test(authedRequest(http.MethodGet, "/api/tickets/export/last", ""))
	require.NoError(t, err)
	body = decodeBody(t, resp)
	assert.Equal(t, true, body["ok"])
	meta := body["meta"].(map[string]any)
	assert.Equal(t, "Ticket Breakdown 3.14.2025.xlsx", meta["filename"])
	assert.Equal(t, float64(1), meta["rows"])
}
