package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oaps-analytics/zendesk-reporting/internal/domain"
)

type stubResolution struct {
	metrics      map[int64]string
	metricsErr   error
	audits       map[int64]string
	auditsErr    error
	metricsCalls int
	auditCalls   int
}

func (s *stubResolution) MetricsSolvedAt(_ context.Context, ticketID int64) (string, error) {
	s.metricsCalls++
	return s.metrics[ticketID], s.metricsErr
}

func (s *stubResolution) LastResolutionFromAudits(_ context.Context, ticketID int64) (string, error) {
	s.auditCalls++
	return s.audits[ticketID], s.auditsErr
}

type mapCache struct {
	values map[int64]string
	sets   int
}

func (c *mapCache) GetResolvedAt(_ context.Context, ticketID int64) (string, bool) {
	v, ok := c.values[ticketID]
	return v, ok
}

func (c *mapCache) SetResolvedAt(_ context.Context, ticketID int64, resolvedAt string) {
	c.values[ticketID] = resolvedAt
	c.sets++
}

func TestAgeBucket(t *testing.T) {
	cases := []struct {
		days int
		want string
	}{
		{0, domain.BucketUnder10},
		{10, domain.BucketUnder10},
		{11, domain.BucketOver10},
		{20, domain.BucketOver10},
		{21, domain.BucketOver20},
		{30, domain.BucketOver20},
		{31, domain.BucketOver30},
		{365, domain.BucketOver30},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, AgeBucket(tc.days), "days=%d", tc.days)
	}
}

func TestParseISO(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	aware, ok := ParseISO("2024-05-01T14:00:00Z", loc)
	require.True(t, ok)
	assert.Equal(t, 10, aware.Hour(), "aware timestamps convert into the report zone")

	naive, ok := ParseISO("2024-05-01T14:00:00", loc)
	require.True(t, ok)
	assert.Equal(t, 14, naive.Hour(), "naive timestamps are taken as already local")
	assert.Equal(t, loc, naive.Location())

	dateOnly, ok := ParseISO("2024-05-01", loc)
	require.True(t, ok)
	assert.Equal(t, 0, dateOnly.Hour())

	_, ok = ParseISO("yesterday-ish", loc)
	assert.False(t, ok)
}

func TestBuildStatusMap(t *testing.T) {
	tickets := []domain.Ticket{
		{ID: "101", Status: "open", UpdatedAt: "2024-05-01T10:00:00Z"},
		{ID: "abc", Status: "solved"},
		{ID: "101", Status: "solved", UpdatedAt: "2024-05-02T10:00:00Z"},
	}
	m := BuildStatusMap(tickets)

	require.Len(t, m, 1, "non-digit ids are dropped")
	require.Contains(t, m, int64(101))
	assert.Equal(t, "solved", m[101].Status, "duplicate ids keep the last occurrence")
	assert.Equal(t, "2024-05-02T10:00:00Z", m[101].UpdatedAt)
}

func TestEnrichResolutionTimes(t *testing.T) {
	src := &stubResolution{
		metrics: map[int64]string{1: "2024-05-01T10:00:00Z"},
		audits:  map[int64]string{2: "2024-05-02T11:00:00Z"},
	}
	cache := &mapCache{values: map[int64]string{}}
	enricher := &Enricher{Source: src, Cache: cache, Logger: zap.NewNop()}

	statusMap := domain.StatusMap{
		1: {Status: "solved"},
		2: {Status: "closed"}, // no metrics value, falls back to audits
		3: {Status: "open"},
	}
	enricher.EnrichResolutionTimes(context.Background(), statusMap)

	assert.Equal(t, "2024-05-01T10:00:00Z", statusMap[1].ResolvedAt)
	assert.Equal(t, "2024-05-02T11:00:00Z", statusMap[2].ResolvedAt)
	assert.Empty(t, statusMap[3].ResolvedAt, "open tickets are never looked up")
	assert.Equal(t, 2, src.metricsCalls)
	assert.Equal(t, 1, src.auditCalls, "audits only consulted when metrics had nothing")
	assert.Equal(t, 2, cache.sets)
}

func TestEnrichResolutionTimesCacheHit(t *testing.T) {
	src := &stubResolution{}
	cache := &mapCache{values: map[int64]string{7: "2024-04-30T09:00:00Z"}}
	enricher := &Enricher{Source: src, Cache: cache, Logger: zap.NewNop()}

	statusMap := domain.StatusMap{7: {Status: "solved"}}
	enricher.EnrichResolutionTimes(context.Background(), statusMap)

	assert.Equal(t, "2024-04-30T09:00:00Z", statusMap[7].ResolvedAt)
	assert.Zero(t, src.metricsCalls, "cache hit skips the live lookups")
	assert.Zero(t, src.auditCalls)
}

func TestEnrichResolutionTimesSoftFailure(t *testing.T) {
	src := &stubResolution{
		metricsErr: errors.New("metrics down"),
		auditsErr:  errors.New("audits down"),
	}
	enricher := &Enricher{Source: src, Logger: zap.NewNop()}

	statusMap := domain.StatusMap{5: {Status: "closed", UpdatedAt: "2024-05-03T10:00:00Z"}}
	enricher.EnrichResolutionTimes(context.Background(), statusMap)

	assert.Empty(t, statusMap[5].ResolvedAt, "lookup failures leave the entry unresolved")
}

func TestBuildTicketRows(t *testing.T) {
	now := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)
	clock := fixedClock(t, now)
	window := domain.MeetingWindow{
		Start: time.Date(2024, 5, 8, 0, 0, 0, 0, time.UTC),
		End:   now,
	}

	tickets := []domain.Ticket{
		{ID: "1", Subject: "aging", Status: "OPEN", CreatedAt: "2024-04-10T12:00:00Z"},
		{ID: "2", Subject: "fresh", Status: "open", CreatedAt: "2024-05-14T12:00:00Z"},
		{ID: "3", Subject: "resolved in window", Status: "solved", CreatedAt: "2024-05-01T12:00:00Z"},
		{ID: "4", Subject: "resolved before window", Status: "closed", CreatedAt: "2024-04-01T12:00:00Z"},
		{ID: "5", Subject: "clock skew", Status: "open", CreatedAt: "2024-05-16T12:00:00Z"},
	}
	statusMap := domain.StatusMap{
		3: {Status: "solved", ResolvedAt: "2024-05-08T00:00:00Z"},
		4: {Status: "closed", UpdatedAt: "2024-05-01T10:00:00Z"},
	}

	rows := BuildTicketRows(tickets, statusMap, window, true, clock)
	require.Len(t, rows, 5)

	assert.Equal(t, 35, rows[0].AgeDays)
	assert.Equal(t, domain.BucketOver30, *rows[0].AgeBucket)
	assert.Equal(t, "open", rows[0].Status, "status is normalized to lower case")

	assert.Equal(t, 1, rows[1].AgeDays)
	assert.Equal(t, domain.BucketUnder10, *rows[1].AgeBucket)

	assert.True(t, rows[2].ClosedByMeeting, "window start is inclusive")
	assert.False(t, rows[3].ClosedByMeeting, "updated_at fallback outside the window")
	assert.Equal(t, 0, rows[4].AgeDays, "future created_at clamps to zero")

	unbucketed := BuildTicketRows(tickets, statusMap, window, false, clock)
	assert.Nil(t, unbucketed[0].AgeBucket)
	assert.Equal(t, 35, unbucketed[0].AgeDays, "raw age stays populated without buckets")
}
