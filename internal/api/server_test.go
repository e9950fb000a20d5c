package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/direct-dispatch/internal/api/handler"
	"github.com/albapepper/direct-dispatch/internal/cache"
	"github.com/albapepper/direct-dispatch/internal/config"
	"github.com/albapepper/direct-dispatch/internal/dispatch"
	"github.com/albapepper/direct-dispatch/internal/docstore"
	"github.com/albapepper/direct-dispatch/internal/event"
	"github.com/albapepper/direct-dispatch/internal/geo"
	"github.com/albapepper/direct-dispatch/internal/notifications"
	"github.com/albapepper/direct-dispatch/internal/push"
	"github.com/albapepper/direct-dispatch/internal/schedule"
	"github.com/albapepper/direct-dispatch/internal/users"
)

const token = "s3cret"

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type testServer struct {
	docs     *docstore.Memory
	events   *event.Repository
	schedule *schedule.Index
	gateway  *push.Recorder
	deps     handler.Deps
	cfg      *config.Config
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	docs := docstore.NewMemory()
	idx := geo.NewMemory()
	dir := users.NewDirectory(docs, nil, 0, logger)
	events := event.NewRepository(docs)
	sched := schedule.NewIndex(docs)
	gateway := &push.Recorder{}
	clock := func() time.Time { return now }

	d := dispatch.New(sched, events,
		notifications.NewAudienceResolver(idx, dir, 50, 2),
		notifications.NewDeliverer(dir, gateway, sched, 2),
		nil, dispatch.Options{Now: clock}, logger)

	return &testServer{
		docs:     docs,
		events:   events,
		schedule: sched,
		gateway:  gateway,
		deps: handler.Deps{
			Runner:   d,
			Schedule: sched,
			Events:   events,
			Store:    docs,
			Cache:    cache.New(true),
			Logger:   logger,
			Now:      clock,
		},
		cfg: &config.Config{CORSAllowOrigins: []string{"*"}, DispatchToken: token},
	}
}

func (s *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	NewRouter(s.deps, s.cfg).ServeHTTP(rec, req)
	return rec
}

func (s *testServer) liveEvent(t *testing.T, id string) {
	t.Helper()
	ev := &event.Event{
		ID:             id,
		Title:          "Event " + id,
		LocationName:   "Balboa Park",
		Coordinate:     &event.Coordinate{Lat: 32.7341, Long: -117.1446},
		Categories:     event.NewCategorySet("Food"),
		StartTimeStamp: event.Seconds(now.Add(-time.Hour)),
		EndTimeStamp:   event.Seconds(now.Add(time.Hour)),
	}
	require.NoError(t, s.events.Save(context.Background(), ev))
	_, err := s.schedule.Add(context.Background(), ev)
	require.NoError(t, err)
}

func TestTriggerRequiresToken(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/dispatch/live-events", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/dispatch/live-events", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, s.do(t, req).Code)
}

func TestTriggerRunsDispatch(t *testing.T) {
	s := newTestServer(t)
	s.liveEvent(t, "e1")

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		req := httptest.NewRequest(method, "/api/v1/dispatch/live-events", nil)
		req.Header.Set("X-Dispatch-Token", token)
		rec := s.do(t, req)
		require.Equal(t, http.StatusOK, rec.Code, method)

		var res dispatch.RunResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, "2024-03-01", res.Day)
		assert.NotEmpty(t, rec.Header().Get("X-Run-ID"))
		assert.Equal(t, "0", rec.Header().Get("X-Dispatch-Failed"))
	}

	p, err := s.schedule.Load(context.Background(), "2024-03-01")
	require.NoError(t, err)
	assert.Empty(t, p.Entries, "first run retires the entry, second finds nothing")
}

type stubRunner struct {
	res *dispatch.RunResult
	err error
}

func (r stubRunner) Run(context.Context) (*dispatch.RunResult, error) { return r.res, r.err }

func TestTriggerErrorStatuses(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"overlapping run", dispatch.ErrRunInProgress, http.StatusConflict},
		{"schedule unreadable", errors.New("store offline"), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			s.deps.Runner = stubRunner{err: tt.err}
			req := httptest.NewRequest(http.MethodPost, "/api/v1/dispatch/live-events", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			assert.Equal(t, tt.status, s.do(t, req).Code)
		})
	}
}

func TestGetScheduleWithETag(t *testing.T) {
	s := newTestServer(t)
	s.liveEvent(t, "e1")

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/schedule/today", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))

	var body handler.DaySchedule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2024-03-01", body.Day)
	require.Len(t, body.Events, 1)
	assert.Equal(t, "e1", body.Events[0].EventID)
	assert.True(t, body.Events[0].Live)

	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/schedule/2024-03-01", nil)
	req.Header.Set("If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, s.do(t, req).Code)

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/schedule/2024-03-01", nil))
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
}

func TestGetScheduleRejectsBadDay(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/schedule/yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScheduleEvent(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, s.events.Save(ctx, &event.Event{
		ID: "ok", Categories: event.NewCategorySet("Food"),
		StartTimeStamp: 1000, EndTimeStamp: 2000, StartDateUTC: "2024-03-05",
	}))
	require.NoError(t, s.events.Save(ctx, &event.Event{
		ID: "backwards", Categories: event.NewCategorySet("Food"),
		StartTimeStamp: 2000, EndTimeStamp: 1000,
	}))

	tests := []struct {
		id     string
		status int
	}{
		{"ok", http.StatusCreated},
		{"backwards", http.StatusUnprocessableEntity},
		{"missing", http.StatusNotFound},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/schedule/events/"+tt.id, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		assert.Equal(t, tt.status, s.do(t, req).Code, tt.id)
	}

	p, err := s.schedule.Load(ctx, "2024-03-05")
	require.NoError(t, err)
	require.Len(t, p.Entries, 1)
	assert.Equal(t, "ok", p.Entries[0].EventID)
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealthChecks(t *testing.T) {
	s := newTestServer(t)
	s.deps.Geo = downPinger{}

	assert.Equal(t, http.StatusOK, s.do(t, httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
	assert.Equal(t, http.StatusOK, s.do(t, httptest.NewRequest(http.MethodGet, "/health/store", nil)).Code)
	assert.Equal(t, http.StatusServiceUnavailable, s.do(t, httptest.NewRequest(http.MethodGet, "/health/geo", nil)).Code)
	assert.Equal(t, http.StatusOK, s.do(t, httptest.NewRequest(http.MethodGet, "/health/cache", nil)).Code)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t)
	s.cfg.RateLimitEnabled = true
	s.cfg.RateLimitRequests = 2
	s.cfg.RateLimitWindow = time.Minute

	router := NewRouter(s.deps, s.cfg)
	codes := make([]int, 0, 2)
	for range 2 {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}
