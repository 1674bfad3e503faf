package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fleetDomain "github.com/felixgeelhaar/convoy/internal/fleet/domain"
	internalApp "github.com/felixgeelhaar/convoy/internal/app"
	"github.com/felixgeelhaar/convoy/internal/routing/application/commands"
	"github.com/felixgeelhaar/convoy/internal/routing/application/queries"
	"github.com/felixgeelhaar/convoy/internal/routing/domain"
	"github.com/felixgeelhaar/convoy/internal/shared/infrastructure/resilience"
	"github.com/felixgeelhaar/convoy/pkg/config"
	"github.com/felixgeelhaar/convoy/pkg/observability"
)

var (
	operator = uuid.MustParse("00000000-0000-0000-0000-0000000000aa")
	day      = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
)

type testServer struct {
	t       *testing.T
	handler http.Handler
	c       *internalApp.Container
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := internalApp.NewContainer(context.Background(), &config.Config{
		AppEnv:             "test",
		DatabaseDriver:     "sqlite",
		SQLitePath:         filepath.Join(t.TempDir(), "api.db"),
		DelayThreshold:     5 * time.Minute,
		AutoCompleteRoutes: true,
		RouteLockTTL:       10 * time.Second,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	cfg := DefaultServerConfig()
	cfg.Metrics = c.Metrics
	srv := NewServer(cfg, NewRouteHandler(c, logger), c.Health, logger)
	return &testServer{t: t, handler: srv.Handler(), c: c}
}

func (s *testServer) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerOperator, operator.String())
	for i := 0; i+1 < len(headers); i += 2 {
		if headers[i+1] == "" {
			req.Header.Del(headers[i])
			continue
		}
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) createRoute(withDriver bool) queries.RouteDTO {
	s.t.Helper()
	plan := commands.RoutePlanRequest{
		Name:           "Morning run",
		ServiceDate:    "2025-03-03",
		EstimatedStart: day.Add(7 * time.Hour),
		EstimatedEnd:   day.Add(9 * time.Hour),
	}
	if withDriver {
		driver := fleetDomain.Driver{ID: uuid.New(), Name: "Ana", Active: true}
		require.NoError(s.t, s.c.FleetStore.SaveDriver(context.Background(), driver))
		plan.DriverID = &driver.ID
	}
	for i := 1; i <= 3; i++ {
		plan.Stops = append(plan.Stops, commands.StopRequest{
			ChildID:       uuid.New(),
			ScheduleID:    uuid.New(),
			Type:          "PICKUP",
			Position:      i,
			Address:       commands.AddressRequest{Line1: fmt.Sprintf("Rua %d", i), City: "Lisboa"},
			EstimatedTime: day.Add(7*time.Hour + time.Duration(i*15)*time.Minute),
		})
	}

	rec := s.do(http.MethodPost, "/routes", plan)
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[queries.RouteDTO](s.t, rec)
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/healthz", nil).Code)

	rec := s.do(http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "database")
}

func TestCreateAndGetRoute(t *testing.T) {
	s := newTestServer(t)
	created := s.createRoute(true)
	assert.Equal(t, "PLANNED", created.Status)
	assert.Len(t, created.Stops, 3)

	rec := s.do(http.MethodGet, "/routes/"+created.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `"1"`, rec.Header().Get("ETag"))
	got := decode[queries.RouteDTO](t, rec)
	assert.Equal(t, "Ana", got.DriverName)
	assert.Contains(t, got.Capabilities, string(domain.OpReorderStops))

	rec = s.do(http.MethodGet, "/routes?date=2025-03-03", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]queries.RouteSummaryDTO](t, rec), 1)
}

func TestCreateRouteWithoutDriverStartsDriverMissing(t *testing.T) {
	s := newTestServer(t)
	created := s.createRoute(false)
	assert.Equal(t, "DRIVER_MISSING", created.Status)

	rec := s.do(http.MethodPost, "/routes/"+created.ID.String()+"/status", map[string]string{"status": "IN_PROGRESS"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "precondition_failed", decode[APIError](t, rec).Code)
}

func TestReorderStops(t *testing.T) {
	s := newTestServer(t)
	created := s.createRoute(true)
	path := "/routes/" + created.ID.String() + "/stops/order"

	order := func(ids ...uuid.UUID) map[string]any {
		entries := make([]map[string]any, len(ids))
		for i, id := range ids {
			entries[i] = map[string]any{"stop_id": id, "position": i + 1}
		}
		return map[string]any{"order": entries}
	}
	a, b, c := created.Stops[0].ID, created.Stops[1].ID, created.Stops[2].ID

	t.Run("permutation", func(t *testing.T) {
		rec := s.do(http.MethodPut, path, order(c, a, b), headerIfMatch, `"1"`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		got := decode[queries.RouteDTO](t, rec)
		assert.Equal(t, c, got.Stops[0].ID)
		assert.Equal(t, 2, got.Version)
	})

	t.Run("stale version", func(t *testing.T) {
		rec := s.do(http.MethodPut, path, order(a, b, c), headerIfMatch, "1")
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "concurrent_modification", decode[APIError](t, rec).Code)
	})

	t.Run("missing stop", func(t *testing.T) {
		rec := s.do(http.MethodPut, path, order(a, b))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "invalid_ordering", decode[APIError](t, rec).Code)
	})

	t.Run("no operator", func(t *testing.T) {
		rec := s.do(http.MethodPut, path, order(a, b, c), headerOperator, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestExecuteRoute(t *testing.T) {
	s := newTestServer(t)
	created := s.createRoute(true)
	routePath := "/routes/" + created.ID.String()

	rec := s.do(http.MethodPost, routePath+"/status", map[string]string{"status": "in-progress"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for i, stop := range created.Stops {
		body := map[string]any{"outcome": "COMPLETED"}
		if i == 1 {
			body = map[string]any{"outcome": "NO_SHOW", "notes": "nobody home"}
		}
		rec = s.do(http.MethodPost, "/stops/"+stop.ID.String()+"/outcome", body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	got := decode[queries.RouteDTO](t, s.do(http.MethodGet, routePath, nil))
	assert.Equal(t, "COMPLETED", got.Status)

	rec = s.do(http.MethodPost, "/stops/"+created.Stops[0].ID.String()+"/outcome", map[string]string{"outcome": "REFUSED"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodGet, routePath+"/delays?at=2025-03-03T08:00:00Z", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAbsenceCancellationRaisesFlags(t *testing.T) {
	s := newTestServer(t)
	created := s.createRoute(true)
	stopID := created.Stops[0].ID

	rec := s.do(http.MethodPost, "/stops/"+stopID.String()+"/cancel", map[string]string{"reason": "absent"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := map[string]any{
		"affected_route_stops": []domain.StopRef{{RouteID: created.ID, StopID: stopID}},
	}
	rec = s.do(http.MethodPost, "/absences/"+uuid.NewString()+"/cancellation", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[commands.PropagationResult](t, rec).Flagged, 1)

	flags := decode[[]queries.ReviewFlagDTO](t, s.do(http.MethodGet, "/routes/"+created.ID.String()+"/flags", nil))
	require.Len(t, flags, 1)

	rec = s.do(http.MethodDelete, "/routes/"+created.ID.String()+"/flags/"+flags[0].ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, decode[queries.ReviewFlagDTO](t, rec).Open)
}

func TestDeleteRoute(t *testing.T) {
	s := newTestServer(t)
	created := s.createRoute(true)
	path := "/routes/" + created.ID.String()

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, path, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, path, nil).Code)
}

func TestToAPIError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrRouteNotFound, http.StatusNotFound, "not_found"},
		{fleetDomain.ErrDriverNotFound, http.StatusNotFound, "not_found"},
		{domain.ErrInvalidStopState, http.StatusConflict, "invalid_stop_state"},
		{domain.ErrDriverRequired, http.StatusConflict, "precondition_failed"},
		{fmt.Errorf("%w: 7f1c", domain.ErrRouteExists), http.StatusConflict, "route_exists"},
		{domain.ErrReasonRequired, http.StatusBadRequest, "validation_failed"},
		{fmt.Errorf("lookup: %w", resilience.ErrUnavailable), http.StatusServiceUnavailable, "dependency_unavailable"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got := toAPIError(tt.err)
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.code, got.Code)
		})
	}

	precondition := toAPIError(&domain.PreconditionError{
		Operation: domain.OpReorderStops,
		Required:  []domain.Status{domain.StatusPlanned, domain.StatusDriverMissing},
		Current:   domain.StatusInProgress,
	})
	assert.Equal(t, []string{"PLANNED", "DRIVER_MISSING"}, precondition.Required)
	assert.Equal(t, "IN_PROGRESS", precondition.Current)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	route := s.createRoute(true)

	rec := s.do(http.MethodGet, "/routes/"+route.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/metricz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[observability.Snapshot](t, rec)

	var gets, posts int64
	for key, n := range snap.Counters {
		if !strings.HasPrefix(key, observability.MetricHTTPRequests+"{") {
			continue
		}
		assert.NotContains(t, key, route.ID.String(), "requests are grouped by route pattern")
		switch {
		case strings.Contains(key, "method=GET") && strings.Contains(key, "{routeID}") && strings.Contains(key, "status=2xx"):
			gets += n
		case strings.Contains(key, "method=POST") && strings.Contains(key, "status=2xx"):
			posts += n
		}
	}
	assert.Equal(t, int64(1), gets)
	assert.Equal(t, int64(1), posts)
}
