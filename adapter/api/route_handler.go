package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	internalApp "github.com/felixgeelhaar/convoy/internal/app"
	"github.com/felixgeelhaar/convoy/internal/routing/application/commands"
	"github.com/felixgeelhaar/convoy/internal/routing/application/queries"
	"github.com/felixgeelhaar/convoy/internal/routing/domain"
)

const (
	headerOperator    = "X-Operator-ID"
	headerIfMatch     = "If-Match"
	headerCorrelation = "X-Correlation-ID"

	maxBodyBytes = 1 << 20
)

// RouteHandler handles route API requests.
type RouteHandler struct {
	c      *internalApp.Container
	logger *slog.Logger
}

// NewRouteHandler creates a route handler over the container's handlers.
func NewRouteHandler(c *internalApp.Container, logger *slog.Logger) *RouteHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RouteHandler{c: c, logger: logger}
}

// ListRoutes handles GET /routes?date=YYYY-MM-DD
func (h *RouteHandler) ListRoutes(w http.ResponseWriter, r *http.Request) {
	date := time.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			h.writeError(w, r, badRequest("date must be YYYY-MM-DD"))
			return
		}
		date = parsed
	}

	routes, err := h.c.ListRoutesByDateHandler.Handle(r.Context(), queries.ListRoutesByDateQuery{Date: date})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, routes)
}

// CreateRoute handles POST /routes
func (h *RouteHandler) CreateRoute(w http.ResponseWriter, r *http.Request) {
	actor, err := operatorID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req commands.RoutePlanRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	cmd, err := req.Command(actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	route, err := h.c.CreateRouteHandler.Handle(r.Context(), cmd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeRoute(w, http.StatusCreated, route)
}

// GetRoute handles GET /routes/{routeID}
func (h *RouteHandler) GetRoute(w http.ResponseWriter, r *http.Request) {
	routeID, err := pathID(r, "routeID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	route, err := h.c.GetRouteHandler.Handle(r.Context(), queries.GetRouteQuery{RouteID: routeID})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeRoute(w, http.StatusOK, route)
}

// DeleteRoute handles DELETE /routes/{routeID}
func (h *RouteHandler) DeleteRoute(w http.ResponseWriter, r *http.Request) {
	m, ok := h.mutation(w, r, "routeID")
	if !ok {
		return
	}
	if err := h.c.DeleteRouteHandler.Handle(r.Context(), commands.DeleteRouteCommand{
		RouteID:         m.id,
		Actor:           m.actor,
		ExpectedVersion: m.version,
	}); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type stopOrderRequest struct {
	Order []struct {
		StopID   uuid.UUID `json:"stop_id"`
		Position int       `json:"position"`
	} `json:"order"`
}

// ReorderStops handles PUT /routes/{routeID}/stops/order
func (h *RouteHandler) ReorderStops(w http.ResponseWriter, r *http.Request) {
	m, ok := h.mutation(w, r, "routeID")
	if !ok {
		return
	}
	var req stopOrderRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	order := make([]domain.StopPosition, len(req.Order))
	for i, o := range req.Order {
		order[i] = domain.StopPosition{StopID: o.StopID, Position: o.Position}
	}

	route, err := h.c.ReorderStopsHandler.Handle(r.Context(), commands.ReorderStopsCommand{
		RouteID:         m.id,
		Order:           order,
		Actor:           m.actor,
		ExpectedVersion: m.version,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeRoute(w, http.StatusOK, route)
}

// ChangeStatus handles POST /routes/{routeID}/status
func (h *RouteHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	m, ok := h.mutation(w, r, "routeID")
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	status, err := domain.ParseStatus(req.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	route, err := h.c.ChangeRouteStatusHandler.Handle(r.Context(), commands.ChangeRouteStatusCommand{
		RouteID:         m.id,
		Status:          status,
		Actor:           m.actor,
		ExpectedVersion: m.version,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeRoute(w, http.StatusOK, route)
}

// ReassignDriver handles PUT /routes/{routeID}/driver. A null driver_id
// clears the assignment.
func (h *RouteHandler) ReassignDriver(w http.ResponseWriter, r *http.Request) {
	m, ok := h.mutation(w, r, "routeID")
	if !ok {
		return
	}
	var req struct {
		DriverID *uuid.UUID `json:"driver_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	route, err := h.c.ReassignDriverHandler.Handle(r.Context(), commands.ReassignDriverCommand{
		RouteID:         m.id,
		DriverID:        req.DriverID,
		Actor:           m.actor,
		ExpectedVersion: m.version,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeRoute(w, http.StatusOK, route)
}

// ReassignVehicle handles PUT /routes/{routeID}/vehicle
func (h *RouteHandler) ReassignVehicle(w http.ResponseWriter, r *http.Request) {
	m, ok := h.mutation(w, r, "routeID")
	if !ok {
		return
	}
	var req struct {
		VehicleID *uuid.UUID `json:"vehicle_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	route, err := h.c.ReassignVehicleHandler.Handle(r.Context(), commands.ReassignVehicleCommand{
		RouteID:         m.id,
		VehicleID:       req.VehicleID,
		Actor:           m.actor,
		ExpectedVersion: m.version,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeRoute(w, http.StatusOK, route)
}

// CreateSeries handles POST /routes/{routeID}/series
func (h *RouteHandler) CreateSeries(w http.ResponseWriter, r *http.Request) {
	m, ok := h.mutation(w, r, "routeID")
	if !ok {
		return
	}
	var req struct {
		Pattern string `json:"pattern"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.c.CreateSeriesHandler.Handle(r.Context(), commands.CreateSeriesCommand{
		RouteID:         m.id,
		Pattern:         req.Pattern,
		Actor:           m.actor,
		ExpectedVersion: m.version,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// GetDelays handles GET /routes/{routeID}/delays?at=RFC3339
func (h *RouteHandler) GetDelays(w http.ResponseWriter, r *http.Request) {
	routeID, err := pathID(r, "routeID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	q := queries.GetDelaySummaryQuery{RouteID: routeID}
	if raw := r.URL.Query().Get("at"); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.writeError(w, r, badRequest("at must be an RFC 3339 timestamp"))
			return
		}
		q.At = &at
	}

	summary, err := h.c.GetDelaySummaryHandler.Handle(r.Context(), q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, queries.NewDelaySummaryDTO(summary))
}

// ListFlags handles GET /routes/{routeID}/flags?all=true
func (h *RouteHandler) ListFlags(w http.ResponseWriter, r *http.Request) {
	routeID, err := pathID(r, "routeID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	all, _ := strconv.ParseBool(r.URL.Query().Get("all"))

	flags, err := h.c.ListReviewFlagsHandler.Handle(r.Context(), queries.ListReviewFlagsQuery{
		RouteID:        routeID,
		IncludeCleared: all,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, flags)
}

// ClearFlag handles DELETE /routes/{routeID}/flags/{flagID}
func (h *RouteHandler) ClearFlag(w http.ResponseWriter, r *http.Request) {
	m, ok := h.mutation(w, r, "routeID")
	if !ok {
		return
	}
	flagID, err := pathID(r, "flagID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	flag, err := h.c.ClearReviewFlagHandler.Handle(r.Context(), commands.ClearReviewFlagCommand{
		RouteID:         m.id,
		FlagID:          flagID,
		Actor:           m.actor,
		ExpectedVersion: m.version,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, flag)
}

// RecordOutcome handles POST /stops/{stopID}/outcome
func (h *RouteHandler) RecordOutcome(w http.ResponseWriter, r *http.Request) {
	m, ok := h.mutation(w, r, "stopID")
	if !ok {
		return
	}
	var req struct {
		Outcome    string     `json:"outcome"`
		Notes      string     `json:"notes"`
		ActualTime *time.Time `json:"actual_time"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	outcome, err := domain.ParseOutcome(req.Outcome)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	stop, err := h.c.RecordStopOutcomeHandler.Handle(r.Context(), commands.RecordStopOutcomeCommand{
		StopID:          m.id,
		Outcome:         outcome,
		Notes:           req.Notes,
		ActualTime:      req.ActualTime,
		Actor:           m.actor,
		ExpectedVersion: m.version,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stop)
}

// CancelStop handles POST /stops/{stopID}/cancel
func (h *RouteHandler) CancelStop(w http.ResponseWriter, r *http.Request) {
	m, ok := h.mutation(w, r, "stopID")
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	stop, err := h.c.CancelStopHandler.Handle(r.Context(), commands.CancelStopCommand{
		StopID:          m.id,
		Reason:          req.Reason,
		Actor:           m.actor,
		ExpectedVersion: m.version,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stop)
}

// AbsenceCancelled handles POST /absences/{absenceID}/cancellation. Stops
// that could not be processed are reported alongside the error.
func (h *RouteHandler) AbsenceCancelled(w http.ResponseWriter, r *http.Request) {
	m, ok := h.mutation(w, r, "absenceID")
	if !ok {
		return
	}
	var req struct {
		ChildID            uuid.UUID        `json:"child_id"`
		Reason             string           `json:"reason"`
		AffectedRouteStops []domain.StopRef `json:"affected_route_stops"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.c.PropagateAbsenceHandler.Handle(r.Context(), commands.PropagateAbsenceCancellationCommand{
		AbsenceID:     m.id,
		ChildID:       req.ChildID,
		Reason:        req.Reason,
		AffectedStops: req.AffectedRouteStops,
		Actor:         m.actor,
	})
	switch {
	case err != nil && result == nil:
		h.writeError(w, r, err)
	case err != nil:
		h.logger.WarnContext(r.Context(), "absence cancellation partially applied", "error", err)
		writeJSON(w, http.StatusMultiStatus, map[string]any{"result": result, "error": err.Error()})
	default:
		writeJSON(w, http.StatusOK, result)
	}
}

// mutationTarget is what every mutating endpoint reads from the request.
type mutationTarget struct {
	id      uuid.UUID
	actor   uuid.UUID
	version *int
}

func (h *RouteHandler) mutation(w http.ResponseWriter, r *http.Request, param string) (mutationTarget, bool) {
	var m mutationTarget
	var err error
	if m.id, err = pathID(r, param); err == nil {
		if m.actor, err = operatorID(r); err == nil {
			m.version, err = ifMatch(r)
		}
	}
	if err != nil {
		h.writeError(w, r, err)
		return m, false
	}
	return m, true
}

func pathID(r *http.Request, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		return uuid.Nil, badRequest("invalid " + strings.TrimSuffix(param, "ID") + " ID")
	}
	return id, nil
}

func operatorID(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get(headerOperator)
	if raw == "" {
		return uuid.Nil, badRequest(headerOperator + " header is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, badRequest(headerOperator + " must be a UUID")
	}
	return id, nil
}

// ifMatch reads the optional expected version. Quoted ETags are accepted.
func ifMatch(r *http.Request) (*int, error) {
	raw := strings.Trim(strings.TrimPrefix(r.Header.Get(headerIfMatch), "W/"), `"`)
	if raw == "" || raw == "*" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return nil, badRequest(headerIfMatch + " must be a route version")
	}
	return &v, nil
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("request body is required")
		}
		return badRequest("invalid JSON body: " + err.Error())
	}
	return nil
}

func writeRoute(w http.ResponseWriter, status int, route *queries.RouteDTO) {
	w.Header().Set("ETag", strconv.Quote(strconv.Itoa(route.Version)))
	writeJSON(w, status, route)
}
