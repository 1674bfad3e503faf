package api

import (
	"errors"
	"log/slog"
	"net/http"

	fleetDomain "github.com/felixgeelhaar/convoy/internal/fleet/domain"
	"github.com/felixgeelhaar/convoy/internal/routing/domain"
	"github.com/felixgeelhaar/convoy/internal/shared/infrastructure/resilience"
)

// APIError is the JSON error body.
type APIError struct {
	Status   int      `json:"-"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Required []string `json:"required,omitempty"`
	Current  string   `json:"current,omitempty"`
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}

func badRequest(message string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: "bad_request", Message: message}
}

// toAPIError maps a handler error onto a status and code.
func toAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var precondition *domain.PreconditionError
	switch {
	case errors.As(err, &precondition):
		required := make([]string, len(precondition.Required))
		for i, s := range precondition.Required {
			required[i] = string(s)
		}
		return &APIError{
			Status:   http.StatusConflict,
			Code:     "precondition_failed",
			Message:  precondition.Error(),
			Required: required,
			Current:  string(precondition.Current),
		}
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, fleetDomain.ErrNotFound):
		return &APIError{Status: http.StatusNotFound, Code: "not_found", Message: err.Error()}
	case errors.Is(err, domain.ErrConcurrentModification):
		return &APIError{
			Status:  http.StatusConflict,
			Code:    "concurrent_modification",
			Message: "someone else just changed this route, please refresh",
		}
	case errors.Is(err, domain.ErrRouteExists):
		return &APIError{Status: http.StatusConflict, Code: "route_exists", Message: err.Error()}
	case errors.Is(err, domain.ErrInvalidStopState):
		return &APIError{Status: http.StatusConflict, Code: "invalid_stop_state", Message: err.Error()}
	case errors.Is(err, domain.ErrPreconditionFailed):
		return &APIError{Status: http.StatusConflict, Code: "precondition_failed", Message: err.Error()}
	case errors.Is(err, domain.ErrInvalidOrdering):
		return &APIError{Status: http.StatusUnprocessableEntity, Code: "invalid_ordering", Message: err.Error()}
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, fleetDomain.ErrInactive),
		errors.Is(err, fleetDomain.ErrInvalidRecord):
		return &APIError{Status: http.StatusBadRequest, Code: "validation_failed", Message: err.Error()}
	case errors.Is(err, resilience.ErrUnavailable):
		return &APIError{Status: http.StatusServiceUnavailable, Code: "dependency_unavailable", Message: "the fleet directory is unavailable"}
	default:
		return &APIError{Status: http.StatusInternalServerError, Code: "internal_error", Message: "Internal server error"}
	}
}

func (h *RouteHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := toAPIError(err)
	level := slog.LevelWarn
	if apiErr.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"code", apiErr.Code,
		"error", err,
	)
	writeJSON(w, apiErr.Status, apiErr)
}
