package observability

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	correlationIDCtxKey contextKey = "correlation_id"
	requestIDCtxKey     contextKey = "request_id"
	operatorIDCtxKey    contextKey = "operator_id"
	routeIDCtxKey       contextKey = "route_id"
	operationCtxKey     contextKey = "operation"
)

// Attribute keys shared by log lines and metric tags.
const (
	CorrelationIDKey = "correlation_id"
	RequestIDKey     = "request_id"
	OperatorIDKey    = "operator_id"
	RouteIDKey       = "route_id"
	OperationKey     = "operation"
	DurationKey      = "duration_ms"
	StatusKey        = "status"
)

func stringFrom(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

// WithCorrelationID ties everything done for one API call, CLI invocation
// or consumed event together. An empty id generates one.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, correlationIDCtxKey, id)
}

func CorrelationIDFromContext(ctx context.Context) string {
	return stringFrom(ctx, correlationIDCtxKey)
}

// WithRequestID records the transport-level request ID. An empty id
// generates one.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, requestIDCtxKey, id)
}

func RequestIDFromContext(ctx context.Context) string {
	return stringFrom(ctx, requestIDCtxKey)
}

// WithOperatorID records the operator acting in this request.
func WithOperatorID(ctx context.Context, operatorID string) context.Context {
	return context.WithValue(ctx, operatorIDCtxKey, operatorID)
}

func OperatorIDFromContext(ctx context.Context) string {
	return stringFrom(ctx, operatorIDCtxKey)
}

// WithRouteID scopes log lines to one route.
func WithRouteID(ctx context.Context, routeID string) context.Context {
	return context.WithValue(ctx, routeIDCtxKey, routeID)
}

func RouteIDFromContext(ctx context.Context) string {
	return stringFrom(ctx, routeIDCtxKey)
}

// WithOperation names the command being run.
func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, operationCtxKey, operation)
}

func OperationFromContext(ctx context.Context) string {
	return stringFrom(ctx, operationCtxKey)
}
