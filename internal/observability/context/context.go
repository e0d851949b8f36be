package context

import (
	stdcontext "context"
	"strings"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	serviceKey   ctxKey = "service"
)

// WithRequestID stores the inbound request id on the context.
func WithRequestID(ctx stdcontext.Context, requestID string) stdcontext.Context {
	requestID = strings.TrimSpace(requestID)
	if ctx == nil || requestID == "" {
		return ctx
	}
	return stdcontext.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx stdcontext.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithService records which downstream service the current work targets.
func WithService(ctx stdcontext.Context, service string) stdcontext.Context {
	service = strings.TrimSpace(service)
	if ctx == nil || service == "" {
		return ctx
	}
	return stdcontext.WithValue(ctx, serviceKey, service)
}

func ServiceFromContext(ctx stdcontext.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(serviceKey).(string); ok {
		return v
	}
	return ""
}
