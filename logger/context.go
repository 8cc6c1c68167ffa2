package logger

import "context"

const (
	correlationKey = "correlation_id"
	sessionKey     = "session_id"
)

type ctxKey int

const (
	correlationIDKey ctxKey = iota
	sessionIDKey
)

// WithCorrelationID stores the request correlation id in ctx
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationID returns the id stored by WithCorrelationID, or ""
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}

// WithSessionID stores the chat session id in ctx
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionID returns the id stored by WithSessionID, or ""
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey).(string)
	return id
}

// Details copies kv and adds the correlation and session ids found in ctx.
func Details(ctx context.Context, kv map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(kv)+2)
	for k, v := range kv {
		out[k] = v
	}
	if id := CorrelationID(ctx); id != "" {
		out[correlationKey] = id
	}
	if id := SessionID(ctx); id != "" {
		out[sessionKey] = id
	}
	return out
}
