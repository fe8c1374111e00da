package logging

import "context"

type callIDKey struct{}

// ContextWithCallID attaches a method-call correlation ID to ctx.
func ContextWithCallID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, callIDKey{}, id)
}

func CallIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(callIDKey{}).(string)
	return id
}

// WithContext returns a logger carrying the call ID found in ctx, if any.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if id := CallIDFromContext(ctx); id != "" {
		return l.with("call_id", id)
	}
	return l
}
