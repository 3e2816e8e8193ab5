package context

import "context"

type ContextKey string

var (
	RequestIDKey     = ContextKey("X-Request-Id")
	CorrelationIDKey = ContextKey("X-Correlation-Id")
	SystemNameKey    = ContextKey("X-System-Name")
	UserIDKey        = ContextKey("X-User-Id")
)

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	value, ok := ctx.Value(RequestIDKey).(string)
	if !ok {
		return ""
	}
	return value
}

func SetCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, correlationID)
}

func GetCorrelationID(ctx context.Context) string {
	value, ok := ctx.Value(CorrelationIDKey).(string)
	if !ok {
		return ""
	}
	return value
}

func SetSystemName(ctx context.Context, systemName string) context.Context {
	return context.WithValue(ctx, SystemNameKey, systemName)
}

func GetSystemName(ctx context.Context) string {
	value, ok := ctx.Value(SystemNameKey).(string)
	if !ok {
		return ""
	}
	return value
}

func SetUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

func GetUserID(ctx context.Context) string {
	value, ok := ctx.Value(UserIDKey).(string)
	if !ok {
		return ""
	}
	return value
}

// LogFields returns the correlation fields present on ctx for structured logging
func LogFields(ctx context.Context) map[string]any {
	fields := map[string]any{}
	if id := GetCorrelationID(ctx); id != "" {
		fields["correlation_id"] = id
	}
	if id := GetRequestID(ctx); id != "" {
		fields["request_id"] = id
	}
	if name := GetSystemName(ctx); name != "" {
		fields["system_name"] = name
	}
	return fields
}
