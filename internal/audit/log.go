// Package audit records operator actions performed through the console.
package audit

import (
	"context"
	"errors"
	"maps"
	"strings"

	"algoshield.org/console/internal/auth"
	"algoshield.org/console/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the id of the backend call that performed the
// action, so the audit line can be joined with the API server's logs.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// LogEvent writes one audit line. The signed-in user comes from the
// context (see auth.ContextWithUser).
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	entry := map[string]any{
		"type":   "audit",
		"event":  event,
		"fields": map[string]any{},
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		entry["request_id"] = rid
	}
	if u, ok := auth.UserFromContext(ctx); ok {
		entry["user_id"] = u.ID
		if u.Email != "" {
			entry["user_email"] = u.Email
		}
	}
	if len(fields) > 0 {
		entry["fields"] = maps.Clone(fields)
	}
	obs.Info("audit", entry)
	return nil
}
