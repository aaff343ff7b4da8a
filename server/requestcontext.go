package server

import (
	"context"

	"github.com/google/uuid"
)

// logRequestKey namespaces the context values a request carries for logging,
// matching the teacher's own unexported key type in server/server.go so a
// request ID never collides with a value set by an unrelated package.
type logRequestKey string

const (
	requestKeyRequestID logRequestKey = "request_id"
	requestKeyRemoteIP  logRequestKey = "client_remote_addr"
)

func withRequestID(ctx context.Context) context.Context {
	return context.WithValue(ctx, requestKeyRequestID, uuid.NewString())
}

func withRemoteIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, requestKeyRemoteIP, ip)
}

func requestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(requestKeyRequestID).(string)
	return v
}

func remoteIPFromContext(ctx context.Context) string {
	v, _ := ctx.Value(requestKeyRemoteIP).(string)
	return v
}

// RequestIDFromContext exports requestIDFromContext for cmd/authd's logging
// handler, mirroring the teacher's cmd/dex/logger.go reading the server
// package's context keys directly.
func RequestIDFromContext(ctx context.Context) string { return requestIDFromContext(ctx) }

// RemoteIPFromContext exports remoteIPFromContext for cmd/authd's logging
// handler.
func RemoteIPFromContext(ctx context.Context) string { return remoteIPFromContext(ctx) }
