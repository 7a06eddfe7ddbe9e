package audit

import (
	"context"
	"log/slog"
	"time"
)

type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{logger: logger}
}

func (al *Logger) LogAction(ctx context.Context, storeID, userID, action, resource, resourceID, status, details string) {
	requestID := ""
	if reqID := ctx.Value("request_id"); reqID != nil {
		requestID = reqID.(string)
	}

	al.logger.Info("audit",
		slog.String("action", action),
		slog.String("resource", resource),
		slog.String("resource_id", resourceID),
		slog.String("store_id", storeID),
		slog.String("user_id", userID),
		slog.String("status", status),
		slog.String("details", details),
		slog.String("request_id", requestID),
		slog.Time("timestamp", time.Now()),
	)
}

func (al *Logger) LogOrderCommit(ctx context.Context, storeID, userID, orderID, status, details string) {
	al.LogAction(ctx, storeID, userID, "commit", "order", orderID, status, details)
}

func (al *Logger) LogStatusChange(ctx context.Context, storeID, userID, orderID, status, details string) {
	al.LogAction(ctx, storeID, userID, "update_status", "order", orderID, status, details)
}

func (al *Logger) LogWebhook(ctx context.Context, storeID, eventID, status, details string) {
	al.LogAction(ctx, storeID, "", "webhook", "subscription", eventID, status, details)
}

func (al *Logger) LogDenied(ctx context.Context, storeID, userID, reason string) {
	al.LogAction(ctx, storeID, userID, "access_denied", "api", "", "denied", reason)
}
