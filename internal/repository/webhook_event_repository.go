package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// PostgresWebhookEventRepository implements domain.WebhookEventRepository
// using PostgreSQL. The primary key on event_id makes the dedupe decision
// atomic under concurrent deliveries of the same event.
type PostgresWebhookEventRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresWebhookEventRepository creates a new webhook event repository
func NewPostgresWebhookEventRepository(db *sql.DB, logger *slog.Logger) *PostgresWebhookEventRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresWebhookEventRepository{db: db, logger: logger}
}

// MarkProcessed records the event id and returns false when the event had
// already been recorded.
func (r *PostgresWebhookEventRepository) MarkProcessed(ctx context.Context, eventID, eventType string) (bool, error) {
	query := `
		INSERT INTO webhook_events (event_id, event_type)
		VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query, eventID, eventType)
	if err != nil {
		return false, fmt.Errorf("failed to record webhook event: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return rows == 1, nil
}

// Forget releases the claim on an event id after a failed handler.
func (r *PostgresWebhookEventRepository) Forget(ctx context.Context, eventID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM webhook_events WHERE event_id = $1`, eventID); err != nil {
		return fmt.Errorf("failed to release webhook event claim: %w", err)
	}
	return nil
}
