package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"intranet-portal/pkg/audit"
)

// AuditSink writes audit events to the audit_log table. It is meant to sit
// behind an audit.Writer.
type AuditSink struct {
	db *sql.DB
}

// NewAuditSink creates a sink on db.
func NewAuditSink(db *sql.DB) *AuditSink {
	return &AuditSink{db: db}
}

// Write inserts event.
func (s *AuditSink) Write(ctx context.Context, event audit.Event) error {
	metadata := event.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	payload, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encode audit metadata: %w", err)
	}

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var actor sql.NullInt64
	if event.ActorID > 0 {
		actor = sql.NullInt64{Int64: event.ActorID, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_log (event_type, message, actor_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		event.Type, event.Message, actor, string(payload), createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Name returns "postgres".
func (s *AuditSink) Name() string {
	return "postgres"
}
