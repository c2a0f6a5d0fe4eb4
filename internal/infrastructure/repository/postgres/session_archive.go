// Package postgres archives consultation transcripts on explicit export.
// This is not an implicit durability layer: the live session table stays in
// process memory and the archive only receives snapshots the caller asks for.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/lexgo/statute-consult/internal/core/domain"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

type SessionArchive struct {
	db *sql.DB
}

func NewSessionArchive(db *sql.DB) *SessionArchive {
	return &SessionArchive{db: db}
}

func (r *SessionArchive) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS consultation_sessions (
	session_id    TEXT PRIMARY KEY,
	current_topic TEXT NOT NULL DEFAULT '',
	last_query    TEXT NOT NULL DEFAULT '',
	message_count INT  NOT NULL DEFAULT 0,
	exported_at   TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS consultation_messages (
	session_id TEXT NOT NULL REFERENCES consultation_sessions(session_id) ON DELETE CASCADE,
	position   INT  NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TEXT NOT NULL,
	PRIMARY KEY (session_id, position)
);
`)
	if err != nil {
		return fmt.Errorf("ensure archive schema: %w", err)
	}
	return nil
}

// ExportSession replaces the archived transcript for the snapshot's session.
// Re-export is idempotent: old rows are dropped inside the same transaction.
func (r *SessionArchive) ExportSession(ctx context.Context, snapshot domain.ConversationContext) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin export: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
INSERT INTO consultation_sessions (session_id, current_topic, last_query, message_count, exported_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (session_id) DO UPDATE SET
	current_topic = EXCLUDED.current_topic,
	last_query = EXCLUDED.last_query,
	message_count = EXCLUDED.message_count,
	exported_at = EXCLUDED.exported_at
`, snapshot.SessionID, snapshot.CurrentTopic, snapshot.LastQuery, len(snapshot.History), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("export session row: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM consultation_messages WHERE session_id = $1`, snapshot.SessionID); err != nil {
		return fmt.Errorf("clear archived messages: %w", err)
	}

	for i, msg := range snapshot.History {
		_, err := tx.ExecContext(ctx, `
INSERT INTO consultation_messages (session_id, position, role, content, created_at)
VALUES ($1, $2, $3, $4, $5)
`, snapshot.SessionID, i, msg.Role, msg.Content, msg.Timestamp)
		if err != nil {
			return fmt.Errorf("export message %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit export: %w", err)
	}
	return nil
}
