package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the emergency_logs and session_audit_trail
// tables. Execute it via [PostgresStore.Migrate] or apply it manually during
// deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS emergency_logs (
    id                 UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    call_reference     TEXT NOT NULL UNIQUE,
    session_id         TEXT NOT NULL,
    transcription      TEXT NOT NULL,
    emergency_type     TEXT NOT NULL,
    severity           TEXT NOT NULL,
    response_message   TEXT NOT NULL DEFAULT '',
    immediate_actions  JSONB NOT NULL DEFAULT '[]',
    location           JSONB,
    ai_confidence      DOUBLE PRECISION NOT NULL DEFAULT 0,
    ai_model_used      TEXT NOT NULL DEFAULT '',
    processing_time_ms BIGINT NOT NULL DEFAULT 0,
    language_detected  TEXT NOT NULL DEFAULT '',
    fallback_used      BOOLEAN NOT NULL DEFAULT false,
    tts_success        BOOLEAN NOT NULL DEFAULT false,
    client_ip          TEXT NOT NULL DEFAULT '',
    user_agent         TEXT NOT NULL DEFAULT '',
    platform           TEXT NOT NULL DEFAULT 'web',
    status             TEXT NOT NULL DEFAULT 'processed',
    created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_emergency_logs_session ON emergency_logs(session_id);
CREATE INDEX IF NOT EXISTS idx_emergency_logs_type ON emergency_logs(emergency_type);

CREATE TABLE IF NOT EXISTS session_audit_trail (
    id                UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    session_id        TEXT NOT NULL,
    event_type        TEXT NOT NULL,
    event_description TEXT NOT NULL DEFAULT '',
    event_data        JSONB NOT NULL DEFAULT '{}',
    duration_ms       BIGINT NOT NULL DEFAULT 0,
    success           BOOLEAN NOT NULL DEFAULT true,
    client_ip         TEXT NOT NULL DEFAULT '',
    user_agent        TEXT NOT NULL DEFAULT '',
    created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_session_audit_trail_session ON session_audit_trail(session_id);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database. Structured
// sub-fields (immediate actions, location) are serialised as JSONB.
type PostgresStore struct {
	db DB

	// now is swappable for deterministic call references in tests.
	now func() time.Time
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new [PostgresStore] that uses the given database
// connection or pool. The caller is responsible for calling
// [PostgresStore.Migrate] to ensure the schema exists before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// Migrate executes the [Schema] DDL against the database, creating the
// tables and indexes if they do not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, Schema)
	if err != nil {
		return fmt.Errorf("audit: migrate: %w", err)
	}
	return nil
}

// InsertEmergency implements Store.
func (s *PostgresStore) InsertEmergency(ctx context.Context, e *Entry) (*Receipt, error) {
	actionsJSON, err := json.Marshal(emptySlice(e.Classification.ImmediateActions))
	if err != nil {
		return nil, fmt.Errorf("audit: marshal immediate_actions: %w", err)
	}
	var locationJSON []byte
	if e.Location != nil {
		locationJSON, err = json.Marshal(e.Location)
		if err != nil {
			return nil, fmt.Errorf("audit: marshal location: %w", err)
		}
	}

	ref := NewCallReference(s.now())

	const query = `
		INSERT INTO emergency_logs (
			call_reference, session_id, transcription, emergency_type, severity,
			response_message, immediate_actions, location, ai_confidence,
			ai_model_used, processing_time_ms, language_detected,
			fallback_used, tts_success, client_ip, user_agent
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		RETURNING id`

	var id string
	err = s.db.QueryRow(ctx, query,
		ref, e.SessionID, e.Transcript,
		string(e.Classification.EmergencyType), string(e.Classification.Severity),
		e.Classification.ResponseMessage, actionsJSON, locationJSON,
		e.Classification.ConfidenceScore, e.ModelUsed,
		e.ProcessingTime.Milliseconds(), e.LanguageDetected,
		e.FallbackUsed, e.TTSSuccess, e.Client.IP, e.Client.UserAgent,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("audit: insert emergency: %w", err)
	}

	return &Receipt{EmergencyID: id, CallReference: ref}, nil
}

// InsertTrailEvent implements Store.
func (s *PostgresStore) InsertTrailEvent(ctx context.Context, ev *TrailEvent) error {
	dataJSON, err := json.Marshal(emptyMap(ev.Data))
	if err != nil {
		return fmt.Errorf("audit: marshal event_data: %w", err)
	}

	const query = `
		INSERT INTO session_audit_trail (
			session_id, event_type, event_description, event_data,
			duration_ms, success, client_ip, user_agent
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = s.db.Exec(ctx, query,
		ev.SessionID, ev.EventType, ev.Description, dataJSON,
		ev.Duration.Milliseconds(), ev.Success, ev.Client.IP, ev.Client.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("audit: insert trail event: %w", err)
	}
	return nil
}

// emptySlice returns s if non-nil, otherwise an empty non-nil slice. This
// ensures JSON marshalling produces "[]" instead of "null".
func emptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// emptyMap returns m if non-nil, otherwise an empty non-nil map. This ensures
// JSON marshalling produces "{}" instead of "null".
func emptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
