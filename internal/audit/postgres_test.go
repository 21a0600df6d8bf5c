package audit

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/protect-ng/crossai/pkg/types"
)

// ---------------------------------------------------------------------------
// Test helpers — mock DB types
// ---------------------------------------------------------------------------

// mockRow implements pgx.Row.
type mockRow struct {
	scanFunc func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error { return r.scanFunc(dest...) }

// mockDB implements the DB interface and records issued statements.
type mockDB struct {
	queryRowSQL  string
	queryRowArgs []any
	queryRowScan func(dest ...any) error

	execSQL  string
	execArgs []any
	execErr  error
}

func (db *mockDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	db.queryRowSQL = sql
	db.queryRowArgs = args
	scan := db.queryRowScan
	if scan == nil {
		scan = func(dest ...any) error {
			if p, ok := dest[0].(*string); ok {
				*p = "00000000-0000-0000-0000-000000000001"
			}
			return nil
		}
	}
	return &mockRow{scanFunc: scan}
}

func (db *mockDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

func (db *mockDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.execSQL = sql
	db.execArgs = args
	return pgconn.CommandTag{}, db.execErr
}

// ---------------------------------------------------------------------------
// Call references
// ---------------------------------------------------------------------------

func TestNewCallReference_Format(t *testing.T) {
	ref := NewCallReference(time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC))
	if matched := regexp.MustCompile(`^CR-20260829-[0-9a-f]{6}$`).MatchString(ref); !matched {
		t.Errorf("NewCallReference = %q; want CR-20260829-xxxxxx with hex suffix", ref)
	}
}

func TestNewCallReference_Unique(t *testing.T) {
	now := time.Now()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		ref := NewCallReference(now)
		if seen[ref] {
			t.Fatalf("duplicate call reference %q after %d draws", ref, i)
		}
		seen[ref] = true
	}
}

// ---------------------------------------------------------------------------
// PostgresStore
// ---------------------------------------------------------------------------

func TestPostgresStore_InsertEmergency(t *testing.T) {
	db := &mockDB{}
	s := NewPostgresStore(db)
	s.now = func() time.Time { return time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC) }

	entry := &Entry{
		SessionID:  "NG-1756400000000-a1b2c3d4e",
		Transcript: "flood don enter my house",
		Classification: types.Classification{
			EmergencyType:    types.Flooding,
			Severity:         types.SeverityMedium,
			ResponseMessage:  "Move to higher ground.",
			ImmediateActions: []string{"Switch off electricity"},
			ConfidenceScore:  0.9,
		},
		Location:         &types.Coordinate{Latitude: 6.45, Longitude: 3.39, Accuracy: 12},
		ProcessingTime:   800 * time.Millisecond,
		LanguageDetected: "pidgin",
		ModelUsed:        "gpt-4o-mini",
		TTSSuccess:       true,
		Client:           types.ClientInfo{IP: "41.2.3.4", UserAgent: "Mozilla/5.0"},
	}

	receipt, err := s.InsertEmergency(context.Background(), entry)
	if err != nil {
		t.Fatalf("InsertEmergency: %v", err)
	}

	if !strings.Contains(db.queryRowSQL, "INSERT INTO emergency_logs") {
		t.Errorf("statement does not target emergency_logs: %s", db.queryRowSQL)
	}
	if receipt.EmergencyID != "00000000-0000-0000-0000-000000000001" {
		t.Errorf("EmergencyID = %q; want scanned row id", receipt.EmergencyID)
	}
	if !strings.HasPrefix(receipt.CallReference, "CR-20260829-") {
		t.Errorf("CallReference = %q; want CR-20260829- prefix", receipt.CallReference)
	}

	// call_reference, session_id, transcription, emergency_type, severity.
	if got := db.queryRowArgs[1]; got != entry.SessionID {
		t.Errorf("session_id arg = %v; want %v", got, entry.SessionID)
	}
	if got := db.queryRowArgs[3]; got != "FLOODING" {
		t.Errorf("emergency_type arg = %v; want FLOODING", got)
	}
	if got := db.queryRowArgs[10]; got != int64(800) {
		t.Errorf("processing_time_ms arg = %v; want 800", got)
	}

	var loc map[string]any
	if err := json.Unmarshal(db.queryRowArgs[7].([]byte), &loc); err != nil {
		t.Fatalf("location arg is not JSON: %v", err)
	}
	if loc["latitude"] != 6.45 {
		t.Errorf("location latitude = %v; want 6.45", loc["latitude"])
	}
}

func TestPostgresStore_InsertEmergency_NilLocation(t *testing.T) {
	db := &mockDB{}
	s := NewPostgresStore(db)

	entry := &Entry{
		SessionID:  "NG-1-x",
		Transcript: "help",
		Classification: types.Classification{
			EmergencyType: types.GeneralEmergency,
			Severity:      types.SeverityHigh,
		},
	}
	if _, err := s.InsertEmergency(context.Background(), entry); err != nil {
		t.Fatalf("InsertEmergency: %v", err)
	}
	if loc := db.queryRowArgs[7]; loc != nil && len(loc.([]byte)) != 0 {
		t.Errorf("location arg = %v; want nil for missing coordinates", loc)
	}
}

func TestPostgresStore_InsertTrailEvent(t *testing.T) {
	db := &mockDB{}
	s := NewPostgresStore(db)

	ev := &TrailEvent{
		SessionID:   "NG-1-x",
		EventType:   "emergency_logged",
		Description: "Emergency successfully classified and logged",
		Data:        map[string]any{"severity": "HIGH"},
		Duration:    600 * time.Millisecond,
		Success:     true,
	}
	if err := s.InsertTrailEvent(context.Background(), ev); err != nil {
		t.Fatalf("InsertTrailEvent: %v", err)
	}
	if !strings.Contains(db.execSQL, "INSERT INTO session_audit_trail") {
		t.Errorf("statement does not target session_audit_trail: %s", db.execSQL)
	}
	if got := db.execArgs[1]; got != "emergency_logged" {
		t.Errorf("event_type arg = %v; want emergency_logged", got)
	}
	if got := db.execArgs[4]; got != int64(600) {
		t.Errorf("duration_ms arg = %v; want 600", got)
	}
}

func TestPostgresStore_Migrate(t *testing.T) {
	db := &mockDB{}
	s := NewPostgresStore(db)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	for _, table := range []string{"emergency_logs", "session_audit_trail"} {
		if !strings.Contains(db.execSQL, table) {
			t.Errorf("schema missing table %s", table)
		}
	}
}
