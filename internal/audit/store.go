// Package audit persists emergency records. Every classified emergency
// produces two writes: the primary row in emergency_logs and a trail event in
// session_audit_trail. The primary write is authoritative; the trail is
// best-effort and its failure never voids a logged emergency.
package audit

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/protect-ng/crossai/pkg/types"
)

// Entry is one emergency record to persist.
type Entry struct {
	// SessionID identifies the capture session. Required.
	SessionID string

	// Transcript is the emergency call text. Required.
	Transcript string

	// Classification is the structured triage result. Its EmergencyType is
	// required.
	Classification types.Classification

	// Location is the caller's device coordinates, if shared.
	Location *types.Coordinate

	// ProcessingTime covers the classification round trip.
	ProcessingTime time.Duration

	// LanguageDetected is the conversation language recorded for the row.
	LanguageDetected string

	// ModelUsed is the model that produced the classification.
	ModelUsed string

	// FallbackUsed is true when the fixed fallback classification was
	// substituted for an unparseable model answer.
	FallbackUsed bool

	// TTSSuccess records whether the spoken confirmation was synthesised.
	TTSSuccess bool

	// Client describes the reporting device.
	Client types.ClientInfo
}

// Receipt identifies a persisted emergency.
type Receipt struct {
	// EmergencyID is the database row identifier.
	EmergencyID string `json:"emergencyId"`

	// CallReference is the human-readable reference quoted to responders,
	// formatted CR-YYYYMMDD-xxxxxx.
	CallReference string `json:"callReference"`
}

// TrailEvent is one session audit-trail entry.
type TrailEvent struct {
	SessionID   string
	EventType   string
	Description string
	Data        map[string]any
	Duration    time.Duration
	Success     bool
	Client      types.ClientInfo
}

// Store persists emergency records. Implementations live in this package
// (PostgresStore, SupabaseStore) and in tests.
type Store interface {
	// InsertEmergency writes the primary emergency row and returns its
	// identity.
	InsertEmergency(ctx context.Context, e *Entry) (*Receipt, error)

	// InsertTrailEvent appends one event to the session audit trail.
	InsertTrailEvent(ctx context.Context, ev *TrailEvent) error
}

// NewCallReference generates a call reference for the given time, formatted
// CR-YYYYMMDD-xxxxxx with a random lowercase hex suffix.
func NewCallReference(t time.Time) string {
	var b [3]byte
	_, _ = rand.Read(b[:])
	return fmt.Sprintf("CR-%s-%x", t.Format("20060102"), b)
}
