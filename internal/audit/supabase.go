package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/supabase-community/supabase-go"
)

// SupabaseStore is a [Store] backed by a hosted Supabase project. Rows go
// through the PostgREST API with the service-role key, so row-level security
// policies do not block inserts.
type SupabaseStore struct {
	client *supabase.Client

	now func() time.Time
}

// Compile-time interface check.
var _ Store = (*SupabaseStore)(nil)

// NewSupabaseStore creates a new [SupabaseStore] for the project at url,
// authenticated with the service-role key.
func NewSupabaseStore(url, serviceRoleKey string) (*SupabaseStore, error) {
	if url == "" {
		return nil, fmt.Errorf("audit: supabase URL is required")
	}
	if serviceRoleKey == "" {
		return nil, fmt.Errorf("audit: supabase service role key is required")
	}

	client, err := supabase.NewClient(url, serviceRoleKey, nil)
	if err != nil {
		return nil, fmt.Errorf("audit: create supabase client: %w", err)
	}
	return &SupabaseStore{client: client, now: time.Now}, nil
}

// emergencyRow mirrors the emergency_logs table for PostgREST inserts.
type emergencyRow struct {
	CallReference    string         `json:"call_reference"`
	SessionID        string         `json:"session_id"`
	Transcription    string         `json:"transcription"`
	EmergencyType    string         `json:"emergency_type"`
	Severity         string         `json:"severity"`
	ResponseMessage  string         `json:"response_message"`
	ImmediateActions []string       `json:"immediate_actions"`
	Location         map[string]any `json:"location,omitempty"`
	AIConfidence     float64        `json:"ai_confidence"`
	AIModelUsed      string         `json:"ai_model_used"`
	ProcessingTimeMs int64          `json:"processing_time_ms"`
	LanguageDetected string         `json:"language_detected"`
	FallbackUsed     bool           `json:"fallback_used"`
	TTSSuccess       bool           `json:"tts_success"`
	ClientIP         string         `json:"client_ip"`
	UserAgent        string         `json:"user_agent"`
	Platform         string         `json:"platform"`
	Status           string         `json:"status"`
}

// trailRow mirrors the session_audit_trail table.
type trailRow struct {
	SessionID        string         `json:"session_id"`
	EventType        string         `json:"event_type"`
	EventDescription string         `json:"event_description"`
	EventData        map[string]any `json:"event_data"`
	DurationMs       int64          `json:"duration_ms"`
	Success          bool           `json:"success"`
	ClientIP         string         `json:"client_ip"`
	UserAgent        string         `json:"user_agent"`
}

// InsertEmergency implements Store.
func (s *SupabaseStore) InsertEmergency(ctx context.Context, e *Entry) (*Receipt, error) {
	ref := NewCallReference(s.now())

	row := emergencyRow{
		CallReference:    ref,
		SessionID:        e.SessionID,
		Transcription:    e.Transcript,
		EmergencyType:    string(e.Classification.EmergencyType),
		Severity:         string(e.Classification.Severity),
		ResponseMessage:  e.Classification.ResponseMessage,
		ImmediateActions: emptySlice(e.Classification.ImmediateActions),
		AIConfidence:     e.Classification.ConfidenceScore,
		AIModelUsed:      e.ModelUsed,
		ProcessingTimeMs: e.ProcessingTime.Milliseconds(),
		LanguageDetected: e.LanguageDetected,
		FallbackUsed:     e.FallbackUsed,
		TTSSuccess:       e.TTSSuccess,
		ClientIP:         e.Client.IP,
		UserAgent:        e.Client.UserAgent,
		Platform:         "web",
		Status:           "processed",
	}
	if e.Location != nil {
		address := e.Location.Address
		if address == "" {
			address = fmt.Sprintf("%v, %v", e.Location.Latitude, e.Location.Longitude)
		}
		row.Location = map[string]any{
			"latitude":  e.Location.Latitude,
			"longitude": e.Location.Longitude,
			"accuracy":  e.Location.Accuracy,
			"address":   address,
		}
	}

	var inserted []struct {
		ID            string `json:"id"`
		CallReference string `json:"call_reference"`
	}
	_, err := s.client.From("emergency_logs").
		Insert(row, false, "", "representation", "").
		ExecuteTo(&inserted)
	if err != nil {
		return nil, fmt.Errorf("audit: insert emergency: %w", err)
	}
	if len(inserted) == 0 {
		return nil, fmt.Errorf("audit: insert emergency: no row returned")
	}

	return &Receipt{EmergencyID: inserted[0].ID, CallReference: inserted[0].CallReference}, nil
}

// InsertTrailEvent implements Store.
func (s *SupabaseStore) InsertTrailEvent(ctx context.Context, ev *TrailEvent) error {
	row := trailRow{
		SessionID:        ev.SessionID,
		EventType:        ev.EventType,
		EventDescription: ev.Description,
		EventData:        emptyMap(ev.Data),
		DurationMs:       ev.Duration.Milliseconds(),
		Success:          ev.Success,
		ClientIP:         ev.Client.IP,
		UserAgent:        ev.Client.UserAgent,
	}

	_, _, err := s.client.From("session_audit_trail").
		Insert(row, false, "", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("audit: insert trail event: %w", err)
	}
	return nil
}
