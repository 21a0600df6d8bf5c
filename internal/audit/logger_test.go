package audit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/protect-ng/crossai/internal/audit"
	"github.com/protect-ng/crossai/internal/classify"
	"github.com/protect-ng/crossai/internal/fault"
	"github.com/protect-ng/crossai/pkg/types"
)

// mockStore implements audit.Store with canned results and call recording.
type mockStore struct {
	receipt     *audit.Receipt
	insertErr   error
	trailErr    error
	insertCalls []*audit.Entry
	trailCalls  []*audit.TrailEvent
}

func (m *mockStore) InsertEmergency(_ context.Context, e *audit.Entry) (*audit.Receipt, error) {
	m.insertCalls = append(m.insertCalls, e)
	if m.insertErr != nil {
		return nil, m.insertErr
	}
	if m.receipt != nil {
		return m.receipt, nil
	}
	return &audit.Receipt{EmergencyID: "em-1", CallReference: "CR-20260829-abc123"}, nil
}

func (m *mockStore) InsertTrailEvent(_ context.Context, ev *audit.TrailEvent) error {
	m.trailCalls = append(m.trailCalls, ev)
	return m.trailErr
}

func validEntry() *audit.Entry {
	return &audit.Entry{
		SessionID:        "NG-1756400000000-a1b2c3d4e",
		Transcript:       "there is a fire in my compound",
		Classification:   classify.Fallback("Ikeja", types.LanguageEnglish),
		ProcessingTime:   1200 * time.Millisecond,
		LanguageDetected: "english",
		ModelUsed:        "gpt-4o-mini",
	}
}

func TestLog_ReturnsReceipt(t *testing.T) {
	store := &mockStore{}
	l := audit.NewLogger(store, nil)

	receipt, err := l.Log(context.Background(), validEntry())
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if receipt.EmergencyID != "em-1" {
		t.Errorf("EmergencyID = %q; want em-1", receipt.EmergencyID)
	}
	if receipt.CallReference != "CR-20260829-abc123" {
		t.Errorf("CallReference = %q; want CR-20260829-abc123", receipt.CallReference)
	}
}

func TestLog_MissingRequiredFields_ReturnsInvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*audit.Entry)
	}{
		{"missing session id", func(e *audit.Entry) { e.SessionID = "" }},
		{"blank session id", func(e *audit.Entry) { e.SessionID = "   " }},
		{"missing transcript", func(e *audit.Entry) { e.Transcript = "" }},
		{"missing classification", func(e *audit.Entry) { e.Classification = types.Classification{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockStore{}
			l := audit.NewLogger(store, nil)

			e := validEntry()
			tt.mutate(e)

			_, err := l.Log(context.Background(), e)
			if !errors.Is(err, fault.ErrInvalidInput) {
				t.Fatalf("err = %v; want fault.ErrInvalidInput", err)
			}
			if len(store.insertCalls) != 0 {
				t.Error("store was written for an invalid entry")
			}
		})
	}
}

func TestLog_PrimaryWriteFails_ReturnsPersistenceAndSkipsTrail(t *testing.T) {
	store := &mockStore{insertErr: errors.New("connection refused")}
	l := audit.NewLogger(store, nil)

	_, err := l.Log(context.Background(), validEntry())
	if !errors.Is(err, fault.ErrPersistence) {
		t.Fatalf("err = %v; want fault.ErrPersistence", err)
	}
	if len(store.trailCalls) != 0 {
		t.Error("trail event written despite failed primary write")
	}
}

func TestLog_TrailWriteFails_IsTolerated(t *testing.T) {
	store := &mockStore{trailErr: errors.New("trail table locked")}
	l := audit.NewLogger(store, nil)

	receipt, err := l.Log(context.Background(), validEntry())
	if err != nil {
		t.Fatalf("Log: %v (trail failure must be tolerated)", err)
	}
	if receipt == nil {
		t.Fatal("receipt is nil despite successful primary write")
	}
	if len(store.trailCalls) != 1 {
		t.Errorf("trail write attempted %d time(s); want 1", len(store.trailCalls))
	}
}

func TestLog_WritesInOrder(t *testing.T) {
	store := &mockStore{}
	l := audit.NewLogger(store, nil)

	if _, err := l.Log(context.Background(), validEntry()); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(store.insertCalls) != 1 || len(store.trailCalls) != 1 {
		t.Fatalf("insert calls = %d, trail calls = %d; want 1 and 1",
			len(store.insertCalls), len(store.trailCalls))
	}

	ev := store.trailCalls[0]
	if ev.EventType != "emergency_logged" {
		t.Errorf("EventType = %q; want emergency_logged", ev.EventType)
	}
	if !ev.Success {
		t.Error("trail event Success = false; want true")
	}
	if ev.SessionID != store.insertCalls[0].SessionID {
		t.Error("trail event session id does not match emergency row")
	}
	if _, ok := ev.Data["processing_time_ms"]; !ok {
		t.Error("trail event data missing processing_time_ms")
	}
}

func TestLog_NilStore_ReturnsConfiguration(t *testing.T) {
	l := audit.NewLogger(nil, nil)
	_, err := l.Log(context.Background(), validEntry())
	if !errors.Is(err, fault.ErrConfiguration) {
		t.Fatalf("err = %v; want fault.ErrConfiguration", err)
	}
}
