package audit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/protect-ng/crossai/internal/fault"
)

// Logger writes emergency records through a Store. It owns the two-write
// sequence: the primary row first, then the trail event.
type Logger struct {
	store  Store
	logger *slog.Logger
}

// NewLogger creates a Logger backed by store. logger may be nil, in which
// case slog.Default() is used.
func NewLogger(store Store, logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{store: store, logger: logger}
}

// Log persists one emergency and returns its receipt.
//
// Missing required fields fail with fault.ErrInvalidInput before any write.
// A failed primary write fails with fault.ErrPersistence and skips the trail
// event entirely. A failed trail write is logged and tolerated: the emergency
// row already exists and the receipt is still returned.
func (l *Logger) Log(ctx context.Context, e *Entry) (*Receipt, error) {
	if l.store == nil {
		return nil, fmt.Errorf("%w: no audit store configured", fault.ErrConfiguration)
	}
	if err := validate(e); err != nil {
		return nil, err
	}

	receipt, err := l.store.InsertEmergency(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("%w: insert emergency: %v", fault.ErrPersistence, err)
	}
	l.logger.Info("emergency logged",
		"session_id", e.SessionID,
		"emergency_id", receipt.EmergencyID,
		"call_reference", receipt.CallReference,
		"emergency_type", e.Classification.EmergencyType,
		"severity", e.Classification.Severity,
	)

	trailErr := l.store.InsertTrailEvent(ctx, &TrailEvent{
		SessionID:   e.SessionID,
		EventType:   "emergency_logged",
		Description: "Emergency successfully classified and logged",
		Data: map[string]any{
			"emergency_type":     e.Classification.EmergencyType,
			"severity":           e.Classification.Severity,
			"processing_time_ms": e.ProcessingTime.Milliseconds(),
		},
		Duration: e.ProcessingTime,
		Success:  true,
		Client:   e.Client,
	})
	if trailErr != nil {
		// The primary row is already committed; losing a trail event must
		// not void a logged emergency.
		l.logger.Warn("audit trail write failed",
			"session_id", e.SessionID,
			"emergency_id", receipt.EmergencyID,
			"error", trailErr,
		)
	}

	return receipt, nil
}

// validate checks the fields required for a persistable record.
func validate(e *Entry) error {
	if strings.TrimSpace(e.SessionID) == "" {
		return fault.Invalid("sessionId is required")
	}
	if strings.TrimSpace(e.Transcript) == "" {
		return fault.Invalid("transcript is required")
	}
	if e.Classification.EmergencyType == "" {
		return fault.Invalid("classification is required")
	}
	return nil
}
