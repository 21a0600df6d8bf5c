package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/protect-ng/crossai/internal/audit"
	"github.com/protect-ng/crossai/internal/fault"
	"github.com/protect-ng/crossai/pkg/types"
)

type logEmergencyRequest struct {
	SessionID        string               `json:"sessionId"`
	Transcript       string               `json:"transcript"`
	Classification   types.Classification `json:"classification"`
	Location         *types.Coordinate    `json:"location"`
	ProcessingTimeMs int64                `json:"processingTimeMs"`
	LanguageDetected string               `json:"languageDetected"`
	ModelUsed        string               `json:"modelUsed"`
	FallbackUsed     bool                 `json:"fallbackUsed"`
	TTSSuccess       bool                 `json:"ttsSuccess"`
}

type logEmergencyResponse struct {
	Success       bool   `json:"success"`
	EmergencyID   string `json:"emergencyId"`
	CallReference string `json:"callReference"`
}

func (s *Server) handleLogEmergency(w http.ResponseWriter, r *http.Request) {
	if s.auditor == nil {
		writeError(w, fmt.Errorf("%w: no audit store configured", fault.ErrConfiguration))
		return
	}

	var req logEmergencyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	receipt, err := s.auditor.Log(r.Context(), &audit.Entry{
		SessionID:        req.SessionID,
		Transcript:       req.Transcript,
		Classification:   req.Classification,
		Location:         req.Location,
		ProcessingTime:   time.Duration(req.ProcessingTimeMs) * time.Millisecond,
		LanguageDetected: req.LanguageDetected,
		ModelUsed:        req.ModelUsed,
		FallbackUsed:     req.FallbackUsed,
		TTSSuccess:       req.TTSSuccess,
		Client:           clientInfo(r),
	})
	if err != nil {
		s.logger.Error("emergency logging failed", "session_id", req.SessionID, "error", err)
		writeError(w, err)
		return
	}

	s.metrics.AuditDuration.Record(r.Context(), time.Since(start).Seconds())
	s.metrics.RecordEmergencyLogged(r.Context(),
		string(req.Classification.EmergencyType),
		string(req.Classification.Severity),
	)

	writeJSON(w, http.StatusOK, logEmergencyResponse{
		Success:       true,
		EmergencyID:   receipt.EmergencyID,
		CallReference: receipt.CallReference,
	})
}
