package server

import (
	"net/http"

	"github.com/protect-ng/crossai/internal/classify"
	"github.com/protect-ng/crossai/pkg/types"
)

type classifyRequest struct {
	Transcript string         `json:"transcript"`
	Location   string         `json:"location"`
	Language   types.Language `json:"language"`
	SessionID  string         `json:"sessionId"`
}

type classifyResponse struct {
	Success          bool                 `json:"success"`
	Classification   types.Classification `json:"classification"`
	FallbackUsed     bool                 `json:"fallbackUsed"`
	ModelUsed        string               `json:"modelUsed,omitempty"`
	ProcessingTimeMs int64                `json:"processingTimeMs"`
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := s.classifier.Classify(r.Context(), classify.Request{
		Transcript: req.Transcript,
		Location:   req.Location,
		Language:   req.Language,
		SessionID:  req.SessionID,
	})
	if err != nil {
		s.logger.Error("classification failed", "session_id", req.SessionID, "error", err)
		writeError(w, err)
		return
	}

	s.metrics.ClassificationDuration.Record(r.Context(), res.ProcessingTime.Seconds())
	if res.FallbackUsed {
		s.metrics.RecordFallbackClassification(r.Context())
	}

	writeJSON(w, http.StatusOK, classifyResponse{
		Success:          true,
		Classification:   res.Classification,
		FallbackUsed:     res.FallbackUsed,
		ModelUsed:        res.ModelUsed,
		ProcessingTimeMs: res.ProcessingTime.Milliseconds(),
	})
}
