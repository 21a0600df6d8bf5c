package server

import (
	"fmt"
	"net/http"

	"github.com/protect-ng/crossai/internal/fault"
	"github.com/protect-ng/crossai/pkg/provider/stt"
)

// transcribeRequest is one batch transcription request. Audio arrives as
// base64, optionally wrapped in a data URL.
type transcribeRequest struct {
	Audio       string `json:"audio"`
	ContentType string `json:"contentType"`
	SessionID   string `json:"sessionId"`
}

type transcribeResponse struct {
	Success          bool   `json:"success"`
	Text             string `json:"text"`
	SessionID        string `json:"sessionId,omitempty"`
	ProcessingTimeMs int64  `json:"processingTimeMs"`
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if s.transcriber == nil {
		writeError(w, fmt.Errorf("%w: no transcription provider configured", fault.ErrConfiguration))
		return
	}

	var req transcribeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	audio, err := stt.DecodeBase64Audio(req.Audio)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := s.transcriber.Transcribe(r.Context(), stt.TranscribeRequest{
		Audio:       audio,
		ContentType: req.ContentType,
		SessionID:   req.SessionID,
	})
	if err != nil {
		s.logger.Error("transcription failed", "session_id", req.SessionID, "error", err)
		writeError(w, err)
		return
	}

	s.metrics.TranscriptionDuration.Record(r.Context(), res.ProcessingTime.Seconds())
	writeJSON(w, http.StatusOK, transcribeResponse{
		Success:          true,
		Text:             res.Text,
		SessionID:        req.SessionID,
		ProcessingTimeMs: res.ProcessingTime.Milliseconds(),
	})
}
