package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/protect-ng/crossai/internal/fault"
)

// ttsPingTimeout bounds the synthesis health probe. The probe endpoint must
// answer quickly so the client can decide between voice and text mode.
const ttsPingTimeout = 5 * time.Second

type speakRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

type ttsPingResponse struct {
	OK       bool   `json:"ok"`
	Fallback bool   `json:"fallback,omitempty"`
	Message  string `json:"message,omitempty"`
}

func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	if s.speaker == nil {
		writeError(w, fmt.Errorf("%w: no speech provider configured", fault.ErrConfiguration))
		return
	}

	var req speakRequest
	if r.Method == http.MethodGet {
		req.Text = r.URL.Query().Get("text")
		req.Voice = r.URL.Query().Get("voice")
	} else if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	// Reject before any outbound call; an empty utterance is a client bug,
	// not a synthesis failure.
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, fault.Invalid("text is required for speech synthesis"))
		return
	}

	start := time.Now()
	audio, err := s.speaker.Synthesize(r.Context(), req.Text, req.Voice)
	if err != nil {
		s.logger.Error("speech synthesis failed", "error", err)
		writeError(w, err)
		return
	}
	s.metrics.SynthesisDuration.Record(r.Context(), time.Since(start).Seconds())

	w.Header().Set("Content-Type", audio.ContentType)
	w.WriteHeader(http.StatusOK)
	w.Write(audio.Data)
}

// handleTTSPing probes the synthesis backend. It always answers 200: the
// payload's ok flag is the signal, and a failing probe instructs the client
// to fall back to text mode rather than surface an error.
func (s *Server) handleTTSPing(w http.ResponseWriter, r *http.Request) {
	if s.speaker == nil {
		writeJSON(w, http.StatusOK, ttsPingResponse{
			OK:       false,
			Fallback: true,
			Message:  "no speech provider configured",
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), ttsPingTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.speaker.Ping(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			s.logger.Warn("tts ping failed", "error", err)
			writeJSON(w, http.StatusOK, ttsPingResponse{
				OK:       false,
				Fallback: true,
				Message:  "speech service unavailable, use text mode",
			})
			return
		}
		writeJSON(w, http.StatusOK, ttsPingResponse{OK: true})
	case <-ctx.Done():
		s.logger.Warn("tts ping timed out")
		writeJSON(w, http.StatusOK, ttsPingResponse{
			OK:       false,
			Fallback: true,
			Message:  "speech service timed out, use text mode",
		})
	}
}
