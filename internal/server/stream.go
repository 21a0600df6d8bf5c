package server

import (
	"context"
	"encoding/base64"
	"sync"

	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/protect-ng/crossai/internal/session"
	"github.com/protect-ng/crossai/pkg/provider/stt"
	"github.com/protect-ng/crossai/pkg/types"
)

// streamSampleRate is the PCM sample rate live sessions capture at.
const streamSampleRate = 16000

// clientMessage is one inbound websocket frame.
type clientMessage struct {
	// Type is one of: start, audio, transcript, language, reset.
	Type string `json:"type"`

	// Data carries base64 audio for type "audio".
	Data string `json:"data,omitempty"`

	// Text carries a typed transcript for type "transcript", the path used
	// when microphone access was denied.
	Text string `json:"text,omitempty"`

	Language     types.Language    `json:"language,omitempty"`
	Location     *types.Coordinate `json:"location,omitempty"`
	MicAvailable bool              `json:"micAvailable,omitempty"`
}

// serverMessage is one outbound websocket frame.
type serverMessage struct {
	// Type is one of: ready, partial, final, cycle, degraded, error.
	Type string `json:"type"`

	SessionID string `json:"sessionId,omitempty"`
	Text      string `json:"text,omitempty"`
	Error     string `json:"error,omitempty"`

	Classification *types.Classification `json:"classification,omitempty"`
	FallbackUsed   bool                  `json:"fallbackUsed,omitempty"`
	EmergencyID    string                `json:"emergencyId,omitempty"`
	CallReference  string                `json:"callReference,omitempty"`

	// Audio is the base64 spoken response for type "cycle".
	Audio            string `json:"audio,omitempty"`
	AudioContentType string `json:"audioContentType,omitempty"`
}

// wsWriter serialises websocket writes; cycle callbacks, recognition pumps,
// and the read loop all emit frames.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) send(ctx context.Context, msg serverMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return wsjson.Write(ctx, w.conn, msg)
}

// handleStream drives one live emergency session over a websocket: inbound
// audio is segmented and transcribed, final transcripts run full
// classify→log→speak cycles, and every stage's output streams back to the
// client as it happens.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Error("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "session ended unexpectedly")

	ctx := r.Context()
	writer := &wsWriter{conn: conn}

	// The first frame must be a start message carrying session parameters.
	var start clientMessage
	if err := wsjson.Read(ctx, conn, &start); err != nil {
		return
	}
	if start.Type != "start" {
		writer.send(ctx, serverMessage{Type: "error", Error: "first message must have type start"})
		conn.Close(websocket.StatusPolicyViolation, "missing start message")
		return
	}

	lang := start.Language
	if !lang.IsValid() {
		lang = s.language
	}

	orch, err := session.New(ctx, session.Config{
		Classifier:   s.classifier,
		Auditor:      s.auditor,
		Speaker:      s.speaker,
		Language:     lang,
		Location:     start.Location,
		MicAvailable: start.MicAvailable,
		Client:       clientInfo(r),
		Logger:       s.logger,
		OnCycle: func(res session.CycleResult) {
			writer.send(ctx, cycleMessage(res))
		},
	})
	if err != nil {
		writer.send(ctx, serverMessage{Type: "error", Error: err.Error()})
		return
	}
	defer orch.Close()

	s.metrics.ActiveSessions.Add(ctx, 1)
	defer s.metrics.ActiveSessions.Add(ctx, -1)

	// Streaming recognition is optional: without a transcriber the session
	// still serves typed transcripts.
	var handle stt.SessionHandle
	if s.transcriber != nil && start.MicAvailable {
		handle, err = s.transcriber.StartStream(ctx, stt.StreamConfig{
			SampleRate: streamSampleRate,
			Channels:   1,
			Language:   "en",
		})
		if err != nil {
			s.logger.Warn("recognition stream unavailable, typed transcripts only",
				"session_id", orch.SessionID(), "error", err)
			writer.send(ctx, serverMessage{Type: "degraded", Error: "speech recognition unavailable"})
		} else {
			defer handle.Close()
			s.metrics.ActiveStreams.Add(ctx, 1)
			defer s.metrics.ActiveStreams.Add(ctx, -1)
			go s.pumpRecognition(ctx, orch, handle, writer)
		}
	}

	writer.send(ctx, serverMessage{Type: "ready", SessionID: orch.SessionID()})

	// Read loop. Ends when the client disconnects or the context dies.
	for {
		var msg clientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			conn.Close(websocket.StatusNormalClosure, "session closed")
			return
		}

		switch msg.Type {
		case "audio":
			if handle == nil {
				writer.send(ctx, serverMessage{Type: "error", Error: "no recognition stream for this session"})
				continue
			}
			chunk, err := stt.DecodeBase64Audio(msg.Data)
			if err != nil {
				writer.send(ctx, serverMessage{Type: "error", Error: err.Error()})
				continue
			}
			if err := handle.SendAudio(chunk); err != nil {
				orch.NotifyRecognitionDegraded(err)
				writer.send(ctx, serverMessage{Type: "degraded", Error: "audio delivery failed"})
			}

		case "transcript":
			if err := orch.SubmitTranscript(msg.Text); err != nil {
				writer.send(ctx, serverMessage{Type: "error", Error: err.Error()})
			}

		case "language":
			orch.SetLanguage(msg.Language)

		case "reset":
			orch.Reset()
			writer.send(ctx, serverMessage{Type: "ready", SessionID: orch.SessionID()})

		default:
			writer.send(ctx, serverMessage{Type: "error", Error: "unknown message type " + msg.Type})
		}
	}
}

// pumpRecognition forwards recognition output to the session and the client.
// Finals drive classification cycles; recognition errors degrade without
// closing anything.
func (s *Server) pumpRecognition(ctx context.Context, orch *session.Orchestrator, handle stt.SessionHandle, writer *wsWriter) {
	partials := handle.Partials()
	finals := handle.Finals()
	degraded := handle.Degraded()

	for {
		select {
		case <-ctx.Done():
			return

		case t, ok := <-partials:
			if !ok {
				partials = nil
				continue
			}
			writer.send(ctx, serverMessage{Type: "partial", Text: t.Text})

		case t, ok := <-finals:
			if !ok {
				return
			}
			if t.Text == "" {
				continue
			}
			writer.send(ctx, serverMessage{Type: "final", Text: t.Text})
			if err := orch.SubmitTranscript(t.Text); err != nil {
				writer.send(ctx, serverMessage{Type: "error", Error: err.Error()})
			}

		case err, ok := <-degraded:
			if !ok {
				degraded = nil
				continue
			}
			orch.NotifyRecognitionDegraded(err)
			s.metrics.RecordRecognitionDegraded(ctx)
			writer.send(ctx, serverMessage{Type: "degraded", Error: "speech recognition degraded, still listening"})
		}
	}
}

// cycleMessage renders a completed cycle as an outbound frame.
func cycleMessage(res session.CycleResult) serverMessage {
	if res.Err != nil {
		return serverMessage{Type: "cycle", Text: res.Transcript, Error: res.Err.Error()}
	}
	msg := serverMessage{
		Type:           "cycle",
		Text:           res.Transcript,
		Classification: &res.Classification,
		FallbackUsed:   res.FallbackUsed,
	}
	if res.Receipt != nil {
		msg.EmergencyID = res.Receipt.EmergencyID
		msg.CallReference = res.Receipt.CallReference
	}
	if res.Audio != nil {
		msg.Audio = base64.StdEncoding.EncodeToString(res.Audio.Data)
		msg.AudioContentType = res.Audio.ContentType
	}
	return msg
}
