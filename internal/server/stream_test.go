package server_test

import (
	"context"
	"encoding/base64"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/protect-ng/crossai/internal/audit"
	"github.com/protect-ng/crossai/internal/server"
	sttmock "github.com/protect-ng/crossai/pkg/provider/stt/mock"
	"github.com/protect-ng/crossai/pkg/provider/tts"
	ttsmock "github.com/protect-ng/crossai/pkg/provider/tts/mock"
	"github.com/protect-ng/crossai/pkg/types"
)

// streamFrame mirrors the outbound websocket frame shape.
type streamFrame struct {
	Type             string                `json:"type"`
	SessionID        string                `json:"sessionId"`
	Text             string                `json:"text"`
	Error            string                `json:"error"`
	Classification   *types.Classification `json:"classification"`
	FallbackUsed     bool                  `json:"fallbackUsed"`
	EmergencyID      string                `json:"emergencyId"`
	CallReference    string                `json:"callReference"`
	Audio            string                `json:"audio"`
	AudioContentType string                `json:"audioContentType"`
}

// dialStream starts an HTTP server around s and opens a websocket to
// /v1/stream. Cleanup closes both.
func dialStream(t *testing.T, s *server.Server) (*websocket.Conn, context.Context) {
	t.Helper()
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/stream"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "test done") })
	return conn, ctx
}

func sendFrame(t *testing.T, ctx context.Context, conn *websocket.Conn, msg map[string]any) {
	t.Helper()
	if err := wsjson.Write(ctx, conn, msg); err != nil {
		t.Fatalf("write frame %v: %v", msg, err)
	}
}

func readFrame(t *testing.T, ctx context.Context, conn *websocket.Conn) streamFrame {
	t.Helper()
	var f streamFrame
	if err := wsjson.Read(ctx, conn, &f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

// readUntil reads frames until one of the given type arrives, returning it and
// every frame seen on the way.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string) (streamFrame, []streamFrame) {
	t.Helper()
	var seen []streamFrame
	for {
		f := readFrame(t, ctx, conn)
		if f.Type == typ {
			return f, seen
		}
		seen = append(seen, f)
	}
}

func TestStream_TypedTranscriptCycle(t *testing.T) {
	store := &stubStore{nextID: "em-7", nextCallRef: "CR-20260829-aa11bb"}
	sp := &ttsmock.Provider{
		SynthesizeAudio: &tts.Audio{Data: []byte("spoken"), ContentType: "audio/mpeg"},
	}
	s := newTestServer(t, func(cfg *server.Config) {
		cfg.Auditor = audit.NewLogger(store, quietLogger())
		cfg.Speaker = sp
	})
	conn, ctx := dialStream(t, s)

	sendFrame(t, ctx, conn, map[string]any{"type": "start", "micAvailable": false})
	ready, _ := readUntil(t, ctx, conn, "ready")
	if !strings.HasPrefix(ready.SessionID, "NG-") {
		t.Fatalf("sessionId = %q, want NG- prefix", ready.SessionID)
	}

	sendFrame(t, ctx, conn, map[string]any{"type": "transcript", "text": "my papa no fit breathe"})
	cycle, _ := readUntil(t, ctx, conn, "cycle")

	if cycle.Error != "" {
		t.Fatalf("cycle error = %q", cycle.Error)
	}
	if cycle.Text != "my papa no fit breathe" {
		t.Errorf("transcript = %q", cycle.Text)
	}
	if cycle.Classification == nil || cycle.Classification.EmergencyType != types.MedicalEmergency {
		t.Errorf("classification = %+v", cycle.Classification)
	}
	if cycle.EmergencyID != "em-7" || cycle.CallReference != "CR-20260829-aa11bb" {
		t.Errorf("receipt = %q %q", cycle.EmergencyID, cycle.CallReference)
	}
	audio, err := base64.StdEncoding.DecodeString(cycle.Audio)
	if err != nil || string(audio) != "spoken" {
		t.Errorf("audio = %q (%v)", cycle.Audio, err)
	}
	if cycle.AudioContentType != "audio/mpeg" {
		t.Errorf("audio content type = %q", cycle.AudioContentType)
	}
}

func TestStream_LiveRecognition(t *testing.T) {
	sess := &sttmock.Session{
		PartialsCh: make(chan types.Transcript, 4),
		FinalsCh:   make(chan types.Transcript, 4),
		DegradedCh: make(chan error, 4),
	}
	tp := &sttmock.Provider{Session: sess}
	s := newTestServer(t, func(cfg *server.Config) { cfg.Transcriber = tp })
	conn, ctx := dialStream(t, s)

	sendFrame(t, ctx, conn, map[string]any{"type": "start", "micAvailable": true})
	readUntil(t, ctx, conn, "ready")

	sess.PartialsCh <- types.Transcript{Text: "fire dey"}
	sess.FinalsCh <- types.Transcript{Text: "fire dey burn for market", IsFinal: true}

	cycle, seen := readUntil(t, ctx, conn, "cycle")

	var sawPartial, sawFinal bool
	for _, f := range seen {
		switch f.Type {
		case "partial":
			sawPartial = f.Text == "fire dey"
		case "final":
			sawFinal = f.Text == "fire dey burn for market"
		}
	}
	if !sawPartial {
		t.Error("no partial frame before the cycle")
	}
	if !sawFinal {
		t.Error("no final frame before the cycle")
	}
	if cycle.Text != "fire dey burn for market" {
		t.Errorf("cycle transcript = %q", cycle.Text)
	}

	if len(tp.StartStreamCalls) != 1 {
		t.Fatalf("StartStreamCalls = %d, want 1", len(tp.StartStreamCalls))
	}
	if cfg := tp.StartStreamCalls[0].Cfg; cfg.SampleRate != 16000 || cfg.Channels != 1 {
		t.Errorf("stream config = %+v", cfg)
	}
}

func TestStream_AudioForwardedToRecognition(t *testing.T) {
	sess := &sttmock.Session{
		PartialsCh: make(chan types.Transcript),
		FinalsCh:   make(chan types.Transcript),
		DegradedCh: make(chan error),
	}
	s := newTestServer(t, func(cfg *server.Config) {
		cfg.Transcriber = &sttmock.Provider{Session: sess}
	})
	conn, ctx := dialStream(t, s)

	sendFrame(t, ctx, conn, map[string]any{"type": "start", "micAvailable": true})
	readUntil(t, ctx, conn, "ready")

	chunk := []byte{0x01, 0x02, 0x03, 0x04}
	sendFrame(t, ctx, conn, map[string]any{
		"type": "audio",
		"data": base64.StdEncoding.EncodeToString(chunk),
	})

	deadline := time.Now().Add(5 * time.Second)
	for sess.SendAudioCallCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("audio chunk never reached the recognition session")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStream_DegradedRecognitionKeepsSession(t *testing.T) {
	sess := &sttmock.Session{
		PartialsCh: make(chan types.Transcript, 1),
		FinalsCh:   make(chan types.Transcript, 1),
		DegradedCh: make(chan error, 1),
	}
	s := newTestServer(t, func(cfg *server.Config) {
		cfg.Transcriber = &sttmock.Provider{Session: sess}
	})
	conn, ctx := dialStream(t, s)

	sendFrame(t, ctx, conn, map[string]any{"type": "start", "micAvailable": true})
	readUntil(t, ctx, conn, "ready")

	sess.DegradedCh <- fault502()
	readUntil(t, ctx, conn, "degraded")

	// The session still serves typed transcripts after recognition degrades.
	sendFrame(t, ctx, conn, map[string]any{"type": "transcript", "text": "armed men dey here"})
	cycle, _ := readUntil(t, ctx, conn, "cycle")
	if cycle.Classification == nil {
		t.Fatal("no classification after degraded recognition")
	}
}

func TestStream_StartStreamFailureFallsBackToTyped(t *testing.T) {
	tp := &sttmock.Provider{StartStreamErr: fault502()}
	s := newTestServer(t, func(cfg *server.Config) { cfg.Transcriber = tp })
	conn, ctx := dialStream(t, s)

	sendFrame(t, ctx, conn, map[string]any{"type": "start", "micAvailable": true})
	ready, earlier := readUntil(t, ctx, conn, "ready")

	var degraded bool
	for _, f := range earlier {
		if f.Type == "degraded" {
			degraded = true
		}
	}
	if !degraded {
		t.Error("no degraded frame for failed stream start")
	}
	if ready.SessionID == "" {
		t.Error("empty sessionId")
	}

	sendFrame(t, ctx, conn, map[string]any{"type": "transcript", "text": "flooding for my street"})
	cycle, _ := readUntil(t, ctx, conn, "cycle")
	if cycle.Classification == nil {
		t.Fatal("typed transcript did not produce a cycle")
	}
}

func TestStream_ResetIssuesNewReady(t *testing.T) {
	s := newTestServer(t, nil)
	conn, ctx := dialStream(t, s)

	sendFrame(t, ctx, conn, map[string]any{"type": "start", "micAvailable": false})
	first, _ := readUntil(t, ctx, conn, "ready")

	sendFrame(t, ctx, conn, map[string]any{"type": "reset"})
	second, _ := readUntil(t, ctx, conn, "ready")

	if first.SessionID != second.SessionID {
		t.Errorf("reset changed sessionId: %q -> %q", first.SessionID, second.SessionID)
	}
}

func TestStream_RejectsNonStartFirstMessage(t *testing.T) {
	s := newTestServer(t, nil)
	conn, ctx := dialStream(t, s)

	sendFrame(t, ctx, conn, map[string]any{"type": "audio", "data": "aGk="})

	f := readFrame(t, ctx, conn)
	if f.Type != "error" {
		t.Fatalf("frame type = %q, want error", f.Type)
	}
}

func TestStream_UnknownMessageType(t *testing.T) {
	s := newTestServer(t, nil)
	conn, ctx := dialStream(t, s)

	sendFrame(t, ctx, conn, map[string]any{"type": "start", "micAvailable": false})
	readUntil(t, ctx, conn, "ready")

	sendFrame(t, ctx, conn, map[string]any{"type": "bogus"})
	f, _ := readUntil(t, ctx, conn, "error")
	if !strings.Contains(f.Error, "bogus") {
		t.Errorf("error = %q", f.Error)
	}
}
