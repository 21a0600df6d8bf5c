package odia_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/protect-ng/crossai/internal/fault"
	"github.com/protect-ng/crossai/pkg/provider/tts/odia"
)

// newSpeakServer creates a test server that answers GET /speak with audio and
// GET /health with 200. It records the last speak request values.
func newSpeakServer(t *testing.T, audio []byte, lastText, lastVoice, lastKey *atomic.Value) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/speak":
			if lastText != nil {
				lastText.Store(r.URL.Query().Get("text"))
			}
			if lastVoice != nil {
				lastVoice.Store(r.URL.Query().Get("voice"))
			}
			if lastKey != nil {
				lastKey.Store(r.Header.Get("x-api-key"))
			}
			w.Header().Set("Content-Type", "audio/mpeg")
			_, _ = w.Write(audio)
		case "/health":
			w.WriteHeader(http.StatusOK)
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	}))
}

func TestNew_EmptyAPIKey_ReturnsError(t *testing.T) {
	_, err := odia.New("")
	if err == nil {
		t.Fatal("expected error for empty apiKey, got nil")
	}
}

func TestSynthesize_ReturnsAudio(t *testing.T) {
	wantAudio := []byte("mp3-bytes")
	srv := newSpeakServer(t, wantAudio, nil, nil, nil)
	defer srv.Close()

	p, _ := odia.New("test-key", odia.WithBaseURL(srv.URL))
	audio, err := p.Synthesize(context.Background(), "Help is on the way.", "")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !bytes.Equal(audio.Data, wantAudio) {
		t.Errorf("Data = %q; want %q", audio.Data, wantAudio)
	}
	if audio.ContentType != "audio/mpeg" {
		t.Errorf("ContentType = %q; want audio/mpeg", audio.ContentType)
	}
}

func TestSynthesize_SendsAPIKeyAndDefaultVoice(t *testing.T) {
	var lastText, lastVoice, lastKey atomic.Value
	srv := newSpeakServer(t, []byte("x"), &lastText, &lastVoice, &lastKey)
	defer srv.Close()

	p, _ := odia.New("secret-key", odia.WithBaseURL(srv.URL))
	if _, err := p.Synthesize(context.Background(), "stay calm", ""); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if got := lastKey.Load(); got != "secret-key" {
		t.Errorf("x-api-key = %v; want secret-key", got)
	}
	if got := lastVoice.Load(); got != "nigerian-female" {
		t.Errorf("voice = %v; want nigerian-female", got)
	}
	if got := lastText.Load(); got != "stay calm" {
		t.Errorf("text = %v; want %q", got, "stay calm")
	}
}

func TestSynthesize_ExplicitVoiceOverridesDefault(t *testing.T) {
	var lastVoice atomic.Value
	srv := newSpeakServer(t, []byte("x"), nil, &lastVoice, nil)
	defer srv.Close()

	p, _ := odia.New("k", odia.WithBaseURL(srv.URL), odia.WithVoice("nigerian-male"))
	if _, err := p.Synthesize(context.Background(), "hello", "nigerian-female"); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if got := lastVoice.Load(); got != "nigerian-female" {
		t.Errorf("voice = %v; want nigerian-female", got)
	}
}

func TestSynthesize_TruncatesLongText(t *testing.T) {
	var lastText atomic.Value
	srv := newSpeakServer(t, []byte("x"), &lastText, nil, nil)
	defer srv.Close()

	p, _ := odia.New("k", odia.WithBaseURL(srv.URL))
	long := strings.Repeat("a", 900)
	if _, err := p.Synthesize(context.Background(), long, ""); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	got, _ := lastText.Load().(string)
	if len(got) != 500 {
		t.Errorf("sent text length = %d; want 500", len(got))
	}
}

func TestSynthesize_TruncationKeepsRunesIntact(t *testing.T) {
	var lastText atomic.Value
	srv := newSpeakServer(t, []byte("x"), &lastText, nil, nil)
	defer srv.Close()

	p, _ := odia.New("k", odia.WithBaseURL(srv.URL))
	// "é" is two bytes and straddles the 500-byte limit; the whole rune must
	// be dropped rather than split into an invalid sequence.
	long := strings.Repeat("a", 499) + strings.Repeat("é", 10)
	if _, err := p.Synthesize(context.Background(), long, ""); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	got, _ := lastText.Load().(string)
	if !utf8.ValidString(got) {
		t.Fatalf("sent text is not valid UTF-8: %q", got)
	}
	if len(got) != 499 {
		t.Errorf("sent text length = %d; want 499 (rune at the boundary dropped)", len(got))
	}
}

func TestSynthesize_EmptyText_ReturnsInvalidInput(t *testing.T) {
	srv := newSpeakServer(t, []byte("x"), nil, nil, nil)
	defer srv.Close()

	p, _ := odia.New("k", odia.WithBaseURL(srv.URL))
	for _, text := range []string{"", "   ", "\n\t"} {
		if _, err := p.Synthesize(context.Background(), text, ""); !errors.Is(err, fault.ErrInvalidInput) {
			t.Errorf("Synthesize(%q) err = %v; want fault.ErrInvalidInput", text, err)
		}
	}
}

func TestSynthesize_BackendError_ReturnsUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p, _ := odia.New("k", odia.WithBaseURL(srv.URL))
	_, err := p.Synthesize(context.Background(), "hello", "")
	if !errors.Is(err, fault.ErrUpstream) {
		t.Fatalf("err = %v; want fault.ErrUpstream", err)
	}

	var upErr *fault.UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("err = %v; want *fault.UpstreamError", err)
	}
	if upErr.Status != http.StatusTooManyRequests {
		t.Errorf("Status = %d; want %d", upErr.Status, http.StatusTooManyRequests)
	}
}

func TestSynthesize_EmptyAudioBody_ReturnsUpstream(t *testing.T) {
	srv := newSpeakServer(t, nil, nil, nil, nil)
	defer srv.Close()

	p, _ := odia.New("k", odia.WithBaseURL(srv.URL))
	_, err := p.Synthesize(context.Background(), "hello", "")
	if !errors.Is(err, fault.ErrUpstream) {
		t.Fatalf("err = %v; want fault.ErrUpstream", err)
	}
}

func TestPing_HealthyBackend_ReturnsNil(t *testing.T) {
	srv := newSpeakServer(t, []byte("x"), nil, nil, nil)
	defer srv.Close()

	p, _ := odia.New("k", odia.WithBaseURL(srv.URL))
	if err := p.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestPing_UnhealthyBackend_ReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p, _ := odia.New("k", odia.WithBaseURL(srv.URL))
	if err := p.Ping(context.Background()); err == nil {
		t.Fatal("expected error from Ping against unhealthy backend")
	}
}

func TestPing_RespectsContextCancellation(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	p, _ := odia.New("k", odia.WithBaseURL(srv.URL))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.Ping(ctx); err == nil {
		t.Fatal("expected error from Ping with cancelled context")
	}
}
