// Package server exposes the emergency pipeline over HTTP: batch endpoints
// for each stage (transcribe, classify, log, speak), a websocket endpoint
// driving full live sessions, and the health and metrics surfaces.
package server

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/protect-ng/crossai/internal/audit"
	"github.com/protect-ng/crossai/internal/classify"
	"github.com/protect-ng/crossai/internal/health"
	"github.com/protect-ng/crossai/internal/observe"
	"github.com/protect-ng/crossai/pkg/provider/stt"
	"github.com/protect-ng/crossai/pkg/provider/tts"
	"github.com/protect-ng/crossai/pkg/types"
)

const (
	serviceName    = "Protect.NG CrossAI Emergency Response"
	serviceVersion = "2.0.0"
)

// Config wires the pipeline stages into a [Server]. Classifier is required;
// the other stages degrade their endpoints when nil.
type Config struct {
	Classifier  *classify.Engine
	Transcriber stt.Provider
	Speaker     tts.Provider
	Auditor     *audit.Logger

	// Language is the default conversation language for live sessions.
	Language types.Language

	// Health may be nil, in which case a checker-less handler is used.
	Health *health.Handler

	// Metrics may be nil, in which case observe.DefaultMetrics() is used.
	Metrics *observe.Metrics

	// Logger may be nil, in which case slog.Default() is used.
	Logger *slog.Logger
}

// Server handles the HTTP surface of the emergency pipeline.
type Server struct {
	classifier  *classify.Engine
	transcriber stt.Provider
	speaker     tts.Provider
	auditor     *audit.Logger
	language    types.Language
	health      *health.Handler
	metrics     *observe.Metrics
	logger      *slog.Logger
}

// New creates a [Server] from cfg.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	h := cfg.Health
	if h == nil {
		h = health.New(serviceName, serviceVersion)
	}
	lang := cfg.Language
	if !lang.IsValid() {
		lang = types.LanguageEnglish
	}
	return &Server{
		classifier:  cfg.Classifier,
		transcriber: cfg.Transcriber,
		speaker:     cfg.Speaker,
		auditor:     cfg.Auditor,
		language:    lang,
		health:      h,
		metrics:     metrics,
		logger:      logger,
	}
}

// Routes registers every endpoint on mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/transcribe", s.handleTranscribe)
	mux.HandleFunc("POST /v1/classify", s.handleClassify)
	mux.HandleFunc("POST /v1/log-emergency", s.handleLogEmergency)
	mux.HandleFunc("GET /v1/tts/speak", s.handleSpeak)
	mux.HandleFunc("POST /v1/tts/speak", s.handleSpeak)
	mux.HandleFunc("GET /v1/tts/ping", s.handleTTSPing)
	mux.HandleFunc("GET /v1/stream", s.handleStream)
	mux.Handle("GET /metrics", promhttp.Handler())
	s.health.Register(mux)
}

// Handler returns the full handler chain: routes wrapped in CORS and the
// observability middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Routes(mux)
	return withCORS(observe.Middleware(s.metrics)(mux))
}
