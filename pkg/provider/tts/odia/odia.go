// Package odia provides a tts.Provider backed by the ODIADEV text-to-speech
// service, which hosts Nigerian-accented voices. Synthesis is a single
// GET /speak call with URL query parameters; the service authenticates via an
// x-api-key header and answers with an encoded audio clip. Readiness is probed
// via GET /health.
//
// Typical usage:
//
//	p, err := odia.New(apiKey,
//	    odia.WithVoice("nigerian-female"),
//	    odia.WithTimeout(30*time.Second),
//	)
//	audio, err := p.Synthesize(ctx, "Help is on the way.", "")
package odia

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/protect-ng/crossai/internal/fault"
	"github.com/protect-ng/crossai/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

const (
	// DefaultBaseURL is the hosted ODIADEV endpoint.
	DefaultBaseURL = "https://odiadev-tts-plug-n-play.onrender.com"

	// DefaultVoice is a Nigerian-accented female voice.
	DefaultVoice = "nigerian-female"

	// maxTextLength bounds the text sent per request. The service rejects
	// longer inputs; response messages are truncated rather than failed
	// because a clipped spoken confirmation still serves the caller.
	maxTextLength = 500

	defaultTimeout = 30 * time.Second

	speakEndpoint  = "/speak"
	healthEndpoint = "/health"
)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithBaseURL overrides the hosted service URL, e.g. for a self-hosted
// deployment or a test server.
func WithBaseURL(baseURL string) Option {
	return func(p *Provider) {
		p.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithVoice sets the default voice used when Synthesize is called with an
// empty voice name. Defaults to "nigerian-female".
func WithVoice(voice string) Option {
	return func(p *Provider) {
		p.voice = voice
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// Provider implements tts.Provider backed by the ODIADEV service. It is safe
// for concurrent use; multiple Synthesize calls may run in parallel.
type Provider struct {
	baseURL    string
	apiKey     string
	voice      string
	httpClient *http.Client
}

// New creates a Provider authenticated with apiKey. apiKey must be non-empty.
// Without options the provider targets the hosted service with the default
// voice and a 30 s timeout.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("odia: apiKey must not be empty")
	}
	p := &Provider{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		voice:   DefaultVoice,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text, voice string) (*tts.Audio, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fault.Invalid("text is required for speech synthesis")
	}
	text = truncate(text, maxTextLength)
	if voice == "" {
		voice = p.voice
	}

	params := url.Values{}
	params.Set("text", text)
	params.Set("voice", voice)

	reqURL := p.baseURL + speakEndpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("odia: create speak request: %w", err)
	}
	req.Header.Set("x-api-key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("odia: GET %s: %w", speakEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fault.Upstream("odia", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("odia: read audio response: %w", err)
	}
	if len(data) == 0 {
		return nil, fault.Upstream("odia", resp.StatusCode, "empty audio response")
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	return &tts.Audio{Data: data, ContentType: contentType}, nil
}

// truncate caps s at max bytes without splitting a multi-byte rune; a rune
// straddling the limit is dropped entirely.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Ping implements tts.Provider.
func (p *Provider) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+healthEndpoint, nil)
	if err != nil {
		return fmt.Errorf("odia: create health request: %w", err)
	}
	req.Header.Set("x-api-key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("odia: GET %s: %w", healthEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fault.Upstream("odia", resp.StatusCode, "health probe failed")
	}
	return nil
}
