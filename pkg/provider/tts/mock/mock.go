// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider to feed canned audio to callers and to verify the text and
// voice they submit without a live synthesis backend.
package mock

import (
	"context"
	"sync"

	"github.com/protect-ng/crossai/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	// Ctx is the context passed to Synthesize.
	Ctx context.Context
	// Text is the text passed to Synthesize.
	Text string
	// Voice is the voice passed to Synthesize.
	Voice string
}

// Provider is a mock implementation of tts.Provider.
// Zero values for response fields cause Synthesize to return nil, nil.
type Provider struct {
	mu sync.Mutex

	// SynthesizeAudio is returned by Synthesize. May be nil (returns nil, nil).
	SynthesizeAudio *tts.Audio

	// SynthesizeErr, if non-nil, is returned as the error from Synthesize.
	SynthesizeErr error

	// PingErr is returned by Ping.
	PingErr error

	// PingDelayFn, if non-nil, runs at the start of Ping. Use it to simulate
	// a slow backend (e.g., block on a channel or sleep past a deadline).
	PingDelayFn func(ctx context.Context)

	// SynthesizeCalls records every invocation of Synthesize in order.
	SynthesizeCalls []SynthesizeCall

	// PingCallCount is the number of times Ping was called.
	PingCallCount int
}

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text, voice string) (*tts.Audio, error) {
	p.mu.Lock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Ctx: ctx, Text: text, Voice: voice})
	audio, err := p.SynthesizeAudio, p.SynthesizeErr
	p.mu.Unlock()
	return audio, err
}

// Ping implements tts.Provider.
func (p *Provider) Ping(ctx context.Context) error {
	p.mu.Lock()
	p.PingCallCount++
	delay := p.PingDelayFn
	err := p.PingErr
	p.mu.Unlock()

	if delay != nil {
		delay(ctx)
	}
	return err
}

// CallCount returns the number of recorded Synthesize invocations.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.SynthesizeCalls)
}
