package resilience

import (
	"context"

	"github.com/protect-ng/crossai/pkg/provider/tts"
)

// SpeakerFallback implements [tts.Provider] with automatic failover across
// multiple synthesis backends. Each backend has its own circuit breaker.
type SpeakerFallback struct {
	group *FallbackGroup[tts.Provider]
}

// Compile-time interface assertion.
var _ tts.Provider = (*SpeakerFallback)(nil)

// NewSpeakerFallback creates a [SpeakerFallback] with primary as the preferred
// backend.
func NewSpeakerFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *SpeakerFallback {
	return &SpeakerFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional synthesis backend.
func (f *SpeakerFallback) AddFallback(name string, provider tts.Provider) {
	f.group.AddFallback(name, provider)
}

// Synthesize renders text with the first healthy backend.
func (f *SpeakerFallback) Synthesize(ctx context.Context, text, voice string) (*tts.Audio, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) (*tts.Audio, error) {
		return p.Synthesize(ctx, text, voice)
	})
}

// Ping reports healthy when any backend answers its health probe. Pings do
// not trip breakers for the synthesis path.
func (f *SpeakerFallback) Ping(ctx context.Context) error {
	var lastErr error
	for i := range f.group.entries {
		e := &f.group.entries[i]
		if err := e.value.Ping(ctx); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return lastErr
}
