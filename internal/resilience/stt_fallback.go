package resilience

import (
	"context"

	"github.com/protect-ng/crossai/pkg/provider/stt"
)

// TranscriberFallback implements [stt.Provider] with automatic failover across
// multiple recognition backends. Each backend has its own circuit breaker.
type TranscriberFallback struct {
	group *FallbackGroup[stt.Provider]
}

// Compile-time interface assertion.
var _ stt.Provider = (*TranscriberFallback)(nil)

// NewTranscriberFallback creates a [TranscriberFallback] with primary as the
// preferred backend.
func NewTranscriberFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *TranscriberFallback {
	return &TranscriberFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional recognition backend.
func (f *TranscriberFallback) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// Transcribe runs the batch request against the first healthy backend.
func (f *TranscriberFallback) Transcribe(ctx context.Context, req stt.TranscribeRequest) (*stt.TranscribeResult, error) {
	return ExecuteWithResult(f.group, func(p stt.Provider) (*stt.TranscribeResult, error) {
		return p.Transcribe(ctx, req)
	})
}

// StartStream opens a streaming session on the first healthy backend. Only
// session setup is covered by failover; once a stream is live, recognition
// errors surface on its Degraded channel rather than switching backends
// mid-utterance.
func (f *TranscriberFallback) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	return ExecuteWithResult(f.group, func(p stt.Provider) (stt.SessionHandle, error) {
		return p.StartStream(ctx, cfg)
	})
}
