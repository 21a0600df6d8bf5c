// Package stt defines the speech-to-text provider interface. Two independent
// paths exist and are not required to agree: a batch path for one-shot uploads
// and a streaming path that segments live audio into utterances. The whisper
// subpackage implements both against the OpenAI transcription API.
package stt

import (
	"context"
	"time"

	"github.com/protect-ng/crossai/pkg/types"
)

// TranscribeRequest is a one-shot batch transcription request.
type TranscribeRequest struct {
	// Audio is the raw encoded audio payload (e.g., audio/webm from a browser
	// MediaRecorder).
	Audio []byte

	// ContentType describes Audio. Defaults to "audio/webm" when empty.
	ContentType string

	// SessionID is attached to logs only; it never reaches the backend.
	SessionID string
}

// TranscribeResult is the outcome of a batch transcription.
type TranscribeResult struct {
	Text           string
	ProcessingTime time.Duration
}

// StreamConfig configures a live recognition session.
type StreamConfig struct {
	// SampleRate of the incoming 16-bit little-endian PCM, in Hz.
	SampleRate int

	// Channels is the PCM channel count.
	Channels int

	// Language is a BCP-47 hint forwarded to the recogniser.
	Language string
}

// SessionHandle is a live recognition session. Audio goes in via SendAudio;
// interim and final transcripts come out on the Partials and Finals channels.
type SessionHandle interface {
	// SendAudio queues a chunk of raw PCM for recognition. Returns an error
	// only when the session is closed.
	SendAudio(chunk []byte) error

	// Partials emits interim transcripts for UI feedback. Closed on session end.
	Partials() <-chan types.Transcript

	// Finals emits authoritative per-utterance transcripts. Each final is one
	// completed Transcript that triggers its own classification cycle.
	// Closed on session end.
	Finals() <-chan types.Transcript

	// Degraded emits one value per swallowed recognition error. The session
	// keeps listening after a backend failure; this channel makes the
	// degradation observable instead of silent.
	Degraded() <-chan error

	// Close flushes pending audio and releases the session. Safe to call twice.
	Close() error
}

// Provider converts captured audio to text.
type Provider interface {
	// Transcribe performs one batch transcription. A missing payload fails
	// with fault.ErrInvalidInput; a backend non-success response fails with
	// fault.ErrUpstream carrying the backend's status and body. No retry —
	// the caller decides whether to prompt for a re-record.
	Transcribe(ctx context.Context, req TranscribeRequest) (*TranscribeResult, error)

	// StartStream opens a live recognition session.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}
