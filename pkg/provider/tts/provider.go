// Package tts defines the Provider interface for text-to-speech backends.
//
// A TTS provider wraps a speech synthesis service and returns complete audio
// clips: response messages are short (a few sentences at most) and the caller
// hands the whole clip to the client for playback, so a streaming interface
// would add complexity without cutting latency.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Audio is a complete synthesised clip.
type Audio struct {
	// Data is the encoded audio payload as returned by the backend.
	Data []byte

	// ContentType is the MIME type of Data (e.g., "audio/mpeg").
	ContentType string
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize converts text into speech using the named voice. An empty
	// voice selects the provider's default. Empty text fails with
	// fault.ErrInvalidInput before any network call; a backend non-success
	// response fails with fault.ErrUpstream.
	Synthesize(ctx context.Context, text, voice string) (*Audio, error)

	// Ping checks whether the backend is reachable and ready. A nil return
	// means speech output is available; any error means the caller should
	// fall back to text-only operation.
	Ping(ctx context.Context) error
}
