// Package session drives one emergency session through its pipeline stages:
// capture, transcribe, classify, log, speak. The state machine is a pure
// transition function over an immutable snapshot; the Orchestrator wraps it
// with the actual pipeline plumbing.
package session

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/protect-ng/crossai/pkg/types"
)

// State is a session lifecycle phase.
type State int

const (
	// Idle is the zero state before initialization.
	Idle State = iota

	// Initializing covers identity generation and one-time capability
	// acquisition (location, microphone).
	Initializing

	// Ready means the session can start a recording or accept a transcript.
	Ready

	// Recording means live audio capture is in progress.
	Recording

	// Processing means a transcript is being classified.
	Processing

	// Failed is terminal: setup failed unrecoverably.
	Failed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Recording:
		return "recording"
	case Processing:
		return "processing"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Snapshot is the complete session state at one instant. It is replaced
// wholesale on every transition; readers never observe partial mutation.
type Snapshot struct {
	State State

	// SessionID is generated once at initialization and survives resets.
	SessionID string

	// Language is the conversation language passed to classification.
	Language types.Language

	// Location is captured once at initialization, best-effort.
	Location *types.Coordinate

	// MicAvailable is false when microphone access was denied. The session
	// stays usable for typed transcripts.
	MicAvailable bool

	// Transcript is the most recent transcript under processing.
	Transcript string

	// Classification is the most recent classification result.
	Classification *types.Classification

	// Degraded is set when a pipeline stage failed but the session remains
	// usable.
	Degraded bool

	// Err is the most recent user-visible error description.
	Err string
}

// Event drives a state transition.
type Event interface{ isEvent() }

// BeginInit starts initialization from Idle.
type BeginInit struct{}

// InitDone completes initialization. MicAvailable false records a denied
// microphone without failing the session.
type InitDone struct {
	MicAvailable bool
	Location     *types.Coordinate
}

// BeginRecording starts audio capture from Ready.
type BeginRecording struct{}

// StopRecording abandons a capture without a transcript.
type StopRecording struct{}

// TranscriptReady hands a completed transcript to processing.
type TranscriptReady struct{ Transcript string }

// CycleDone completes a classify cycle. A nil Classification with a non-nil
// Err marks the cycle failed; the session returns to Ready either way.
type CycleDone struct {
	Classification *types.Classification
	Err            error
}

// SetLanguage switches the conversation language. Pure state mutation; no
// pipeline side effects until the next classification.
type SetLanguage struct{ Language types.Language }

// Reset clears transcript, classification, and error for a new attempt in
// the same session. The sessionId is preserved: a new emergency restarts
// content, not identity.
type Reset struct{}

// Fail marks the session unrecoverable.
type Fail struct{ Reason string }

func (BeginInit) isEvent()       {}
func (InitDone) isEvent()        {}
func (BeginRecording) isEvent()  {}
func (StopRecording) isEvent()   {}
func (TranscriptReady) isEvent() {}
func (CycleDone) isEvent()       {}
func (SetLanguage) isEvent()     {}
func (Reset) isEvent()           {}
func (Fail) isEvent()            {}

// Transition applies ev to s and returns the next snapshot. It is pure:
// no I/O, no clock access, no mutation of s. Events that are illegal in the
// current state leave the snapshot unchanged.
func Transition(s Snapshot, ev Event) Snapshot {
	switch e := ev.(type) {
	case BeginInit:
		if s.State != Idle {
			return s
		}
		s.State = Initializing

	case InitDone:
		if s.State != Initializing {
			return s
		}
		s.State = Ready
		s.MicAvailable = e.MicAvailable
		s.Location = e.Location

	case BeginRecording:
		if s.State != Ready {
			return s
		}
		s.State = Recording

	case StopRecording:
		if s.State != Recording {
			return s
		}
		s.State = Ready

	case TranscriptReady:
		// Legal from Recording (batch stop) and from Ready (a streaming
		// final can land between cycles).
		if s.State != Recording && s.State != Ready {
			return s
		}
		s.State = Processing
		s.Transcript = e.Transcript

	case CycleDone:
		if s.State != Processing {
			return s
		}
		s.State = Ready
		if e.Err != nil {
			s.Degraded = true
			s.Err = e.Err.Error()
		} else {
			s.Classification = e.Classification
			s.Err = ""
		}

	case SetLanguage:
		if e.Language.IsValid() {
			s.Language = e.Language
		}

	case Reset:
		if s.State == Failed || s.State == Idle {
			return s
		}
		s.State = Ready
		s.Transcript = ""
		s.Classification = nil
		s.Degraded = false
		s.Err = ""

	case Fail:
		s.State = Failed
		s.Err = e.Reason
	}
	return s
}

// NewSessionID generates a session identifier of the form
// NG-<unix-millis>-<9 random base36 characters>.
func NewSessionID(t time.Time) string {
	return "NG-" + strconv.FormatInt(t.UnixMilli(), 10) + "-" + randomBase36(9)
}

// randomBase36 returns n random characters from [0-9a-z].
func randomBase36(n int) string {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken;
			// a fixed character keeps the ID well-formed.
			out[i] = '0'
			continue
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out)
}
