package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/protect-ng/crossai/internal/audit"
	"github.com/protect-ng/crossai/internal/classify"
	"github.com/protect-ng/crossai/pkg/provider/tts"
	"github.com/protect-ng/crossai/pkg/types"
)

// cycleQueueDepth bounds how many completed transcripts may wait for their
// classify cycle. Streaming recognition can emit a new final segment while a
// previous cycle is in flight; cycles are serialized per session so records
// land in utterance order.
const cycleQueueDepth = 8

// CycleResult is the outcome of one classify→log→speak cycle.
type CycleResult struct {
	// Transcript is the utterance this cycle processed.
	Transcript string

	// Classification is the triage result. Zero-valued when Err is set.
	Classification types.Classification

	// FallbackUsed reports whether the fixed fallback classification was
	// substituted.
	FallbackUsed bool

	// Receipt identifies the persisted emergency; nil when logging failed.
	Receipt *audit.Receipt

	// Audio is the synthesised spoken response; nil when synthesis failed
	// or no speech backend is configured.
	Audio *tts.Audio

	// Err is the classification error, if any. Logging and synthesis
	// failures degrade the session but do not set Err.
	Err error
}

// Config configures an Orchestrator.
type Config struct {
	// Classifier is required.
	Classifier *classify.Engine

	// Auditor persists classified emergencies. May be nil (no persistence).
	Auditor *audit.Logger

	// Speaker synthesises spoken responses. May be nil (text-only).
	Speaker tts.Provider

	// Language is the initial conversation language. Defaults to English.
	Language types.Language

	// Location is the caller's coordinates, captured once. May be nil.
	Location *types.Coordinate

	// MicAvailable records whether the client granted microphone access.
	MicAvailable bool

	// Client describes the reporting device for audit rows.
	Client types.ClientInfo

	// OnCycle, if non-nil, is invoked after every completed cycle, in
	// utterance order. Callbacks run on the cycle worker goroutine.
	OnCycle func(CycleResult)

	// Logger may be nil, in which case slog.Default() is used.
	Logger *slog.Logger
}

// Orchestrator owns one emergency session: its identity, its state snapshot,
// and the serialized pipeline cycles behind it.
type Orchestrator struct {
	classifier *classify.Engine
	auditor    *audit.Logger
	speaker    tts.Provider
	client     types.ClientInfo
	onCycle    func(CycleResult)
	logger     *slog.Logger

	mu   sync.Mutex
	snap Snapshot

	recognitionErrs int

	cycles chan string
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// New creates an Orchestrator with a fresh session identity and starts its
// cycle worker. The returned session is already in the Ready state. Call
// Close to release the worker.
func New(ctx context.Context, cfg Config) (*Orchestrator, error) {
	if cfg.Classifier == nil {
		return nil, errors.New("session: Classifier is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lang := cfg.Language
	if !lang.IsValid() {
		lang = types.LanguageEnglish
	}

	snap := Snapshot{State: Idle, SessionID: NewSessionID(time.Now()), Language: lang}
	snap = Transition(snap, BeginInit{})
	snap = Transition(snap, InitDone{MicAvailable: cfg.MicAvailable, Location: cfg.Location})
	if !cfg.MicAvailable {
		logger.Warn("microphone unavailable, session limited to typed transcripts",
			"session_id", snap.SessionID)
	}

	o := &Orchestrator{
		classifier: cfg.Classifier,
		auditor:    cfg.Auditor,
		speaker:    cfg.Speaker,
		client:     cfg.Client,
		onCycle:    cfg.OnCycle,
		logger:     logger,
		snap:       snap,
		cycles:     make(chan string, cycleQueueDepth),
		done:       make(chan struct{}),
	}

	o.wg.Add(1)
	go o.cycleLoop(ctx)

	logger.Info("session started",
		"session_id", snap.SessionID,
		"language", snap.Language,
		"mic_available", cfg.MicAvailable,
	)
	return o, nil
}

// Snapshot returns a copy of the current session state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snap
}

// SessionID returns the session's immutable identity.
func (o *Orchestrator) SessionID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snap.SessionID
}

// apply runs one transition under the lock.
func (o *Orchestrator) apply(ev Event) Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.snap = Transition(o.snap, ev)
	return o.snap
}

// SetLanguage switches the conversation language for subsequent cycles.
func (o *Orchestrator) SetLanguage(lang types.Language) {
	o.apply(SetLanguage{Language: lang})
}

// Reset clears the transcript, classification, and error for a new attempt.
// The sessionId is preserved.
func (o *Orchestrator) Reset() {
	o.apply(Reset{})
}

// BeginRecording marks capture in progress.
func (o *Orchestrator) BeginRecording() {
	o.apply(BeginRecording{})
}

// StopRecording abandons a capture that produced no transcript.
func (o *Orchestrator) StopRecording() {
	o.apply(StopRecording{})
}

// SubmitTranscript queues one completed transcript for its classify cycle.
// Cycles run serially in submission order. Returns an error when the session
// is closed or the queue is full faster than cycles drain.
func (o *Orchestrator) SubmitTranscript(transcript string) error {
	select {
	case <-o.done:
		return errors.New("session: closed")
	default:
	}

	o.apply(TranscriptReady{Transcript: transcript})

	select {
	case o.cycles <- transcript:
		return nil
	case <-o.done:
		return errors.New("session: closed")
	default:
		return errors.New("session: cycle queue full")
	}
}

// NotifyRecognitionDegraded records a swallowed streaming-recognition error.
// The session keeps listening; the degradation is observable via Snapshot
// and RecognitionErrors.
func (o *Orchestrator) NotifyRecognitionDegraded(err error) {
	o.mu.Lock()
	o.recognitionErrs++
	o.snap.Degraded = true
	n := o.recognitionErrs
	o.mu.Unlock()

	o.logger.Warn("streaming recognition degraded",
		"session_id", o.SessionID(),
		"count", n,
		"error", err,
	)
}

// RecognitionErrors returns the number of swallowed recognition errors.
func (o *Orchestrator) RecognitionErrors() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.recognitionErrs
}

// Close stops the cycle worker. In-flight cycles finish; queued transcripts
// are discarded. Safe to call twice.
func (o *Orchestrator) Close() {
	o.once.Do(func() {
		close(o.done)
	})
	o.wg.Wait()
}

// cycleLoop is the single worker that runs classify cycles in order.
func (o *Orchestrator) cycleLoop(ctx context.Context) {
	defer o.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-o.done:
			return
		case transcript := <-o.cycles:
			o.runCycle(ctx, transcript)
		}
	}
}

// runCycle executes one classify→log→speak cycle. Classification failures
// degrade the session and end the cycle; logging and synthesis run
// concurrently afterwards and their failures degrade without voiding the
// classification already delivered.
func (o *Orchestrator) runCycle(ctx context.Context, transcript string) {
	snap := o.Snapshot()

	res, err := o.classifier.Classify(ctx, classify.Request{
		Transcript: transcript,
		Location:   locationAddress(snap.Location),
		Language:   snap.Language,
		SessionID:  snap.SessionID,
	})
	if err != nil {
		o.logger.Error("classification failed",
			"session_id", snap.SessionID,
			"error", err,
		)
		o.apply(CycleDone{Err: err})
		o.emit(CycleResult{Transcript: transcript, Err: err})
		return
	}

	c := res.Classification
	o.apply(CycleDone{Classification: &c})

	result := CycleResult{
		Transcript:     transcript,
		Classification: c,
		FallbackUsed:   res.FallbackUsed,
	}

	var (
		stateMu sync.Mutex
		receipt *audit.Receipt
		audio   *tts.Audio
	)

	// The follow-up stages fail independently: an audit error must never
	// abort an in-flight synthesis (or vice versa), so there is no shared
	// cancellation context between them.
	speakDone := make(chan bool, 1)

	var g errgroup.Group
	if o.speaker != nil {
		g.Go(func() error {
			a, speakErr := o.speaker.Synthesize(ctx, c.ResponseMessage, "")
			if speakErr != nil {
				speakDone <- false
				return speakErr
			}
			stateMu.Lock()
			audio = a
			stateMu.Unlock()
			speakDone <- true
			return nil
		})
	} else {
		speakDone <- false
	}
	if o.auditor != nil {
		g.Go(func() error {
			// The row records whether the spoken confirmation was actually
			// synthesised, so the write waits for the speak stage's outcome.
			ttsOK := <-speakDone
			r, logErr := o.auditor.Log(ctx, &audit.Entry{
				SessionID:        snap.SessionID,
				Transcript:       transcript,
				Classification:   c,
				Location:         snap.Location,
				ProcessingTime:   res.ProcessingTime,
				LanguageDetected: string(c.LanguageDetected),
				ModelUsed:        res.ModelUsed,
				FallbackUsed:     res.FallbackUsed,
				TTSSuccess:       ttsOK,
				Client:           o.client,
			})
			if logErr != nil {
				return logErr
			}
			stateMu.Lock()
			receipt = r
			stateMu.Unlock()
			return nil
		})
	}
	if followErr := g.Wait(); followErr != nil {
		// The classification already reached the caller; a lost record or a
		// silent response degrades the session but never voids the cycle.
		o.logger.Warn("post-classification stage failed",
			"session_id", snap.SessionID,
			"error", followErr,
		)
		o.mu.Lock()
		o.snap.Degraded = true
		o.mu.Unlock()
	}

	stateMu.Lock()
	result.Receipt = receipt
	result.Audio = audio
	stateMu.Unlock()

	o.emit(result)
}

// emit delivers a cycle result to the configured callback.
func (o *Orchestrator) emit(res CycleResult) {
	if o.onCycle != nil {
		o.onCycle(res)
	}
}

// locationAddress renders a coordinate as the location string handed to the
// classification prompt.
func locationAddress(c *types.Coordinate) string {
	if c == nil {
		return ""
	}
	if c.Address != "" {
		return c.Address
	}
	return c.String()
}
