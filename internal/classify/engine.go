// Package classify turns emergency transcripts into structured
// classifications using a language-model backend. The model is asked for one
// JSON object with a pinned schema; whatever comes back is parsed, repaired
// field by field, and — when it cannot be parsed at all — replaced with a
// fixed fallback so the caller always receives an actionable result.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/protect-ng/crossai/internal/fault"
	"github.com/protect-ng/crossai/pkg/provider/llm"
	"github.com/protect-ng/crossai/pkg/types"
)

const (
	// classifyTemperature pins decoding variance low so the model emits
	// stable structured output.
	classifyTemperature = 0.1

	// classifyMaxTokens bounds the response; a full classification object
	// fits comfortably.
	classifyMaxTokens = 1000

	// unknownLocation substitutes for a missing caller location in the
	// prompt and the repaired result.
	unknownLocation = "Unknown location"

	systemPrompt = "You are CrossAI, Nigeria's emergency response AI. Respond only with valid JSON."
)

// fallbackActions are the immediate actions issued when the model's answer
// cannot be parsed.
var fallbackActions = []string{
	"Stay calm and ensure your safety",
	"Remain at your current location if safe",
	"Emergency services have been alerted",
}

// Request is one classification request.
type Request struct {
	// Transcript is the emergency call text. Required.
	Transcript string

	// Location is the caller's location description, if known.
	Location string

	// Language is the caller's conversation language. Defaults to English.
	Language types.Language

	// SessionID is attached to logs for correlation.
	SessionID string
}

// Result is the outcome of a classification.
type Result struct {
	Classification types.Classification

	// ProcessingTime covers the model round trip plus parsing.
	ProcessingTime time.Duration

	// FallbackUsed is true when the model's answer could not be parsed and
	// the fixed fallback classification was substituted.
	FallbackUsed bool

	// ModelUsed is the concrete model that served the request, for audit
	// provenance. Empty when FallbackUsed is true and no response arrived.
	ModelUsed string
}

// Engine classifies emergency transcripts.
type Engine struct {
	provider llm.Provider
	logger   *slog.Logger
}

// New creates an Engine backed by provider. logger may be nil, in which case
// slog.Default() is used.
func New(provider llm.Provider, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{provider: provider, logger: logger}
}

// Classify sends the transcript to the model and returns a repaired
// classification.
//
// An empty transcript fails with fault.ErrInvalidInput before any model call.
// A missing provider fails with fault.ErrConfiguration. Model transport
// errors propagate (wrapping fault.ErrUpstream when the backend answered with
// a non-success status); an unparseable model answer does not — it yields the
// fixed fallback classification with FallbackUsed set.
func (e *Engine) Classify(ctx context.Context, req Request) (*Result, error) {
	transcript := strings.TrimSpace(req.Transcript)
	if transcript == "" {
		return nil, fault.Invalid("transcript is required")
	}
	if e.provider == nil {
		return nil, fmt.Errorf("%w: no classification provider configured", fault.ErrConfiguration)
	}

	lang := req.Language
	if !lang.IsValid() {
		lang = types.LanguageEnglish
	}
	location := strings.TrimSpace(req.Location)
	if location == "" {
		location = unknownLocation
	}

	start := time.Now()
	hints := KeywordHints(transcript)

	resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(transcript, location, lang, hints)},
		},
		Temperature: classifyTemperature,
		MaxTokens:   classifyMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("classify: completion: %w", err)
	}

	result := &Result{ModelUsed: resp.Model}

	parsed, parseErr := parseClassification(resp.Content)
	if parseErr != nil {
		e.logger.Warn("classification response unparseable, using fallback",
			"session_id", req.SessionID,
			"error", parseErr,
		)
		result.Classification = Fallback(location, lang)
		result.FallbackUsed = true
	} else {
		result.Classification = repair(parsed, location, lang)
	}
	result.ProcessingTime = time.Since(start)

	e.logger.Info("emergency classified",
		"session_id", req.SessionID,
		"emergency_type", result.Classification.EmergencyType,
		"severity", result.Classification.Severity,
		"fallback_used", result.FallbackUsed,
		"processing_time", result.ProcessingTime,
	)
	return result, nil
}

// Fallback is the fixed classification substituted when the model's answer
// cannot be parsed. It errs toward HIGH severity: an unreadable answer about
// a possible emergency must not be triaged down.
func Fallback(location string, lang types.Language) types.Classification {
	if location == "" {
		location = unknownLocation
	}
	return types.Classification{
		EmergencyType:         types.GeneralEmergency,
		Severity:              types.SeverityHigh,
		Location:              location,
		ResponseMessage:       "Emergency situation detected. Help is being dispatched to your location.",
		ImmediateActions:      append([]string(nil), fallbackActions...),
		ConfidenceScore:       0.5,
		LanguageDetected:      lang,
		EstimatedResponseTime: "5-10 minutes",
		EmergencyServices:     append([]string(nil), types.FallbackNumbers...),
	}
}

// buildPrompt renders the deterministic classification prompt. Identical
// inputs always produce identical prompts, so a pinned model at low
// temperature yields reproducible classifications.
func buildPrompt(transcript, location string, lang types.Language, hints []Hint) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You are CrossAI, Nigeria's federal emergency response AI system. Analyze this emergency call and respond with ONLY a valid JSON object.

EMERGENCY CALL: %q
LOCATION: %s
LANGUAGE: %s
`, transcript, location, lang)

	if len(hints) > 0 {
		b.WriteString("KEYWORD HINTS:")
		for _, h := range hints {
			fmt.Fprintf(&b, " %q suggests %s;", h.Word, h.Type)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, `
Classify this emergency and respond with this EXACT JSON structure:
{
  "emergency_type": "FIRE_OUTBREAK|MEDICAL_EMERGENCY|ARMED_ROBBERY|TRAFFIC_ACCIDENT|BUILDING_COLLAPSE|FLOODING|KIDNAPPING|DOMESTIC_VIOLENCE|MENTAL_HEALTH_CRISIS|GENERAL_EMERGENCY",
  "severity": "CRITICAL|HIGH|MEDIUM|LOW",
  "location": "%s",
  "response_message": "Clear, actionable emergency response in simple Nigerian English",
  "immediate_actions": ["Action 1", "Action 2", "Action 3"],
  "confidence_score": 0.95,
  "language_detected": "%s",
  "estimated_response_time": "3-5 minutes",
  "emergency_services": ["Nigeria Police Force: 199", "Federal Fire Service: 199", "Emergency: 112"]
}

Guidelines:
- Use Nigerian context and emergency services
- Keep response_message under 200 words
- Use simple, clear language
- Include specific immediate actions
- Confidence score between 0.1-1.0
- Response time based on emergency type and location`, location, lang)

	return b.String()
}

// parseClassification extracts the JSON object from the model's answer.
// Models occasionally wrap their JSON in code fences or prose; everything
// outside the outermost braces is discarded.
func parseClassification(content string) (types.Classification, error) {
	var c types.Classification

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return c, fmt.Errorf("no JSON object in response")
	}

	if err := json.Unmarshal([]byte(content[start:end+1]), &c); err != nil {
		return c, fmt.Errorf("unmarshal classification: %w", err)
	}
	return c, nil
}

// repair normalises a parsed classification so downstream consumers never see
// out-of-enum values or missing operator guidance.
func repair(c types.Classification, location string, lang types.Language) types.Classification {
	if !c.EmergencyType.IsValid() {
		c.EmergencyType = types.GeneralEmergency
	}
	if !c.Severity.IsValid() {
		c.Severity = types.SeverityHigh
	}
	if strings.TrimSpace(c.Location) == "" {
		c.Location = location
	}
	if strings.TrimSpace(c.ResponseMessage) == "" {
		c.ResponseMessage = "Emergency situation detected. Help is being dispatched to your location."
	}
	if len(c.ImmediateActions) == 0 {
		c.ImmediateActions = append([]string(nil), fallbackActions...)
	}
	if c.ConfidenceScore < 0.1 {
		c.ConfidenceScore = 0.1
	}
	if c.ConfidenceScore > 1.0 {
		c.ConfidenceScore = 1.0
	}
	if strings.TrimSpace(string(c.LanguageDetected)) == "" {
		c.LanguageDetected = lang
	}
	if strings.TrimSpace(c.EstimatedResponseTime) == "" {
		c.EstimatedResponseTime = "5-10 minutes"
	}
	if len(c.EmergencyServices) == 0 {
		c.EmergencyServices = append([]string(nil), types.FallbackNumbers...)
	}
	return c
}
