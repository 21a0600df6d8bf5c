// Package types defines the data records shared across the CrossAI emergency
// pipeline: transcripts, locations, and the structured classification that
// every stage produces or consumes. Stages communicate exclusively through
// these plain records — never through shared mutable state.
package types

import "strconv"

// Language selects the language mode for classification and playback.
type Language string

const (
	LanguageEnglish Language = "english"
	LanguagePidgin  Language = "pidgin"
)

// IsValid reports whether l is a recognised language mode.
func (l Language) IsValid() bool {
	return l == LanguageEnglish || l == LanguagePidgin
}

// EmergencyType is the closed set of categories a report can be classified into.
type EmergencyType string

const (
	FireOutbreak       EmergencyType = "FIRE_OUTBREAK"
	MedicalEmergency   EmergencyType = "MEDICAL_EMERGENCY"
	ArmedRobbery       EmergencyType = "ARMED_ROBBERY"
	TrafficAccident    EmergencyType = "TRAFFIC_ACCIDENT"
	BuildingCollapse   EmergencyType = "BUILDING_COLLAPSE"
	Flooding           EmergencyType = "FLOODING"
	Kidnapping         EmergencyType = "KIDNAPPING"
	DomesticViolence   EmergencyType = "DOMESTIC_VIOLENCE"
	MentalHealthCrisis EmergencyType = "MENTAL_HEALTH_CRISIS"
	GeneralEmergency   EmergencyType = "GENERAL_EMERGENCY"
)

// EmergencyTypes lists every valid [EmergencyType] in declaration order.
var EmergencyTypes = []EmergencyType{
	FireOutbreak, MedicalEmergency, ArmedRobbery, TrafficAccident,
	BuildingCollapse, Flooding, Kidnapping, DomesticViolence,
	MentalHealthCrisis, GeneralEmergency,
}

// IsValid reports whether t is one of the ten fixed emergency types.
func (t EmergencyType) IsValid() bool {
	for _, v := range EmergencyTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Severity grades the urgency of a classified emergency.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// IsValid reports whether s is one of the four fixed severities.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// Coordinate is a geodetic position captured once at session initialisation.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy,omitempty"`
	Address   string  `json:"address,omitempty"`
}

// String renders the coordinate as "lat, lon".
func (c Coordinate) String() string {
	return strconv.FormatFloat(c.Latitude, 'f', -1, 64) + ", " + strconv.FormatFloat(c.Longitude, 'f', -1, 64)
}

// Transcript is a unit of recognised speech. IsFinal distinguishes interim
// feedback from the authoritative text that drives a classification cycle.
type Transcript struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"isFinal"`
}

// Classification is the structured emergency record produced from a
// transcript. Instances are never mutated after creation — a session replaces
// its classification wholesale when a new cycle completes.
type Classification struct {
	EmergencyType         EmergencyType `json:"emergency_type"`
	Severity              Severity      `json:"severity"`
	Location              string        `json:"location,omitempty"`
	ResponseMessage       string        `json:"response_message"`
	ImmediateActions      []string      `json:"immediate_actions"`
	ConfidenceScore       float64       `json:"confidence_score"`
	LanguageDetected      Language      `json:"language_detected,omitempty"`
	EstimatedResponseTime string        `json:"estimated_response_time,omitempty"`
	EmergencyServices     []string      `json:"emergency_services,omitempty"`
}

// FallbackNumbers are the national emergency phone numbers quoted to the user
// whenever the pipeline degrades. The system's failure mode always points at a
// human dispatcher, never at a dead end.
var FallbackNumbers = []string{"Emergency: 112", "Police: 199", "Fire Service: 199"}

// ClientInfo carries caller metadata attached to audit records.
type ClientInfo struct {
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
	Platform  string `json:"platform,omitempty"`
}
