package classify

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"

	"github.com/protect-ng/crossai/pkg/types"
)

// Hint is a keyword detected in a transcript, used to steer the model toward
// the right category when the transcript spells emergency terms phonetically
// (common in Pidgin speech, e.g. "faya" for "fire").
type Hint struct {
	// Word is the transcript token that matched.
	Word string

	// Keyword is the lexicon entry it matched against.
	Keyword string

	// Type is the emergency category the keyword indicates.
	Type types.EmergencyType
}

// lexicon maps emergency keywords to their categories. Entries are lowercase
// single words; matching is exact or phonetic.
var lexicon = map[string]types.EmergencyType{
	"fire":     types.FireOutbreak,
	"faya":     types.FireOutbreak,
	"burning":  types.FireOutbreak,
	"smoke":    types.FireOutbreak,
	"medical":  types.MedicalEmergency,
	"sick":     types.MedicalEmergency,
	"bleeding": types.MedicalEmergency,
	"injury":   types.MedicalEmergency,
	"hospital": types.MedicalEmergency,
	"robbery":  types.ArmedRobbery,
	"thief":    types.ArmedRobbery,
	"gun":      types.ArmedRobbery,
	"armed":    types.ArmedRobbery,
	"accident": types.TrafficAccident,
	"crash":    types.TrafficAccident,
	"collapse": types.BuildingCollapse,
	"flood":    types.Flooding,
	"flooding": types.Flooding,
	"kidnap":   types.Kidnapping,
	"kidnapped": types.Kidnapping,
	"violence": types.DomesticViolence,
	"beating":  types.DomesticViolence,
	"suicide":  types.MentalHealthCrisis,
	"mental":   types.MentalHealthCrisis,
}

// metaphones caches the double-metaphone encoding of every lexicon keyword.
var metaphones = func() map[string][2]string {
	m := make(map[string][2]string, len(lexicon))
	for kw := range lexicon {
		primary, secondary := matchr.DoubleMetaphone(kw)
		m[kw] = [2]string{primary, secondary}
	}
	return m
}()

// KeywordHints scans a transcript for emergency keywords. A token matches a
// lexicon entry when it is equal, shares a double-metaphone encoding, or sits
// within Levenshtein distance 1 of it. At most one hint is reported per
// emergency category.
func KeywordHints(transcript string) []Hint {
	seen := make(map[types.EmergencyType]bool)
	var hints []Hint

	for _, token := range tokenize(transcript) {
		if len(token) < 3 {
			continue
		}
		for kw, typ := range lexicon {
			if seen[typ] {
				continue
			}
			if matchesKeyword(token, kw) {
				seen[typ] = true
				hints = append(hints, Hint{Word: token, Keyword: kw, Type: typ})
			}
		}
	}
	return hints
}

// matchesKeyword reports whether token should be treated as an occurrence of
// the lexicon keyword kw.
func matchesKeyword(token, kw string) bool {
	if token == kw {
		return true
	}
	// Phonetic spellings ("faya", "akcident") encode like their targets.
	tp, ts := matchr.DoubleMetaphone(token)
	enc := metaphones[kw]
	if tp != "" && (tp == enc[0] || tp == enc[1]) {
		return true
	}
	if ts != "" && (ts == enc[0] || ts == enc[1]) {
		return true
	}
	// Single-character typos. Skipped for very short tokens, where distance 1
	// covers too much of the vocabulary.
	return len(token) >= 4 && matchr.Levenshtein(token, kw) <= 1
}

// tokenize lowercases the transcript and splits it on non-letter runes.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}
