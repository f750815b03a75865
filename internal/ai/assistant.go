package ai

import (
	"context"
	"strings"
)

// PreferenceCategory classifies an extracted preference.
type PreferenceCategory string

const (
	CategoryLocation  PreferenceCategory = "location"
	CategorySize      PreferenceCategory = "size"
	CategoryRooms     PreferenceCategory = "rooms"
	CategoryAmenities PreferenceCategory = "amenities"
	CategoryFeatures  PreferenceCategory = "features"
	CategoryCondition PreferenceCategory = "condition"
	CategoryPrice     PreferenceCategory = "price"
	CategoryStyle     PreferenceCategory = "style"
)

// Importance ranks how strongly a client holds a preference.
type Importance string

const (
	ImportanceRequired   Importance = "required"
	ImportancePreferred  Importance = "preferred"
	ImportanceNiceToHave Importance = "nice_to_have"
)

// KnownCategory reports whether the model returned one of the allowed
// categories.
func KnownCategory(c PreferenceCategory) bool {
	switch c {
	case CategoryLocation, CategorySize, CategoryRooms, CategoryAmenities,
		CategoryFeatures, CategoryCondition, CategoryPrice, CategoryStyle:
		return true
	}
	return false
}

// NormalizeImportance maps loosely-typed model output onto a known level,
// defaulting to nice_to_have.
func NormalizeImportance(raw string) Importance {
	switch Importance(strings.ToLower(strings.TrimSpace(raw))) {
	case ImportanceRequired:
		return ImportanceRequired
	case ImportancePreferred:
		return ImportancePreferred
	default:
		return ImportanceNiceToHave
	}
}

// ExtractedPreference is one structured preference derived from client free
// text. Instances live for a single matchmaking run and are never cached
// across calls.
type ExtractedPreference struct {
	Category   PreferenceCategory `json:"category" mapstructure:"category"`
	Preference string             `json:"preference" mapstructure:"preference"`
	Importance Importance         `json:"importance" mapstructure:"importance"`
	RawText    string             `json:"rawText" mapstructure:"rawText"`
}

// PreferenceMatch records whether one extracted preference is satisfied by a
// property, with optional supporting evidence from its description.
type PreferenceMatch struct {
	Preference string `json:"preference" mapstructure:"preference"`
	Matched    bool   `json:"matched" mapstructure:"matched"`
	Evidence   string `json:"evidence,omitempty" mapstructure:"evidence"`
}

// SemanticResult is the semantic layer's verdict for one property.
type SemanticResult struct {
	Score       int               `json:"score"`
	Matches     []PreferenceMatch `json:"matches"`
	Explanation string            `json:"explanation,omitempty"`
}

// NeutralResult is the fallback verdict used whenever the semantic layer
// cannot produce one.
func NeutralResult() *SemanticResult {
	return &SemanticResult{Score: 50}
}

// Extractor turns client free text into structured preferences. A failed or
// unconfigured extractor returns an empty slice, never an error.
type Extractor interface {
	Extract(ctx context.Context, freeText string) []ExtractedPreference
}

// Matcher checks extracted preferences against a property's description and
// features. Implementations are total: on any failure they return the neutral
// result instead of an error.
type Matcher interface {
	Match(ctx context.Context, prefs []ExtractedPreference, description string, features []string) *SemanticResult
}
