package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/casaflow/matchmaker/internal/ai"
	"github.com/casaflow/matchmaker/internal/logger"
)

//go:embed match_prompt.md
var matchSystemPrompt string

const defaultMaxLogLength = 200

// requiredUnmatchedCap is the rubric ceiling when a required preference is
// unsatisfied. The prompt instructs the model to honor it; the parser
// enforces it regardless.
const requiredUnmatchedCap = 40

// Matcher scores extracted preferences against a property via Gemini.
type Matcher struct {
	generator jsonGenerator
	logger    *zap.Logger
	maxLogLen int
}

// NewMatcher creates a Gemini-backed semantic matcher.
func NewMatcher(generator jsonGenerator, log *zap.Logger, maxLogLength int) *Matcher {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Matcher{
		generator: generator,
		logger:    log,
		maxLogLen: maxLogLength,
	}
}

// Match issues one completion per call. An empty preference list
// short-circuits to a perfect score: no stated constraints means nothing to
// violate. Every failure path resolves to the neutral result.
func (m *Matcher) Match(ctx context.Context, prefs []ai.ExtractedPreference, description string, features []string) *ai.SemanticResult {
	if len(prefs) == 0 {
		return &ai.SemanticResult{Score: 100}
	}

	prompt, err := buildMatchPrompt(prefs, description, features)
	if err != nil {
		m.logger.Warn("building semantic match prompt failed", zap.Error(err))
		return ai.NeutralResult()
	}

	m.logger.Debug("gemini match request",
		zap.Int("preferences", len(prefs)),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, m.maxLogLen)),
	)

	raw, err := m.generator.GenerateJSON(ctx, matchSystemPrompt, prompt)
	if err != nil {
		m.logger.Warn("semantic match call failed", zap.Error(err))
		return ai.NeutralResult()
	}

	m.logger.Debug("gemini match response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, m.maxLogLen)),
	)

	result, err := parseMatch(raw, prefs)
	if err != nil {
		m.logger.Warn("semantic match response unusable", zap.Error(err))
		return ai.NeutralResult()
	}

	return result
}

func buildMatchPrompt(prefs []ai.ExtractedPreference, description string, features []string) (string, error) {
	prefsJSON, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal preferences: %w", err)
	}

	var b strings.Builder
	b.WriteString("Client preferences:\n")
	b.Write(prefsJSON)
	b.WriteString("\n\nProperty description:\n")
	b.WriteString(strings.TrimSpace(description))
	b.WriteString("\n\nProperty features:\n")
	if len(features) == 0 {
		b.WriteString("- none listed\n")
	}
	for _, f := range features {
		b.WriteString("- ")
		b.WriteString(f)
		b.WriteString("\n")
	}
	b.WriteString("\nJSON Response:")

	return b.String(), nil
}

func parseMatch(raw string, prefs []ai.ExtractedPreference) (*ai.SemanticResult, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse match response: %w", err)
	}

	result := &ai.SemanticResult{
		Score:       coerceScore(data["overallScore"], 50),
		Explanation: coerceString(data["explanation"]),
	}

	if entries, ok := data["matches"].([]any); ok {
		for _, entry := range entries {
			fields, ok := entry.(map[string]any)
			if !ok {
				continue
			}

			match := ai.PreferenceMatch{
				Preference: coerceString(fields["preference"]),
				Matched:    coerceBool(fields["matched"]),
				Evidence:   coerceString(fields["evidence"]),
			}
			if match.Preference == "" {
				continue
			}
			result.Matches = append(result.Matches, match)
		}
	}

	if requiredUnmatched(prefs, result.Matches) && result.Score > requiredUnmatchedCap {
		result.Score = requiredUnmatchedCap
	}

	return result, nil
}

// requiredUnmatched reports whether any required preference is explicitly
// unsatisfied in the model's verdict.
func requiredUnmatched(prefs []ai.ExtractedPreference, matches []ai.PreferenceMatch) bool {
	matched := make(map[string]bool, len(matches))
	for _, m := range matches {
		matched[normalizePreference(m.Preference)] = m.Matched
	}

	for _, pref := range prefs {
		if pref.Importance != ai.ImportanceRequired {
			continue
		}
		if ok, seen := matched[normalizePreference(pref.Preference)]; seen && !ok {
			return true
		}
	}

	return false
}

func normalizePreference(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}
