package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/casaflow/matchmaker/internal/ai"
	"github.com/casaflow/matchmaker/internal/logger"
)

//go:embed extract_prompt.md
var extractSystemPrompt string

// minFreeTextRunes is the smallest free-text input worth a remote call.
const minFreeTextRunes = 10

type jsonGenerator interface {
	GenerateJSON(ctx context.Context, system, prompt string) (string, error)
}

// Extractor derives structured client preferences from free text via Gemini.
type Extractor struct {
	generator jsonGenerator
	logger    *zap.Logger
	maxLogLen int
}

// NewExtractor creates a Gemini-backed preference extractor.
func NewExtractor(generator jsonGenerator, log *zap.Logger, maxLogLength int) *Extractor {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Extractor{
		generator: generator,
		logger:    log,
		maxLogLen: maxLogLength,
	}
}

// Extract issues one completion and parses the response defensively. Inputs
// too short to carry signal skip the remote call entirely; any failure
// degrades to an empty slice.
func (e *Extractor) Extract(ctx context.Context, freeText string) []ai.ExtractedPreference {
	if utf8.RuneCountInString(trimmed(freeText)) < minFreeTextRunes {
		return nil
	}

	prompt := fmt.Sprintf("Client notes and comments:\n\n%s\n\nJSON Response:", freeText)

	e.logger.Debug("gemini extract request",
		zap.Int("text_length", utf8.RuneCountInString(freeText)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, e.maxLogLen)),
	)

	raw, err := e.generator.GenerateJSON(ctx, extractSystemPrompt, prompt)
	if err != nil {
		e.logger.Warn("preference extraction call failed", zap.Error(err))
		return nil
	}

	e.logger.Debug("gemini extract response",
		zap.String("response_preview", logger.TruncateForLog(raw, e.maxLogLen)),
	)

	prefs, err := parseExtraction(raw)
	if err != nil {
		e.logger.Warn("preference extraction response unusable", zap.Error(err))
		return nil
	}

	return prefs
}

func parseExtraction(raw string) ([]ai.ExtractedPreference, error) {
	cleaned := extractJSON(raw)

	var payload struct {
		Preferences []map[string]any `json:"preferences"`
	}
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, fmt.Errorf("parse extraction response: %w", err)
	}

	prefs := make([]ai.ExtractedPreference, 0, len(payload.Preferences))
	for _, entry := range payload.Preferences {
		var pref ai.ExtractedPreference
		if err := weakDecode(entry, &pref); err != nil {
			continue
		}

		if !ai.KnownCategory(pref.Category) {
			continue
		}
		if trimmed(pref.Preference) == "" {
			continue
		}
		pref.Importance = ai.NormalizeImportance(string(pref.Importance))

		prefs = append(prefs, pref)
	}

	return prefs, nil
}

// weakDecode tolerates the loose typing LLM responses come with (numbers as
// strings, booleans as words).
func weakDecode(input map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}
