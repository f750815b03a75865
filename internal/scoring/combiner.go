package scoring

import "math"

// Combine blends the rule-based score with the semantic score. A nil semantic
// score means the semantic layer was unavailable for this pair and the rule
// score passes through unchanged.
func Combine(rule int, semantic *int, cfg CombineConfig) int {
	if semantic == nil {
		return rule
	}

	blended := float64(rule)*cfg.Rule + float64(*semantic)*cfg.Semantic
	return clamp(int(math.Round(blended)), 0, 100)
}
