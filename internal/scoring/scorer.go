package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/casaflow/matchmaker/internal/crm"
)

const (
	neutralScore = 50

	// budgetTolerance is the fraction beyond the violated budget bound at
	// which the budget sub-score reaches zero.
	budgetTolerance = 0.20

	// roomPenalty is the cost per bedroom of distance outside the desired
	// range.
	roomPenalty = 25
)

const reasonNotSpecified = "not specified"

// CriterionScore is the outcome of evaluating a single criterion for one
// client/property pair.
type CriterionScore struct {
	Criterion Criterion `json:"criterion"`
	Weight    int       `json:"weight"`
	Score     int       `json:"score"`
	Matched   bool      `json:"matched"`
	Reason    string    `json:"reason"`
}

// MatchScore is the deterministic rule-based result for one pair. The
// breakdown is ordered by weight descending for display.
type MatchScore struct {
	Overall   int              `json:"overall"`
	Breakdown []CriterionScore `json:"breakdown"`
}

// Score computes the weighted rule-based match score. It is a pure function
// of its inputs: no I/O, no randomness, safe to call concurrently.
func Score(client *crm.Client, property *crm.Property, cfg Config) MatchScore {
	breakdown := make([]CriterionScore, 0, len(cfg.Weights))

	var weighted float64
	for criterion, weight := range cfg.Weights {
		score, matched, reason := scoreCriterion(criterion, client, property)

		breakdown = append(breakdown, CriterionScore{
			Criterion: criterion,
			Weight:    weight,
			Score:     score,
			Matched:   matched,
			Reason:    reason,
		})
		weighted += float64(weight) / 100 * float64(score)
	}

	sort.Slice(breakdown, func(i, j int) bool {
		if breakdown[i].Weight != breakdown[j].Weight {
			return breakdown[i].Weight > breakdown[j].Weight
		}
		return breakdown[i].Criterion < breakdown[j].Criterion
	})

	return MatchScore{
		Overall:   clamp(int(math.Round(weighted)), 0, 100),
		Breakdown: breakdown,
	}
}

func scoreCriterion(criterion Criterion, client *crm.Client, property *crm.Property) (int, bool, string) {
	switch criterion {
	case CriterionBudget:
		return scoreBudget(client, property)
	case CriterionType:
		return scoreType(client, property)
	case CriterionRooms:
		return scoreRooms(client, property)
	case CriterionLocation:
		return scoreLocation(client, property)
	case CriterionAmenities:
		return scoreAmenities(client, property)
	}
	return neutralScore, false, reasonNotSpecified
}

func scoreBudget(client *crm.Client, property *crm.Property) (int, bool, string) {
	if property.Price == nil || (client.BudgetMin == nil && client.BudgetMax == nil) {
		return neutralScore, false, reasonNotSpecified
	}

	price := *property.Price

	min := math.Inf(-1)
	if client.BudgetMin != nil {
		min = *client.BudgetMin
	}
	max := math.Inf(1)
	if client.BudgetMax != nil {
		max = *client.BudgetMax
	}

	if price >= min && price <= max {
		return 100, true, "price within budget"
	}

	// Linear decay: 20% beyond the violated bound scores zero.
	var overshoot, bound float64
	if price > max {
		overshoot = price - max
		bound = max
	} else {
		overshoot = min - price
		bound = min
	}

	if bound <= 0 {
		return 0, false, "price outside budget"
	}

	ratio := overshoot / (bound * budgetTolerance)
	if ratio >= 1 {
		return 0, false, "price far outside budget"
	}

	score := int(math.Round(100 * (1 - ratio)))
	return clamp(score, 0, 100), false, "price outside budget"
}

func scoreType(client *crm.Client, property *crm.Property) (int, bool, string) {
	want := strings.TrimSpace(client.PropertyType)
	have := strings.TrimSpace(property.Type)
	if want == "" || have == "" {
		return neutralScore, false, reasonNotSpecified
	}

	if strings.EqualFold(want, have) {
		return 100, true, "property type matches"
	}
	return 0, false, fmt.Sprintf("wants %s, property is %s", want, have)
}

func scoreRooms(client *crm.Client, property *crm.Property) (int, bool, string) {
	if property.Bedrooms == nil || (client.BedroomsMin == nil && client.BedroomsMax == nil) {
		return neutralScore, false, reasonNotSpecified
	}

	bedrooms := *property.Bedrooms

	distance := 0
	switch {
	case client.BedroomsMin != nil && bedrooms < *client.BedroomsMin:
		distance = *client.BedroomsMin - bedrooms
	case client.BedroomsMax != nil && bedrooms > *client.BedroomsMax:
		distance = bedrooms - *client.BedroomsMax
	}

	if distance == 0 {
		return 100, true, "bedrooms within desired range"
	}

	score := clamp(100-distance*roomPenalty, 0, 100)
	return score, false, fmt.Sprintf("%d bedrooms off desired range", distance)
}

func scoreLocation(client *crm.Client, property *crm.Property) (int, bool, string) {
	if len(client.Locations) == 0 {
		return neutralScore, false, reasonNotSpecified
	}

	city := strings.TrimSpace(property.City)
	district := strings.TrimSpace(property.District)
	if city == "" && district == "" {
		return neutralScore, false, reasonNotSpecified
	}

	for _, loc := range client.Locations {
		loc = strings.TrimSpace(loc)
		if loc == "" {
			continue
		}
		if strings.EqualFold(loc, city) || strings.EqualFold(loc, district) {
			return 100, true, "preferred location"
		}
	}

	return 0, false, "outside preferred locations"
}

func scoreAmenities(client *crm.Client, property *crm.Property) (int, bool, string) {
	if len(client.Amenities) == 0 || len(property.Amenities) == 0 {
		return neutralScore, false, reasonNotSpecified
	}

	have := make(map[string]struct{}, len(property.Amenities))
	for _, a := range property.Amenities {
		have[normalizeAmenity(a)] = struct{}{}
	}

	requested, present := 0, 0
	for _, want := range client.Amenities {
		key := normalizeAmenity(want)
		if key == "" {
			continue
		}
		requested++
		if _, ok := have[key]; ok {
			present++
		}
	}

	if requested == 0 {
		return neutralScore, false, reasonNotSpecified
	}

	score := int(math.Round(100 * float64(present) / float64(requested)))
	if present == requested {
		return 100, true, "all requested amenities present"
	}
	return score, false, fmt.Sprintf("%d of %d requested amenities present", present, requested)
}

func normalizeAmenity(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
