// Package aggregate turns a complete score matrix into fleet-level views:
// hot-property rankings, underserved clients and a score-distribution
// histogram. It is a stateless transform over an immutable snapshot;
// re-running with the same inputs yields identical outputs.
package aggregate

import (
	"math"
	"sort"

	"github.com/casaflow/matchmaker/internal/pipeline"
)

// PropertyStats summarizes how well a property serves the client base.
type PropertyStats struct {
	PropertyID        string  `json:"propertyId"`
	MatchCount        int     `json:"matchCount"`
	AverageMatchScore float64 `json:"averageMatchScore"`
	TopMatchScore     int     `json:"topMatchScore"`
}

// ClientSummary describes a client whose best score fell below the relevance
// floor, or who has no scored properties at all.
type ClientSummary struct {
	ClientID       string `json:"clientId"`
	BestMatchScore int    `json:"bestMatchScore"`
}

// Bucket is one bar of the score histogram.
type Bucket struct {
	Label string `json:"label"`
	Min   int    `json:"min"`
	Max   int    `json:"max"`
	Count int    `json:"count"`
}

// Result is the full aggregate view for one organization.
type Result struct {
	HotProperties    []PropertyStats `json:"hotProperties"`
	UnmatchedClients []ClientSummary `json:"unmatchedClients"`
	Distribution     []Bucket        `json:"distribution"`
}

// bucketBounds are the fixed, inclusive, non-overlapping histogram ranges.
// Together they cover every integer in [0,100] exactly once.
var bucketBounds = []struct {
	label    string
	min, max int
}{
	{"0-25", 0, 25},
	{"26-50", 26, 50},
	{"51-70", 51, 70},
	{"71-85", 71, 85},
	{"86-100", 86, 100},
}

// Aggregate consumes the resolved score set. clientIDs must list every client
// that was scored so that clients with zero pairs still appear as unmatched.
// floor is the relevance floor: pairs scoring at or above it count as
// matches.
func Aggregate(clientIDs []string, pairs []pipeline.PairScore, floor int) *Result {
	return &Result{
		HotProperties:    hotProperties(pairs, floor),
		UnmatchedClients: unmatchedClients(clientIDs, pairs, floor),
		Distribution:     distribution(pairs),
	}
}

func hotProperties(pairs []pipeline.PairScore, floor int) []PropertyStats {
	type propertyAcc struct {
		count int
		sum   int
		top   int
	}

	acc := make(map[string]*propertyAcc)
	for _, pair := range pairs {
		stats, ok := acc[pair.PropertyID]
		if !ok {
			stats = &propertyAcc{}
			acc[pair.PropertyID] = stats
		}

		if pair.Overall > stats.top {
			stats.top = pair.Overall
		}
		if pair.Overall >= floor {
			stats.count++
			stats.sum += pair.Overall
		}
	}

	ranked := make([]PropertyStats, 0, len(acc))
	for id, stats := range acc {
		entry := PropertyStats{
			PropertyID:    id,
			MatchCount:    stats.count,
			TopMatchScore: stats.top,
		}
		if stats.count > 0 {
			avg := float64(stats.sum) / float64(stats.count)
			entry.AverageMatchScore = math.Round(avg*10) / 10
		}
		ranked = append(ranked, entry)
	}

	// Deterministic ranking: matchCount desc, topMatchScore desc, id asc.
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].MatchCount != ranked[j].MatchCount {
			return ranked[i].MatchCount > ranked[j].MatchCount
		}
		if ranked[i].TopMatchScore != ranked[j].TopMatchScore {
			return ranked[i].TopMatchScore > ranked[j].TopMatchScore
		}
		return ranked[i].PropertyID < ranked[j].PropertyID
	})

	return ranked
}

func unmatchedClients(clientIDs []string, pairs []pipeline.PairScore, floor int) []ClientSummary {
	best := make(map[string]int, len(clientIDs))
	for _, id := range clientIDs {
		best[id] = -1
	}
	for _, pair := range pairs {
		if current, ok := best[pair.ClientID]; !ok || pair.Overall > current {
			best[pair.ClientID] = pair.Overall
		}
	}

	var unmatched []ClientSummary
	for id, score := range best {
		if score >= floor {
			continue
		}
		if score < 0 {
			score = 0
		}
		unmatched = append(unmatched, ClientSummary{ClientID: id, BestMatchScore: score})
	}

	sort.Slice(unmatched, func(i, j int) bool {
		return unmatched[i].ClientID < unmatched[j].ClientID
	})

	return unmatched
}

func distribution(pairs []pipeline.PairScore) []Bucket {
	buckets := make([]Bucket, len(bucketBounds))
	for i, b := range bucketBounds {
		buckets[i] = Bucket{Label: b.label, Min: b.min, Max: b.max}
	}

	for _, pair := range pairs {
		for i := range buckets {
			if pair.Overall >= buckets[i].Min && pair.Overall <= buckets[i].Max {
				buckets[i].Count++
				break
			}
		}
	}

	return buckets
}
