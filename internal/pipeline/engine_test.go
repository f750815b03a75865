package pipeline

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/casaflow/matchmaker/internal/ai"
	"github.com/casaflow/matchmaker/internal/crm"
	"github.com/casaflow/matchmaker/internal/scoring"
)

func floatPtr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }

type stubExtractor struct {
	mu    sync.Mutex
	calls int
	prefs []ai.ExtractedPreference
}

func (s *stubExtractor) Extract(_ context.Context, _ string) []ai.ExtractedPreference {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.prefs
}

type stubMatcher struct {
	mu      sync.Mutex
	scores  map[string]int // by description
	visited []string
}

func (s *stubMatcher) Match(_ context.Context, _ []ai.ExtractedPreference, description string, _ []string) *ai.SemanticResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visited = append(s.visited, description)

	if score, ok := s.scores[description]; ok {
		return &ai.SemanticResult{Score: score}
	}
	return ai.NeutralResult()
}

// matchingClient pairs perfectly with matchingProperty (rule score 100) and
// poorly with distantProperty.
func matchingClient(id string) *crm.Client {
	return &crm.Client{
		ID:           id,
		BudgetMin:    floatPtr(100000),
		BudgetMax:    floatPtr(200000),
		BedroomsMin:  intPtr(2),
		BedroomsMax:  intPtr(3),
		PropertyType: "apartment",
		Locations:    []string{"Old Town"},
		Amenities:    []string{"balcony"},
		Notes:        "long enough notes about what this client wants",
	}
}

func matchingProperty(id string) *crm.Property {
	return &crm.Property{
		ID:          id,
		Type:        "apartment",
		Price:       floatPtr(150000),
		District:    "Old Town",
		Bedrooms:    intPtr(2),
		Amenities:   []string{"balcony"},
		Description: "desc-" + id,
	}
}

func distantProperty(id string) *crm.Property {
	return &crm.Property{
		ID:          id,
		Type:        "warehouse",
		Price:       floatPtr(900000),
		District:    "Industrial Zone",
		Bedrooms:    intPtr(0),
		Amenities:   []string{"loading dock"},
		Description: "desc-" + id,
	}
}

func newTestEngine(t *testing.T, extractor ai.Extractor, matcher ai.Matcher) *Engine {
	t.Helper()
	engine, err := New(
		scoring.DefaultConfig(),
		scoring.DefaultCombineConfig(),
		Config{RelevanceFloor: 50, MaxConcurrent: 2},
		extractor,
		matcher,
		zap.NewNop(),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return engine
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(
		scoring.Config{Weights: map[scoring.Criterion]int{scoring.CriterionBudget: 10}},
		scoring.DefaultCombineConfig(),
		Config{},
		nil, nil, nil,
	)
	if err == nil {
		t.Fatalf("expected error for invalid criteria weights")
	}

	_, err = New(
		scoring.DefaultConfig(),
		scoring.CombineConfig{Rule: 0.9, Semantic: 0.3},
		Config{},
		nil, nil, nil,
	)
	if err == nil {
		t.Fatalf("expected error for invalid combine weights")
	}
}

func TestRunRuleOnlyWithoutSemanticLayer(t *testing.T) {
	engine := newTestEngine(t, nil, nil)

	clients := []*crm.Client{matchingClient("c1")}
	properties := []*crm.Property{matchingProperty("p1"), distantProperty("p2")}

	pairs, err := engine.Run(context.Background(), clients, properties)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(pairs))
	}
	for _, pair := range pairs {
		if pair.Semantic != nil || pair.Enriched {
			t.Fatalf("expected rule-only pair, got %+v", pair)
		}
		if pair.Overall != pair.RuleScore {
			t.Fatalf("expected overall to equal rule score, got %+v", pair)
		}
	}
}

func TestRunEnrichesOnlyRelevantPairs(t *testing.T) {
	extractor := &stubExtractor{prefs: []ai.ExtractedPreference{
		{Category: ai.CategoryLocation, Preference: "near the sea", Importance: ai.ImportancePreferred},
	}}
	matcher := &stubMatcher{scores: map[string]int{"desc-p1": 100}}
	engine := newTestEngine(t, extractor, matcher)

	clients := []*crm.Client{matchingClient("c1")}
	properties := []*crm.Property{matchingProperty("p1"), distantProperty("p2")}

	pairs, err := engine.Run(context.Background(), clients, properties)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	byProperty := make(map[string]PairScore, len(pairs))
	for _, pair := range pairs {
		byProperty[pair.PropertyID] = pair
	}

	hot := byProperty["p1"]
	if !hot.Enriched || hot.Semantic == nil {
		t.Fatalf("expected relevant pair to be enriched, got %+v", hot)
	}
	if hot.Overall != 100 {
		t.Fatalf("expected blended 100, got %d", hot.Overall)
	}

	cold := byProperty["p2"]
	if cold.Enriched || cold.Semantic != nil {
		t.Fatalf("expected pair below floor to stay rule-only, got %+v", cold)
	}

	if len(matcher.visited) != 1 || matcher.visited[0] != "desc-p1" {
		t.Fatalf("expected a single match call for p1, got %v", matcher.visited)
	}
}

func TestRunExtractsOncePerClient(t *testing.T) {
	extractor := &stubExtractor{}
	matcher := &stubMatcher{}
	engine := newTestEngine(t, extractor, matcher)

	clients := []*crm.Client{matchingClient("c1")}
	properties := []*crm.Property{
		matchingProperty("p1"),
		matchingProperty("p2"),
		matchingProperty("p3"),
	}

	if _, err := engine.Run(context.Background(), clients, properties); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if extractor.calls != 1 {
		t.Fatalf("expected one extraction for the client, got %d", extractor.calls)
	}
	if len(matcher.visited) != 3 {
		t.Fatalf("expected a match call per relevant pair, got %d", len(matcher.visited))
	}
}

func TestRunDegradedCallAffectsOnlyItsPair(t *testing.T) {
	// p1 resolves, p2's matcher falls back to neutral. Both pairs must still
	// be present and combined.
	extractor := &stubExtractor{prefs: []ai.ExtractedPreference{
		{Category: ai.CategoryPrice, Preference: "cheap", Importance: ai.ImportancePreferred},
	}}
	matcher := &stubMatcher{scores: map[string]int{"desc-p1": 90}}
	engine := newTestEngine(t, extractor, matcher)

	clients := []*crm.Client{matchingClient("c1")}
	properties := []*crm.Property{matchingProperty("p1"), matchingProperty("p2")}

	pairs, err := engine.Run(context.Background(), clients, properties)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	byProperty := make(map[string]PairScore, len(pairs))
	for _, pair := range pairs {
		byProperty[pair.PropertyID] = pair
	}

	if *byProperty["p1"].Semantic != 90 {
		t.Fatalf("expected semantic 90 for p1, got %+v", byProperty["p1"])
	}
	if *byProperty["p2"].Semantic != 50 {
		t.Fatalf("expected neutral semantic for p2, got %+v", byProperty["p2"])
	}
}

func TestRunOutputIsSorted(t *testing.T) {
	engine := newTestEngine(t, nil, nil)

	clients := []*crm.Client{matchingClient("c2"), matchingClient("c1")}
	properties := []*crm.Property{matchingProperty("p2"), matchingProperty("p1")}

	pairs, err := engine.Run(context.Background(), clients, properties)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 1; i < len(pairs); i++ {
		prev, curr := pairs[i-1], pairs[i]
		if prev.ClientID > curr.ClientID {
			t.Fatalf("pairs not sorted by client id")
		}
		if prev.ClientID == curr.ClientID && prev.PropertyID > curr.PropertyID {
			t.Fatalf("pairs not sorted by property id within client")
		}
	}
}

type stubStore struct {
	clients    map[string]*crm.Client
	properties map[string]*crm.Property
}

func (s *stubStore) Client(_ context.Context, _, id string) (*crm.Client, error) {
	if c, ok := s.clients[id]; ok {
		return c, nil
	}
	return nil, crm.ErrNotFound
}

func (s *stubStore) Property(_ context.Context, _, id string) (*crm.Property, error) {
	if p, ok := s.properties[id]; ok {
		return p, nil
	}
	return nil, crm.ErrNotFound
}

func (s *stubStore) ClientsByOrganization(context.Context, string) ([]*crm.Client, error) {
	return nil, nil
}

func (s *stubStore) PropertiesByOrganization(context.Context, string) ([]*crm.Property, error) {
	return nil, nil
}

func (s *stubStore) OrganizationAPIKey(context.Context, string) (string, error) {
	return "", nil
}

func TestScorePairNotFound(t *testing.T) {
	engine := newTestEngine(t, nil, nil)
	store := &stubStore{
		clients:    map[string]*crm.Client{"c1": matchingClient("c1")},
		properties: map[string]*crm.Property{"p1": matchingProperty("p1")},
	}

	if _, err := engine.ScorePair(context.Background(), store, "org", "missing", "p1"); err == nil {
		t.Fatalf("expected not found error for missing client")
	}

	if _, err := engine.ScorePair(context.Background(), store, "org", "c1", "missing"); err == nil {
		t.Fatalf("expected not found error for missing property")
	}

	pair, err := engine.ScorePair(context.Background(), store, "org", "c1", "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pair.ClientID != "c1" || pair.PropertyID != "p1" {
		t.Fatalf("unexpected pair: %+v", pair)
	}
}
