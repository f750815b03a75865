package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/casaflow/matchmaker/internal/ai"
	"github.com/casaflow/matchmaker/internal/crm"
	"github.com/casaflow/matchmaker/internal/scoring"
)

// Config tunes the scoring pipeline.
type Config struct {
	// RelevanceFloor is the minimum rule-based score for a pair to be
	// enriched semantically and to count as a match in aggregation.
	RelevanceFloor int `mapstructure:"relevance-floor"`

	// MaxConcurrent bounds in-flight LLM calls.
	MaxConcurrent int `mapstructure:"max-concurrent"`

	// CallTimeout bounds each individual LLM call.
	CallTimeout time.Duration `mapstructure:"call-timeout"`
}

const (
	defaultRelevanceFloor = 50
	defaultMaxConcurrent  = 4
	defaultCallTimeout    = 30 * time.Second
)

func (c *Config) applyDefaults() {
	if c.RelevanceFloor <= 0 {
		c.RelevanceFloor = defaultRelevanceFloor
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = defaultMaxConcurrent
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = defaultCallTimeout
	}
}

// PairScore is the resolved score for one client/property pair.
type PairScore struct {
	ClientID   string                   `json:"clientId"`
	PropertyID string                   `json:"propertyId"`
	RuleScore  int                      `json:"ruleScore"`
	Semantic   *int                     `json:"semanticScore,omitempty"`
	Overall    int                      `json:"overall"`
	Breakdown  []scoring.CriterionScore `json:"breakdown"`
	Enriched   bool                     `json:"enriched"`
}

// Engine runs the full rule-then-enrich scoring pass for one organization.
// The rule layer is pure and parallelized; the semantic layer is gated by the
// relevance floor and bounded in concurrency. Extracted preferences live only
// for the duration of one Run.
type Engine struct {
	criteria  scoring.Config
	combine   scoring.CombineConfig
	cfg       Config
	extractor ai.Extractor
	matcher   ai.Matcher
	logger    *zap.Logger
}

// New validates the configuration once and returns a ready engine. A nil
// extractor or matcher disables semantic enrichment; rule scores pass through
// unchanged.
func New(criteria scoring.Config, combine scoring.CombineConfig, cfg Config, extractor ai.Extractor, matcher ai.Matcher, log *zap.Logger) (*Engine, error) {
	if err := criteria.Validate(); err != nil {
		return nil, fmt.Errorf("criteria config: %w", err)
	}
	if err := combine.Validate(); err != nil {
		return nil, fmt.Errorf("combine config: %w", err)
	}
	cfg.applyDefaults()

	if log == nil {
		log = zap.NewNop()
	}

	return &Engine{
		criteria:  criteria,
		combine:   combine,
		cfg:       cfg,
		extractor: extractor,
		matcher:   matcher,
		logger:    log,
	}, nil
}

// RelevanceFloor exposes the configured floor for aggregation.
func (e *Engine) RelevanceFloor() int {
	return e.cfg.RelevanceFloor
}

// SemanticEnabled reports whether the semantic layer will run.
func (e *Engine) SemanticEnabled() bool {
	return e.extractor != nil && e.matcher != nil
}

// Run scores every client/property pair and returns the complete score set,
// sorted by client id then property id. It returns only when every
// enrichment call has resolved or fallen back, so the result is safe to
// aggregate.
func (e *Engine) Run(ctx context.Context, clients []*crm.Client, properties []*crm.Property) ([]PairScore, error) {
	pairs := e.rulePass(ctx, clients, properties)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if e.SemanticEnabled() {
		if err := e.enrich(ctx, clients, properties, pairs); err != nil {
			return nil, err
		}
	}

	for i := range pairs {
		pairs[i].Overall = scoring.Combine(pairs[i].RuleScore, pairs[i].Semantic, e.combine)
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].ClientID != pairs[j].ClientID {
			return pairs[i].ClientID < pairs[j].ClientID
		}
		return pairs[i].PropertyID < pairs[j].PropertyID
	})

	e.logger.Info("scoring pass finished",
		zap.Int("clients", len(clients)),
		zap.Int("properties", len(properties)),
		zap.Int("pairs", len(pairs)),
	)

	return pairs, nil
}

// rulePass scores all pairs deterministically. Each goroutine writes to its
// own slice slot, so no locking is needed.
func (e *Engine) rulePass(ctx context.Context, clients []*crm.Client, properties []*crm.Property) []PairScore {
	pairs := make([]PairScore, len(clients)*len(properties))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for ci, client := range clients {
		for pi, property := range properties {
			idx := ci*len(properties) + pi

			g.Go(func() error {
				match := scoring.Score(client, property, e.criteria)
				pairs[idx] = PairScore{
					ClientID:   client.ID,
					PropertyID: property.ID,
					RuleScore:  match.Overall,
					Overall:    match.Overall,
					Breakdown:  match.Breakdown,
				}
				return nil
			})
		}
	}

	// Goroutines never return errors; Wait is the barrier.
	_ = g.Wait()

	return pairs
}

// enrich runs preference extraction once per client and a semantic match per
// relevant pair. A failed or slow call degrades only its own pair; siblings
// proceed. Wait acts as the aggregation barrier.
func (e *Engine) enrich(ctx context.Context, clients []*crm.Client, properties []*crm.Property, pairs []PairScore) error {
	relevant := make(map[string][]int, len(clients))
	for i, pair := range pairs {
		if pair.RuleScore >= e.cfg.RelevanceFloor {
			relevant[pair.ClientID] = append(relevant[pair.ClientID], i)
		}
	}
	if len(relevant) == 0 {
		return nil
	}

	clientsByID := make(map[string]*crm.Client, len(clients))
	for _, c := range clients {
		clientsByID[c.ID] = c
	}
	propertiesByID := make(map[string]*crm.Property, len(properties))
	for _, p := range properties {
		propertiesByID[p.ID] = p
	}

	// Phase one: one extraction per client with relevant pairs.
	prefs := make(map[string][]ai.ExtractedPreference, len(relevant))
	var prefsMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxConcurrent)

	for clientID := range relevant {
		client := clientsByID[clientID]
		if client == nil {
			continue
		}

		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, e.cfg.CallTimeout)
			defer cancel()

			extracted := e.extractor.Extract(callCtx, client.FreeText())

			prefsMu.Lock()
			prefs[client.ID] = extracted
			prefsMu.Unlock()

			e.logger.Debug("preferences extracted",
				zap.String("client_id", client.ID),
				zap.Int("count", len(extracted)),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Phase two: semantic match per relevant pair.
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxConcurrent)

	for clientID, indexes := range relevant {
		clientPrefs := prefs[clientID]

		for _, idx := range indexes {
			property := propertiesByID[pairs[idx].PropertyID]
			if property == nil {
				continue
			}

			g.Go(func() error {
				callCtx, cancel := context.WithTimeout(gctx, e.cfg.CallTimeout)
				defer cancel()

				result := e.matcher.Match(callCtx, clientPrefs, property.Description, property.FeatureList())

				score := result.Score
				pairs[idx].Semantic = &score
				pairs[idx].Enriched = true
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return err
	}

	return ctx.Err()
}

// ScorePair resolves a single pair by id. Missing records surface as
// crm.ErrNotFound; scoring itself cannot fail.
func (e *Engine) ScorePair(ctx context.Context, store crm.Store, orgID, clientID, propertyID string) (*PairScore, error) {
	client, err := store.Client(ctx, orgID, clientID)
	if err != nil {
		return nil, err
	}
	property, err := store.Property(ctx, orgID, propertyID)
	if err != nil {
		return nil, err
	}

	pairs, err := e.Run(ctx, []*crm.Client{client}, []*crm.Property{property})
	if err != nil {
		return nil, err
	}

	return &pairs[0], nil
}
