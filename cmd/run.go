package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/casaflow/matchmaker/internal/aggregate"
	"github.com/casaflow/matchmaker/internal/ai"
	"github.com/casaflow/matchmaker/internal/ai/gemini"
	"github.com/casaflow/matchmaker/internal/crm"
	"github.com/casaflow/matchmaker/internal/logger"
	"github.com/casaflow/matchmaker/internal/pipeline"
	"github.com/casaflow/matchmaker/internal/secrets"

	"github.com/google/uuid"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptHotProperties    = "Report hot properties"
	PromptUnmatchedClients = "Report unmatched clients"
	PromptDistribution     = "Report score distribution"
	PromptScoresToFile     = "Dump pair scores to file"
	PromptExit             = "Exit"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptHotProperties, PromptUnmatchedClients, PromptDistribution, PromptScoresToFile, PromptExit},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Score every client/property pair for the organization and report match views",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("auto", "y", false, "print the full report without interactive prompts")
	runCmd.Flags().String("organization", "", "organization to score. Overrides the config value.")

	viper.BindPFlag("organization", runCmd.Flags().Lookup("organization"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	runID := uuid.NewString()
	logger = logger.With(zap.String("run_id", runID))

	logger.Info("starting the matchmaker", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config == nil {
		logger.Fatal("config is required")
	}

	orgID := strings.TrimSpace(viper.GetString("organization"))
	if orgID == "" {
		orgID = strings.TrimSpace(config.Organization)
	}
	if orgID == "" {
		logger.Fatal("organization id is required",
			zap.String("hint", "set the 'organization' key in the configuration file or the --organization flag"),
		)
	}
	logger = logger.With(zap.String("organization_id", orgID))

	criteria := config.CriteriaScoringConfig()
	if err := criteria.Validate(); err != nil {
		logger.Fatal("invalid criteria configuration", zap.Error(err))
	}

	combine := config.CombineScoringConfig()
	if err := combine.Validate(); err != nil {
		logger.Fatal("invalid combine configuration", zap.Error(err))
	}

	store, err := crm.NewPostgresStore(config.Database)
	if err != nil {
		logger.Fatal("connecting to the CRM database", zap.Error(err))
	}
	defer store.Close()

	if err := store.Ping(ctx); err != nil {
		logger.Fatal("pinging the CRM database", zap.Error(err))
	}

	clients, err := store.ClientsByOrganization(ctx, orgID)
	if err != nil {
		logger.Fatal("loading clients", zap.Error(err))
	}

	properties, err := store.PropertiesByOrganization(ctx, orgID)
	if err != nil {
		logger.Fatal("loading properties", zap.Error(err))
	}

	logger.Info("loaded organization snapshot",
		zap.Int("clients", len(clients)),
		zap.Int("properties", len(properties)),
	)

	if len(clients) == 0 || len(properties) == 0 {
		logger.Info("exiting", zap.String("reason", "nothing to score"))
		return
	}

	extractor, matcher := prepareSemanticLayer(ctx, store, config, orgID, logger)

	engine, err := pipeline.New(criteria, combine, config.Pipeline, extractor, matcher, logger)
	if err != nil {
		logger.Fatal("building the scoring pipeline", zap.Error(err))
	}

	pairs, err := engine.Run(ctx, clients, properties)
	if err != nil {
		logger.Fatal("scoring failed", zap.Error(err))
	}

	clientIDs := make([]string, 0, len(clients))
	for _, c := range clients {
		clientIDs = append(clientIDs, c.ID)
	}

	result := aggregate.Aggregate(clientIDs, pairs, engine.RelevanceFloor())

	logger.Info("aggregation finished",
		zap.Int("hot_properties", len(result.HotProperties)),
		zap.Int("unmatched_clients", len(result.UnmatchedClients)),
	)

	if cmd.Flag("auto").Value.String() == "true" {
		printSection(logger, "hot properties", result.HotProperties)
		printSection(logger, "unmatched clients", result.UnmatchedClients)
		printSection(logger, "score distribution", result.Distribution)
		return
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(action, logger, runID, result, pairs); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleAction(action string, logger *zap.Logger, runID string, result *aggregate.Result, pairs []pipeline.PairScore) error {
	switch action {
	case PromptHotProperties:
		printSection(logger, "hot properties", result.HotProperties)
		return nil
	case PromptUnmatchedClients:
		printSection(logger, "unmatched clients", result.UnmatchedClients)
		return nil
	case PromptDistribution:
		printSection(logger, "score distribution", result.Distribution)
		return nil
	case PromptScoresToFile:
		filename, err := dumpScores(runID, pairs)
		if err != nil {
			return fmt.Errorf("dump scores to file: %w", err)
		}
		logger.Info("dumping pair scores to file", zap.String("filename", filename))
		return nil
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func printSection(logger *zap.Logger, name string, v any) {
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logger.Warn("rendering report section failed", zap.String("section", name), zap.Error(err))
		return
	}
	fmt.Printf("%s:\n%s\n", name, pretty)
}

// dumpScores writes the transient pair scores to a temp file. This is an
// export of run output, not persistence: scores are always recomputed.
func dumpScores(runID string, pairs []pipeline.PairScore) (string, error) {
	data, err := json.MarshalIndent(pairs, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal pair scores: %w", err)
	}

	filename := filepath.Join(os.TempDir(), fmt.Sprintf("matchmaker-scores-%s.json", runID))
	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return "", fmt.Errorf("write pair scores: %w", err)
	}

	return filename, nil
}

// prepareSemanticLayer resolves the Gemini API key (organization key first,
// then the system-wide fallback) and builds the extractor/matcher pair. Any
// missing piece disables semantic enrichment instead of failing the run.
func prepareSemanticLayer(ctx context.Context, store crm.Store, config *Config, orgID string, log *zap.Logger) (ai.Extractor, ai.Matcher) {
	if config.AI == nil || !config.AI.Enabled {
		log.Info("semantic enrichment disabled by configuration")
		return nil, nil
	}

	provider := strings.TrimSpace(strings.ToLower(config.AI.Provider))
	if provider != "" && provider != "gemini" {
		log.Warn("skipping semantic enrichment", zap.String("reason", "unsupported provider"), zap.String("provider", config.AI.Provider))
		return nil, nil
	}

	geminiCfg := config.AI.Gemini
	if geminiCfg == nil {
		geminiCfg = &GeminiConfig{}
	}

	orgKey, err := store.OrganizationAPIKey(ctx, orgID)
	if err != nil {
		log.Warn("looking up organization api key failed", zap.Error(err))
		orgKey = ""
	}

	apiKey := secrets.ResolveAPIKey(orgKey, secrets.Source{
		Name: "gemini api key",
		File: geminiCfg.APIKeyFile,
	})
	if apiKey == "" {
		log.Warn("semantic enrichment disabled",
			zap.String("reason", "no gemini api key available"),
			zap.String("hint", "set an organization key or ai.gemini.api-key-file"),
		)
		return nil, nil
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, geminiCfg.Model)
	if err != nil {
		log.Warn("building gemini generator failed; semantic enrichment disabled", zap.Error(err))
		return nil, nil
	}

	aiLogger := logger.WithCommonFields(log, "gemini", generator.Model())

	return gemini.NewExtractor(generator, aiLogger, geminiCfg.MaxLogLength),
		gemini.NewMatcher(generator, aiLogger, geminiCfg.MaxLogLength)
}
