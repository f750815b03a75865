package cmd

import (
	"log"
	"os"

	"github.com/casaflow/matchmaker/internal/crm"
	"github.com/casaflow/matchmaker/internal/pipeline"
	"github.com/casaflow/matchmaker/internal/scoring"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "matchmaker"
)

type Config struct {
	Organization string             `mapstructure:"organization"`
	Database     crm.PostgresConfig `mapstructure:"database"`
	Pipeline     pipeline.Config    `mapstructure:"pipeline"`
	Criteria     *CriteriaConfig    `mapstructure:"criteria"`
	Combine      *CombineConfig     `mapstructure:"combine"`
	AI           *AIConfig          `mapstructure:"ai"`
}

type CriteriaConfig struct {
	Weights map[string]int `mapstructure:"weights"`
}

type CombineConfig struct {
	RuleWeight     float64 `mapstructure:"rule-weight"`
	SemanticWeight float64 `mapstructure:"semantic-weight"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

// CriteriaScoringConfig converts the raw weight table into the scoring
// configuration, falling back to the default weighting when none is set.
func (c *Config) CriteriaScoringConfig() scoring.Config {
	if c.Criteria == nil || len(c.Criteria.Weights) == 0 {
		return scoring.DefaultConfig()
	}

	weights := make(map[scoring.Criterion]int, len(c.Criteria.Weights))
	for name, weight := range c.Criteria.Weights {
		weights[scoring.Criterion(name)] = weight
	}
	return scoring.Config{Weights: weights}
}

// CombineScoringConfig converts the blend settings, falling back to the
// standard 70/30 blend when none are set.
func (c *Config) CombineScoringConfig() scoring.CombineConfig {
	if c.Combine == nil {
		return scoring.DefaultCombineConfig()
	}
	return scoring.CombineConfig{
		Rule:     c.Combine.RuleWeight,
		Semantic: c.Combine.SemanticWeight,
	}
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "matchmaker scores how well listed properties fit CRM clients and reports fleet-level match views",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("organization", "MATCHMAKER_ORGANIZATION"); err != nil {
		log.Fatalf("binding MATCHMAKER_ORGANIZATION environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is matchmaker.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config needed only for run command now. If there is no config, we can skip initialization
	if runCmd.CalledAs() == "" {
		return
	}

	// Database credentials commonly live in a local .env during development.
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
