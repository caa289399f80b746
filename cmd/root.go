package cmd

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/nls-advisor/internal/ai/gemini"
	"github.com/spigell/nls-advisor/internal/analysis"
	"github.com/spigell/nls-advisor/internal/matcher"
	"github.com/spigell/nls-advisor/internal/segment"
	"github.com/spigell/nls-advisor/internal/server"
)

const (
	app       = "nls-advisor"
	envPrefix = "NLS"

	modeHeuristic = "heuristic"
	modeAI        = "ai"
)

type Config struct {
	Tier string `mapstructure:"tier" validate:"oneof=TC1 TC2"`
	Mode string `mapstructure:"mode" validate:"oneof=heuristic ai"`
	// TaxonomyFile replaces the built-in competency table.
	TaxonomyFile string           `mapstructure:"taxonomy-file"`
	Segment      segment.Config   `mapstructure:"segment"`
	Matcher      matcher.Config   `mapstructure:"matcher"`
	Analysis     AnalysisConfig   `mapstructure:"analysis"`
	AI           AIConfig         `mapstructure:"ai"`
	Server       server.Config    `mapstructure:"server"`
	Subjects     []map[string]any `mapstructure:"subjects" json:"subjects,omitempty"`
}

type AnalysisConfig struct {
	analysis.Options `mapstructure:",squash"`
	MaxResults       int `mapstructure:"max-results" validate:"gte=0,lte=20"`
	// Suggest enriches heuristic results with generated activity suggestions.
	Suggest        bool     `mapstructure:"suggest"`
	DisabledStages []string `mapstructure:"disabled-stages"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider" validate:"omitempty,oneof=gemini"`
	Gemini   gemini.Config `mapstructure:"gemini"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "nls-advisor suggests digital competencies (NLS) for lesson plans",
	}

	validate = validator.New(validator.WithRequiredStructEnabled())
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is nls-advisor.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	defaults := matcher.DefaultConfig()

	v.SetDefault("tier", "TC1")
	v.SetDefault("mode", modeHeuristic)
	v.SetDefault("taxonomy-file", "")
	v.SetDefault("matcher.min-token-length", defaults.MinTokenLength)
	v.SetDefault("matcher.trigger-bonus", defaults.TriggerBonus)
	v.SetDefault("matcher.threshold", defaults.Threshold)
	v.SetDefault("matcher.max-results", defaults.MaxResults)
	v.SetDefault("matcher.evidence-runes", defaults.EvidenceRunes)
	v.SetDefault("analysis.min-text-length", analysis.DefaultMinTextLength)
	v.SetDefault("analysis.max-results", matcher.DefaultAggregateLimit)
	v.SetDefault("analysis.suggest", false)
	v.SetDefault("analysis.disabled-stages", []string{})
	v.SetDefault("ai.provider", gemini.Provider)
	v.SetDefault("ai.gemini.model", "")
	v.SetDefault("ai.gemini.api-key", "")
	v.SetDefault("ai.gemini.api-key-file", "")
	v.SetDefault("server.addr", ":8080")
}

func initConfig() {
	if versionCmd.CalledAs() != "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// The config file is optional, but an explicit or broken one must parse.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	return loadConfig(viper.GetViper())
}

func loadConfig(v *viper.Viper) (*Config, error) {
	var config *Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if config == nil {
		return nil, errors.New("config is empty")
	}

	config.Tier = strings.ToUpper(strings.TrimSpace(config.Tier))
	config.Mode = strings.ToLower(strings.TrimSpace(config.Mode))
	config.AI.Provider = strings.ToLower(strings.TrimSpace(config.AI.Provider))

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}
