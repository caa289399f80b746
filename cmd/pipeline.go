package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/nls-advisor/internal/ai"
	"github.com/spigell/nls-advisor/internal/ai/gemini"
	"github.com/spigell/nls-advisor/internal/analysis"
	"github.com/spigell/nls-advisor/internal/matcher"
	"github.com/spigell/nls-advisor/internal/secrets"
	"github.com/spigell/nls-advisor/internal/segment"
	"github.com/spigell/nls-advisor/internal/taxonomy"
)

const apiKeyHint = "set ai.gemini.api-key-file, NLS_AI_GEMINI_API_KEY_FILE or GEMINI_API_KEY"

// loadTaxonomy returns the competency table and the subject profiles with
// config overrides applied on top of the built-in ones.
func loadTaxonomy(config *Config) (*taxonomy.Table, *taxonomy.Profiles, error) {
	table, profiles, err := taxonomy.Default()
	if err != nil {
		return nil, nil, err
	}

	if file := strings.TrimSpace(config.TaxonomyFile); file != "" {
		f, err := os.Open(file)
		if err != nil {
			return nil, nil, fmt.Errorf("open taxonomy file: %w", err)
		}
		defer f.Close()

		if table, err = taxonomy.LoadTable(f); err != nil {
			return nil, nil, fmt.Errorf("taxonomy file %s: %w", file, err)
		}
	}

	if len(config.Subjects) > 0 {
		overrides, err := taxonomy.DecodeProfiles(config.Subjects)
		if err != nil {
			return nil, nil, err
		}
		if profiles, err = profiles.With(overrides...); err != nil {
			return nil, nil, fmt.Errorf("subject overrides: %w", err)
		}
	}

	return table, profiles, nil
}

// buildPipeline assembles the stages for config.Mode. AI collaborators are
// wired only when an API key is available; otherwise the AI stages fall back
// to the heuristic path or stay disabled.
func buildPipeline(ctx context.Context, config *Config, table *taxonomy.Table, profiles *taxonomy.Profiles, logger *zap.Logger) (*analysis.Pipeline, error) {
	heuristic := analysis.NewHeuristic(matcher.New(config.Matcher), config.Analysis.MaxResults)

	var (
		recommender ai.Recommender
		suggester   ai.Suggester
	)

	if config.Mode == modeAI || config.Analysis.Suggest {
		generator, err := newGenerator(ctx, config.AI, logger)
		switch {
		case errors.Is(err, ai.ErrUnavailable):
			logger.Warn("ai is not available, using heuristic matching only",
				zap.Error(err),
				zap.String("hint", apiKeyHint),
			)
		case err != nil:
			return nil, fmt.Errorf("building gemini generator: %w", err)
		default:
			opts := gemini.Options{
				MaxInputRunes: config.AI.Gemini.MaxInputRunes,
				MaxLogLength:  config.AI.Gemini.MaxLogLength,
			}
			if config.Mode == modeAI {
				recommender = gemini.NewRecommender(generator, logger, opts)
			}
			if config.Analysis.Suggest {
				suggester = gemini.NewSuggester(generator, logger, opts)
			}
		}
	}

	stages := []analysis.Stage{analysis.NewSegment(segment.New(config.Segment))}
	if config.Mode == modeAI {
		stages = append(stages, analysis.NewRecommend(recommender, heuristic, config.Analysis.MaxResults))
	} else {
		stages = append(stages, heuristic)
	}
	stages = append(stages, analysis.NewResolve(), analysis.NewSuggest(suggester))

	for _, name := range config.Analysis.DisabledStages {
		analysis.DisableByName(stages, strings.TrimSpace(name), "disabled in config")
	}

	return analysis.New(table, profiles, stages, logger, config.Analysis.Options), nil
}

func newGenerator(ctx context.Context, config AIConfig, logger *zap.Logger) (*gemini.Generator, error) {
	if config.Provider != "" && config.Provider != gemini.Provider {
		return nil, fmt.Errorf("unsupported ai provider: %s", config.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		File:  config.Gemini.APIKeyFile,
		Value: config.Gemini.APIKey,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		if errors.Is(err, secrets.ErrNotConfigured) {
			return nil, fmt.Errorf("%w: %v", ai.ErrUnavailable, err)
		}
		return nil, err
	}

	return gemini.NewGenerator(ctx, apiKey, config.Gemini, logger)
}
