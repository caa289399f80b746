package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/nls-advisor/internal/logger"
	"github.com/spigell/nls-advisor/internal/taxonomy"
	"github.com/spigell/nls-advisor/internal/util"
)

// Pipeline runs documents through an ordered list of stages. It holds no
// per-run state and may be shared between goroutines as long as its stages
// are not disabled concurrently.
type Pipeline struct {
	table    *taxonomy.Table
	profiles *taxonomy.Profiles
	stages   []Stage
	minText  int
	logger   *zap.Logger
}

type Options struct {
	MinTextLength int `mapstructure:"min-text-length" validate:"gte=0"`
}

func New(table *taxonomy.Table, profiles *taxonomy.Profiles, stages []Stage, log *zap.Logger, opts Options) *Pipeline {
	minText := opts.MinTextLength
	if minText <= 0 {
		minText = DefaultMinTextLength
	}
	return &Pipeline{
		table:    table,
		profiles: profiles,
		stages:   stages,
		minText:  minText,
		logger:   logger.WithFields(log),
	}
}

// Stages returns the configured stages in run order.
func (p *Pipeline) Stages() []Stage { return p.stages }

// Run analyses one document. Unknown subjects and tiers are rejected, as is
// text shorter than the minimum length; in both cases no stage runs. A
// lesson without any matching competency is a report with OutcomeNoMatch,
// not an error.
func (p *Pipeline) Run(ctx context.Context, doc Document) (*Report, error) {
	if p.table == nil || p.profiles == nil {
		return nil, errors.New("pipeline is not initialized")
	}

	profile, err := p.profiles.Get(doc.Subject)
	if err != nil {
		return nil, err
	}

	if err := resolveTier(p.table, doc.Tier); err != nil {
		return nil, fmt.Errorf("%w: %q", err, doc.Tier)
	}

	text := strings.TrimSpace(util.Sanitize(doc.Text))
	length := utf8.RuneCountInString(text)
	if length < p.minText {
		return nil, &InsufficientInputError{Length: length, Min: p.minText}
	}

	report := newReport(doc, profile, text, length)
	log := logger.ForAnalysis(p.logger, report.ID, doc.Name, profile.Name, string(doc.Tier))
	deps := Deps{Logger: log, Table: p.table}

	for _, stage := range p.stages {
		if !stage.IsEnabled() {
			continue
		}
		if err := stage.Validate(deps); err != nil {
			return nil, fmt.Errorf("%s: %w", stage.Name(), err)
		}
	}

	for _, stage := range p.stages {
		if !stage.IsEnabled() {
			log.Debug("stage disabled", zap.String("name", stage.Name()))
			continue
		}

		info, err := stage.Apply(ctx, deps, report)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", stage.Name(), err)
		}

		log.Info("analysis step",
			zap.String("name", stage.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)
		report.Steps = append(report.Steps, StepRecord{Name: stage.Name(), Step: info})
	}

	report.Outcome = OutcomeNoMatch
	if len(report.Results) > 0 {
		report.Outcome = OutcomeMatched
	}

	log.Info("analysis finished",
		zap.String("outcome", string(report.Outcome)),
		zap.Int("results", len(report.Results)),
	)

	return report, nil
}
