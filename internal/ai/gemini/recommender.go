package gemini

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/nls-advisor/internal/ai"
)

type Recommender struct {
	generator contentGenerator
	logger    *zap.Logger
	opts      Options
}

var _ ai.Recommender = (*Recommender)(nil)

func NewRecommender(generator contentGenerator, logger *zap.Logger, opts Options) *Recommender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recommender{generator: generator, logger: logger, opts: opts.withDefaults()}
}

// Recommend asks for competency codes for the whole lesson. Codes are
// returned as given; resolving them against the framework is the caller's job.
func (r *Recommender) Recommend(ctx context.Context, req ai.RecommendRequest) ([]ai.Recommendation, error) {
	if r == nil || r.generator == nil {
		return nil, ai.ErrUnavailable
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, errors.New("lesson text is required")
	}

	prompt := fill(recommendTemplate, map[string]string{
		"SUBJECT": req.Subject,
		"TIER":    req.Tier,
		"CATALOG": strings.Join(req.Catalog, "\n"),
		"LESSON":  truncateRunes(req.Text, r.opts.MaxInputRunes),
	})

	raw, err := generate(ctx, r.generator, r.logger, prompt, r.opts.MaxLogLength, zap.String("tier", req.Tier))
	if err != nil {
		return nil, err
	}

	return parseRecommendations(raw)
}
