package analysis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/spigell/nls-advisor/internal/ai"
	"github.com/spigell/nls-advisor/internal/matcher"
)

const aiJustification = "Đề xuất bởi trợ lý AI dựa trên toàn bộ bài học."

type recommendStage struct {
	toggle
	recommender ai.Recommender
	fallback    Stage
	limit       int
}

// NewRecommend creates the stage that asks a generative recommender for the
// whole lesson. When the recommender is missing or fails, fallback runs
// instead.
func NewRecommend(recommender ai.Recommender, fallback Stage, limit int) Stage {
	if limit <= 0 {
		limit = matcher.DefaultAggregateLimit
	}
	return &recommendStage{recommender: recommender, fallback: fallback, limit: limit}
}

func (s *recommendStage) Name() string { return StageRecommend }

func (s *recommendStage) Validate(deps Deps) error {
	if deps.Table == nil {
		return errors.New("competency table is required")
	}
	if s.fallback == nil {
		return errors.New("fallback stage is required")
	}
	if err := s.fallback.Validate(deps); err != nil {
		return fmt.Errorf("fallback %s: %w", s.fallback.Name(), err)
	}
	return nil
}

func (s *recommendStage) Apply(ctx context.Context, deps Deps, r *Report) (Step, error) {
	if s.recommender == nil {
		return s.fallBack(ctx, deps, r, ai.ErrUnavailable)
	}

	entries := deps.Table.Entries(r.Tier)
	catalog := make([]string, 0, len(entries))
	for _, entry := range entries {
		catalog = append(catalog, entry.Code+": "+entry.Description)
	}

	recommendations, err := s.recommender.Recommend(ctx, ai.RecommendRequest{
		Subject: r.Subject,
		Tier:    string(r.Tier),
		Text:    r.text,
		Catalog: catalog,
	})
	if err != nil {
		return s.fallBack(ctx, deps, r, err)
	}

	// Codes are resolved here as well so that unknown ones carry the
	// not-found marker even when the resolve stage is disabled.
	results := make([]matcher.Result, 0, len(recommendations))
	for _, rec := range recommendations {
		requirement, found := deps.Table.Requirement(r.Tier, rec.Code)
		results = append(results, matcher.Result{
			Code:          rec.Code,
			Requirement:   requirement,
			Found:         found,
			Activity:      rec.Activity,
			Tool:          rec.Tool,
			Product:       rec.Product,
			Justification: aiJustification,
			Source:        matcher.SourceAI,
		})
	}

	r.Results = matcher.Aggregate([][]matcher.Result{results}, s.limit)

	return Step{Initial: len(results), Dropped: len(results) - len(r.Results), Left: len(r.Results)}, nil
}

func (s *recommendStage) fallBack(ctx context.Context, deps Deps, r *Report, cause error) (Step, error) {
	if deps.Logger != nil {
		deps.Logger.Warn("ai recommendation unavailable, using heuristic matching",
			zap.String("fallback", s.fallback.Name()),
			zap.Error(cause),
		)
	}
	return s.fallback.Apply(ctx, deps, r)
}

func (s *recommendStage) Status() Status {
	fallback := ""
	if s.fallback != nil {
		fallback = s.fallback.Name()
	}
	return Status{
		Name:    s.Name(),
		Enabled: s.IsEnabled(),
		Reason:  s.reason,
		Details: map[string]string{
			"configured": strconv.FormatBool(s.recommender != nil),
			"fallback":   fallback,
			"limit":      strconv.Itoa(s.limit),
		},
	}
}

type suggestStage struct {
	toggle
	suggester ai.Suggester
}

// NewSuggest creates the optional stage that replaces template products with
// generated ones. Suggester failures keep the template product.
func NewSuggest(suggester ai.Suggester) Stage {
	s := &suggestStage{suggester: suggester}
	if suggester == nil {
		s.Disable("suggester is not configured")
	}
	return s
}

func (s *suggestStage) Name() string { return StageSuggest }

func (s *suggestStage) Validate(Deps) error {
	if s.suggester == nil {
		return errors.New("suggester is required")
	}
	return nil
}

func (s *suggestStage) Apply(ctx context.Context, deps Deps, r *Report) (Step, error) {
	enriched := 0
	for i := range r.Results {
		result := &r.Results[i]
		if !result.Found || result.Source == matcher.SourceAI {
			continue
		}

		suggestion, err := s.suggester.Suggest(ctx, ai.SuggestRequest{
			Subject:     r.Subject,
			Activity:    result.Activity,
			Text:        r.blockText(result.Activity),
			Requirement: result.Requirement,
		})
		if err != nil {
			if deps.Logger != nil {
				deps.Logger.Warn("ai suggestion failed, keeping template product",
					zap.String("code", result.Code),
					zap.String("activity", result.Activity),
					zap.Error(err),
				)
			}
			continue
		}

		result.Product = suggestion.Product
		result.Tool = suggestion.Tool
		enriched++
	}

	if deps.Logger != nil {
		deps.Logger.Debug("ai suggestions applied", zap.Int("enriched", enriched), zap.Int("results", len(r.Results)))
	}

	return Step{Initial: len(r.Results), Dropped: 0, Left: len(r.Results)}, nil
}

func (s *suggestStage) Status() Status {
	return Status{
		Name:    s.Name(),
		Enabled: s.IsEnabled(),
		Reason:  s.reason,
		Details: map[string]string{"configured": strconv.FormatBool(s.suggester != nil)},
	}
}
