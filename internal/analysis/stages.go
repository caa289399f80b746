package analysis

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/zap"

	"github.com/spigell/nls-advisor/internal/matcher"
	"github.com/spigell/nls-advisor/internal/segment"
	"github.com/spigell/nls-advisor/internal/taxonomy"
)

const (
	StageSegment   = "segment"
	StageHeuristic = "heuristic"
	StageRecommend = "recommend"
	StageResolve   = "resolve"
	StageSuggest   = "suggest"
)

type segmentStage struct {
	toggle
	segmenter *segment.Segmenter
}

// NewSegment creates the stage that splits the lesson into activity blocks.
func NewSegment(segmenter *segment.Segmenter) Stage {
	return &segmentStage{segmenter: segmenter}
}

func (s *segmentStage) Name() string { return StageSegment }

func (s *segmentStage) Validate(Deps) error {
	if s.segmenter == nil {
		return errors.New("segmenter is required")
	}
	return nil
}

func (s *segmentStage) Apply(_ context.Context, deps Deps, r *Report) (Step, error) {
	r.Blocks = s.segmenter.Split(r.text)

	if deps.Logger != nil {
		titles := make([]string, 0, len(r.Blocks))
		for _, block := range r.Blocks {
			titles = append(titles, block.Title)
		}
		deps.Logger.Debug("lesson segmented", zap.Strings("activities", titles))
	}

	return Step{Initial: 0, Dropped: 0, Left: len(r.Blocks)}, nil
}

type heuristicStage struct {
	toggle
	matcher *matcher.Matcher
	limit   int
}

// NewHeuristic creates the stage that scores every activity block with the
// keyword matcher and merges the per-block results.
func NewHeuristic(m *matcher.Matcher, limit int) Stage {
	if limit <= 0 {
		limit = matcher.DefaultAggregateLimit
	}
	return &heuristicStage{matcher: m, limit: limit}
}

func (s *heuristicStage) Name() string { return StageHeuristic }

func (s *heuristicStage) Validate(deps Deps) error {
	if s.matcher == nil {
		return errors.New("matcher is required")
	}
	if deps.Table == nil {
		return errors.New("competency table is required")
	}
	return nil
}

func (s *heuristicStage) Apply(_ context.Context, deps Deps, r *Report) (Step, error) {
	entries := deps.Table.Entries(r.Tier)

	blocks := r.Blocks
	if len(blocks) == 0 {
		blocks = []segment.ActivityBlock{{Title: segment.WholeDocumentTitle, Content: r.text}}
	}

	perBlock := make([][]matcher.Result, 0, len(blocks))
	total := 0
	for _, block := range blocks {
		results := s.matcher.Match(matcher.Input{
			Title:   block.Title,
			Text:    block.Content,
			Tier:    r.Tier,
			Profile: r.profile,
			Entries: entries,
		})
		total += len(results)
		perBlock = append(perBlock, results)
	}

	r.Results = matcher.Aggregate(perBlock, s.limit)

	return Step{Initial: total, Dropped: total - len(r.Results), Left: len(r.Results)}, nil
}

func (s *heuristicStage) Status() Status {
	cfg := s.matcher.Config()
	return Status{
		Name:    s.Name(),
		Enabled: s.IsEnabled(),
		Reason:  s.reason,
		Details: map[string]string{
			"threshold":     strconv.FormatFloat(cfg.Threshold, 'f', 2, 64),
			"trigger_bonus": strconv.FormatFloat(cfg.TriggerBonus, 'f', 2, 64),
			"max_results":   strconv.Itoa(cfg.MaxResults),
			"limit":         strconv.Itoa(s.limit),
		},
	}
}

type resolveStage struct {
	toggle
}

// NewResolve creates the stage that resolves every result code against the
// framework for the report's tier. Unknown codes stay in the report with
// the not-found marker.
func NewResolve() Stage {
	return &resolveStage{}
}

func (s *resolveStage) Name() string { return StageResolve }

func (s *resolveStage) Validate(deps Deps) error {
	if deps.Table == nil {
		return errors.New("competency table is required")
	}
	return nil
}

func (s *resolveStage) Apply(_ context.Context, deps Deps, r *Report) (Step, error) {
	var missing []string
	for i := range r.Results {
		result := &r.Results[i]
		result.Requirement, result.Found = deps.Table.Requirement(r.Tier, result.Code)
		if !result.Found {
			missing = append(missing, result.Code)
		}
	}

	if len(missing) > 0 && deps.Logger != nil {
		deps.Logger.Warn("competency codes not found in framework",
			zap.Strings("codes", missing),
			zap.String("tier", string(r.Tier)),
		)
	}

	return Step{Initial: len(r.Results), Dropped: 0, Left: len(r.Results)}, nil
}

// resolveTier checks that the table knows tier.
func resolveTier(table *taxonomy.Table, tier taxonomy.Tier) error {
	for _, known := range table.Tiers() {
		if known == tier {
			return nil
		}
	}
	return taxonomy.ErrUnknownTier
}
