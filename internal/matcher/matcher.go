// Package matcher scores lesson text against the competency framework using
// keyword overlap and subject trigger terms.
package matcher

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/spigell/nls-advisor/internal/taxonomy"
	"github.com/spigell/nls-advisor/internal/util"
)

type Source string

const (
	SourceHeuristic Source = "heuristic"
	SourceFallback  Source = "fallback"
	SourceAI        Source = "ai"
)

const (
	defaultMinTokenLength = 3
	defaultMaxResults     = 3
	defaultEvidenceRunes  = 200

	DefaultTriggerBonus = 0.3
	DefaultThreshold    = 0.4
)

// Result is one suggested competency for a lesson or one of its activities.
type Result struct {
	Code          string  `json:"code"`
	Requirement   string  `json:"requirement"`
	Found         bool    `json:"found"`
	Evidence      string  `json:"evidence,omitempty"`
	Product       string  `json:"suggested_product"`
	Justification string  `json:"justification"`
	Score         float64 `json:"score"`
	Activity      string  `json:"activity,omitempty"`
	Tool          string  `json:"tool,omitempty"`
	Source        Source  `json:"source"`
}

// Config holds the heuristic constants. They are tuning knobs, not
// calibrated values.
type Config struct {
	MinTokenLength int     `mapstructure:"min-token-length" validate:"gte=0,lte=10"`
	TriggerBonus   float64 `mapstructure:"trigger-bonus" validate:"gte=0,lte=1"`
	Threshold      float64 `mapstructure:"threshold" validate:"gte=0,lte=2"`
	MaxResults     int     `mapstructure:"max-results" validate:"gte=0,lte=20"`
	EvidenceRunes  int     `mapstructure:"evidence-runes" validate:"gte=0"`
}

func DefaultConfig() Config {
	return Config{
		MinTokenLength: defaultMinTokenLength,
		TriggerBonus:   DefaultTriggerBonus,
		Threshold:      DefaultThreshold,
		MaxResults:     defaultMaxResults,
		EvidenceRunes:  defaultEvidenceRunes,
	}
}

// Input is one span of lesson text to score.
type Input struct {
	// Title labels the span in results; empty for whole-document matching.
	Title   string
	Text    string
	Tier    taxonomy.Tier
	Profile taxonomy.SubjectProfile
	// Entries must already be restricted to Tier.
	Entries []taxonomy.CompetencyEntry
}

type Matcher struct {
	cfg Config
}

func New(cfg Config) *Matcher {
	if cfg.MinTokenLength <= 0 {
		cfg.MinTokenLength = defaultMinTokenLength
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = defaultMaxResults
	}
	if cfg.EvidenceRunes <= 0 {
		cfg.EvidenceRunes = defaultEvidenceRunes
	}
	return &Matcher{cfg: cfg}
}

func (m *Matcher) Config() Config { return m.cfg }

type candidate struct {
	entry   taxonomy.CompetencyEntry
	matched int
	total   int
	score   float64
}

// Match scores every entry against the span and returns at most MaxResults
// results ordered by score. Entries keep taxonomy order on equal scores.
func (m *Matcher) Match(in Input) []Result {
	text := util.Fold(in.Text)
	trigger := firstTrigger(text, in.Profile.Triggers)

	bonus := 0.0
	if trigger != "" {
		bonus = m.cfg.TriggerBonus
	}

	accepted := make([]candidate, 0)
	for _, entry := range in.Entries {
		tokens := m.tokens(entry.Description)
		matched := 0
		for _, token := range tokens {
			if strings.Contains(text, token) {
				matched++
			}
		}

		base := 0.0
		if len(tokens) > 0 {
			base = float64(matched) / float64(len(tokens))
		}

		score := base + bonus
		if score > m.cfg.Threshold {
			accepted = append(accepted, candidate{entry: entry, matched: matched, total: len(tokens), score: score})
		}
	}

	sort.SliceStable(accepted, func(i, j int) bool {
		return accepted[i].score > accepted[j].score
	})

	evidence := m.evidence(in.Text, in.Profile.Triggers)
	product := productFor(in.Profile, in.Title)

	if len(accepted) == 0 {
		code := in.Profile.DefaultCodeFor(in.Tier)
		if code == "" {
			return nil
		}
		return []Result{m.fallback(in, code, evidence, product)}
	}

	if len(accepted) > m.cfg.MaxResults {
		accepted = accepted[:m.cfg.MaxResults]
	}

	results := make([]Result, 0, len(accepted))
	for _, c := range accepted {
		results = append(results, Result{
			Code:          c.entry.Code,
			Requirement:   c.entry.Description,
			Found:         true,
			Evidence:      evidence,
			Product:       product,
			Justification: justify(c, trigger),
			Score:         round(c.score),
			Activity:      in.Title,
			Source:        SourceHeuristic,
		})
	}

	return results
}

func (m *Matcher) fallback(in Input, code, evidence, product string) Result {
	result := Result{
		Code:          code,
		Requirement:   taxonomy.NotFoundRequirement,
		Evidence:      evidence,
		Product:       product,
		Justification: fmt.Sprintf("Không có yêu cầu nào vượt ngưỡng; gợi ý năng lực mặc định của môn %s.", in.Profile.Name),
		Activity:      in.Title,
		Source:        SourceFallback,
	}
	for _, entry := range in.Entries {
		if entry.Code == code {
			result.Requirement = entry.Description
			result.Found = true
			break
		}
	}
	return result
}

// tokens returns the distinct content words of a requirement description.
func (m *Matcher) tokens(description string) []string {
	fields := strings.FieldsFunc(util.Fold(description), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsMark(r)
	})

	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		if utf8.RuneCountInString(field) <= m.cfg.MinTokenLength {
			continue
		}
		if _, ok := seen[field]; ok {
			continue
		}
		seen[field] = struct{}{}
		out = append(out, field)
	}
	return out
}

func firstTrigger(foldedText string, triggers []string) string {
	for _, term := range triggers {
		if term != "" && strings.Contains(foldedText, util.Fold(term)) {
			return term
		}
	}
	return ""
}

func justify(c candidate, trigger string) string {
	msg := fmt.Sprintf("Khớp %d/%d từ khóa của yêu cầu", c.matched, c.total)
	if trigger != "" {
		msg += fmt.Sprintf("; bài học có sử dụng công cụ số (%s)", trigger)
	}
	return msg + "."
}

func productFor(profile taxonomy.SubjectProfile, title string) string {
	action := profile.Action
	if action == "" {
		action = "tạo một sản phẩm số minh chứng cho kết quả học tập"
	}
	if title == "" {
		return fmt.Sprintf("Học sinh %s.", action)
	}
	return fmt.Sprintf("Học sinh %s trong \"%s\".", action, title)
}

func round(v float64) float64 {
	return math.Round(v*1000) / 1000
}
