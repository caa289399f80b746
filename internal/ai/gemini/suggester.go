package gemini

import (
	"context"
	"errors"
	"sort"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/nls-advisor/internal/ai"
	"github.com/spigell/nls-advisor/internal/util"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
}

var (
	//go:embed system.md
	systemPrompt string
	//go:embed suggest.md
	suggestTemplate string
	//go:embed recommend.md
	recommendTemplate string
)

const (
	defaultMaxLogLength  = 200
	defaultMaxInputRunes = 1000
)

// Options tune prompt size and debug previews.
type Options struct {
	MaxInputRunes int
	MaxLogLength  int
}

func (o Options) withDefaults() Options {
	if o.MaxInputRunes <= 0 {
		o.MaxInputRunes = defaultMaxInputRunes
	}
	if o.MaxLogLength <= 0 {
		o.MaxLogLength = defaultMaxLogLength
	}
	return o
}

type Suggester struct {
	generator contentGenerator
	logger    *zap.Logger
	opts      Options
}

var _ ai.Suggester = (*Suggester)(nil)

func NewSuggester(generator contentGenerator, logger *zap.Logger, opts Options) *Suggester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Suggester{generator: generator, logger: logger, opts: opts.withDefaults()}
}

func (s *Suggester) Suggest(ctx context.Context, req ai.SuggestRequest) (*ai.Suggestion, error) {
	if s == nil || s.generator == nil {
		return nil, ai.ErrUnavailable
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, errors.New("activity text is required")
	}

	prompt := fill(suggestTemplate, map[string]string{
		"SUBJECT":     req.Subject,
		"ACTIVITY":    req.Activity,
		"REQUIREMENT": req.Requirement,
		"LESSON":      truncateRunes(req.Text, s.opts.MaxInputRunes),
	})

	raw, err := generate(ctx, s.generator, s.logger, prompt, s.opts.MaxLogLength, zap.String("activity", req.Activity))
	if err != nil {
		return nil, err
	}

	return parseSuggestion(raw)
}

// generate sends prompt and logs request and response previews at debug level.
func generate(ctx context.Context, generator contentGenerator, logger *zap.Logger, prompt string, maxLogLen int, fields ...zap.Field) (string, error) {
	logger.Debug("gemini generate content request", append(fields,
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", util.TruncateForLog(prompt, maxLogLen)),
	)...)

	raw, err := generator.GenerateContent(ctx, systemPrompt, prompt)
	if err != nil {
		return "", err
	}

	logger.Debug("gemini generate content response", append(fields,
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", util.TruncateForLog(raw, maxLogLen)),
	)...)

	return raw, nil
}

// fill substitutes {{KEY}} placeholders in one pass, so placeholders that
// appear inside the substituted values are left as they are.
func fill(template string, values map[string]string) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, 2*len(keys))
	for _, key := range keys {
		pairs = append(pairs, "{{"+key+"}}", strings.TrimSpace(values[key]))
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

func truncateRunes(s string, limit int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if limit <= 0 || len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
