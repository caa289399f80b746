package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/nls-advisor/internal/logger"
)

const (
	Provider = "gemini"

	defaultModel       = "gemini-2.5-flash"
	defaultMaxAttempts = 3
	maxQuotaDelay      = 10 * time.Second
)

// Config is the gemini section of the application config.
type Config struct {
	Model         string `mapstructure:"model"`
	MaxAttempts   int    `mapstructure:"max-attempts" validate:"gte=0,lte=10"`
	MaxInputRunes int    `mapstructure:"max-input-runes" validate:"gte=0"`
	MaxLogLength  int    `mapstructure:"max-log-length" validate:"gte=0"`
	APIKey        string `mapstructure:"api-key"`
	APIKeyFile    string `mapstructure:"api-key-file"`
}

type chatSession interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type chatCreator interface {
	Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error)
}

type clientChats struct {
	chats *genai.Chats
}

func (c clientChats) Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error) {
	chat, err := c.chats.Create(ctx, model, config, history)
	if err != nil {
		return nil, err
	}
	return chat, nil
}

// Generator sends one system instruction and one user message per call over
// a fresh Gemini chat session. It is safe for concurrent use.
type Generator struct {
	chats       chatCreator
	model       string
	maxAttempts int
	logger      *zap.Logger

	// backOff builds the retry schedule; tests swap in a zero delay.
	backOff func() backoff.BackOff
}

// NewGenerator creates a Generator for the Gemini API backend.
func NewGenerator(ctx context.Context, apiKey string, cfg Config, log *zap.Logger) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}

	return &Generator{
		chats:       clientChats{chats: client.Chats},
		model:       model,
		maxAttempts: attempts,
		logger:      logger.WithFields(log, logger.CommonFields(Provider, model)...),
	}, nil
}

// GenerateContent returns the text of the first reply to message.
func (g *Generator) GenerateContent(ctx context.Context, system, message string) (string, error) {
	if g == nil || g.chats == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	message = strings.TrimSpace(message)
	if message == "" {
		return "", errors.New("message must not be empty")
	}

	config := &genai.GenerateContentConfig{}
	if system = strings.TrimSpace(system); system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	var (
		output  string
		attempt int
	)
	operation := func() error {
		attempt++
		chat, err := g.chats.Create(ctx, g.model, config, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create chat: %w", err))
		}

		resp, err := chat.SendMessage(ctx, genai.Part{Text: message})
		if err != nil {
			if retryable(err) {
				return fmt.Errorf("send message: %w", err)
			}
			return backoff.Permanent(fmt.Errorf("send message: %w", err))
		}

		output = responseText(resp)
		if output == "" {
			return backoff.Permanent(errors.New("gemini api returned empty response"))
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		g.log().Warn("gemini request failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(g.newBackOff(), uint64(g.attempts()-1)), ctx)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return "", err
	}

	return output, nil
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

func (g *Generator) attempts() int {
	if g.maxAttempts <= 0 {
		return 1
	}
	return g.maxAttempts
}

func (g *Generator) newBackOff() backoff.BackOff {
	if g.backOff != nil {
		return g.backOff()
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = maxQuotaDelay
	return b
}

func (g *Generator) log() *zap.Logger {
	if g.logger == nil {
		return zap.NewNop()
	}
	return g.logger
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	return strings.TrimSpace(builder.String())
}

var quotaDelayPattern = regexp.MustCompile(`(?i)(?:retry (?:after|in)\s+|"?retryDelay"?\s*[:=]\s*"?)(\d+(?:\.\d+)?)\s*(ms|s|sec|secs|seconds?)?`)

// retryable reports whether err is a transient API failure: any 5xx, or a
// 429 whose quota delay is short enough to wait out.
func retryable(err error) bool {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		var ptr *genai.APIError
		if !errors.As(err, &ptr) || ptr == nil {
			return false
		}
		apiErr = *ptr
	}

	switch {
	case apiErr.Code >= http.StatusInternalServerError:
		return true
	case apiErr.Code == http.StatusTooManyRequests:
		delay, ok := quotaDelay(apiErr.Message)
		return !ok || delay <= maxQuotaDelay
	default:
		return false
	}
}

func quotaDelay(message string) (time.Duration, bool) {
	m := quotaDelayPattern.FindStringSubmatch(message)
	if m == nil {
		return 0, false
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}

	unit := time.Second
	if strings.EqualFold(m[2], "ms") {
		unit = time.Millisecond
	}
	return time.Duration(value * float64(unit)), true
}
