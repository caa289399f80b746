package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/nls-advisor/internal/ai"
)

type fakeGenerator struct {
	reply   string
	err     error
	system  string
	message string
	calls   int
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, system, message string) (string, error) {
	f.calls++
	f.system = system
	f.message = message
	return f.reply, f.err
}

func TestSuggesterBuildsPromptAndParses(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	gen := &fakeGenerator{reply: "Khảo sát lớp | Google Form | Biểu đồ cột kết quả"}
	s := NewSuggester(gen, zap.New(core), Options{MaxInputRunes: 10, MaxLogLength: 20})

	got, err := s.Suggest(context.Background(), ai.SuggestRequest{
		Subject:     "KHTN",
		Activity:    "Hoạt động 2",
		Text:        "Học sinh khảo sát ý kiến của lớp về thói quen ngủ.",
		Requirement: "Sử dụng công cụ số để khảo sát ý kiến.",
	})
	require.NoError(t, err)
	assert.Equal(t, "Google Form", got.Tool)
	assert.Equal(t, "Biểu đồ cột kết quả", got.Product)

	assert.Equal(t, systemPrompt, gen.system)
	assert.Contains(t, gen.message, "Môn: KHTN")
	assert.Contains(t, gen.message, "Hoạt động: Hoạt động 2")
	assert.Contains(t, gen.message, "Yêu cầu cần đạt: Sử dụng công cụ số để khảo sát ý kiến.")
	assert.Contains(t, gen.message, "\"\"\"\nHọc sinh k\n\"\"\"")
	assert.NotContains(t, gen.message, "{{")

	entries := logs.FilterMessage("gemini generate content request").All()
	require.Len(t, entries, 1)
	preview := entries[0].ContextMap()["prompt_preview"].(string)
	assert.True(t, strings.HasSuffix(preview, "..."))
	assert.Equal(t, 1, logs.FilterMessage("gemini generate content response").Len())
}

func TestSuggesterMalformedReply(t *testing.T) {
	s := NewSuggester(&fakeGenerator{reply: "Bạn có thể dùng Google Form."}, nil, Options{})

	_, err := s.Suggest(context.Background(), ai.SuggestRequest{Text: "Học sinh khảo sát."})
	require.ErrorIs(t, err, ErrMalformedReply)
}

func TestSuggesterPropagatesGeneratorError(t *testing.T) {
	boom := errors.New("boom")
	s := NewSuggester(&fakeGenerator{err: boom}, nil, Options{})

	_, err := s.Suggest(context.Background(), ai.SuggestRequest{Text: "Học sinh khảo sát."})
	require.ErrorIs(t, err, boom)
}

func TestSuggesterUnavailable(t *testing.T) {
	var s *Suggester
	_, err := s.Suggest(context.Background(), ai.SuggestRequest{Text: "x"})
	require.ErrorIs(t, err, ai.ErrUnavailable)

	gen := &fakeGenerator{}
	_, err = NewSuggester(gen, nil, Options{}).Suggest(context.Background(), ai.SuggestRequest{Text: " "})
	require.Error(t, err)
	assert.Zero(t, gen.calls)
}

func TestRecommenderSendsCatalog(t *testing.T) {
	gen := &fakeGenerator{reply: "5.3TC1a | Khảo sát | Google Form | Biểu đồ"}
	r := NewRecommender(gen, nil, Options{})

	got, err := r.Recommend(context.Background(), ai.RecommendRequest{
		Subject: "KHTN",
		Tier:    "TC1",
		Text:    "Học sinh khảo sát ý kiến của lớp.",
		Catalog: []string{"5.3TC1a: Sử dụng công cụ số để khảo sát ý kiến.", "3.1TC1a: Tạo nội dung số."},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "5.3TC1a", got[0].Code)

	assert.Contains(t, gen.message, "Cấp: TC1")
	assert.Contains(t, gen.message, "5.3TC1a: Sử dụng công cụ số để khảo sát ý kiến.\n3.1TC1a: Tạo nội dung số.")
}

func TestRecommenderMalformedReply(t *testing.T) {
	r := NewRecommender(&fakeGenerator{reply: "5.3TC1a | Khảo sát"}, nil, Options{})

	_, err := r.Recommend(context.Background(), ai.RecommendRequest{Text: "Học sinh khảo sát."})
	require.ErrorIs(t, err, ErrMalformedReply)
}

func TestFillIgnoresPlaceholdersInValues(t *testing.T) {
	template := "Môn: {{SUBJECT}}\nBài: {{LESSON}}"
	values := map[string]string{
		"SUBJECT": "KHTN",
		"LESSON":  "Học sinh ghi {{SUBJECT}} và {{TIER}} vào vở.",
	}

	want := "Môn: KHTN\nBài: Học sinh ghi {{SUBJECT}} và {{TIER}} vào vở."
	for i := 0; i < 20; i++ {
		assert.Equal(t, want, fill(template, values))
	}
}
