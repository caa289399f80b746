package gemini

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/nls-advisor/internal/ai"
)

// ErrMalformedReply is returned when a reply does not follow the requested
// pipe-delimited format. Callers keep their template output in that case.
var ErrMalformedReply = errors.New("malformed gemini reply")

const (
	suggestionFields     = 3
	recommendationFields = 4
)

func parseSuggestion(raw string) (*ai.Suggestion, error) {
	lines := replyLines(raw)
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: empty reply", ErrMalformedReply)
	}

	fields, err := splitFields(lines[0], suggestionFields)
	if err != nil {
		return nil, err
	}

	return &ai.Suggestion{
		Activity: fields[0],
		Tool:     fields[1],
		Product:  fields[2],
		Raw:      raw,
	}, nil
}

func parseRecommendations(raw string) ([]ai.Recommendation, error) {
	lines := replyLines(raw)
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: empty reply", ErrMalformedReply)
	}

	out := make([]ai.Recommendation, 0, len(lines))
	for i, line := range lines {
		fields, err := splitFields(line, recommendationFields)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		out = append(out, ai.Recommendation{
			Code:     fields[0],
			Activity: fields[1],
			Tool:     fields[2],
			Product:  fields[3],
		})
	}

	return out, nil
}

// splitFields splits line on '|' and requires exactly want non-empty fields.
func splitFields(line string, want int) ([]string, error) {
	parts := strings.Split(line, "|")
	if len(parts) != want {
		return nil, fmt.Errorf("%w: want %d fields, got %d", ErrMalformedReply, want, len(parts))
	}

	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
		if parts[i] == "" {
			return nil, fmt.Errorf("%w: field %d is empty", ErrMalformedReply, i+1)
		}
	}

	return parts, nil
}

func replyLines(raw string) []string {
	raw = stripFences(raw)

	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```text")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}
