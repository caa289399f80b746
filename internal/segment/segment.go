// Package segment splits lesson text into titled activity blocks.
package segment

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// WholeDocumentTitle names the single block returned when no heading is found.
	WholeDocumentTitle = "Toàn bộ bài học"
	// IntroTitle names content that precedes the first heading.
	IntroTitle = "Phần mở đầu"

	defaultMaxHeadingLength = 80
	defaultMinContentLength = 20
)

// Headings are matched per line. A matched line longer than MaxHeadingLength
// is treated as body text that happens to start with a heading word.
var headingPattern = regexp.MustCompile(strings.Join([]string{
	// Hoạt động 1 / Activity 2 / HOẠT ĐỘNG III
	`(?im:^[ \t]*(?:hoạt động|activity)[ \t]+(?:\d+|[ivxlc]+)(?:[ \t]*[:.)\-–][^\n]*|[ \t][^\n]*)?$)`,
	// I. Mục tiêu / IV) Tiến trình
	`(?m:^[ \t]*[IVX]{1,4}[.)][ \t]*[^\n]*$)`,
	// Tiến trình dạy học / Tổ chức thực hiện / Procedure / a) Khởi động
	`(?im:^[ \t]*(?:\d{1,2}[.)][ \t]*|[a-dđ][.)][ \t]*|[-+•*][ \t]*)?(?:tiến trình|tổ chức thực hiện|procedure|organi[sz]ation|khởi động|luyện tập|vận dụng|hình thành kiến thức|mục tiêu)[^\n]*$)`,
}, "|"))

// ActivityBlock is one titled segment of a lesson.
type ActivityBlock struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Order   int    `json:"order"`
}

// Config tunes heading and noise detection. Zero values take defaults.
type Config struct {
	MaxHeadingLength int `mapstructure:"max-heading-length" validate:"gte=0"`
	MinContentLength int `mapstructure:"min-content-length" validate:"gte=0"`
}

type Segmenter struct {
	maxHeading int
	minContent int
}

func New(cfg Config) *Segmenter {
	s := &Segmenter{
		maxHeading: cfg.MaxHeadingLength,
		minContent: cfg.MinContentLength,
	}
	if s.maxHeading <= 0 {
		s.maxHeading = defaultMaxHeadingLength
	}
	if s.minContent <= 0 {
		s.minContent = defaultMinContentLength
	}
	return s
}

// Split returns the ordered activity blocks of text. For non-empty text the
// result is never empty; callers reject too-short input before calling.
func (s *Segmenter) Split(text string) []ActivityBlock {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var (
		blocks  []ActivityBlock
		title   = IntroTitle
		open    = false
		matched = false
	)

	for _, p := range pieces(text) {
		trimmed := strings.TrimSpace(p.text)
		length := utf8.RuneCountInString(trimmed)

		if p.heading && length < s.maxHeading {
			title = cleanTitle(trimmed)
			open = false
			matched = true
			continue
		}

		if length <= s.minContent {
			continue
		}

		if open {
			last := &blocks[len(blocks)-1]
			last.Content += "\n" + trimmed
			continue
		}

		blocks = append(blocks, ActivityBlock{
			Title:   title,
			Content: trimmed,
			Order:   len(blocks),
		})
		open = true
	}

	if !matched || len(blocks) == 0 {
		return []ActivityBlock{{Title: WholeDocumentTitle, Content: text, Order: 0}}
	}

	return blocks
}

type piece struct {
	text    string
	heading bool
}

// pieces splits text around heading matches, keeping the matches.
func pieces(text string) []piece {
	matches := headingPattern.FindAllStringIndex(text, -1)
	out := make([]piece, 0, len(matches)*2+1)

	prev := 0
	for _, m := range matches {
		if m[0] > prev {
			out = append(out, piece{text: text[prev:m[0]]})
		}
		out = append(out, piece{text: text[m[0]:m[1]], heading: true})
		prev = m[1]
	}
	if prev < len(text) {
		out = append(out, piece{text: text[prev:]})
	}

	return out
}

func cleanTitle(s string) string {
	return strings.TrimSpace(strings.TrimRight(s, " \t:.-–"))
}
