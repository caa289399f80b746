package extract

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// pdfText returns the text layer of a PDF, one line per text row. A scanned
// PDF without a text layer yields an empty string and no error.
func pdfText(data []byte) (text string, err error) {
	// the reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdf reader: %w", err)
	}

	var out strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		rows, err := page.GetTextByRow()
		if err != nil {
			return "", fmt.Errorf("pdf page %d: %w", i, err)
		}
		for _, row := range rows {
			out.WriteString(joinRow(row.Content))
			out.WriteByte('\n')
		}
	}

	return out.String(), nil
}

// joinRow glues the text runs of a row, inserting a space where the gap
// between runs is wider than a fraction of the font size.
func joinRow(words pdf.TextHorizontal) string {
	runs := make([]pdf.Text, len(words))
	copy(runs, words)
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].X < runs[j].X })

	var b strings.Builder
	for i, run := range runs {
		if i > 0 {
			prev := runs[i-1]
			gap := run.X - (prev.X + prev.W)
			if gap > prev.FontSize*0.15 && !strings.HasSuffix(prev.S, " ") && !strings.HasPrefix(run.S, " ") {
				b.WriteByte(' ')
			}
		}
		b.WriteString(run.S)
	}
	return b.String()
}
