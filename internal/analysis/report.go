// Package analysis runs a lesson document through segmentation, competency
// matching and code resolution, producing a Report.
package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/spigell/nls-advisor/internal/matcher"
	"github.com/spigell/nls-advisor/internal/segment"
	"github.com/spigell/nls-advisor/internal/taxonomy"
)

// DefaultMinTextLength is the number of characters below which a lesson is
// rejected before any stage runs.
const DefaultMinTextLength = 50

var ErrInsufficientInput = errors.New("insufficient input")

// InsufficientInputError carries the measured length of a rejected text.
type InsufficientInputError struct {
	Length int
	Min    int
}

func (e *InsufficientInputError) Error() string {
	return fmt.Sprintf("lesson text has %d characters, at least %d are required", e.Length, e.Min)
}

func (e *InsufficientInputError) Unwrap() error { return ErrInsufficientInput }

// Document is one lesson submitted for analysis.
type Document struct {
	Name    string
	Subject string
	Tier    taxonomy.Tier
	Text    string
}

type Outcome string

const (
	OutcomeMatched Outcome = "matched"
	OutcomeNoMatch Outcome = "no_match"
)

// StepRecord is the logged result of one stage.
type StepRecord struct {
	Name string `json:"name"`
	Step
}

type Report struct {
	ID         string                  `json:"id"`
	Document   string                  `json:"document,omitempty"`
	Subject    string                  `json:"subject"`
	Tier       taxonomy.Tier           `json:"tier"`
	TextLength int                     `json:"text_length"`
	Blocks     []segment.ActivityBlock `json:"blocks"`
	Results    []matcher.Result        `json:"results"`
	Outcome    Outcome                 `json:"outcome"`
	Steps      []StepRecord            `json:"steps"`
	CreatedAt  time.Time               `json:"created_at"`

	text    string
	profile taxonomy.SubjectProfile
}

func newReport(doc Document, profile taxonomy.SubjectProfile, text string, length int) *Report {
	return &Report{
		ID:         uuid.NewString(),
		Document:   doc.Name,
		Subject:    profile.Name,
		Tier:       doc.Tier,
		TextLength: length,
		Results:    []matcher.Result{},
		CreatedAt:  time.Now().UTC(),
		text:       text,
		profile:    profile,
	}
}

// Text returns the analysed lesson text.
func (r *Report) Text() string { return r.text }

// Matched reports whether at least one competency was suggested.
func (r *Report) Matched() bool { return r.Outcome == OutcomeMatched }

// ActivityResults groups the results suggested for one activity.
type ActivityResults struct {
	Activity string           `json:"activity"`
	Results  []matcher.Result `json:"results"`
}

// ByActivity groups results by activity title in the order titles first appear.
func (r *Report) ByActivity() []ActivityResults {
	index := make(map[string]int)
	groups := make([]ActivityResults, 0)
	for _, result := range r.Results {
		title := result.Activity
		if title == "" {
			title = segment.WholeDocumentTitle
		}
		i, ok := index[title]
		if !ok {
			i = len(groups)
			index[title] = i
			groups = append(groups, ActivityResults{Activity: title})
		}
		groups[i].Results = append(groups[i].Results, result)
	}
	return groups
}

// blockText returns the content of the block titled title, or the whole
// text when there is no such block.
func (r *Report) blockText(title string) string {
	for _, block := range r.Blocks {
		if block.Title == title {
			return block.Content
		}
	}
	return r.text
}

func (r *Report) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "nls_report_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	return file.Name(), nil
}
