package analysis

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/nls-advisor/internal/taxonomy"
)

// Stage is one step of the analysis pipeline.
type Stage interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate(deps Deps) error
	Apply(ctx context.Context, deps Deps, r *Report) (Step, error)
}

// Deps aggregates dependencies shared across all stages of one run.
type Deps struct {
	Logger *zap.Logger
	Table  *taxonomy.Table
}

// Step describes what a stage did to the report's items (blocks or results).
type Step struct {
	Initial int `json:"initial"`
	Dropped int `json:"dropped"`
	Left    int `json:"left"`
}

// Status represents runtime information about a stage.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// statusProvider is implemented by stages that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

type reasoner interface {
	Reason() string
}

// DisableByName marks the stage with the provided name as disabled while keeping it in the list.
func DisableByName(stages []Stage, name, reason string) {
	for _, stage := range stages {
		if stage.Name() == name {
			stage.Disable(reason)
		}
	}
}

// Describe returns status entries for the provided stages.
func Describe(stages []Stage) []Status {
	statuses := make([]Status, 0, len(stages))
	for _, stage := range stages {
		if reporter, ok := stage.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		status := Status{
			Name:    stage.Name(),
			Enabled: stage.IsEnabled(),
		}
		if r, ok := stage.(reasoner); ok {
			status.Reason = r.Reason()
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// toggle carries the enable/disable state shared by all stages.
type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *toggle) IsEnabled() bool { return !t.disabled }

// Reason returns why the stage was disabled.
func (t *toggle) Reason() string { return t.reason }
