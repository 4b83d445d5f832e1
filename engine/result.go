package engine

import "github.com/chwongs96-beep/excel-workflow-tool/model"

// Result is the outcome of one step within a run.
type Result struct {
	Success bool           `json:"success"`
	Outputs model.Payloads `json:"output,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Results holds the outcome of every step a run reached, keyed by step id.
type Results map[model.ID]Result

// Failed returns the id of the step that failed, if any.
func (r Results) Failed() (model.ID, bool) {
	for id, res := range r {
		if !res.Success {
			return id, true
		}
	}
	return "", false
}

// ProgressFunc observes a run after each step completes. index is 1-based.
type ProgressFunc func(index, total int, stepName string, stepID model.ID)
