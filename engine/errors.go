package engine

import (
	"errors"
	"fmt"

	"github.com/chwongs96-beep/excel-workflow-tool/model"
)

var (
	ErrStepNotFound  = errors.New("step not found")
	ErrPortNotFound  = errors.New("port not found")
	ErrPortDirection = errors.New("port direction mismatch")
	ErrCycle         = errors.New("workflow contains a cycle")
)

type Phase string

const (
	PhaseValidate Phase = "validate"
	PhaseExecute  Phase = "execute"
)

// StepError reports the step at which a run stopped.
type StepError struct {
	StepID   model.ID
	StepName string
	Phase    Phase
	Err      error
}

func (e *StepError) Error() string {
	if e.Phase == PhaseValidate {
		return fmt.Sprintf("step '%s' (%s): %v", e.StepName, e.StepID, e.Err)
	}
	return fmt.Sprintf("error in step '%s' (%s): %v", e.StepName, e.StepID, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
