package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chwongs96-beep/excel-workflow-tool/model"
)

// Engine runs workflows one step at a time on the calling goroutine.
type Engine struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{log: log.With(slog.String("component", "engine"))}
}

// Run executes every step of wf in topological order.
func (e *Engine) Run(ctx context.Context, wf *Workflow, progress ProgressFunc) (Results, error) {
	order, err := wf.Order()
	if err != nil {
		return nil, err
	}
	return e.run(ctx, wf, order, progress)
}

// RunTo executes target and its ancestors only, in the same relative order
// a full run would use.
func (e *Engine) RunTo(ctx context.Context, wf *Workflow, target model.ID, progress ProgressFunc) (Results, error) {
	ancestors, err := wf.Ancestors(target)
	if err != nil {
		return nil, err
	}
	full, err := wf.Order()
	if err != nil {
		return nil, err
	}
	include := map[model.ID]bool{target: true}
	for _, id := range ancestors {
		include[id] = true
	}
	order := make([]model.ID, 0, len(include))
	for _, id := range full {
		if include[id] {
			order = append(order, id)
		}
	}
	return e.run(ctx, wf, order, progress)
}

func (e *Engine) run(ctx context.Context, wf *Workflow, order []model.ID, progress ProgressFunc) (Results, error) {
	outputs := map[model.ID]model.Payloads{}
	results := Results{}
	total := len(order)

	for i, id := range order {
		step, ok := wf.Step(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrStepNotFound, id)
		}
		step.SetContext(wf.Params)

		if err := step.Validate(); err != nil {
			e.log.Warn("run aborted", slog.String("step", string(id)), slog.String("phase", string(PhaseValidate)), slog.Any("err", err))
			return nil, &StepError{StepID: id, StepName: step.Name(), Phase: PhaseValidate, Err: err}
		}

		in := model.Payloads{}
		for _, c := range wf.connections {
			if c.ToNode != id {
				continue
			}
			if v, ok := outputs[c.FromNode][c.FromPort]; ok {
				in[c.ToPort] = v
			}
		}

		e.log.Debug("executing step", slog.String("step", string(id)), slog.String("type", step.Type()), slog.Int("index", i+1), slog.Int("total", total))
		out, err := step.Execute(ctx, in)
		if err != nil {
			results[id] = Result{Success: false, Error: err.Error()}
			e.log.Warn("run aborted", slog.String("step", string(id)), slog.String("phase", string(PhaseExecute)), slog.Any("err", err))
			return results, &StepError{StepID: id, StepName: step.Name(), Phase: PhaseExecute, Err: err}
		}
		if out == nil {
			out = model.Payloads{}
		}
		outputs[id] = out
		results[id] = Result{Success: true, Outputs: out}

		if progress != nil {
			progress(i+1, total, step.Name(), id)
		}
	}
	return results, nil
}
