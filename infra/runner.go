package infra

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chwongs96-beep/excel-workflow-tool/engine"
	"github.com/chwongs96-beep/excel-workflow-tool/model"
)

var ErrQueueFull = errors.New("run queue full")

// Runner executes submitted workflows one at a time on a single worker
// goroutine. Each run keeps a bounded log; finished runs are written to the
// history when one is configured.
type Runner struct {
	eng     *engine.Engine
	history *History
	metrics *Metrics
	log     *slog.Logger

	jobs    chan *job
	newID   func() string
	maxLogs int
	keep    int

	mu    sync.Mutex
	runs  map[string]*run
	order []string
}

type job struct {
	id     string
	name   string
	wf     *engine.Workflow
	target model.ID
	done   chan Outcome
}

// Outcome is what a finished run hands back to a waiting submitter.
type Outcome struct {
	Record  RunRecord
	Results engine.Results
	Err     error
}

type run struct {
	rec  RunRecord
	logs []string
}

type RunnerOption func(*Runner)

func WithHistory(h *History) RunnerOption  { return func(r *Runner) { r.history = h } }
func WithMetrics(m *Metrics) RunnerOption  { return func(r *Runner) { r.metrics = m } }
func WithQueueSize(n int) RunnerOption     { return func(r *Runner) { r.jobs = make(chan *job, n) } }
func WithMaxLogs(n int) RunnerOption       { return func(r *Runner) { r.maxLogs = n } }
func WithIDs(f func() string) RunnerOption { return func(r *Runner) { r.newID = f } }

// WithKeep bounds how many finished runs stay in memory.
func WithKeep(n int) RunnerOption { return func(r *Runner) { r.keep = n } }

func NewRunner(eng *engine.Engine, log *slog.Logger, opts ...RunnerOption) *Runner {
	if log == nil {
		log = slog.Default()
	}
	r := &Runner{
		eng:     eng,
		log:     log.With(slog.String("component", "runner")),
		jobs:    make(chan *job, 64),
		newID:   uuid.NewString,
		maxLogs: 1000,
		keep:    200,
		runs:    make(map[string]*run),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Serve runs queued jobs until ctx is done.
func (r *Runner) Serve(ctx context.Context) error {
	r.log.Info("runner started")
	for {
		select {
		case <-ctx.Done():
			r.log.Info("runner stopped")
			return nil
		case j := <-r.jobs:
			r.metrics.queueDelta(-1)
			r.execute(ctx, j)
		}
	}
}

// Enqueue queues wf without waiting. An empty target runs every step.
func (r *Runner) Enqueue(name string, wf *engine.Workflow, target model.ID) (string, error) {
	j, err := r.enqueue(name, wf, target)
	if err != nil {
		return "", err
	}
	return j.id, nil
}

// Submit queues wf and waits for the run to finish. When ctx ends first the
// run still completes in the background and ctx's error is returned.
func (r *Runner) Submit(ctx context.Context, name string, wf *engine.Workflow, target model.ID) (Outcome, error) {
	j, err := r.enqueue(name, wf, target)
	if err != nil {
		return Outcome{}, err
	}
	select {
	case out := <-j.done:
		return out, nil
	case <-ctx.Done():
		return Outcome{Record: RunRecord{ID: j.id, Workflow: name, Status: RunQueued}}, ctx.Err()
	}
}

func (r *Runner) enqueue(name string, wf *engine.Workflow, target model.ID) (*job, error) {
	j := &job{id: r.newID(), name: name, wf: wf, target: target, done: make(chan Outcome, 1)}
	r.track(&run{rec: j.record()})
	select {
	case r.jobs <- j:
		r.metrics.queueDelta(1)
		r.logf(j.id, "queued workflow %q", name)
		return j, nil
	default:
		r.forget(j.id)
		return nil, ErrQueueFull
	}
}

func (j *job) record() RunRecord {
	return RunRecord{ID: j.id, Workflow: j.name, Target: string(j.target), Status: RunQueued, StartedAt: time.Now().UTC()}
}

// track remembers rn and drops the oldest finished runs beyond keep. Queued
// and running runs are never dropped.
func (r *Runner) track(rn *run) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[rn.rec.ID] = rn
	r.order = append(r.order, rn.rec.ID)
	for i := 0; len(r.order) > r.keep && i < len(r.order); {
		id := r.order[i]
		if st := r.runs[id].rec.Status; st == RunQueued || st == RunRunning {
			i++
			continue
		}
		delete(r.runs, id)
		r.order = append(r.order[:i], r.order[i+1:]...)
	}
}

func (r *Runner) forget(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.runs, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// update applies f to rec and mirrors the result into the remembered run,
// if the runner still has it.
func (r *Runner) update(rec *RunRecord, f func(*RunRecord)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f(rec)
	if rn, ok := r.runs[rec.ID]; ok {
		rn.rec = *rec
	}
}

func (r *Runner) logf(id, format string, a ...any) {
	line := time.Now().Format(time.RFC3339) + " " + fmt.Sprintf(format, a...)
	r.mu.Lock()
	defer r.mu.Unlock()
	rn, ok := r.runs[id]
	if !ok {
		return
	}
	rn.logs = append(rn.logs, line)
	if len(rn.logs) > r.maxLogs {
		// trim oldest
		rn.logs = rn.logs[len(rn.logs)-r.maxLogs:]
	}
}

func (r *Runner) execute(ctx context.Context, j *job) {
	rec := j.record()
	r.update(&rec, func(rec *RunRecord) {
		rec.Status = RunRunning
		rec.StartedAt = time.Now().UTC()
	})
	r.logf(j.id, "run started")
	log := r.log.With(slog.String("run", j.id), slog.String("workflow", rec.Workflow))
	log.Info("run started")

	progress := func(index, total int, name string, id model.ID) {
		r.logf(j.id, "step %d/%d done: %s (%s)", index, total, name, id)
	}
	var results engine.Results
	var err error
	if j.target != "" {
		results, err = r.eng.RunTo(ctx, j.wf, j.target, progress)
	} else {
		results, err = r.eng.Run(ctx, j.wf, progress)
	}

	steps := stepRecords(j.wf, results, err)
	r.update(&rec, func(rec *RunRecord) {
		rec.FinishedAt = time.Now().UTC()
		rec.Steps = steps
		rec.Status = RunSucceeded
		if err != nil {
			rec.Status = RunFailed
			rec.Error = err.Error()
			var se *engine.StepError
			if errors.As(err, &se) {
				rec.FailedStep = string(se.StepID)
			}
		}
	})
	if err != nil {
		r.logf(j.id, "run failed: %v", err)
		log.Warn("run failed", slog.Any("err", err))
	} else {
		r.logf(j.id, "run completed: %d steps", len(steps))
		log.Info("run completed", slog.Int("steps", len(steps)), slog.Duration("took", rec.Duration()))
	}

	r.metrics.observeRun(rec)
	if r.history != nil {
		if herr := r.history.Record(ctx, rec); herr != nil {
			log.Error("record history", slog.Any("err", herr))
		}
	}
	j.done <- Outcome{Record: rec, Results: results, Err: err}
}

// stepRecords lists the steps a run reached in execution order. A step that
// failed validation has no result and is appended from err.
func stepRecords(wf *engine.Workflow, results engine.Results, err error) []StepRecord {
	var out []StepRecord
	order, oerr := wf.Order()
	if oerr == nil {
		for _, id := range order {
			res, ok := results[id]
			if !ok {
				continue
			}
			s, _ := wf.Step(id)
			out = append(out, StepRecord{StepID: string(id), StepName: s.Name(), Type: s.Type(), Success: res.Success, Error: res.Error})
		}
	}
	var se *engine.StepError
	if errors.As(err, &se) && se.Phase == engine.PhaseValidate {
		typ := ""
		if s, ok := wf.Step(se.StepID); ok {
			typ = s.Type()
		}
		out = append(out, StepRecord{StepID: string(se.StepID), StepName: se.StepName, Type: typ, Error: se.Err.Error()})
	}
	return out
}

// Get returns a snapshot of a run the runner still remembers.
func (r *Runner) Get(id string) (RunRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rn, ok := r.runs[id]
	if !ok {
		return RunRecord{}, false
	}
	return rn.rec, true
}

// List returns the remembered runs, newest first.
func (r *Runner) List() []RunRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RunRecord, 0, len(r.runs))
	for _, rn := range r.runs {
		out = append(out, rn.rec)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

func (r *Runner) Logs(id string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rn, ok := r.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	out := make([]string, len(rn.logs))
	copy(out, rn.logs)
	return out, nil
}
