package engine

import (
	"fmt"
	"log/slog"

	"github.com/chwongs96-beep/excel-workflow-tool/model"
	"github.com/chwongs96-beep/excel-workflow-tool/plugin"
)

// Workflow owns a set of steps, the connections between them and the
// global parameters every step may reference as {name}.
type Workflow struct {
	Name   string
	Params map[string]string

	registry    *plugin.Registry
	steps       map[model.ID]plugin.Step
	order       []model.ID // insertion order; drives deterministic scheduling
	connections []model.Connection
	counter     int
	log         *slog.Logger
}

func NewWorkflow(name string, reg *plugin.Registry) *Workflow {
	return &Workflow{
		Name:     name,
		Params:   map[string]string{},
		registry: reg,
		steps:    make(map[model.ID]plugin.Step),
		log:      slog.Default().With(slog.String("component", "workflow")),
	}
}

func (w *Workflow) Registry() *plugin.Registry { return w.registry }

// Counter is the last number used to mint a step id.
func (w *Workflow) Counter() int { return w.counter }

// SetCounter restores the id counter, e.g. after loading a document.
func (w *Workflow) SetCounter(n int) { w.counter = n }

func (w *Workflow) nextID() model.ID {
	for {
		w.counter++
		id := model.ID(fmt.Sprintf("node_%d", w.counter))
		if _, taken := w.steps[id]; !taken {
			return id
		}
	}
}

// AddStep creates a step of type typ under a fresh id.
func (w *Workflow) AddStep(typ string) (plugin.Step, error) {
	return w.AddStepAt(typ, model.Position{})
}

func (w *Workflow) AddStepAt(typ string, pos model.Position) (plugin.Step, error) {
	if _, ok := w.registry.Lookup(typ); !ok {
		return nil, fmt.Errorf("%w: %s", plugin.ErrUnknownType, typ)
	}
	s, err := w.PutStep(w.nextID(), typ)
	if err != nil {
		return nil, err
	}
	s.SetPosition(pos)
	return s, nil
}

// PutStep creates a step of type typ under a caller-chosen id. It fails if
// the id is already in use.
func (w *Workflow) PutStep(id model.ID, typ string) (plugin.Step, error) {
	if _, taken := w.steps[id]; taken {
		return nil, fmt.Errorf("step id %s already in use", id)
	}
	s, err := w.registry.Create(typ, id)
	if err != nil {
		return nil, err
	}
	w.steps[id] = s
	w.order = append(w.order, id)
	return s, nil
}

// RemoveStep deletes a step and every connection touching it.
func (w *Workflow) RemoveStep(id model.ID) {
	if _, ok := w.steps[id]; !ok {
		return
	}
	kept := w.connections[:0]
	for _, c := range w.connections {
		if c.FromNode != id && c.ToNode != id {
			kept = append(kept, c)
		}
	}
	w.connections = kept
	delete(w.steps, id)
	for i, sid := range w.order {
		if sid == id {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
}

func (w *Workflow) Step(id model.ID) (plugin.Step, bool) {
	s, ok := w.steps[id]
	return s, ok
}

// Steps returns the steps in insertion order.
func (w *Workflow) Steps() []plugin.Step {
	out := make([]plugin.Step, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, w.steps[id])
	}
	return out
}

func (w *Workflow) Len() int { return len(w.steps) }

// Connections returns a copy of the connection list.
func (w *Workflow) Connections() []model.Connection {
	return append([]model.Connection(nil), w.connections...)
}

// AddConnection wires an output port to an input port. An input accepts one
// connection; wiring an occupied input replaces its current connection.
func (w *Workflow) AddConnection(fromStep model.ID, fromPort model.Port, toStep model.ID, toPort model.Port) (model.Connection, error) {
	src, ok := w.steps[fromStep]
	if !ok {
		return model.Connection{}, fmt.Errorf("%w: %s", ErrStepNotFound, fromStep)
	}
	dst, ok := w.steps[toStep]
	if !ok {
		return model.Connection{}, fmt.Errorf("%w: %s", ErrStepNotFound, toStep)
	}
	if _, ok := src.OutputPort(fromPort); !ok {
		if _, isInput := src.InputPort(fromPort); isInput {
			return model.Connection{}, fmt.Errorf("%w: %s:%s is an input", ErrPortDirection, fromStep, fromPort)
		}
		return model.Connection{}, fmt.Errorf("%w: output %s:%s", ErrPortNotFound, fromStep, fromPort)
	}
	if _, ok := dst.InputPort(toPort); !ok {
		if _, isOutput := dst.OutputPort(toPort); isOutput {
			return model.Connection{}, fmt.Errorf("%w: %s:%s is an output", ErrPortDirection, toStep, toPort)
		}
		return model.Connection{}, fmt.Errorf("%w: input %s:%s", ErrPortNotFound, toStep, toPort)
	}

	for i, c := range w.connections {
		if c.ToNode == toStep && c.ToPort == toPort {
			w.log.Debug("replacing connection", slog.String("old", c.String()))
			w.connections = append(w.connections[:i], w.connections[i+1:]...)
			break
		}
	}
	conn := model.Connection{FromNode: fromStep, FromPort: fromPort, ToNode: toStep, ToPort: toPort}
	w.connections = append(w.connections, conn)
	return conn, nil
}

// AppendConnection adds c without checking steps or ports. Loading a saved
// document uses it; checks are deferred to the start of a run.
func (w *Workflow) AppendConnection(c model.Connection) {
	w.connections = append(w.connections, c)
}

// RemoveConnection removes c if present.
func (w *Workflow) RemoveConnection(c model.Connection) {
	for i, x := range w.connections {
		if x == c {
			w.connections = append(w.connections[:i], w.connections[i+1:]...)
			return
		}
	}
}

// InputSource returns the connection feeding toStep's input port, if any.
func (w *Workflow) InputSource(toStep model.ID, toPort model.Port) (model.Connection, bool) {
	for _, c := range w.connections {
		if c.ToNode == toStep && c.ToPort == toPort {
			return c, true
		}
	}
	return model.Connection{}, false
}

func (w *Workflow) SetParam(key, value string) {
	if w.Params == nil {
		w.Params = make(map[string]string)
	}
	w.Params[key] = value
}

// checkConnections verifies that every connection names existing steps and
// ports on the right sides.
func (w *Workflow) checkConnections() error {
	for _, c := range w.connections {
		src, ok := w.steps[c.FromNode]
		if !ok {
			return fmt.Errorf("%w: connection %s references %s", ErrStepNotFound, c, c.FromNode)
		}
		dst, ok := w.steps[c.ToNode]
		if !ok {
			return fmt.Errorf("%w: connection %s references %s", ErrStepNotFound, c, c.ToNode)
		}
		if _, ok := src.OutputPort(c.FromPort); !ok {
			return fmt.Errorf("%w: connection %s has no output %s", ErrPortNotFound, c, c.FromPort)
		}
		if _, ok := dst.InputPort(c.ToPort); !ok {
			return fmt.Errorf("%w: connection %s has no input %s", ErrPortNotFound, c, c.ToPort)
		}
	}
	return nil
}
