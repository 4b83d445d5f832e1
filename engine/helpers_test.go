package engine

import (
	"context"
	"errors"

	"github.com/chwongs96-beep/excel-workflow-tool/model"
	"github.com/chwongs96-beep/excel-workflow-tool/plugin"
)

// recorder tracks which steps executed and what they received.
type recorder struct {
	ran      []model.ID
	received map[model.ID]model.Payloads
	params   map[model.ID]string
}

func newRecorder() *recorder {
	return &recorder{received: map[model.ID]model.Payloads{}, params: map[model.ID]string{}}
}

type testStep struct {
	*plugin.Base
	rec *recorder
	run func(s *testStep, in model.Payloads) (model.Payloads, error)
	val func(s *testStep) error
}

func (s *testStep) Validate() error {
	if s.val != nil {
		return s.val(s)
	}
	return s.Base.Validate()
}

func (s *testStep) Execute(ctx context.Context, in model.Payloads) (model.Payloads, error) {
	s.rec.ran = append(s.rec.ran, s.ID())
	s.rec.received[s.ID()] = in
	s.rec.params[s.ID()] = s.ParamString("path", "")
	return s.run(s, in)
}

// appendSuffix returns a copy of the table with suffix appended to every cell.
func appendSuffix(t *model.Table, suffix string) *model.Table {
	out := t.Clone()
	for i := range out.Rows {
		for j := range out.Rows[i] {
			out.Rows[i][j] = model.Text(out.Rows[i][j]) + suffix
		}
	}
	return out
}

func newTestRegistry(rec *recorder) *plugin.Registry {
	reg := plugin.NewRegistry()
	data := []model.PortSpec{model.In(model.PortData)}
	out := []model.PortSpec{model.Out(model.PortData)}

	must := func(def plugin.Definition) {
		if err := reg.Register(def); err != nil {
			panic(err)
		}
	}
	must(plugin.Definition{Type: "source", Name: "Source", Category: "IO", New: func(b *plugin.Base) plugin.Step {
		b.Declare(nil, out)
		return &testStep{Base: b, rec: rec, run: func(s *testStep, _ model.Payloads) (model.Payloads, error) {
			t := model.NewTable("v")
			t.AddRow(s.ParamString("value", "P"))
			return model.Payloads{model.PortData: t}, nil
		}}
	}})
	must(plugin.Definition{Type: "suffix", Name: "Suffix", Category: "Transform", New: func(b *plugin.Base) plugin.Step {
		b.Declare(data, out)
		return &testStep{Base: b, rec: rec, run: func(s *testStep, in model.Payloads) (model.Payloads, error) {
			t, err := plugin.InputTable(in, model.PortData)
			if err != nil {
				return nil, err
			}
			return model.Payloads{model.PortData: appendSuffix(t, s.ParamString("suffix", "'"))}, nil
		}}
	}})
	must(plugin.Definition{Type: "sink", Name: "Sink", Category: "IO", New: func(b *plugin.Base) plugin.Step {
		b.Declare(data, nil)
		return &testStep{Base: b, rec: rec, run: func(s *testStep, in model.Payloads) (model.Payloads, error) {
			return model.Payloads{}, nil
		}}
	}})
	must(plugin.Definition{Type: "pair", Name: "Pair", Category: "Combine", New: func(b *plugin.Base) plugin.Step {
		b.Declare([]model.PortSpec{model.In("left"), model.In("right")}, out)
		return &testStep{Base: b, rec: rec, run: func(s *testStep, in model.Payloads) (model.Payloads, error) {
			res := model.NewTable("v")
			for _, p := range []model.Port{"left", "right"} {
				if t, ok := in[p].(*model.Table); ok {
					for _, r := range t.Rows {
						res.AddRow(r...)
					}
				}
			}
			return model.Payloads{model.PortData: res}, nil
		}}
	}})
	must(plugin.Definition{Type: "fail", Name: "Fail", Category: "Test", New: func(b *plugin.Base) plugin.Step {
		b.Declare(data, out)
		return &testStep{Base: b, rec: rec, run: func(s *testStep, in model.Payloads) (model.Payloads, error) {
			return nil, errors.New("boom")
		}}
	}})
	must(plugin.Definition{Type: "invalid", Name: "Invalid", Category: "Test", New: func(b *plugin.Base) plugin.Step {
		b.Declare(data, out)
		return &testStep{Base: b, rec: rec,
			val: func(s *testStep) error { return errors.New("File path is required") },
			run: func(s *testStep, in model.Payloads) (model.Payloads, error) { return in, nil },
		}
	}})
	return reg
}

func mustStep(w *Workflow, typ string) model.ID {
	s, err := w.AddStep(typ)
	if err != nil {
		panic(err)
	}
	return s.ID()
}

func mustConnect(w *Workflow, from model.ID, fromPort model.Port, to model.ID, toPort model.Port) {
	if _, err := w.AddConnection(from, fromPort, to, toPort); err != nil {
		panic(err)
	}
}
