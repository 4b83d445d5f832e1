package infra

import (
	"context"
	"errors"
	"testing"

	"github.com/chwongs96-beep/excel-workflow-tool/engine"
	"github.com/chwongs96-beep/excel-workflow-tool/model"
	"github.com/chwongs96-beep/excel-workflow-tool/plugin"
)

type constStep struct{ *plugin.Base }

func (s *constStep) Execute(ctx context.Context, in model.Payloads) (model.Payloads, error) {
	t := model.NewTable("v")
	t.AddRow(s.ParamString("value", "x"))
	return model.Payloads{model.PortData: t}, nil
}

type failStep struct{ *plugin.Base }

func (s *failStep) Execute(ctx context.Context, in model.Payloads) (model.Payloads, error) {
	return nil, errors.New("boom")
}

func testRegistry(t testing.TB) *plugin.Registry {
	t.Helper()
	reg := plugin.NewRegistry()
	defs := []plugin.Definition{
		{Type: "const", Name: "Const", Category: "Test", New: func(b *plugin.Base) plugin.Step {
			b.Declare(nil, []model.PortSpec{model.Out(model.PortData)})
			b.Describe(model.FieldSpec{Key: "value", Type: model.FieldText, Required: true})
			return &constStep{b}
		}},
		{Type: "fail", Name: "Fail", Category: "Test", New: func(b *plugin.Base) plugin.Step {
			b.Declare([]model.PortSpec{model.In(model.PortData)}, nil)
			return &failStep{b}
		}},
	}
	for _, d := range defs {
		if err := reg.Register(d); err != nil {
			t.Fatal(err)
		}
	}
	return reg
}

// pipeline builds const -> fail, or a lone const step when fail is false.
func pipeline(t testing.TB, fail bool) *engine.Workflow {
	t.Helper()
	wf := engine.NewWorkflow("pipeline", testRegistry(t))
	src, err := wf.AddStep("const")
	if err != nil {
		t.Fatal(err)
	}
	src.SetParam("value", "hello")
	if fail {
		f, err := wf.AddStep("fail")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := wf.AddConnection(src.ID(), model.PortData, f.ID(), model.PortData); err != nil {
			t.Fatal(err)
		}
	}
	return wf
}
