// Package nodetest builds configured steps and tables for step tests.
package nodetest

import (
	"context"
	"testing"

	"github.com/chwongs96-beep/excel-workflow-tool/model"
	"github.com/chwongs96-beep/excel-workflow-tool/plugin"
)

// Step creates a step of type typ from defs and applies cfg.
func Step(t testing.TB, defs []plugin.Definition, typ string, cfg model.Config) plugin.Step {
	t.Helper()
	reg := plugin.NewRegistry()
	for _, d := range defs {
		if err := reg.Register(d); err != nil {
			t.Fatalf("register %s: %v", d.Type, err)
		}
	}
	s, err := reg.Create(typ, "node_1")
	if err != nil {
		t.Fatalf("create %s: %v", typ, err)
	}
	s.SetConfig(cfg)
	return s
}

// Run validates s and executes it on a single table arriving on "data".
func Run(t testing.TB, s plugin.Step, in *model.Table) *model.Table {
	t.Helper()
	out, err := RunPorts(s, model.Payloads{model.PortData: in})
	if err != nil {
		t.Fatalf("%s: %v", s.Type(), err)
	}
	tbl, ok := out[model.PortData].(*model.Table)
	if !ok {
		t.Fatalf("%s: output data is %T", s.Type(), out[model.PortData])
	}
	return tbl
}

// RunPorts validates s and executes it.
func RunPorts(s plugin.Step, in model.Payloads) (model.Payloads, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s.Execute(context.Background(), in)
}

// Table builds a table from a column list and rows.
func Table(cols []string, rows ...[]any) *model.Table {
	t := model.NewTable(cols...)
	for _, r := range rows {
		t.AddRow(r...)
	}
	return t
}
