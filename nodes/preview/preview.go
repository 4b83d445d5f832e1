package preview

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/chwongs96-beep/excel-workflow-tool/model"
	"github.com/chwongs96-beep/excel-workflow-tool/plugin"
)

const PortPreview model.Port = "preview"

func Definitions() []plugin.Definition {
	return []plugin.Definition{
		{Type: "data_preview", Name: "Data Preview", Category: "Output", Description: "Show the first rows of a table", New: newPreview},
	}
}

// Preview passes its input through and exposes the first max_rows rows on
// "preview" plus a rendered text table on "text".
type Preview struct{ *plugin.Base }

func newPreview(b *plugin.Base) plugin.Step {
	b.Declare(
		[]model.PortSpec{model.In(model.PortData)},
		[]model.PortSpec{
			model.Out(model.PortData),
			model.Out(PortPreview),
			{Name: "text", Kind: model.KindValue},
		},
	)
	b.Describe(model.FieldSpec{Key: "max_rows", Label: "Max rows", Type: model.FieldNumber, Default: 100.0})
	return &Preview{b}
}

func (n *Preview) Validate() error {
	if err := n.ValidateSchema(); err != nil {
		return err
	}
	if n.ParamInt("max_rows", 100) < 1 {
		return fmt.Errorf("max_rows must be at least 1")
	}
	return nil
}

func (n *Preview) Execute(ctx context.Context, in model.Payloads) (model.Payloads, error) {
	t, err := plugin.InputTable(in, model.PortData)
	if err != nil {
		return nil, err
	}
	head := Head(t, n.ParamInt("max_rows", 100))
	return model.Payloads{
		model.PortData: t,
		PortPreview:    head,
		"text":         Render(head),
	}, nil
}

// Head copies at most max rows.
func Head(t *model.Table, max int) *model.Table {
	out := model.NewTable(t.Columns...)
	for i, r := range t.Rows {
		if i >= max {
			break
		}
		out.Rows = append(out.Rows, append([]any(nil), r...))
	}
	return out
}

// Render draws t as a boxed text table.
func Render(t *model.Table) string {
	w := table.NewWriter()
	w.SetStyle(table.StyleLight)
	header := make(table.Row, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	w.AppendHeader(header)
	for _, r := range t.Rows {
		row := make(table.Row, len(r))
		for i, v := range r {
			row[i] = model.Text(v)
		}
		w.AppendRow(row)
	}
	return w.Render()
}
