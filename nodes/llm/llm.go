package llm

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/chwongs96-beep/excel-workflow-tool/model"
	"github.com/chwongs96-beep/excel-workflow-tool/plugin"
)

func Definitions(deps plugin.Deps) []plugin.Definition {
	return []plugin.Definition{
		{Type: "ai_column", Name: "AI Column", Category: "AI", Description: "Fill a column with an LLM completion per row", New: func(b *plugin.Base) plugin.Step {
			b.Declare([]model.PortSpec{model.In(model.PortData)}, []model.PortSpec{model.Out(model.PortData)})
			b.Describe(
				model.FieldSpec{Key: "prompt", Label: "Prompt", Type: model.FieldTextArea, Required: true, Placeholder: `Classify "{{.Description}}" as A, B or C`},
				model.FieldSpec{Key: "output_column", Label: "Output column", Type: model.FieldText, Default: "ai_output"},
				model.FieldSpec{Key: "max_rows", Label: "Max rows", Type: model.FieldNumber, Default: 50.0},
			)
			return &Column{Base: b, llm: deps.LLM}
		}},
	}
}

// Column renders prompt as a Go template over each row (cells keyed by
// column name) and stores the trimmed completion in output_column. Rows
// past max_rows are left empty.
type Column struct {
	*plugin.Base
	llm plugin.Completer
}

func (n *Column) Validate() error {
	if err := n.ValidateSchema(); err != nil {
		return err
	}
	if n.llm == nil {
		return fmt.Errorf("LLM client not configured (set EXFLOW_LLM_API_KEY)")
	}
	if _, err := parsePrompt(n.ParamString("prompt", "")); err != nil {
		return fmt.Errorf("prompt: %w", err)
	}
	return nil
}

func parsePrompt(s string) (*template.Template, error) {
	return template.New("prompt").Option("missingkey=zero").Parse(s)
}

// RenderPrompt executes tpl against one row.
func RenderPrompt(tpl *template.Template, t *model.Table, r int) (string, error) {
	item := make(map[string]any, len(t.Columns))
	for i, c := range t.Columns {
		item[c] = model.Text(t.Cell(r, i))
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, item); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (n *Column) Execute(ctx context.Context, in model.Payloads) (model.Payloads, error) {
	t, err := plugin.InputTable(in, model.PortData)
	if err != nil {
		return nil, err
	}
	tpl, err := parsePrompt(n.ParamString("prompt", ""))
	if err != nil {
		return nil, err
	}
	out := t.Clone()
	col := out.AddColumn(n.ParamString("output_column", "ai_output"))
	limit := n.ParamInt("max_rows", 50)

	for r := range out.Rows {
		if r >= limit {
			break
		}
		prompt, err := RenderPrompt(tpl, t, r)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", r+1, err)
		}
		answer, err := n.llm.Complete(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", r+1, err)
		}
		out.Rows[r][col] = strings.TrimSpace(answer)
	}
	return model.Payloads{model.PortData: out}, nil
}
