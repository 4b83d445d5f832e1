package logic

import (
	"context"
	"fmt"
	"strings"

	"github.com/chwongs96-beep/excel-workflow-tool/model"
	"github.com/chwongs96-beep/excel-workflow-tool/plugin"
)

const PortRejected model.Port = "rejected"

var operators = []string{"==", "!=", ">", ">=", "<", "<=", "contains", "startswith", "endswith", "isnull", "notnull"}

func Definitions() []plugin.Definition {
	return []plugin.Definition{
		{Type: "filter_rows", Name: "Filter Rows", Category: "Transform", Description: "Keep rows whose column matches a condition", New: newFilter},
	}
}

// Filter routes rows matching a condition to "data" and the rest to
// "rejected".
// Config:
// - column: string (required)
// - operator: one of operators (default "==")
// - value: string; compared numerically when both sides are numbers
type Filter struct{ *plugin.Base }

func newFilter(b *plugin.Base) plugin.Step {
	b.Declare(
		[]model.PortSpec{model.In(model.PortData)},
		[]model.PortSpec{model.Out(model.PortData), model.Out(PortRejected)},
	)
	b.Describe(
		model.FieldSpec{Key: "column", Label: "Column name", Type: model.FieldText, Required: true},
		model.FieldSpec{Key: "operator", Label: "Operator", Type: model.FieldSelect, Default: "==", Options: operators},
		model.FieldSpec{Key: "value", Label: "Value", Type: model.FieldText, Default: ""},
	)
	return &Filter{b}
}

func (n *Filter) Execute(ctx context.Context, in model.Payloads) (model.Payloads, error) {
	t, err := plugin.InputTable(in, model.PortData)
	if err != nil {
		return nil, err
	}
	column := n.ParamString("column", "")
	col := t.Index(column)
	if col < 0 {
		return nil, fmt.Errorf("column '%s' not found in data", column)
	}
	match, err := Predicate(n.ParamString("operator", "=="), n.ParamString("value", ""))
	if err != nil {
		return nil, err
	}

	kept, rejected := model.NewTable(t.Columns...), model.NewTable(t.Columns...)
	for i := range t.Rows {
		row := append([]any(nil), t.Rows[i]...)
		if match(t.Cell(i, col)) {
			kept.Rows = append(kept.Rows, row)
		} else {
			rejected.Rows = append(rejected.Rows, row)
		}
	}
	return model.Payloads{model.PortData: kept, PortRejected: rejected}, nil
}

// Predicate builds the cell test for op against the user-entered value.
// Missing cells only satisfy "!=" and "isnull".
func Predicate(op, value string) (func(any) bool, error) {
	want := model.Parse(value)
	cmp := func(test func(int) bool) func(any) bool {
		return func(v any) bool {
			if model.IsNull(v) {
				return false
			}
			return test(model.Compare(v, want))
		}
	}
	switch op {
	case "==", "":
		return cmp(func(c int) bool { return c == 0 }), nil
	case "!=":
		return func(v any) bool { return model.IsNull(v) || model.Compare(v, want) != 0 }, nil
	case ">":
		return cmp(func(c int) bool { return c > 0 }), nil
	case ">=":
		return cmp(func(c int) bool { return c >= 0 }), nil
	case "<":
		return cmp(func(c int) bool { return c < 0 }), nil
	case "<=":
		return cmp(func(c int) bool { return c <= 0 }), nil
	case "contains":
		needle := strings.ToLower(value)
		return func(v any) bool {
			return !model.IsNull(v) && strings.Contains(strings.ToLower(model.Text(v)), needle)
		}, nil
	case "startswith":
		return func(v any) bool { return !model.IsNull(v) && strings.HasPrefix(model.Text(v), value) }, nil
	case "endswith":
		return func(v any) bool { return !model.IsNull(v) && strings.HasSuffix(model.Text(v), value) }, nil
	case "isnull":
		return model.IsNull, nil
	case "notnull":
		return func(v any) bool { return !model.IsNull(v) }, nil
	}
	return nil, fmt.Errorf("unknown operator %q", op)
}
