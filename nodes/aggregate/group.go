package aggregate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/chwongs96-beep/excel-workflow-tool/model"
	"github.com/chwongs96-beep/excel-workflow-tool/plugin"
)

var functions = []string{"sum", "mean", "count", "min", "max", "first", "last"}

func Definitions() []plugin.Definition {
	return []plugin.Definition{
		{Type: "group_by", Name: "Group By", Category: "Aggregate", Description: "Group rows and aggregate one column", New: newGroupBy},
	}
}

// GroupBy emits one row per distinct combination of group columns, sorted
// by those columns, plus a column named <agg_column>_<agg_function>.
type GroupBy struct{ *plugin.Base }

func newGroupBy(b *plugin.Base) plugin.Step {
	b.Declare([]model.PortSpec{model.In(model.PortData)}, []model.PortSpec{model.Out(model.PortData)})
	b.Describe(
		model.FieldSpec{Key: "group_columns", Label: "Group columns (comma separated)", Type: model.FieldText, Required: true},
		model.FieldSpec{Key: "agg_column", Label: "Aggregate column", Type: model.FieldText, Required: true},
		model.FieldSpec{Key: "agg_function", Label: "Function", Type: model.FieldSelect, Default: "sum", Options: functions},
	)
	return &GroupBy{b}
}

type group struct {
	key    []any
	values []any
}

func (n *GroupBy) Execute(ctx context.Context, in model.Payloads) (model.Payloads, error) {
	t, err := plugin.InputTable(in, model.PortData)
	if err != nil {
		return nil, err
	}
	names := n.ParamList("group_columns")
	keys := make([]int, len(names))
	for i, c := range names {
		if keys[i] = t.Index(c); keys[i] < 0 {
			return nil, fmt.Errorf("column '%s' not found in data", c)
		}
	}
	aggName := n.ParamString("agg_column", "")
	agg := t.Index(aggName)
	if agg < 0 {
		return nil, fmt.Errorf("column '%s' not found in data", aggName)
	}
	fn := n.ParamString("agg_function", "sum")

	groups := map[string]*group{}
	var order []*group
	for r := range t.Rows {
		key := make([]any, len(keys))
		parts := make([]string, len(keys))
		skip := false
		for i, k := range keys {
			key[i] = t.Cell(r, k)
			if model.IsNull(key[i]) {
				skip = true
			}
			parts[i] = model.Text(key[i])
		}
		if skip {
			continue
		}
		id := strings.Join(parts, "\x00")
		g, ok := groups[id]
		if !ok {
			g = &group{key: key}
			groups[id] = g
			order = append(order, g)
		}
		g.values = append(g.values, t.Cell(r, agg))
	}
	sort.SliceStable(order, func(a, b int) bool {
		for i := range keys {
			if c := model.Compare(order[a].key[i], order[b].key[i]); c != 0 {
				return c < 0
			}
		}
		return false
	})

	out := model.NewTable(append(append([]string(nil), names...), fmt.Sprintf("%s_%s", aggName, fn))...)
	for _, g := range order {
		v, err := Apply(fn, g.values)
		if err != nil {
			return nil, err
		}
		out.AddRow(append(append([]any(nil), g.key...), v)...)
	}
	return model.Payloads{model.PortData: out}, nil
}

// Apply reduces values with the named function. Missing values are ignored;
// sum, mean, min and max fail on non-numeric cells.
func Apply(fn string, values []any) (any, error) {
	var present []any
	for _, v := range values {
		if !model.IsNull(v) {
			present = append(present, v)
		}
	}
	switch fn {
	case "count":
		return float64(len(present)), nil
	case "first":
		if len(present) == 0 {
			return nil, nil
		}
		return present[0], nil
	case "last":
		if len(present) == 0 {
			return nil, nil
		}
		return present[len(present)-1], nil
	case "sum", "mean", "min", "max":
	default:
		return nil, fmt.Errorf("unknown aggregate function %q", fn)
	}

	nums := make([]float64, 0, len(present))
	for _, v := range present {
		f, ok := model.Number(v)
		if !ok {
			return nil, fmt.Errorf("%s: %q is not a number", fn, model.Text(v))
		}
		nums = append(nums, f)
	}
	if fn == "sum" {
		var s float64
		for _, f := range nums {
			s += f
		}
		return s, nil
	}
	if len(nums) == 0 {
		return nil, nil
	}
	switch fn {
	case "mean":
		var s float64
		for _, f := range nums {
			s += f
		}
		return s / float64(len(nums)), nil
	case "min":
		m := nums[0]
		for _, f := range nums[1:] {
			if f < m {
				m = f
			}
		}
		return m, nil
	default:
		m := nums[0]
		for _, f := range nums[1:] {
			if f > m {
				m = f
			}
		}
		return m, nil
	}
}
