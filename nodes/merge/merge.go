package merge

import (
	"context"
	"fmt"

	"github.com/chwongs96-beep/excel-workflow-tool/model"
	"github.com/chwongs96-beep/excel-workflow-tool/plugin"
)

const Category = "Combine"

func Definitions() []plugin.Definition {
	return []plugin.Definition{
		{Type: "concat_data", Name: "Concatenate", Category: Category, Description: "Stack two tables vertically", New: newConcat},
		{Type: "merge_data", Name: "Merge", Category: Category, Description: "Join two tables on key columns", New: newJoin},
	}
}

// Concat stacks data1 then data2. Columns are the union in first-seen order;
// cells a table lacks are missing. Either input may be absent, not both.
type Concat struct{ *plugin.Base }

func newConcat(b *plugin.Base) plugin.Step {
	b.Declare([]model.PortSpec{model.In("data1"), model.In("data2")}, []model.PortSpec{model.Out(model.PortData)})
	return &Concat{b}
}

func (n *Concat) Execute(ctx context.Context, in model.Payloads) (model.Payloads, error) {
	var tables []*model.Table
	for _, p := range []model.Port{"data1", "data2"} {
		if _, ok := in[p]; !ok {
			continue
		}
		t, err := plugin.InputTable(in, p)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("no input data received")
	}

	out := model.NewTable()
	for _, t := range tables {
		for _, c := range t.Columns {
			if out.Index(c) < 0 {
				out.Columns = append(out.Columns, c)
			}
		}
	}
	for _, t := range tables {
		idx := make([]int, len(t.Columns))
		for i, c := range t.Columns {
			idx[i] = out.Index(c)
		}
		for r := range t.Rows {
			row := make([]any, len(out.Columns))
			for i, dst := range idx {
				row[dst] = t.Cell(r, i)
			}
			out.Rows = append(out.Rows, row)
		}
	}
	return model.Payloads{model.PortData: out}, nil
}

// Join merges left and right on left_on == right_on.
// Config:
// - left_on, right_on: key column names (required)
// - how: inner | left | right | outer (default inner)
//
// Result columns are the left columns followed by the right columns other
// than right_on when it shares the left key's name; other clashes get
// _x / _y suffixes. Rows keep left order, then unmatched right rows.
type Join struct{ *plugin.Base }

func newJoin(b *plugin.Base) plugin.Step {
	b.Declare([]model.PortSpec{model.In("left"), model.In("right")}, []model.PortSpec{model.Out(model.PortData)})
	b.Describe(
		model.FieldSpec{Key: "left_on", Label: "Left key column", Type: model.FieldText, Required: true},
		model.FieldSpec{Key: "right_on", Label: "Right key column", Type: model.FieldText, Required: true},
		model.FieldSpec{Key: "how", Label: "Join type", Type: model.FieldSelect, Default: "inner", Options: []string{"inner", "left", "right", "outer"}},
	)
	return &Join{b}
}

func (n *Join) Execute(ctx context.Context, in model.Payloads) (model.Payloads, error) {
	left, err := plugin.InputTable(in, "left")
	if err != nil {
		return nil, err
	}
	right, err := plugin.InputTable(in, "right")
	if err != nil {
		return nil, err
	}
	lk, rk := n.ParamString("left_on", ""), n.ParamString("right_on", "")
	li, ri := left.Index(lk), right.Index(rk)
	if li < 0 {
		return nil, fmt.Errorf("left key '%s' not found", lk)
	}
	if ri < 0 {
		return nil, fmt.Errorf("right key '%s' not found", rk)
	}
	return model.Payloads{model.PortData: Merge(left, right, li, ri, n.ParamString("how", "inner"))}, nil
}

// Merge joins two tables on the given key column indexes.
func Merge(left, right *model.Table, li, ri int, how string) *model.Table {
	sharedKey := left.Columns[li] == right.Columns[ri]

	// right column layout
	var rightCols []int
	for i := range right.Columns {
		if sharedKey && i == ri {
			continue
		}
		rightCols = append(rightCols, i)
	}
	clash := map[string]bool{}
	for _, i := range rightCols {
		if left.Index(right.Columns[i]) >= 0 {
			clash[right.Columns[i]] = true
		}
	}
	out := model.NewTable()
	for _, c := range left.Columns {
		if clash[c] {
			c += "_x"
		}
		out.Columns = append(out.Columns, c)
	}
	for _, i := range rightCols {
		c := right.Columns[i]
		if clash[c] {
			c += "_y"
		}
		out.Columns = append(out.Columns, c)
	}

	index := map[string][]int{}
	for r := range right.Rows {
		k := right.Cell(r, ri)
		if model.IsNull(k) {
			continue
		}
		index[model.Text(k)] = append(index[model.Text(k)], r)
	}

	emit := func(l, r int) {
		row := make([]any, 0, len(out.Columns))
		for c := range left.Columns {
			row = append(row, left.Cell(l, c))
		}
		if l < 0 && sharedKey {
			row[li] = right.Cell(r, ri)
		}
		for _, c := range rightCols {
			row = append(row, right.Cell(r, c))
		}
		out.Rows = append(out.Rows, row)
	}

	matched := make([]bool, len(right.Rows))
	keepLeft := how == "left" || how == "outer"
	keepRight := how == "right" || how == "outer"
	for l := range left.Rows {
		k := left.Cell(l, li)
		var hits []int
		if !model.IsNull(k) {
			hits = index[model.Text(k)]
		}
		for _, r := range hits {
			matched[r] = true
			emit(l, r)
		}
		if len(hits) == 0 && keepLeft {
			emit(l, -1)
		}
	}
	if keepRight {
		for r := range right.Rows {
			if !matched[r] {
				emit(-1, r)
			}
		}
	}
	return out
}
