// Package transform holds steps that reshape a single table.
package transform

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/chwongs96-beep/excel-workflow-tool/model"
	"github.com/chwongs96-beep/excel-workflow-tool/plugin"
)

const Category = "Transform"

func Definitions() []plugin.Definition {
	return []plugin.Definition{
		{Type: "select_columns", Name: "Select Columns", Category: Category, Description: "Keep only the listed columns, in order", New: newSelect},
		{Type: "rename_columns", Name: "Rename Columns", Category: Category, Description: "Rename columns from old:new lines", New: newRename},
		{Type: "sort_data", Name: "Sort Data", Category: Category, Description: "Sort rows by one or more columns", New: newSort},
		{Type: "remove_duplicates", Name: "Remove Duplicates", Category: Category, Description: "Drop repeated rows", New: newDedupe},
		{Type: "add_column", Name: "Add Column", Category: Category, Description: "Add a column holding a constant or a formula", New: newAddColumn},
	}
}

func oneToOne(b *plugin.Base) {
	b.Declare([]model.PortSpec{model.In(model.PortData)}, []model.PortSpec{model.Out(model.PortData)})
}

// SelectColumns projects the table onto the configured columns.
type SelectColumns struct{ *plugin.Base }

func newSelect(b *plugin.Base) plugin.Step {
	oneToOne(b)
	b.Describe(model.FieldSpec{Key: "columns", Label: "Columns (comma separated)", Type: model.FieldText, Required: true, Placeholder: "col1, col2, col3"})
	return &SelectColumns{b}
}

func (n *SelectColumns) Execute(ctx context.Context, in model.Payloads) (model.Payloads, error) {
	t, err := plugin.InputTable(in, model.PortData)
	if err != nil {
		return nil, err
	}
	cols := n.ParamList("columns")
	idx := make([]int, len(cols))
	var missing []string
	for i, c := range cols {
		idx[i] = t.Index(c)
		if idx[i] < 0 {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("columns not found: %s", strings.Join(missing, ", "))
	}
	out := model.NewTable(cols...)
	for r := range t.Rows {
		row := make([]any, len(idx))
		for i, c := range idx {
			row[i] = t.Cell(r, c)
		}
		out.Rows = append(out.Rows, row)
	}
	return model.Payloads{model.PortData: out}, nil
}

// RenameColumns applies "old:new" lines. Unknown old names are ignored.
type RenameColumns struct{ *plugin.Base }

func newRename(b *plugin.Base) plugin.Step {
	oneToOne(b)
	b.Describe(model.FieldSpec{Key: "rename_map", Label: "Rename map (old:new, one per line)", Type: model.FieldTextArea, Required: true, Placeholder: "old name:new name"})
	return &RenameColumns{b}
}

// ParseRenames reads "old:new" lines, skipping lines without a colon.
func ParseRenames(s string) map[string]string {
	m := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		old, nw, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		m[strings.TrimSpace(old)] = strings.TrimSpace(nw)
	}
	return m
}

func (n *RenameColumns) Execute(ctx context.Context, in model.Payloads) (model.Payloads, error) {
	t, err := plugin.InputTable(in, model.PortData)
	if err != nil {
		return nil, err
	}
	out := t.Clone()
	renames := ParseRenames(n.ParamString("rename_map", ""))
	for i, c := range out.Columns {
		if nw, ok := renames[c]; ok && nw != "" {
			out.Columns[i] = nw
		}
	}
	return model.Payloads{model.PortData: out}, nil
}

// SortData performs a stable multi-column sort.
type SortData struct{ *plugin.Base }

func newSort(b *plugin.Base) plugin.Step {
	oneToOne(b)
	b.Describe(
		model.FieldSpec{Key: "columns", Label: "Sort columns (comma separated)", Type: model.FieldText, Required: true},
		model.FieldSpec{Key: "ascending", Label: "Ascending", Type: model.FieldCheckbox, Default: true},
	)
	return &SortData{b}
}

func (n *SortData) Execute(ctx context.Context, in model.Payloads) (model.Payloads, error) {
	t, err := plugin.InputTable(in, model.PortData)
	if err != nil {
		return nil, err
	}
	var keys []int
	for _, c := range n.ParamList("columns") {
		i := t.Index(c)
		if i < 0 {
			return nil, fmt.Errorf("column '%s' not found in data", c)
		}
		keys = append(keys, i)
	}
	asc := n.ParamBool("ascending", true)
	out := t.Clone()
	sort.SliceStable(out.Rows, func(a, b int) bool {
		for _, k := range keys {
			c := model.Compare(out.Cell(a, k), out.Cell(b, k))
			if c == 0 {
				continue
			}
			if asc {
				return c < 0
			}
			return c > 0
		}
		return false
	})
	return model.Payloads{model.PortData: out}, nil
}

// RemoveDuplicates keeps the first, the last, or none of each group of rows
// that agree on the key columns (all columns when none are given).
type RemoveDuplicates struct{ *plugin.Base }

func newDedupe(b *plugin.Base) plugin.Step {
	oneToOne(b)
	b.Describe(
		model.FieldSpec{Key: "columns", Label: "Key columns (empty = all)", Type: model.FieldText, Default: ""},
		model.FieldSpec{Key: "keep", Label: "Keep", Type: model.FieldSelect, Default: "first", Options: []string{"first", "last", "none"}},
	)
	return &RemoveDuplicates{b}
}

func (n *RemoveDuplicates) Execute(ctx context.Context, in model.Payloads) (model.Payloads, error) {
	t, err := plugin.InputTable(in, model.PortData)
	if err != nil {
		return nil, err
	}
	var keys []int
	for _, c := range n.ParamList("columns") {
		i := t.Index(c)
		if i < 0 {
			return nil, fmt.Errorf("column '%s' not found in data", c)
		}
		keys = append(keys, i)
	}
	if len(keys) == 0 {
		for i := range t.Columns {
			keys = append(keys, i)
		}
	}

	rowKey := func(r int) string {
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = model.Text(t.Cell(r, k))
		}
		return strings.Join(parts, "\x00")
	}
	count := map[string]int{}
	last := map[string]int{}
	for r := range t.Rows {
		k := rowKey(r)
		count[k]++
		last[k] = r
	}

	keep := n.ParamString("keep", "first")
	seen := map[string]bool{}
	out := model.NewTable(t.Columns...)
	for r, row := range t.Rows {
		k := rowKey(r)
		var ok bool
		switch keep {
		case "last":
			ok = last[k] == r
		case "none":
			ok = count[k] == 1
		default:
			ok = !seen[k]
		}
		seen[k] = true
		if ok {
			out.Rows = append(out.Rows, append([]any(nil), row...))
		}
	}
	return model.Payloads{model.PortData: out}, nil
}

// AddColumn sets a column to a constant, or evaluates a formula per row.
// Formulas are expr-lang expressions over the row's cells; a column whose
// name is not an identifier is reachable as $env["unit price"].
type AddColumn struct{ *plugin.Base }

func newAddColumn(b *plugin.Base) plugin.Step {
	oneToOne(b)
	b.Describe(
		model.FieldSpec{Key: "column_name", Label: "New column name", Type: model.FieldText, Required: true},
		model.FieldSpec{Key: "value_type", Label: "Value type", Type: model.FieldSelect, Default: "constant", Options: []string{"constant", "formula"}},
		model.FieldSpec{Key: "value", Label: "Value / formula", Type: model.FieldText, Required: true, Placeholder: "100 or price * qty"},
	)
	return &AddColumn{b}
}

func (n *AddColumn) Validate() error {
	if err := n.ValidateSchema(); err != nil {
		return err
	}
	if n.ParamString("value_type", "constant") == "formula" {
		if _, err := compile(n.ParamString("value", "")); err != nil {
			return fmt.Errorf("formula error: %w", err)
		}
	}
	return nil
}

func compile(formula string) (*vm.Program, error) {
	return expr.Compile(formula, expr.Env(map[string]any{}), expr.AllowUndefinedVariables())
}

func (n *AddColumn) Execute(ctx context.Context, in model.Payloads) (model.Payloads, error) {
	t, err := plugin.InputTable(in, model.PortData)
	if err != nil {
		return nil, err
	}
	out := t.Clone()
	col := out.AddColumn(n.ParamString("column_name", ""))
	value := n.ParamString("value", "")

	if n.ParamString("value_type", "constant") != "formula" {
		v := model.Parse(value)
		for r := range out.Rows {
			out.Rows[r][col] = v
		}
		return model.Payloads{model.PortData: out}, nil
	}

	prog, err := compile(value)
	if err != nil {
		return nil, fmt.Errorf("formula error: %w", err)
	}
	env := make(map[string]any, len(t.Columns))
	for r := range out.Rows {
		for i, c := range t.Columns {
			env[c] = t.Cell(r, i)
		}
		v, err := expr.Run(prog, env)
		if err != nil {
			return nil, fmt.Errorf("formula error on row %d: %w", r+1, err)
		}
		out.Rows[r][col] = normalize(v)
	}
	return model.Payloads{model.PortData: out}, nil
}

// normalize folds expr's integer results into float64 like every other
// numeric cell.
func normalize(v any) any {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case float32:
		return float64(x)
	}
	return v
}
