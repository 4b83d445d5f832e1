// Package clean holds steps that repair cell values in place.
package clean

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/cast"

	"github.com/chwongs96-beep/excel-workflow-tool/model"
	"github.com/chwongs96-beep/excel-workflow-tool/plugin"
)

const Category = "Clean"

func Definitions() []plugin.Definition {
	return []plugin.Definition{
		{Type: "fill_na", Name: "Fill Missing", Category: Category, Description: "Fill missing cells with a value or a column statistic", New: newFillNA},
		{Type: "trim_whitespace", Name: "Trim Whitespace", Category: Category, Description: "Strip leading and trailing spaces from text cells", New: newTrim},
		{Type: "find_replace", Name: "Find and Replace", Category: Category, Description: "Replace matching cell values", New: newFindReplace},
		{Type: "change_data_type", Name: "Change Data Type", Category: Category, Description: "Convert a column to text, number, integer or boolean", New: newChangeType},
	}
}

func oneToOne(b *plugin.Base) {
	b.Declare([]model.PortSpec{model.In(model.PortData)}, []model.PortSpec{model.Out(model.PortData)})
}

var columnsField = model.FieldSpec{Key: "columns", Label: "Columns (comma separated, empty = all)", Type: model.FieldText, Default: ""}

// targets resolves the configured columns to indexes; unknown names are
// skipped and an empty list means every column.
func targets(t *model.Table, names []string) []int {
	var idx []int
	if len(names) == 0 {
		for i := range t.Columns {
			idx = append(idx, i)
		}
		return idx
	}
	for _, c := range names {
		if i := t.Index(c); i >= 0 {
			idx = append(idx, i)
		}
	}
	return idx
}

// FillNA replaces missing cells.
// Config:
// - columns: string (comma separated, default all)
// - fill_method: value | ffill | bfill | mean | median (default value)
// - fill_value: string (default "0"), numeric when it spells a number
type FillNA struct{ *plugin.Base }

func newFillNA(b *plugin.Base) plugin.Step {
	oneToOne(b)
	b.Describe(
		columnsField,
		model.FieldSpec{Key: "fill_method", Label: "Fill method", Type: model.FieldSelect, Default: "value", Options: []string{"value", "ffill", "bfill", "mean", "median"}},
		model.FieldSpec{Key: "fill_value", Label: "Fill value", Type: model.FieldText, Default: "0"},
	)
	return &FillNA{b}
}

func (n *FillNA) Execute(ctx context.Context, in model.Payloads) (model.Payloads, error) {
	t, err := plugin.InputTable(in, model.PortData)
	if err != nil {
		return nil, err
	}
	out := t.Clone()
	method := n.ParamString("fill_method", "value")
	fill := model.Parse(n.ParamString("fill_value", "0"))

	for _, c := range targets(out, n.ParamList("columns")) {
		switch method {
		case "value":
			fillWith(out, c, fill)
		case "ffill":
			var prev any
			for r := range out.Rows {
				if model.IsNull(out.Rows[r][c]) {
					out.Rows[r][c] = prev
				} else {
					prev = out.Rows[r][c]
				}
			}
		case "bfill":
			var next any
			for r := len(out.Rows) - 1; r >= 0; r-- {
				if model.IsNull(out.Rows[r][c]) {
					out.Rows[r][c] = next
				} else {
					next = out.Rows[r][c]
				}
			}
		case "mean", "median":
			nums := numbers(out, c)
			if len(nums) == 0 {
				continue
			}
			if method == "mean" {
				fillWith(out, c, Mean(nums))
			} else {
				fillWith(out, c, Median(nums))
			}
		default:
			return nil, fmt.Errorf("unknown fill method %q", method)
		}
	}
	return model.Payloads{model.PortData: out}, nil
}

func fillWith(t *model.Table, c int, v any) {
	for r := range t.Rows {
		if model.IsNull(t.Rows[r][c]) {
			t.Rows[r][c] = v
		}
	}
}

func numbers(t *model.Table, c int) []float64 {
	var out []float64
	for r := range t.Rows {
		if v := t.Rows[r][c]; !model.IsNull(v) {
			if f, ok := model.Number(v); ok {
				out = append(out, f)
			}
		}
	}
	return out
}

func Mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func Median(xs []float64) float64 {
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	m := len(s) / 2
	if len(s)%2 == 0 {
		return (s[m-1] + s[m]) / 2
	}
	return s[m]
}

var spaces = regexp.MustCompile(`\s+`)

// TrimWhitespace strips text cells; numbers are left alone.
type TrimWhitespace struct{ *plugin.Base }

func newTrim(b *plugin.Base) plugin.Step {
	oneToOne(b)
	b.Describe(
		columnsField,
		model.FieldSpec{Key: "remove_extra_spaces", Label: "Collapse inner spaces", Type: model.FieldCheckbox, Default: false},
	)
	return &TrimWhitespace{b}
}

func (n *TrimWhitespace) Execute(ctx context.Context, in model.Payloads) (model.Payloads, error) {
	t, err := plugin.InputTable(in, model.PortData)
	if err != nil {
		return nil, err
	}
	out := t.Clone()
	collapse := n.ParamBool("remove_extra_spaces", false)
	for _, c := range targets(out, n.ParamList("columns")) {
		for r := range out.Rows {
			s, ok := out.Rows[r][c].(string)
			if !ok {
				continue
			}
			s = strings.TrimSpace(s)
			if collapse {
				s = spaces.ReplaceAllString(s, " ")
			}
			out.Rows[r][c] = s
		}
	}
	return model.Payloads{model.PortData: out}, nil
}

// FindReplace replaces whole cells equal to find_value, or substrings
// matching a regular expression when use_regex is set.
type FindReplace struct{ *plugin.Base }

func newFindReplace(b *plugin.Base) plugin.Step {
	oneToOne(b)
	b.Describe(
		model.FieldSpec{Key: "column", Label: "Column (empty = all)", Type: model.FieldText, Default: ""},
		model.FieldSpec{Key: "find_value", Label: "Find", Type: model.FieldText, Required: true},
		model.FieldSpec{Key: "replace_value", Label: "Replace with", Type: model.FieldText, Default: ""},
		model.FieldSpec{Key: "use_regex", Label: "Regular expression", Type: model.FieldCheckbox, Default: false},
		model.FieldSpec{Key: "case_sensitive", Label: "Case sensitive", Type: model.FieldCheckbox, Default: true},
	)
	return &FindReplace{b}
}

func (n *FindReplace) pattern() (*regexp.Regexp, error) {
	p := n.ParamString("find_value", "")
	if !n.ParamBool("case_sensitive", true) {
		p = "(?i)" + p
	}
	return regexp.Compile(p)
}

func (n *FindReplace) Validate() error {
	if err := n.ValidateSchema(); err != nil {
		return err
	}
	if n.ParamBool("use_regex", false) {
		if _, err := n.pattern(); err != nil {
			return fmt.Errorf("invalid pattern: %w", err)
		}
	}
	return nil
}

func (n *FindReplace) Execute(ctx context.Context, in model.Payloads) (model.Payloads, error) {
	t, err := plugin.InputTable(in, model.PortData)
	if err != nil {
		return nil, err
	}
	out := t.Clone()
	var cols []string
	if c := strings.TrimSpace(n.ParamString("column", "")); c != "" {
		cols = []string{c}
	}
	find := n.ParamString("find_value", "")
	repl := n.ParamString("replace_value", "")

	var re *regexp.Regexp
	if n.ParamBool("use_regex", false) {
		if re, err = n.pattern(); err != nil {
			return nil, err
		}
	}
	for _, c := range targets(out, cols) {
		for r := range out.Rows {
			v := out.Rows[r][c]
			if re != nil {
				if !model.IsNull(v) {
					out.Rows[r][c] = re.ReplaceAllString(model.Text(v), repl)
				}
				continue
			}
			if !model.IsNull(v) && model.Text(v) == find {
				out.Rows[r][c] = model.Parse(repl)
			}
		}
	}
	return model.Payloads{model.PortData: out}, nil
}

// ChangeType converts a column's cells. Cells that cannot be converted fail
// the step, or become missing when errors is "coerce".
type ChangeType struct{ *plugin.Base }

func newChangeType(b *plugin.Base) plugin.Step {
	oneToOne(b)
	b.Describe(
		model.FieldSpec{Key: "column", Label: "Column", Type: model.FieldText, Required: true},
		model.FieldSpec{Key: "target_type", Label: "Target type", Type: model.FieldSelect, Default: "number", Options: []string{"text", "number", "integer", "boolean"}},
		model.FieldSpec{Key: "errors", Label: "On error", Type: model.FieldSelect, Default: "raise", Options: []string{"raise", "coerce"}},
	)
	return &ChangeType{b}
}

// Convert casts one cell to the named type.
func Convert(v any, target string) (any, error) {
	if model.IsNull(v) {
		return nil, nil
	}
	if s, ok := v.(string); ok {
		v = strings.TrimSpace(s)
	}
	switch target {
	case "text":
		return model.Text(v), nil
	case "number":
		return cast.ToFloat64E(v)
	case "integer":
		if f, ok := model.Number(v); ok {
			return float64(int64(f)), nil
		}
		i, err := cast.ToInt64E(v)
		return float64(i), err
	case "boolean":
		return cast.ToBoolE(v)
	}
	return nil, fmt.Errorf("unknown type %q", target)
}

func (n *ChangeType) Execute(ctx context.Context, in model.Payloads) (model.Payloads, error) {
	t, err := plugin.InputTable(in, model.PortData)
	if err != nil {
		return nil, err
	}
	column := n.ParamString("column", "")
	c := t.Index(column)
	if c < 0 {
		return nil, fmt.Errorf("column '%s' not found in data", column)
	}
	target := n.ParamString("target_type", "number")
	coerce := n.ParamString("errors", "raise") == "coerce"

	out := t.Clone()
	for r := range out.Rows {
		v, err := Convert(out.Rows[r][c], target)
		if err != nil {
			if !coerce {
				return nil, fmt.Errorf("row %d: cannot convert %q to %s", r+1, model.Text(out.Rows[r][c]), target)
			}
			v = nil
		}
		out.Rows[r][c] = v
	}
	return model.Payloads{model.PortData: out}, nil
}
