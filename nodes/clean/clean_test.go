package clean

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chwongs96-beep/excel-workflow-tool/model"
	"github.com/chwongs96-beep/excel-workflow-tool/nodes/nodetest"
)

func run(t *testing.T, typ string, cfg model.Config, in *model.Table) *model.Table {
	t.Helper()
	return nodetest.Run(t, nodetest.Step(t, Definitions(), typ, cfg), in)
}

func column(t *model.Table, c int) []any {
	var out []any
	for _, r := range t.Rows {
		out = append(out, r[c])
	}
	return out
}

func gaps() *model.Table {
	return nodetest.Table([]string{"v", "s"},
		[]any{nil, "a"}, []any{1.0, ""}, []any{nil, "b"}, []any{5.0, nil}, []any{nil, "c"})
}

func TestFillNA(t *testing.T) {
	cases := []struct {
		name string
		cfg  model.Config
		want []any
	}{
		{"value", model.Config{"columns": "v"}, []any{0.0, 1.0, 0.0, 5.0, 0.0}},
		{"text value", model.Config{"columns": "v", "fill_value": "n/a"}, []any{"n/a", 1.0, "n/a", 5.0, "n/a"}},
		{"ffill", model.Config{"columns": "v", "fill_method": "ffill"}, []any{nil, 1.0, 1.0, 5.0, 5.0}},
		{"bfill", model.Config{"columns": "v", "fill_method": "bfill"}, []any{1.0, 1.0, 5.0, 5.0, nil}},
		{"mean", model.Config{"columns": "v", "fill_method": "mean"}, []any{3.0, 1.0, 3.0, 5.0, 3.0}},
		{"median", model.Config{"columns": "v", "fill_method": "median"}, []any{3.0, 1.0, 3.0, 5.0, 3.0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := gaps()
			got := run(t, "fill_na", tc.cfg, in)
			if diff := cmp.Diff(tc.want, column(got, 0)); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
			if in.Rows[0][0] != nil {
				t.Errorf("input mutated")
			}
		})
	}
}

func TestFillNAAllColumns(t *testing.T) {
	got := run(t, "fill_na", model.Config{"fill_value": "-"}, gaps())
	if diff := cmp.Diff([]any{"a", "-", "b", "-", "c"}, column(got, 1)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestMeanMedian(t *testing.T) {
	if got := Mean([]float64{1, 2, 6}); got != 3 {
		t.Errorf("Mean = %v", got)
	}
	if got := Median([]float64{4, 1, 3, 2}); got != 2.5 {
		t.Errorf("Median = %v", got)
	}
	if got := Median([]float64{9, 1, 5}); got != 5 {
		t.Errorf("Median = %v", got)
	}
}

func TestTrimWhitespace(t *testing.T) {
	in := nodetest.Table([]string{"a", "b"}, []any{"  x  y ", 3.0}, []any{"\tz", " keep "})
	got := run(t, "trim_whitespace", model.Config{"columns": "a"}, in)
	if diff := cmp.Diff([]any{"x  y", "z"}, column(got, 0)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if got.Rows[1][1] != " keep " {
		t.Errorf("untargeted column changed: %q", got.Rows[1][1])
	}
	got = run(t, "trim_whitespace", model.Config{"remove_extra_spaces": true}, in)
	if diff := cmp.Diff([]any{"x y", "z"}, column(got, 0)); diff != "" {
		t.Errorf("collapse mismatch (-want +got):\n%s", diff)
	}
}

func TestFindReplace(t *testing.T) {
	in := nodetest.Table([]string{"status", "note"}, []any{"N/A", "Call Bob"}, []any{"ok", "call later"}, []any{"N/A", nil})

	got := run(t, "find_replace", model.Config{"column": "status", "find_value": "N/A", "replace_value": "0"}, in)
	if diff := cmp.Diff([]any{0.0, "ok", 0.0}, column(got, 0)); diff != "" {
		t.Errorf("exact mismatch (-want +got):\n%s", diff)
	}

	got = run(t, "find_replace", model.Config{"column": "note", "find_value": "^call", "replace_value": "Phone", "use_regex": true, "case_sensitive": false}, in)
	if diff := cmp.Diff([]any{"Phone Bob", "Phone later", nil}, column(got, 1)); diff != "" {
		t.Errorf("regex mismatch (-want +got):\n%s", diff)
	}
}

func TestFindReplaceBadPattern(t *testing.T) {
	s := nodetest.Step(t, Definitions(), "find_replace", model.Config{"find_value": "(", "use_regex": true})
	if err := s.Validate(); err == nil {
		t.Error("expected invalid pattern error")
	}
}

func TestConvert(t *testing.T) {
	cases := []struct {
		in     any
		target string
		want   any
	}{
		{" 12.5 ", "number", 12.5},
		{"3.7", "integer", 3.0},
		{8.9, "integer", 8.0},
		{5.0, "text", "5"},
		{"true", "boolean", true},
		{nil, "number", nil},
	}
	for _, tc := range cases {
		got, err := Convert(tc.in, tc.target)
		if err != nil {
			t.Errorf("Convert(%v, %s): %v", tc.in, tc.target, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Convert(%v, %s) = %v (%T), want %v", tc.in, tc.target, got, got, tc.want)
		}
	}
	if _, err := Convert("abc", "number"); err == nil {
		t.Error("expected error converting abc")
	}
}

func TestChangeDataType(t *testing.T) {
	in := nodetest.Table([]string{"n"}, []any{"1"}, []any{"x"}, []any{"2.5"})
	s := nodetest.Step(t, Definitions(), "change_data_type", model.Config{"column": "n"})
	_, err := nodetest.RunPorts(s, model.Payloads{model.PortData: in})
	if err == nil || err.Error() != `row 2: cannot convert "x" to number` {
		t.Errorf("err = %v", err)
	}

	got := run(t, "change_data_type", model.Config{"column": "n", "errors": "coerce"}, in)
	if diff := cmp.Diff([]any{1.0, nil, 2.5}, column(got, 0)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}
