package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chwongs96-beep/excel-workflow-tool/model"
	"github.com/chwongs96-beep/excel-workflow-tool/nodes/nodetest"
	"github.com/chwongs96-beep/excel-workflow-tool/plugin"
)

type fakeLLM struct {
	prompts []string
	err     error
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return " " + strings.ToUpper(prompt) + "\n", nil
}

func TestAIColumn(t *testing.T) {
	fake := &fakeLLM{}
	in := nodetest.Table([]string{"name", "unit price"}, []any{"Ann", 3.0}, []any{"Bob", 4.5})
	s := nodetest.Step(t, Definitions(plugin.Deps{LLM: fake}), "ai_column", model.Config{
		"prompt":        `Hi {{.name}} {{index . "unit price"}}`,
		"output_column": "greeting",
	})
	got := nodetest.Run(t, s, in)
	want := nodetest.Table([]string{"name", "unit price", "greeting"},
		[]any{"Ann", 3.0, "HI ANN 3"}, []any{"Bob", 4.5, "HI BOB 4.5"})
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if len(in.Columns) != 2 {
		t.Errorf("input mutated: %v", in.Columns)
	}
}

func TestAIColumnMaxRows(t *testing.T) {
	fake := &fakeLLM{}
	in := nodetest.Table([]string{"name"}, []any{"a"}, []any{"b"}, []any{"c"})
	s := nodetest.Step(t, Definitions(plugin.Deps{LLM: fake}), "ai_column", model.Config{"prompt": "{{.name}}", "max_rows": 2.0})
	got := nodetest.Run(t, s, in)
	if len(fake.prompts) != 2 {
		t.Errorf("prompts = %v", fake.prompts)
	}
	if got.Rows[2][1] != nil {
		t.Errorf("row past max_rows = %v, want nil", got.Rows[2][1])
	}
}

func TestAIColumnNeedsClient(t *testing.T) {
	s := nodetest.Step(t, Definitions(plugin.Deps{}), "ai_column", model.Config{"prompt": "x"})
	if err := s.Validate(); err == nil || !strings.Contains(err.Error(), "LLM client not configured") {
		t.Errorf("Validate() = %v", err)
	}
}

func TestAIColumnBadTemplate(t *testing.T) {
	s := nodetest.Step(t, Definitions(plugin.Deps{LLM: &fakeLLM{}}), "ai_column", model.Config{"prompt": "{{.name"})
	if err := s.Validate(); err == nil {
		t.Error("expected template parse error")
	}
}

func TestAIColumnCompletionError(t *testing.T) {
	fake := &fakeLLM{err: errors.New("rate limited")}
	s := nodetest.Step(t, Definitions(plugin.Deps{LLM: fake}), "ai_column", model.Config{"prompt": "{{.name}}"})
	_, err := nodetest.RunPorts(s, model.Payloads{model.PortData: nodetest.Table([]string{"name"}, []any{"a"})})
	if err == nil || err.Error() != "row 1: rate limited" {
		t.Errorf("err = %v", err)
	}
}
