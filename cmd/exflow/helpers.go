package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/chwongs96-beep/excel-workflow-tool/engine"
	"github.com/chwongs96-beep/excel-workflow-tool/format/document"
	"github.com/chwongs96-beep/excel-workflow-tool/infra"
)

func openApp(ctx context.Context) (*infra.App, error) {
	return infra.Open(ctx, cfg, slog.Default())
}

// loadWorkflow reads a workflow from a file, or from the configured store
// when fromStore is set.
func loadWorkflow(ctx context.Context, app *infra.App, ref string, fromStore bool) (string, *engine.Workflow, error) {
	if fromStore {
		wf, err := infra.LoadWorkflow(ctx, app.Store, ref, app.Registry)
		return ref, wf, err
	}
	wf, err := document.Load(ref, app.Registry)
	if err != nil {
		return "", nil, err
	}
	name := wf.Name
	if name == "" {
		name = ref
	}
	return name, wf, nil
}

// parseParams turns key=value pairs into a map.
func parseParams(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid --param %q, want key=value", p)
		}
		out[strings.TrimSpace(k)] = v
	}
	return out, nil
}

func newTable(w io.Writer, header ...any) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row(header))
	return t
}
