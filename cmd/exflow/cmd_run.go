package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/chwongs96-beep/excel-workflow-tool/engine"
	"github.com/chwongs96-beep/excel-workflow-tool/model"
)

var runFlags struct {
	target    string
	params    []string
	fromStore bool
	quiet     bool
}

var runCmd = &cobra.Command{
	Use:   "run <workflow>",
	Short: "Run a workflow file (or a stored workflow with --stored)",
	Long: "Run executes every step of the workflow in dependency order. With --target\n" +
		"only the target step and its ancestors run. Data Preview outputs are printed\n" +
		"after the summary.",
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.target, "target", "", "Run only this step and its ancestors")
	f.StringArrayVarP(&runFlags.params, "param", "p", nil, "Global parameter key=value (repeatable)")
	f.BoolVar(&runFlags.fromStore, "stored", false, "Treat the argument as a name in the workflow store")
	f.BoolVarP(&runFlags.quiet, "quiet", "q", false, "Skip preview output")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	name, wf, err := loadWorkflow(ctx, app, args[0], runFlags.fromStore)
	if err != nil {
		return err
	}
	params, err := parseParams(runFlags.params)
	if err != nil {
		return err
	}
	for k, v := range params {
		wf.SetParam(k, v)
	}
	target := model.ID(runFlags.target)
	if target != "" {
		if _, ok := wf.Step(target); !ok {
			return fmt.Errorf("target step not found: %s", target)
		}
	}

	go func() { _ = app.Runner.Serve(ctx) }()
	out, err := app.Runner.Submit(ctx, name, wf, target)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	printResults(w, wf, out.Results)
	if !runFlags.quiet {
		printPreviews(w, wf, out.Results)
	}
	if out.Err != nil {
		return out.Err
	}
	fmt.Fprintf(w, "Run %s completed in %s\n", out.Record.ID, out.Record.Duration().Round(time.Millisecond))
	return nil
}

func printResults(w io.Writer, wf *engine.Workflow, results engine.Results) {
	order, err := wf.Order()
	if err != nil {
		return
	}
	t := newTable(w, "Step", "Name", "Type", "Status", "Output")
	for _, id := range order {
		res, ok := results[id]
		if !ok {
			continue
		}
		s, _ := wf.Step(id)
		status, detail := "ok", summarize(res.Outputs)
		if !res.Success {
			status, detail = "failed", res.Error
		}
		t.AppendRow([]any{id, s.Name(), s.Type(), status, detail})
	}
	t.Render()
}

// summarize describes each output port in one line, e.g. "data: 12 rows".
func summarize(out model.Payloads) string {
	ports := make([]string, 0, len(out))
	for p := range out {
		ports = append(ports, string(p))
	}
	sort.Strings(ports)
	parts := make([]string, 0, len(ports))
	for _, p := range ports {
		switch v := out[model.Port(p)].(type) {
		case *model.Table:
			parts = append(parts, fmt.Sprintf("%s: %d rows x %d cols", p, len(v.Rows), len(v.Columns)))
		case string:
			if strings.Contains(v, "\n") {
				parts = append(parts, fmt.Sprintf("%s: %d lines", p, strings.Count(v, "\n")+1))
			} else {
				parts = append(parts, fmt.Sprintf("%s: %s", p, v))
			}
		default:
			parts = append(parts, fmt.Sprintf("%s: %v", p, v))
		}
	}
	return strings.Join(parts, ", ")
}

func printPreviews(w io.Writer, wf *engine.Workflow, results engine.Results) {
	order, err := wf.Order()
	if err != nil {
		return
	}
	for _, id := range order {
		res, ok := results[id]
		if !ok || !res.Success {
			continue
		}
		text, ok := res.Outputs["text"].(string)
		if !ok {
			continue
		}
		s, _ := wf.Step(id)
		fmt.Fprintf(w, "\n%s (%s)\n%s\n", s.Name(), id, text)
	}
}
