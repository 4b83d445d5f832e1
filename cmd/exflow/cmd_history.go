package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/chwongs96-beep/excel-workflow-tool/infra"
)

var historyFlags struct {
	limit int
}

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recent runs, or the steps of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyFlags.limit, "limit", "n", 20, "Number of runs to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	app, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()
	if app.History == nil {
		return fmt.Errorf("run history is disabled (EXFLOW_HISTORY_DRIVER is empty)")
	}
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		rec, err := app.History.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Run:      %s\n", rec.ID)
		fmt.Fprintf(out, "Workflow: %s\n", rec.Workflow)
		fmt.Fprintf(out, "Status:   %s\n", rec.Status)
		fmt.Fprintf(out, "Started:  %s (%s)\n", rec.StartedAt.Local().Format(time.DateTime), humanize.Time(rec.StartedAt))
		fmt.Fprintf(out, "Took:     %s\n", rec.Duration().Round(time.Millisecond))
		if rec.Error != "" {
			fmt.Fprintf(out, "Error:    %s\n", rec.Error)
		}
		t := newTable(out, "Step", "Name", "Type", "Status", "Error")
		for _, s := range rec.Steps {
			t.AppendRow([]any{s.StepID, s.StepName, s.Type, stepStatus(s), s.Error})
		}
		t.Render()
		return nil
	}

	runs, err := app.History.Recent(cmd.Context(), historyFlags.limit)
	if err != nil {
		return err
	}
	t := newTable(out, "Run", "Workflow", "Status", "Failed step", "Started", "Took")
	for _, r := range runs {
		t.AppendRow([]any{r.ID, r.Workflow, r.Status, r.FailedStep, humanize.Time(r.StartedAt), r.Duration().Round(time.Millisecond)})
	}
	t.Render()
	return nil
}

func stepStatus(s infra.StepRecord) string {
	if s.Success {
		return "ok"
	}
	return "failed"
}
