package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chwongs96-beep/excel-workflow-tool/model"
)

var ancestorsFlags struct {
	fromStore bool
}

var ancestorsCmd = &cobra.Command{
	Use:   "ancestors <workflow> <step-id>",
	Short: "List the steps a step depends on",
	Args:  cobra.ExactArgs(2),
	RunE:  runAncestors,
}

func init() {
	ancestorsCmd.Flags().BoolVar(&ancestorsFlags.fromStore, "stored", false, "Treat the first argument as a name in the workflow store")
}

func runAncestors(cmd *cobra.Command, args []string) error {
	app, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	_, wf, err := loadWorkflow(cmd.Context(), app, args[0], ancestorsFlags.fromStore)
	if err != nil {
		return err
	}
	ids, err := wf.Ancestors(model.ID(args[1]))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(ids) == 0 {
		fmt.Fprintf(out, "%s has no ancestors\n", args[1])
		return nil
	}
	t := newTable(out, "Step", "Name", "Type")
	for _, id := range ids {
		s, _ := wf.Step(id)
		t.AppendRow([]any{id, s.Name(), s.Type()})
	}
	t.Render()
	return nil
}
