package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/chwongs96-beep/excel-workflow-tool/format/document"
	"github.com/chwongs96-beep/excel-workflow-tool/infra"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage workflows in the configured store (local, memory or minio)",
}

var storeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored workflows",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()
		docs, err := app.Store.List(cmd.Context())
		if err != nil {
			return err
		}
		t := newTable(cmd.OutOrStdout(), "Name", "Size", "Updated")
		for _, d := range docs {
			t.AppendRow([]any{d.Name, humanize.Bytes(uint64(d.Size)), humanize.Time(d.UpdatedAt)})
		}
		t.Render()
		return nil
	},
}

var storePutCmd = &cobra.Command{
	Use:   "put <name> <file>",
	Short: "Validate a workflow file and save it under name",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := infra.CheckName(args[0]); err != nil {
			return err
		}
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()
		wf, err := document.Load(args[1], app.Registry)
		if err != nil {
			return err
		}
		if err := infra.SaveWorkflow(cmd.Context(), app.Store, args[0], wf); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d steps)\n", args[0], wf.Len())
		return nil
	},
}

var storeGetCmd = &cobra.Command{
	Use:   "get <name> [file]",
	Short: "Print a stored workflow, or write it to file",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()
		data, err := app.Store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(args) == 1 {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		doc, err := document.Unmarshal(data, document.JSON)
		if err != nil {
			return err
		}
		return document.SaveFile(doc, args[1])
	},
}

var storeRmCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Delete a stored workflow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()
		if err := app.Store.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	},
}

func init() {
	storeCmd.AddCommand(storeListCmd, storePutCmd, storeGetCmd, storeRmCmd)
}
