package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chwongs96-beep/excel-workflow-tool/format/document"
	"github.com/chwongs96-beep/excel-workflow-tool/format/n8n"
	"github.com/chwongs96-beep/excel-workflow-tool/nodes"
	"github.com/chwongs96-beep/excel-workflow-tool/plugin"
)

var convertCmd = &cobra.Command{
	Use:   "convert <in> <out>",
	Short: "Convert a workflow document between JSON and YAML",
	Long:  "The encoding of each side follows its extension: .yaml and .yml are YAML, anything else JSON.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := document.LoadFile(args[0])
		if err != nil {
			return err
		}
		if err := document.SaveFile(doc, args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s, %d steps)\n", args[1], document.FormatFor(args[1]), len(doc.Nodes))
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import-n8n <in.json> <out>",
	Short: "Convert an n8n workflow export into a workflow document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := nodes.NewRegistry(plugin.Deps{})
		if err != nil {
			return err
		}
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		src, err := n8n.Parse(f)
		if err != nil {
			return err
		}
		wf, err := n8n.Import(src, reg)
		if err != nil {
			return err
		}
		if err := document.Save(wf, args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d steps and %d connections into %s\n", wf.Len(), len(wf.Connections()), args[1])
		return nil
	},
}
