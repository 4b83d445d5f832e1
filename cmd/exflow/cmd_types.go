package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/chwongs96-beep/excel-workflow-tool/cmd/api/server"
	"github.com/chwongs96-beep/excel-workflow-tool/nodes"
	"github.com/chwongs96-beep/excel-workflow-tool/plugin"
)

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List the registered step types",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		reg, err := nodes.NewRegistry(plugin.Deps{})
		if err != nil {
			return err
		}
		t := newTable(cmd.OutOrStdout(), "Type", "Category", "Name", "Inputs", "Outputs", "Fields")
		for _, st := range server.Describe(reg) {
			keys := make([]string, 0, len(st.Fields))
			for _, f := range st.Fields {
				k := f.Key
				if f.Required {
					k += "*"
				}
				keys = append(keys, k)
			}
			t.AppendRow([]any{st.Type, st.Category, st.Name, strings.Join(st.Inputs, ", "), strings.Join(st.Outputs, ", "), strings.Join(keys, ", ")})
		}
		t.Render()
		return nil
	},
}
