package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/chwongs96-beep/excel-workflow-tool/engine"
	"github.com/chwongs96-beep/excel-workflow-tool/model"
	"github.com/chwongs96-beep/excel-workflow-tool/nodes"
	"github.com/chwongs96-beep/excel-workflow-tool/plugin"
)

const sales = `region,product,amount
North,Widget,120
South,Widget,80
North,Gadget,45.5
East,Widget,
South,Gadget,60
North,Widget,30
`

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run builds read_csv -> filter_rows -> group_by -> data_preview in code and
// prints the preview.
func run() error {
	dir, err := os.MkdirTemp("", "flowd")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)
	if err := os.WriteFile(filepath.Join(dir, "sales.csv"), []byte(sales), 0o644); err != nil {
		return err
	}

	reg, err := nodes.NewRegistry(plugin.Deps{})
	if err != nil {
		return err
	}
	wf := engine.NewWorkflow("SalesByRegion", reg)
	wf.SetParam("dir", dir)

	read, err := wf.AddStep("read_csv")
	if err != nil {
		return err
	}
	read.SetParam("file_path", "{dir}/sales.csv")

	filter, err := wf.AddStep("filter_rows")
	if err != nil {
		return err
	}
	filter.SetParam("column", "amount")
	filter.SetParam("operator", "notnull")

	group, err := wf.AddStep("group_by")
	if err != nil {
		return err
	}
	group.SetParam("group_columns", "region")
	group.SetParam("agg_column", "amount")
	group.SetParam("agg_function", "sum")

	preview, err := wf.AddStep("data_preview")
	if err != nil {
		return err
	}

	links := [][2]model.ID{{read.ID(), filter.ID()}, {filter.ID(), group.ID()}, {group.ID(), preview.ID()}}
	for _, l := range links {
		if _, err := wf.AddConnection(l[0], model.PortData, l[1], model.PortData); err != nil {
			return err
		}
	}

	eng := engine.New(slog.Default())
	res, err := eng.Run(context.Background(), wf, func(index, total int, name string, id model.ID) {
		fmt.Printf("[%d/%d] %s (%s)\n", index, total, name, id)
	})
	if err != nil {
		return err
	}
	fmt.Println(res[preview.ID()].Outputs["text"])
	return nil
}
