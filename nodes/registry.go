// Package nodes wires every built-in step type into a registry.
package nodes

import (
	"github.com/chwongs96-beep/excel-workflow-tool/nodes/aggregate"
	"github.com/chwongs96-beep/excel-workflow-tool/nodes/clean"
	"github.com/chwongs96-beep/excel-workflow-tool/nodes/files"
	"github.com/chwongs96-beep/excel-workflow-tool/nodes/fs"
	httpnode "github.com/chwongs96-beep/excel-workflow-tool/nodes/http"
	"github.com/chwongs96-beep/excel-workflow-tool/nodes/llm"
	"github.com/chwongs96-beep/excel-workflow-tool/nodes/logic"
	"github.com/chwongs96-beep/excel-workflow-tool/nodes/merge"
	"github.com/chwongs96-beep/excel-workflow-tool/nodes/preview"
	"github.com/chwongs96-beep/excel-workflow-tool/nodes/transform"
	"github.com/chwongs96-beep/excel-workflow-tool/plugin"
)

// Definitions returns the built-in step types in palette order.
func Definitions(deps plugin.Deps) []plugin.Definition {
	var defs []plugin.Definition
	defs = append(defs, files.Definitions()...)
	defs = append(defs, fs.Definitions()...)
	defs = append(defs, httpnode.Definitions(deps)...)
	defs = append(defs, logic.Definitions()...)
	defs = append(defs, transform.Definitions()...)
	defs = append(defs, clean.Definitions()...)
	defs = append(defs, merge.Definitions()...)
	defs = append(defs, aggregate.Definitions()...)
	defs = append(defs, preview.Definitions()...)
	defs = append(defs, llm.Definitions(deps)...)
	return defs
}

// RegisterAll adds every built-in step type to reg.
func RegisterAll(reg *plugin.Registry, deps plugin.Deps) error {
	for _, def := range Definitions(deps) {
		if err := reg.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry holding every built-in step type.
func NewRegistry(deps plugin.Deps) (*plugin.Registry, error) {
	reg := plugin.NewRegistry()
	if err := RegisterAll(reg, deps); err != nil {
		return nil, err
	}
	return reg, nil
}
