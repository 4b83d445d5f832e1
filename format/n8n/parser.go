package n8n

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/chwongs96-beep/excel-workflow-tool/engine"
	"github.com/chwongs96-beep/excel-workflow-tool/model"
	"github.com/chwongs96-beep/excel-workflow-tool/plugin"
)

// N8nWorkflow represents the n8n workflow format
type N8nWorkflow struct {
	ID          string                    `json:"id"`
	Name        string                    `json:"name"`
	Active      bool                      `json:"active"`
	Nodes       []N8nNode                 `json:"nodes"`
	Connections map[string]N8nConnections `json:"connections"`
	Settings    map[string]interface{}    `json:"settings"`
}

// N8nNode represents an n8n node
type N8nNode struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Type        string                 `json:"type"`
	TypeVersion float64                `json:"typeVersion"`
	Position    []float64              `json:"position"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// N8nConnections represents n8n node connections. Main is indexed by output.
type N8nConnections struct {
	Main [][]N8nConnection `json:"main"`
}

// N8nConnection represents a single connection; Index is the target input.
type N8nConnection struct {
	Node  string `json:"node"`
	Type  string `json:"type"`
	Index int    `json:"index"`
}

// Parse decodes an n8n workflow export.
func Parse(r io.Reader) (N8nWorkflow, error) {
	var wf N8nWorkflow
	if err := json.NewDecoder(r).Decode(&wf); err != nil {
		return N8nWorkflow{}, fmt.Errorf("parse n8n workflow: %w", err)
	}
	return wf, nil
}

// Import converts an n8n workflow into a workflow built from reg. Node types
// are matched verbatim, then by the part after the last dot
// ("n8n-nodes-base.read_csv" -> "read_csv"). Output and input indexes map
// onto the step's declared ports in order.
func Import(src N8nWorkflow, reg *plugin.Registry) (*engine.Workflow, error) {
	wf := engine.NewWorkflow(src.Name, reg)
	byKey := map[string]model.ID{}

	for _, n := range src.Nodes {
		typ, ok := resolveType(n.Type, reg)
		if !ok {
			return nil, fmt.Errorf("node %q: %w: %s", n.Name, plugin.ErrUnknownType, n.Type)
		}
		var pos model.Position
		if len(n.Position) == 2 {
			pos = model.Position{int(n.Position[0]), int(n.Position[1])}
		}
		s, err := wf.AddStepAt(typ, pos)
		if err != nil {
			return nil, err
		}
		s.SetConfig(model.Config(n.Parameters))
		// n8n connections reference nodes by name; older exports use ids
		if n.Name != "" {
			byKey[n.Name] = s.ID()
		}
		if n.ID != "" {
			if _, taken := byKey[n.ID]; !taken {
				byKey[n.ID] = s.ID()
			}
		}
	}

	for _, n := range src.Nodes {
		conns, ok := src.Connections[n.Name]
		if !ok {
			conns, ok = src.Connections[n.ID]
		}
		if !ok {
			continue
		}
		from := byKey[n.Name]
		if from == "" {
			from = byKey[n.ID]
		}
		for outIdx, group := range conns.Main {
			for _, c := range group {
				to, ok := byKey[c.Node]
				if !ok {
					return nil, fmt.Errorf("connection from %q: %w: %s", n.Name, engine.ErrStepNotFound, c.Node)
				}
				fromPort, err := portAt(wf, from, outIdx, false)
				if err != nil {
					return nil, err
				}
				toPort, err := portAt(wf, to, c.Index, true)
				if err != nil {
					return nil, err
				}
				if _, err := wf.AddConnection(from, fromPort, to, toPort); err != nil {
					return nil, fmt.Errorf("connection %s -> %s: %w", n.Name, c.Node, err)
				}
			}
		}
	}
	return wf, nil
}

func resolveType(t string, reg *plugin.Registry) (string, bool) {
	if _, ok := reg.Lookup(t); ok {
		return t, true
	}
	if i := strings.LastIndex(t, "."); i >= 0 {
		short := t[i+1:]
		if _, ok := reg.Lookup(short); ok {
			return short, true
		}
	}
	return "", false
}

func portAt(wf *engine.Workflow, id model.ID, idx int, input bool) (model.Port, error) {
	s, _ := wf.Step(id)
	inputs, outputs := s.Ports()
	ports, dir := outputs, "output"
	if input {
		ports, dir = inputs, "input"
	}
	if idx < 0 || idx >= len(ports) {
		return "", fmt.Errorf("%w: step %s has no %s #%d", engine.ErrPortNotFound, id, dir, idx)
	}
	return ports[idx].Name, nil
}
