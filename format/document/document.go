package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chwongs96-beep/excel-workflow-tool/engine"
	"github.com/chwongs96-beep/excel-workflow-tool/model"
	"github.com/chwongs96-beep/excel-workflow-tool/plugin"
)

// Document is the persisted form of a workflow.
type Document struct {
	Name         string             `json:"name" yaml:"name"`
	NodeCounter  int                `json:"node_counter" yaml:"node_counter"`
	GlobalParams map[string]string  `json:"global_params" yaml:"global_params"`
	Nodes        map[string]Node    `json:"nodes" yaml:"nodes"`
	Connections  []model.Connection `json:"connections" yaml:"connections"`
}

// Node is one persisted step. Inputs and Outputs summarise the connections
// at each port; they are informational and ignored when loading.
type Node struct {
	Type     string         `json:"node_type" yaml:"node_type"`
	Name     string         `json:"name,omitempty" yaml:"name,omitempty"`
	Position model.Position `json:"position" yaml:"position,flow"`
	Config   model.Config   `json:"config" yaml:"config"`
	Inputs   []PortRef      `json:"inputs" yaml:"inputs"`
	Outputs  []PortRef      `json:"outputs" yaml:"outputs"`
}

type PortRef struct {
	Name        string  `json:"name" yaml:"name"`
	ConnectedTo *string `json:"connected_to" yaml:"connected_to"`
}

// Format selects the encoding of a document.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
)

// FormatFor picks the format from a file extension; anything that is not
// .yaml or .yml is JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML
	}
	return JSON
}

// Encode captures wf as a Document.
func Encode(wf *engine.Workflow) *Document {
	doc := &Document{
		Name:         wf.Name,
		NodeCounter:  wf.Counter(),
		GlobalParams: map[string]string{},
		Nodes:        map[string]Node{},
		Connections:  wf.Connections(),
	}
	for k, v := range wf.Params {
		doc.GlobalParams[k] = v
	}
	conns := wf.Connections()
	for _, s := range wf.Steps() {
		inputs, outputs := s.Ports()
		n := Node{
			Type:     s.Type(),
			Name:     s.Name(),
			Position: s.Position(),
			Config:   s.Config(),
			Inputs:   make([]PortRef, 0, len(inputs)),
			Outputs:  make([]PortRef, 0, len(outputs)),
		}
		for _, p := range inputs {
			ref := PortRef{Name: string(p.Name)}
			if c, ok := wf.InputSource(s.ID(), p.Name); ok {
				ref.ConnectedTo = endpoint(c.FromNode, c.FromPort)
			}
			n.Inputs = append(n.Inputs, ref)
		}
		for _, p := range outputs {
			ref := PortRef{Name: string(p.Name)}
			for _, c := range conns {
				if c.FromNode == s.ID() && c.FromPort == p.Name {
					ref.ConnectedTo = endpoint(c.ToNode, c.ToPort)
					break
				}
			}
			n.Outputs = append(n.Outputs, ref)
		}
		doc.Nodes[string(s.ID())] = n
	}
	return doc
}

func endpoint(id model.ID, port model.Port) *string {
	s := fmt.Sprintf("%s:%s", id, port)
	return &s
}

// Decode rebuilds a workflow from doc using reg. Every node type must still
// be registered. Connections are appended as recorded; they are checked
// when the workflow runs.
func Decode(doc *Document, reg *plugin.Registry) (*engine.Workflow, error) {
	wf := engine.NewWorkflow(doc.Name, reg)
	for k, v := range doc.GlobalParams {
		wf.SetParam(k, v)
	}

	ids := make([]string, 0, len(doc.Nodes))
	for id := range doc.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return naturalLess(ids[i], ids[j]) })

	highest := 0
	for _, id := range ids {
		n := doc.Nodes[id]
		s, err := wf.PutStep(model.ID(id), n.Type)
		if err != nil {
			return nil, fmt.Errorf("load node %s: %w", id, err)
		}
		s.SetConfig(n.Config)
		s.SetPosition(n.Position)
		if num, ok := nodeNumber(id); ok && num > highest {
			highest = num
		}
	}
	for _, c := range doc.Connections {
		wf.AppendConnection(c)
	}

	counter := doc.NodeCounter
	if highest > counter {
		counter = highest
	}
	wf.SetCounter(counter)
	return wf, nil
}

// nodeNumber extracts N from an id of the form prefix_N.
func nodeNumber(id string) (int, bool) {
	i := strings.LastIndex(id, "_")
	if i < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(id[i+1:])
	if err != nil {
		return 0, false
	}
	return n, true
}

// naturalLess orders node_2 before node_10.
func naturalLess(a, b string) bool {
	na, aok := nodeNumber(a)
	nb, bok := nodeNumber(b)
	if aok && bok {
		pa, pb := a[:strings.LastIndex(a, "_")], b[:strings.LastIndex(b, "_")]
		if pa == pb {
			return na < nb
		}
	}
	return a < b
}

// Marshal encodes doc in the given format.
func Marshal(doc *Document, f Format) ([]byte, error) {
	if f == YAML {
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a document in the given format.
func Unmarshal(data []byte, f Format) (*Document, error) {
	var doc Document
	if f == YAML {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	} else {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	}
	if doc.Nodes == nil {
		doc.Nodes = map[string]Node{}
	}
	for id, n := range doc.Nodes {
		for k, v := range n.Config {
			n.Config[k] = normalize(v)
		}
		doc.Nodes[id] = n
	}
	return &doc, nil
}

// normalize gives decoded config numbers the same Go types whichever
// encoding they came from: integral values become int (int64 or uint64 when
// out of range), everything else float64.
func normalize(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := strconv.ParseInt(string(x), 10, 64); err == nil {
			return normalize(i)
		}
		if u, err := strconv.ParseUint(string(x), 10, 64); err == nil {
			return u
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return string(x)
	case int64:
		if int64(int(x)) == x {
			return int(x)
		}
		return x
	case uint64:
		if x <= math.MaxInt64 {
			return normalize(int64(x))
		}
		return x
	case []any:
		for i := range x {
			x[i] = normalize(x[i])
		}
		return x
	case map[string]any:
		for k := range x {
			x[k] = normalize(x[k])
		}
		return x
	}
	return v
}

// Save writes wf to path, choosing the encoding from the extension.
func Save(wf *engine.Workflow, path string) error {
	data, err := Marshal(Encode(wf), FormatFor(path))
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// Load reads a workflow from path using reg to recreate its steps.
func Load(path string, reg *plugin.Registry) (*engine.Workflow, error) {
	doc, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(doc, reg)
}

// LoadFile reads the raw document at path.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := Unmarshal(data, FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// SaveFile writes a raw document to path.
func SaveFile(doc *Document, path string) error {
	data, err := Marshal(doc, FormatFor(path))
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
