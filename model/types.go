package model

import "fmt"

// ID identifies a step within one workflow.
type ID string

// Port names an attachment point on a step.
type Port string

const (
	PortData Port = "data"
)

type Direction int

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Output {
		return "output"
	}
	return "input"
}

// PayloadKind documents what a port carries. It is never enforced by storage.
type PayloadKind string

const (
	KindTable PayloadKind = "table"
	KindValue PayloadKind = "value"
	KindAny   PayloadKind = "any"
)

type PortSpec struct {
	Name      Port
	Direction Direction
	Kind      PayloadKind
}

// In declares an input port carrying a table.
func In(name Port) PortSpec { return PortSpec{Name: name, Direction: Input, Kind: KindTable} }

// Out declares an output port carrying a table.
func Out(name Port) PortSpec { return PortSpec{Name: name, Direction: Output, Kind: KindTable} }

// Connection is a directed edge from an output port to an input port.
type Connection struct {
	FromNode ID   `json:"from_node" yaml:"from_node"`
	FromPort Port `json:"from_port" yaml:"from_port"`
	ToNode   ID   `json:"to_node" yaml:"to_node"`
	ToPort   Port `json:"to_port" yaml:"to_port"`
}

func (c Connection) String() string {
	return fmt.Sprintf("%s:%s -> %s:%s", c.FromNode, c.FromPort, c.ToNode, c.ToPort)
}

// Position is the canvas location of a step; the engine ignores it.
type Position [2]int

// Config holds a step's scalar configuration values keyed by field name.
type Config map[string]any

// Clone returns a shallow copy; values are scalars.
func (c Config) Clone() Config {
	out := make(Config, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Payloads maps port names to the data flowing through them.
type Payloads map[Port]any

type FieldType string

const (
	FieldText     FieldType = "text"
	FieldTextArea FieldType = "textarea"
	FieldNumber   FieldType = "number"
	FieldCheckbox FieldType = "checkbox"
	FieldSelect   FieldType = "select"
	FieldFile     FieldType = "file"
	FieldFileSave FieldType = "file_save"
)

// FieldSpec describes one configuration field for presentation layers.
type FieldSpec struct {
	Key         string    `json:"key"`
	Label       string    `json:"label"`
	Type        FieldType `json:"type"`
	Default     any       `json:"default,omitempty"`
	Required    bool      `json:"required,omitempty"`
	Options     []string  `json:"options,omitempty"`
	Placeholder string    `json:"placeholder,omitempty"`
}
