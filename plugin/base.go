package plugin

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/chwongs96-beep/excel-workflow-tool/model"
)

// Base carries the state every step shares: identity, declared ports,
// configuration and the parameter context injected by the engine. Concrete
// steps embed *Base and add Execute.
type Base struct {
	id       model.ID
	typ      string
	name     string
	inputs   []model.PortSpec
	outputs  []model.PortSpec
	schema   []model.FieldSpec
	config   model.Config
	context  map[string]string
	position model.Position
}

func NewBase(id model.ID, typ, name string) *Base {
	return &Base{id: id, typ: typ, name: name, config: model.Config{}}
}

// Declare fixes the step's ports. It is called once from the factory.
func (b *Base) Declare(inputs, outputs []model.PortSpec) {
	b.inputs = append([]model.PortSpec(nil), inputs...)
	b.outputs = append([]model.PortSpec(nil), outputs...)
	for i := range b.inputs {
		b.inputs[i].Direction = model.Input
	}
	for i := range b.outputs {
		b.outputs[i].Direction = model.Output
	}
}

// Describe sets the configuration schema.
func (b *Base) Describe(fields ...model.FieldSpec) { b.schema = fields }

func (b *Base) ID() model.ID  { return b.id }
func (b *Base) Type() string  { return b.typ }
func (b *Base) Name() string  { return b.name }

func (b *Base) Ports() (inputs, outputs []model.PortSpec) {
	return append([]model.PortSpec(nil), b.inputs...), append([]model.PortSpec(nil), b.outputs...)
}

func (b *Base) InputPort(name model.Port) (model.PortSpec, bool)  { return findPort(b.inputs, name) }
func (b *Base) OutputPort(name model.Port) (model.PortSpec, bool) { return findPort(b.outputs, name) }

func findPort(ports []model.PortSpec, name model.Port) (model.PortSpec, bool) {
	for _, p := range ports {
		if p.Name == name {
			return p, true
		}
	}
	return model.PortSpec{}, false
}

func (b *Base) ConfigSchema() []model.FieldSpec { return append([]model.FieldSpec(nil), b.schema...) }

func (b *Base) Config() model.Config { return b.config.Clone() }

func (b *Base) SetConfig(cfg model.Config) {
	if cfg == nil {
		cfg = model.Config{}
	}
	b.config = cfg.Clone()
}

func (b *Base) SetParam(key string, value any) { b.config[key] = value }

// SetContext replaces the parameter context used for placeholder substitution.
func (b *Base) SetContext(params map[string]string) {
	ctx := make(map[string]string, len(params))
	for k, v := range params {
		ctx[k] = v
	}
	b.context = ctx
}

func (b *Base) Position() model.Position     { return b.position }
func (b *Base) SetPosition(p model.Position) { b.position = p }

// Validate checks the configuration against the declared schema. Steps with
// extra preconditions override it and call ValidateSchema first.
func (b *Base) Validate() error { return b.ValidateSchema() }

// ValidateSchema reports the first required field left empty or number field
// that does not parse.
func (b *Base) ValidateSchema() error {
	for _, f := range b.schema {
		v := b.Param(f.Key, nil)
		if f.Required && model.IsNull(v) {
			label := f.Label
			if label == "" {
				label = f.Key
			}
			return fmt.Errorf("%s is required", label)
		}
		if f.Type == model.FieldNumber && !model.IsNull(v) {
			if _, ok := model.Number(v); !ok {
				return fmt.Errorf("%s must be a number, got %q", f.Key, model.Text(v))
			}
		}
		if f.Type == model.FieldSelect && len(f.Options) > 0 && !model.IsNull(v) {
			if !contains(f.Options, model.Text(v)) {
				return fmt.Errorf("%s must be one of %s", f.Key, strings.Join(f.Options, ", "))
			}
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

// Param looks up a configuration value. A missing key yields def, or the
// schema default when def is nil. String values have {name} placeholders
// replaced from the parameter context; unknown names stay as written.
func (b *Base) Param(key string, def any) any {
	v, ok := b.config[key]
	if !ok {
		v = def
		if v == nil {
			v = b.schemaDefault(key)
		}
	}
	if s, ok := v.(string); ok && len(b.context) > 0 {
		return Substitute(s, b.context)
	}
	return v
}

func (b *Base) schemaDefault(key string) any {
	for _, f := range b.schema {
		if f.Key == key {
			return f.Default
		}
	}
	return nil
}

func (b *Base) ParamString(key, def string) string {
	v := b.Param(key, nil)
	if v == nil {
		return def
	}
	return model.Text(v)
}

func (b *Base) ParamFloat(key string, def float64) float64 {
	if f, ok := model.Number(b.Param(key, nil)); ok {
		return f
	}
	return def
}

func (b *Base) ParamInt(key string, def int) int {
	if f, ok := model.Number(b.Param(key, nil)); ok {
		return int(f)
	}
	return def
}

func (b *Base) ParamBool(key string, def bool) bool {
	switch v := b.Param(key, nil).(type) {
	case bool:
		return v
	case string:
		if parsed, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return parsed
		}
	}
	return def
}

// ParamList splits a comma separated value, dropping blanks.
func (b *Base) ParamList(key string) []string {
	var out []string
	for _, part := range strings.Split(b.ParamString(key, ""), ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

var placeholder = regexp.MustCompile(`\{([^{}]+)\}`)

// Substitute replaces each {name} in s with params[name] in a single pass.
func Substitute(s string, params map[string]string) string {
	if !strings.Contains(s, "{") {
		return s
	}
	return placeholder.ReplaceAllStringFunc(s, func(m string) string {
		if v, ok := params[m[1:len(m)-1]]; ok {
			return v
		}
		return m
	})
}

// InputTable fetches the table arriving on port.
func InputTable(in model.Payloads, port model.Port) (*model.Table, error) {
	v, ok := in[port]
	if !ok || v == nil {
		return nil, fmt.Errorf("no input data received on port %q", port)
	}
	t, ok := v.(*model.Table)
	if !ok {
		return nil, fmt.Errorf("port %q: expected table, got %T", port, v)
	}
	return t, nil
}
