package plugin

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/chwongs96-beep/excel-workflow-tool/model"
)

// Step is the contract every step type implements. Most methods come from
// embedding Base; a concrete type supplies Execute and usually Validate.
type Step interface {
	ID() model.ID
	Type() string
	Name() string

	// Ports returns the ports declared when the step was constructed.
	Ports() (inputs, outputs []model.PortSpec)
	InputPort(name model.Port) (model.PortSpec, bool)
	OutputPort(name model.Port) (model.PortSpec, bool)

	ConfigSchema() []model.FieldSpec
	Config() model.Config
	SetConfig(cfg model.Config)
	Param(key string, def any) any
	SetParam(key string, value any)
	SetContext(params map[string]string)

	Position() model.Position
	SetPosition(p model.Position)

	// Validate is a cheap precondition check with no side effects.
	Validate() error
	// Execute must not mutate payloads found in in; they may be shared with
	// sibling consumers of the same upstream output.
	Execute(ctx context.Context, in model.Payloads) (model.Payloads, error)
}

// Completer produces a text completion for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Deps are the shared resources handed to step factories at registration.
type Deps struct {
	HTTP   *http.Client
	LLM    Completer
	Logger *slog.Logger
}
