package infra

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/chwongs96-beep/excel-workflow-tool/engine"
	"github.com/chwongs96-beep/excel-workflow-tool/format/document"
	"github.com/chwongs96-beep/excel-workflow-tool/plugin"
)

var ErrNotFound = errors.New("not found")

// DocInfo describes a stored workflow document.
type DocInfo struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store keeps workflow documents by name. Implementations return an error
// wrapping ErrNotFound for unknown names.
type Store interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	List(ctx context.Context) ([]DocInfo, error)
	Delete(ctx context.Context, name string) error
}

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 _.-]{0,127}$`)

// CheckName rejects names that could escape a directory or bucket prefix.
func CheckName(name string) error {
	if !validName.MatchString(name) || name == "." || name == ".." {
		return fmt.Errorf("invalid workflow name %q", name)
	}
	return nil
}

func notFound(name string) error { return fmt.Errorf("workflow %q: %w", name, ErrNotFound) }

// SaveWorkflow encodes wf as a JSON document and stores it under name.
func SaveWorkflow(ctx context.Context, s Store, name string, wf *engine.Workflow) error {
	data, err := document.Marshal(document.Encode(wf), document.JSON)
	if err != nil {
		return err
	}
	return s.Put(ctx, name, data)
}

// LoadWorkflow fetches the document stored under name and rebuilds it.
func LoadWorkflow(ctx context.Context, s Store, name string, reg *plugin.Registry) (*engine.Workflow, error) {
	data, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	doc, err := document.Unmarshal(data, document.JSON)
	if err != nil {
		return nil, fmt.Errorf("workflow %q: %w", name, err)
	}
	return document.Decode(doc, reg)
}
