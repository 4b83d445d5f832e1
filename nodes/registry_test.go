package nodes

import (
	"testing"

	"github.com/chwongs96-beep/excel-workflow-tool/plugin"
)

func TestNewRegistry(t *testing.T) {
	reg, err := NewRegistry(plugin.Deps{})
	if err != nil {
		t.Fatal(err)
	}
	for _, typ := range []string{
		"read_csv", "read_excel", "list_sheets", "write_csv", "write_excel", "http_fetch",
		"filter_rows", "select_columns", "rename_columns", "sort_data", "remove_duplicates", "add_column",
		"fill_na", "trim_whitespace", "find_replace", "change_data_type",
		"concat_data", "merge_data", "group_by", "data_preview", "ai_column",
	} {
		if _, ok := reg.Lookup(typ); !ok {
			t.Errorf("type %s not registered", typ)
		}
	}
}

func TestEveryTypeDeclaresPorts(t *testing.T) {
	reg, err := NewRegistry(plugin.Deps{})
	if err != nil {
		t.Fatal(err)
	}
	for _, def := range reg.Definitions() {
		s, err := reg.Create(def.Type, "node_1")
		if err != nil {
			t.Fatalf("create %s: %v", def.Type, err)
		}
		in, out := s.Ports()
		if len(in)+len(out) == 0 {
			t.Errorf("%s declares no ports", def.Type)
		}
		if def.Category == "" {
			t.Errorf("%s has no category", def.Type)
		}
	}
}

func TestRegisterAllTwiceFails(t *testing.T) {
	reg := plugin.NewRegistry()
	if err := RegisterAll(reg, plugin.Deps{}); err != nil {
		t.Fatal(err)
	}
	if err := RegisterAll(reg, plugin.Deps{}); err == nil {
		t.Error("expected duplicate registration error")
	}
}
