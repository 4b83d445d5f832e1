package infra

import (
	"context"
	"os"
	"testing"

	"github.com/chwongs96-beep/excel-workflow-tool/config"
)

func TestOpenApp(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Config{
		DataDir:       dir,
		APIPort:       8080,
		LogFormat:     "text",
		Store:         "local",
		HistoryDriver: "sqlite",
	}
	app, err := Open(context.Background(), cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer app.Close()

	if _, ok := app.Registry.Lookup("read_csv"); !ok {
		t.Errorf("read_csv not registered")
	}
	if _, ok := app.Store.(*LocalStore); !ok {
		t.Errorf("store = %T, want *LocalStore", app.Store)
	}
	if app.History == nil {
		t.Errorf("history not opened")
	}
	if _, err := os.Stat(HistoryPath(dir)); err != nil {
		t.Errorf("history file: %v", err)
	}
	if _, err := app.Gatherer.Gather(); err != nil {
		t.Errorf("gather: %v", err)
	}
}

func TestOpenAppWithoutHistory(t *testing.T) {
	cfg := config.Config{DataDir: t.TempDir(), Store: "memory"}
	app, err := Open(context.Background(), cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if app.History != nil {
		t.Errorf("history = %v, want nil", app.History)
	}
	if _, ok := app.Store.(*MemStore); !ok {
		t.Errorf("store = %T, want *MemStore", app.Store)
	}
	if err := app.Close(); err != nil {
		t.Error(err)
	}
}

func TestOpenStoreUnknown(t *testing.T) {
	if _, err := OpenStore(context.Background(), config.Config{Store: "ftp"}); err == nil {
		t.Errorf("expected error for unknown store")
	}
}
