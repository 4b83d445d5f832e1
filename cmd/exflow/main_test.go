package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chwongs96-beep/excel-workflow-tool/engine"
	"github.com/chwongs96-beep/excel-workflow-tool/format/document"
	"github.com/chwongs96-beep/excel-workflow-tool/model"
	"github.com/chwongs96-beep/excel-workflow-tool/nodes"
	"github.com/chwongs96-beep/excel-workflow-tool/plugin"
)

// execute runs the root command in-process with fresh flag values.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	rootFlags.envFile, rootFlags.logLevel = "", ""
	runFlags.target, runFlags.params, runFlags.fromStore, runFlags.quiet = "", nil, false, false
	ancestorsFlags.fromStore = false
	historyFlags.limit = 20

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// workspace points the data dir at a temp dir and writes a CSV plus a
// read_csv -> filter_rows -> data_preview workflow into it.
func workspace(t *testing.T) (dir, wfPath string) {
	t.Helper()
	dir = t.TempDir()
	t.Setenv("EXFLOW_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("EXFLOW_STORE", "local")
	t.Setenv("EXFLOW_HISTORY_DRIVER", "sqlite")
	t.Setenv("EXFLOW_HISTORY_DSN", filepath.Join(dir, "data", "history.db"))
	t.Setenv("EXFLOW_LLM_API_KEY", "")

	csv := "name,city,amount\nAnn,Paris,10\nBob,Rome,20\nCid,Paris,30\n"
	if err := os.WriteFile(filepath.Join(dir, "sales.csv"), []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}

	reg, err := nodes.NewRegistry(plugin.Deps{})
	if err != nil {
		t.Fatal(err)
	}
	wf := engine.NewWorkflow("sales", reg)
	read, _ := wf.AddStep("read_csv")
	read.SetParam("file_path", "{dir}/sales.csv")
	filter, _ := wf.AddStep("filter_rows")
	filter.SetParam("column", "city")
	filter.SetParam("value", "Paris")
	prev, _ := wf.AddStep("data_preview")
	if _, err := wf.AddConnection(read.ID(), model.PortData, filter.ID(), model.PortData); err != nil {
		t.Fatal(err)
	}
	if _, err := wf.AddConnection(filter.ID(), model.PortData, prev.ID(), model.PortData); err != nil {
		t.Fatal(err)
	}
	wfPath = filepath.Join(dir, "sales.json")
	if err := document.Save(wf, wfPath); err != nil {
		t.Fatal(err)
	}
	return dir, wfPath
}

func TestRunAndHistory(t *testing.T) {
	dir, wfPath := workspace(t)

	out, err := execute(t, "run", wfPath, "--param", "dir="+dir)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	for _, want := range []string{"node_3", "data: 2 rows x 3 cols", "Data Preview (node_3)", "Cid", "completed"} {
		if !strings.Contains(out, want) {
			t.Errorf("run output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Bob") {
		t.Errorf("filtered row leaked into preview:\n%s", out)
	}

	out, err = execute(t, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "sales") || !strings.Contains(out, "succeeded") {
		t.Errorf("history output:\n%s", out)
	}
}

func TestRunTargetAndFailure(t *testing.T) {
	dir, wfPath := workspace(t)

	out, err := execute(t, "run", wfPath, "-p", "dir="+dir, "--target", "node_2", "-q")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	if strings.Contains(out, "node_3") {
		t.Errorf("step outside the target ran:\n%s", out)
	}

	if _, err := execute(t, "run", wfPath, "--target", "node_9"); err == nil {
		t.Errorf("expected error for unknown target")
	}

	_, err = execute(t, "run", wfPath, "-p", "dir="+filepath.Join(dir, "missing"))
	if err == nil || !strings.Contains(err.Error(), "error in step 'Read CSV' (node_1)") {
		t.Errorf("err = %v", err)
	}

	if _, err := execute(t, "run", wfPath, "-p", "novalue"); err == nil {
		t.Errorf("expected error for malformed --param")
	}
}

func TestTypesAndAncestors(t *testing.T) {
	_, wfPath := workspace(t)

	out, err := execute(t, "types")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"read_csv", "group_by", "file_path*"} {
		if !strings.Contains(out, want) {
			t.Errorf("types output missing %q", want)
		}
	}

	out, err = execute(t, "ancestors", wfPath, "node_3")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "node_1") || !strings.Contains(out, "node_2") {
		t.Errorf("ancestors output:\n%s", out)
	}
	out, err = execute(t, "ancestors", wfPath, "node_1")
	if err != nil || !strings.Contains(out, "no ancestors") {
		t.Errorf("ancestors of a source = %q, %v", out, err)
	}
}

func TestConvertAndStore(t *testing.T) {
	dir, wfPath := workspace(t)

	yamlPath := filepath.Join(dir, "sales.yaml")
	if _, err := execute(t, "convert", wfPath, yamlPath); err != nil {
		t.Fatal(err)
	}
	doc, err := document.LoadFile(yamlPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Nodes) != 3 || len(doc.Connections) != 2 {
		t.Errorf("converted doc has %d nodes, %d connections", len(doc.Nodes), len(doc.Connections))
	}

	if _, err := execute(t, "store", "put", "weekly", yamlPath); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "store", "list")
	if err != nil || !strings.Contains(out, "weekly") {
		t.Errorf("store list = %q, %v", out, err)
	}
	out, err = execute(t, "run", "weekly", "--stored", "-q", "-p", "dir="+dir)
	if err != nil {
		t.Fatalf("run stored: %v\n%s", err, out)
	}
	if _, err := execute(t, "store", "rm", "weekly"); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "store", "get", "weekly"); err == nil {
		t.Errorf("expected error after rm")
	}
}
