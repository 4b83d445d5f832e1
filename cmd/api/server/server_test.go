package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/chwongs96-beep/excel-workflow-tool/engine"
	"github.com/chwongs96-beep/excel-workflow-tool/format/document"
	"github.com/chwongs96-beep/excel-workflow-tool/infra"
	"github.com/chwongs96-beep/excel-workflow-tool/model"
	"github.com/chwongs96-beep/excel-workflow-tool/nodes"
	"github.com/chwongs96-beep/excel-workflow-tool/plugin"
)

type fixture struct {
	router *gin.Engine
	reg    *plugin.Registry
	store  *infra.MemStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	reg, err := nodes.NewRegistry(plugin.Deps{})
	if err != nil {
		t.Fatal(err)
	}
	promReg := prometheus.NewRegistry()
	runner := infra.NewRunner(engine.New(nil), nil, infra.WithMetrics(infra.NewMetrics(promReg)))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = runner.Serve(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	store := infra.NewMemStore()
	return &fixture{
		router: NewRouter(Deps{Registry: reg, Store: store, Runner: runner, Gatherer: promReg}),
		reg:    reg,
		store:  store,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (int, APIResponse) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	var resp APIResponse
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode %s %s: %v\n%s", method, path, err, w.Body.String())
		}
	}
	return w.Code, resp
}

// csvPipeline builds read_csv({dir}/in.csv) -> filter_rows(city == Paris).
func csvPipeline(t *testing.T, reg *plugin.Registry) *document.Document {
	t.Helper()
	wf := engine.NewWorkflow("sales", reg)
	read, err := wf.AddStep("read_csv")
	if err != nil {
		t.Fatal(err)
	}
	read.SetParam("file_path", "{dir}/in.csv")
	filter, err := wf.AddStep("filter_rows")
	if err != nil {
		t.Fatal(err)
	}
	filter.SetParam("column", "city")
	filter.SetParam("operator", "==")
	filter.SetParam("value", "Paris")
	if _, err := wf.AddConnection(read.ID(), model.PortData, filter.ID(), model.PortData); err != nil {
		t.Fatal(err)
	}
	return document.Encode(wf)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	code, resp := f.do(t, http.MethodGet, "/health", nil)
	if code != http.StatusOK || !resp.Success || resp.Data["status"] != "healthy" {
		t.Errorf("health = %d %+v", code, resp)
	}
}

func TestStepTypes(t *testing.T) {
	f := newFixture(t)
	types := Describe(f.reg)
	var filter StepType
	for _, st := range types {
		if st.Type == "filter_rows" {
			filter = st
		}
	}
	if diff := cmp.Diff([]string{"data"}, filter.Inputs); diff != "" {
		t.Errorf("filter inputs (-want +got):\n%s", diff)
	}
	if len(filter.Fields) == 0 {
		t.Errorf("filter has no fields")
	}

	code, resp := f.do(t, http.MethodGet, "/step-types", nil)
	if code != http.StatusOK || !resp.Success {
		t.Fatalf("step-types = %d %+v", code, resp)
	}
	if got := len(resp.Data["types"].([]any)); got != len(types) {
		t.Errorf("got %d types, want %d", got, len(types))
	}
}

func TestWorkflowCRUD(t *testing.T) {
	f := newFixture(t)
	doc := csvPipeline(t, f.reg)

	code, resp := f.do(t, http.MethodPut, "/workflows/sales", doc)
	if code != http.StatusOK || resp.Data["steps"] != float64(2) {
		t.Fatalf("put = %d %+v", code, resp)
	}

	code, resp = f.do(t, http.MethodGet, "/workflows", nil)
	if code != http.StatusOK || len(resp.Data["workflows"].([]any)) != 1 {
		t.Errorf("list = %d %+v", code, resp)
	}

	code, resp = f.do(t, http.MethodGet, "/workflows/sales", nil)
	if code != http.StatusOK {
		t.Fatalf("get = %d %+v", code, resp)
	}
	wf := resp.Data["workflow"].(map[string]any)
	if wf["name"] != "sales" || len(wf["nodes"].(map[string]any)) != 2 {
		t.Errorf("workflow = %+v", wf)
	}

	code, resp = f.do(t, http.MethodGet, "/workflows/sales/ancestors/node_2", nil)
	if code != http.StatusOK {
		t.Fatalf("ancestors = %d %+v", code, resp)
	}
	if diff := cmp.Diff([]any{"node_1"}, resp.Data["ancestors"]); diff != "" {
		t.Errorf("ancestors (-want +got):\n%s", diff)
	}
	if code, _ := f.do(t, http.MethodGet, "/workflows/sales/ancestors/node_9", nil); code != http.StatusNotFound {
		t.Errorf("unknown step = %d, want 404", code)
	}

	if code, _ := f.do(t, http.MethodDelete, "/workflows/sales", nil); code != http.StatusOK {
		t.Errorf("delete = %d", code)
	}
	if code, _ := f.do(t, http.MethodGet, "/workflows/sales", nil); code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", code)
	}
}

func TestPutWorkflowRejects(t *testing.T) {
	f := newFixture(t)
	if code, _ := f.do(t, http.MethodPut, "/workflows/-bad", csvPipeline(t, f.reg)); code != http.StatusBadRequest {
		t.Errorf("bad name = %d", code)
	}
	bad := &document.Document{Name: "x", Nodes: map[string]document.Node{"node_1": {Type: "no_such_type"}}}
	code, resp := f.do(t, http.MethodPut, "/workflows/x", bad)
	if code != http.StatusBadRequest || !strings.Contains(resp.Error, "no_such_type") {
		t.Errorf("unknown type = %d %+v", code, resp)
	}
}

func TestRunWorkflow(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	csv := "name,city\nAnn,Paris\nBob,Rome\nCid,Paris\n"
	if err := os.WriteFile(filepath.Join(dir, "in.csv"), []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}
	if code, resp := f.do(t, http.MethodPut, "/workflows/sales", csvPipeline(t, f.reg)); code != http.StatusOK {
		t.Fatalf("put = %d %+v", code, resp)
	}

	code, resp := f.do(t, http.MethodPost, "/workflows/sales/run", RunRequest{Params: map[string]string{"dir": dir}})
	if code != http.StatusOK || !resp.Success {
		t.Fatalf("run = %d %+v", code, resp)
	}
	run := resp.Data["run"].(map[string]any)
	if run["status"] != string(infra.RunSucceeded) {
		t.Errorf("status = %v", run["status"])
	}
	results := resp.Data["results"].(map[string]any)
	out := results["node_2"].(map[string]any)["output"].(map[string]any)["data"].(map[string]any)
	if got := len(out["rows"].([]any)); got != 2 {
		t.Errorf("kept %d rows, want 2", got)
	}

	id := run["id"].(string)
	if code, resp := f.do(t, http.MethodGet, "/runs/"+id, nil); code != http.StatusOK {
		t.Errorf("get run = %d %+v", code, resp)
	}
	code, resp = f.do(t, http.MethodGet, "/runs/"+id+"/logs", nil)
	if code != http.StatusOK || len(resp.Data["logs"].([]any)) == 0 {
		t.Errorf("logs = %d %+v", code, resp)
	}
	if code, resp := f.do(t, http.MethodGet, "/runs", nil); code != http.StatusOK || len(resp.Data["runs"].([]any)) != 1 {
		t.Errorf("runs = %d %+v", code, resp)
	}
}

func TestRunWorkflowFailure(t *testing.T) {
	f := newFixture(t)
	if code, resp := f.do(t, http.MethodPut, "/workflows/sales", csvPipeline(t, f.reg)); code != http.StatusOK {
		t.Fatalf("put = %d %+v", code, resp)
	}
	code, resp := f.do(t, http.MethodPost, "/workflows/sales/run", RunRequest{Params: map[string]string{"dir": t.TempDir()}})
	if code != http.StatusUnprocessableEntity || resp.Success {
		t.Fatalf("run = %d %+v", code, resp)
	}
	if !strings.Contains(resp.Error, "error in step 'Read CSV' (node_1)") {
		t.Errorf("error = %q", resp.Error)
	}
	run := resp.Data["run"].(map[string]any)
	if run["failed_step"] != "node_1" {
		t.Errorf("failed_step = %v", run["failed_step"])
	}
}

func TestRunUnknownTarget(t *testing.T) {
	f := newFixture(t)
	if code, resp := f.do(t, http.MethodPut, "/workflows/sales", csvPipeline(t, f.reg)); code != http.StatusOK {
		t.Fatalf("put = %d %+v", code, resp)
	}
	if code, _ := f.do(t, http.MethodPost, "/workflows/sales/run?target=node_7", nil); code != http.StatusNotFound {
		t.Errorf("unknown target = %d, want 404", code)
	}
	if code, _ := f.do(t, http.MethodPost, "/workflows/missing/run", nil); code != http.StatusNotFound {
		t.Errorf("missing workflow = %d, want 404", code)
	}
}

func TestHistoryDisabled(t *testing.T) {
	f := newFixture(t)
	if code, _ := f.do(t, http.MethodGet, "/history", nil); code != http.StatusNotFound {
		t.Errorf("history = %d, want 404", code)
	}
	if code, _ := f.do(t, http.MethodGet, "/runs/nope", nil); code != http.StatusNotFound {
		t.Errorf("unknown run = %d, want 404", code)
	}
}

func TestMetricsAndCORS(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "exflow_runs_queued") {
		t.Errorf("metrics = %d\n%s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodOptions, "/workflows", nil)
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "DELETE") {
		t.Errorf("allow methods = %q", got)
	}
}
