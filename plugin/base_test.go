package plugin

import (
	"testing"

	"github.com/chwongs96-beep/excel-workflow-tool/model"
)

func TestParamSubstitution(t *testing.T) {
	s := newStub(NewBase("node_1", "stub", "Stub"))
	s.SetParam("path", "/data/{env}/in.csv")
	s.SetParam("other", "/data/{missing}/x")
	s.SetContext(map[string]string{"env": "prod"})

	if got := s.Param("path", nil); got != "/data/prod/in.csv" {
		t.Errorf("path = %v, want /data/prod/in.csv", got)
	}
	if got := s.Param("other", nil); got != "/data/{missing}/x" {
		t.Errorf("unset placeholder should stay verbatim, got %v", got)
	}
}

func TestParamSubstitutionNoContext(t *testing.T) {
	s := newStub(NewBase("node_1", "stub", "Stub"))
	s.SetParam("path", "/data/{env}/in.csv")
	if got := s.Param("path", nil); got != "/data/{env}/in.csv" {
		t.Errorf("expected no substitution without context, got %v", got)
	}
}

func TestParamNonString(t *testing.T) {
	s := newStub(NewBase("node_1", "stub", "Stub"))
	s.SetParam("rows", 3.0)
	s.SetContext(map[string]string{"rows": "9"})
	if got := s.Param("rows", nil); got != 3.0 {
		t.Errorf("non-string values are returned untouched, got %v", got)
	}
}

func TestParamDefaults(t *testing.T) {
	s := newStub(NewBase("node_1", "stub", "Stub")).(*stub)
	if got := s.ParamInt("rows", 0); got != 5 {
		t.Errorf("expected schema default 5, got %d", got)
	}
	if got := s.Param("nothing", "fallback"); got != "fallback" {
		t.Errorf("expected explicit default, got %v", got)
	}
	s.SetParam("rows", "{n}")
	s.SetContext(map[string]string{"n": "12"})
	if got := s.ParamInt("rows", 0); got != 12 {
		t.Errorf("expected substituted 12, got %d", got)
	}
	s.SetParam("flag", "true")
	if !s.ParamBool("flag", false) {
		t.Errorf("expected flag true")
	}
	s.SetParam("cols", " a, ,b ")
	if got := s.ParamList("cols"); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("unexpected list %v", got)
	}
}

func TestValidateSchema(t *testing.T) {
	s := newStub(NewBase("node_1", "stub", "Stub"))
	if err := s.Validate(); err == nil || err.Error() != "File path is required" {
		t.Errorf("expected required error, got %v", err)
	}
	s.SetParam("path", "x.csv")
	s.SetParam("rows", "many")
	if err := s.Validate(); err == nil {
		t.Errorf("expected number error")
	}
	s.SetParam("rows", "4")
	s.SetParam("mode", "c")
	if err := s.Validate(); err == nil {
		t.Errorf("expected select error")
	}
	s.SetParam("mode", "b")
	if err := s.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestConfigIsCopied(t *testing.T) {
	s := newStub(NewBase("node_1", "stub", "Stub"))
	cfg := model.Config{"path": "a"}
	s.SetConfig(cfg)
	cfg["path"] = "b"
	if s.Param("path", nil) != "a" {
		t.Errorf("SetConfig must copy its argument")
	}
	out := s.Config()
	out["path"] = "c"
	if s.Param("path", nil) != "a" {
		t.Errorf("Config must return a copy")
	}
}

func TestInputTable(t *testing.T) {
	if _, err := InputTable(model.Payloads{}, "data"); err == nil || err.Error() != `no input data received on port "data"` {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := InputTable(model.Payloads{"data": 3}, "data"); err == nil {
		t.Errorf("expected type error")
	}
	tb := model.NewTable("a")
	got, err := InputTable(model.Payloads{"data": tb}, "data")
	if err != nil || got != tb {
		t.Errorf("expected table back, got %v %v", got, err)
	}
}
