package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chwongs96-beep/excel-workflow-tool/engine"
	"github.com/chwongs96-beep/excel-workflow-tool/format/document"
	"github.com/chwongs96-beep/excel-workflow-tool/infra"
	"github.com/chwongs96-beep/excel-workflow-tool/model"
	"github.com/chwongs96-beep/excel-workflow-tool/plugin"
)

const version = "1.0.0"

// APIResponse represents the API response
type APIResponse struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// Deps are the services the handlers read from. History and Gatherer may be
// nil.
type Deps struct {
	Registry *plugin.Registry
	Store    infra.Store
	Runner   *infra.Runner
	History  *infra.History
	Gatherer prometheus.Gatherer
	Log      *slog.Logger
}

// RunRequest is the optional body of POST /workflows/:name/run.
type RunRequest struct {
	Params map[string]string `json:"params"`
}

// StepType describes a registered step type for editors.
type StepType struct {
	Type        string            `json:"type"`
	Name        string            `json:"name"`
	Category    string            `json:"category"`
	Description string            `json:"description,omitempty"`
	Inputs      []string          `json:"inputs"`
	Outputs     []string          `json:"outputs"`
	Fields      []model.FieldSpec `json:"fields"`
}

// Helper function to send JSON response
func sendResponse(c *gin.Context, statusCode int, success bool, data map[string]interface{}, errorMsg string) {
	response := APIResponse{Success: success, Data: data, Error: errorMsg}
	c.JSON(statusCode, response)
}

func sendSuccess(c *gin.Context, data map[string]interface{}) {
	sendResponse(c, http.StatusOK, true, data, "")
}
func sendError(c *gin.Context, statusCode int, errorMsg string) {
	sendResponse(c, statusCode, false, nil, errorMsg)
}

// sendStoreError maps not-found errors to 404 and everything else to 500.
func sendStoreError(c *gin.Context, err error) {
	if errors.Is(err, infra.ErrNotFound) {
		sendError(c, http.StatusNotFound, err.Error())
		return
	}
	sendError(c, http.StatusInternalServerError, err.Error())
}

type handlers struct{ Deps }

func (h handlers) health(c *gin.Context) {
	sendSuccess(c, map[string]interface{}{"status": "healthy", "timestamp": time.Now().Unix(), "version": version})
}

func (h handlers) stepTypes(c *gin.Context) {
	sendSuccess(c, map[string]interface{}{"types": Describe(h.Registry)})
}

// Describe lists the registry's step types with their ports and fields.
func Describe(reg *plugin.Registry) []StepType {
	var out []StepType
	for _, def := range reg.Definitions() {
		st := StepType{Type: def.Type, Name: def.Name, Category: def.Category, Description: def.Description, Inputs: []string{}, Outputs: []string{}}
		if s, err := reg.Create(def.Type, ""); err == nil {
			ins, outs := s.Ports()
			for _, p := range ins {
				st.Inputs = append(st.Inputs, string(p.Name))
			}
			for _, p := range outs {
				st.Outputs = append(st.Outputs, string(p.Name))
			}
			st.Fields = s.ConfigSchema()
		}
		out = append(out, st)
	}
	return out
}

func (h handlers) listWorkflows(c *gin.Context) {
	docs, err := h.Store.List(c.Request.Context())
	if err != nil {
		sendStoreError(c, err)
		return
	}
	sendSuccess(c, map[string]interface{}{"workflows": docs})
}

// name reads and checks the :name path parameter.
func (h handlers) name(c *gin.Context) (string, bool) {
	name := c.Param("name")
	if err := infra.CheckName(name); err != nil {
		sendError(c, http.StatusBadRequest, err.Error())
		return "", false
	}
	return name, true
}

func (h handlers) getWorkflow(c *gin.Context) {
	name, ok := h.name(c)
	if !ok {
		return
	}
	data, err := h.Store.Get(c.Request.Context(), name)
	if err != nil {
		sendStoreError(c, err)
		return
	}
	doc, err := document.Unmarshal(data, document.JSON)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}
	sendSuccess(c, map[string]interface{}{"name": name, "workflow": doc})
}

func (h handlers) putWorkflow(c *gin.Context) {
	name, ok := h.name(c)
	if !ok {
		return
	}
	var doc document.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	wf, err := document.Decode(&doc, h.Registry)
	if err != nil {
		sendError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := infra.SaveWorkflow(c.Request.Context(), h.Store, name, wf); err != nil {
		sendStoreError(c, err)
		return
	}
	sendSuccess(c, map[string]interface{}{"name": name, "steps": wf.Len()})
}

func (h handlers) deleteWorkflow(c *gin.Context) {
	name, ok := h.name(c)
	if !ok {
		return
	}
	if err := h.Store.Delete(c.Request.Context(), name); err != nil {
		sendStoreError(c, err)
		return
	}
	sendSuccess(c, map[string]interface{}{"name": name, "deleted": true})
}

func (h handlers) load(c *gin.Context) (string, *engine.Workflow, bool) {
	name, ok := h.name(c)
	if !ok {
		return "", nil, false
	}
	wf, err := infra.LoadWorkflow(c.Request.Context(), h.Store, name, h.Registry)
	if err != nil {
		if errors.Is(err, infra.ErrNotFound) {
			sendError(c, http.StatusNotFound, err.Error())
		} else {
			sendError(c, http.StatusUnprocessableEntity, err.Error())
		}
		return "", nil, false
	}
	return name, wf, true
}

func (h handlers) ancestors(c *gin.Context) {
	_, wf, ok := h.load(c)
	if !ok {
		return
	}
	ids, err := wf.Ancestors(model.ID(c.Param("step")))
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, engine.ErrStepNotFound) {
			status = http.StatusNotFound
		}
		sendError(c, status, err.Error())
		return
	}
	sendSuccess(c, map[string]interface{}{"step": c.Param("step"), "ancestors": ids})
}

// runWorkflow queues the stored workflow. With ?async=true it answers 202
// and the run id at once; otherwise it waits for the result.
func (h handlers) runWorkflow(c *gin.Context) {
	name, wf, ok := h.load(c)
	if !ok {
		return
	}
	if c.Request.ContentLength > 0 {
		var req RunRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			sendError(c, http.StatusBadRequest, "Invalid JSON: "+err.Error())
			return
		}
		for k, v := range req.Params {
			wf.SetParam(k, v)
		}
	}
	target := model.ID(c.Query("target"))
	if target != "" {
		if _, ok := wf.Step(target); !ok {
			sendError(c, http.StatusNotFound, "target step not found: "+string(target))
			return
		}
	}

	if async, _ := strconv.ParseBool(c.Query("async")); async {
		id, err := h.Runner.Enqueue(name, wf, target)
		if err != nil {
			sendRunError(c, err)
			return
		}
		sendResponse(c, http.StatusAccepted, true, map[string]interface{}{"run_id": id}, "")
		return
	}

	out, err := h.Runner.Submit(c.Request.Context(), name, wf, target)
	if err != nil {
		sendRunError(c, err)
		return
	}
	data := map[string]interface{}{"run": out.Record, "results": out.Results}
	if out.Err != nil {
		sendResponse(c, http.StatusUnprocessableEntity, false, data, out.Err.Error())
		return
	}
	sendSuccess(c, data)
}

func sendRunError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, infra.ErrQueueFull):
		sendError(c, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		sendError(c, http.StatusGatewayTimeout, err.Error())
	default:
		sendError(c, http.StatusInternalServerError, err.Error())
	}
}

func (h handlers) listRuns(c *gin.Context) {
	sendSuccess(c, map[string]interface{}{"runs": h.Runner.List()})
}

func (h handlers) getRun(c *gin.Context) {
	id := c.Param("id")
	if rec, ok := h.Runner.Get(id); ok {
		sendSuccess(c, map[string]interface{}{"run": rec})
		return
	}
	if h.History == nil {
		sendError(c, http.StatusNotFound, "run not found: "+id)
		return
	}
	rec, err := h.History.Get(c.Request.Context(), id)
	if err != nil {
		sendStoreError(c, err)
		return
	}
	sendSuccess(c, map[string]interface{}{"run": rec})
}

func (h handlers) runLogs(c *gin.Context) {
	logs, err := h.Runner.Logs(c.Param("id"))
	if err != nil {
		sendStoreError(c, err)
		return
	}
	sendSuccess(c, map[string]interface{}{"logs": logs})
}

func (h handlers) history(c *gin.Context) {
	if h.History == nil {
		sendError(c, http.StatusNotFound, "run history is disabled")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 {
		sendError(c, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	runs, err := h.History.Recent(c.Request.Context(), limit)
	if err != nil {
		sendStoreError(c, err)
		return
	}
	sendSuccess(c, map[string]interface{}{"runs": runs})
}

// requestLog logs one line per request through slog.
func requestLog(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("took", time.Since(start)),
		)
	}
}

// NewRouter builds the Gin router with routes and middleware
func NewRouter(d Deps) *gin.Engine {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	h := handlers{d}

	r := gin.New()
	r.Use(requestLog(d.Log.With(slog.String("component", "api"))))
	r.Use(gin.Recovery())
	// CORS
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	r.GET("/health", h.health)
	r.GET("/step-types", h.stepTypes)

	r.GET("/workflows", h.listWorkflows)
	r.GET("/workflows/:name", h.getWorkflow)
	r.PUT("/workflows/:name", h.putWorkflow)
	r.DELETE("/workflows/:name", h.deleteWorkflow)
	r.POST("/workflows/:name/run", h.runWorkflow)
	r.GET("/workflows/:name/ancestors/:step", h.ancestors)

	r.GET("/runs", h.listRuns)
	r.GET("/runs/:id", h.getRun)
	r.GET("/runs/:id/logs", h.runLogs)
	r.GET("/history", h.history)

	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
	return r
}
