package httpnode

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/chwongs96-beep/excel-workflow-tool/model"
	"github.com/chwongs96-beep/excel-workflow-tool/nodes/files"
	"github.com/chwongs96-beep/excel-workflow-tool/plugin"
)

// Definitions lists the HTTP steps; they share deps.HTTP.
func Definitions(deps plugin.Deps) []plugin.Definition {
	client := deps.HTTP
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return []plugin.Definition{
		{Type: "http_fetch", Name: "HTTP Fetch", Category: "Input/Output", Description: "Download a CSV file or JSON array into a table", New: func(b *plugin.Base) plugin.Step {
			b.Declare(nil, []model.PortSpec{model.Out(model.PortData)})
			b.Describe(
				model.FieldSpec{Key: "url", Label: "URL", Type: model.FieldText, Required: true, Placeholder: "https://example.com/export.csv"},
				model.FieldSpec{Key: "format", Label: "Format", Type: model.FieldSelect, Default: "auto", Options: []string{"auto", "csv", "json"}},
				model.FieldSpec{Key: "records_key", Label: "JSON records key", Type: model.FieldText, Placeholder: "empty when the body is an array"},
				model.FieldSpec{Key: "retries", Label: "Retries", Type: model.FieldNumber, Default: 2.0},
				model.FieldSpec{Key: "timeout", Label: "Timeout (seconds)", Type: model.FieldNumber, Default: 15.0},
			)
			return &Fetch{Base: b, client: client, log: log}
		}},
	}
}

// Fetch downloads a table over HTTP GET. Network errors and 5xx responses
// are retried with exponential backoff; 4xx responses fail at once.
type Fetch struct {
	*plugin.Base
	client *http.Client
	log    *slog.Logger
	policy RetryPolicy
}

func (n *Fetch) Validate() error {
	if err := n.ValidateSchema(); err != nil {
		return err
	}
	u := n.ParamString("url", "")
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return fmt.Errorf("url must start with http:// or https://")
	}
	return nil
}

func (n *Fetch) Execute(ctx context.Context, in model.Payloads) (model.Payloads, error) {
	url := n.ParamString("url", "")
	timeout := time.Duration(n.ParamFloat("timeout", 15) * float64(time.Second))
	policy := n.policy
	policy.MaxRetries = n.ParamInt("retries", 2)
	policy.Jitter = true
	policy.OnRetry = func(attempt int, wait time.Duration, err error) {
		n.log.Warn("fetch failed, retrying", slog.String("step", string(n.ID())), slog.String("url", url), slog.Int("attempt", attempt), slog.Duration("wait", wait), slog.Any("err", err))
	}

	var body []byte
	var contentType string
	err := retry(ctx, policy, func() (bool, error) {
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
		if err != nil {
			return false, err
		}
		res, err := n.client.Do(req)
		if err != nil {
			return true, err
		}
		defer res.Body.Close()
		if res.StatusCode >= 500 {
			return true, fmt.Errorf("server error status: %d", res.StatusCode)
		}
		if res.StatusCode >= 400 {
			return false, fmt.Errorf("request failed with status %d", res.StatusCode)
		}
		body, err = io.ReadAll(res.Body)
		contentType = res.Header.Get("Content-Type")
		return true, err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}

	format := n.ParamString("format", "auto")
	if format == "auto" {
		format = "csv"
		trimmed := bytes.TrimSpace(body)
		if strings.Contains(contentType, "json") || bytes.HasPrefix(trimmed, []byte("[")) || bytes.HasPrefix(trimmed, []byte("{")) {
			format = "json"
		}
	}
	var t *model.Table
	if format == "json" {
		t, err = FromJSON(body, n.ParamString("records_key", ""))
	} else {
		t, err = fromCSV(body)
	}
	if err != nil {
		return nil, err
	}
	return model.Payloads{model.PortData: t}, nil
}

func fromCSV(body []byte) (*model.Table, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(body, []byte("\ufeff"))))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return files.FromRecords(records, 0), nil
}

// FromJSON converts an array of objects into a table. Columns appear in the
// order first seen, keys within one object in sorted order. Nested values
// are kept as JSON text.
func FromJSON(body []byte, key string) (*model.Table, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	if key != "" {
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("records key %q: body is not an object", key)
		}
		raw = obj[key]
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a JSON array of objects, got %T", raw)
	}

	t := model.NewTable()
	var rows []map[string]any
	for _, it := range items {
		obj, ok := it.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected a JSON object, got %T", it)
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if t.Index(k) < 0 {
				t.Columns = append(t.Columns, k)
			}
		}
		rows = append(rows, obj)
	}
	for _, obj := range rows {
		row := make([]any, len(t.Columns))
		for i, c := range t.Columns {
			switch v := obj[c].(type) {
			case map[string]any, []any:
				b, _ := json.Marshal(v)
				row[i] = string(b)
			default:
				row[i] = v
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}
