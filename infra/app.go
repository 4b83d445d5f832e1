package infra

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/chwongs96-beep/excel-workflow-tool/config"
	"github.com/chwongs96-beep/excel-workflow-tool/engine"
	"github.com/chwongs96-beep/excel-workflow-tool/nodes"
	"github.com/chwongs96-beep/excel-workflow-tool/nodes/openai"
	"github.com/chwongs96-beep/excel-workflow-tool/plugin"
)

// App bundles the long-lived pieces shared by the CLI and the API server.
type App struct {
	Config   config.Config
	Registry *plugin.Registry
	Engine   *engine.Engine
	Store    Store
	History  *History // nil when disabled
	Runner   *Runner
	Gatherer prometheus.Gatherer
	Log      *slog.Logger
}

// Open builds an App from cfg. The runner is created but not started; call
// Runner.Serve in its own goroutine.
func Open(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	deps := plugin.Deps{
		HTTP:   &http.Client{Timeout: 60 * time.Second},
		Logger: log,
	}
	if cfg.LLMEnabled() {
		client, err := openai.NewClient(openai.Config{
			APIKey:     cfg.LLMAPIKey,
			BaseURL:    cfg.LLMBaseURL,
			Model:      cfg.LLMModel,
			MaxRetries: 2,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("llm: %w", err)
		}
		deps.LLM = client
		log.Info("llm enabled", slog.String("model", client.Model()))
	}
	reg, err := nodes.NewRegistry(deps)
	if err != nil {
		return nil, fmt.Errorf("register steps: %w", err)
	}

	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var history *History
	if cfg.HistoryDriver != "" {
		dsn := cfg.HistoryDSN
		if dsn == "" && cfg.HistoryDriver == "sqlite" {
			dsn = HistoryPath(cfg.DataDir)
		}
		history, err = OpenHistory(ctx, cfg.HistoryDriver, dsn)
		if err != nil {
			return nil, fmt.Errorf("history: %w", err)
		}
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := NewMetrics(promReg)

	eng := engine.New(log)
	opts := []RunnerOption{WithMetrics(metrics)}
	if history != nil {
		opts = append(opts, WithHistory(history))
	}
	return &App{
		Config:   cfg,
		Registry: reg,
		Engine:   eng,
		Store:    store,
		History:  history,
		Runner:   NewRunner(eng, log, opts...),
		Gatherer: promReg,
		Log:      log,
	}, nil
}

// OpenStore returns the workflow store selected by cfg.Store.
func OpenStore(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.Store {
	case "", "local":
		return NewLocalStore(WorkflowsDir(cfg.DataDir)), nil
	case "memory":
		return NewMemStore(), nil
	case "minio":
		s, err := NewMinioStore(MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Store)
}

func (a *App) Close() error {
	if a.History != nil {
		return a.History.Close()
	}
	return nil
}
