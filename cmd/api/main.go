package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/chwongs96-beep/excel-workflow-tool/cmd/api/server"
	"github.com/chwongs96-beep/excel-workflow-tool/config"
	"github.com/chwongs96-beep/excel-workflow-tool/infra"
	"github.com/chwongs96-beep/excel-workflow-tool/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logging.Init(level, cfg.LogFormat)
	gin.SetMode(gin.ReleaseMode)

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := infra.Open(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer app.Close()

	return server.Serve(ctx, app, fmt.Sprintf(":%d", cfg.APIPort))
}
