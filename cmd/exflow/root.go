package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chwongs96-beep/excel-workflow-tool/config"
	"github.com/chwongs96-beep/excel-workflow-tool/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	envFile  string
	logLevel string
}

// cfg is filled by the root pre-run hook.
var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "exflow",
	Short: "Run table-processing workflows over CSV and Excel files",
	Long: "exflow loads workflow documents (JSON or YAML), runs them step by step\n" +
		"over CSV and Excel tables, and serves them over an HTTP API.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.envFile, "env", "", "Path to a .env file (default: next to the binary, then the working directory)")
	pf.StringVar(&rootFlags.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides EXFLOW_LOG_LEVEL)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(typesCmd)
	rootCmd.AddCommand(ancestorsCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(storeCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.Version = version
}

func setup(cmd *cobra.Command, _ []string) error {
	var paths []string
	if rootFlags.envFile != "" {
		paths = append(paths, rootFlags.envFile)
	}
	var err error
	cfg, err = config.Load(paths...)
	if err != nil {
		return err
	}
	if rootFlags.logLevel != "" {
		cfg.LogLevel = rootFlags.logLevel
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logging.Init(level, cfg.LogFormat, cmd.ErrOrStderr())
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
