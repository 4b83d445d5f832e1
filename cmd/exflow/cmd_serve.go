package main

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/chwongs96-beep/excel-workflow-tool/cmd/api/server"
)

var serveFlags struct {
	port int
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the run worker",
	Long:  "Serve exposes stored workflows, runs, run history and Prometheus metrics over HTTP\nuntil interrupted.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		port := cfg.APIPort
		if serveFlags.port > 0 {
			port = serveFlags.port
		}
		gin.SetMode(gin.ReleaseMode)
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()
		return server.Serve(cmd.Context(), app, fmt.Sprintf(":%d", port))
	},
}

func init() {
	serveCmd.Flags().IntVar(&serveFlags.port, "port", 0, "Listen port (overrides EXFLOW_API_PORT)")
}
