package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chwongs96-beep/excel-workflow-tool/infra"
)

// Serve runs the runner worker and the HTTP API on addr until ctx is done,
// then shuts the server down gracefully.
func Serve(ctx context.Context, app *infra.App, addr string) error {
	srv := &http.Server{
		Addr: addr,
		Handler: NewRouter(Deps{
			Registry: app.Registry,
			Store:    app.Store,
			Runner:   app.Runner,
			History:  app.History,
			Gatherer: app.Gatherer,
			Log:      app.Log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.Runner.Serve(gctx) })
	g.Go(func() error {
		app.Log.Info("api listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
