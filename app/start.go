package app

import (
	"context"
	"errors"
	"net/http"

	"github.com/edelkas/inne-sub000/pkg/attr"
	"golang.org/x/sync/errgroup"
)

// Start serves the CLE routes, and the metrics when a separate address is
// configured, until ctx is done.
func (app *App) Start(ctx context.Context) error {
	logger := app.Observability.Provider.Logger
	httpCfg := app.Config.HTTP

	handler := app.HTTPRouter
	servers := []*http.Server{{
		Addr:         httpCfg.Address,
		Handler:      handler,
		ReadTimeout:  httpCfg.ReadTimeout,
		WriteTimeout: httpCfg.WriteTimeout,
	}}
	if addr := app.Config.Observability.MetricsAddress; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler(app.Observability))
		servers = append(servers, &http.Server{Addr: addr, Handler: mux})
	} else {
		handler.Handle("/metrics", metricsHandler(app.Observability))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			logger.InfoContext(ctx, "HTTP server listening", attr.String("address", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), httpCfg.ShutdownTimeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			errs = append(errs, srv.Shutdown(shutdownCtx))
		}
		return errors.Join(errs...)
	})
	return g.Wait()
}
