package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	catalogapi "grimoire/internal/adapters/catalog"
	"grimoire/internal/adapters/exports"
	"grimoire/internal/core"
)

var (
	listenAddr      string
	shutdownTimeout time.Duration
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalog REST API, exports and metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ln, err := net.Listen("tcp", listenAddr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", listenAddr, err)
			}
			return runServe(cmd.Context(), ln)
		},
	}
	cmd.Flags().StringVar(&listenAddr, "addr", ":8080", "HTTP listen address")
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 10*time.Second, "Grace period for in-flight requests and exports")
	return cmd
}

// runServe wires the registry and serves on ln until ctx is cancelled.
func runServe(ctx context.Context, ln net.Listener) error {
	a, err := newApp(ctx)
	if err != nil {
		_ = ln.Close()
		return err
	}
	defer a.Close()
	if err := a.bootstrap(ctx); err != nil {
		_ = ln.Close()
		return err
	}

	worker := exports.NewWorker(a.catalog(), a.blobs(), exports.WithLogger(a.log()))
	if err := a.registry.Register(core.ServiceExports, worker); err != nil {
		_ = ln.Close()
		return err
	}
	worker.Start()

	api := catalogapi.NewHandler(a.catalog())
	api.Exports = core.MustResolve[*exports.Worker](a.registry, core.ServiceExports)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/", api)
	mux.Handle("/metrics", promhttp.HandlerFor(a.metrics, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	a.log().Info("serving", "addr", ln.Addr().String())

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log().Warn("http shutdown", "error", err)
	}
	if err := worker.Stop(shutdownCtx); err != nil {
		a.log().Warn("export worker shutdown", "error", err)
	}
	if serveErr == nil {
		serveErr = <-errCh
	}
	if errors.Is(serveErr, http.ErrServerClosed) {
		return nil
	}
	return serveErr
}
