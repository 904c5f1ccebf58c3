// Package serve runs the HTTP API
package serve

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fjacquet/recon-ledger/cmd/root"
	"fjacquet/recon-ledger/cmd/schedule"
	"fjacquet/recon-ledger/internal/api"
	"fjacquet/recon-ledger/internal/container"
	"fjacquet/recon-ledger/internal/logging"

	"github.com/spf13/cobra"
)

// shutdownTimeout bounds the graceful shutdown.
const shutdownTimeout = 15 * time.Second

var (
	address       string
	withScheduler bool
)

// Cmd serves the HTTP API until interrupted.
var Cmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	RunE:  serveFunc,
}

func init() {
	Cmd.Flags().StringVar(&address, "address", "", "Listen address (default: server.address)")
	Cmd.Flags().BoolVar(&withScheduler, "with-scheduler", false, "Also run the reconciliation scheduler")
}

// NewHandler builds the API handler from the container.
func NewHandler(c *container.Container) http.Handler {
	return api.NewServer(api.Deps{
		Orchestrator: c.GetOrchestrator(),
		Ledger:       c.GetLedger(),
		Classifier:   c.GetClassifier(),
		Normalizer:   c.GetNormalizer(),
		References:   c.GetReferenceGenerator(),
		Metrics:      c.GetMetrics(),
		Logger:       c.GetLogger(),
	}, api.WithMetricsEndpoint(c.GetConfig().Server.Metrics)).Handler()
}

func serveFunc(cmd *cobra.Command, args []string) error {
	c, err := root.GetContainer()
	if err != nil {
		return err
	}
	addr := address
	if addr == "" {
		addr = c.GetConfig().Server.Address
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if withScheduler {
		s, err := schedule.New(c, nil, "")
		if err != nil {
			return err
		}
		s.Start()
		defer func() { <-s.Stop().Done() }()
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           NewHandler(c),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		root.Log.Info("HTTP API listening", logging.F("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	root.Log.Info("Shutting down HTTP API")
	return srv.Shutdown(shutdownCtx)
}
