// Package tokenctl is the operator tool around the token store: it wires
// a backend, hasher and metrics from configuration and runs store commands
// once or in an interactive loop.
package tokenctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/config"
	"github.com/dmitrijs2005/tokenkeeper/internal/cryptox"
	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/dmitrijs2005/tokenkeeper/internal/metrics"
	"github.com/dmitrijs2005/tokenkeeper/internal/store"
)

// generatedTokenBytes is the entropy of tokens generated by the store command.
const generatedTokenBytes = 16

// App runs commands against one token store.
type App struct {
	config  *config.Config
	store   store.TokenStore
	metrics *metrics.Metrics
	log     logging.Logger
	out     io.Writer
	in      io.Reader

	closeBackend  func() error
	metricsServer *http.Server
	metricsAddr   net.Addr
}

// NewApp opens the configured backend and builds the instrumented store.
func NewApp(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	hasher, err := cryptox.New(cfg.Hasher, cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	b, closeFn, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening %s backend: %w", cfg.Backend, err)
	}

	s, err := store.New(b, store.WithNamespace(cfg.Namespace), store.WithHasher(hasher))
	if err != nil {
		_ = closeFn()
		return nil, err
	}

	m := metrics.New()
	return &App{
		config:       cfg,
		store:        metrics.Instrument(s, m),
		metrics:      m,
		log:          log.With("backend", cfg.Backend, "namespace", cfg.Namespace),
		out:          os.Stdout,
		in:           os.Stdin,
		closeBackend: closeFn,
	}, nil
}

// Run executes args as one command, or starts the interactive loop when
// args is empty.
func (a *App) Run(ctx context.Context, args []string) error {
	if err := a.startMetrics(ctx); err != nil {
		return err
	}

	if len(args) == 0 {
		a.runREPL(ctx)
		return nil
	}
	return a.Exec(ctx, args)
}

// Close stops the metrics server and releases the backend.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		errs = append(errs, a.metricsServer.Shutdown(ctx))
	}
	if a.closeBackend != nil {
		errs = append(errs, a.closeBackend())
	}
	return errors.Join(errs...)
}

func (a *App) startMetrics(ctx context.Context) error {
	if a.config.MetricsAddr == "" {
		return nil
	}

	ln, err := net.Listen("tcp", a.config.MetricsAddr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	a.metricsServer = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := a.metricsServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error(ctx, "metrics server stopped", "err", err)
		}
	}()
	a.metricsAddr = ln.Addr()
	a.log.Info(ctx, "serving metrics", "addr", ln.Addr().String())
	return nil
}
