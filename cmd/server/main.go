package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/serpent"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"cdr.dev/slog/v3"
	"cdr.dev/slog/v3/sloggers/sloghuman"
	"cdr.dev/slog/v3/sloggers/slogjson"

	"github.com/bencsbalazs/gemini-proxy/internal/adapters"
	"github.com/bencsbalazs/gemini-proxy/internal/config"
	"github.com/bencsbalazs/gemini-proxy/internal/core"
	"github.com/bencsbalazs/gemini-proxy/internal/handlers"
	"github.com/bencsbalazs/gemini-proxy/internal/metrics"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
)

func main() {
	err := serverCmd().Invoke().WithOS().Run()
	if err != nil {
		printUnlogged(os.Stderr, err)
		os.Exit(1)
	}
}

// loggedError is an error the command handler has already written to the log.
type loggedError struct{ err error }

func (e loggedError) Error() string { return e.err.Error() }
func (e loggedError) Unwrap() error { return e.err }

// printUnlogged writes err to w unless the handler logged it. Flag parsing
// and validation errors never reach the handler and are printed here.
func printUnlogged(w io.Writer, err error) {
	var logged loggedError
	if xerrors.As(err, &logged) {
		return
	}
	_, _ = fmt.Fprintf(w, "error: %v\n", err)
}

func serverCmd() *serpent.Command {
	var opts config.Options
	return &serpent.Command{
		Use:     "gemini-proxy",
		Short:   "Origin-restricted gateway that forwards prompts to a generative model",
		Options: opts.OptionSet(),
		Handler: func(inv *serpent.Invocation) error {
			logger := newLogger(inv.Stderr, opts.LogJSON, opts.Verbose)

			ctx, stop := signal.NotifyContext(inv.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := opts.Build(ctx, logger)
			if err != nil {
				logger.Critical(ctx, "invalid configuration", slog.Error(err))
				return loggedError{err}
			}
			if err := run(ctx, cfg, logger); err != nil {
				logger.Critical(ctx, "gateway stopped", slog.Error(err))
				return loggedError{err}
			}
			return nil
		},
	}
}

func newLogger(w io.Writer, json, verbose bool) slog.Logger {
	var logger slog.Logger
	if json {
		logger = slog.Make(slogjson.Sink(w))
	} else {
		logger = slog.Make(sloghuman.Sink(w))
	}
	if verbose {
		logger = logger.Leveled(slog.LevelDebug)
	}
	return logger
}

func run(ctx context.Context, cfg config.Config, logger slog.Logger) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	generator, err := adapters.New(ctx, adapters.ProviderConfig{
		Name:    cfg.Provider,
		APIKey:  cfg.APIKey,
		BaseURL: cfg.ProviderBaseURL,
	})
	if err != nil {
		return xerrors.Errorf("create %s provider: %w", cfg.Provider, err)
	}

	svc := core.NewGatewayService(generator, core.ServiceConfig{
		Provider:           cfg.Provider,
		Model:              cfg.Model,
		SystemInstructions: cfg.SystemInstructions,
		UpstreamTimeout:    cfg.UpstreamTimeout,
	}, logger.Named("service"), m)

	gateway := handlers.NewGatewayHandler(svc, handlers.HandlerOptions{
		Origins:       cfg.Origins,
		RequireOrigin: cfg.RequireOrigin,
		MaxBodyBytes:  cfg.MaxBodyBytes,
	}, logger.Named("gateway"), m)

	router := handlers.NewRouter(gateway, handlers.RouterOptions{
		Path:              cfg.Path,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
		Overload: handlers.OverloadConfig{
			MaxConcurrency: cfg.MaxConcurrency,
			RateLimit:      cfg.RateLimit,
			RateWindow:     cfg.RateWindow,
		},
	}, logger.Named("http"), m)

	servers := []*http.Server{{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}}
	if cfg.PrometheusAddress != "" {
		servers = append(servers, &http.Server{
			Addr:              cfg.PrometheusAddress,
			Handler:           metrics.Handler(registry),
			ReadHeaderTimeout: readHeaderTimeout,
		})
	}

	logger.Info(ctx, "gateway listening",
		slog.F("addr", cfg.Addr),
		slog.F("path", cfg.Path),
		slog.F("provider", cfg.Provider),
		slog.F("model", cfg.Model),
		slog.F("allowed_origins", cfg.Origins.List()),
		slog.F("require_origin", cfg.RequireOrigin),
		slog.F("has_system_instructions", cfg.SystemInstructions != ""),
		slog.F("prometheus_address", cfg.PrometheusAddress),
	)

	eg, egCtx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		eg.Go(func() error {
			err := srv.ListenAndServe()
			if xerrors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return xerrors.Errorf("serve %s: %w", srv.Addr, err)
		})
	}
	eg.Go(func() error {
		<-egCtx.Done()
		logger.Info(ctx, "shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, xerrors.Errorf("shutdown %s: %w", srv.Addr, err))
			}
		}
		return errors.Join(errs...)
	})

	if err := eg.Wait(); err != nil {
		return err
	}
	logger.Info(ctx, "server stopped")
	return nil
}
