package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/layer-3/fluxauth/adapters/events"
	"github.com/layer-3/fluxauth/adapters/metrics"
	"github.com/layer-3/fluxauth/adapters/store"
	"github.com/layer-3/fluxauth/adapters/verifier"
	"github.com/layer-3/fluxauth/config"
	"github.com/layer-3/fluxauth/ports"
	"github.com/layer-3/fluxauth/service"
	transport "github.com/layer-3/fluxauth/transport/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the login service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg.Log)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return runServer(ctx, cfg, logger)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	var publisher ports.EventPublisher = ports.NopPublisher{}
	if cfg.Events.Enabled {
		rs, ok := st.(*store.RedisStore)
		if !ok {
			return errors.New("events require the redis store backend")
		}
		pub, err := events.NewRedisStreamPublisher(rs.Client(), logger.With("component", "events"))
		if err != nil {
			return err
		}
		wp := events.NewWatermillPublisher(pub, cfg.Events.TopicPrefix)
		defer wp.Close()
		publisher = wp
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector, err := metrics.NewCollector(registry)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	opts := []service.Option{
		service.WithLogger(logger),
		service.WithMetrics(collector),
		service.WithEvents(publisher),
	}

	v := verifier.NewMessageVerifier()
	privileges := service.NewPrivilegeResolver(cfg.Identities.TeamAddress, cfg.Identities.AdminAddress)

	var limiter *transport.RateLimiter
	if cfg.RateLimit.PerSecond > 0 {
		limiter = transport.NewRateLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst)
	}

	router := transport.SetupRouter(transport.Deps{
		Issuer:     service.NewIssuer(st, newGates(cfg.Health), opts...),
		Login:      service.NewLoginService(st, st, v, privileges, opts...),
		Signatures: service.NewSignatureService(st, opts...),
		Sessions:   service.NewSessionManager(st, st, v, privileges, opts...),
		Waiter:     service.NewWaiter(st, st, st, privileges, cfg.Waiter.PollInterval, opts...),
		Logger:     logger,
		Gatherer:   registry,
		Limiter:    limiter,
	})

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server", "addr", cfg.HTTP.Addr, "store", cfg.Store.Backend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	if sw, ok := st.(store.Sweeper); ok {
		g.Go(func() error {
			return store.RunSweeper(ctx, sw, cfg.Store.SweepInterval, logger.With("component", "sweeper"))
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}
