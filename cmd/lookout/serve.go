package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/lookout/pkg/api"
	"github.com/cuemby/lookout/pkg/config"
	"github.com/cuemby/lookout/pkg/distributor"
	"github.com/cuemby/lookout/pkg/events"
	"github.com/cuemby/lookout/pkg/log"
	"github.com/cuemby/lookout/pkg/manager"
	"github.com/cuemby/lookout/pkg/metrics"
	"github.com/cuemby/lookout/pkg/nightly"
	"github.com/cuemby/lookout/pkg/storage"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the lookout server",
	Long: `Run the lookout server: start every enabled event source, serve the
control API and the push endpoints, and run the nightly jobs.

Configuration is read from --config (optional), then LOOKOUT_* environment
variables.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("config", "c", "", "Config file")
	serveCmd.Flags().String("env-file", "", "Dotenv file loaded before the config")
}

func runServe(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")

	var envFiles []string
	if envFile != "" {
		envFiles = append(envFiles, envFile)
	}
	cfg, err := config.Load(path, envFiles...)
	if err != nil {
		return err
	}

	log.Init(cfg.LogConfig())
	metrics.SetVersion(Version)
	logger := log.WithComponent("server")

	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	dist := distributor.New(distributor.Config{
		ApplicationID:   cfg.ApplicationID,
		DefaultLifetime: cfg.DiscardEventsAfter,
		RateLimit:       cfg.RateLimit,
	})
	dist.Start()
	defer dist.Stop()

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	go auditLog(broker.Subscribe())

	mgr, err := manager.NewManager(manager.Config{
		Store:     store,
		Publisher: dist,
		Broker:    broker,
	})
	if err != nil {
		return fmt.Errorf("failed to create manager: %w", err)
	}
	defer mgr.Shutdown()

	if cfg.Resources != "" {
		res, err := config.LoadResources(cfg.Resources)
		if err != nil {
			return err
		}
		if err := applyLocal(mgr, res); err != nil {
			return err
		}
	}

	mgr.StartAll()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobs := nightly.NewService(nightly.Config{
		Restart:   cfg.Nightly.Restart,
		Reload:    cfg.Nightly.Reload,
		MaxJitter: cfg.Nightly.MaxJitter,
	}, mgr, mgr, mgr)
	jobs.Start(ctx)
	defer jobs.Stop()
	metrics.RegisterComponent(metrics.ComponentNightly, true, fmt.Sprintf("jobs: %v", jobs.Jobs()))

	collector := metrics.NewCollector(mgr, dist)
	collector.Start()
	defer collector.Stop()

	server := api.NewServer(mgr, dist, api.Config{
		Addr:      cfg.ListenAddr,
		ReadOnly:  cfg.ReadOnly,
		Heartbeat: cfg.Heartbeat,
	})
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("HTTP server failed")
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("HTTP server did not shut down cleanly")
	}

	logger.Info().Msg("Shutdown complete")
	return nil
}

// applyLocal saves resources directly through the manager
func applyLocal(mgr *manager.Manager, res *config.Resources) error {
	for _, src := range res.Sources {
		if err := mgr.SaveSource(src); err != nil {
			return fmt.Errorf("failed to apply source %s: %w", src.ID, err)
		}
	}
	for _, d := range res.Dashboards {
		if err := mgr.SaveDashboard(d); err != nil {
			return fmt.Errorf("failed to apply dashboard %s: %w", d.ID, err)
		}
	}
	return nil
}

// auditLog writes every lifecycle notification to the log
func auditLog(sub events.Subscriber) {
	logger := log.WithComponent("audit")
	for e := range sub {
		ev := logger.Info().
			Str("event", string(e.Type)).
			Str("kind", e.Type.Subject()).
			Str("subject", e.SubjectID).
			Str("id", e.ID)
		if e.Message != "" {
			ev = ev.Str("message", e.Message)
		}
		for k, v := range e.Metadata {
			ev = ev.Str(k, v)
		}
		ev.Msg("Lifecycle event")
	}
}
