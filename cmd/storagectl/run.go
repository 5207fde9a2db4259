package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/storagecore/pkg/engine"
	"github.com/cuemby/storagecore/pkg/events"
	"github.com/cuemby/storagecore/pkg/log"
	"github.com/cuemby/storagecore/pkg/metrics"
	"github.com/cuemby/storagecore/pkg/scheduling"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Open the engine, replay the log, and serve until signaled",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().String("data-dir", "./storagecore-data", "Data directory for the domain store and transaction log")
	runCmd.Flags().String("snapshot-interval", "15m", "How often to snapshot and truncate the log")
	runCmd.Flags().Int("max-entry-size", 1<<20, "Maximum physical log entry size before frame splitting")
	runCmd.Flags().Bool("deflate", false, "Compress entries before appending them to the log")
	runCmd.Flags().Bool("dedup-snapshots", true, "Factor repeated task configs through a digest table in snapshots")
	runCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address to serve /metrics, /health, /ready, /live on")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := loadEffectiveConfig(cmd)
	if cfg.DataDir == "" {
		cfg.DataDir = "./storagecore-data"
	}
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	store, logManager, err := openComponents(cfg.DataDir, cfg.MaxEntrySize, cfg.Deflate, cfg.DedupSnapshots)
	if err != nil {
		return fmt.Errorf("failed to open storage components: %w", err)
	}
	defer store.Close()

	notifier := events.NewNotifier()
	defer notifier.Close()

	ticker := scheduling.NewTicker()

	eng := engine.New(engine.Config{
		Stores:           store,
		SnapshotProvider: store,
		LogManager:       logManager,
		Scheduler:        ticker,
		Events:           notifier,
		SnapshotInterval: parseDuration(cfg.SnapshotInterval, 15*time.Minute),
	})

	metrics.RegisterComponent("domainstore", true, "opened")
	metrics.RegisterComponent("transactionlog", false, "replaying")

	if err := eng.Start(context.Background(), nil); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}
	metrics.RegisterComponent("transactionlog", true, "replayed")

	streamMgr, err := logManager.Open()
	if err != nil {
		return fmt.Errorf("failed to open stream manager for metrics: %w", err)
	}
	collector := metrics.NewCollector(streamMgr)
	collector.Start()
	defer collector.Stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())

	ctlLog := log.WithComponent("storagectl")
	go func() {
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			ctlLog.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	ctlLog.Info().Str("addr", metricsAddr).Msg("metrics endpoint listening")

	ctlLog.Info().Str("data_dir", cfg.DataDir).Msg("engine running, press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	ctlLog.Info().Msg("shutting down")
	return eng.Stop()
}
