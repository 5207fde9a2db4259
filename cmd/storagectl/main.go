package main

import (
	"fmt"
	"os"

	"github.com/cuemby/storagecore/pkg/log"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "storagectl",
	Short: "Transaction log and domain store operator for the storage engine",
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("config", "", "YAML config file; flags override its values")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(inspectCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	if path, _ := rootCmd.PersistentFlags().GetString("config"); path != "" {
		if cfg, err := loadFileConfig(path); err == nil {
			if cfg.LogLevel != "" && !rootCmd.PersistentFlags().Changed("log-level") {
				logLevel = cfg.LogLevel
			}
			if cfg.LogJSON && !rootCmd.PersistentFlags().Changed("log-json") {
				logJSON = true
			}
		}
	}

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

// loadEffectiveConfig starts from the command's flag defaults (already
// applied by cobra), overlays any --config file, then re-applies every
// flag the caller explicitly passed — so an explicit flag always wins,
// a file value beats an unset flag's default, and the default is the
// last resort.
func loadEffectiveConfig(cmd *cobra.Command) *fileConfig {
	cfg := &fileConfig{}
	cfg.DataDir, _ = cmd.Flags().GetString("data-dir")
	cfg.MaxEntrySize, _ = cmd.Flags().GetInt("max-entry-size")
	cfg.Deflate, _ = cmd.Flags().GetBool("deflate")
	cfg.DedupSnapshots, _ = cmd.Flags().GetBool("dedup-snapshots")
	cfg.SnapshotInterval, _ = cmd.Flags().GetString("snapshot-interval")

	if path, _ := rootCmd.PersistentFlags().GetString("config"); path != "" {
		if file, err := loadFileConfig(path); err == nil {
			overlayFileConfig(cfg, file)
		}
	}

	if cmd.Flags().Changed("data-dir") {
		cfg.DataDir, _ = cmd.Flags().GetString("data-dir")
	}
	if cmd.Flags().Changed("max-entry-size") {
		cfg.MaxEntrySize, _ = cmd.Flags().GetInt("max-entry-size")
	}
	if cmd.Flags().Changed("deflate") {
		cfg.Deflate, _ = cmd.Flags().GetBool("deflate")
	}
	if cmd.Flags().Changed("dedup-snapshots") {
		cfg.DedupSnapshots, _ = cmd.Flags().GetBool("dedup-snapshots")
	}
	if cmd.Flags().Changed("snapshot-interval") {
		cfg.SnapshotInterval, _ = cmd.Flags().GetString("snapshot-interval")
	}

	return cfg
}

// overlayFileConfig copies every non-zero field of file onto cfg.
func overlayFileConfig(cfg, file *fileConfig) {
	if file.DataDir != "" {
		cfg.DataDir = file.DataDir
	}
	if file.MaxEntrySize != 0 {
		cfg.MaxEntrySize = file.MaxEntrySize
	}
	if file.SnapshotInterval != "" {
		cfg.SnapshotInterval = file.SnapshotInterval
	}
	if file.Deflate {
		cfg.Deflate = true
	}
	if file.DedupSnapshots {
		cfg.DedupSnapshots = true
	}
}
