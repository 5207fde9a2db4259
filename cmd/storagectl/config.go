package main

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig holds values loadable from a YAML config file. Flags passed on
// the command line override whatever the file sets.
type fileConfig struct {
	DataDir          string `yaml:"data_dir"`
	SnapshotInterval string `yaml:"snapshot_interval"`
	MaxEntrySize     int    `yaml:"max_entry_size"`
	Deflate          bool   `yaml:"deflate"`
	DedupSnapshots   bool   `yaml:"dedup_snapshots"`
	LogLevel         string `yaml:"log_level"`
	LogJSON          bool   `yaml:"log_json"`
}

func loadFileConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// parseDuration parses s as a time.Duration, returning fallback if s is empty.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
