/*
Package metrics provides Prometheus metrics collection and exposition for the
storage engine.

It registers a small set of metrics around the transaction log's write and
replay paths, plus a generic health/readiness checker reused from the
ambient stack. Metrics are exposed via HTTP for scraping by Prometheus
servers.

# Metrics Catalog

storagecore_transaction_append_duration_seconds:
  - Type: Histogram
  - Description: Time taken to append a coalesced transaction to the log

storagecore_transaction_ops_per_append:
  - Type: Histogram
  - Description: Number of ops coalesced into a single appended transaction
  - Buckets: 1, 2, 4, 8, 16, 32, 64, 128

storagecore_snapshot_duration_seconds:
  - Type: Histogram
  - Description: Time taken for createSnapshot + writeSnapshot + truncateBefore

storagecore_snapshot_failures_total:
  - Type: Counter
  - Description: Snapshot attempts that failed, periodic or via Engine.Snapshot

storagecore_replay_duration_seconds:
  - Type: Histogram
  - Description: Time taken to replay the transaction log on startup

storagecore_replay_records_total:
  - Type: Gauge
  - Description: Number of records applied during the most recent replay

storagecore_log_entries_total:
  - Type: Gauge
  - Description: Current number of physical entries in the transaction log,
    sampled periodically by Collector

# Usage

	import "github.com/cuemby/storagecore/pkg/metrics"

	timer := metrics.NewTimer()
	pos, err := streamMgr.WriteTransaction(ops)
	timer.ObserveDuration(metrics.TransactionAppendDuration)
	metrics.TransactionOpsPerAppend.Observe(float64(len(ops)))

	http.Handle("/metrics", metrics.Handler())

# Health and Readiness

RegisterComponent/UpdateComponent track the health of named components.
GetReadiness treats "domainstore" and "transactionlog" as critical: if
either is unregistered or unhealthy, /ready reports not_ready. /health
reports on every registered component; /live is a bare liveness probe.

# Collector

Collector periodically samples the transaction log's current entry count
via StreamManager.EntryCount and publishes it as storagecore_log_entries_total,
every 15 seconds on a ticker goroutine that runs until Stop.
*/
package metrics
