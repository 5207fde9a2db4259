package metrics

import (
	"time"

	"github.com/cuemby/storagecore/pkg/txlog"
)

// Collector periodically samples operational gauges that aren't naturally
// observed at the point of an engine call — currently just the log's
// current entry count.
type Collector struct {
	streamMgr *txlog.StreamManager
	stopCh    chan struct{}
}

// NewCollector creates a new metrics collector over the engine's stream
// manager.
func NewCollector(streamMgr *txlog.StreamManager) *Collector {
	return &Collector{
		streamMgr: streamMgr,
		stopCh:    make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	count, err := c.streamMgr.EntryCount()
	if err != nil {
		return
	}
	LogEntriesTotal.Set(float64(count))
}
