// Package scheduling provides the periodic executor the storage engine
// schedules its snapshot job on.
package scheduling

import "time"

// Ticker implements engine.SchedulingService with a time.Ticker: one ticker
// goroutine per call to DoEvery, stoppable via Stop.
type Ticker struct {
	stopCh chan struct{}
}

func NewTicker() *Ticker {
	return &Ticker{stopCh: make(chan struct{})}
}

// DoEvery runs runnable immediately and then every interval, until Stop is
// called. Only one schedule may be active per Ticker.
func (t *Ticker) DoEvery(interval time.Duration, runnable func()) {
	ticker := time.NewTicker(interval)
	go func() {
		runnable()
		for {
			select {
			case <-ticker.C:
				runnable()
			case <-t.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts the running schedule, if any.
func (t *Ticker) Stop() {
	close(t.stopCh)
}
