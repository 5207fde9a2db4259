package engine

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/storagecore/pkg/domain"
	"github.com/cuemby/storagecore/pkg/log"
	"github.com/cuemby/storagecore/pkg/metrics"
	"github.com/cuemby/storagecore/pkg/txlog"
)

// Work is caller-supplied mutation logic run inside a write scope. It may
// call Write again with the same ctx to nest; nested calls join the
// outermost scope rather than appending a separate transaction.
type Work func(ctx context.Context, stores *MutableStoreProvider) error

// ReadWork is caller-supplied read-only logic; it bypasses the coalescer
// entirely and is not serialized against writes beyond what the underlying
// stores themselves guarantee.
type ReadWork func(stores domain.Stores) error

// SchedulingService is the external periodic executor the engine asks to
// run the snapshot job. pkg/scheduling.Ticker is the default implementation.
type SchedulingService interface {
	DoEvery(interval time.Duration, runnable func())
	Stop()
}

// EventType names an event published through EventSink.
type EventType string

// HostAttributesChanged is published whenever a write actually changes a
// host's attributes (SaveHostAttributes returns true).
const HostAttributesChanged EventType = "HostAttributesChanged"

// Event is posted to an EventSink.
type Event struct {
	Type EventType
	Host string
}

// EventSink is the external collaborator notified of engine-observed
// domain events. pkg/events.Notifier implements it.
type EventSink interface {
	Post(event Event)
}

// Engine orchestrates prepare -> start -> recover -> schedule-snapshots,
// routes mutations through the domain stores and the transaction log, and
// replays the log on startup.
type Engine struct {
	stores           domain.Stores
	snapshotProvider domain.SnapshotProvider
	logManager       *txlog.LogManager
	scheduler        SchedulingService
	events           EventSink
	snapshotInterval time.Duration

	mu         sync.Mutex
	streamMgr  *txlog.StreamManager
	dispatcher *Dispatcher
	started    bool
}

// Config collects Engine construction parameters.
type Config struct {
	Stores           domain.Stores
	SnapshotProvider domain.SnapshotProvider
	LogManager       *txlog.LogManager
	Scheduler        SchedulingService
	Events           EventSink
	SnapshotInterval time.Duration
}

func New(cfg Config) *Engine {
	return &Engine{
		stores:           cfg.Stores,
		snapshotProvider: cfg.SnapshotProvider,
		logManager:       cfg.LogManager,
		scheduler:        cfg.Scheduler,
		events:           cfg.Events,
		snapshotInterval: cfg.SnapshotInterval,
	}
}

// Prepare is idempotent; the domain stores open themselves lazily on
// construction, so there is nothing further to prepare here beyond giving
// future storage backends a lifecycle hook to occupy.
func (e *Engine) Prepare() error {
	return nil
}

// Start opens the log, builds the Stream Manager, replays every record
// under the engine mutex, runs initWork in the same write scope, then
// schedules periodic snapshots.
func (e *Engine) Start(ctx context.Context, initWork Work) error {
	streamMgr, err := e.logManager.Open()
	if err != nil {
		return &AppendError{Op: "open log", Cause: err}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.streamMgr = streamMgr
	e.dispatcher = NewDispatcher(e.stores, e.snapshotProvider)

	recovered := 0
	replayTimer := metrics.NewTimer()
	if err := streamMgr.ReadFromBeginning(func(rec txlog.Record) error {
		recovered++
		return e.dispatcher.ReplayRecord(rec)
	}); err != nil {
		return err
	}
	replayTimer.ObserveDuration(metrics.ReplayDuration)
	metrics.ReplayRecordsTotal.Set(float64(recovered))
	engineLog := log.WithComponent("engine")
	engineLog.Info().Int("records", recovered).Msg("replayed transaction log")

	scope := &txnScope{}
	scopedCtx := withScope(ctx, scope)
	if initWork != nil {
		if err := initWork(scopedCtx, NewMutableStoreProvider(e.stores, scope)); err != nil {
			return err
		}
	}
	if err := e.appendScope(scope); err != nil {
		return err
	}

	e.started = true
	if e.scheduler != nil && e.snapshotInterval > 0 {
		e.scheduler.DoEvery(e.snapshotInterval, e.runSnapshotJob)
	}
	return nil
}

// Write establishes (or, if ctx already carries one, joins) a transaction
// scope, runs work against a MutableStoreProvider, and on outermost return
// appends the accumulated ops as a single Transaction record.
func (e *Engine) Write(ctx context.Context, work Work) error {
	if scope, ok := scopeFrom(ctx); ok {
		return work(ctx, NewMutableStoreProvider(e.stores, scope))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	scope := &txnScope{}
	scopedCtx := withScope(ctx, scope)
	provider := NewMutableStoreProvider(e.stores, scope)

	if err := work(scopedCtx, provider); err != nil {
		return err
	}
	return e.appendScope(scope)
}

// appendScope writes the scope's buffered ops as a single Transaction, or
// skips the append entirely if nothing was buffered. Caller must hold mu.
func (e *Engine) appendScope(scope *txnScope) error {
	if len(scope.ops) == 0 {
		return nil
	}
	timer := metrics.NewTimer()
	_, err := e.streamMgr.WriteTransaction(scope.ops)
	if err != nil {
		return &AppendError{Op: "writeTransaction", Cause: err}
	}
	timer.ObserveDuration(metrics.TransactionAppendDuration)
	metrics.TransactionOpsPerAppend.Observe(float64(len(scope.ops)))
	for _, op := range scope.ops {
		if hostOp, ok := op.(txlog.SaveHostAttributesOp); ok && e.events != nil {
			e.events.Post(Event{Type: HostAttributesChanged, Host: hostOp.Attrs.Host})
		}
	}
	return nil
}

// Read runs work against the current stores without establishing a
// transaction scope, delegating straight through.
func (e *Engine) Read(work ReadWork) error {
	return work(e.stores)
}

// Snapshot synchronously asks the snapshot provider for a fresh snapshot,
// writes it, and truncates the log prefix before it.
func (e *Engine) Snapshot() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() error {
	timer := metrics.NewTimer()
	err := e.snapshotOnce()
	if err != nil {
		metrics.SnapshotFailuresTotal.Inc()
		return err
	}
	timer.ObserveDuration(metrics.SnapshotDuration)
	return nil
}

func (e *Engine) snapshotOnce() error {
	snap, err := e.snapshotProvider.CreateSnapshot()
	if err != nil {
		return &AppendError{Op: "createSnapshot", Cause: err}
	}
	pos, err := e.streamMgr.WriteSnapshot(*snap)
	if err != nil {
		return &AppendError{Op: "writeSnapshot", Cause: err}
	}
	if err := e.streamMgr.TruncateBefore(pos); err != nil {
		return &AppendError{Op: "truncateBefore", Cause: err}
	}
	return nil
}

// runSnapshotJob is invoked by the scheduler. Failures are logged and
// skipped; the next tick retries the whole cycle.
func (e *Engine) runSnapshotJob() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.snapshotLocked(); err != nil {
		engineLog := log.WithComponent("engine")
		engineLog.Error().Err(err).Msg("periodic snapshot failed, will retry next tick")
	}
}

// Stop halts scheduled snapshots. The log is append-only, so there is no
// buffered state to flush.
func (e *Engine) Stop() error {
	if e.scheduler != nil {
		e.scheduler.Stop()
	}
	return nil
}
