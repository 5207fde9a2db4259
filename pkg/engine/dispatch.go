package engine

import (
	"fmt"

	"github.com/cuemby/storagecore/pkg/domain"
	"github.com/cuemby/storagecore/pkg/txlog"
)

// Dispatcher replays records read from the log against a domain.Stores. It
// is built fresh for every recovery pass; it carries no state of its own
// beyond the stores it was constructed with.
type Dispatcher struct {
	stores           domain.Stores
	snapshotProvider domain.SnapshotProvider
}

func NewDispatcher(stores domain.Stores, snapshotProvider domain.SnapshotProvider) *Dispatcher {
	return &Dispatcher{stores: stores, snapshotProvider: snapshotProvider}
}

// ReplayRecord applies one logical record read from the log. Only
// Transaction, Snapshot, and Noop ever reach here — the Stream Manager
// consumes Frame, DeflatedEntry, and DeduplicatedSnapshot internally.
func (d *Dispatcher) ReplayRecord(rec txlog.Record) error {
	switch r := rec.(type) {
	case txlog.TransactionRecord:
		for _, op := range r.Ops {
			if err := d.replayOp(op); err != nil {
				return err
			}
		}
		return nil
	case txlog.SnapshotRecord:
		snap := r.Snapshot
		if err := d.snapshotProvider.ApplySnapshot(&snap); err != nil {
			return &ReplayError{Reason: "failed to apply snapshot", Cause: err}
		}
		return nil
	case txlog.NoopRecord:
		return nil
	default:
		return &ReplayError{Reason: fmt.Sprintf("unhandled record kind %d", rec.RecordKind())}
	}
}

func (d *Dispatcher) replayOp(op txlog.Op) error {
	handler, ok := opDispatch[op.OpKind()]
	if !ok {
		return &ReplayError{Reason: fmt.Sprintf("unhandled op kind %d", op.OpKind())}
	}
	return handler(d, op)
}

// opDispatch is the op-kind -> handler table. Every variant txlog defines
// must have an entry here; init() checks that at package load so a new op
// variant without a handler fails at startup instead of during recovery.
var opDispatch = map[txlog.OpKind]func(d *Dispatcher, op txlog.Op) error{
	txlog.OpSaveFrameworkID: func(d *Dispatcher, op txlog.Op) error {
		o := op.(txlog.SaveFrameworkIDOp)
		if err := d.stores.Scheduler().SaveFrameworkID(o.ID); err != nil {
			return &ReplayError{Reason: "SaveFrameworkId", Cause: err}
		}
		return nil
	},
	txlog.OpSaveCronJob: func(d *Dispatcher, op txlog.Op) error {
		o := op.(txlog.SaveCronJobOp)
		if err := d.stores.Jobs().SaveAcceptedJob(o.Config); err != nil {
			return &ReplayError{Reason: "SaveCronJob", Cause: err}
		}
		return nil
	},
	txlog.OpRemoveJob: func(d *Dispatcher, op txlog.Op) error {
		o := op.(txlog.RemoveJobOp)
		if err := d.stores.Jobs().RemoveJob(o.Key); err != nil {
			return &ReplayError{Reason: "RemoveJob", Cause: err}
		}
		return nil
	},
	txlog.OpSaveTasks: func(d *Dispatcher, op txlog.Op) error {
		o := op.(txlog.SaveTasksOp)
		if err := d.stores.Tasks().SaveTasks(o.Tasks); err != nil {
			return &ReplayError{Reason: "SaveTasks", Cause: err}
		}
		return nil
	},
	txlog.OpRewriteTask: func(d *Dispatcher, op txlog.Op) error {
		o := op.(txlog.RewriteTaskOp)
		if _, err := d.stores.Tasks().UnsafeModifyInPlace(o.TaskID, o.NewConfig); err != nil {
			return &ReplayError{Reason: "RewriteTask", Cause: err}
		}
		return nil
	},
	txlog.OpRemoveTasks: func(d *Dispatcher, op txlog.Op) error {
		o := op.(txlog.RemoveTasksOp)
		if err := d.stores.Tasks().DeleteTasks(o.IDs); err != nil {
			return &ReplayError{Reason: "RemoveTasks", Cause: err}
		}
		return nil
	},
	txlog.OpSaveQuota: func(d *Dispatcher, op txlog.Op) error {
		o := op.(txlog.SaveQuotaOp)
		if err := d.stores.Quotas().SaveQuota(o.Role, o.Aggregate); err != nil {
			return &ReplayError{Reason: "SaveQuota", Cause: err}
		}
		return nil
	},
	txlog.OpRemoveQuota: func(d *Dispatcher, op txlog.Op) error {
		o := op.(txlog.RemoveQuotaOp)
		if err := d.stores.Quotas().RemoveQuota(o.Role); err != nil {
			return &ReplayError{Reason: "RemoveQuota", Cause: err}
		}
		return nil
	},
	// SaveHostAttributes drops the entry when slaveId is absent, per the
	// replay contract — a host attribute record saved before a slave
	// registered an ID is not recoverable state.
	txlog.OpSaveHostAttributes: func(d *Dispatcher, op txlog.Op) error {
		o := op.(txlog.SaveHostAttributesOp)
		if o.Attrs.SlaveID == nil {
			return nil
		}
		if _, err := d.stores.HostAttributes().SaveHostAttributes(o.Attrs); err != nil {
			return &ReplayError{Reason: "SaveHostAttributes", Cause: err}
		}
		return nil
	},
	txlog.OpSaveLock: func(d *Dispatcher, op txlog.Op) error {
		o := op.(txlog.SaveLockOp)
		if err := d.stores.Locks().SaveLock(o.Lock); err != nil {
			return &ReplayError{Reason: "SaveLock", Cause: err}
		}
		return nil
	},
	txlog.OpRemoveLock: func(d *Dispatcher, op txlog.Op) error {
		o := op.(txlog.RemoveLockOp)
		if err := d.stores.Locks().RemoveLock(o.Key); err != nil {
			return &ReplayError{Reason: "RemoveLock", Cause: err}
		}
		return nil
	},
	// SaveJobUpdate backfills summary.key from jobKey+updateId when the
	// key itself wasn't set at write time.
	txlog.OpSaveJobUpdate: func(d *Dispatcher, op txlog.Op) error {
		o := op.(txlog.SaveJobUpdateOp)
		summary := &o.Update.Summary
		if summary.Key == nil && summary.JobKey != nil && summary.UpdateID != "" {
			summary.Key = &domain.JobUpdateKey{Job: *summary.JobKey, ID: summary.UpdateID}
		}
		if err := d.stores.JobUpdates().SaveJobUpdate(o.Update, o.LockToken); err != nil {
			return &ReplayError{Reason: "SaveJobUpdate", Cause: err}
		}
		return nil
	},
	// SaveJobUpdateEvent resolves a legacy update ID via fetchUpdateKey and
	// drops the event silently if it can't be resolved.
	txlog.OpSaveJobUpdateEvent: func(d *Dispatcher, op txlog.Op) error {
		o := op.(txlog.SaveJobUpdateEventOp)
		key, err := resolveUpdateKey(d.stores, o.UpdateKey, o.LegacyUpdateID)
		if err != nil {
			return &ReplayError{Reason: "SaveJobUpdateEvent", Cause: err}
		}
		if key == nil {
			return nil
		}
		if err := d.stores.JobUpdates().SaveJobUpdateEvent(o.Event, *key); err != nil {
			return &ReplayError{Reason: "SaveJobUpdateEvent", Cause: err}
		}
		return nil
	},
	txlog.OpSaveJobInstanceUpdateEvent: func(d *Dispatcher, op txlog.Op) error {
		o := op.(txlog.SaveJobInstanceUpdateEventOp)
		key, err := resolveUpdateKey(d.stores, o.UpdateKey, o.LegacyUpdateID)
		if err != nil {
			return &ReplayError{Reason: "SaveJobInstanceUpdateEvent", Cause: err}
		}
		if key == nil {
			return nil
		}
		if err := d.stores.JobUpdates().SaveJobInstanceUpdateEvent(o.Event, *key); err != nil {
			return &ReplayError{Reason: "SaveJobInstanceUpdateEvent", Cause: err}
		}
		return nil
	},
	txlog.OpPruneJobUpdateHistory: func(d *Dispatcher, op txlog.Op) error {
		o := op.(txlog.PruneJobUpdateHistoryOp)
		if _, err := d.stores.JobUpdates().PruneHistory(o.PerJobRetain, o.ThresholdMs); err != nil {
			return &ReplayError{Reason: "PruneJobUpdateHistory", Cause: err}
		}
		return nil
	},
}

// resolveUpdateKey returns key directly if present, otherwise looks up
// legacyID. A nil, nil return means the caller should drop the event.
func resolveUpdateKey(stores domain.Stores, key *domain.JobUpdateKey, legacyID string) (*domain.JobUpdateKey, error) {
	if key != nil {
		return key, nil
	}
	resolved, ok, err := stores.JobUpdates().FetchUpdateKey(legacyID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return resolved, nil
}

func init() {
	for _, kind := range txlog.AllOpKinds() {
		if _, ok := opDispatch[kind]; !ok {
			panic(fmt.Sprintf("engine: op kind %d has no replay dispatch handler", kind))
		}
	}
}
