package engine

import (
	"context"

	"github.com/cuemby/storagecore/pkg/domain"
	"github.com/cuemby/storagecore/pkg/txlog"
)

// txnScope is the per-outermost-write operation buffer. Go has no ambient
// thread-local storage, so a nested Write detects and joins an outer scope
// by finding one of these already in its context rather than by inspecting
// the calling goroutine.
type txnScope struct {
	ops []txlog.Op
}

func (s *txnScope) append(op txlog.Op) {
	s.ops = append(s.ops, op)
}

type txnScopeKey struct{}

func withScope(ctx context.Context, s *txnScope) context.Context {
	return context.WithValue(ctx, txnScopeKey{}, s)
}

func scopeFrom(ctx context.Context) (*txnScope, bool) {
	s, ok := ctx.Value(txnScopeKey{}).(*txnScope)
	return s, ok
}

// MutableStoreProvider forwards every store call made during a write to
// both the underlying domain.Stores and the active txnScope's operation
// buffer, skipping the buffer append when a mutation reports no change.
type MutableStoreProvider struct {
	stores domain.Stores
	scope  *txnScope
}

func NewMutableStoreProvider(stores domain.Stores, scope *txnScope) *MutableStoreProvider {
	return &MutableStoreProvider{stores: stores, scope: scope}
}

func (p *MutableStoreProvider) SaveFrameworkID(id string) error {
	if err := p.stores.Scheduler().SaveFrameworkID(id); err != nil {
		return &StoreError{Op: "SaveFrameworkID", Cause: err}
	}
	p.scope.append(txlog.SaveFrameworkIDOp{ID: id})
	return nil
}

func (p *MutableStoreProvider) SaveAcceptedJob(cfg *domain.JobConfiguration) error {
	if err := p.stores.Jobs().SaveAcceptedJob(cfg); err != nil {
		return &StoreError{Op: "SaveAcceptedJob", Cause: err}
	}
	p.scope.append(txlog.SaveCronJobOp{Config: cfg})
	return nil
}

func (p *MutableStoreProvider) RemoveJob(key domain.JobKey) error {
	if err := p.stores.Jobs().RemoveJob(key); err != nil {
		return &StoreError{Op: "RemoveJob", Cause: err}
	}
	p.scope.append(txlog.RemoveJobOp{Key: key})
	return nil
}

func (p *MutableStoreProvider) SaveTasks(tasks []*domain.ScheduledTask) error {
	if err := p.stores.Tasks().SaveTasks(tasks); err != nil {
		return &StoreError{Op: "SaveTasks", Cause: err}
	}
	p.scope.append(txlog.SaveTasksOp{Tasks: tasks})
	return nil
}

// UnsafeModifyInPlace contributes a RewriteTask op only when the store
// reports the config actually changed, per the coalescer's no-op filtering
// contract.
func (p *MutableStoreProvider) UnsafeModifyInPlace(taskID string, cfg *domain.TaskConfig) error {
	changed, err := p.stores.Tasks().UnsafeModifyInPlace(taskID, cfg)
	if err != nil {
		return &StoreError{Op: "UnsafeModifyInPlace", Cause: err}
	}
	if changed {
		p.scope.append(txlog.RewriteTaskOp{TaskID: taskID, NewConfig: cfg})
	}
	return nil
}

func (p *MutableStoreProvider) DeleteTasks(ids []string) error {
	if err := p.stores.Tasks().DeleteTasks(ids); err != nil {
		return &StoreError{Op: "DeleteTasks", Cause: err}
	}
	p.scope.append(txlog.RemoveTasksOp{IDs: ids})
	return nil
}

func (p *MutableStoreProvider) SaveQuota(role string, agg domain.ResourceAggregate) error {
	if err := p.stores.Quotas().SaveQuota(role, agg); err != nil {
		return &StoreError{Op: "SaveQuota", Cause: err}
	}
	p.scope.append(txlog.SaveQuotaOp{Role: role, Aggregate: agg})
	return nil
}

func (p *MutableStoreProvider) RemoveQuota(role string) error {
	if err := p.stores.Quotas().RemoveQuota(role); err != nil {
		return &StoreError{Op: "RemoveQuota", Cause: err}
	}
	p.scope.append(txlog.RemoveQuotaOp{Role: role})
	return nil
}

// SaveHostAttributes contributes an op only when the store reports a
// change, and returns that flag so the caller knows whether anything
// changed.
func (p *MutableStoreProvider) SaveHostAttributes(attrs domain.HostAttributes) (bool, error) {
	changed, err := p.stores.HostAttributes().SaveHostAttributes(attrs)
	if err != nil {
		return false, &StoreError{Op: "SaveHostAttributes", Cause: err}
	}
	if changed {
		p.scope.append(txlog.SaveHostAttributesOp{Attrs: attrs})
	}
	return changed, nil
}

func (p *MutableStoreProvider) SaveLock(lock domain.Lock) error {
	if err := p.stores.Locks().SaveLock(lock); err != nil {
		return &StoreError{Op: "SaveLock", Cause: err}
	}
	p.scope.append(txlog.SaveLockOp{Lock: lock})
	return nil
}

func (p *MutableStoreProvider) RemoveLock(key domain.LockKey) error {
	if err := p.stores.Locks().RemoveLock(key); err != nil {
		return &StoreError{Op: "RemoveLock", Cause: err}
	}
	p.scope.append(txlog.RemoveLockOp{Key: key})
	return nil
}

func (p *MutableStoreProvider) SaveJobUpdate(update *domain.JobUpdate, lockToken string) error {
	if err := p.stores.JobUpdates().SaveJobUpdate(update, lockToken); err != nil {
		return &StoreError{Op: "SaveJobUpdate", Cause: err}
	}
	p.scope.append(txlog.SaveJobUpdateOp{Update: update, LockToken: lockToken})
	return nil
}

func (p *MutableStoreProvider) SaveJobUpdateEvent(event domain.JobUpdateEvent, key domain.JobUpdateKey) error {
	if err := p.stores.JobUpdates().SaveJobUpdateEvent(event, key); err != nil {
		return &StoreError{Op: "SaveJobUpdateEvent", Cause: err}
	}
	p.scope.append(txlog.SaveJobUpdateEventOp{Event: event, UpdateKey: &key})
	return nil
}

func (p *MutableStoreProvider) SaveJobInstanceUpdateEvent(event domain.JobInstanceUpdateEvent, key domain.JobUpdateKey) error {
	if err := p.stores.JobUpdates().SaveJobInstanceUpdateEvent(event, key); err != nil {
		return &StoreError{Op: "SaveJobInstanceUpdateEvent", Cause: err}
	}
	p.scope.append(txlog.SaveJobInstanceUpdateEventOp{Event: event, UpdateKey: &key})
	return nil
}

func (p *MutableStoreProvider) PruneJobUpdateHistory(perJobRetain int, thresholdMs int64) error {
	if _, err := p.stores.JobUpdates().PruneHistory(perJobRetain, thresholdMs); err != nil {
		return &StoreError{Op: "PruneJobUpdateHistory", Cause: err}
	}
	p.scope.append(txlog.PruneJobUpdateHistoryOp{PerJobRetain: perJobRetain, ThresholdMs: thresholdMs})
	return nil
}
