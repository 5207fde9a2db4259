package txlog

import "github.com/cuemby/storagecore/pkg/domain"

// OpKind tags the variant of an Op carried inside a Transaction record. The
// zero value is deliberately invalid so a forgotten Kind() implementation
// fails loudly rather than silently encoding as SaveFrameworkId.
type OpKind uint8

const (
	OpSaveFrameworkID OpKind = iota + 1
	OpSaveCronJob
	OpRemoveJob
	OpSaveTasks
	OpRewriteTask
	OpRemoveTasks
	OpSaveQuota
	OpRemoveQuota
	OpSaveHostAttributes
	OpSaveLock
	OpRemoveLock
	OpSaveJobUpdate
	OpSaveJobUpdateEvent
	OpSaveJobInstanceUpdateEvent
	OpPruneJobUpdateHistory
)

// allOpKinds is the full set the wire schema defines. The replay dispatch
// table is checked against this set at startup so an added variant that
// forgets a handler fails fast instead of silently dropping ops in
// production.
var allOpKinds = []OpKind{
	OpSaveFrameworkID, OpSaveCronJob, OpRemoveJob, OpSaveTasks, OpRewriteTask,
	OpRemoveTasks, OpSaveQuota, OpRemoveQuota, OpSaveHostAttributes, OpSaveLock,
	OpRemoveLock, OpSaveJobUpdate, OpSaveJobUpdateEvent, OpSaveJobInstanceUpdateEvent,
	OpPruneJobUpdateHistory,
}

// AllOpKinds returns every op variant the wire schema defines, used to
// check replay dispatch-table coverage at startup.
func AllOpKinds() []OpKind {
	return allOpKinds
}

// Op is one variant of the mutation tagged-union recorded inside a
// Transaction. Concrete types below implement it; Encode/Decode translate
// between an Op value and its wire representation via wireOp.
type Op interface {
	OpKind() OpKind
}

type SaveFrameworkIDOp struct{ ID string }

func (SaveFrameworkIDOp) OpKind() OpKind { return OpSaveFrameworkID }

type SaveCronJobOp struct{ Config *domain.JobConfiguration }

func (SaveCronJobOp) OpKind() OpKind { return OpSaveCronJob }

type RemoveJobOp struct{ Key domain.JobKey }

func (RemoveJobOp) OpKind() OpKind { return OpRemoveJob }

type SaveTasksOp struct{ Tasks []*domain.ScheduledTask }

func (SaveTasksOp) OpKind() OpKind { return OpSaveTasks }

type RewriteTaskOp struct {
	TaskID    string
	NewConfig *domain.TaskConfig
}

func (RewriteTaskOp) OpKind() OpKind { return OpRewriteTask }

type RemoveTasksOp struct{ IDs []string }

func (RemoveTasksOp) OpKind() OpKind { return OpRemoveTasks }

type SaveQuotaOp struct {
	Role      string
	Aggregate domain.ResourceAggregate
}

func (SaveQuotaOp) OpKind() OpKind { return OpSaveQuota }

type RemoveQuotaOp struct{ Role string }

func (RemoveQuotaOp) OpKind() OpKind { return OpRemoveQuota }

type SaveHostAttributesOp struct{ Attrs domain.HostAttributes }

func (SaveHostAttributesOp) OpKind() OpKind { return OpSaveHostAttributes }

type SaveLockOp struct{ Lock domain.Lock }

func (SaveLockOp) OpKind() OpKind { return OpSaveLock }

type RemoveLockOp struct{ Key domain.LockKey }

func (RemoveLockOp) OpKind() OpKind { return OpRemoveLock }

type SaveJobUpdateOp struct {
	Update    *domain.JobUpdate
	LockToken string
}

func (SaveJobUpdateOp) OpKind() OpKind { return OpSaveJobUpdate }

// SaveJobUpdateEventOp carries either a resolved UpdateKey or, for events
// recorded before update keys existed, a LegacyUpdateID to resolve at
// replay time. Exactly one should be set.
type SaveJobUpdateEventOp struct {
	Event          domain.JobUpdateEvent
	UpdateKey      *domain.JobUpdateKey
	LegacyUpdateID string
}

func (SaveJobUpdateEventOp) OpKind() OpKind { return OpSaveJobUpdateEvent }

type SaveJobInstanceUpdateEventOp struct {
	Event          domain.JobInstanceUpdateEvent
	UpdateKey      *domain.JobUpdateKey
	LegacyUpdateID string
}

func (SaveJobInstanceUpdateEventOp) OpKind() OpKind { return OpSaveJobInstanceUpdateEvent }

type PruneJobUpdateHistoryOp struct {
	PerJobRetain int
	ThresholdMs  int64
}

func (PruneJobUpdateHistoryOp) OpKind() OpKind { return OpPruneJobUpdateHistory }
