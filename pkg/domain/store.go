package domain

// SchedulerStore holds scheduler-wide metadata. It is the smallest of the
// seven domain stores: a single row keyed by nothing but its own presence.
type SchedulerStore interface {
	SaveFrameworkID(id string) error
	FetchFrameworkID() (string, bool, error)
}

// JobStore holds accepted cron job definitions.
type JobStore interface {
	SaveAcceptedJob(cfg *JobConfiguration) error
	RemoveJob(key JobKey) error
	FetchJobs() ([]*JobConfiguration, error)
}

// TaskStore holds scheduled tasks. UnsafeModifyInPlace reports whether it
// actually changed anything, mirroring the Aurora-derived contract that a
// no-op rewrite must not produce a log entry.
type TaskStore interface {
	SaveTasks(tasks []*ScheduledTask) error
	UnsafeModifyInPlace(taskID string, cfg *TaskConfig) (bool, error)
	DeleteTasks(ids []string) error
	FetchTasks() ([]*ScheduledTask, error)
}

// QuotaStore holds per-role resource quotas.
type QuotaStore interface {
	SaveQuota(role string, agg ResourceAggregate) error
	RemoveQuota(role string) error
	FetchQuotas() (map[string]ResourceAggregate, error)
}

// HostAttributeStore holds the attributes of every known slave host.
// SaveHostAttributes reports whether anything actually changed, so the
// engine can decide whether to publish a HostAttributesChanged event.
type HostAttributeStore interface {
	SaveHostAttributes(attrs HostAttributes) (bool, error)
	FetchHostAttributes() ([]HostAttributes, error)
}

// LockStore holds advisory locks.
type LockStore interface {
	SaveLock(lock Lock) error
	RemoveLock(key LockKey) error
	FetchLocks() ([]Lock, error)
}

// JobUpdateStore holds job update history: summaries, per-update and
// per-instance events, and the legacy-ID -> key mapping used to resolve
// events recorded before update keys existed.
type JobUpdateStore interface {
	SaveJobUpdate(update *JobUpdate, lockToken string) error
	SaveJobUpdateEvent(event JobUpdateEvent, key JobUpdateKey) error
	SaveJobInstanceUpdateEvent(event JobInstanceUpdateEvent, key JobUpdateKey) error
	PruneHistory(perJobRetain int, thresholdMs int64) (int, error)
	FetchUpdateKey(legacyUpdateID string) (*JobUpdateKey, bool, error)
	FetchJobUpdateDetails() ([]*JobUpdateDetails, error)
}

// Stores bundles the seven domain stores the engine forwards mutations to.
// It is the engine's only dependency on domain semantics; nothing in
// pkg/engine or pkg/txlog imports pkg/domainstore directly.
type Stores interface {
	Scheduler() SchedulerStore
	Jobs() JobStore
	Tasks() TaskStore
	Quotas() QuotaStore
	HostAttributes() HostAttributeStore
	Locks() LockStore
	JobUpdates() JobUpdateStore

	Close() error
}
