// Package domain holds the entity types and store interfaces that the
// storage engine forwards mutations to. The engine owns none of these
// semantics; it only knows how to route an Op at it and how to fold a
// Snapshot in and out of them.
package domain

import "time"

// TaskConfig is the immutable configuration of a scheduled task. It is the
// unit the snapshot deduplicator factors through a content-addressed table,
// since many tasks in a job share an identical configuration.
type TaskConfig struct {
	JobKey      JobKey
	InstanceID  int32
	Image       string
	NumCPUs     float64
	RAMMB       int64
	DiskMB      int64
	Env         map[string]string
	Constraints map[string]string
}

// ScheduleStatus is the lifecycle state of a ScheduledTask.
type ScheduleStatus string

const (
	StatusPending  ScheduleStatus = "PENDING"
	StatusStarting ScheduleStatus = "STARTING"
	StatusRunning  ScheduleStatus = "RUNNING"
	StatusFinished ScheduleStatus = "FINISHED"
	StatusFailed   ScheduleStatus = "FAILED"
	StatusKilled   ScheduleStatus = "KILLED"
)

// ScheduledTask is one running (or terminal) instance of a TaskConfig.
type ScheduledTask struct {
	TaskID    string
	Config    TaskConfig
	Status    ScheduleStatus
	SlaveID   string
	SlaveHost string
	UpdatedAt time.Time
}

// JobKey identifies a job by its three-part role/environment/name coordinate.
type JobKey struct {
	Role        string
	Environment string
	Name        string
}

// JobConfiguration is an accepted cron job definition.
type JobConfiguration struct {
	Key                 JobKey
	CronSchedule        string
	CronCollisionPolicy string
	TaskConfig          TaskConfig
}

// Attribute is a single name/value host attribute (e.g. "rack" -> "rack1").
type Attribute struct {
	Name   string
	Values []string
}

// HostAttributes describes the attributes of one slave host. SlaveID is a
// pointer because its absence is meaningful during replay: a record written
// before a host was fully registered carries no slave ID and must be
// dropped, never applied (see engine.Dispatcher).
type HostAttributes struct {
	Host       string
	SlaveID    *string
	Attributes []Attribute
	Mode       string
}

// LockKey identifies a named, hierarchical lock.
type LockKey struct {
	Path string
}

// Lock is a held advisory lock, recorded so a restarted process can
// reconstruct who (if anyone) was holding it.
type Lock struct {
	Key   LockKey
	Token string
	User  string
	Tag   string
}

// ResourceAggregate is a CPU/RAM/disk resource vector, used both for quota
// grants and for resource requirements.
type ResourceAggregate struct {
	NumCPUs float64
	RAMMB   int64
	DiskMB  int64
}

// JobUpdateKey identifies one update attempt against a job.
type JobUpdateKey struct {
	Job JobKey
	ID  string
}

// JobUpdateStatus is the lifecycle state of a job update.
type JobUpdateStatus string

const (
	UpdateStatusPending    JobUpdateStatus = "ROLLING_FORWARD"
	UpdateStatusRolledBack JobUpdateStatus = "ROLLED_BACK"
	UpdateStatusSucceeded  JobUpdateStatus = "ROLLED_FORWARD"
)

// JobUpdateSummary is the header portion of a JobUpdate. Key may be absent
// on records written before the engine's key-backfill rule existed; JobKey
// and UpdateID are then used to reconstruct it during replay.
type JobUpdateSummary struct {
	Key      *JobUpdateKey
	JobKey   *JobKey
	UpdateID string
	User     string
	Status   JobUpdateStatus
}

// JobUpdate is a full update definition: the desired task config plus the
// instance-count bounds of the rollout.
type JobUpdate struct {
	Summary        JobUpdateSummary
	DesiredState   TaskConfig
	InstanceCounts []InstanceCountRange
}

// InstanceCountRange is an inclusive [First,Last] instance range sharing one
// task configuration within a job update.
type InstanceCountRange struct {
	First int32
	Last  int32
}

// JobUpdateEvent records a status transition for a whole update.
type JobUpdateEvent struct {
	Status      JobUpdateStatus
	TimestampMs int64
	User        string
	Message     string
}

// JobInstanceUpdateEvent records a status transition for one instance within
// an update.
type JobInstanceUpdateEvent struct {
	InstanceID  int32
	Action      string
	TimestampMs int64
}

// JobUpdateDetails is one update's full recorded history: the update
// definition, the lock token it was saved under, and every update- and
// instance-level event recorded against it. Snapshots carry these, not
// bare JobUpdates, so truncating the log never loses an event timeline.
type JobUpdateDetails struct {
	Update         *JobUpdate
	LockToken      string
	Events         []JobUpdateEvent
	InstanceEvents []JobInstanceUpdateEvent
}

// SchedulerMetadata is process-wide scheduler state, currently just the
// framework ID assigned by the underlying cluster manager.
type SchedulerMetadata struct {
	FrameworkID string
}
