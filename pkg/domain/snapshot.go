package domain

import "time"

// Snapshot is the full materialized state of every domain store at a point
// in time. The storage engine's SnapshotProvider produces and consumes
// these; the engine itself only carries them to and from the log.
type Snapshot struct {
	Timestamp         time.Time
	SchemaVersion     int32
	SchedulerMetadata SchedulerMetadata
	Jobs              []*JobConfiguration
	Tasks             []*ScheduledTask
	Quotas            map[string]ResourceAggregate
	HostAttributes    []HostAttributes
	Locks             []Lock
	JobUpdates        []*JobUpdateDetails
}

// SnapshotProvider is the external collaborator the engine asks for a fresh
// snapshot and hands a decoded one back to during replay. domainstore.BoltStore
// implements it alongside Stores: snapshotting is "ask each store to dump its
// state," applying one is "ask each store to load it."
type SnapshotProvider interface {
	CreateSnapshot() (*Snapshot, error)
	ApplySnapshot(snap *Snapshot) error
}
