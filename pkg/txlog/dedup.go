package txlog

import (
	"bytes"

	"github.com/cuemby/storagecore/pkg/domain"
	"github.com/hashicorp/go-msgpack/v2/codec"
)

// encodeTaskConfig produces the canonical encoding a TaskConfig's digest is
// computed over, independent of the enclosing record's own encoding.
func encodeTaskConfig(cfg domain.TaskConfig) ([]byte, error) {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, msgpackHandle)
	if err := enc.Encode(&cfg); err != nil {
		return nil, &CodingError{Reason: "failed to encode task config for digest", Cause: err}
	}
	return buf.Bytes(), nil
}

// Deduplicate factors every ScheduledTask's TaskConfig in snap out into a
// digest -> config table, replacing it in the partial snapshot with a blank
// config referenced by TaskConfigRefs.
func Deduplicate(snap domain.Snapshot) (DeduplicatedSnapshotRecord, error) {
	taskConfigs := make(map[Digest]domain.TaskConfig)
	taskConfigRefs := make(map[string]Digest)

	partialTasks := make([]*domain.ScheduledTask, len(snap.Tasks))
	for i, task := range snap.Tasks {
		encoded, err := encodeTaskConfig(task.Config)
		if err != nil {
			return DeduplicatedSnapshotRecord{}, err
		}
		digest := ComputeDigest(encoded)
		taskConfigs[digest] = task.Config
		taskConfigRefs[task.TaskID] = digest

		stripped := *task
		stripped.Config = domain.TaskConfig{}
		partialTasks[i] = &stripped
	}

	partial := snap
	partial.Tasks = partialTasks

	return DeduplicatedSnapshotRecord{
		Partial:        partial,
		TaskConfigs:    taskConfigs,
		TaskConfigRefs: taskConfigRefs,
	}, nil
}

// Reduplicate reverses Deduplicate, restoring each task's Config from the
// digest table. It fails with DedupError if a task references a digest the
// table doesn't carry.
func Reduplicate(dedup DeduplicatedSnapshotRecord) (domain.Snapshot, error) {
	snap := dedup.Partial
	tasks := make([]*domain.ScheduledTask, len(snap.Tasks))
	for i, task := range snap.Tasks {
		digest, ok := dedup.TaskConfigRefs[task.TaskID]
		if !ok {
			return domain.Snapshot{}, &DedupError{Reason: "task " + task.TaskID + " has no taskConfigRef"}
		}
		cfg, ok := dedup.TaskConfigs[digest]
		if !ok {
			return domain.Snapshot{}, &DedupError{Reason: "task " + task.TaskID + " references a digest absent from taskConfigs"}
		}
		restored := *task
		restored.Config = cfg
		tasks[i] = &restored
	}
	snap.Tasks = tasks
	return snap, nil
}
