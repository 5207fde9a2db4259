package txlog

import (
	"testing"

	"github.com/cuemby/storagecore/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sharedTaskConfig(jobName string) domain.TaskConfig {
	return domain.TaskConfig{
		JobKey:  domain.JobKey{Role: "role-1", Environment: "prod", Name: jobName},
		Image:   "img:1",
		NumCPUs: 1,
		RAMMB:   512,
	}
}

func TestDeduplicateReduplicateRoundTrip(t *testing.T) {
	cfg := sharedTaskConfig("job-1")
	snap := domain.Snapshot{
		SchemaVersion: CurrentSchemaVersion,
		Tasks: []*domain.ScheduledTask{
			{TaskID: "task-1", Config: cfg, Status: domain.StatusRunning},
			{TaskID: "task-2", Config: cfg, Status: domain.StatusPending},
			{TaskID: "task-3", Config: sharedTaskConfig("job-2"), Status: domain.StatusFinished},
		},
	}

	dedup, err := Deduplicate(snap)
	require.NoError(t, err)

	// task-1 and task-2 share an identical config, so they factor through
	// the same digest; task-3's distinct config gets its own entry.
	assert.Len(t, dedup.TaskConfigs, 2)
	assert.Equal(t, dedup.TaskConfigRefs["task-1"], dedup.TaskConfigRefs["task-2"])
	assert.NotEqual(t, dedup.TaskConfigRefs["task-1"], dedup.TaskConfigRefs["task-3"])

	for _, task := range dedup.Partial.Tasks {
		assert.Equal(t, domain.TaskConfig{}, task.Config, "partial snapshot must strip configs")
	}

	restored, err := Reduplicate(dedup)
	require.NoError(t, err)
	assert.Equal(t, snap, restored)
}

func TestReduplicateMissingRefFails(t *testing.T) {
	dedup := DeduplicatedSnapshotRecord{
		Partial: domain.Snapshot{
			Tasks: []*domain.ScheduledTask{{TaskID: "task-1"}},
		},
		TaskConfigs:    map[Digest]domain.TaskConfig{},
		TaskConfigRefs: map[string]Digest{},
	}

	_, err := Reduplicate(dedup)
	require.Error(t, err)
	var dedupErr *DedupError
	assert.ErrorAs(t, err, &dedupErr)
}

func TestReduplicateMissingConfigFails(t *testing.T) {
	digest := ComputeDigest([]byte("orphaned"))
	dedup := DeduplicatedSnapshotRecord{
		Partial: domain.Snapshot{
			Tasks: []*domain.ScheduledTask{{TaskID: "task-1"}},
		},
		TaskConfigs:    map[Digest]domain.TaskConfig{},
		TaskConfigRefs: map[string]Digest{"task-1": digest},
	}

	_, err := Reduplicate(dedup)
	require.Error(t, err)
	var dedupErr *DedupError
	assert.ErrorAs(t, err, &dedupErr)
}

func TestDeduplicateEncodingStableAcrossCalls(t *testing.T) {
	cfg := sharedTaskConfig("job-1")
	encoded1, err := encodeTaskConfig(cfg)
	require.NoError(t, err)
	encoded2, err := encodeTaskConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, encoded1, encoded2)
	assert.Equal(t, ComputeDigest(encoded1), ComputeDigest(encoded2))
}
