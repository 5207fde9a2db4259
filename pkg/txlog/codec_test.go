package txlog

import (
	"bytes"
	"testing"
	"time"

	"github.com/cuemby/storagecore/pkg/domain"
	"github.com/hashicorp/go-msgpack/v2/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRecordRoundTrip(t *testing.T) {
	slave := "slave-1"
	tests := []struct {
		name string
		rec  Record
	}{
		{
			name: "transaction",
			rec: TransactionRecord{
				SchemaVersion: CurrentSchemaVersion,
				Ops: []Op{
					SaveFrameworkIDOp{ID: "fw-1"},
				},
			},
		},
		{
			name: "snapshot",
			rec: SnapshotRecord{
				Snapshot: domain.Snapshot{
					Timestamp:         time.Now().UTC(),
					SchemaVersion:     CurrentSchemaVersion,
					SchedulerMetadata: domain.SchedulerMetadata{FrameworkID: "fw-1"},
					Quotas:            map[string]domain.ResourceAggregate{"role-1": {NumCPUs: 2, RAMMB: 1024}},
					HostAttributes: []domain.HostAttributes{
						{Host: "host-1", SlaveID: &slave, Mode: "NORMAL"},
					},
					JobUpdates: []*domain.JobUpdateDetails{{
						Update: &domain.JobUpdate{
							Summary: domain.JobUpdateSummary{
								Key: &domain.JobUpdateKey{
									Job: domain.JobKey{Role: "role-1", Environment: "prod", Name: "job-1"},
									ID:  "update-1",
								},
								UpdateID: "update-1",
							},
						},
						LockToken: "tok",
						Events: []domain.JobUpdateEvent{
							{Status: domain.UpdateStatusSucceeded, TimestampMs: 1234},
						},
						InstanceEvents: []domain.JobInstanceUpdateEvent{
							{InstanceID: 1, Action: "RESTARTED", TimestampMs: 5678},
						},
					}},
				},
			},
		},
		{
			name: "deduplicated snapshot",
			rec: DeduplicatedSnapshotRecord{
				Partial: domain.Snapshot{SchemaVersion: CurrentSchemaVersion},
				TaskConfigs: map[Digest]domain.TaskConfig{
					ComputeDigest([]byte("cfg-1")): {JobKey: domain.JobKey{Role: "r", Environment: "e", Name: "n"}, NumCPUs: 1},
				},
				TaskConfigRefs: map[string]Digest{
					"task-1": ComputeDigest([]byte("cfg-1")),
				},
			},
		},
		{
			name: "frame header",
			rec: FrameRecord{
				IsHeader: true,
				Header:   &FrameHeaderPayload{TotalChunks: 3, Digest: ComputeDigest([]byte("whole"))},
			},
		},
		{
			name: "frame chunk",
			rec: FrameRecord{
				IsHeader: false,
				Chunk:    &FrameChunkPayload{Index: 1, Digest: ComputeDigest([]byte("chunk")), Data: []byte("chunk-bytes")},
			},
		},
		{
			name: "deflated entry",
			rec:  DeflatedEntryRecord{CompressedBytes: []byte{1, 2, 3, 4}},
		},
		{
			name: "noop",
			rec:  NoopRecord{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := Encode(tt.rec)
			require.NoError(t, err)

			decoded, err := Decode(encoded)
			require.NoError(t, err)
			assert.Equal(t, tt.rec, decoded)
		})
	}
}

func TestEncodeDecodeOpRoundTrip(t *testing.T) {
	jobKey := domain.JobKey{Role: "role-1", Environment: "prod", Name: "job-1"}
	taskConfig := domain.TaskConfig{JobKey: jobKey, InstanceID: 2, Image: "img:1", NumCPUs: 1.5, RAMMB: 512, DiskMB: 2048}
	updateKey := &domain.JobUpdateKey{Job: jobKey, ID: "update-1"}

	tests := []struct {
		name string
		op   Op
	}{
		{name: "save framework id", op: SaveFrameworkIDOp{ID: "fw-9"}},
		{
			name: "save cron job",
			op: SaveCronJobOp{Config: &domain.JobConfiguration{
				Key:          jobKey,
				CronSchedule: "0 * * * *",
				TaskConfig:   taskConfig,
			}},
		},
		{name: "remove job", op: RemoveJobOp{Key: jobKey}},
		{
			name: "save tasks",
			op: SaveTasksOp{Tasks: []*domain.ScheduledTask{
				{TaskID: "task-1", Config: taskConfig, Status: domain.StatusRunning, SlaveID: "slave-1"},
			}},
		},
		{
			name: "rewrite task",
			op:   RewriteTaskOp{TaskID: "task-1", NewConfig: &taskConfig},
		},
		{name: "remove tasks", op: RemoveTasksOp{IDs: []string{"task-1", "task-2"}}},
		{
			name: "save quota",
			op:   SaveQuotaOp{Role: "role-1", Aggregate: domain.ResourceAggregate{NumCPUs: 4, RAMMB: 4096, DiskMB: 8192}},
		},
		{name: "remove quota", op: RemoveQuotaOp{Role: "role-1"}},
		{
			name: "save host attributes",
			op: SaveHostAttributesOp{Attrs: domain.HostAttributes{
				Host:       "host-1",
				Attributes: []domain.Attribute{{Name: "rack", Values: []string{"rack1"}}},
				Mode:       "NORMAL",
			}},
		},
		{
			name: "save lock",
			op:   SaveLockOp{Lock: domain.Lock{Key: domain.LockKey{Path: "/lock/1"}, Token: "tok", User: "alice", Tag: "cron"}},
		},
		{name: "remove lock", op: RemoveLockOp{Key: domain.LockKey{Path: "/lock/1"}}},
		{
			name: "save job update",
			op: SaveJobUpdateOp{
				Update: &domain.JobUpdate{
					Summary:        domain.JobUpdateSummary{Key: updateKey, UpdateID: "update-1", User: "alice", Status: domain.UpdateStatusPending},
					DesiredState:   taskConfig,
					InstanceCounts: []domain.InstanceCountRange{{First: 0, Last: 4}},
				},
				LockToken: "tok",
			},
		},
		{
			name: "save job update event",
			op: SaveJobUpdateEventOp{
				Event:     domain.JobUpdateEvent{Status: domain.UpdateStatusSucceeded, TimestampMs: 1234, User: "alice", Message: "done"},
				UpdateKey: updateKey,
			},
		},
		{
			name: "save job update event legacy",
			op: SaveJobUpdateEventOp{
				Event:          domain.JobUpdateEvent{Status: domain.UpdateStatusRolledBack, TimestampMs: 5678},
				LegacyUpdateID: "legacy-1",
			},
		},
		{
			name: "save job instance update event",
			op: SaveJobInstanceUpdateEventOp{
				Event:     domain.JobInstanceUpdateEvent{InstanceID: 3, Action: "RESTARTED", TimestampMs: 9999},
				UpdateKey: updateKey,
			},
		},
		{
			name: "prune job update history",
			op:   PruneJobUpdateHistoryOp{PerJobRetain: 5, ThresholdMs: 1000},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := TransactionRecord{SchemaVersion: CurrentSchemaVersion, Ops: []Op{tt.op}}
			encoded, err := Encode(rec)
			require.NoError(t, err)

			decoded, err := Decode(encoded)
			require.NoError(t, err)

			txn, ok := decoded.(TransactionRecord)
			require.True(t, ok)
			require.Len(t, txn.Ops, 1)
			assert.Equal(t, tt.op, txn.Ops[0])
		})
	}
}

func TestDecodeUnrecognizedKindYieldsUnknownRecord(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, codec.NewEncoder(&buf, msgpackHandle).Encode(&wireRecord{Kind: 42}))

	decoded, err := Decode(buf.Bytes())
	require.NoError(t, err, "a record from a newer schema must decode, not fail")
	assert.Equal(t, UnknownRecord{Kind: 42}, decoded)
}

func TestDecodeMalformedBytes(t *testing.T) {
	_, err := Decode([]byte{0xff, 0xff, 0xff})
	require.Error(t, err)

	var codingErr *CodingError
	assert.ErrorAs(t, err, &codingErr)
}

func TestAllOpKindsCoversEveryConstructor(t *testing.T) {
	kinds := AllOpKinds()
	assert.Len(t, kinds, 15)

	seen := make(map[OpKind]bool)
	for _, k := range kinds {
		assert.False(t, seen[k], "duplicate op kind %v", k)
		seen[k] = true
	}
}
