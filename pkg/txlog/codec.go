// Package txlog implements the wire format and streaming machinery the
// storage engine layers over a raw append-only log: binary record encoding,
// entry framing for oversized records, snapshot deduplication, optional
// deflation, and the Stream/LogManager glue that turns all of it into a
// simple append/read/truncate surface.
package txlog

import (
	"bytes"

	"github.com/cuemby/storagecore/pkg/domain"
	"github.com/hashicorp/go-msgpack/v2/codec"
)

// CurrentSchemaVersion is stamped on every Transaction record this binary
// writes. Replay never rejects on schema version alone; it is carried for
// forward diagnostics and future migration.
const CurrentSchemaVersion int32 = 1

// msgpackHandle writes map keys in sorted order, so equal values always
// encode to the same bytes.
var msgpackHandle = func() *codec.MsgpackHandle {
	h := &codec.MsgpackHandle{}
	h.Canonical = true
	return h
}()

// RecordKind tags the variant of a decoded Record.
type RecordKind uint8

const (
	RecordTransaction RecordKind = iota + 1
	RecordSnapshot
	RecordDeduplicatedSnapshot
	RecordFrame
	RecordDeflatedEntry
	RecordNoop
)

// Record is one variant of the log-entry tagged union.
type Record interface {
	RecordKind() RecordKind
}

type TransactionRecord struct {
	SchemaVersion int32
	Ops           []Op
}

func (TransactionRecord) RecordKind() RecordKind { return RecordTransaction }

type SnapshotRecord struct {
	Snapshot domain.Snapshot
}

func (SnapshotRecord) RecordKind() RecordKind { return RecordSnapshot }

// DeduplicatedSnapshotRecord factors repeated TaskConfigs out of a Snapshot's
// tasks through a content-addressed table. Partial carries every field of
// Snapshot except that each ScheduledTask's Config is left zero-valued;
// TaskConfigRefs maps TaskID -> digest and TaskConfigs maps digest -> config.
type DeduplicatedSnapshotRecord struct {
	Partial        domain.Snapshot
	TaskConfigs    map[Digest]domain.TaskConfig
	TaskConfigRefs map[string]Digest
}

func (DeduplicatedSnapshotRecord) RecordKind() RecordKind { return RecordDeduplicatedSnapshot }

// FrameHeaderPayload announces how many chunks follow and the digest of the
// full encoded record they reassemble into.
type FrameHeaderPayload struct {
	TotalChunks int32
	Digest      Digest
}

// FrameChunkPayload carries one slice of a split record plus its own digest.
type FrameChunkPayload struct {
	Index  int32
	Digest Digest
	Data   []byte
}

// FrameRecord is either a header or a chunk; exactly one of Header/Chunk is
// set, selected by IsHeader.
type FrameRecord struct {
	IsHeader bool
	Header   *FrameHeaderPayload
	Chunk    *FrameChunkPayload
}

func (FrameRecord) RecordKind() RecordKind { return RecordFrame }

// DeflatedEntryRecord wraps another encoded record's bytes, compressed.
type DeflatedEntryRecord struct {
	CompressedBytes []byte
}

func (DeflatedEntryRecord) RecordKind() RecordKind { return RecordDeflatedEntry }

// NoopRecord is a sentinel every reader must accept and ignore.
type NoopRecord struct{}

func (NoopRecord) RecordKind() RecordKind { return RecordNoop }

// UnknownRecord is what Decode yields for a record whose kind this binary
// does not recognize — a newer writer appended a variant this reader
// predates. The stream manager drops these so an older binary can still
// recover a newer log; they never reach replay dispatch.
type UnknownRecord struct {
	Kind RecordKind
}

func (r UnknownRecord) RecordKind() RecordKind { return r.Kind }

// wireRecord is the flat struct actually put on the wire: exactly one of
// the per-kind fields is non-nil, selected by Kind. msgpack can't encode a
// Go interface directly, so Encode/Decode convert to and from this shape.
type wireRecord struct {
	Kind         RecordKind
	Transaction  *wireTransaction
	Snapshot     *domain.Snapshot
	Deduplicated *DeduplicatedSnapshotRecord
	Frame        *FrameRecord
	Deflated     *DeflatedEntryRecord
	Noop         *struct{}
}

type wireTransaction struct {
	SchemaVersion int32
	Ops           []wireOp
}

// wireOp mirrors wireRecord's one-of-many-pointers shape for the Op union.
type wireOp struct {
	Kind                       OpKind
	SaveFrameworkID            *SaveFrameworkIDOp
	SaveCronJob                *SaveCronJobOp
	RemoveJob                  *RemoveJobOp
	SaveTasks                  *SaveTasksOp
	RewriteTask                *RewriteTaskOp
	RemoveTasks                *RemoveTasksOp
	SaveQuota                  *SaveQuotaOp
	RemoveQuota                *RemoveQuotaOp
	SaveHostAttributes         *SaveHostAttributesOp
	SaveLock                   *SaveLockOp
	RemoveLock                 *RemoveLockOp
	SaveJobUpdate              *SaveJobUpdateOp
	SaveJobUpdateEvent         *SaveJobUpdateEventOp
	SaveJobInstanceUpdateEvent *SaveJobInstanceUpdateEventOp
	PruneJobUpdateHistory      *PruneJobUpdateHistoryOp
}

func toWireOp(op Op) (wireOp, error) {
	w := wireOp{Kind: op.OpKind()}
	switch v := op.(type) {
	case SaveFrameworkIDOp:
		w.SaveFrameworkID = &v
	case SaveCronJobOp:
		w.SaveCronJob = &v
	case RemoveJobOp:
		w.RemoveJob = &v
	case SaveTasksOp:
		w.SaveTasks = &v
	case RewriteTaskOp:
		w.RewriteTask = &v
	case RemoveTasksOp:
		w.RemoveTasks = &v
	case SaveQuotaOp:
		w.SaveQuota = &v
	case RemoveQuotaOp:
		w.RemoveQuota = &v
	case SaveHostAttributesOp:
		w.SaveHostAttributes = &v
	case SaveLockOp:
		w.SaveLock = &v
	case RemoveLockOp:
		w.RemoveLock = &v
	case SaveJobUpdateOp:
		w.SaveJobUpdate = &v
	case SaveJobUpdateEventOp:
		w.SaveJobUpdateEvent = &v
	case SaveJobInstanceUpdateEventOp:
		w.SaveJobInstanceUpdateEvent = &v
	case PruneJobUpdateHistoryOp:
		w.PruneJobUpdateHistory = &v
	default:
		return wireOp{}, &CodingError{Reason: "unknown op type in transaction"}
	}
	return w, nil
}

func fromWireOp(w wireOp) (Op, error) {
	switch w.Kind {
	case OpSaveFrameworkID:
		if w.SaveFrameworkID == nil {
			break
		}
		return *w.SaveFrameworkID, nil
	case OpSaveCronJob:
		if w.SaveCronJob == nil {
			break
		}
		return *w.SaveCronJob, nil
	case OpRemoveJob:
		if w.RemoveJob == nil {
			break
		}
		return *w.RemoveJob, nil
	case OpSaveTasks:
		if w.SaveTasks == nil {
			break
		}
		return *w.SaveTasks, nil
	case OpRewriteTask:
		if w.RewriteTask == nil {
			break
		}
		return *w.RewriteTask, nil
	case OpRemoveTasks:
		if w.RemoveTasks == nil {
			break
		}
		return *w.RemoveTasks, nil
	case OpSaveQuota:
		if w.SaveQuota == nil {
			break
		}
		return *w.SaveQuota, nil
	case OpRemoveQuota:
		if w.RemoveQuota == nil {
			break
		}
		return *w.RemoveQuota, nil
	case OpSaveHostAttributes:
		if w.SaveHostAttributes == nil {
			break
		}
		return *w.SaveHostAttributes, nil
	case OpSaveLock:
		if w.SaveLock == nil {
			break
		}
		return *w.SaveLock, nil
	case OpRemoveLock:
		if w.RemoveLock == nil {
			break
		}
		return *w.RemoveLock, nil
	case OpSaveJobUpdate:
		if w.SaveJobUpdate == nil {
			break
		}
		return *w.SaveJobUpdate, nil
	case OpSaveJobUpdateEvent:
		if w.SaveJobUpdateEvent == nil {
			break
		}
		return *w.SaveJobUpdateEvent, nil
	case OpSaveJobInstanceUpdateEvent:
		if w.SaveJobInstanceUpdateEvent == nil {
			break
		}
		return *w.SaveJobInstanceUpdateEvent, nil
	case OpPruneJobUpdateHistory:
		if w.PruneJobUpdateHistory == nil {
			break
		}
		return *w.PruneJobUpdateHistory, nil
	}
	return nil, &CodingError{Reason: "op payload missing or kind unrecognized"}
}

// Encode deterministically serializes a Record to bytes. It only fails for
// a Record carrying an Op type the codec doesn't know, which cannot happen
// for values constructed through this package.
func Encode(rec Record) ([]byte, error) {
	w := wireRecord{Kind: rec.RecordKind()}
	switch v := rec.(type) {
	case TransactionRecord:
		ops := make([]wireOp, len(v.Ops))
		for i, op := range v.Ops {
			wo, err := toWireOp(op)
			if err != nil {
				return nil, err
			}
			ops[i] = wo
		}
		w.Transaction = &wireTransaction{SchemaVersion: v.SchemaVersion, Ops: ops}
	case SnapshotRecord:
		w.Snapshot = &v.Snapshot
	case DeduplicatedSnapshotRecord:
		w.Deduplicated = &v
	case FrameRecord:
		w.Frame = &v
	case DeflatedEntryRecord:
		w.Deflated = &v
	case NoopRecord:
		w.Noop = &struct{}{}
	default:
		return nil, &CodingError{Reason: "unknown record type"}
	}

	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, msgpackHandle)
	if err := enc.Encode(&w); err != nil {
		return nil, &CodingError{Reason: "msgpack encode failed", Cause: err}
	}
	return buf.Bytes(), nil
}

// Decode parses bytes produced by Encode back into a Record. Malformed
// input or a record missing its kind's payload yields a CodingError.
func Decode(data []byte) (Record, error) {
	var w wireRecord
	dec := codec.NewDecoder(bytes.NewReader(data), msgpackHandle)
	if err := dec.Decode(&w); err != nil {
		return nil, &CodingError{Reason: "msgpack decode failed", Cause: err}
	}

	switch w.Kind {
	case RecordTransaction:
		if w.Transaction == nil {
			return nil, &CodingError{Reason: "transaction record missing payload"}
		}
		ops := make([]Op, len(w.Transaction.Ops))
		for i, wo := range w.Transaction.Ops {
			op, err := fromWireOp(wo)
			if err != nil {
				return nil, err
			}
			ops[i] = op
		}
		return TransactionRecord{SchemaVersion: w.Transaction.SchemaVersion, Ops: ops}, nil
	case RecordSnapshot:
		if w.Snapshot == nil {
			return nil, &CodingError{Reason: "snapshot record missing payload"}
		}
		return SnapshotRecord{Snapshot: *w.Snapshot}, nil
	case RecordDeduplicatedSnapshot:
		if w.Deduplicated == nil {
			return nil, &CodingError{Reason: "deduplicated snapshot record missing payload"}
		}
		return *w.Deduplicated, nil
	case RecordFrame:
		if w.Frame == nil {
			return nil, &CodingError{Reason: "frame record missing payload"}
		}
		return *w.Frame, nil
	case RecordDeflatedEntry:
		if w.Deflated == nil {
			return nil, &CodingError{Reason: "deflated entry record missing payload"}
		}
		return *w.Deflated, nil
	case RecordNoop:
		return NoopRecord{}, nil
	default:
		if w.Kind == 0 {
			return nil, &CodingError{Reason: "record missing kind tag"}
		}
		return UnknownRecord{Kind: w.Kind}, nil
	}
}
