package txlog

import (
	"sync"

	"github.com/hashicorp/raft"
)

// raftLogStore is the subset of raft.LogStore the adapter needs. A
// *raftboltdb.BoltStore satisfies it directly.
type raftLogStore interface {
	FirstIndex() (uint64, error)
	LastIndex() (uint64, error)
	GetLog(index uint64, log *raft.Log) error
	StoreLog(log *raft.Log) error
	DeleteRange(min, max uint64) error
}

// RaftLogStream adapts a hashicorp/raft-boltdb LogStore — already ordered,
// appendable, and range-deletable — into the Stream this package's
// StreamManager drives. raft.Log.Index becomes Position directly; raft's
// Term/Type/Extensions fields go unused, since nothing here runs Raft
// consensus over this log.
type RaftLogStream struct {
	mu    sync.Mutex
	store raftLogStore
}

func NewRaftLogStream(store raftLogStore) *RaftLogStream {
	return &RaftLogStream{store: store}
}

func (r *RaftLogStream) FirstPosition() (Position, bool, error) {
	idx, err := r.store.FirstIndex()
	if err != nil {
		return 0, false, err
	}
	return Position(idx), idx != 0, nil
}

func (r *RaftLogStream) LastPosition() (Position, bool, error) {
	idx, err := r.store.LastIndex()
	if err != nil {
		return 0, false, err
	}
	return Position(idx), idx != 0, nil
}

func (r *RaftLogStream) ReadEntry(pos Position) ([]byte, error) {
	var log raft.Log
	if err := r.store.GetLog(uint64(pos), &log); err != nil {
		return nil, err
	}
	return log.Data, nil
}

func (r *RaftLogStream) Append(data []byte) (Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	last, err := r.store.LastIndex()
	if err != nil {
		return 0, err
	}
	next := last + 1

	entry := &raft.Log{
		Index: next,
		Type:  raft.LogCommand,
		Data:  data,
	}
	if err := r.store.StoreLog(entry); err != nil {
		return 0, err
	}
	return Position(next), nil
}

func (r *RaftLogStream) TruncateBefore(pos Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	first, err := r.store.FirstIndex()
	if err != nil {
		return err
	}
	if first == 0 || uint64(pos) <= first {
		return nil
	}
	return r.store.DeleteRange(first, uint64(pos)-1)
}
