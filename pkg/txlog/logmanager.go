package txlog

import (
	"fmt"
	"path/filepath"
	"sync"

	raftboltdb "github.com/hashicorp/raft-boltdb"
)

// StreamManagerFactory builds a StreamManager over an already-opened
// Stream. Production code uses NewLogManager's default factory; tests
// inject one that wraps an in-memory Stream.
type StreamManagerFactory func(Stream) *StreamManager

// LogManager opens the raw log exactly once and constructs the
// StreamManager the rest of the engine drives, with serializer policy
// (deflation, deduplication, max entry size) fixed at construction.
type LogManager struct {
	open    func() (Stream, error)
	factory StreamManagerFactory

	once sync.Once
	mgr  *StreamManager
	err  error
}

// NewLogManager opens a raft-boltdb-backed log under dataDir/transaction-log.db.
func NewLogManager(dataDir string, policy StreamPolicy) *LogManager {
	return NewLogManagerWithStream(func() (Stream, error) {
		path := filepath.Join(dataDir, "transaction-log.db")
		store, err := raftboltdb.NewBoltStore(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open transaction log: %w", err)
		}
		return NewRaftLogStream(store), nil
	}, func(s Stream) *StreamManager {
		return NewStreamManager(s, policy)
	})
}

// NewLogManagerWithStream builds a LogManager from an explicit Stream
// opener and StreamManager factory, for tests and alternative transports.
func NewLogManagerWithStream(open func() (Stream, error), factory StreamManagerFactory) *LogManager {
	return &LogManager{open: open, factory: factory}
}

// Open returns the StreamManager, opening the underlying log on first call
// and memoizing the result (and any error) for subsequent calls.
func (m *LogManager) Open() (*StreamManager, error) {
	m.once.Do(func() {
		stream, err := m.open()
		if err != nil {
			m.err = err
			return
		}
		m.mgr = m.factory(stream)
	})
	return m.mgr, m.err
}
