package txlog

import "github.com/cuemby/storagecore/pkg/domain"

// Position identifies an entry's place in the underlying log.
type Position uint64

// Stream is the raw append-only log transport the StreamManager drives.
// It is deliberately minimal — StoreLog/GetLog/FirstIndex/LastIndex/
// DeleteRange shaped — so an adapter over an existing ordered log (see
// raftlog.go) can implement it without copying entries.
type Stream interface {
	FirstPosition() (pos Position, ok bool, err error)
	LastPosition() (pos Position, ok bool, err error)
	ReadEntry(pos Position) ([]byte, error)
	Append(data []byte) (Position, error)
	TruncateBefore(pos Position) error
}

// StreamPolicy configures the optional transforms StreamManager applies to
// every entry it writes and transparently reverses on read.
type StreamPolicy struct {
	MaxEntrySize int
	Deflate      bool
	Dedup        bool
}

// StreamManager drives a Stream: it reassembles frames and reverses
// deflation/deduplication on read, and applies them on write according to
// its StreamPolicy.
type StreamManager struct {
	stream Stream
	policy StreamPolicy
	ser    *Serializer
}

func NewStreamManager(stream Stream, policy StreamPolicy) *StreamManager {
	return &StreamManager{
		stream: stream,
		policy: policy,
		ser:    NewSerializer(policy.MaxEntrySize),
	}
}

// ReadFromBeginning streams every logical record in the log, in order,
// through fn. Frame reassembly, deflate unwrapping, and dedup expansion
// all happen transparently, and records whose kind this binary doesn't
// recognize are dropped, so fn only ever sees Transaction, Snapshot, or
// Noop records. Position is not threaded to fn because records are applied
// in bulk during recovery; callers that need per-record position use
// ReadFromBeginningWithPosition.
func (m *StreamManager) ReadFromBeginning(fn func(Record) error) error {
	return m.ReadFromBeginningWithPosition(func(_ Position, rec Record) error {
		return fn(rec)
	})
}

// ReadFromBeginningWithPosition is ReadFromBeginning but also reports the
// position of the last physical entry that completed each logical record —
// the position a truncateBefore call after writeSnapshot should use.
func (m *StreamManager) ReadFromBeginningWithPosition(fn func(Position, Record) error) error {
	first, ok, err := m.stream.FirstPosition()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	last, ok, err := m.stream.LastPosition()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	deser := NewDeserializer()
	for pos := first; pos <= last; pos++ {
		data, err := m.stream.ReadEntry(pos)
		if err != nil {
			return err
		}

		rec, ready, err := deser.Feed(data)
		if err != nil {
			return err
		}
		if !ready {
			continue
		}

		logical, err := m.unwrap(rec)
		if err != nil {
			return err
		}
		if _, unknown := logical.(UnknownRecord); unknown {
			continue
		}
		if err := fn(pos, logical); err != nil {
			return err
		}
	}
	return nil
}

// unwrap reverses DeflatedEntry wrapping and DeduplicatedSnapshot expansion
// so callers only ever see Transaction, Snapshot, or Noop.
func (m *StreamManager) unwrap(rec Record) (Record, error) {
	if deflated, ok := rec.(DeflatedEntryRecord); ok {
		plain, err := Inflate(deflated.CompressedBytes)
		if err != nil {
			return nil, &FramingError{Reason: "failed to inflate deflated entry", Cause: err}
		}
		inner, err := Decode(plain)
		if err != nil {
			return nil, err
		}
		return m.unwrap(inner)
	}
	if dedup, ok := rec.(DeduplicatedSnapshotRecord); ok {
		snap, err := Reduplicate(dedup)
		if err != nil {
			return nil, err
		}
		return SnapshotRecord{Snapshot: snap}, nil
	}
	return rec, nil
}

func (m *StreamManager) writeEntries(rec Record) (Position, error) {
	final := rec
	if m.policy.Deflate {
		encoded, err := Encode(rec)
		if err != nil {
			return 0, err
		}
		compressed, err := Deflate(encoded)
		if err != nil {
			return 0, err
		}
		final = DeflatedEntryRecord{CompressedBytes: compressed}
	}

	entries, err := m.ser.Serialize(final)
	if err != nil {
		return 0, err
	}

	var last Position
	for _, entry := range entries {
		pos, err := m.stream.Append(entry)
		if err != nil {
			return 0, err
		}
		last = pos
	}
	return last, nil
}

// WriteTransaction wraps ops in a Transaction record at the current schema
// version and appends it, returning the position it was written at.
func (m *StreamManager) WriteTransaction(ops []Op) (Position, error) {
	return m.writeEntries(TransactionRecord{SchemaVersion: CurrentSchemaVersion, Ops: ops})
}

// WriteSnapshot deduplicates snap if the policy enables it, then appends it.
// Must only be called while holding the engine's write mutex so it can
// never interleave with a concurrent transaction append.
func (m *StreamManager) WriteSnapshot(snap domain.Snapshot) (Position, error) {
	var rec Record = SnapshotRecord{Snapshot: snap}
	if m.policy.Dedup {
		dedup, err := Deduplicate(snap)
		if err != nil {
			return 0, err
		}
		rec = dedup
	}
	return m.writeEntries(rec)
}

// EntryCount returns the number of physical entries currently held by the
// underlying log, for the operational "current log size" metric.
func (m *StreamManager) EntryCount() (int, error) {
	first, ok, err := m.stream.FirstPosition()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	last, _, err := m.stream.LastPosition()
	if err != nil {
		return 0, err
	}
	return int(last-first) + 1, nil
}

// Positions reports the underlying stream's first and last physical
// position, for operational inspection tools. ok is false when the log is
// empty.
func (m *StreamManager) Positions() (first, last Position, ok bool, err error) {
	first, ok, err = m.stream.FirstPosition()
	if err != nil || !ok {
		return 0, 0, false, err
	}
	last, ok, err = m.stream.LastPosition()
	if err != nil || !ok {
		return 0, 0, false, err
	}
	return first, last, true, nil
}

// TruncateBefore discards every entry strictly before pos. Callers must
// only invoke this immediately after a successful WriteSnapshot, with pos
// equal to the position that call returned.
func (m *StreamManager) TruncateBefore(pos Position) error {
	return m.stream.TruncateBefore(pos)
}
