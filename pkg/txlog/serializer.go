package txlog

// frameHeaderOverhead is a conservative estimate of how many bytes a
// FrameRecord's own encoding adds on top of its carried chunk, used to size
// chunks so the resulting entry never exceeds maxEntrySize.
const frameHeaderOverhead = 128

// Serializer converts one logical Record into one or more physical log
// entries, splitting anything larger than maxEntrySize into a header frame
// followed by N data frames.
type Serializer struct {
	maxEntrySize int
}

func NewSerializer(maxEntrySize int) *Serializer {
	return &Serializer{maxEntrySize: maxEntrySize}
}

// Serialize returns the physical entries for rec. A record that encodes
// within maxEntrySize is returned as a single entry; otherwise the first
// returned entry is a Frame header and the rest are its chunks in order.
func (s *Serializer) Serialize(rec Record) ([][]byte, error) {
	encoded, err := Encode(rec)
	if err != nil {
		return nil, err
	}
	if len(encoded) <= s.maxEntrySize {
		return [][]byte{encoded}, nil
	}

	chunkSize := s.maxEntrySize - frameHeaderOverhead
	if chunkSize <= 0 {
		return nil, &FramingError{Reason: "maxEntrySize too small to hold a frame chunk"}
	}

	totalChunks := (len(encoded) + chunkSize - 1) / chunkSize
	header := FrameRecord{
		IsHeader: true,
		Header: &FrameHeaderPayload{
			TotalChunks: int32(totalChunks),
			Digest:      ComputeDigest(encoded),
		},
	}
	headerBytes, err := Encode(header)
	if err != nil {
		return nil, err
	}

	entries := make([][]byte, 0, totalChunks+1)
	entries = append(entries, headerBytes)
	for i := 0; i < totalChunks; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > len(encoded) {
			end = len(encoded)
		}
		chunkData := encoded[start:end]
		chunk := FrameRecord{
			IsHeader: false,
			Chunk: &FrameChunkPayload{
				Index:  int32(i),
				Digest: ComputeDigest(chunkData),
				Data:   chunkData,
			},
		}
		chunkBytes, err := Encode(chunk)
		if err != nil {
			return nil, err
		}
		entries = append(entries, chunkBytes)
	}
	return entries, nil
}

type deserializerState int

const (
	stateIdle deserializerState = iota
	stateCollecting
)

// Deserializer reassembles the entry stream a Serializer produced back into
// logical Records. It holds the small IDLE/COLLECTING state machine the
// entry framing contract requires; feed it entries in stream order.
type Deserializer struct {
	state       deserializerState
	totalChunks int32
	digest      Digest
	received    [][]byte
}

func NewDeserializer() *Deserializer {
	return &Deserializer{}
}

// Feed consumes one physical entry. It returns (record, true, nil) when the
// entry completes a logical record, (nil, false, nil) when it was a header
// or intermediate chunk, and a FramingError on any sequence or digest
// violation.
func (d *Deserializer) Feed(entry []byte) (Record, bool, error) {
	rec, err := Decode(entry)
	if err != nil {
		return nil, false, err
	}

	frame, isFrame := rec.(FrameRecord)
	if !isFrame {
		if d.state == stateCollecting {
			return nil, false, &FramingError{Reason: "non-frame entry received mid frame sequence"}
		}
		return rec, true, nil
	}

	if frame.IsHeader {
		if d.state == stateCollecting {
			return nil, false, &FramingError{Reason: "frame header received before prior sequence completed"}
		}
		if frame.Header == nil {
			return nil, false, &FramingError{Reason: "frame header missing payload"}
		}
		d.state = stateCollecting
		d.totalChunks = frame.Header.TotalChunks
		d.digest = frame.Header.Digest
		d.received = make([][]byte, 0, frame.Header.TotalChunks)
		return nil, false, nil
	}

	if d.state != stateCollecting {
		return nil, false, &FramingError{Reason: "frame chunk received outside a frame sequence"}
	}
	if frame.Chunk == nil {
		return nil, false, &FramingError{Reason: "frame chunk missing payload"}
	}
	if frame.Chunk.Index != int32(len(d.received)) {
		return nil, false, &FramingError{Reason: "frame chunk received out of order"}
	}
	if ComputeDigest(frame.Chunk.Data) != frame.Chunk.Digest {
		d.reset()
		return nil, false, &FramingError{Reason: "frame chunk digest mismatch"}
	}
	d.received = append(d.received, frame.Chunk.Data)

	if int32(len(d.received)) < d.totalChunks {
		return nil, false, nil
	}

	var full []byte
	for _, chunk := range d.received {
		full = append(full, chunk...)
	}
	expectedDigest := d.digest
	d.reset()

	if ComputeDigest(full) != expectedDigest {
		return nil, false, &FramingError{Reason: "reassembled record digest mismatch"}
	}
	result, err := Decode(full)
	if err != nil {
		return nil, false, err
	}
	return result, true, nil
}

func (d *Deserializer) reset() {
	d.state = stateIdle
	d.totalChunks = 0
	d.digest = Digest{}
	d.received = nil
}
