package txlog

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Digest is the 128-bit non-cryptographic content hash used to detect frame
// corruption. xxhash only produces a 64-bit sum, so the digest is formed by
// hashing the input twice, the second time prefixed with a 0xff byte, and
// concatenating the results — adequate for corruption detection, not a
// security primitive.
type Digest [16]byte

// ComputeDigest hashes data into a Digest.
func ComputeDigest(data []byte) Digest {
	var d Digest
	h1 := xxhash.New()
	_, _ = h1.Write(data)
	binary.BigEndian.PutUint64(d[0:8], h1.Sum64())

	h2 := xxhash.New()
	_, _ = h2.Write([]byte{0xff})
	_, _ = h2.Write(data)
	binary.BigEndian.PutUint64(d[8:16], h2.Sum64())
	return d
}
