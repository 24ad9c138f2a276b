package host

import (
	"encoding/binary"
	"encoding/hex"
	"sort"

	"golang.org/x/crypto/sha3"

	"ledgerlib/internal/storage"
)

// Digest is the SHA3-256 hash of a committed write set.
type Digest [32]byte

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// DigestWrites hashes writes independently of their order. Each entry is
// length-prefixed so that adjacent keys and values cannot collide.
func DigestWrites(writes []storage.Write) Digest {
	sorted := make([]storage.Write, len(writes))
	copy(sorted, writes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	h := sha3.New256()
	var n [4]byte
	for _, w := range sorted {
		binary.BigEndian.PutUint32(n[:], uint32(len(w.Key)))
		h.Write(n[:])
		h.Write([]byte(w.Key))
		binary.BigEndian.PutUint32(n[:], uint32(len(w.Value)))
		h.Write(n[:])
		h.Write(w.Value)
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}
