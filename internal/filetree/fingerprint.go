package filetree

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"io/fs"
)

// Fingerprint is a hex-encoded sha256 digest identifying content.
type Fingerprint string

// String returns the hex form of the fingerprint.
func (f Fingerprint) String() string {
	return string(f)
}

// Short returns the first n characters of the fingerprint, or all of it when
// it is shorter than n.
func (f Fingerprint) Short(n int) string {
	if len(f) <= n {
		return string(f)
	}
	return string(f[:n])
}

// Sum hashes the given fields into a Fingerprint. Each field is written with
// an 8-byte big-endian length prefix so that field boundaries are part of the
// digest.
func Sum(fields ...[]byte) Fingerprint {
	h := sha256.New()
	for _, f := range fields {
		writeField(h, f)
	}
	return Fingerprint(hex.EncodeToString(h.Sum(nil)))
}

func writeField(h hash.Hash, data []byte) {
	var prefix [8]byte
	binary.BigEndian.PutUint64(prefix[:], uint64(len(data)))
	h.Write(prefix[:])
	h.Write(data)
}

func entryFingerprint(content []byte, mode fs.FileMode) Fingerprint {
	var perm [4]byte
	binary.BigEndian.PutUint32(perm[:], uint32(mode.Perm()))
	return Sum(perm[:], content)
}
