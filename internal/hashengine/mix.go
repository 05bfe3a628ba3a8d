package hashengine

import (
	"encoding/binary"
	"hash"
)

// The mixers below define the exact byte layout fed into the target
// hash function. Any change here changes every digest downstream of
// it, so the encoding is intentionally minimal and undocumented beyond
// what the wire format itself says.

func mixStr(h hash.Hash, s string) {
	h.Write([]byte(s))
}

func mixU32(h hash.Hash, v uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	h.Write(buf[:])
}

func mixI64(h hash.Hash, v int64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	h.Write(buf[:])
}

func mixBool(h hash.Hash, v bool) {
	if v {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
}

func mixDigest(h hash.Hash, d [32]byte) {
	h.Write(d[:])
}

// mixStringList writes a u32 element count followed by the elements
// themselves separated by a single NUL byte.
func mixStringList(h hash.Hash, list []string) {
	mixU32(h, uint32(len(list)))
	for i, s := range list {
		mixStr(h, s)
		if i < len(list)-1 {
			h.Write([]byte{0})
		}
	}
}
