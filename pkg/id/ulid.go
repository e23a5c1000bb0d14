// Package id generates lexicographically sortable identifiers for
// attachment object keys.
package id

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

const crockfordBase32 = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// NewULID returns a 26-character ULID for the current time.
func NewULID() string {
	return NewULIDAt(time.Now())
}

// NewULIDAt returns a ULID whose 48-bit timestamp is t in milliseconds.
// IDs created at later instants sort after earlier ones.
func NewULIDAt(t time.Time) string {
	var b [16]byte
	ms := uint64(t.UnixMilli())
	for i := range 6 {
		b[i] = byte(ms >> (8 * (5 - i)))
	}
	if _, err := rand.Read(b[6:]); err != nil {
		binary.BigEndian.PutUint64(b[6:14], uint64(t.UnixNano()))
	}
	return encode(b)
}

// encode writes 128 bits as 26 base32 symbols, left-padded to 130 bits.
func encode(b [16]byte) string {
	var out [26]byte
	for i := range out {
		var v byte
		for j := range 5 {
			v <<= 1
			bit := i*5 + j - 2
			if bit >= 0 && b[bit/8]&(0x80>>(bit%8)) != 0 {
				v |= 1
			}
		}
		out[i] = crockfordBase32[v]
	}
	return string(out[:])
}
