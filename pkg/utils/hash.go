package utils

import (
	"crypto/sha256"
	"encoding/binary"
)

// SeedFromString derives a race seed from an arbitrary string, usually the race id.
// Both participants derive the same seed without exchanging it.
func SeedFromString(arg string) uint64 {
	sum := sha256.Sum256([]byte(arg))
	return binary.BigEndian.Uint64(sum[:8])
}
