// Package styleid derives the global style identifiers hibiki exposes to
// synthesis clients.
//
// A style is addressed externally by a single non-negative int32: the low
// 5 bits carry the style's local index within its speaker, the 27 bits
// above them carry a digest of the speaker identity so that styles from
// independently authored packages stay distinct without a central id
// authority. Bit 31 is always cleared, keeping the value non-negative
// wherever it is interpreted as a signed 32-bit integer.
package styleid

import (
	"crypto/md5"
	"encoding/binary"
	"errors"
	"fmt"
)

// ID is a global style identifier. Always >= 0.
type ID int32

const (
	// LocalBits is the width of the embedded local style index.
	LocalBits = 5

	// MaxLocal is the largest local style index a speaker may declare.
	MaxLocal = 1<<LocalBits - 1

	hashBits = 27
	hashMask = 1<<hashBits - 1
)

var (
	ErrEmptyIdentity = errors.New("identity must not be empty")
	ErrIndexRange    = fmt.Errorf("local style index must be between 0 and %d", MaxLocal)
)

// Encode derives the global identifier for the style at localIndex of the
// speaker named by identity. The derivation is fixed forever: identifiers
// must come out identical across processes and releases.
//
// Two distinct identities whose 27-bit digest prefixes coincide produce
// overlapping identifier ranges. That residual collision chance is the
// price of fitting the identifier into a single int32 and is accepted; see
// the package tests.
func Encode(identity string, localIndex int) (ID, error) {
	if identity == "" {
		return 0, ErrEmptyIdentity
	}
	if localIndex < 0 || localIndex > MaxLocal {
		return 0, fmt.Errorf("%w: got %d", ErrIndexRange, localIndex)
	}

	sum := md5.Sum([]byte(identity))

	// Low 27 bits of the digest read as a big-endian integer.
	hash := binary.BigEndian.Uint32(sum[12:]) & hashMask

	id := hash<<LocalBits | uint32(localIndex)
	id &^= 1 << 31
	return ID(id), nil
}

// LocalIndex returns the local style index embedded in id.
//
// This is only a partial inverse of Encode: the speaker identity is not
// recoverable from the identifier. Resolving an id to its speaker and
// style means scanning the installed collection for a matching encoding.
func LocalIndex(id ID) int {
	return int(id) & MaxLocal
}
