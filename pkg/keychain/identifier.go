package keychain

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

const (
	// MaxIdentifierDepth is the maximum number of path segments.
	MaxIdentifierDepth = 4
	// IdentifierSize is the serialized size of an identifier in bytes.
	IdentifierSize = 1 + 4*MaxIdentifierDepth
)

// ErrInvalidIdentifier ...
var ErrInvalidIdentifier = errors.New("invalid derivation identifier")

// Identifier is a BIP32-style derivation path identifying an output's
// derivation so its blinding factor can be recomputed later.
type Identifier struct {
	Depth uint8                      `json:"depth"`
	Path  [MaxIdentifierDepth]uint32 `json:"path"`
}

// NewIdentifier builds an identifier from up to four path segments.
func NewIdentifier(path ...uint32) (Identifier, error) {
	if len(path) > MaxIdentifierDepth {
		return Identifier{}, ErrInvalidIdentifier
	}
	id := Identifier{Depth: uint8(len(path))}
	copy(id.Path[:], path)
	return id, nil
}

// ChildIdentifier returns the conventional identifier for the index-th
// wallet output, m/0/1/index.
func ChildIdentifier(index uint32) Identifier {
	return Identifier{Depth: 3, Path: [MaxIdentifierDepth]uint32{0, 1, index}}
}

// Bytes serializes the identifier as depth followed by four big-endian
// segments, unused segments zeroed.
func (id Identifier) Bytes() []byte {
	out := make([]byte, IdentifierSize)
	out[0] = id.Depth
	for i, seg := range id.Path {
		binary.BigEndian.PutUint32(out[1+4*i:], seg)
	}
	return out
}

// ParseIdentifier is the inverse of Bytes.
func ParseIdentifier(data []byte) (Identifier, error) {
	if len(data) != IdentifierSize {
		return Identifier{}, ErrInvalidIdentifier
	}
	id := Identifier{Depth: data[0]}
	if id.Depth > MaxIdentifierDepth {
		return Identifier{}, ErrInvalidIdentifier
	}
	for i := range id.Path {
		id.Path[i] = binary.BigEndian.Uint32(data[1+4*i:])
	}
	return id, nil
}

// Equal reports whether two identifiers have the same depth and segments.
func (id Identifier) Equal(other Identifier) bool {
	return id.Depth == other.Depth && id.Path == other.Path
}

func (id Identifier) String() string {
	var sb strings.Builder
	sb.WriteString("m")
	for i := uint8(0); i < id.Depth; i++ {
		fmt.Fprintf(&sb, "/%d", id.Path[i])
	}
	return sb.String()
}
