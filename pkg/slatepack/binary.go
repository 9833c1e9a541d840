// Package slatepack implements the wire encoding of slates: a compact
// binary layout, an ECIES encryption envelope addressed to a slatepack
// address, and a base58 armor with an error-detecting checksum.
package slatepack

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/slatewallet/slatewallet/pkg/secp"
	"github.com/slatewallet/slatewallet/pkg/slate"
)

const (
	// SlateVersion is the slate format version written to the wire.
	SlateVersion uint16 = 4
	// BlockHeaderVersion is the consensus header version the slate
	// targets.
	BlockHeaderVersion uint16 = 2

	// stateOffset is the fixed position of the state byte in the binary
	// layout: the 16-byte id followed by the two version fields.
	stateOffset = 16 + 2 + 2
)

var (
	// ErrTruncatedSlate ...
	ErrTruncatedSlate = errors.New("slate payload is truncated")
	// ErrUnsupportedVersion ...
	ErrUnsupportedVersion = errors.New("unsupported slate version")
	// ErrInvalidSlateState ...
	ErrInvalidSlateState = errors.New("invalid slate state byte")
)

// EncodeBinary serializes a slate to the binary wire layout. Initial slates
// (first step of either flow) are compacted: their inputs and outputs stay
// local and are re-attached by the originator at finalization.
func EncodeBinary(sl *slate.Slate) ([]byte, error) {
	if !sl.State.Valid() {
		return nil, ErrInvalidSlateState
	}

	compact := sl.State == slate.StateStandard1 || sl.State == slate.StateInvoice1
	var buf bytes.Buffer

	id, err := sl.ID.MarshalBinary()
	if err != nil {
		return nil, err
	}
	buf.Write(id)
	writeUint16(&buf, SlateVersion)
	writeUint16(&buf, BlockHeaderVersion)
	buf.WriteByte(byte(sl.State))
	writeUint64(&buf, sl.Amount)
	writeUint64(&buf, sl.Fee)
	writeUint64(&buf, sl.Height)
	writeUint64(&buf, sl.LockHeight)
	buf.Write(sl.Offset[:])

	buf.WriteByte(byte(len(sl.Participants)))
	for _, p := range sl.Participants {
		buf.Write(p.PublicBlindExcess[:])
		buf.Write(p.PublicNonce[:])
		if p.PartSig != nil {
			buf.WriteByte(1)
			buf.Write(p.PartSig[:])
		} else {
			buf.WriteByte(0)
		}
	}

	inputs, outputs := sl.Inputs, sl.Outputs
	if compact {
		inputs, outputs = nil, nil
	}

	writeUint16(&buf, uint16(len(inputs)))
	for _, in := range inputs {
		buf.WriteByte(byte(in.Features))
		buf.Write(in.Commitment[:])
	}
	writeUint16(&buf, uint16(len(outputs)))
	for _, out := range outputs {
		buf.WriteByte(byte(out.Features))
		buf.Write(out.Commitment[:])
		writeUint16(&buf, uint16(len(out.Proof)))
		buf.Write(out.Proof)
	}

	if sl.State == slate.StateStandard3 || sl.State == slate.StateInvoice3 {
		buf.Write(sl.KernelExcess[:])
		if sl.KernelSignature == nil {
			return nil, fmt.Errorf("%w: finalized slate without kernel signature",
				ErrInvalidSlateState)
		}
		buf.Write(sl.KernelSignature[:])
	}

	return buf.Bytes(), nil
}

// DecodeBinary parses the binary wire layout back into a slate.
func DecodeBinary(data []byte) (*slate.Slate, error) {
	r := &reader{data: data}

	sl := &slate.Slate{}
	idBytes := r.take(16)
	version := r.uint16()
	r.uint16() // block header version, accepted as-is
	state := slate.State(r.byte())
	sl.Amount = r.uint64()
	sl.Fee = r.uint64()
	sl.Height = r.uint64()
	sl.LockHeight = r.uint64()
	copy(sl.Offset[:], r.take(32))
	if r.err != nil {
		return nil, r.err
	}
	if version != SlateVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	if !state.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSlateState, byte(state))
	}
	sl.State = state
	if err := sl.ID.UnmarshalBinary(idBytes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncatedSlate, err)
	}

	nParticipants := int(r.byte())
	for i := 0; i < nParticipants && r.err == nil; i++ {
		var p slate.Participant
		copy(p.PublicBlindExcess[:], r.take(secp.PublicKeySize))
		copy(p.PublicNonce[:], r.take(secp.PublicKeySize))
		if r.byte() == 1 {
			var sig [64]byte
			copy(sig[:], r.take(secp.SignatureSize))
			p.PartSig = &sig
		}
		sl.Participants = append(sl.Participants, p)
	}

	nInputs := int(r.uint16())
	for i := 0; i < nInputs && r.err == nil; i++ {
		var in slate.Input
		in.Features = slate.OutputFeatures(r.byte())
		copy(in.Commitment[:], r.take(secp.CommitmentSize))
		sl.Inputs = append(sl.Inputs, in)
	}

	nOutputs := int(r.uint16())
	for i := 0; i < nOutputs && r.err == nil; i++ {
		var out slate.Output
		out.Features = slate.OutputFeatures(r.byte())
		copy(out.Commitment[:], r.take(secp.CommitmentSize))
		proofLen := int(r.uint16())
		if proofLen > secp.RangeProofMaxSize {
			return nil, fmt.Errorf("%w: range proof of %d bytes",
				ErrTruncatedSlate, proofLen)
		}
		out.Proof = append([]byte(nil), r.take(proofLen)...)
		sl.Outputs = append(sl.Outputs, out)
	}

	if state == slate.StateStandard3 || state == slate.StateInvoice3 {
		copy(sl.KernelExcess[:], r.take(secp.PublicKeySize))
		var sig [64]byte
		copy(sig[:], r.take(secp.SignatureSize))
		sl.KernelSignature = &sig
	}

	if r.err != nil {
		return nil, r.err
	}
	if r.pos != len(r.data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrTruncatedSlate,
			len(r.data)-r.pos)
	}
	return sl, nil
}

// SwitchFlow flips a binary slate payload between the standard and invoice
// flows in place, without re-encoding. The two flows share the same layout
// and differ only in the state byte, so the conversion is a single-byte
// patch and is its own inverse.
func SwitchFlow(payload []byte) error {
	if len(payload) <= stateOffset {
		return ErrTruncatedSlate
	}
	switch state := slate.State(payload[stateOffset]); state {
	case slate.StateStandard1, slate.StateStandard2, slate.StateStandard3:
		payload[stateOffset] = byte(state + 3)
	case slate.StateInvoice1, slate.StateInvoice2, slate.StateInvoice3:
		payload[stateOffset] = byte(state - 3)
	default:
		return fmt.Errorf("%w: %d", ErrInvalidSlateState, payload[stateOffset])
	}
	return nil
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

// reader is a cursor that records the first short read instead of returning
// an error at every step.
type reader struct {
	data []byte
	pos  int
	err  error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return make([]byte, n)
	}
	if r.pos+n > len(r.data) {
		r.err = ErrTruncatedSlate
		return make([]byte, n)
	}
	out := r.data[r.pos : r.pos+n]
	r.pos += n
	return out
}

func (r *reader) byte() byte { return r.take(1)[0] }

func (r *reader) uint16() uint16 {
	return binary.BigEndian.Uint16(r.take(2))
}

func (r *reader) uint64() uint64 {
	return binary.BigEndian.Uint64(r.take(8))
}
