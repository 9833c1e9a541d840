// Package slate models a Mimblewimble transaction while it is being built
// interactively by two parties, and implements the state transitions of the
// Standard (S1→S2→S3) and Invoice (I1→I2→I3) flows.
//
// A slate is treated as an immutable snapshot: every transition clones the
// incoming slate and returns a new one, so a slate crossing a serialization
// boundary can never alias the party's retained copy.
package slate

import (
	"bytes"

	"github.com/google/uuid"

	"github.com/slatewallet/slatewallet/pkg/memzero"
)

// State is a slate's position in the construction protocol. The byte values
// are the ones used in the binary wire format.
type State byte

const (
	// StateStandard1 is the sender-initiated slate awaiting the receiver.
	StateStandard1 State = 1
	// StateStandard2 is the receiver's response awaiting finalization.
	StateStandard2 State = 2
	// StateStandard3 is the finalized standard transaction.
	StateStandard3 State = 3
	// StateInvoice1 is the receiver-initiated invoice awaiting payment.
	StateInvoice1 State = 4
	// StateInvoice2 is the payer's response awaiting finalization.
	StateInvoice2 State = 5
	// StateInvoice3 is the finalized invoice transaction.
	StateInvoice3 State = 6
)

// Valid reports whether s is one of the six protocol states.
func (s State) Valid() bool {
	return s >= StateStandard1 && s <= StateInvoice3
}

// IsInvoice reports whether s belongs to the invoice flow.
func (s State) IsInvoice() bool {
	return s >= StateInvoice1 && s <= StateInvoice3
}

func (s State) String() string {
	switch s {
	case StateStandard1:
		return "S1"
	case StateStandard2:
		return "S2"
	case StateStandard3:
		return "S3"
	case StateInvoice1:
		return "I1"
	case StateInvoice2:
		return "I2"
	case StateInvoice3:
		return "I3"
	default:
		return "invalid"
	}
}

// OutputFeatures tags an output as plain or coinbase.
type OutputFeatures byte

const (
	// FeaturePlain ...
	FeaturePlain OutputFeatures = 0
	// FeatureCoinbase ...
	FeatureCoinbase OutputFeatures = 1
)

// Input references a spent commitment.
type Input struct {
	Features   OutputFeatures `json:"features"`
	Commitment [33]byte       `json:"commitment"`
}

// Output is a newly created commitment with its range proof.
type Output struct {
	Features   OutputFeatures `json:"features"`
	Commitment [33]byte       `json:"commitment"`
	Proof      []byte         `json:"proof"`
}

// Participant is one party's contribution to the aggregated kernel
// signature.
type Participant struct {
	PublicBlindExcess [33]byte  `json:"publicBlindExcess"`
	PublicNonce       [33]byte  `json:"publicNonce"`
	PartSig           *[64]byte `json:"partSig,omitempty"`
}

// Complete reports whether the participant has contributed its partial
// signature.
func (p Participant) Complete() bool {
	return p.PartSig != nil
}

// Slate is one snapshot of a transaction under construction.
type Slate struct {
	ID           uuid.UUID     `json:"id"`
	State        State         `json:"state"`
	Amount       uint64        `json:"amount"`
	Fee          uint64        `json:"fee"`
	Height       uint64        `json:"height"`
	LockHeight   uint64        `json:"lockHeight"`
	Offset       [32]byte      `json:"offset"`
	Inputs       []Input       `json:"inputs"`
	Outputs      []Output      `json:"outputs"`
	Participants []Participant `json:"participants"`

	// Set at finalization only.
	KernelExcess    [33]byte  `json:"kernelExcess"`
	KernelSignature *[64]byte `json:"kernelSignature,omitempty"`
}

// Clone returns a deep copy.
func (s *Slate) Clone() *Slate {
	out := *s
	out.Inputs = make([]Input, len(s.Inputs))
	copy(out.Inputs, s.Inputs)
	out.Outputs = make([]Output, len(s.Outputs))
	for i, o := range s.Outputs {
		out.Outputs[i] = o
		out.Outputs[i].Proof = append([]byte(nil), o.Proof...)
	}
	out.Participants = make([]Participant, len(s.Participants))
	for i, p := range s.Participants {
		out.Participants[i] = p
		if p.PartSig != nil {
			sig := *p.PartSig
			out.Participants[i].PartSig = &sig
		}
	}
	if s.KernelSignature != nil {
		sig := *s.KernelSignature
		out.KernelSignature = &sig
	}
	return &out
}

// HasInput reports whether the slate spends the given commitment.
func (s *Slate) HasInput(commitment [33]byte) bool {
	for _, in := range s.Inputs {
		if in.Commitment == commitment {
			return true
		}
	}
	return false
}

// HasOutput reports whether the slate creates the given commitment.
func (s *Slate) HasOutput(commitment [33]byte) bool {
	for _, out := range s.Outputs {
		if out.Commitment == commitment {
			return true
		}
	}
	return false
}

// Merge re-attaches the inputs and outputs of other that the compact wire
// format omitted, by commitment-set difference, and restores a canonical
// ordering.
func (s *Slate) Merge(other *Slate) {
	s.mergeFrom(other)
}

func (s *Slate) mergeFrom(other *Slate) {
	for _, in := range other.Inputs {
		if !s.HasInput(in.Commitment) {
			s.Inputs = append(s.Inputs, in)
		}
	}
	for _, out := range other.Outputs {
		if !s.HasOutput(out.Commitment) {
			o := out
			o.Proof = append([]byte(nil), out.Proof...)
			s.Outputs = append(s.Outputs, o)
		}
	}
	sortSlate(s)
}

func sortSlate(s *Slate) {
	sortByCommitment := func(a, b [33]byte) bool {
		return bytes.Compare(a[:], b[:]) < 0
	}
	for i := 1; i < len(s.Inputs); i++ {
		for j := i; j > 0 && sortByCommitment(s.Inputs[j].Commitment, s.Inputs[j-1].Commitment); j-- {
			s.Inputs[j], s.Inputs[j-1] = s.Inputs[j-1], s.Inputs[j]
		}
	}
	for i := 1; i < len(s.Outputs); i++ {
		for j := i; j > 0 && sortByCommitment(s.Outputs[j].Commitment, s.Outputs[j-1].Commitment); j-- {
			s.Outputs[j], s.Outputs[j-1] = s.Outputs[j-1], s.Outputs[j]
		}
	}
}

// Session holds the secrets one party keeps between its protocol turns: its
// signing secret key and nonce, and its snapshot of the slate.
type Session struct {
	Slate         *Slate
	SecretKey     [32]byte
	SecretNonce   [32]byte
	ParticipantID int
}

// Erase zeroes the session secrets.
func (s *Session) Erase() {
	memzero.Zero32(&s.SecretKey)
	memzero.Zero32(&s.SecretNonce)
}
