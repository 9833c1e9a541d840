package storage

import (
	"encoding/hex"
	"errors"

	"github.com/google/uuid"
	"github.com/timshannon/badgerhold/v4"

	"github.com/slatewallet/slatewallet/pkg/keychain"
)

// OutputStatus tracks an output through its lifecycle.
type OutputStatus string

const (
	// OutputUnconfirmed means the creating transaction has not confirmed
	// yet.
	OutputUnconfirmed OutputStatus = "unconfirmed"
	// OutputUnspent means the output is confirmed and spendable.
	OutputUnspent OutputStatus = "unspent"
	// OutputLocked means the output funds an in-flight exchange and must
	// not be double-selected.
	OutputLocked OutputStatus = "locked"
	// OutputSpent means the spending transaction has confirmed.
	OutputSpent OutputStatus = "spent"
)

// Output is an owned output. The blinding factor is never stored: it is
// recomputed from the identifier whenever the output is spent.
type Output struct {
	// Commitment is the hex Pedersen commitment, used as the record key.
	Commitment string `badgerhold:"key"`
	Identifier keychain.Identifier
	Value      uint64
	Status     OutputStatus
	IsCoinbase bool
	Height     uint64
	// LockedBy is the exchange holding the lock, when Status is locked.
	LockedBy *uuid.UUID
}

// CommitmentBytes decodes the record key back to wire form.
func (o Output) CommitmentBytes() ([33]byte, error) {
	var out [33]byte
	raw, err := hex.DecodeString(o.Commitment)
	if err != nil || len(raw) != len(out) {
		return out, errors.New("malformed commitment key")
	}
	copy(out[:], raw)
	return out, nil
}

// CommitmentKey builds the record key for a wire commitment.
func CommitmentKey(commitment [33]byte) string {
	return hex.EncodeToString(commitment[:])
}

// AddOutput inserts or replaces an output record.
func (s *Store) AddOutput(output Output) error {
	return s.outputs.Upsert(output.Commitment, output)
}

// GetOutput fetches one output by commitment.
func (s *Store) GetOutput(commitment [33]byte) (*Output, error) {
	var out Output
	err := s.outputs.Get(CommitmentKey(commitment), &out)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListOutputs returns all outputs with the given status, or all outputs
// when status is empty.
func (s *Store) ListOutputs(status OutputStatus) ([]Output, error) {
	var outputs []Output
	var err error
	if status == "" {
		err = s.outputs.Find(&outputs, nil)
	} else {
		err = s.outputs.Find(&outputs, badgerhold.Where("Status").Eq(status))
	}
	if err != nil {
		return nil, err
	}
	return outputs, nil
}

// Balance sums output values per status.
func (s *Store) Balance() (map[OutputStatus]uint64, error) {
	outputs, err := s.ListOutputs("")
	if err != nil {
		return nil, err
	}
	balance := make(map[OutputStatus]uint64)
	for _, out := range outputs {
		balance[out.Status] += out.Value
	}
	return balance, nil
}

// LockOutputs marks the given outputs as funding the given exchange.
// Outputs already locked by another exchange are left untouched and
// reported as an error.
func (s *Store) LockOutputs(slateID uuid.UUID, commitments ...[33]byte) error {
	for _, commitment := range commitments {
		out, err := s.GetOutput(commitment)
		if err != nil {
			return err
		}
		if out.Status == OutputLocked && out.LockedBy != nil && *out.LockedBy != slateID {
			return errors.New("output is locked by another exchange")
		}
		if out.Status == OutputSpent {
			return errors.New("output is already spent")
		}
		id := slateID
		out.Status = OutputLocked
		out.LockedBy = &id
		if err := s.AddOutput(*out); err != nil {
			return err
		}
	}
	return nil
}

// UnlockOutputs releases every output locked by the given exchange, when a
// transfer is canceled.
func (s *Store) UnlockOutputs(slateID uuid.UUID) error {
	locked, err := s.ListOutputs(OutputLocked)
	if err != nil {
		return err
	}
	for _, out := range locked {
		if out.LockedBy == nil || *out.LockedBy != slateID {
			continue
		}
		out.Status = OutputUnspent
		out.LockedBy = nil
		if err := s.AddOutput(out); err != nil {
			return err
		}
	}
	return nil
}

// MarkSpent flips every output locked by the given exchange to spent, once
// the spending transaction confirms.
func (s *Store) MarkSpent(slateID uuid.UUID) error {
	locked, err := s.ListOutputs(OutputLocked)
	if err != nil {
		return err
	}
	for _, out := range locked {
		if out.LockedBy == nil || *out.LockedBy != slateID {
			continue
		}
		out.Status = OutputSpent
		out.LockedBy = nil
		if err := s.AddOutput(out); err != nil {
			return err
		}
	}
	return nil
}

// ConfirmOutput promotes an unconfirmed output once its creating
// transaction reaches the chain.
func (s *Store) ConfirmOutput(commitment [33]byte, height uint64) error {
	out, err := s.GetOutput(commitment)
	if err != nil {
		return err
	}
	out.Status = OutputUnspent
	out.Height = height
	return s.AddOutput(*out)
}

// NextChildIndex reserves the next derivation index. Indexes are never
// reused, so interrupted exchanges cannot collide with later ones.
func (s *Store) NextChildIndex() (uint32, error) {
	seq, err := s.outputs.Badger().GetSequence([]byte("derivation-cursor"), 1)
	if err != nil {
		return 0, err
	}
	defer seq.Release()
	next, err := seq.Next()
	if err != nil {
		return 0, err
	}
	return uint32(next), nil
}
