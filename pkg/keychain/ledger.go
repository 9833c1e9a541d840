package keychain

import (
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/slatewallet/slatewallet/pkg/memzero"
	"github.com/slatewallet/slatewallet/pkg/secp"
)

// Ledger computes commitments, range proofs and blinding-factor sums for a
// wallet. Blinding factors are derived deterministically from the extended
// private key, the amount and the identifier, so any output can be
// recommitted later from its identifier alone.
type Ledger struct {
	secp   secp.Secp
	keys   *WalletKeys
	proofs *ProofBuilder
}

// NewLedger builds a ledger over the given capability and wallet keys.
func NewLedger(s secp.Secp, keys *WalletKeys) *Ledger {
	return &Ledger{
		secp:   s,
		keys:   keys,
		proofs: NewProofBuilder(keys),
	}
}

// Close erases the proof builder state.
func (l *Ledger) Close() {
	l.proofs.Uninitialize()
}

// BlindingFactor derives the deterministic blinding factor for an amount and
// identifier.
func (l *Ledger) BlindingFactor(
	amount uint64, id Identifier, switchType SwitchType,
) ([32]byte, error) {
	var out [32]byte
	h, err := blake2b.New256(l.keys.chainCode())
	if err != nil {
		return out, err
	}
	h.Write(l.keys.ExtendedPrivateKey[:32])
	var amountBytes [8]byte
	binary.BigEndian.PutUint64(amountBytes[:], amount)
	h.Write(amountBytes[:])
	h.Write(id.Bytes())
	h.Write([]byte{byte(switchType)})

	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	defer memzero.Zero32(&digest)

	var scalar btcec.ModNScalar
	scalar.SetBytes(&digest)
	defer scalar.Zero()
	if scalar.IsZero() {
		return out, ErrInvalidDerivedScalar
	}
	out = scalar.Bytes()
	return out, nil
}

// Commitment recomputes the Pedersen commitment of an owned output.
func (l *Ledger) Commitment(amount uint64, id Identifier) ([33]byte, error) {
	blind, err := l.BlindingFactor(amount, id, SwitchRegular)
	if err != nil {
		return [33]byte{}, err
	}
	defer memzero.Zero32(&blind)
	return l.secp.Commit(blind, amount)
}

// CommitAndProve derives the blinding factor for (amount, id), commits to it
// and generates the rewindable range proof. The returned blinding factor is
// owned by the caller, who must erase it when done.
func (l *Ledger) CommitAndProve(amount uint64, id Identifier) (
	commit [33]byte, proof []byte, blind [32]byte, err error,
) {
	blind, err = l.BlindingFactor(amount, id, SwitchRegular)
	if err != nil {
		return
	}
	commit, err = l.secp.Commit(blind, amount)
	if err != nil {
		memzero.Zero32(&blind)
		return
	}

	rewindNonce, err := l.proofs.RewindNonce(commit)
	if err != nil {
		memzero.Zero32(&blind)
		return
	}
	defer memzero.Zero32(&rewindNonce)
	privateNonce, err := l.proofs.PrivateNonce(commit)
	if err != nil {
		memzero.Zero32(&blind)
		return
	}
	defer memzero.Zero32(&privateNonce)

	proof, err = l.secp.RangeProof(
		amount, blind, commit,
		rewindNonce, privateNonce,
		ProofMessage(id, SwitchRegular),
	)
	if err != nil {
		memzero.Zero32(&blind)
		err = fmt.Errorf("generating range proof: %w", err)
		return
	}
	return
}

// RewindOutput recovers the value and derivation identifier of an owned
// output from its commitment and range proof.
func (l *Ledger) RewindOutput(commit [33]byte, proof []byte) (
	uint64, Identifier, error,
) {
	rewindNonce, err := l.proofs.RewindNonce(commit)
	if err != nil {
		return 0, Identifier{}, err
	}
	defer memzero.Zero32(&rewindNonce)

	value, message, err := l.secp.RewindRangeProof(commit, proof, rewindNonce)
	if err != nil {
		return 0, Identifier{}, err
	}
	id, _, err := ParseProofMessage(message)
	if err != nil {
		return 0, Identifier{}, err
	}
	return value, id, nil
}

// BlindSum sums blinding factors with sign: positives minus negatives.
//
// Kernel-excess arithmetic depends on this exact ordering: the excess is
// BlindSum(outputBlinds, inputBlinds), and the signing secret is then
// BlindSum([excess], [offset]).
func (l *Ledger) BlindSum(positives, negatives [][32]byte) ([32]byte, error) {
	sum, err := l.secp.BlindSum(positives, negatives)
	if err != nil {
		return [32]byte{}, fmt.Errorf("summing blinding factors: %w", err)
	}
	return sum, nil
}
