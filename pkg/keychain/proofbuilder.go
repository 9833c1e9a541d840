package keychain

import (
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/slatewallet/slatewallet/pkg/memzero"
	"github.com/slatewallet/slatewallet/pkg/secp"
)

// ErrProofBuilderUninitialized ...
var ErrProofBuilderUninitialized = errors.New("proof builder has been uninitialized")

// SwitchType selects the blinding-factor switch commitment mode an output
// was derived with.
type SwitchType byte

const (
	// SwitchNone derives the plain blinding factor.
	SwitchNone SwitchType = 0
	// SwitchRegular derives the switch-committed blinding factor and is
	// the default for wallet outputs.
	SwitchRegular SwitchType = 1
)

// ProofBuilder derives the deterministic, rewindable nonces used for every
// range proof of a wallet. Both hashes are derived once from the extended
// private key so the same wallet can later rewind its own proofs.
type ProofBuilder struct {
	privateHash [32]byte
	rewindHash  [32]byte
	initialized bool
}

// NewProofBuilder seeds a proof builder from the wallet keys.
func NewProofBuilder(keys *WalletKeys) *ProofBuilder {
	pb := &ProofBuilder{initialized: true}
	pb.privateHash = proofBuilderHash(keys.ExtendedPrivateKey, "rangeproof private hash")
	pb.rewindHash = proofBuilderHash(keys.ExtendedPrivateKey, "rangeproof rewind hash")
	return pb
}

func proofBuilderHash(extKey [64]byte, tag string) [32]byte {
	h, _ := blake2b.New256(extKey[:])
	h.Write([]byte(tag))
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// RewindNonce derives the rewind nonce for a commitment.
func (p *ProofBuilder) RewindNonce(commit [33]byte) ([32]byte, error) {
	return p.nonce(p.rewindHash, commit)
}

// PrivateNonce derives the private prover nonce for a commitment.
func (p *ProofBuilder) PrivateNonce(commit [33]byte) ([32]byte, error) {
	return p.nonce(p.privateHash, commit)
}

func (p *ProofBuilder) nonce(hash [32]byte, commit [33]byte) ([32]byte, error) {
	var out [32]byte
	if !p.initialized {
		return out, ErrProofBuilderUninitialized
	}
	h, err := blake2b.New256(hash[:])
	if err != nil {
		return out, err
	}
	h.Write(commit[:])
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

// ProofMessage builds the message embedded in a range proof so the wallet
// can recover the output's derivation on rewind.
func ProofMessage(id Identifier, switchType SwitchType) []byte {
	msg := make([]byte, secp.ProofMessageSize)
	msg[1] = byte(switchType)
	copy(msg[2:], id.Bytes())
	return msg
}

// ParseProofMessage recovers the identifier and switch type embedded by
// ProofMessage.
func ParseProofMessage(msg []byte) (Identifier, SwitchType, error) {
	if len(msg) != secp.ProofMessageSize || msg[0] != 0 {
		return Identifier{}, SwitchNone, ErrInvalidIdentifier
	}
	id, err := ParseIdentifier(msg[2 : 2+IdentifierSize])
	if err != nil {
		return Identifier{}, SwitchNone, err
	}
	return id, SwitchType(msg[1]), nil
}

// Uninitialize erases the derived hashes. The builder cannot be used again.
func (p *ProofBuilder) Uninitialize() {
	memzero.Zero32(&p.privateHash)
	memzero.Zero32(&p.rewindHash)
	p.initialized = false
}
