package secp

import "errors"

var (
	// ErrInvalidScalar ...
	ErrInvalidScalar = errors.New("value is not a valid secp256k1 scalar")
	// ErrInvalidPoint ...
	ErrInvalidPoint = errors.New("value is not a valid secp256k1 point")
	// ErrInvalidSignature ...
	ErrInvalidSignature = errors.New("signature does not verify")
	// ErrInvalidRangeProof ...
	ErrInvalidRangeProof = errors.New("range proof does not verify")
)

const (
	// SecretKeySize is the size of a secret scalar in bytes.
	SecretKeySize = 32
	// PublicKeySize is the size of a compressed public key in bytes.
	PublicKeySize = 33
	// CommitmentSize is the size of a serialized Pedersen commitment in bytes.
	CommitmentSize = 33
	// SignatureSize is the size of an aggregated Schnorr signature in bytes.
	SignatureSize = 64
	// RangeProofMaxSize is the upper bound on a serialized bulletproof.
	RangeProofMaxSize = 675
	// ProofMessageSize is the size of the message embedded in a range proof.
	ProofMessageSize = 20
)

// Secp is the elliptic-curve capability the wallet engine is built on:
// Pedersen commitments, blinding-factor arithmetic, bulletproof range proofs
// and aggregated (two-party) Schnorr signatures over secp256k1.
//
// The engine never touches curve arithmetic directly; an implementation of
// this interface is passed into every component constructor. Implementations
// must not retain or log any secret material passed to them.
type Secp interface {
	// Commit computes the Pedersen commitment value*H + blind*G.
	Commit(blind [32]byte, value uint64) ([33]byte, error)

	// CommitSum adds the positive commitments and subtracts the negative
	// ones, returning the resulting commitment.
	CommitSum(positives, negatives [][33]byte) ([33]byte, error)

	// CommitmentToPublicKey reinterprets a commitment as a compressed
	// public key on the same curve point.
	CommitmentToPublicKey(commit [33]byte) ([33]byte, error)

	// BlindSum sums blinding factors, positives minus negatives, modulo the
	// group order. It fails with ErrInvalidScalar if any input is out of
	// range or the result reduces to zero.
	BlindSum(positives, negatives [][32]byte) ([32]byte, error)

	// IsValidSecretKey reports whether key is a canonical non-zero scalar.
	IsValidSecretKey(key [32]byte) bool

	// PublicKeyFromSecretKey computes key*G in compressed form.
	PublicKeyFromSecretKey(key [32]byte) ([33]byte, error)

	// PublicKeySum adds the given compressed public keys.
	PublicKeySum(keys ...[33]byte) ([33]byte, error)

	// CreateSecureNonce returns a fresh signing nonce scalar.
	CreateSecureNonce() ([32]byte, error)

	// RangeProof proves that the amount committed to by commit lies in
	// [0, 2^64). rewindNonce makes the proof rewindable by the owner,
	// privateNonce blinds the prover randomness, and message is embedded
	// in the proof for wallet recovery (ProofMessageSize bytes).
	RangeProof(
		value uint64, blind [32]byte, commit [33]byte,
		rewindNonce, privateNonce [32]byte, message []byte,
	) ([]byte, error)

	// VerifyRangeProof checks proof against commit.
	VerifyRangeProof(commit [33]byte, proof []byte) error

	// RewindRangeProof recovers the committed value and embedded message
	// from a proof generated with the given rewind nonce.
	RewindRangeProof(
		commit [33]byte, proof []byte, rewindNonce [32]byte,
	) (uint64, []byte, error)

	// SignPartial computes one party's share of the aggregated Schnorr
	// signature over msg, using the party's secret key and nonce and the
	// sums of all parties' public nonces and public keys.
	SignPartial(
		secKey, secNonce [32]byte,
		nonceSum, pubKeySum [33]byte,
		msg [32]byte,
	) ([64]byte, error)

	// AggregateSignatures combines partial signatures into the final
	// signature for the given public nonce sum.
	AggregateSignatures(partials [][64]byte, nonceSum [33]byte) ([64]byte, error)

	// VerifyAggregate checks an aggregated signature against the sum of
	// all parties' public keys.
	VerifyAggregate(sig [64]byte, pubKeySum [33]byte, msg [32]byte) error
}
