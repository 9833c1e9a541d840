// Package zkp implements the secp capability with the libsecp256k1-zkp
// bindings, providing real bulletproof range proofs and the aggregated
// signature scheme used by the Grin network. It requires cgo.
package zkp

import (
	"crypto/rand"
	"fmt"

	secp256k1 "github.com/olegabu/go-secp256k1-zkp"

	"github.com/slatewallet/slatewallet/pkg/memzero"
	"github.com/slatewallet/slatewallet/pkg/secp"
)

// Zkp implements secp.Secp over a libsecp256k1-zkp context.
type Zkp struct {
	ctx *secp256k1.Context
}

// New creates a signing+verification context. Callers should Close it when
// the session ends.
func New() (*Zkp, error) {
	ctx, err := secp256k1.ContextCreate(secp256k1.ContextBoth)
	if err != nil {
		return nil, fmt.Errorf("creating secp256k1-zkp context: %w", err)
	}
	return &Zkp{ctx: ctx}, nil
}

// Close destroys the underlying context.
func (z *Zkp) Close() {
	if z.ctx != nil {
		secp256k1.ContextDestroy(z.ctx)
		z.ctx = nil
	}
}

// Commit computes the Pedersen commitment value*H + blind*G.
func (z *Zkp) Commit(blind [32]byte, value uint64) ([33]byte, error) {
	var out [33]byte
	commit, err := secp256k1.Commit(
		z.ctx, blind[:], value, &secp256k1.GeneratorH, &secp256k1.GeneratorG,
	)
	if err != nil {
		return out, secp.ErrInvalidScalar
	}
	data, err := secp256k1.CommitmentSerialize(z.ctx, commit)
	if err != nil {
		return out, secp.ErrInvalidPoint
	}
	copy(out[:], data[:])
	return out, nil
}

func (z *Zkp) parseCommits(serialized [][33]byte) ([]*secp256k1.Commitment, error) {
	commits := make([]*secp256k1.Commitment, 0, len(serialized))
	for _, c := range serialized {
		commit, err := secp256k1.CommitmentParse(z.ctx, c[:])
		if err != nil {
			return nil, secp.ErrInvalidPoint
		}
		commits = append(commits, commit)
	}
	return commits, nil
}

// CommitSum adds the positive commitments and subtracts the negative ones.
func (z *Zkp) CommitSum(positives, negatives [][33]byte) ([33]byte, error) {
	var out [33]byte
	pos, err := z.parseCommits(positives)
	if err != nil {
		return out, err
	}
	neg, err := z.parseCommits(negatives)
	if err != nil {
		return out, err
	}
	sum, err := secp256k1.CommitSum(z.ctx, pos, neg)
	if err != nil {
		return out, secp.ErrInvalidPoint
	}
	data, err := secp256k1.CommitmentSerialize(z.ctx, sum)
	if err != nil {
		return out, secp.ErrInvalidPoint
	}
	copy(out[:], data[:])
	return out, nil
}

// CommitmentToPublicKey reinterprets a commitment as a public key.
func (z *Zkp) CommitmentToPublicKey(commit [33]byte) ([33]byte, error) {
	var out [33]byte
	c, err := secp256k1.CommitmentParse(z.ctx, commit[:])
	if err != nil {
		return out, secp.ErrInvalidPoint
	}
	pub, err := secp256k1.CommitmentToPublicKey(z.ctx, c)
	if err != nil {
		return out, secp.ErrInvalidPoint
	}
	return z.serializePubKey(pub)
}

func (z *Zkp) serializePubKey(pub *secp256k1.PublicKey) ([33]byte, error) {
	var out [33]byte
	res, data, err := secp256k1.EcPubkeySerialize(z.ctx, pub, secp256k1.EcCompressed)
	if res != 1 || err != nil {
		return out, secp.ErrInvalidPoint
	}
	copy(out[:], data)
	return out, nil
}

func (z *Zkp) parsePubKey(data [33]byte) (*secp256k1.PublicKey, error) {
	res, pub, err := secp256k1.EcPubkeyParse(z.ctx, data[:])
	if res != 1 || err != nil {
		return nil, secp.ErrInvalidPoint
	}
	return pub, nil
}

// BlindSum sums blinding factors, positives minus negatives.
func (z *Zkp) BlindSum(positives, negatives [][32]byte) ([32]byte, error) {
	var out [32]byte
	pos := make([][]byte, 0, len(positives))
	for i := range positives {
		pos = append(pos, positives[i][:])
	}
	neg := make([][]byte, 0, len(negatives))
	for i := range negatives {
		neg = append(neg, negatives[i][:])
	}
	sum, err := secp256k1.BlindSum(z.ctx, pos, neg)
	if err != nil {
		return out, secp.ErrInvalidScalar
	}
	copy(out[:], sum[:])
	memzero.Zero(sum[:])
	if !z.IsValidSecretKey(out) {
		memzero.Zero32(&out)
		return out, secp.ErrInvalidScalar
	}
	return out, nil
}

// IsValidSecretKey reports whether key is a canonical non-zero scalar.
func (z *Zkp) IsValidSecretKey(key [32]byte) bool {
	return secp256k1.EcSeckeyVerify(z.ctx, key[:]) == 1
}

// PublicKeyFromSecretKey computes key*G.
func (z *Zkp) PublicKeyFromSecretKey(key [32]byte) ([33]byte, error) {
	var out [33]byte
	res, pub, err := secp256k1.EcPubkeyCreate(z.ctx, key[:])
	if res != 1 || err != nil {
		return out, secp.ErrInvalidScalar
	}
	return z.serializePubKey(pub)
}

// PublicKeySum adds the given public keys.
func (z *Zkp) PublicKeySum(keys ...[33]byte) ([33]byte, error) {
	var out [33]byte
	pubs := make([]*secp256k1.PublicKey, 0, len(keys))
	for _, k := range keys {
		pub, err := z.parsePubKey(k)
		if err != nil {
			return out, err
		}
		pubs = append(pubs, pub)
	}
	res, sum, err := secp256k1.EcPubkeyCombine(z.ctx, pubs)
	if res != 1 || err != nil {
		return out, secp.ErrInvalidPoint
	}
	return z.serializePubKey(sum)
}

// CreateSecureNonce returns a fresh signing nonce.
func (z *Zkp) CreateSecureNonce() ([32]byte, error) {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return seed, err
	}
	nonce, err := secp256k1.AggsigGenerateSecureNonce(z.ctx, seed[:])
	if err != nil {
		return seed, fmt.Errorf("generating secure nonce: %w", err)
	}
	return nonce, nil
}

// RangeProof generates a single-commitment bulletproof.
func (z *Zkp) RangeProof(
	value uint64, blind [32]byte, commit [33]byte,
	rewindNonce, privateNonce [32]byte, message []byte,
) ([]byte, error) {
	msg := make([]byte, secp.ProofMessageSize)
	copy(msg, message)
	proof, err := secp256k1.BulletproofRangeproofProveSingle(
		z.ctx, nil, nil,
		value, blind[:], rewindNonce[:], privateNonce[:], nil, msg,
	)
	if err != nil {
		return nil, secp.ErrInvalidScalar
	}
	return proof, nil
}

// VerifyRangeProof checks a bulletproof against its commitment.
func (z *Zkp) VerifyRangeProof(commit [33]byte, proof []byte) error {
	c, err := secp256k1.CommitmentParse(z.ctx, commit[:])
	if err != nil {
		return secp.ErrInvalidPoint
	}
	if err := secp256k1.BulletproofRangeproofVerifySingle(
		z.ctx, nil, nil, proof, c, nil,
	); err != nil {
		return secp.ErrInvalidRangeProof
	}
	return nil
}

// RewindRangeProof recovers the committed value and embedded message.
func (z *Zkp) RewindRangeProof(
	commit [33]byte, proof []byte, rewindNonce [32]byte,
) (uint64, []byte, error) {
	c, err := secp256k1.CommitmentParse(z.ctx, commit[:])
	if err != nil {
		return 0, nil, secp.ErrInvalidPoint
	}
	value, _, message, err := secp256k1.BulletproofRangeproofRewind(
		z.ctx, c, proof, rewindNonce[:],
	)
	if err != nil {
		return 0, nil, secp.ErrInvalidRangeProof
	}
	return value, message, nil
}

// SignPartial computes one party's share of the aggregated signature.
func (z *Zkp) SignPartial(
	secKey, secNonce [32]byte,
	nonceSum, pubKeySum [33]byte,
	msg [32]byte,
) ([64]byte, error) {
	var out [64]byte
	noncePub, err := z.parsePubKey(nonceSum)
	if err != nil {
		return out, err
	}
	keyPub, err := z.parsePubKey(pubKeySum)
	if err != nil {
		return out, err
	}
	sig, err := secp256k1.AggsigSignPartial(
		z.ctx, secKey[:], secNonce[:], noncePub, keyPub, msg[:],
	)
	if err != nil {
		return out, secp.ErrInvalidScalar
	}
	data := secp256k1.AggsigSignaturePartialSerialize(&sig)
	copy(out[:], data[:])
	return out, nil
}

// AggregateSignatures combines partial signatures.
func (z *Zkp) AggregateSignatures(
	partials [][64]byte, nonceSum [33]byte,
) ([64]byte, error) {
	var out [64]byte
	noncePub, err := z.parsePubKey(nonceSum)
	if err != nil {
		return out, err
	}
	parts := make([]*secp256k1.AggsigSignaturePartial, 0, len(partials))
	for i := range partials {
		part, err := secp256k1.AggsigSignaturePartialParse(partials[i][:])
		if err != nil {
			return out, secp.ErrInvalidSignature
		}
		parts = append(parts, &part)
	}
	sig, err := secp256k1.AggsigAddSignaturesSingle(z.ctx, parts, noncePub)
	if err != nil {
		return out, secp.ErrInvalidSignature
	}
	data, err := secp256k1.AggsigSignatureSerialize(z.ctx, &sig)
	if err != nil {
		return out, secp.ErrInvalidSignature
	}
	copy(out[:], data[:])
	return out, nil
}

// VerifyAggregate checks a finalized aggregated signature.
func (z *Zkp) VerifyAggregate(
	sig [64]byte, pubKeySum [33]byte, msg [32]byte,
) error {
	parsed, err := secp256k1.AggsigSignatureParse(z.ctx, sig[:])
	if err != nil {
		return secp.ErrInvalidSignature
	}
	pub, err := z.parsePubKey(pubKeySum)
	if err != nil {
		return err
	}
	if err := secp256k1.AggsigVerifySingle(
		z.ctx, parsed, msg[:], nil, pub, pub, nil, false,
	); err != nil {
		return secp.ErrInvalidSignature
	}
	return nil
}

var _ secp.Secp = (*Zkp)(nil)
