// Package softsecp implements the secp capability on top of the pure-Go
// btcec scalar and point arithmetic. Commitments, blinding-factor sums and
// aggregated Schnorr signatures use real group math; range proofs are
// deterministic opaque blobs that only the owning wallet can rewind and that
// are checked structurally, not zero-knowledge. It exists so the protocol
// engine and its tests run without cgo. Do not broadcast transactions built
// with this backend to a real network.
package softsecp

import (
	"bytes"
	"crypto/rand"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/slatewallet/slatewallet/pkg/memzero"
	"github.com/slatewallet/slatewallet/pkg/secp"
)

const proofSize = secp.RangeProofMaxSize

// Softsecp implements secp.Secp. The zero value is not usable, use New.
type Softsecp struct{}

// New returns a pure-Go secp capability.
func New() *Softsecp {
	return &Softsecp{}
}

var (
	hGenOnce sync.Once
	hGen     btcec.JacobianPoint
)

// generatorH returns a second curve generator with unknown discrete log
// relative to G, derived nothing-up-my-sleeve by hashing a fixed tag until
// the digest is a valid x coordinate.
func generatorH() *btcec.JacobianPoint {
	hGenOnce.Do(func() {
		seed := []byte("softsecp value generator H")
		for ctr := uint32(0); ; ctr++ {
			var buf bytes.Buffer
			buf.Write(seed)
			binary.Write(&buf, binary.BigEndian, ctr)
			digest := blake2b.Sum256(buf.Bytes())

			candidate := make([]byte, 33)
			candidate[0] = 0x02
			copy(candidate[1:], digest[:])
			pub, err := btcec.ParsePubKey(candidate)
			if err != nil {
				continue
			}
			pub.AsJacobian(&hGen)
			return
		}
	})
	return &hGen
}

func scalarFromBytes(b [32]byte) (*btcec.ModNScalar, error) {
	var s btcec.ModNScalar
	if overflow := s.SetBytes(&b); overflow != 0 {
		return nil, secp.ErrInvalidScalar
	}
	return &s, nil
}

func serializePoint(p *btcec.JacobianPoint) ([33]byte, error) {
	var out [33]byte
	if (p.X.IsZero() && p.Y.IsZero()) || p.Z.IsZero() {
		return out, secp.ErrInvalidPoint
	}
	p.ToAffine()
	pub := btcec.NewPublicKey(&p.X, &p.Y)
	copy(out[:], pub.SerializeCompressed())
	return out, nil
}

func parsePoint(b [33]byte) (*btcec.JacobianPoint, error) {
	pub, err := btcec.ParsePubKey(b[:])
	if err != nil {
		return nil, secp.ErrInvalidPoint
	}
	var p btcec.JacobianPoint
	pub.AsJacobian(&p)
	return &p, nil
}

// Commitments are serialized like compressed public keys but tagged with the
// 0x08/0x09 prefix pair used by the libsecp256k1-zkp wire format.
func commitFromPoint(p *btcec.JacobianPoint) ([33]byte, error) {
	out, err := serializePoint(p)
	if err != nil {
		return out, err
	}
	out[0] += 0x06
	return out, nil
}

func pointFromCommit(c [33]byte) (*btcec.JacobianPoint, error) {
	if c[0] != 0x08 && c[0] != 0x09 {
		return nil, secp.ErrInvalidPoint
	}
	c[0] -= 0x06
	return parsePoint(c)
}

// Commit computes value*H + blind*G.
func (s *Softsecp) Commit(blind [32]byte, value uint64) ([33]byte, error) {
	var zero [33]byte

	blindScalar, err := scalarFromBytes(blind)
	if err != nil {
		return zero, err
	}
	defer blindScalar.Zero()

	var valueBytes [32]byte
	binary.BigEndian.PutUint64(valueBytes[24:], value)
	valueScalar, _ := scalarFromBytes(valueBytes)

	var blindPart, valuePart, sum btcec.JacobianPoint
	btcec.ScalarBaseMultNonConst(blindScalar, &blindPart)
	btcec.ScalarMultNonConst(valueScalar, generatorH(), &valuePart)
	btcec.AddNonConst(&blindPart, &valuePart, &sum)

	return commitFromPoint(&sum)
}

// CommitSum adds the positive commitments and subtracts the negative ones.
func (s *Softsecp) CommitSum(positives, negatives [][33]byte) ([33]byte, error) {
	var zero [33]byte
	var acc btcec.JacobianPoint
	havePoint := false

	add := func(c [33]byte, negate bool) error {
		p, err := pointFromCommit(c)
		if err != nil {
			return err
		}
		if negate {
			p.Y.Negate(1).Normalize()
		}
		if !havePoint {
			acc = *p
			havePoint = true
			return nil
		}
		var next btcec.JacobianPoint
		btcec.AddNonConst(&acc, p, &next)
		acc = next
		return nil
	}

	for _, c := range positives {
		if err := add(c, false); err != nil {
			return zero, err
		}
	}
	for _, c := range negatives {
		if err := add(c, true); err != nil {
			return zero, err
		}
	}
	if !havePoint {
		return zero, secp.ErrInvalidPoint
	}
	return commitFromPoint(&acc)
}

// CommitmentToPublicKey reinterprets a commitment as a compressed public key.
func (s *Softsecp) CommitmentToPublicKey(commit [33]byte) ([33]byte, error) {
	var zero [33]byte
	if commit[0] != 0x08 && commit[0] != 0x09 {
		return zero, secp.ErrInvalidPoint
	}
	out := commit
	out[0] -= 0x06
	if _, err := btcec.ParsePubKey(out[:]); err != nil {
		return zero, secp.ErrInvalidPoint
	}
	return out, nil
}

// BlindSum sums blinding factors, positives minus negatives.
func (s *Softsecp) BlindSum(positives, negatives [][32]byte) ([32]byte, error) {
	var zero [32]byte
	var acc btcec.ModNScalar
	defer acc.Zero()

	for _, b := range positives {
		term, err := scalarFromBytes(b)
		if err != nil {
			return zero, err
		}
		acc.Add(term)
		term.Zero()
	}
	for _, b := range negatives {
		term, err := scalarFromBytes(b)
		if err != nil {
			return zero, err
		}
		term.Negate()
		acc.Add(term)
		term.Zero()
	}
	if acc.IsZero() {
		return zero, secp.ErrInvalidScalar
	}
	return acc.Bytes(), nil
}

// IsValidSecretKey reports whether key is a canonical non-zero scalar.
func (s *Softsecp) IsValidSecretKey(key [32]byte) bool {
	var k btcec.ModNScalar
	defer k.Zero()
	if overflow := k.SetBytes(&key); overflow != 0 {
		return false
	}
	return !k.IsZero()
}

// PublicKeyFromSecretKey computes key*G.
func (s *Softsecp) PublicKeyFromSecretKey(key [32]byte) ([33]byte, error) {
	var zero [33]byte
	k, err := scalarFromBytes(key)
	if err != nil {
		return zero, err
	}
	defer k.Zero()
	if k.IsZero() {
		return zero, secp.ErrInvalidScalar
	}
	var p btcec.JacobianPoint
	btcec.ScalarBaseMultNonConst(k, &p)
	return serializePoint(&p)
}

// PublicKeySum adds compressed public keys.
func (s *Softsecp) PublicKeySum(keys ...[33]byte) ([33]byte, error) {
	var zero [33]byte
	if len(keys) == 0 {
		return zero, secp.ErrInvalidPoint
	}
	acc, err := parsePoint(keys[0])
	if err != nil {
		return zero, err
	}
	for _, k := range keys[1:] {
		p, err := parsePoint(k)
		if err != nil {
			return zero, err
		}
		var next btcec.JacobianPoint
		btcec.AddNonConst(acc, p, &next)
		*acc = next
	}
	return serializePoint(acc)
}

// CreateSecureNonce returns a fresh random scalar from crypto/rand.
func (s *Softsecp) CreateSecureNonce() ([32]byte, error) {
	var nonce [32]byte
	for {
		if _, err := rand.Read(nonce[:]); err != nil {
			return nonce, err
		}
		if s.IsValidSecretKey(nonce) {
			return nonce, nil
		}
	}
}

// challenge derives the Schnorr challenge scalar binding the nonce sum, the
// public key sum and the kernel message.
func challenge(nonceSum, pubKeySum [33]byte, msg [32]byte) *btcec.ModNScalar {
	h, _ := blake2b.New256(nil)
	h.Write(nonceSum[:])
	h.Write(pubKeySum[:])
	h.Write(msg[:])
	var digest [32]byte
	copy(digest[:], h.Sum(nil))

	var e btcec.ModNScalar
	e.SetBytes(&digest)
	return &e
}

// SignPartial computes s_i = k_i + e*x_i with e bound to the aggregate nonce
// and key sums. The partial is serialized as e || s_i.
func (s *Softsecp) SignPartial(
	secKey, secNonce [32]byte,
	nonceSum, pubKeySum [33]byte,
	msg [32]byte,
) ([64]byte, error) {
	var sig [64]byte

	x, err := scalarFromBytes(secKey)
	if err != nil {
		return sig, err
	}
	defer x.Zero()
	k, err := scalarFromBytes(secNonce)
	if err != nil {
		return sig, err
	}
	defer k.Zero()
	if x.IsZero() || k.IsZero() {
		return sig, secp.ErrInvalidScalar
	}

	e := challenge(nonceSum, pubKeySum, msg)
	var si btcec.ModNScalar
	si.Set(e)
	si.Mul(x)
	si.Add(k)
	defer si.Zero()

	eBytes := e.Bytes()
	siBytes := si.Bytes()
	copy(sig[:32], eBytes[:])
	copy(sig[32:], siBytes[:])
	memzero.Zero32(&siBytes)
	return sig, nil
}

// AggregateSignatures sums the partial signatures. All partials must carry
// the same challenge, which requires them to have been produced against the
// same nonce and key sums.
func (s *Softsecp) AggregateSignatures(
	partials [][64]byte, nonceSum [33]byte,
) ([64]byte, error) {
	var sig [64]byte
	if len(partials) == 0 {
		return sig, secp.ErrInvalidSignature
	}
	if _, err := parsePoint(nonceSum); err != nil {
		return sig, err
	}

	var e [32]byte
	copy(e[:], partials[0][:32])
	var acc btcec.ModNScalar
	for _, part := range partials {
		if !bytes.Equal(part[:32], e[:]) {
			return sig, secp.ErrInvalidSignature
		}
		var sb [32]byte
		copy(sb[:], part[32:])
		term, err := scalarFromBytes(sb)
		if err != nil {
			return sig, err
		}
		acc.Add(term)
		term.Zero()
	}

	sBytes := acc.Bytes()
	copy(sig[:32], e[:])
	copy(sig[32:], sBytes[:])
	return sig, nil
}

// VerifyAggregate checks s*G - e*P against the challenge embedded in sig.
func (s *Softsecp) VerifyAggregate(
	sig [64]byte, pubKeySum [33]byte, msg [32]byte,
) error {
	var eBytes, sBytes [32]byte
	copy(eBytes[:], sig[:32])
	copy(sBytes[:], sig[32:])

	e, err := scalarFromBytes(eBytes)
	if err != nil {
		return secp.ErrInvalidSignature
	}
	sv, err := scalarFromBytes(sBytes)
	if err != nil {
		return secp.ErrInvalidSignature
	}

	pub, err := parsePoint(pubKeySum)
	if err != nil {
		return err
	}

	// R' = s*G - e*P; sig is valid iff the challenge recomputed over R'
	// matches the embedded one.
	var sG, eP, rPrime btcec.JacobianPoint
	btcec.ScalarBaseMultNonConst(sv, &sG)
	negE := *e
	negE.Negate()
	btcec.ScalarMultNonConst(&negE, pub, &eP)
	btcec.AddNonConst(&sG, &eP, &rPrime)

	rSer, err := serializePoint(&rPrime)
	if err != nil {
		return secp.ErrInvalidSignature
	}
	expected := challenge(rSer, pubKeySum, msg).Bytes()
	if subtle.ConstantTimeCompare(expected[:], eBytes[:]) != 1 {
		return secp.ErrInvalidSignature
	}
	return nil
}

// Range proof layout:
//
//	[0:8]    value, xored with the rewind keystream
//	[8:28]   embedded message, xored with the rewind keystream
//	[28:60]  integrity tag keyed by the rewind nonce
//	[60:]    deterministic filler
func keystream(rewindNonce [32]byte, commit [33]byte, n int) []byte {
	out := make([]byte, 0, n)
	for ctr := uint32(0); len(out) < n; ctr++ {
		h, _ := blake2b.New256(rewindNonce[:])
		h.Write(commit[:])
		var cb [4]byte
		binary.BigEndian.PutUint32(cb[:], ctr)
		h.Write(cb[:])
		out = append(out, h.Sum(nil)...)
	}
	return out[:n]
}

func proofTag(rewindNonce [32]byte, commit [33]byte, value uint64, message []byte) [32]byte {
	h, _ := blake2b.New256(rewindNonce[:])
	h.Write(commit[:])
	var vb [8]byte
	binary.BigEndian.PutUint64(vb[:], value)
	h.Write(vb[:])
	h.Write(message)
	var tag [32]byte
	copy(tag[:], h.Sum(nil))
	return tag
}

// RangeProof builds a deterministic opaque proof rewindable with rewindNonce.
func (s *Softsecp) RangeProof(
	value uint64, blind [32]byte, commit [33]byte,
	rewindNonce, privateNonce [32]byte, message []byte,
) ([]byte, error) {
	if len(message) > secp.ProofMessageSize {
		return nil, fmt.Errorf("proof message exceeds %d bytes", secp.ProofMessageSize)
	}
	if !s.IsValidSecretKey(blind) {
		return nil, secp.ErrInvalidScalar
	}

	msg := make([]byte, secp.ProofMessageSize)
	copy(msg, message)

	proof := make([]byte, proofSize)
	stream := keystream(rewindNonce, commit, proofSize)

	binary.BigEndian.PutUint64(proof[0:8], value)
	copy(proof[8:28], msg)
	for i := 0; i < 28; i++ {
		proof[i] ^= stream[i]
	}
	tag := proofTag(rewindNonce, commit, value, msg)
	copy(proof[28:60], tag[:])
	copy(proof[60:], stream[60:])
	return proof, nil
}

// VerifyRangeProof performs a structural check only: without the rewind
// nonce the blob carries no publicly verifiable statement.
func (s *Softsecp) VerifyRangeProof(commit [33]byte, proof []byte) error {
	if len(proof) != proofSize {
		return secp.ErrInvalidRangeProof
	}
	if _, err := pointFromCommit(commit); err != nil {
		return secp.ErrInvalidRangeProof
	}
	all := byte(0)
	for _, b := range proof {
		all |= b
	}
	if all == 0 {
		return secp.ErrInvalidRangeProof
	}
	return nil
}

// RewindRangeProof recovers the committed value and message.
func (s *Softsecp) RewindRangeProof(
	commit [33]byte, proof []byte, rewindNonce [32]byte,
) (uint64, []byte, error) {
	if len(proof) != proofSize {
		return 0, nil, secp.ErrInvalidRangeProof
	}
	stream := keystream(rewindNonce, commit, 28)
	head := make([]byte, 28)
	copy(head, proof[:28])
	for i := range head {
		head[i] ^= stream[i]
	}
	value := binary.BigEndian.Uint64(head[:8])
	message := head[8:28]

	tag := proofTag(rewindNonce, commit, value, message)
	if subtle.ConstantTimeCompare(tag[:], proof[28:60]) != 1 {
		return 0, nil, secp.ErrInvalidRangeProof
	}
	return value, message, nil
}

var _ secp.Secp = (*Softsecp)(nil)
