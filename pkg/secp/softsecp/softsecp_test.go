package softsecp_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/slatewallet/slatewallet/pkg/secp"
	"github.com/slatewallet/slatewallet/pkg/secp/softsecp"
)

func scalar(last byte) [32]byte {
	var out [32]byte
	out[31] = last
	return out
}

func TestCommitIsHomomorphic(t *testing.T) {
	s := softsecp.New()

	a, err := s.Commit(scalar(3), 100)
	require.NoError(t, err)
	b, err := s.Commit(scalar(5), 250)
	require.NoError(t, err)
	sum, err := s.Commit(scalar(8), 350)
	require.NoError(t, err)

	combined, err := s.CommitSum([][33]byte{a, b}, nil)
	require.NoError(t, err)
	require.Equal(t, sum, combined)

	// Subtracting one addend gives back the other.
	back, err := s.CommitSum([][33]byte{sum}, [][33]byte{b})
	require.NoError(t, err)
	require.Equal(t, a, back)
}

func TestCommitmentSerialization(t *testing.T) {
	s := softsecp.New()

	commit, err := s.Commit(scalar(7), 42)
	require.NoError(t, err)
	require.Contains(t, []byte{0x08, 0x09}, commit[0])

	pub, err := s.CommitmentToPublicKey(commit)
	require.NoError(t, err)
	require.Contains(t, []byte{0x02, 0x03}, pub[0])

	var garbage [33]byte
	garbage[0] = 0x04
	_, err = s.CommitmentToPublicKey(garbage)
	require.ErrorIs(t, err, secp.ErrInvalidPoint)
}

func TestCommitmentToPublicKeyMatchesZeroValue(t *testing.T) {
	s := softsecp.New()

	// A zero-value commitment is blind*G, so its public-key form must
	// equal the public key of the blind.
	blind := scalar(11)
	commit, err := s.Commit(blind, 0)
	require.NoError(t, err)

	fromCommit, err := s.CommitmentToPublicKey(commit)
	require.NoError(t, err)
	fromKey, err := s.PublicKeyFromSecretKey(blind)
	require.NoError(t, err)
	require.Equal(t, fromKey, fromCommit)
}

func TestBlindSum(t *testing.T) {
	s := softsecp.New()

	sum, err := s.BlindSum([][32]byte{scalar(10)}, [][32]byte{scalar(4)})
	require.NoError(t, err)
	require.Equal(t, scalar(6), sum)

	// Negative results wrap on the scalar group; adding back recovers the
	// original.
	wrapped, err := s.BlindSum([][32]byte{scalar(4)}, [][32]byte{scalar(10)})
	require.NoError(t, err)
	back, err := s.BlindSum([][32]byte{wrapped, scalar(10)}, nil)
	require.NoError(t, err)
	require.Equal(t, scalar(4), back)
}

func TestIsValidSecretKey(t *testing.T) {
	s := softsecp.New()

	require.True(t, s.IsValidSecretKey(scalar(1)))
	require.False(t, s.IsValidSecretKey([32]byte{}))

	var overflow [32]byte
	for i := range overflow {
		overflow[i] = 0xff
	}
	require.False(t, s.IsValidSecretKey(overflow))
}

func TestCreateSecureNonce(t *testing.T) {
	s := softsecp.New()

	a, err := s.CreateSecureNonce()
	require.NoError(t, err)
	b, err := s.CreateSecureNonce()
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.True(t, s.IsValidSecretKey(a))
}

func TestTwoPartyAggregateSignature(t *testing.T) {
	s := softsecp.New()
	msg := [32]byte{0xab, 0xcd}

	key1, key2 := scalar(21), scalar(42)
	nonce1, nonce2 := scalar(5), scalar(9)

	pub1, err := s.PublicKeyFromSecretKey(key1)
	require.NoError(t, err)
	pub2, err := s.PublicKeyFromSecretKey(key2)
	require.NoError(t, err)
	pubNonce1, err := s.PublicKeyFromSecretKey(nonce1)
	require.NoError(t, err)
	pubNonce2, err := s.PublicKeyFromSecretKey(nonce2)
	require.NoError(t, err)

	nonceSum, err := s.PublicKeySum(pubNonce1, pubNonce2)
	require.NoError(t, err)
	keySum, err := s.PublicKeySum(pub1, pub2)
	require.NoError(t, err)

	part1, err := s.SignPartial(key1, nonce1, nonceSum, keySum, msg)
	require.NoError(t, err)
	part2, err := s.SignPartial(key2, nonce2, nonceSum, keySum, msg)
	require.NoError(t, err)

	sig, err := s.AggregateSignatures([][64]byte{part1, part2}, nonceSum)
	require.NoError(t, err)
	require.NoError(t, s.VerifyAggregate(sig, keySum, msg))

	// A single partial does not verify against the aggregate key.
	half, err := s.AggregateSignatures([][64]byte{part1}, nonceSum)
	require.NoError(t, err)
	require.ErrorIs(t, s.VerifyAggregate(half, keySum, msg), secp.ErrInvalidSignature)

	// Neither does the full signature over a different message.
	otherMsg := [32]byte{0x01}
	require.ErrorIs(t, s.VerifyAggregate(sig, keySum, otherMsg), secp.ErrInvalidSignature)
}

func TestAggregateSignaturesRejectsMixedChallenges(t *testing.T) {
	s := softsecp.New()

	key, nonce := scalar(3), scalar(4)
	pub, err := s.PublicKeyFromSecretKey(key)
	require.NoError(t, err)
	pubNonce, err := s.PublicKeyFromSecretKey(nonce)
	require.NoError(t, err)

	part1, err := s.SignPartial(key, nonce, pubNonce, pub, [32]byte{1})
	require.NoError(t, err)
	part2, err := s.SignPartial(key, nonce, pubNonce, pub, [32]byte{2})
	require.NoError(t, err)

	_, err = s.AggregateSignatures([][64]byte{part1, part2}, pubNonce)
	require.ErrorIs(t, err, secp.ErrInvalidSignature)
}

func TestRangeProofRewind(t *testing.T) {
	s := softsecp.New()

	blind := scalar(77)
	value := uint64(123_456_789)
	commit, err := s.Commit(blind, value)
	require.NoError(t, err)

	rewindNonce, privateNonce := scalar(1), scalar(2)
	message := []byte{0, 1, 3, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 9}

	proof, err := s.RangeProof(value, blind, commit, rewindNonce, privateNonce, message)
	require.NoError(t, err)
	require.Len(t, proof, secp.RangeProofMaxSize)
	require.NoError(t, s.VerifyRangeProof(commit, proof))

	gotValue, gotMessage, err := s.RewindRangeProof(commit, proof, rewindNonce)
	require.NoError(t, err)
	require.Equal(t, value, gotValue)
	require.Equal(t, message, gotMessage)

	// The wrong nonce rewinds to garbage and fails the tag check.
	_, _, err = s.RewindRangeProof(commit, proof, scalar(99))
	require.ErrorIs(t, err, secp.ErrInvalidRangeProof)
}

func TestVerifyRangeProofRejectsMalformed(t *testing.T) {
	s := softsecp.New()

	commit, err := s.Commit(scalar(1), 1)
	require.NoError(t, err)

	require.ErrorIs(t, s.VerifyRangeProof(commit, []byte{1, 2, 3}), secp.ErrInvalidRangeProof)
	require.ErrorIs(t,
		s.VerifyRangeProof(commit, make([]byte, secp.RangeProofMaxSize)),
		secp.ErrInvalidRangeProof)

	var badCommit [33]byte
	require.ErrorIs(t,
		s.VerifyRangeProof(badCommit, make([]byte, secp.RangeProofMaxSize)),
		secp.ErrInvalidRangeProof)
}
