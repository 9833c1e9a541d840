package slatepack_test

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/slatewallet/slatewallet/pkg/keychain"
	"github.com/slatewallet/slatewallet/pkg/secp/softsecp"
	"github.com/slatewallet/slatewallet/pkg/slate"
	"github.com/slatewallet/slatewallet/pkg/slatepack"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon " +
	"abandon abandon abandon abandon abandon about"

func testSlate(t *testing.T, state slate.State) *slate.Slate {
	t.Helper()

	var offset [32]byte
	offset[31] = 9
	var excess, nonce [33]byte
	excess[0], nonce[0] = 0x02, 0x03
	excess[32], nonce[32] = 0xaa, 0xbb
	sig := [64]byte{1, 2, 3}

	var inCommit, outCommit [33]byte
	inCommit[0], outCommit[0] = 0x08, 0x09
	inCommit[1], outCommit[1] = 0x11, 0x22

	sl := &slate.Slate{
		ID:         uuid.New(),
		State:      state,
		Amount:     1_000_000_000,
		Fee:        23_000_000,
		Height:     1234,
		LockHeight: 0,
		Offset:     offset,
		Inputs: []slate.Input{
			{Features: slate.FeaturePlain, Commitment: inCommit},
		},
		Outputs: []slate.Output{
			{
				Features:   slate.FeaturePlain,
				Commitment: outCommit,
				Proof:      []byte{0xde, 0xad, 0xbe, 0xef},
			},
		},
		Participants: []slate.Participant{
			{PublicBlindExcess: excess, PublicNonce: nonce},
			{PublicBlindExcess: nonce, PublicNonce: excess, PartSig: &sig},
		},
	}
	if state == slate.StateStandard3 || state == slate.StateInvoice3 {
		kernelSig := [64]byte{7, 7, 7}
		sl.KernelExcess = excess
		sl.KernelSignature = &kernelSig
	}
	return sl
}

func TestBinaryRoundTrip(t *testing.T) {
	for _, state := range []slate.State{
		slate.StateStandard2, slate.StateStandard3,
		slate.StateInvoice2, slate.StateInvoice3,
	} {
		t.Run(state.String(), func(t *testing.T) {
			sl := testSlate(t, state)
			payload, err := slatepack.EncodeBinary(sl)
			require.NoError(t, err)

			decoded, err := slatepack.DecodeBinary(payload)
			require.NoError(t, err)
			require.Equal(t, sl, decoded)
		})
	}
}

func TestBinaryCompactsInitialSlates(t *testing.T) {
	for _, state := range []slate.State{slate.StateStandard1, slate.StateInvoice1} {
		t.Run(state.String(), func(t *testing.T) {
			sl := testSlate(t, state)
			payload, err := slatepack.EncodeBinary(sl)
			require.NoError(t, err)

			decoded, err := slatepack.DecodeBinary(payload)
			require.NoError(t, err)
			require.Empty(t, decoded.Inputs)
			require.Empty(t, decoded.Outputs)
			require.Equal(t, sl.ID, decoded.ID)
			require.Equal(t, sl.Amount, decoded.Amount)
			require.Len(t, decoded.Participants, 2)
		})
	}
}

func TestDecodeBinaryRejectsTruncation(t *testing.T) {
	payload, err := slatepack.EncodeBinary(testSlate(t, slate.StateStandard2))
	require.NoError(t, err)

	for _, n := range []int{0, 10, 21, len(payload) - 1} {
		_, err := slatepack.DecodeBinary(payload[:n])
		require.ErrorIs(t, err, slatepack.ErrTruncatedSlate, "length %d", n)
	}

	_, err = slatepack.DecodeBinary(append(payload, 0x00))
	require.ErrorIs(t, err, slatepack.ErrTruncatedSlate)
}

func TestSwitchFlow(t *testing.T) {
	pairs := map[slate.State]slate.State{
		slate.StateStandard1: slate.StateInvoice1,
		slate.StateStandard2: slate.StateInvoice2,
		slate.StateStandard3: slate.StateInvoice3,
	}
	for from, to := range pairs {
		sl := testSlate(t, from)
		payload, err := slatepack.EncodeBinary(sl)
		require.NoError(t, err)
		original := append([]byte(nil), payload...)

		require.NoError(t, slatepack.SwitchFlow(payload))
		switched, err := slatepack.DecodeBinary(payload)
		require.NoError(t, err)
		require.Equal(t, to, switched.State)

		// The conversion touches nothing but the state byte and undoes
		// itself.
		diff := 0
		for i := range payload {
			if payload[i] != original[i] {
				diff++
			}
		}
		require.Equal(t, 1, diff)

		require.NoError(t, slatepack.SwitchFlow(payload))
		require.Equal(t, original, payload)
	}
}

func TestSwitchFlowRejectsShortPayload(t *testing.T) {
	require.ErrorIs(t, slatepack.SwitchFlow(make([]byte, 20)), slatepack.ErrTruncatedSlate)
}

func TestArmorRoundTrip(t *testing.T) {
	payload := []byte("pedersen commitments all the way down")

	armored := slatepack.Armor(payload)
	require.True(t, strings.HasPrefix(armored, "BEGINSLATEPACK."))
	require.True(t, strings.HasSuffix(armored, "ENDSLATEPACK."))

	recovered, err := slatepack.Dearmor(armored)
	require.NoError(t, err)
	require.Equal(t, payload, recovered)
}

func TestDearmorSurvivesReflow(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03, 0xff, 0x00, 0x7f}
	armored := slatepack.Armor(payload)

	reflowed := strings.ReplaceAll(armored, " ", "\r\n\t  ")
	recovered, err := slatepack.Dearmor(reflowed)
	require.NoError(t, err)
	require.Equal(t, payload, recovered)
}

func TestDearmorRejectsCorruption(t *testing.T) {
	armored := slatepack.Armor([]byte("payload"))

	t.Run("missing markers", func(t *testing.T) {
		_, err := slatepack.Dearmor("not a slatepack at all")
		require.ErrorIs(t, err, slatepack.ErrInvalidArmor)
	})

	t.Run("flipped character", func(t *testing.T) {
		body := strings.Index(armored, "\n") + 3
		corrupted := armored[:body] + flipBase58(armored[body:body+1]) + armored[body+1:]
		_, err := slatepack.Dearmor(corrupted)
		require.Error(t, err)
	})
}

func flipBase58(s string) string {
	if s == "2" {
		return "3"
	}
	return "2"
}

func TestEncryptedRoundTrip(t *testing.T) {
	s := softsecp.New()
	keys, err := keychain.DeriveFromMnemonic(s, keychain.DeriveFromMnemonicOpts{
		Mnemonic: testMnemonic,
	})
	require.NoError(t, err)

	sl := testSlate(t, slate.StateStandard2)
	armored, err := slatepack.Encode(sl, keys.AddressPublicKey())
	require.NoError(t, err)

	decoded, err := slatepack.Decode(armored, keys.AddressKey, nil)
	require.NoError(t, err)
	require.Equal(t, sl, decoded)
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	s := softsecp.New()
	keys, err := keychain.DeriveFromMnemonic(s, keychain.DeriveFromMnemonicOpts{
		Mnemonic: testMnemonic,
	})
	require.NoError(t, err)

	armored, err := slatepack.Encode(testSlate(t, slate.StateStandard2), keys.AddressPublicKey())
	require.NoError(t, err)

	var wrongKey [32]byte
	wrongKey[0] = 0x42
	_, err = slatepack.Decode(armored, wrongKey, nil)
	require.ErrorIs(t, err, slatepack.ErrDecrypt)
}

func TestDecodeMergesInitialSlate(t *testing.T) {
	initial := testSlate(t, slate.StateStandard1)

	armored, err := slatepack.EncodePlain(initial)
	require.NoError(t, err)

	decoded, err := slatepack.DecodePlain(armored, initial)
	require.NoError(t, err)
	require.Equal(t, initial.Inputs, decoded.Inputs)
	require.Equal(t, initial.Outputs, decoded.Outputs)
}

func TestDecodeRejectsForeignSlate(t *testing.T) {
	initial := testSlate(t, slate.StateStandard1)
	other := testSlate(t, slate.StateStandard1)

	armored, err := slatepack.EncodePlain(other)
	require.NoError(t, err)

	_, err = slatepack.DecodePlain(armored, initial)
	var mismatch *slate.SlateIDMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, initial.ID, mismatch.Expected)
	require.Equal(t, other.ID, mismatch.Actual)
}
