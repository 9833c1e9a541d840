package slatepack

import (
	"crypto/ed25519"

	"github.com/slatewallet/slatewallet/pkg/slate"
)

// Encode serializes, seals and armors a slate for the holder of the given
// slatepack address key. Initial slates go out compacted; the omitted
// inputs and outputs are restored from the local session on the way back.
func Encode(sl *slate.Slate, recipient ed25519.PublicKey) (string, error) {
	payload, err := EncodeBinary(sl)
	if err != nil {
		return "", err
	}
	sealed, err := Encrypt(payload, recipient)
	if err != nil {
		return "", err
	}
	return Armor(sealed), nil
}

// EncodePlain armors a slate without encryption, for transports that are
// already confidential.
func EncodePlain(sl *slate.Slate) (string, error) {
	payload, err := EncodeBinary(sl)
	if err != nil {
		return "", err
	}
	return Armor(payload), nil
}

// Decode dearmors, opens and parses a slatepack. When initial is the
// locally retained counterpart of the same exchange, its identifier is
// checked against the incoming slate and the inputs and outputs dropped by
// compaction are merged back in.
func Decode(armored string, addressKey [32]byte, initial *slate.Slate) (*slate.Slate, error) {
	sealed, err := Dearmor(armored)
	if err != nil {
		return nil, err
	}
	payload, err := Decrypt(sealed, addressKey)
	if err != nil {
		return nil, err
	}
	return decodeAndMerge(payload, initial)
}

// DecodePlain is the counterpart of EncodePlain.
func DecodePlain(armored string, initial *slate.Slate) (*slate.Slate, error) {
	payload, err := Dearmor(armored)
	if err != nil {
		return nil, err
	}
	return decodeAndMerge(payload, initial)
}

func decodeAndMerge(payload []byte, initial *slate.Slate) (*slate.Slate, error) {
	sl, err := DecodeBinary(payload)
	if err != nil {
		return nil, err
	}
	if initial != nil {
		if sl.ID != initial.ID {
			return nil, &slate.SlateIDMismatchError{
				Expected: initial.ID, Actual: sl.ID,
			}
		}
		sl.Merge(initial)
	}
	return sl, nil
}
