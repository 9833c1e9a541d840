package keychain

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha512"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/vulpemventures/go-bip39"
	"golang.org/x/crypto/blake2b"

	"github.com/slatewallet/slatewallet/pkg/memzero"
	"github.com/slatewallet/slatewallet/pkg/secp"
)

var (
	// ErrKeyDerivation ...
	ErrKeyDerivation = errors.New("malformed seed material")
	// ErrInvalidMnemonic ...
	ErrInvalidMnemonic = fmt.Errorf("%w: mnemonic is invalid", ErrKeyDerivation)
	// ErrInvalidDerivedScalar ...
	ErrInvalidDerivedScalar = fmt.Errorf("%w: derived scalar is invalid", ErrKeyDerivation)
	// ErrInvalidSlatepackAddress ...
	ErrInvalidSlatepackAddress = errors.New("invalid slatepack address")
)

// SlatepackAddressHRP is the bech32 human-readable prefix of slatepack
// addresses.
const SlatepackAddressHRP = "grin"

// hmacDerivationKey is the fixed HMAC-SHA512 key the extended private key is
// derived with, matching the Grin keychain.
var hmacDerivationKey = []byte("IamVoldemort")

// addressKeyIdentifier is the fixed sub-path the Ed25519 address key is
// derived at.
var addressKeyIdentifier = Identifier{Depth: 3, Path: [MaxIdentifierDepth]uint32{0, 1, 0}}

// WalletKeys is the deterministic keypair set of a wallet session. Secret
// fields must be erased with Erase once the session ends.
type WalletKeys struct {
	SecretKey          [32]byte
	PublicKey          [33]byte
	ExtendedPrivateKey [64]byte // secret key followed by chain code
	AddressKey         [32]byte // Ed25519 seed of the slatepack address key
	SlatepackAddress   string
}

// DeriveFromMnemonicOpts is the struct given to the DeriveFromMnemonic method.
type DeriveFromMnemonicOpts struct {
	Mnemonic string
}

func (o DeriveFromMnemonicOpts) validate() error {
	if len(o.Mnemonic) <= 0 {
		return ErrInvalidMnemonic
	}
	// IsMnemonicValid only checks word count and wordlist membership;
	// recovering the entropy also verifies the checksum word.
	if _, err := bip39.EntropyFromMnemonic(o.Mnemonic); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMnemonic, err)
	}
	return nil
}

// DeriveFromMnemonic derives the full wallet keypair set from a BIP39
// mnemonic. The derivation is deterministic: the same mnemonic always yields
// the same keys.
func DeriveFromMnemonic(s secp.Secp, opts DeriveFromMnemonicOpts) (*WalletKeys, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	seed := bip39.NewSeed(opts.Mnemonic, "")
	defer memzero.Zero(seed)

	mac := hmac.New(sha512.New, hmacDerivationKey)
	mac.Write(seed)
	extended := mac.Sum(nil)
	defer memzero.Zero(extended)

	var extKey [64]byte
	copy(extKey[:], extended)
	return RestoreFromExtendedKey(s, RestoreFromExtendedKeyOpts{
		ExtendedPrivateKey: extKey,
	})
}

// RestoreFromExtendedKeyOpts is the struct given to the
// RestoreFromExtendedKey method.
type RestoreFromExtendedKeyOpts struct {
	ExtendedPrivateKey [64]byte
}

// RestoreFromExtendedKey rebuilds the wallet keypair set from a stored
// extended private key, skipping the mnemonic step. Used to restore a
// session without re-entering the seed phrase.
func RestoreFromExtendedKey(s secp.Secp, opts RestoreFromExtendedKeyOpts) (*WalletKeys, error) {
	var secretKey [32]byte
	copy(secretKey[:], opts.ExtendedPrivateKey[:32])
	if !s.IsValidSecretKey(secretKey) {
		memzero.Zero32(&secretKey)
		return nil, ErrInvalidDerivedScalar
	}

	publicKey, err := s.PublicKeyFromSecretKey(secretKey)
	if err != nil {
		memzero.Zero32(&secretKey)
		return nil, fmt.Errorf("%w: %v", ErrKeyDerivation, err)
	}

	addressKey, err := deriveAddressKey(opts.ExtendedPrivateKey)
	if err != nil {
		memzero.Zero32(&secretKey)
		return nil, err
	}

	addressPub := ed25519.NewKeyFromSeed(addressKey[:]).Public().(ed25519.PublicKey)
	slatepackAddress, err := EncodeSlatepackAddress(addressPub)
	if err != nil {
		memzero.Zero32(&secretKey)
		memzero.Zero32(&addressKey)
		return nil, err
	}

	return &WalletKeys{
		SecretKey:          secretKey,
		PublicKey:          publicKey,
		ExtendedPrivateKey: opts.ExtendedPrivateKey,
		AddressKey:         addressKey,
		SlatepackAddress:   slatepackAddress,
	}, nil
}

// Erase zeroes all secret key material. The keys must not be used afterwards.
func (k *WalletKeys) Erase() {
	memzero.Zero32(&k.SecretKey)
	memzero.Zero64(&k.ExtendedPrivateKey)
	memzero.Zero32(&k.AddressKey)
}

// AddressPublicKey returns the Ed25519 public key behind the slatepack
// address.
func (k *WalletKeys) AddressPublicKey() ed25519.PublicKey {
	return ed25519.NewKeyFromSeed(k.AddressKey[:]).Public().(ed25519.PublicKey)
}

func (k *WalletKeys) chainCode() []byte {
	return k.ExtendedPrivateKey[32:]
}

// deriveAddressKey derives the Ed25519 address key seed at the fixed
// sub-index from the extended private key.
func deriveAddressKey(extKey [64]byte) ([32]byte, error) {
	var out [32]byte
	child, err := childScalar(extKey, addressKeyIdentifier)
	if err != nil {
		return out, err
	}
	defer memzero.Zero32(&child)

	h, err := blake2b.New256(nil)
	if err != nil {
		return out, err
	}
	h.Write(child[:])
	copy(out[:], h.Sum(nil))
	return out, nil
}

// childScalar derives a child secret scalar keyed by the chain code over the
// root secret and the identifier path.
func childScalar(extKey [64]byte, id Identifier) ([32]byte, error) {
	var out [32]byte
	h, err := blake2b.New256(extKey[32:])
	if err != nil {
		return out, err
	}
	h.Write(extKey[:32])
	h.Write(id.Bytes())
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

// EncodeSlatepackAddress bech32-encodes an Ed25519 public key with the grin
// prefix.
func EncodeSlatepackAddress(pub ed25519.PublicKey) (string, error) {
	if len(pub) != ed25519.PublicKeySize {
		return "", ErrInvalidSlatepackAddress
	}
	converted, err := bech32.ConvertBits(pub, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSlatepackAddress, err)
	}
	addr, err := bech32.Encode(SlatepackAddressHRP, converted)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSlatepackAddress, err)
	}
	return addr, nil
}

// DecodeSlatepackAddress is the inverse of EncodeSlatepackAddress.
func DecodeSlatepackAddress(addr string) (ed25519.PublicKey, error) {
	hrp, data, err := bech32.Decode(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSlatepackAddress, err)
	}
	if hrp != SlatepackAddressHRP {
		return nil, ErrInvalidSlatepackAddress
	}
	converted, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSlatepackAddress, err)
	}
	if len(converted) != ed25519.PublicKeySize {
		return nil, ErrInvalidSlatepackAddress
	}
	return ed25519.PublicKey(converted), nil
}
