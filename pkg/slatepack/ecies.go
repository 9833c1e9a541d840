package slatepack

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"
	"io"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"github.com/slatewallet/slatewallet/pkg/memzero"
)

// ErrDecrypt ...
var ErrDecrypt = errors.New("slatepack payload cannot be decrypted")

// hkdfInfo domain-separates the key derivation from other X25519 uses.
var hkdfInfo = []byte("slatepack age")

// Encrypt seals a payload to the holder of the Ed25519 key behind a
// slatepack address. The recipient key is mapped to its birationally
// equivalent X25519 point and a fresh ephemeral keypair performs the
// Diffie-Hellman; the sealed layout is ephemeralPub || nonce || ciphertext.
func Encrypt(payload []byte, recipient ed25519.PublicKey) ([]byte, error) {
	recipientX, err := montgomeryPublicKey(recipient)
	if err != nil {
		return nil, err
	}

	var ephemeral [32]byte
	if _, err := io.ReadFull(rand.Reader, ephemeral[:]); err != nil {
		return nil, err
	}
	defer memzero.Zero32(&ephemeral)

	ephemeralPub, err := curve25519.X25519(ephemeral[:], curve25519.Basepoint)
	if err != nil {
		return nil, err
	}

	aead, err := sealingAEAD(ephemeral[:], recipientX, ephemeralPub)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0,
		len(ephemeralPub)+chacha20poly1305.NonceSize+len(payload)+aead.Overhead())
	out = append(out, ephemeralPub...)
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	out = append(out, nonce...)
	return aead.Seal(out, nonce, payload, nil), nil
}

// Decrypt opens a sealed payload with the Ed25519 seed of the wallet's
// address key.
func Decrypt(sealed []byte, addressKey [32]byte) ([]byte, error) {
	headerSize := curve25519.PointSize + chacha20poly1305.NonceSize
	if len(sealed) < headerSize+chacha20poly1305.Overhead {
		return nil, ErrDecrypt
	}
	ephemeralPub := sealed[:curve25519.PointSize]
	nonce := sealed[curve25519.PointSize:headerSize]
	ciphertext := sealed[headerSize:]

	scalar := montgomerySecretKey(addressKey)
	defer memzero.Zero32(&scalar)

	ownPub, err := curve25519.X25519(scalar[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}

	aead, err := decryptionAEAD(scalar[:], ephemeralPub, ownPub)
	if err != nil {
		return nil, err
	}
	payload, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return payload, nil
}

func sealingAEAD(ephemeral, recipientX, ephemeralPub []byte) (aead, error) {
	shared, err := curve25519.X25519(ephemeral, recipientX)
	if err != nil {
		return nil, fmt.Errorf("deriving shared secret: %w", err)
	}
	defer memzero.Zero(shared)
	return newAEAD(shared, ephemeralPub, recipientX)
}

func decryptionAEAD(scalar, ephemeralPub, ownPub []byte) (aead, error) {
	shared, err := curve25519.X25519(scalar, ephemeralPub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	defer memzero.Zero(shared)
	return newAEAD(shared, ephemeralPub, ownPub)
}

type aead interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	Overhead() int
}

// newAEAD derives the symmetric key with HKDF-SHA256 salted by both public
// halves of the exchange, binding the key to this exact pairing.
func newAEAD(shared, ephemeralPub, recipientX []byte) (aead, error) {
	salt := make([]byte, 0, len(ephemeralPub)+len(recipientX))
	salt = append(salt, ephemeralPub...)
	salt = append(salt, recipientX...)

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, salt, hkdfInfo), key); err != nil {
		return nil, err
	}
	defer memzero.Zero(key)
	return chacha20poly1305.New(key)
}

// montgomeryPublicKey converts an Ed25519 public key to its X25519
// counterpart on the birationally equivalent Montgomery curve.
func montgomeryPublicKey(pub ed25519.PublicKey) ([]byte, error) {
	point, err := new(edwards25519.Point).SetBytes(pub)
	if err != nil {
		return nil, fmt.Errorf("converting recipient key: %w", err)
	}
	return point.BytesMontgomery(), nil
}

// montgomerySecretKey derives the X25519 scalar matching an Ed25519 seed,
// so that the converted public keys agree.
func montgomerySecretKey(seed [32]byte) [32]byte {
	digest := sha512.Sum512(seed[:])
	var scalar [32]byte
	copy(scalar[:], digest[:32])
	scalar[0] &= 248
	scalar[31] &= 127
	scalar[31] |= 64
	memzero.Zero(digest[:])
	return scalar
}
