package slatepack

import (
	"errors"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"
	"golang.org/x/crypto/blake2b"
)

const (
	armorHeader = "BEGINSLATEPACK."
	armorFooter = "ENDSLATEPACK."

	// armorWordSize is the length of the character groups the base58 body
	// is split into, for manual transcription.
	armorWordSize = 15
	// armorWordsPerLine bounds the line width of the armored text.
	armorWordsPerLine = 200 / armorWordSize

	armorChecksumSize = 4
)

var (
	// ErrInvalidArmor ...
	ErrInvalidArmor = errors.New("malformed slatepack armor")
	// ErrArmorChecksum ...
	ErrArmorChecksum = errors.New("slatepack armor checksum mismatch")
)

func armorChecksum(payload []byte) []byte {
	digest := blake2b.Sum256(payload)
	return digest[:armorChecksumSize]
}

// Armor wraps a binary payload in the human-transferable slatepack framing:
// a checksummed base58 body split into fixed-size groups between the begin
// and end markers.
func Armor(payload []byte) string {
	body := base58.Encode(append(armorChecksum(payload), payload...))

	var sb strings.Builder
	sb.WriteString(armorHeader)
	for i := 0; i < len(body); i += armorWordSize {
		if i/armorWordSize%armorWordsPerLine == 0 {
			sb.WriteString("\n")
		} else {
			sb.WriteString(" ")
		}
		end := i + armorWordSize
		if end > len(body) {
			end = len(body)
		}
		sb.WriteString(body[i:end])
	}
	sb.WriteString(".\n")
	sb.WriteString(armorFooter)
	return sb.String()
}

// Dearmor is the inverse of Armor. It tolerates any whitespace arrangement
// between the markers, so payloads survive reflowing by chat clients and
// email software.
func Dearmor(armored string) ([]byte, error) {
	begin := strings.Index(armored, armorHeader)
	end := strings.Index(armored, armorFooter)
	if begin < 0 || end < 0 || end < begin {
		return nil, ErrInvalidArmor
	}

	body := armored[begin+len(armorHeader) : end]
	var sb strings.Builder
	for _, r := range body {
		switch {
		case r == ' ' || r == '\n' || r == '\r' || r == '\t' || r == '.':
		default:
			sb.WriteRune(r)
		}
	}
	if sb.Len() == 0 {
		return nil, ErrInvalidArmor
	}

	decoded := base58.Decode(sb.String())
	if len(decoded) < armorChecksumSize {
		return nil, ErrInvalidArmor
	}
	checksum, payload := decoded[:armorChecksumSize], decoded[armorChecksumSize:]
	if string(checksum) != string(armorChecksum(payload)) {
		return nil, ErrArmorChecksum
	}
	return payload, nil
}
