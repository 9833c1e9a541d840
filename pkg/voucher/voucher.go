// Package voucher implements bearer-spendable outputs: an output funded by
// a regular self-transaction whose blinding factor is handed over together
// with the amount, so whoever holds the voucher can sweep it without any
// interaction with the issuer.
package voucher

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/google/uuid"

	"github.com/slatewallet/slatewallet/pkg/coinselect"
	"github.com/slatewallet/slatewallet/pkg/keychain"
	"github.com/slatewallet/slatewallet/pkg/memzero"
	"github.com/slatewallet/slatewallet/pkg/secp"
	"github.com/slatewallet/slatewallet/pkg/slate"
)

// encodingVersion tags the base58 serialization of a voucher.
const encodingVersion byte = 1

// minBinarySize is the serialized size of a voucher with an empty proof.
const minBinarySize = 16 + 8 + secp.CommitmentSize + secp.SecretKeySize +
	keychain.IdentifierSize + 2

// ErrMalformedVoucher ...
var ErrMalformedVoucher = errors.New("malformed voucher encoding")

// InvalidVoucherError is returned when a voucher's blinding factor does not
// open its commitment.
type InvalidVoucherError struct {
	Commitment [33]byte
}

func (e *InvalidVoucherError) Error() string {
	return fmt.Sprintf(
		"voucher blind does not open commitment %x", e.Commitment,
	)
}

// Voucher is the bearer secret. Anyone holding it can spend the committed
// amount, so it must be treated like cash in transit.
type Voucher struct {
	// FundingSlateID identifies the self-transaction that created the
	// output.
	FundingSlateID uuid.UUID
	Amount         uint64
	Commitment     [33]byte
	Blind          [32]byte
	// Identifier is the issuer's derivation path for the funded output.
	Identifier keychain.Identifier
	// Proof is the output's range proof, carried so the claimant can
	// check the committed amount before sweeping.
	Proof []byte
}

// Erase zeroes the bearer secret.
func (v *Voucher) Erase() {
	memzero.Zero32(&v.Blind)
}

// Encode serializes the voucher to a checksummed base58 string for manual
// transfer.
func (v *Voucher) Encode() string {
	var buf bytes.Buffer
	id, _ := v.FundingSlateID.MarshalBinary()
	buf.Write(id)
	var amount [8]byte
	binary.BigEndian.PutUint64(amount[:], v.Amount)
	buf.Write(amount[:])
	buf.Write(v.Commitment[:])
	buf.Write(v.Blind[:])
	buf.Write(v.Identifier.Bytes())
	var proofLen [2]byte
	binary.BigEndian.PutUint16(proofLen[:], uint16(len(v.Proof)))
	buf.Write(proofLen[:])
	buf.Write(v.Proof)
	return base58.CheckEncode(buf.Bytes(), encodingVersion)
}

// Decode is the inverse of Encode.
func Decode(encoded string) (*Voucher, error) {
	data, version, err := base58.CheckDecode(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedVoucher, err)
	}
	if version != encodingVersion {
		return nil, fmt.Errorf("%w: version %d", ErrMalformedVoucher, version)
	}
	if len(data) < minBinarySize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedVoucher, len(data))
	}

	v := &Voucher{}
	if err := v.FundingSlateID.UnmarshalBinary(data[:16]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedVoucher, err)
	}
	v.Amount = binary.BigEndian.Uint64(data[16:24])
	pos := 24
	copy(v.Commitment[:], data[pos:pos+secp.CommitmentSize])
	pos += secp.CommitmentSize
	copy(v.Blind[:], data[pos:pos+secp.SecretKeySize])
	pos += secp.SecretKeySize

	id, err := keychain.ParseIdentifier(data[pos : pos+keychain.IdentifierSize])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedVoucher, err)
	}
	v.Identifier = id
	pos += keychain.IdentifierSize

	proofLen := int(binary.BigEndian.Uint16(data[pos : pos+2]))
	pos += 2
	if proofLen > secp.RangeProofMaxSize || len(data) != pos+proofLen {
		return nil, fmt.Errorf("%w: %d proof bytes", ErrMalformedVoucher, proofLen)
	}
	if proofLen > 0 {
		v.Proof = make([]byte, proofLen)
		copy(v.Proof, data[pos:])
	}
	return v, nil
}

// Scheme issues and redeems vouchers over a wallet's slate engine.
type Scheme struct {
	secp   secp.Secp
	engine *slate.Engine
}

// NewScheme builds a voucher scheme over the given capability and engine.
func NewScheme(s secp.Secp, engine *slate.Engine) *Scheme {
	return &Scheme{secp: s, engine: engine}
}

// CreateOpts is the struct given to the Create method.
type CreateOpts struct {
	Amount uint64
	Fee    uint64
	Height uint64
	Inputs []slate.SpendableOutput
	// OutputIdentifier is the derivation for the voucher output.
	OutputIdentifier keychain.Identifier
	ChangeIdentifier keychain.Identifier
}

func (o CreateOpts) validate() error {
	// The claimant pays at least the one-input one-output fee to sweep.
	if sweepFee := coinselect.Fee(1, 1, 1); o.Amount <= sweepFee {
		return &coinselect.InsufficientBalanceError{
			Have: o.Amount, Need: sweepFee + 1,
		}
	}
	return nil
}

// Create funds a voucher with a finalized self-transaction and returns the
// bearer secret alongside the funding slate to broadcast. The voucher
// output is unspendable by anyone until the funding transaction confirms.
func (s *Scheme) Create(opts CreateOpts) (*Voucher, *slate.Slate, error) {
	if err := opts.validate(); err != nil {
		return nil, nil, err
	}

	funding, output, blind, err := s.engine.SelfSend(slate.SelfSendOpts{
		Amount:           opts.Amount,
		Fee:              opts.Fee,
		Height:           opts.Height,
		Inputs:           opts.Inputs,
		OutputIdentifier: opts.OutputIdentifier,
		ChangeIdentifier: opts.ChangeIdentifier,
	})
	if err != nil {
		return nil, nil, err
	}

	return &Voucher{
		FundingSlateID: funding.ID,
		Amount:         opts.Amount,
		Commitment:     output.Commitment,
		Blind:          blind,
		Identifier:     opts.OutputIdentifier,
		Proof:          output.Proof,
	}, funding, nil
}

// ClaimOpts is the struct given to the Claim method.
type ClaimOpts struct {
	Voucher *Voucher
	Fee     uint64
	Height  uint64
	// OutputIdentifier is the derivation the swept amount lands on.
	OutputIdentifier keychain.Identifier
}

// Claim validates the bearer secret against the voucher commitment and
// sweeps the output into this wallet with a self-finalized transaction.
func (s *Scheme) Claim(opts ClaimOpts) (*slate.Slate, error) {
	v := opts.Voucher
	if v == nil {
		return nil, ErrMalformedVoucher
	}
	if v.Amount <= opts.Fee {
		return nil, &coinselect.InsufficientBalanceError{
			Have: v.Amount, Need: opts.Fee + 1,
		}
	}

	if !s.secp.IsValidSecretKey(v.Blind) {
		return nil, &InvalidVoucherError{Commitment: v.Commitment}
	}
	commit, err := s.secp.Commit(v.Blind, v.Amount)
	if err != nil || commit != v.Commitment {
		return nil, &InvalidVoucherError{Commitment: v.Commitment}
	}
	if len(v.Proof) > 0 {
		if err := s.secp.VerifyRangeProof(v.Commitment, v.Proof); err != nil {
			return nil, &InvalidVoucherError{Commitment: v.Commitment}
		}
	}

	return s.engine.SpendBearer(slate.SpendBearerOpts{
		InputCommitment:  v.Commitment,
		InputBlind:       v.Blind,
		Amount:           v.Amount,
		Fee:              opts.Fee,
		Height:           opts.Height,
		OutputIdentifier: opts.OutputIdentifier,
	})
}
