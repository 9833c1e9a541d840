package slate

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/slatewallet/slatewallet/pkg/coinselect"
	"github.com/slatewallet/slatewallet/pkg/keychain"
	"github.com/slatewallet/slatewallet/pkg/memzero"
	"github.com/slatewallet/slatewallet/pkg/secp"
)

// SpendableOutput describes an owned output the engine may spend. The
// blinding factor is recomputed from the identifier, never stored.
type SpendableOutput struct {
	Identifier keychain.Identifier
	Value      uint64
	IsCoinbase bool
}

// Engine performs the slate state transitions for one wallet. All curve
// arithmetic goes through the injected capability, all blinding factors
// through the wallet's ledger.
type Engine struct {
	secp   secp.Secp
	ledger *keychain.Ledger
}

// NewEngine builds an engine over the given capability and ledger.
func NewEngine(s secp.Secp, ledger *keychain.Ledger) *Engine {
	return &Engine{secp: s, ledger: ledger}
}

// KernelMessage is the message the kernel signature commits to: the kernel
// features, the fee, and the lock height.
func KernelMessage(fee, lockHeight uint64) [32]byte {
	features := byte(0)
	if lockHeight > 0 {
		features = 2
	}
	var buf [17]byte
	buf[0] = features
	binary.BigEndian.PutUint64(buf[1:9], fee)
	binary.BigEndian.PutUint64(buf[9:17], lockHeight)
	return blake2b.Sum256(buf[:])
}

// inputEntries recomputes commitments and blinding factors for the outputs
// being spent. The returned blinds are owned by the caller.
func (e *Engine) inputEntries(outputs []SpendableOutput) (
	[]Input, [][32]byte, uint64, error,
) {
	inputs := make([]Input, 0, len(outputs))
	blinds := make([][32]byte, 0, len(outputs))
	var total uint64
	for _, out := range outputs {
		blind, err := e.ledger.BlindingFactor(
			out.Value, out.Identifier, keychain.SwitchRegular,
		)
		if err != nil {
			zeroBlinds(blinds)
			return nil, nil, 0, err
		}
		commit, err := e.secp.Commit(blind, out.Value)
		if err != nil {
			memzero.Zero32(&blind)
			zeroBlinds(blinds)
			return nil, nil, 0, err
		}
		features := FeaturePlain
		if out.IsCoinbase {
			features = FeatureCoinbase
		}
		inputs = append(inputs, Input{Features: features, Commitment: commit})
		blinds = append(blinds, blind)
		total += out.Value
	}
	return inputs, blinds, total, nil
}

func zeroBlinds(blinds [][32]byte) {
	for i := range blinds {
		memzero.Zero32(&blinds[i])
	}
}

// SendOpts is the struct given to the Send method.
type SendOpts struct {
	Amount     uint64
	Fee        uint64
	Height     uint64
	LockHeight uint64
	// Inputs are the outputs selected to fund the transaction.
	Inputs []SpendableOutput
	// ChangeIdentifier is the derivation for the change output, consumed
	// only when the inputs leave change.
	ChangeIdentifier keychain.Identifier
}

func (o SendOpts) validate() error {
	if o.Amount == 0 {
		return ErrZeroAmount
	}
	if len(o.Inputs) == 0 {
		return ErrEmptyInputs
	}
	var total uint64
	for _, in := range o.Inputs {
		total += in.Value
	}
	if total < o.Amount+o.Fee {
		return ErrInsufficientInputs
	}
	return nil
}

// Send performs the S1 transition: builds the initial slate with the
// sender's inputs and change output, and adds the sender as participant 0.
func (e *Engine) Send(opts SendOpts) (*Session, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	inputs, inputBlinds, total, err := e.inputEntries(opts.Inputs)
	if err != nil {
		return nil, err
	}
	defer zeroBlinds(inputBlinds)

	sl := &Slate{
		ID:         uuid.New(),
		State:      StateStandard1,
		Amount:     opts.Amount,
		Fee:        opts.Fee,
		Height:     opts.Height,
		LockHeight: opts.LockHeight,
		Inputs:     inputs,
	}

	outputBlinds := make([][32]byte, 0, 1)
	defer zeroBlinds(outputBlinds)
	if change := total - opts.Amount - opts.Fee; change > 0 {
		commit, proof, changeBlind, err := e.ledger.CommitAndProve(
			change, opts.ChangeIdentifier,
		)
		if err != nil {
			return nil, err
		}
		sl.Outputs = append(sl.Outputs, Output{
			Features:   FeaturePlain,
			Commitment: commit,
			Proof:      proof,
		})
		outputBlinds = append(outputBlinds, changeBlind)
	}

	session, err := e.addSigner(sl, outputBlinds, inputBlinds)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// addSigner computes the party's excess from its output and input blinds,
// draws a fresh random kernel offset contribution, adjusts the slate offset
// and appends the party as a new participant. Used by the sender at S1/I2
// and by the single party of self-finalized transactions.
func (e *Engine) addSigner(
	sl *Slate, outputBlinds, inputBlinds [][32]byte,
) (*Session, error) {
	excess, err := e.ledger.BlindSum(outputBlinds, inputBlinds)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero32(&excess)

	offsetPart, err := e.secp.CreateSecureNonce()
	if err != nil {
		return nil, err
	}
	defer memzero.Zero32(&offsetPart)

	// secretKey = excess - offsetPart; the slate offset absorbs the
	// random part so the kernel excess cannot be linked across
	// transactions.
	secretKey, err := e.ledger.BlindSum(
		[][32]byte{excess}, [][32]byte{offsetPart},
	)
	if err != nil {
		return nil, err
	}

	var zeroOffset [32]byte
	if sl.Offset == zeroOffset {
		sl.Offset = offsetPart
	} else {
		newOffset, err := e.ledger.BlindSum(
			[][32]byte{sl.Offset, offsetPart}, nil,
		)
		if err != nil {
			memzero.Zero32(&secretKey)
			return nil, err
		}
		sl.Offset = newOffset
	}

	return e.appendParticipant(sl, secretKey)
}

// appendParticipant draws a signing nonce and adds the participant entry
// for the given secret key. Ownership of secretKey moves to the returned
// session.
func (e *Engine) appendParticipant(sl *Slate, secretKey [32]byte) (*Session, error) {
	secretNonce, err := e.secp.CreateSecureNonce()
	if err != nil {
		memzero.Zero32(&secretKey)
		return nil, err
	}

	pubExcess, err := e.secp.PublicKeyFromSecretKey(secretKey)
	if err != nil {
		memzero.Zero32(&secretKey)
		memzero.Zero32(&secretNonce)
		return nil, err
	}
	pubNonce, err := e.secp.PublicKeyFromSecretKey(secretNonce)
	if err != nil {
		memzero.Zero32(&secretKey)
		memzero.Zero32(&secretNonce)
		return nil, err
	}

	sl.Participants = append(sl.Participants, Participant{
		PublicBlindExcess: pubExcess,
		PublicNonce:       pubNonce,
	})

	return &Session{
		Slate:         sl,
		SecretKey:     secretKey,
		SecretNonce:   secretNonce,
		ParticipantID: len(sl.Participants) - 1,
	}, nil
}

// ReceiveOpts is the struct given to the Receive method.
type ReceiveOpts struct {
	Slate *Slate
	// OutputIdentifier is the fresh derivation for the received amount.
	OutputIdentifier keychain.Identifier
}

func (o ReceiveOpts) validate() error {
	if o.Slate == nil {
		return ErrUnexpectedState
	}
	if o.Slate.State != StateStandard1 {
		return fmt.Errorf("%w: got %s, want S1", ErrUnexpectedState, o.Slate.State)
	}
	if o.Slate.Amount == 0 {
		return ErrZeroAmount
	}
	if len(o.Slate.Participants) != 1 {
		return ErrMissingParticipant
	}
	return nil
}

// Receive performs the S2 transition: adds the receiver's output and partial
// signature. The receiver signs with a fresh random scalar, not the output's
// blinding factor; the offset is adjusted as
//
//	newOffset = oldOffset - randomKey + outputBlind
//
// so the public kernel math still balances while the output blind stays
// independently rewindable by this wallet.
func (e *Engine) Receive(opts ReceiveOpts) (*Session, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	sl := opts.Slate.Clone()

	commit, proof, outputBlind, err := e.ledger.CommitAndProve(
		sl.Amount, opts.OutputIdentifier,
	)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero32(&outputBlind)

	sl.Outputs = append(sl.Outputs, Output{
		Features:   FeaturePlain,
		Commitment: commit,
		Proof:      proof,
	})

	randomKey, err := e.secp.CreateSecureNonce()
	if err != nil {
		return nil, err
	}

	newOffset, err := e.ledger.BlindSum(
		[][32]byte{sl.Offset, outputBlind}, [][32]byte{randomKey},
	)
	if err != nil {
		memzero.Zero32(&randomKey)
		return nil, err
	}
	sl.Offset = newOffset

	session, err := e.appendParticipant(sl, randomKey)
	if err != nil {
		return nil, err
	}

	if err := e.signParticipant(session); err != nil {
		session.Erase()
		return nil, err
	}

	sl.State = StateStandard2
	return session, nil
}

// signParticipant computes and attaches the session party's partial
// signature over the current participant sums.
func (e *Engine) signParticipant(session *Session) error {
	sl := session.Slate
	nonceSum, keySum, err := e.participantSums(sl)
	if err != nil {
		return err
	}

	msg := KernelMessage(sl.Fee, sl.LockHeight)
	partial, err := e.secp.SignPartial(
		session.SecretKey, session.SecretNonce, nonceSum, keySum, msg,
	)
	if err != nil {
		return fmt.Errorf("signing partial: %w", err)
	}
	sl.Participants[session.ParticipantID].PartSig = &partial
	return nil
}

func (e *Engine) participantSums(sl *Slate) (nonceSum, keySum [33]byte, err error) {
	if len(sl.Participants) == 0 {
		err = ErrMissingParticipant
		return
	}
	nonces := make([][33]byte, 0, len(sl.Participants))
	keys := make([][33]byte, 0, len(sl.Participants))
	for _, p := range sl.Participants {
		nonces = append(nonces, p.PublicNonce)
		keys = append(keys, p.PublicBlindExcess)
	}
	nonceSum, err = e.secp.PublicKeySum(nonces...)
	if err != nil {
		return
	}
	keySum, err = e.secp.PublicKeySum(keys...)
	return
}

// FinalizeOpts is the struct given to the Finalize method.
type FinalizeOpts struct {
	// Session is the sender's retained S1 session.
	Session *Session
	// Response is the receiver's S2 slate.
	Response *Slate
}

func (o FinalizeOpts) validate() error {
	if o.Session == nil || o.Session.Slate == nil || o.Response == nil {
		return ErrUnexpectedState
	}
	if o.Response.State != StateStandard2 {
		return fmt.Errorf("%w: got %s, want S2", ErrUnexpectedState, o.Response.State)
	}
	return nil
}

// Finalize performs the S3 transition: re-attaches the sender's inputs and
// change output that the compact wire format omitted, combines both partial
// signatures, and verifies the aggregate kernel. The error is not retriable;
// a slate failing verification must not be broadcast.
func (e *Engine) Finalize(opts FinalizeOpts) (*Slate, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return e.finalize(opts.Session, opts.Response, StateStandard3)
}

func (e *Engine) finalize(session *Session, response *Slate, final State) (*Slate, error) {
	if response.ID != session.Slate.ID {
		return nil, &SlateIDMismatchError{
			Expected: session.Slate.ID, Actual: response.ID,
		}
	}

	sl := response.Clone()
	sl.mergeFrom(session.Slate)

	if minFee := coinselect.Fee(len(sl.Inputs), len(sl.Outputs), 1); sl.Fee < minFee {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientFee, sl.Fee, minFee)
	}

	nonceSum, keySum, err := e.participantSums(sl)
	if err != nil {
		return nil, err
	}

	msg := KernelMessage(sl.Fee, sl.LockHeight)
	ownPartial, err := e.secp.SignPartial(
		session.SecretKey, session.SecretNonce, nonceSum, keySum, msg,
	)
	if err != nil {
		return nil, fmt.Errorf("signing partial: %w", err)
	}
	sl.Participants[session.ParticipantID].PartSig = &ownPartial

	partials := make([][64]byte, 0, len(sl.Participants))
	for _, p := range sl.Participants {
		if !p.Complete() {
			return nil, ErrMissingPartialSignature
		}
		partials = append(partials, *p.PartSig)
	}

	finalSig, err := e.secp.AggregateSignatures(partials, nonceSum)
	if err != nil {
		return nil, &KernelIncompleteError{Reason: err.Error()}
	}
	if err := e.secp.VerifyAggregate(finalSig, keySum, msg); err != nil {
		return nil, &KernelIncompleteError{
			Reason: "aggregate signature does not verify",
		}
	}
	if err := e.verifyKernelBalance(sl, keySum); err != nil {
		return nil, err
	}

	sl.KernelExcess = keySum
	sl.KernelSignature = &finalSig
	sl.State = final
	return sl, nil
}

// verifyKernelBalance checks the public kernel invariant
//
//	sum(outputs) - sum(inputs) + fee*H == excess + offset*G
//
// which holds exactly when excess = sum(outputBlinds) - sum(inputBlinds)
// - offset.
func (e *Engine) verifyKernelBalance(sl *Slate, excess [33]byte) error {
	feeCommit, err := e.secp.Commit([32]byte{}, sl.Fee)
	if err != nil {
		return &KernelIncompleteError{Reason: "committing to fee"}
	}

	positives := make([][33]byte, 0, len(sl.Outputs)+1)
	for _, out := range sl.Outputs {
		positives = append(positives, out.Commitment)
	}
	positives = append(positives, feeCommit)
	negatives := make([][33]byte, 0, len(sl.Inputs))
	for _, in := range sl.Inputs {
		negatives = append(negatives, in.Commitment)
	}

	lhsCommit, err := e.secp.CommitSum(positives, negatives)
	if err != nil {
		return &KernelIncompleteError{Reason: "summing commitments"}
	}
	lhs, err := e.secp.CommitmentToPublicKey(lhsCommit)
	if err != nil {
		return &KernelIncompleteError{Reason: "converting commitment sum"}
	}

	offsetPub, err := e.secp.PublicKeyFromSecretKey(sl.Offset)
	if err != nil {
		return &KernelIncompleteError{Reason: "deriving offset public key"}
	}
	rhs, err := e.secp.PublicKeySum(excess, offsetPub)
	if err != nil {
		return &KernelIncompleteError{Reason: "summing excess and offset"}
	}

	if lhs != rhs {
		return &KernelIncompleteError{Reason: "kernel excess does not balance"}
	}
	return nil
}

// InvoiceOpts is the struct given to the Invoice method.
type InvoiceOpts struct {
	Amount uint64
	Height uint64
	// OutputIdentifier is the derivation for the invoiced amount.
	OutputIdentifier keychain.Identifier
}

func (o InvoiceOpts) validate() error {
	if o.Amount == 0 {
		return ErrZeroAmount
	}
	return nil
}

// Invoice performs the I1 transition: the receiver proposes an amount and
// adds their output and participant entry. The fee stays zero until the
// payer, who knows the input count, sets it at I2. The receiver signs only
// at I3, once the fee is part of the kernel message.
func (e *Engine) Invoice(opts InvoiceOpts) (*Session, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	sl := &Slate{
		ID:     uuid.New(),
		State:  StateInvoice1,
		Amount: opts.Amount,
		Height: opts.Height,
	}

	commit, proof, outputBlind, err := e.ledger.CommitAndProve(
		sl.Amount, opts.OutputIdentifier,
	)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero32(&outputBlind)

	sl.Outputs = append(sl.Outputs, Output{
		Features:   FeaturePlain,
		Commitment: commit,
		Proof:      proof,
	})

	randomKey, err := e.secp.CreateSecureNonce()
	if err != nil {
		return nil, err
	}

	// Same sign convention as the standard-flow receiver, with the offset
	// starting from zero.
	offset, err := e.ledger.BlindSum(
		[][32]byte{outputBlind}, [][32]byte{randomKey},
	)
	if err != nil {
		memzero.Zero32(&randomKey)
		return nil, err
	}
	sl.Offset = offset

	return e.appendParticipant(sl, randomKey)
}

// PayInvoiceOpts is the struct given to the PayInvoice method.
type PayInvoiceOpts struct {
	Slate *Slate
	// Fee is the converged fee for the payer's selection, computed over
	// the payer's inputs, the receiver's output plus optional change, and
	// one kernel.
	Fee              uint64
	Inputs           []SpendableOutput
	ChangeIdentifier keychain.Identifier
}

func (o PayInvoiceOpts) validate() error {
	if o.Slate == nil {
		return ErrUnexpectedState
	}
	if o.Slate.State != StateInvoice1 {
		return fmt.Errorf("%w: got %s, want I1", ErrUnexpectedState, o.Slate.State)
	}
	if o.Slate.Amount == 0 {
		return ErrZeroAmount
	}
	if len(o.Slate.Participants) != 1 {
		return ErrMissingParticipant
	}
	if len(o.Inputs) == 0 {
		return ErrEmptyInputs
	}
	var total uint64
	for _, in := range o.Inputs {
		total += in.Value
	}
	if total < o.Slate.Amount+o.Fee {
		return ErrInsufficientInputs
	}
	return nil
}

// PayInvoice performs the I2 transition: the payer supplies inputs, change
// and the fee, and contributes their partial signature.
func (e *Engine) PayInvoice(opts PayInvoiceOpts) (*Session, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	sl := opts.Slate.Clone()
	sl.Fee = opts.Fee

	inputs, inputBlinds, total, err := e.inputEntries(opts.Inputs)
	if err != nil {
		return nil, err
	}
	defer zeroBlinds(inputBlinds)
	sl.Inputs = append(sl.Inputs, inputs...)

	outputBlinds := make([][32]byte, 0, 1)
	defer zeroBlinds(outputBlinds)
	if change := total - sl.Amount - sl.Fee; change > 0 {
		commit, proof, changeBlind, err := e.ledger.CommitAndProve(
			change, opts.ChangeIdentifier,
		)
		if err != nil {
			return nil, err
		}
		sl.Outputs = append(sl.Outputs, Output{
			Features:   FeaturePlain,
			Commitment: commit,
			Proof:      proof,
		})
		outputBlinds = append(outputBlinds, changeBlind)
	}

	session, err := e.addSigner(sl, outputBlinds, inputBlinds)
	if err != nil {
		return nil, err
	}
	if err := e.signParticipant(session); err != nil {
		session.Erase()
		return nil, err
	}

	sl.State = StateInvoice2
	return session, nil
}

// FinalizeInvoiceOpts is the struct given to the FinalizeInvoice method.
type FinalizeInvoiceOpts struct {
	// Session is the receiver's retained I1 session.
	Session *Session
	// Response is the payer's I2 slate.
	Response *Slate
}

func (o FinalizeInvoiceOpts) validate() error {
	if o.Session == nil || o.Session.Slate == nil || o.Response == nil {
		return ErrUnexpectedState
	}
	if o.Response.State != StateInvoice2 {
		return fmt.Errorf("%w: got %s, want I2", ErrUnexpectedState, o.Response.State)
	}
	return nil
}

// FinalizeInvoice performs the I3 transition using the receiver's originally
// stored secret key and nonce.
func (e *Engine) FinalizeInvoice(opts FinalizeInvoiceOpts) (*Slate, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return e.finalize(opts.Session, opts.Response, StateInvoice3)
}

// SelfSendOpts is the struct given to the SelfSend method.
type SelfSendOpts struct {
	Amount uint64
	Fee    uint64
	Height uint64
	Inputs []SpendableOutput
	// OutputIdentifier is the derivation for the self-funded output.
	OutputIdentifier keychain.Identifier
	ChangeIdentifier keychain.Identifier
}

// SelfSend builds and finalizes a self-to-self transaction in one step: the
// wallet is both ends, so a single participant can complete the kernel
// signature alone. Returns the finalized slate together with the funded
// output's commitment, proof and blinding factor; the caller owns the blind
// and must erase it.
func (e *Engine) SelfSend(opts SelfSendOpts) (*Slate, Output, [32]byte, error) {
	var blind [32]byte
	if err := (SendOpts{
		Amount: opts.Amount, Fee: opts.Fee, Height: opts.Height,
		Inputs: opts.Inputs, ChangeIdentifier: opts.ChangeIdentifier,
	}).validate(); err != nil {
		return nil, Output{}, blind, err
	}

	inputs, inputBlinds, total, err := e.inputEntries(opts.Inputs)
	if err != nil {
		return nil, Output{}, blind, err
	}
	defer zeroBlinds(inputBlinds)

	sl := &Slate{
		ID:     uuid.New(),
		State:  StateStandard1,
		Amount: opts.Amount,
		Fee:    opts.Fee,
		Height: opts.Height,
		Inputs: inputs,
	}

	commit, proof, blind, err := e.ledger.CommitAndProve(
		opts.Amount, opts.OutputIdentifier,
	)
	if err != nil {
		return nil, Output{}, blind, err
	}
	funded := Output{Features: FeaturePlain, Commitment: commit, Proof: proof}
	sl.Outputs = append(sl.Outputs, funded)

	outputBlinds := [][32]byte{blind}
	if change := total - opts.Amount - opts.Fee; change > 0 {
		changeCommit, changeProof, changeBlind, err := e.ledger.CommitAndProve(
			change, opts.ChangeIdentifier,
		)
		if err != nil {
			memzero.Zero32(&blind)
			return nil, Output{}, blind, err
		}
		defer memzero.Zero32(&changeBlind)
		sl.Outputs = append(sl.Outputs, Output{
			Features:   FeaturePlain,
			Commitment: changeCommit,
			Proof:      changeProof,
		})
		outputBlinds = append(outputBlinds, changeBlind)
	}

	final, err := e.finalizeAlone(sl, outputBlinds, inputBlinds)
	if err != nil {
		memzero.Zero32(&blind)
		return nil, Output{}, blind, err
	}
	return final, funded, blind, nil
}

// SpendBearerOpts is the struct given to the SpendBearer method.
type SpendBearerOpts struct {
	// InputCommitment is the bearer output being swept.
	InputCommitment [33]byte
	// InputBlind is its known blinding factor.
	InputBlind [32]byte
	Amount     uint64
	Fee        uint64
	Height     uint64
	// OutputIdentifier is the derivation for the swept amount minus fee.
	OutputIdentifier keychain.Identifier
}

// SpendBearer sweeps an output whose blinding factor is known, building a
// single-input single-output transaction and finalizing it alone: holding
// both blinding factors, this wallet can complete the kernel signature
// without the original sender.
func (e *Engine) SpendBearer(opts SpendBearerOpts) (*Slate, error) {
	if opts.Amount <= opts.Fee {
		return nil, ErrInsufficientInputs
	}

	sl := &Slate{
		ID:     uuid.New(),
		State:  StateStandard1,
		Amount: opts.Amount - opts.Fee,
		Fee:    opts.Fee,
		Height: opts.Height,
		Inputs: []Input{{
			Features:   FeaturePlain,
			Commitment: opts.InputCommitment,
		}},
	}

	commit, proof, outputBlind, err := e.ledger.CommitAndProve(
		sl.Amount, opts.OutputIdentifier,
	)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero32(&outputBlind)
	sl.Outputs = append(sl.Outputs, Output{
		Features:   FeaturePlain,
		Commitment: commit,
		Proof:      proof,
	})

	inputBlind := opts.InputBlind
	defer memzero.Zero32(&inputBlind)
	return e.finalizeAlone(
		sl, [][32]byte{outputBlind}, [][32]byte{inputBlind},
	)
}

// finalizeAlone signs and finalizes a slate whose blinding factors are all
// known to this wallet.
func (e *Engine) finalizeAlone(
	sl *Slate, outputBlinds, inputBlinds [][32]byte,
) (*Slate, error) {
	session, err := e.addSigner(sl, outputBlinds, inputBlinds)
	if err != nil {
		return nil, err
	}
	defer session.Erase()

	sortSlate(sl)
	sl.State = StateStandard2

	// Reuse the two-party finalization path with our own session on both
	// sides of the exchange; finalize produces the single partial itself.
	return e.finalize(session, sl, StateStandard3)
}
