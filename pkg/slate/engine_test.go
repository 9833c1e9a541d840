package slate_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/slatewallet/slatewallet/pkg/coinselect"
	"github.com/slatewallet/slatewallet/pkg/keychain"
	"github.com/slatewallet/slatewallet/pkg/secp"
	"github.com/slatewallet/slatewallet/pkg/secp/softsecp"
	"github.com/slatewallet/slatewallet/pkg/slate"
)

const (
	senderMnemonic = "quarter multiply swarm depth slice security flight " +
		"glad arrow express worth legend wasp mobile anchor dinner mutual " +
		"six sure wear section delay initial thank"
	receiverMnemonic = "abandon abandon abandon abandon abandon abandon " +
		"abandon abandon abandon abandon abandon about"

	fundingValue = uint64(10_000_000_000)
	sendAmount   = uint64(1_000_000_000)
)

func newTestWallet(t *testing.T, mnemonic string) (secp.Secp, *keychain.Ledger) {
	t.Helper()
	s := softsecp.New()
	keys, err := keychain.DeriveFromMnemonic(s, keychain.DeriveFromMnemonicOpts{
		Mnemonic: mnemonic,
	})
	require.NoError(t, err)
	ledger := keychain.NewLedger(s, keys)
	t.Cleanup(ledger.Close)
	return s, ledger
}

func fundingInput(t *testing.T) slate.SpendableOutput {
	t.Helper()
	return slate.SpendableOutput{
		Identifier: keychain.ChildIdentifier(0),
		Value:      fundingValue,
	}
}

// assertKernelBalance recomputes the public transaction invariant from the
// finalized slate alone.
func assertKernelBalance(t *testing.T, s secp.Secp, sl *slate.Slate) {
	t.Helper()

	feeCommit, err := s.Commit([32]byte{}, sl.Fee)
	require.NoError(t, err)

	positives := make([][33]byte, 0, len(sl.Outputs)+1)
	for _, out := range sl.Outputs {
		positives = append(positives, out.Commitment)
	}
	positives = append(positives, feeCommit)
	negatives := make([][33]byte, 0, len(sl.Inputs))
	for _, in := range sl.Inputs {
		negatives = append(negatives, in.Commitment)
	}

	sum, err := s.CommitSum(positives, negatives)
	require.NoError(t, err)
	lhs, err := s.CommitmentToPublicKey(sum)
	require.NoError(t, err)

	offsetPub, err := s.PublicKeyFromSecretKey(sl.Offset)
	require.NoError(t, err)
	rhs, err := s.PublicKeySum(sl.KernelExcess, offsetPub)
	require.NoError(t, err)

	require.Equal(t, lhs, rhs)

	require.NotNil(t, sl.KernelSignature)
	msg := slate.KernelMessage(sl.Fee, sl.LockHeight)
	require.NoError(t, s.VerifyAggregate(*sl.KernelSignature, sl.KernelExcess, msg))
}

func TestStandardFlow(t *testing.T) {
	s, senderLedger := newTestWallet(t, senderMnemonic)
	_, receiverLedger := newTestWallet(t, receiverMnemonic)
	sender := slate.NewEngine(s, senderLedger)
	receiver := slate.NewEngine(s, receiverLedger)

	fee := coinselect.Fee(1, 2, 1)

	senderSession, err := sender.Send(slate.SendOpts{
		Amount:           sendAmount,
		Fee:              fee,
		Height:           1000,
		Inputs:           []slate.SpendableOutput{fundingInput(t)},
		ChangeIdentifier: keychain.ChildIdentifier(1),
	})
	require.NoError(t, err)
	t.Cleanup(senderSession.Erase)

	initial := senderSession.Slate
	require.Equal(t, slate.StateStandard1, initial.State)
	require.Len(t, initial.Inputs, 1)
	require.Len(t, initial.Outputs, 1)
	require.Len(t, initial.Participants, 1)
	require.False(t, initial.Participants[0].Complete())

	// The initial slate travels without the sender's inputs and change, the
	// way the compact wire format sends it.
	wire := initial.Clone()
	wire.Inputs = nil
	wire.Outputs = nil

	receiverSession, err := receiver.Receive(slate.ReceiveOpts{
		Slate:            wire,
		OutputIdentifier: keychain.ChildIdentifier(0),
	})
	require.NoError(t, err)
	t.Cleanup(receiverSession.Erase)

	response := receiverSession.Slate
	require.Equal(t, slate.StateStandard2, response.State)
	require.Len(t, response.Outputs, 1)
	require.Len(t, response.Participants, 2)
	require.True(t, response.Participants[1].Complete())
	require.NotEqual(t, initial.Offset, response.Offset)

	final, err := sender.Finalize(slate.FinalizeOpts{
		Session:  senderSession,
		Response: response,
	})
	require.NoError(t, err)

	require.Equal(t, slate.StateStandard3, final.State)
	require.Len(t, final.Inputs, 1)
	require.Len(t, final.Outputs, 2)
	assertKernelBalance(t, s, final)

	// The receiver can recognize and rewind their own output, and only
	// theirs.
	rewound := 0
	for _, out := range final.Outputs {
		value, _, err := receiverLedger.RewindOutput(out.Commitment, out.Proof)
		if err != nil {
			continue
		}
		require.Equal(t, sendAmount, value)
		rewound++
	}
	require.Equal(t, 1, rewound)
}

func TestStandardFlowChangeAmount(t *testing.T) {
	s, senderLedger := newTestWallet(t, senderMnemonic)
	sender := slate.NewEngine(s, senderLedger)

	fee := coinselect.Fee(1, 2, 1)
	changeID := keychain.ChildIdentifier(7)

	senderSession, err := sender.Send(slate.SendOpts{
		Amount:           sendAmount,
		Fee:              fee,
		Inputs:           []slate.SpendableOutput{fundingInput(t)},
		ChangeIdentifier: changeID,
	})
	require.NoError(t, err)
	t.Cleanup(senderSession.Erase)

	require.Len(t, senderSession.Slate.Outputs, 1)
	change := senderSession.Slate.Outputs[0]
	value, id, err := senderLedger.RewindOutput(change.Commitment, change.Proof)
	require.NoError(t, err)
	require.Equal(t, fundingValue-sendAmount-fee, value)
	require.True(t, changeID.Equal(id))
}

func TestInvoiceFlow(t *testing.T) {
	s, payerLedger := newTestWallet(t, senderMnemonic)
	_, receiverLedger := newTestWallet(t, receiverMnemonic)
	payer := slate.NewEngine(s, payerLedger)
	receiver := slate.NewEngine(s, receiverLedger)

	receiverSession, err := receiver.Invoice(slate.InvoiceOpts{
		Amount:           sendAmount,
		OutputIdentifier: keychain.ChildIdentifier(0),
	})
	require.NoError(t, err)
	t.Cleanup(receiverSession.Erase)

	invoice := receiverSession.Slate
	require.Equal(t, slate.StateInvoice1, invoice.State)
	require.Zero(t, invoice.Fee)
	require.Len(t, invoice.Outputs, 1)
	require.Len(t, invoice.Participants, 1)
	require.False(t, invoice.Participants[0].Complete())

	fee := coinselect.Fee(1, 2, 1)
	payerSession, err := payer.PayInvoice(slate.PayInvoiceOpts{
		Slate:            invoice,
		Fee:              fee,
		Inputs:           []slate.SpendableOutput{fundingInput(t)},
		ChangeIdentifier: keychain.ChildIdentifier(1),
	})
	require.NoError(t, err)
	t.Cleanup(payerSession.Erase)

	response := payerSession.Slate
	require.Equal(t, slate.StateInvoice2, response.State)
	require.Equal(t, fee, response.Fee)
	require.Len(t, response.Inputs, 1)
	require.Len(t, response.Outputs, 2)
	require.True(t, response.Participants[1].Complete())

	final, err := receiver.FinalizeInvoice(slate.FinalizeInvoiceOpts{
		Session:  receiverSession,
		Response: response,
	})
	require.NoError(t, err)

	require.Equal(t, slate.StateInvoice3, final.State)
	assertKernelBalance(t, s, final)
}

func TestSendValidation(t *testing.T) {
	s, ledger := newTestWallet(t, senderMnemonic)
	engine := slate.NewEngine(s, ledger)

	t.Run("zero amount", func(t *testing.T) {
		_, err := engine.Send(slate.SendOpts{
			Fee:    coinselect.Fee(1, 2, 1),
			Inputs: []slate.SpendableOutput{fundingInput(t)},
		})
		require.ErrorIs(t, err, slate.ErrZeroAmount)
	})

	t.Run("no inputs", func(t *testing.T) {
		_, err := engine.Send(slate.SendOpts{Amount: sendAmount})
		require.ErrorIs(t, err, slate.ErrEmptyInputs)
	})

	t.Run("insufficient inputs", func(t *testing.T) {
		_, err := engine.Send(slate.SendOpts{
			Amount: fundingValue,
			Fee:    coinselect.Fee(1, 2, 1),
			Inputs: []slate.SpendableOutput{fundingInput(t)},
		})
		require.ErrorIs(t, err, slate.ErrInsufficientInputs)
	})
}

func TestReceiveRejectsWrongState(t *testing.T) {
	s, ledger := newTestWallet(t, receiverMnemonic)
	engine := slate.NewEngine(s, ledger)

	_, err := engine.Receive(slate.ReceiveOpts{
		Slate: &slate.Slate{
			ID:     uuid.New(),
			State:  slate.StateStandard2,
			Amount: sendAmount,
		},
		OutputIdentifier: keychain.ChildIdentifier(0),
	})
	require.ErrorIs(t, err, slate.ErrUnexpectedState)
}

func TestFinalizeRejectsForeignSlate(t *testing.T) {
	s, senderLedger := newTestWallet(t, senderMnemonic)
	_, receiverLedger := newTestWallet(t, receiverMnemonic)
	sender := slate.NewEngine(s, senderLedger)
	receiver := slate.NewEngine(s, receiverLedger)

	senderSession, err := sender.Send(slate.SendOpts{
		Amount:           sendAmount,
		Fee:              coinselect.Fee(1, 2, 1),
		Inputs:           []slate.SpendableOutput{fundingInput(t)},
		ChangeIdentifier: keychain.ChildIdentifier(1),
	})
	require.NoError(t, err)
	t.Cleanup(senderSession.Erase)

	receiverSession, err := receiver.Receive(slate.ReceiveOpts{
		Slate:            senderSession.Slate,
		OutputIdentifier: keychain.ChildIdentifier(0),
	})
	require.NoError(t, err)
	t.Cleanup(receiverSession.Erase)

	response := receiverSession.Slate.Clone()
	response.ID = uuid.New()

	_, err = sender.Finalize(slate.FinalizeOpts{
		Session:  senderSession,
		Response: response,
	})
	var mismatch *slate.SlateIDMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, senderSession.Slate.ID, mismatch.Expected)
	require.Equal(t, response.ID, mismatch.Actual)
}

func TestFinalizeRejectsMissingPartial(t *testing.T) {
	s, senderLedger := newTestWallet(t, senderMnemonic)
	_, receiverLedger := newTestWallet(t, receiverMnemonic)
	sender := slate.NewEngine(s, senderLedger)
	receiver := slate.NewEngine(s, receiverLedger)

	senderSession, err := sender.Send(slate.SendOpts{
		Amount:           sendAmount,
		Fee:              coinselect.Fee(1, 2, 1),
		Inputs:           []slate.SpendableOutput{fundingInput(t)},
		ChangeIdentifier: keychain.ChildIdentifier(1),
	})
	require.NoError(t, err)
	t.Cleanup(senderSession.Erase)

	receiverSession, err := receiver.Receive(slate.ReceiveOpts{
		Slate:            senderSession.Slate,
		OutputIdentifier: keychain.ChildIdentifier(0),
	})
	require.NoError(t, err)
	t.Cleanup(receiverSession.Erase)

	response := receiverSession.Slate.Clone()
	response.Participants[1].PartSig = nil

	_, err = sender.Finalize(slate.FinalizeOpts{
		Session:  senderSession,
		Response: response,
	})
	require.ErrorIs(t, err, slate.ErrMissingPartialSignature)
}

func TestFinalizeRejectsTamperedPartial(t *testing.T) {
	s, senderLedger := newTestWallet(t, senderMnemonic)
	_, receiverLedger := newTestWallet(t, receiverMnemonic)
	sender := slate.NewEngine(s, senderLedger)
	receiver := slate.NewEngine(s, receiverLedger)

	senderSession, err := sender.Send(slate.SendOpts{
		Amount:           sendAmount,
		Fee:              coinselect.Fee(1, 2, 1),
		Inputs:           []slate.SpendableOutput{fundingInput(t)},
		ChangeIdentifier: keychain.ChildIdentifier(1),
	})
	require.NoError(t, err)
	t.Cleanup(senderSession.Erase)

	receiverSession, err := receiver.Receive(slate.ReceiveOpts{
		Slate:            senderSession.Slate,
		OutputIdentifier: keychain.ChildIdentifier(0),
	})
	require.NoError(t, err)
	t.Cleanup(receiverSession.Erase)

	response := receiverSession.Slate.Clone()
	tampered := *response.Participants[1].PartSig
	tampered[40] ^= 0xff
	response.Participants[1].PartSig = &tampered

	_, err = sender.Finalize(slate.FinalizeOpts{
		Session:  senderSession,
		Response: response,
	})
	var incomplete *slate.KernelIncompleteError
	require.ErrorAs(t, err, &incomplete)
}

func TestFinalizeRejectsLowFee(t *testing.T) {
	s, senderLedger := newTestWallet(t, senderMnemonic)
	_, receiverLedger := newTestWallet(t, receiverMnemonic)
	sender := slate.NewEngine(s, senderLedger)
	receiver := slate.NewEngine(s, receiverLedger)

	senderSession, err := sender.Send(slate.SendOpts{
		Amount:           sendAmount,
		Fee:              1_000,
		Inputs:           []slate.SpendableOutput{fundingInput(t)},
		ChangeIdentifier: keychain.ChildIdentifier(1),
	})
	require.NoError(t, err)
	t.Cleanup(senderSession.Erase)

	receiverSession, err := receiver.Receive(slate.ReceiveOpts{
		Slate:            senderSession.Slate,
		OutputIdentifier: keychain.ChildIdentifier(0),
	})
	require.NoError(t, err)
	t.Cleanup(receiverSession.Erase)

	_, err = sender.Finalize(slate.FinalizeOpts{
		Session:  senderSession,
		Response: receiverSession.Slate,
	})
	require.ErrorIs(t, err, slate.ErrInsufficientFee)
}

func TestSelfSend(t *testing.T) {
	s, ledger := newTestWallet(t, senderMnemonic)
	engine := slate.NewEngine(s, ledger)

	fee := coinselect.Fee(1, 2, 1)
	amount := uint64(5_000_000_000)

	final, funded, blind, err := engine.SelfSend(slate.SelfSendOpts{
		Amount:           amount,
		Fee:              fee,
		Inputs:           []slate.SpendableOutput{fundingInput(t)},
		OutputIdentifier: keychain.ChildIdentifier(2),
		ChangeIdentifier: keychain.ChildIdentifier(3),
	})
	require.NoError(t, err)

	require.Equal(t, slate.StateStandard3, final.State)
	require.Len(t, final.Outputs, 2)
	require.True(t, final.HasOutput(funded.Commitment))
	assertKernelBalance(t, s, final)

	// The returned blind opens the funded commitment.
	commit, err := s.Commit(blind, amount)
	require.NoError(t, err)
	require.Equal(t, funded.Commitment, commit)
}

func TestSpendBearer(t *testing.T) {
	s, senderLedger := newTestWallet(t, senderMnemonic)
	_, claimerLedger := newTestWallet(t, receiverMnemonic)
	sender := slate.NewEngine(s, senderLedger)
	claimer := slate.NewEngine(s, claimerLedger)

	amount := uint64(5_000_000_000)
	_, funded, blind, err := sender.SelfSend(slate.SelfSendOpts{
		Amount:           amount,
		Fee:              coinselect.Fee(1, 2, 1),
		Inputs:           []slate.SpendableOutput{fundingInput(t)},
		OutputIdentifier: keychain.ChildIdentifier(2),
		ChangeIdentifier: keychain.ChildIdentifier(3),
	})
	require.NoError(t, err)

	fee := coinselect.Fee(1, 1, 1)
	final, err := claimer.SpendBearer(slate.SpendBearerOpts{
		InputCommitment:  funded.Commitment,
		InputBlind:       blind,
		Amount:           amount,
		Fee:              fee,
		OutputIdentifier: keychain.ChildIdentifier(0),
	})
	require.NoError(t, err)

	require.Equal(t, slate.StateStandard3, final.State)
	require.Equal(t, amount-fee, final.Amount)
	require.Len(t, final.Inputs, 1)
	require.Len(t, final.Outputs, 1)
	assertKernelBalance(t, s, final)
}

func TestSpendBearerRejectsDust(t *testing.T) {
	s, ledger := newTestWallet(t, receiverMnemonic)
	engine := slate.NewEngine(s, ledger)

	_, err := engine.SpendBearer(slate.SpendBearerOpts{
		Amount:           1_000,
		Fee:              coinselect.Fee(1, 1, 1),
		OutputIdentifier: keychain.ChildIdentifier(0),
	})
	require.ErrorIs(t, err, slate.ErrInsufficientInputs)
}

func TestKernelMessage(t *testing.T) {
	base := slate.KernelMessage(23_000_000, 0)
	require.Equal(t, base, slate.KernelMessage(23_000_000, 0))
	require.NotEqual(t, base, slate.KernelMessage(23_000_001, 0))
	require.NotEqual(t, base, slate.KernelMessage(23_000_000, 100))
}
