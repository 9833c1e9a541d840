// Package wallet wires the wallet together: key material, the slate
// engine, coin selection, persistence and the relay. It owns every
// cross-cutting decision a single protocol step cannot make alone, like
// locking outputs when an exchange starts and releasing them when it
// settles or is canceled.
package wallet

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/slatewallet/slatewallet/internal/storage"
	"github.com/slatewallet/slatewallet/pkg/coinselect"
	"github.com/slatewallet/slatewallet/pkg/keychain"
	"github.com/slatewallet/slatewallet/pkg/relay"
	"github.com/slatewallet/slatewallet/pkg/secp"
	"github.com/slatewallet/slatewallet/pkg/slate"
	"github.com/slatewallet/slatewallet/pkg/slatepack"
	"github.com/slatewallet/slatewallet/pkg/voucher"
)

var (
	// ErrWalletClosed ...
	ErrWalletClosed = errors.New("wallet is closed")
	// ErrUnknownExchange ...
	ErrUnknownExchange = errors.New("no session stored for this exchange")
)

// Service is the wallet facade the interfaces talk to.
type Service struct {
	secp     secp.Secp
	keys     *keychain.WalletKeys
	ledger   *keychain.Ledger
	engine   *slate.Engine
	vouchers *voucher.Scheme
	store    *storage.Store
	relay    *relay.Client

	mtx    sync.Mutex
	closed bool
}

// NewServiceOpts is the struct given to the NewService method.
type NewServiceOpts struct {
	Secp secp.Secp
	// Mnemonic initializes the key material. Exactly one of Mnemonic and
	// ExtendedPrivateKey must be set.
	Mnemonic           string
	ExtendedPrivateKey *[64]byte
	Store              *storage.Store
	// Relay is optional; without it the wallet works in offline mode and
	// slatepacks move by copy and paste.
	Relay *relay.Client
}

func (o NewServiceOpts) validate() error {
	if o.Secp == nil {
		return errors.New("missing secp capability")
	}
	if o.Store == nil {
		return errors.New("missing store")
	}
	if (o.Mnemonic == "") == (o.ExtendedPrivateKey == nil) {
		return errors.New("exactly one of mnemonic and extended key must be given")
	}
	return nil
}

// NewService derives the wallet keys and assembles the engine on top of
// them.
func NewService(opts NewServiceOpts) (*Service, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	var keys *keychain.WalletKeys
	var err error
	if opts.Mnemonic != "" {
		keys, err = keychain.DeriveFromMnemonic(opts.Secp, keychain.DeriveFromMnemonicOpts{
			Mnemonic: opts.Mnemonic,
		})
	} else {
		keys, err = keychain.RestoreFromExtendedKey(opts.Secp, keychain.RestoreFromExtendedKeyOpts{
			ExtendedPrivateKey: *opts.ExtendedPrivateKey,
		})
	}
	if err != nil {
		return nil, err
	}

	ledger := keychain.NewLedger(opts.Secp, keys)
	engine := slate.NewEngine(opts.Secp, ledger)

	log.WithField("address", keys.SlatepackAddress).Debug("wallet service ready")

	return &Service{
		secp:     opts.Secp,
		keys:     keys,
		ledger:   ledger,
		engine:   engine,
		vouchers: voucher.NewScheme(opts.Secp, engine),
		store:    opts.Store,
		relay:    opts.Relay,
	}, nil
}

// Close erases the key material. The service must not be used afterwards.
func (s *Service) Close() {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.ledger.Close()
	s.keys.Erase()
}

// Address returns the wallet's slatepack address.
func (s *Service) Address() string {
	return s.keys.SlatepackAddress
}

// Balance sums the stored outputs per status.
func (s *Service) Balance() (map[storage.OutputStatus]uint64, error) {
	return s.store.Balance()
}

// selectable adapts a stored output to the coin selector.
type selectable struct {
	output storage.Output
}

func (c selectable) Value() uint64 { return c.output.Value }

// selectSpendable picks confirmed unspent outputs covering amount plus the
// converged fee.
func (s *Service) selectSpendable(amount uint64) (*coinselect.Selection, []storage.Output, error) {
	unspent, err := s.store.ListOutputs(storage.OutputUnspent)
	if err != nil {
		return nil, nil, err
	}
	coins := make([]coinselect.Coin, 0, len(unspent))
	for _, out := range unspent {
		coins = append(coins, selectable{output: out})
	}
	selection, err := coinselect.Select(coins, amount)
	if err != nil {
		return nil, nil, err
	}
	picked := make([]storage.Output, 0, len(selection.Coins))
	for _, c := range selection.Coins {
		picked = append(picked, c.(selectable).output)
	}
	return selection, picked, nil
}

func spendableInputs(picked []storage.Output) []slate.SpendableOutput {
	inputs := make([]slate.SpendableOutput, 0, len(picked))
	for _, out := range picked {
		inputs = append(inputs, slate.SpendableOutput{
			Identifier: out.Identifier,
			Value:      out.Value,
			IsCoinbase: out.IsCoinbase,
		})
	}
	return inputs
}

func (s *Service) tip(ctx context.Context) uint64 {
	if s.relay == nil {
		return 0
	}
	height, err := s.relay.Tip(ctx)
	if err != nil {
		log.WithError(err).Warn("could not fetch chain tip, using height 0")
		return 0
	}
	return height
}

func (s *Service) nextIdentifier() (keychain.Identifier, error) {
	index, err := s.store.NextChildIndex()
	if err != nil {
		return keychain.Identifier{}, err
	}
	return keychain.ChildIdentifier(index), nil
}

func (s *Service) guard() error {
	if s.closed {
		return ErrWalletClosed
	}
	return nil
}

// SendOpts is the struct given to the Send method.
type SendOpts struct {
	Amount uint64
	// Recipient is the counterparty's slatepack address.
	Recipient string
	// LockHeight optionally time-locks the kernel.
	LockHeight uint64
}

// Send starts a standard transfer: selects and locks inputs, builds the
// initial slate and returns it armored for the recipient. When a relay is
// configured the slatepack is also posted there.
func (s *Service) Send(ctx context.Context, opts SendOpts) (string, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if err := s.guard(); err != nil {
		return "", err
	}

	recipientKey, err := keychain.DecodeSlatepackAddress(opts.Recipient)
	if err != nil {
		return "", err
	}

	selection, picked, err := s.selectSpendable(opts.Amount)
	if err != nil {
		return "", err
	}
	changeID, err := s.nextIdentifier()
	if err != nil {
		return "", err
	}

	session, err := s.engine.Send(slate.SendOpts{
		Amount:           opts.Amount,
		Fee:              selection.Fee,
		Height:           s.tip(ctx),
		LockHeight:       opts.LockHeight,
		Inputs:           spendableInputs(picked),
		ChangeIdentifier: changeID,
	})
	if err != nil {
		return "", err
	}
	defer session.Erase()

	if err := s.beginExchange(session, picked, storage.TransactionSent, opts.Amount); err != nil {
		return "", err
	}

	armored, err := slatepack.Encode(session.Slate, recipientKey)
	if err != nil {
		return "", err
	}
	s.maybePost(ctx, opts.Recipient, armored)

	log.WithFields(log.Fields{
		"slate_id": session.Slate.ID,
		"amount":   opts.Amount,
		"fee":      selection.Fee,
		"inputs":   len(picked),
	}).Info("transfer started")

	return armored, nil
}

// beginExchange persists everything an in-flight exchange needs to survive
// a restart: the session secrets, the input locks and the log entry.
func (s *Service) beginExchange(
	session *slate.Session, picked []storage.Output,
	kind storage.TransactionKind, amount uint64,
) error {
	if err := s.store.SaveSession(session); err != nil {
		return err
	}
	commitments := make([][33]byte, 0, len(picked))
	for _, out := range picked {
		commitment, err := out.CommitmentBytes()
		if err != nil {
			return err
		}
		commitments = append(commitments, commitment)
	}
	if len(commitments) > 0 {
		if err := s.store.LockOutputs(session.Slate.ID, commitments...); err != nil {
			return err
		}
	}
	return s.store.LogTransaction(storage.TransactionRecord{
		SlateID: session.Slate.ID.String(),
		Kind:    kind,
		Status:  storage.TransactionPending,
		Amount:  amount,
		Fee:     session.Slate.Fee,
	})
}

func (s *Service) maybePost(ctx context.Context, recipient, armored string) {
	if s.relay == nil {
		return
	}
	if _, err := s.relay.PostSlate(ctx, recipient, armored); err != nil {
		log.WithError(err).Warn("could not post slatepack to relay")
	}
}

// ReceiveOpts is the struct given to the Receive method.
type ReceiveOpts struct {
	// Armored is the incoming initial slatepack.
	Armored string
	// Sender is the counterparty's slatepack address the response is
	// encrypted to.
	Sender string
}

// Receive handles an incoming initial slate: adds this wallet's output and
// partial signature and returns the armored response.
func (s *Service) Receive(ctx context.Context, opts ReceiveOpts) (string, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if err := s.guard(); err != nil {
		return "", err
	}

	senderKey, err := keychain.DecodeSlatepackAddress(opts.Sender)
	if err != nil {
		return "", err
	}
	incoming, err := slatepack.Decode(opts.Armored, s.keys.AddressKey, nil)
	if err != nil {
		return "", err
	}

	outputID, err := s.nextIdentifier()
	if err != nil {
		return "", err
	}
	session, err := s.engine.Receive(slate.ReceiveOpts{
		Slate:            incoming,
		OutputIdentifier: outputID,
	})
	if err != nil {
		return "", err
	}
	defer session.Erase()

	// The received output exists only once the sender finalizes and
	// broadcasts, so it enters the store unconfirmed.
	received := session.Slate.Outputs[len(session.Slate.Outputs)-1]
	if err := s.store.AddOutput(storage.Output{
		Commitment: storage.CommitmentKey(received.Commitment),
		Identifier: outputID,
		Value:      session.Slate.Amount,
		Status:     storage.OutputUnconfirmed,
	}); err != nil {
		return "", err
	}
	if err := s.store.LogTransaction(storage.TransactionRecord{
		SlateID: session.Slate.ID.String(),
		Kind:    storage.TransactionReceived,
		Status:  storage.TransactionPending,
		Amount:  session.Slate.Amount,
		Fee:     session.Slate.Fee,
	}); err != nil {
		return "", err
	}

	armored, err := slatepack.Encode(session.Slate, senderKey)
	if err != nil {
		return "", err
	}
	s.maybePost(ctx, opts.Sender, armored)

	log.WithFields(log.Fields{
		"slate_id": session.Slate.ID,
		"amount":   session.Slate.Amount,
	}).Info("transfer accepted")

	return armored, nil
}

// Finalize completes a standard transfer from the counterparty's response,
// broadcasts it when a relay is configured, and settles the local state.
func (s *Service) Finalize(ctx context.Context, armored string) (*slate.Slate, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if err := s.guard(); err != nil {
		return nil, err
	}

	response, err := slatepack.Decode(armored, s.keys.AddressKey, nil)
	if err != nil {
		return nil, err
	}
	session, err := s.loadSession(response.ID)
	if err != nil {
		return nil, err
	}
	defer session.Erase()

	var finalized *slate.Slate
	switch response.State {
	case slate.StateInvoice2:
		finalized, err = s.engine.FinalizeInvoice(slate.FinalizeInvoiceOpts{
			Session: session, Response: response,
		})
	default:
		finalized, err = s.engine.Finalize(slate.FinalizeOpts{
			Session: session, Response: response,
		})
	}
	if err != nil {
		return nil, err
	}

	if err := s.settle(ctx, finalized); err != nil {
		return nil, err
	}
	return finalized, nil
}

func (s *Service) loadSession(slateID uuid.UUID) (*slate.Session, error) {
	record, err := s.store.GetSession(slateID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExchange, slateID)
	}
	if err != nil {
		return nil, err
	}
	return record.Session(), nil
}

// settle broadcasts a finalized slate and moves the local state forward:
// spent inputs, unconfirmed change, settled log entry, dropped session.
func (s *Service) settle(ctx context.Context, finalized *slate.Slate) error {
	if s.relay != nil {
		if err := s.relay.Broadcast(ctx, finalized); err != nil {
			return err
		}
	}

	if err := s.store.MarkSpent(finalized.ID); err != nil {
		return err
	}
	// Own outputs among the finalized set can be recognized by rewinding
	// their proofs.
	for _, out := range finalized.Outputs {
		value, id, err := s.ledger.RewindOutput(out.Commitment, out.Proof)
		if err != nil {
			continue
		}
		if err := s.store.AddOutput(storage.Output{
			Commitment: storage.CommitmentKey(out.Commitment),
			Identifier: id,
			Value:      value,
			Status:     storage.OutputUnconfirmed,
		}); err != nil {
			return err
		}
	}
	if err := s.store.UpdateTransactionStatus(
		finalized.ID, storage.TransactionBroadcast,
	); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	if err := s.store.DeleteSession(finalized.ID); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"slate_id": finalized.ID,
		"fee":      finalized.Fee,
	}).Info("transfer finalized")
	return nil
}

// Cancel abandons an in-flight exchange: locked inputs are released, the
// session secrets are dropped and the log entry is marked canceled.
func (s *Service) Cancel(slateID uuid.UUID) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if err := s.guard(); err != nil {
		return err
	}

	if _, err := s.store.GetSession(slateID); errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrUnknownExchange, slateID)
	} else if err != nil {
		return err
	}

	if err := s.store.UnlockOutputs(slateID); err != nil {
		return err
	}
	if err := s.store.DeleteSession(slateID); err != nil {
		return err
	}
	if err := s.store.UpdateTransactionStatus(
		slateID, storage.TransactionCanceled,
	); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	log.WithField("slate_id", slateID).Info("transfer canceled")
	return nil
}

// InvoiceOpts is the struct given to the Invoice method.
type InvoiceOpts struct {
	Amount uint64
	// Payer is the counterparty's slatepack address.
	Payer string
}

// Invoice starts an invoice flow: this wallet asks to be paid Amount and
// returns the armored proposal for the payer.
func (s *Service) Invoice(ctx context.Context, opts InvoiceOpts) (string, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if err := s.guard(); err != nil {
		return "", err
	}

	payerKey, err := keychain.DecodeSlatepackAddress(opts.Payer)
	if err != nil {
		return "", err
	}

	outputID, err := s.nextIdentifier()
	if err != nil {
		return "", err
	}
	session, err := s.engine.Invoice(slate.InvoiceOpts{
		Amount:           opts.Amount,
		Height:           s.tip(ctx),
		OutputIdentifier: outputID,
	})
	if err != nil {
		return "", err
	}
	defer session.Erase()

	invoiced := session.Slate.Outputs[0]
	if err := s.store.AddOutput(storage.Output{
		Commitment: storage.CommitmentKey(invoiced.Commitment),
		Identifier: outputID,
		Value:      opts.Amount,
		Status:     storage.OutputUnconfirmed,
	}); err != nil {
		return "", err
	}
	if err := s.beginExchange(session, nil, storage.TransactionReceived, opts.Amount); err != nil {
		return "", err
	}

	armored, err := slatepack.Encode(session.Slate, payerKey)
	if err != nil {
		return "", err
	}
	s.maybePost(ctx, opts.Payer, armored)

	log.WithFields(log.Fields{
		"slate_id": session.Slate.ID,
		"amount":   opts.Amount,
	}).Info("invoice issued")

	return armored, nil
}

// PayInvoiceOpts is the struct given to the PayInvoice method.
type PayInvoiceOpts struct {
	// Armored is the incoming invoice slatepack.
	Armored string
	// Receiver is the invoicing party's slatepack address.
	Receiver string
	// MaxAmount guards against paying a tampered invoice; zero disables
	// the check.
	MaxAmount uint64
}

// PayInvoice funds an incoming invoice: selects and locks inputs, sets the
// fee, signs and returns the armored response for the receiver to finalize.
func (s *Service) PayInvoice(ctx context.Context, opts PayInvoiceOpts) (string, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if err := s.guard(); err != nil {
		return "", err
	}

	receiverKey, err := keychain.DecodeSlatepackAddress(opts.Receiver)
	if err != nil {
		return "", err
	}
	invoice, err := slatepack.Decode(opts.Armored, s.keys.AddressKey, nil)
	if err != nil {
		return "", err
	}
	if opts.MaxAmount > 0 && invoice.Amount > opts.MaxAmount {
		return "", fmt.Errorf("invoice asks %d, cap is %d", invoice.Amount, opts.MaxAmount)
	}

	selection, picked, err := s.selectSpendable(invoice.Amount)
	if err != nil {
		return "", err
	}
	changeID, err := s.nextIdentifier()
	if err != nil {
		return "", err
	}

	session, err := s.engine.PayInvoice(slate.PayInvoiceOpts{
		Slate:            invoice,
		Fee:              selection.Fee,
		Inputs:           spendableInputs(picked),
		ChangeIdentifier: changeID,
	})
	if err != nil {
		return "", err
	}
	defer session.Erase()

	if err := s.beginExchange(session, picked, storage.TransactionSent, invoice.Amount); err != nil {
		return "", err
	}

	armored, err := slatepack.Encode(session.Slate, receiverKey)
	if err != nil {
		return "", err
	}
	s.maybePost(ctx, opts.Receiver, armored)

	log.WithFields(log.Fields{
		"slate_id": session.Slate.ID,
		"amount":   invoice.Amount,
		"fee":      selection.Fee,
	}).Info("invoice paid, awaiting finalization")

	return armored, nil
}

// CreateVoucher funds a bearer voucher for the given amount and returns it
// together with the broadcastable funding slate.
func (s *Service) CreateVoucher(ctx context.Context, amount uint64) (*voucher.Voucher, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if err := s.guard(); err != nil {
		return nil, err
	}

	selection, picked, err := s.selectSpendable(amount)
	if err != nil {
		return nil, err
	}
	outputID, err := s.nextIdentifier()
	if err != nil {
		return nil, err
	}
	changeID, err := s.nextIdentifier()
	if err != nil {
		return nil, err
	}

	v, funding, err := s.vouchers.Create(voucher.CreateOpts{
		Amount:           amount,
		Fee:              selection.Fee,
		Height:           s.tip(ctx),
		Inputs:           spendableInputs(picked),
		OutputIdentifier: outputID,
		ChangeIdentifier: changeID,
	})
	if err != nil {
		return nil, err
	}

	for _, out := range picked {
		commitment, err := out.CommitmentBytes()
		if err != nil {
			return nil, err
		}
		if err := s.store.LockOutputs(funding.ID, commitment); err != nil {
			return nil, err
		}
	}
	if err := s.store.LogTransaction(storage.TransactionRecord{
		SlateID: funding.ID.String(),
		Kind:    storage.TransactionSelf,
		Status:  storage.TransactionPending,
		Amount:  amount,
		Fee:     funding.Fee,
	}); err != nil {
		return nil, err
	}
	if err := s.settle(ctx, funding); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"slate_id": funding.ID,
		"amount":   amount,
	}).Info("voucher funded")

	return v, nil
}

// ClaimVoucher sweeps a bearer voucher into this wallet.
func (s *Service) ClaimVoucher(ctx context.Context, v *voucher.Voucher) (*slate.Slate, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if err := s.guard(); err != nil {
		return nil, err
	}

	outputID, err := s.nextIdentifier()
	if err != nil {
		return nil, err
	}
	sweep, err := s.vouchers.Claim(voucher.ClaimOpts{
		Voucher:          v,
		Fee:              coinselect.Fee(1, 1, 1),
		Height:           s.tip(ctx),
		OutputIdentifier: outputID,
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.LogTransaction(storage.TransactionRecord{
		SlateID: sweep.ID.String(),
		Kind:    storage.TransactionReceived,
		Status:  storage.TransactionPending,
		Amount:  sweep.Amount,
		Fee:     sweep.Fee,
	}); err != nil {
		return nil, err
	}
	if err := s.settle(ctx, sweep); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"slate_id": sweep.ID,
		"amount":   sweep.Amount,
	}).Info("voucher claimed")

	return sweep, nil
}

// Sync reconciles the local output set against the chain through the
// relay: unconfirmed outputs that appeared are promoted, unspent outputs
// that disappeared are marked spent.
func (s *Service) Sync(ctx context.Context) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if err := s.guard(); err != nil {
		return err
	}
	if s.relay == nil {
		return errors.New("sync requires a relay")
	}

	outputs, err := s.store.ListOutputs("")
	if err != nil {
		return err
	}
	for _, out := range outputs {
		commitment, err := out.CommitmentBytes()
		if err != nil {
			return err
		}
		state, err := s.relay.OutputState(ctx, commitment)
		if err != nil {
			var statusErr *relay.StatusError
			if errors.As(err, &statusErr) &&
				statusErr.StatusCode == http.StatusNotFound &&
				out.Status == storage.OutputUnconfirmed {
				// Not on chain yet.
				continue
			}
			return err
		}
		switch {
		case out.Status == storage.OutputUnconfirmed && !state.Spent:
			if err := s.store.ConfirmOutput(commitment, state.Height); err != nil {
				return err
			}
		case out.Status != storage.OutputSpent && state.Spent:
			out.Status = storage.OutputSpent
			out.LockedBy = nil
			if err := s.store.AddOutput(out); err != nil {
				return err
			}
		}
	}
	return nil
}

// Transactions returns the wallet's transfer log.
func (s *Service) Transactions() ([]storage.TransactionRecord, error) {
	return s.store.ListTransactions()
}

// AddressPublicKey exposes the Ed25519 key behind the slatepack address,
// for callers that encrypt to this wallet directly.
func (s *Service) AddressPublicKey() ed25519.PublicKey {
	return s.keys.AddressPublicKey()
}
