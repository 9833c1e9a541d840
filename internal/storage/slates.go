package storage

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/timshannon/badgerhold/v4"

	"github.com/slatewallet/slatewallet/pkg/slate"
)

// SessionRecord persists one party's side of an in-flight exchange between
// protocol turns: the local slate snapshot and the signing secrets needed
// to finish it. Records are deleted as soon as the exchange finalizes or is
// canceled.
type SessionRecord struct {
	// SlateID is the exchange identifier, used as the record key.
	SlateID       string `badgerhold:"key"`
	Slate         *slate.Slate
	SecretKey     [32]byte
	SecretNonce   [32]byte
	ParticipantID int
	CreatedAt     time.Time
}

// Session rebuilds the in-memory session from the record.
func (r *SessionRecord) Session() *slate.Session {
	return &slate.Session{
		Slate:         r.Slate,
		SecretKey:     r.SecretKey,
		SecretNonce:   r.SecretNonce,
		ParticipantID: r.ParticipantID,
	}
}

// SaveSession stores the session of an exchange, replacing any previous
// snapshot.
func (s *Store) SaveSession(session *slate.Session) error {
	return s.slates.Upsert(session.Slate.ID.String(), SessionRecord{
		SlateID:       session.Slate.ID.String(),
		Slate:         session.Slate,
		SecretKey:     session.SecretKey,
		SecretNonce:   session.SecretNonce,
		ParticipantID: session.ParticipantID,
		CreatedAt:     time.Now().UTC(),
	})
}

// GetSession fetches the stored session of an exchange.
func (s *Store) GetSession(slateID uuid.UUID) (*SessionRecord, error) {
	var record SessionRecord
	err := s.slates.Get(slateID.String(), &record)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// DeleteSession drops the stored session once the exchange is settled.
func (s *Store) DeleteSession(slateID uuid.UUID) error {
	err := s.slates.Delete(slateID.String(), SessionRecord{})
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil
	}
	return err
}

// TransactionKind distinguishes the direction of a logged transaction.
type TransactionKind string

const (
	// TransactionSent ...
	TransactionSent TransactionKind = "sent"
	// TransactionReceived ...
	TransactionReceived TransactionKind = "received"
	// TransactionSelf covers self-sends and voucher funding.
	TransactionSelf TransactionKind = "self"
)

// TransactionStatus tracks a logged transaction through settlement.
type TransactionStatus string

const (
	// TransactionPending means the exchange is still collecting
	// signatures.
	TransactionPending TransactionStatus = "pending"
	// TransactionBroadcast means the finalized transaction went out.
	TransactionBroadcast TransactionStatus = "broadcast"
	// TransactionConfirmed means the kernel is on chain.
	TransactionConfirmed TransactionStatus = "confirmed"
	// TransactionCanceled means the exchange was abandoned before
	// finalization.
	TransactionCanceled TransactionStatus = "canceled"
)

// TransactionRecord is the wallet's log entry for one transfer.
type TransactionRecord struct {
	// SlateID is the exchange identifier, used as the record key.
	SlateID   string `badgerhold:"key"`
	Kind      TransactionKind
	Status    TransactionStatus
	Amount    uint64
	Fee       uint64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LogTransaction inserts or replaces a transaction log entry.
func (s *Store) LogTransaction(record TransactionRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	record.UpdatedAt = time.Now().UTC()
	return s.slates.Upsert(record.SlateID, record)
}

// GetTransaction fetches one transaction log entry.
func (s *Store) GetTransaction(slateID uuid.UUID) (*TransactionRecord, error) {
	var record TransactionRecord
	err := s.slates.Get(slateID.String(), &record)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// UpdateTransactionStatus moves a logged transaction to a new status.
func (s *Store) UpdateTransactionStatus(
	slateID uuid.UUID, status TransactionStatus,
) error {
	record, err := s.GetTransaction(slateID)
	if err != nil {
		return err
	}
	record.Status = status
	return s.LogTransaction(*record)
}

// ListTransactions returns the whole transaction log.
func (s *Store) ListTransactions() ([]TransactionRecord, error) {
	var records []TransactionRecord
	if err := s.slates.Find(&records, nil); err != nil {
		return nil, err
	}
	return records, nil
}
