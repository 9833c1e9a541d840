// Package storage persists the wallet state: owned outputs, in-flight slate
// sessions, the transaction log and the derivation cursor. Everything is
// kept in badger stores with JSON-encoded records.
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dgraph-io/badger/v3"
	"github.com/timshannon/badgerhold/v4"
)

// ErrNotFound ...
var ErrNotFound = errors.New("record not found")

// Store holds the badgerhold stores of one wallet in a single data
// structure.
type Store struct {
	outputs *badgerhold.Store
	slates  *badgerhold.Store
}

// NewStore opens (or creates if not exists) the badger stores under the
// given data directory. It creates a dedicated directory for the output set
// and for the slate exchange state.
func NewStore(datadir string, logger badger.Logger) (*Store, error) {
	outputs, err := createDb(filepath.Join(datadir, "outputs"), logger)
	if err != nil {
		return nil, fmt.Errorf("opening outputs db: %w", err)
	}
	slates, err := createDb(filepath.Join(datadir, "slates"), logger)
	if err != nil {
		outputs.Close()
		return nil, fmt.Errorf("opening slates db: %w", err)
	}
	return &Store{outputs: outputs, slates: slates}, nil
}

// Close releases both underlying stores.
func (s *Store) Close() error {
	if err := s.outputs.Close(); err != nil {
		s.slates.Close()
		return err
	}
	return s.slates.Close()
}

// JSONEncode is a custom JSON based encoder for badger.
func JSONEncode(value interface{}) ([]byte, error) {
	var buff bytes.Buffer
	if err := json.NewEncoder(&buff).Encode(value); err != nil {
		return nil, err
	}
	return buff.Bytes(), nil
}

// JSONDecode is a custom JSON based decoder for badger.
func JSONDecode(data []byte, value interface{}) error {
	return json.NewDecoder(bytes.NewReader(data)).Decode(value)
}

func createDb(dbDir string, logger badger.Logger) (*badgerhold.Store, error) {
	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger

	return badgerhold.Open(badgerhold.Options{
		Encoder:          JSONEncode,
		Decoder:          JSONDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
}
