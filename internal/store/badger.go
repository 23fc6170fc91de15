package store

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/parley-chat/parley/internal/chat"
)

// Keys are "msg:{timestamp_padded}:{uuid}". The 19-digit zero padding makes
// lexicographic key order equal chronological order, and the uuid suffix
// disambiguates two messages landing on the same nanosecond.
const msgPrefix = "msg:"

// Badger is the document-store implementation of Store, persisting each
// message as a JSON value in BadgerDB.
type Badger struct {
	db  *badger.DB
	log *slog.Logger
}

// OpenBadger opens (or creates) the BadgerDB at path.
func OpenBadger(path string, log *slog.Logger) (*Badger, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrUnavailable, path, err)
	}
	return &Badger{db: db, log: log}, nil
}

// Close releases the underlying database.
func (s *Badger) Close() error {
	return s.db.Close()
}

// Append persists the message under a time-ordered key.
func (s *Badger) Append(m chat.Message) error {
	key := fmt.Sprintf("%s%019d:%s", msgPrefix, m.Timestamp.UnixNano(), m.ID)
	value, err := json.Marshal(m)
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("%w: append: %v", ErrUnavailable, err)
	}
	return nil
}

// List returns every stored message in chronological order via a prefix scan.
func (s *Badger) List() ([]chat.Message, error) {
	var raw [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(msgPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				raw = append(raw, append([]byte(nil), value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list: %v", ErrUnavailable, err)
	}

	messages := make([]chat.Message, 0, len(raw))
	for _, value := range raw {
		var m chat.Message
		if err := json.Unmarshal(value, &m); err != nil {
			s.log.Warn("skipping undecodable message record", "error", err)
			continue
		}
		messages = append(messages, m)
	}
	return messages, nil
}

// Clear drops every message record.
func (s *Badger) Clear() error {
	if err := s.db.DropPrefix([]byte(msgPrefix)); err != nil {
		return fmt.Errorf("%w: clear: %v", ErrUnavailable, err)
	}
	return nil
}
