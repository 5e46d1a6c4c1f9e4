// internal/storage/badger_store.go
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

var (
	ErrNotFound = errors.New("entity not found")
	ErrExists   = errors.New("entity already exists")
	ErrEmptyID  = errors.New("entity ID cannot be empty")
)

// Entity represents any storable entity with an ID
type Entity interface {
	GetID() string
}

// BadgerStore keeps JSON-encoded entities under "prefix:id" keys.
type BadgerStore struct {
	db     *badger.DB
	prefix string
}

func NewBadgerStore(db *badger.DB, prefix string) *BadgerStore {
	return &BadgerStore{
		db:     db,
		prefix: prefix,
	}
}

func (s *BadgerStore) makeKey(id string) []byte {
	return []byte(s.prefix + ":" + id)
}

func (s *BadgerStore) keyPrefix() []byte {
	return []byte(s.prefix + ":")
}

func (s *BadgerStore) stripPrefix(key []byte) string {
	return strings.TrimPrefix(string(key), s.prefix+":")
}

// Create stores entity, failing with ErrExists if the id is taken.
func (s *BadgerStore) Create(entity Entity) error {
	if entity.GetID() == "" {
		return ErrEmptyID
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("marshaling entity: %w", err)
	}

	key := s.makeKey(entity.GetID())
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return fmt.Errorf("%s %s: %w", s.prefix, entity.GetID(), ErrExists)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		return txn.Set(key, data)
	})
}

// Put stores entity, replacing any previous value.
func (s *BadgerStore) Put(entity Entity) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return s.PutTxn(txn, entity)
	})
}

// PutTxn is Put inside a caller-owned transaction.
func (s *BadgerStore) PutTxn(txn *badger.Txn, entity Entity) error {
	if entity.GetID() == "" {
		return ErrEmptyID
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("marshaling entity: %w", err)
	}
	return txn.Set(s.makeKey(entity.GetID()), data)
}

func (s *BadgerStore) Get(id string, entity Entity) error {
	key := s.makeKey(id)

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, entity)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%s %s: %w", s.prefix, id, ErrNotFound)
	}
	return err
}

func (s *BadgerStore) Has(id string) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(s.makeKey(id))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *BadgerStore) Delete(id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return s.DeleteTxn(txn, id)
	})
}

// DeleteTxn is Delete inside a caller-owned transaction.
func (s *BadgerStore) DeleteTxn(txn *badger.Txn, id string) error {
	key := s.makeKey(id)

	_, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%s %s: %w", s.prefix, id, ErrNotFound)
	} else if err != nil {
		return err
	}

	return txn.Delete(key)
}

// IDs returns, in key order, every stored id starting with idPrefix.
func (s *BadgerStore) IDs(idPrefix string) ([]string, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(s.prefix + ":" + idPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			ids = append(ids, s.stripPrefix(it.Item().Key()))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s ids: %w", s.prefix, err)
	}
	return ids, nil
}

// List decodes every stored entity into results, which must point to a slice.
func (s *BadgerStore) List(results interface{}) error {
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := s.keyPrefix()
		values := []json.RawMessage{}

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				values = append(values, append([]byte(nil), val...))
				return nil
			})
			if err != nil {
				return err
			}
		}

		// Marshal collected values into final result
		data, err := json.Marshal(values)
		if err != nil {
			return err
		}

		return json.Unmarshal(data, results)
	})

	if err != nil {
		return fmt.Errorf("listing entities: %w", err)
	}
	return nil
}

// ClearTxn deletes every entity under the prefix inside txn.
func (s *BadgerStore) ClearTxn(txn *badger.Txn) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = s.keyPrefix()

	var keys [][]byte
	it := txn.NewIterator(opts)
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()

	for _, key := range keys {
		if err := txn.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

func (s *BadgerStore) Clear() error {
	return s.db.Update(s.ClearTxn)
}
