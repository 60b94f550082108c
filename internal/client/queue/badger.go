package queue

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

const badgerKeyPrefix = "outbound:"

// BadgerStore persists queue entries in BadgerDB so unsent messages survive
// process restarts. Keys embed a zero-padded creation timestamp, which makes
// a prefix scan return entries in creation order.
type BadgerStore struct {
	db *badger.DB

	mu   sync.Mutex
	keys map[string]string // correlation id -> badger key
}

// OpenBadgerStore opens (or creates) the queue database at dir.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open outbound store: %w", err)
	}

	s := &BadgerStore{db: db, keys: make(map[string]string)}
	if err := s.loadKeys(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *BadgerStore) Put(e Entry) error {
	key := s.keyFor(e)
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("put entry: %w", err)
	}

	s.mu.Lock()
	s.keys[e.CorrelationID] = key
	s.mu.Unlock()
	return nil
}

func (s *BadgerStore) Delete(correlationID string) error {
	s.mu.Lock()
	key, ok := s.keys[correlationID]
	if ok {
		delete(s.keys, correlationID)
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

// List returns every stored entry in creation order.
func (s *BadgerStore) List() ([]Entry, error) {
	var entries []Entry
	prefix := []byte(badgerKeyPrefix)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(v []byte) error {
				var e Entry
				if err := json.Unmarshal(v, &e); err != nil {
					return fmt.Errorf("unmarshal entry: %w", err)
				}
				entries = append(entries, e)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// keyFor builds the ordered key for an entry. Put must produce the same key
// for the same entry across calls, so updates overwrite in place.
func (s *BadgerStore) keyFor(e Entry) string {
	s.mu.Lock()
	if key, ok := s.keys[e.CorrelationID]; ok {
		s.mu.Unlock()
		return key
	}
	s.mu.Unlock()
	return fmt.Sprintf("%s%019d:%s", badgerKeyPrefix, e.CreatedAt.UnixNano(), e.CorrelationID)
}

func (s *BadgerStore) loadKeys() error {
	entries, err := s.List()
	if err != nil {
		return err
	}
	for _, e := range entries {
		s.keys[e.CorrelationID] = fmt.Sprintf("%s%019d:%s", badgerKeyPrefix, e.CreatedAt.UnixNano(), e.CorrelationID)
	}
	return nil
}
