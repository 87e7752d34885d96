package badgerstore

import (
	"context"
	"errors"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/jcfangc/yahoo-crawler/internal/commentcodec"
	"github.com/jcfangc/yahoo-crawler/internal/domain"
)

const prefix = "comments/"

// Store keeps comment records in an embedded badger database.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) a badger database at dir. An empty dir opens an
// in-memory database.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func key(hash string) []byte {
	return []byte(prefix + hash)
}

// Put replaces the records stored for hash in one transaction.
func (s *Store) Put(ctx context.Context, hash string, records []domain.CommentRecord) error {
	payload, err := commentcodec.Marshal(records)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *badger.Txn) error {
		return tx.Set(key(hash), payload)
	})
}

// Get returns the records stored for hash.
func (s *Store) Get(ctx context.Context, hash string) ([]domain.CommentRecord, error) {
	var payload []byte
	err := s.db.View(func(tx *badger.Txn) error {
		item, err := tx.Get(key(hash))
		if err != nil {
			return err
		}
		payload, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.ErrCommentsNotFound
	}
	if err != nil {
		return nil, err
	}
	return commentcodec.Decode(strings.NewReader(string(payload)))
}

// Exists reports whether records are stored for hash.
func (s *Store) Exists(ctx context.Context, hash string) (bool, error) {
	err := s.db.View(func(tx *badger.Txn) error {
		_, err := tx.Get(key(hash))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Keys lists stored hashes in key order.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := tx.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, strings.TrimPrefix(string(it.Item().Key()), prefix))
		}
		return nil
	})
	return keys, err
}
