package badgerstore

import (
	"errors"
	"fmt"
	"time"

	"github.com/aman-zulfiqar/escrow-solver/internal/storage"
	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
)

const maxRetries = 5

// DB is an embedded badgerhold store holding intents, orders and pools
type DB struct {
	store *badgerhold.Store
}

// Open opens the store at dir, or an in-memory store when dir is empty
func Open(dir string, logger badger.Logger) (*DB, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = logger
	if len(dir) <= 0 {
		opts.InMemory = true
	}

	store, err := badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}
	return &DB{store: store}, nil
}

func (db *DB) Intents() storage.IntentRepository { return &intentRepo{store: db.store} }
func (db *DB) Orders() storage.OrderRepository   { return &orderRepo{store: db.store} }
func (db *DB) Pools() storage.PoolRepository     { return &poolRepo{store: db.store} }

func (db *DB) Close() error {
	return db.store.Close()
}

// withRetry retries fn on transaction conflicts
func withRetry(fn func() error) error {
	err := fn()
	for attempts := 1; errors.Is(err, badger.ErrConflict) && attempts <= maxRetries; attempts++ {
		time.Sleep(100 * time.Millisecond)
		err = fn()
	}
	return err
}

func notFound(err error) error {
	if errors.Is(err, badgerhold.ErrNotFound) {
		return storage.ErrNotFound
	}
	return err
}

func toAny[T any](in []T) []interface{} {
	out := make([]interface{}, 0, len(in))
	for _, v := range in {
		out = append(out, v)
	}
	return out
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}
