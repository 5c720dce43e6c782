package index

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

func init() {
	Register("badger", NewBadger)
}

var errExists = errors.New("key exists")

// Badger wraps an in-memory badger database. Check-then-write operations
// run in one transaction; a transaction that loses a conflict counts as a
// failed operation.
type Badger struct {
	db *badger.DB
}

// NewBadger opens an in-memory badger database. Params: memtable-mb
// (default 64), num-compactors (default 2), detect-conflicts (default
// true).
func NewBadger(opts Options) (Index, error) {
	memMB, err := opts.IntParam("memtable-mb", 64)
	if err != nil {
		return nil, err
	}
	compactors, err := opts.IntParam("num-compactors", 2)
	if err != nil {
		return nil, err
	}
	detect, err := opts.BoolParam("detect-conflicts", true)
	if err != nil {
		return nil, err
	}

	bo := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(nil).
		WithMemTableSize(int64(memMB) << 20).
		WithNumCompactors(compactors).
		WithDetectConflicts(detect)

	db, err := badger.Open(bo)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Badger{db: db}, nil
}

// Insert implements Index.
func (b *Badger) Insert(key, value []byte) bool {
	err := b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return errExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, value)
	})
	return err == nil
}

// Read implements Index.
func (b *Badger) Read(key []byte, out []byte) ([]byte, bool) {
	out = out[:0]
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			out = append(out, v...)
			return nil
		})
	})
	return out, err == nil
}

// Update implements Index.
func (b *Badger) Update(key, value []byte) bool {
	err := b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return txn.Set(key, value)
	})
	return err == nil
}

// Remove implements Index.
func (b *Badger) Remove(key []byte) bool {
	err := b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return txn.Delete(key)
	})
	return err == nil
}

// Scan implements Index.
func (b *Badger) Scan(start []byte, limit int, out []byte) int {
	n := 0
	off := 0
	_ = b.db.View(func(txn *badger.Txn) error {
		iopt := badger.DefaultIteratorOptions
		iopt.PrefetchSize = max(min(limit, 100), 1)
		it := txn.NewIterator(iopt)
		defer it.Close()

		for it.Seek(start); it.Valid() && n < limit; it.Next() {
			err := it.Item().Value(func(v []byte) error {
				if off+len(v) <= len(out) {
					off += copy(out[off:], v)
				}
				return nil
			})
			if err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n
}

// Close implements Index.
func (b *Badger) Close() error {
	return b.db.Close()
}
