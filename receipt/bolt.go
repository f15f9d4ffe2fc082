package receipt

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"

	"github.com/bitfsorg/libwit-go/wit"
)

var bucketReceipts = []byte("receipts")

// Backend persists receipts outside the process.
type Backend interface {
	Put(r *Receipt) error
	Delete(hash wit.Hash) error
	// ForEach calls fn for every stored receipt.
	ForEach(fn func(*Receipt) error) error
	Close() error
}

// BoltBackend keeps receipts in a bbolt database, JSON-encoded and keyed by
// transaction hash.
type BoltBackend struct {
	db *bbolt.DB
}

var _ Backend = (*BoltBackend)(nil)

// OpenBoltBackend opens or creates the database at dbPath. The parent
// directory is created if it does not exist.
func OpenBoltBackend(dbPath string) (*BoltBackend, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("receipt: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("receipt: open bolt db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketReceipts)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("receipt: create bucket: %w", err)
	}
	return &BoltBackend{db: db}, nil
}

// Put stores r, replacing any receipt with the same hash.
func (b *BoltBackend) Put(r *Receipt) error {
	if r == nil {
		return ErrNilReceipt
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("receipt: encode %s: %w", r.Hash, err)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketReceipts).Put(r.Hash[:], data)
	})
}

// Get loads the receipt stored for hash.
func (b *BoltBackend) Get(hash wit.Hash) (*Receipt, error) {
	var r Receipt
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketReceipts).Get(hash[:])
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, hash)
		}
		return json.Unmarshal(data, &r)
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Delete removes the receipt for hash. Deleting a missing hash is not an error.
func (b *BoltBackend) Delete(hash wit.Hash) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketReceipts).Delete(hash[:])
	})
}

func (b *BoltBackend) ForEach(fn func(*Receipt) error) error {
	return b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketReceipts).ForEach(func(k, v []byte) error {
			var r Receipt
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("receipt: decode %x: %w", k, err)
			}
			return fn(&r)
		})
	})
}

// Count returns the number of stored receipts.
func (b *BoltBackend) Count() (int, error) {
	var n int
	err := b.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketReceipts).Stats().KeyN
		return nil
	})
	return n, err
}

// Close closes the underlying database.
func (b *BoltBackend) Close() error { return b.db.Close() }
