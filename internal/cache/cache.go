// SPDX-License-Identifier: MIT

// Package cache stores catalog API responses on disk so repeated runs
// against the same country do not refetch unchanged listings.
package cache

import (
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Cache is a byte-oriented store with per-entry TTL.
type Cache interface {
	// Get returns the cached value for key, or ok=false on a miss.
	Get(key string) (value []byte, ok bool)
	// Set stores value under key for at most ttl.
	Set(key string, value []byte, ttl time.Duration) error
	// Close releases the underlying store.
	Close() error
}

// NewNoop returns a cache that never hits and never stores. It is used
// when no cache directory is configured.
func NewNoop() Cache {
	return noopCache{}
}

type noopCache struct{}

func (noopCache) Get(string) ([]byte, bool)               { return nil, false }
func (noopCache) Set(string, []byte, time.Duration) error { return nil }
func (noopCache) Close() error                            { return nil }

// Open opens a badger-backed cache rooted at dir.
func Open(dir string) (Cache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache at %s: %w", dir, err)
	}
	return &badgerCache{db: db}, nil
}

type badgerCache struct {
	db *badger.DB
}

func (c *badgerCache) Get(key string) ([]byte, bool) {
	var value []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		// Expired and missing keys both surface as ErrKeyNotFound;
		// any other error degrades to a miss as well.
		return nil, false
	}
	return value, true
}

func (c *badgerCache) Set(key string, value []byte, ttl time.Duration) error {
	return c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), value).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
}

func (c *badgerCache) Close() error {
	return c.db.Close()
}
