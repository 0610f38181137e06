// Package store persists conversations and seeker profiles.
//
// Documents are msgpack-encoded and kept in a key-value Store with
// hierarchical keys. Keys are string slices (e.g. ["conv", "<id>"]) joined
// with ':' for storage. Badger backs the on-disk store; Memory serves guests
// that keep nothing beyond the process and tests.
package store

import (
	"context"
	"errors"
	"iter"
	"strings"
)

var (
	// ErrNotFound is returned when a key does not exist in the store.
	ErrNotFound = errors.New("store: not found")

	// ErrInvalidKey is returned for key segments that are empty or contain
	// the separator.
	ErrInvalidKey = errors.New("store: invalid key")
)

const separator = ':'

// Key is a hierarchical path of non-empty segments.
type Key []string

func (k Key) String() string {
	return strings.Join(k, string(separator))
}

func (k Key) encode() []byte {
	return []byte(k.String())
}

// prefix returns the encoded key followed by the separator so that "a:b"
// does not match "a:bc". The empty key matches everything.
func (k Key) prefix() []byte {
	if len(k) == 0 {
		return nil
	}
	return append(k.encode(), separator)
}

func decodeKey(b []byte) Key {
	return Key(strings.Split(string(b), string(separator)))
}

// validSegment reports whether s can be used as one key segment.
func validSegment(s string) bool {
	return s != "" && !strings.ContainsRune(s, separator)
}

// Entry is a key-value pair yielded by Scan.
type Entry struct {
	Key   Key
	Value []byte
}

// Op is one write of an Apply call.
type Op struct {
	Key    Key
	Value  []byte
	Delete bool
}

// Put returns an Op that sets key to value.
func Put(key Key, value []byte) Op { return Op{Key: key, Value: value} }

// Remove returns an Op that deletes key. Removing a missing key is a no-op.
func Remove(key Key) Op { return Op{Key: key, Delete: true} }

// Store is a key-value store with path-based keys.
type Store interface {
	// Get returns ErrNotFound if key is not present.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Scan iterates, in key order, over entries under prefix.
	Scan(ctx context.Context, prefix Key) iter.Seq2[Entry, error]

	// Apply performs all ops atomically.
	Apply(ctx context.Context, ops ...Op) error

	Close() error
}
