// Package kv provides an ordered key-value store addressed by composite keys.
//
// Keys are tuples of strings. Entries are ordered component by component, so a
// List over a prefix returns every entry whose key starts with that prefix in
// ascending key order. Two backends are provided: bbolt for single-node
// deployments and PostgreSQL for shared ones.
package kv

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("kv: key not found")

// Key is an ordered composite key such as ("pins", user, "2024-05", "01", "00:00:00").
type Key []string

// String renders the key for logs.
func (k Key) String() string {
	return "(" + strings.Join(k, ", ") + ")"
}

// HasPrefix reports whether k starts with every component of prefix.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Entry is a key with its raw JSON value.
type Entry struct {
	Key   Key
	Value []byte
}

// Store is the ordered key-value namespace. Every call is atomic on its own;
// sequences of calls are not.
type Store interface {
	Get(ctx context.Context, key Key) ([]byte, error)
	Set(ctx context.Context, key Key, value []byte) error
	Delete(ctx context.Context, key Key) error
	List(ctx context.Context, prefix Key) ([]Entry, error)
	Close() error
}
