// Package storage provides the durable key/value contract sessions persist
// their progress record through, plus its backends.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key holds no value
var ErrNotFound = errors.New("key not found")

// Store defines the interface for durable progress storage
type Store interface {
	// Get returns the value stored under key, or ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)
	// Set overwrites the value stored under key
	Set(ctx context.Context, key string, value []byte) error

	// Health
	Ping(ctx context.Context) error
	Close() error
}

// Namespaced scopes every key of an underlying store under a prefix.
// Closing a Namespaced store does not close the underlying one.
type Namespaced struct {
	inner  Store
	prefix string
}

// WithPrefix wraps store so that every key is prefixed
func WithPrefix(store Store, prefix string) *Namespaced {
	return &Namespaced{inner: store, prefix: prefix}
}

// Get reads a prefixed key
func (n *Namespaced) Get(ctx context.Context, key string) ([]byte, error) {
	return n.inner.Get(ctx, n.prefix+key)
}

// Set writes a prefixed key
func (n *Namespaced) Set(ctx context.Context, key string, value []byte) error {
	return n.inner.Set(ctx, n.prefix+key, value)
}

// Ping checks the underlying store
func (n *Namespaced) Ping(ctx context.Context) error {
	return n.inner.Ping(ctx)
}

// Close is a no-op; the owner of the underlying store closes it
func (n *Namespaced) Close() error {
	return nil
}
