package progress

import (
	"context"
	"errors"
	"fmt"

	"github.com/terra-clan/sponsor-eval/internal/storage"
)

// Bridge reads and overwrites the record under one fixed key
type Bridge struct {
	store storage.Store
	key   string
}

// NewBridge creates a bridge over store using key
func NewBridge(store storage.Store, key string) *Bridge {
	return &Bridge{store: store, key: key}
}

// Load returns the stored record. found is false when nothing was stored yet.
func (b *Bridge) Load(ctx context.Context) (rec Record, found bool, err error) {
	data, err := b.store.Get(ctx, b.key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("failed to read progress: %w", err)
	}

	rec, err = Unmarshal(data)
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

// Save overwrites the stored record
func (b *Bridge) Save(ctx context.Context, rec Record) error {
	data, err := Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode progress: %w", err)
	}
	if err := b.store.Set(ctx, b.key, data); err != nil {
		return fmt.Errorf("failed to write progress: %w", err)
	}
	return nil
}
