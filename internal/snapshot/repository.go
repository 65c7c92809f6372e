package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/efebarandurmaz/archscore/internal/diagram"
)

// ErrStoreUnavailable marks any failure to append to or read from a snapshot
// backend. Callers degrade trend analysis on it rather than failing.
var ErrStoreUnavailable = errors.New("snapshot store unavailable")

// Unavailable wraps a backend failure so that errors.Is(err,
// ErrStoreUnavailable) holds while the cause stays inspectable.
func Unavailable(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

// StoreError is a backend failure for one operation.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStoreUnavailable, e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error { return []error{ErrStoreUnavailable, e.Err} }

// Repository is an append-only snapshot history keyed by diagram identity.
// Implementations never edit or delete entries.
type Repository interface {
	// Append adds a snapshot to the end of the identity's history.
	Append(ctx context.Context, id diagram.Identity, snap *Snapshot) error
	// ReadRecent returns up to n most recent snapshots, oldest first.
	ReadRecent(ctx context.Context, id diagram.Identity, n int) ([]Snapshot, error)
	// Close releases backend resources.
	Close() error
}
