// Package slot stores merged connections per cache slot with compare-and-swap
// commits.
//
// Every commit carries the revision the writer observed before fetching.
// Revisions are drawn from a store-wide increasing sequence, so a slot that is
// reset and recreated never reuses a revision an in-flight writer may hold.
package slot

import (
	"context"
	"time"

	"github.com/c360/driftview/connection"
	"github.com/c360/driftview/errors"
)

var (
	// ErrSlotNotFound is returned by Load when the slot has never been
	// committed or was reset.
	ErrSlotNotFound = errors.New("slot not found")

	// ErrStaleRevision is returned by Commit when the slot moved past the
	// expected revision. The slot is left unchanged.
	ErrStaleRevision = errors.New("stale slot revision")
)

// Entry is one committed slot state.
type Entry struct {
	Key        connection.SlotKey
	Connection *connection.Connection
	Revision   uint64
	// Halted is set after a cursor mismatch; no further pages may be loaded
	// until the slot is reset.
	Halted    bool
	UpdatedAt time.Time
}

// CanLoadMore reports whether another forward page may be requested.
func (e *Entry) CanLoadMore() bool {
	return e != nil && !e.Halted && e.Connection.HasNextPage()
}

// Store persists slot entries.
type Store interface {
	// Load returns the current entry or ErrSlotNotFound.
	Load(ctx context.Context, key connection.SlotKey) (*Entry, error)

	// Commit replaces the slot if its revision still equals expected.
	// expected 0 means the slot must not exist.
	Commit(ctx context.Context, key connection.SlotKey, expected uint64,
		conn *connection.Connection, halted bool) (*Entry, error)

	// Reset drops the slot. Resetting a missing slot is not an error.
	Reset(ctx context.Context, key connection.SlotKey) error

	// Keys lists the slots currently stored.
	Keys(ctx context.Context) ([]connection.SlotKey, error)

	Close() error
}

// record is the serialized form of an Entry.
type record struct {
	Connection *connection.Connection `json:"connection"`
	Halted     bool                   `json:"halted,omitempty"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

func staleError(method string, key connection.SlotKey, expected uint64) error {
	return errors.WrapInvalid(ErrStaleRevision, "slot", method,
		"commit "+key.String()+" at revision "+formatRevision(expected))
}
