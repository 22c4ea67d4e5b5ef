// Package mirror persists live-tab snapshots for crash recovery and
// cross-device synchronization. Snapshots are opaque bytes to this package;
// the register package owns their shape and the PII encoding inside them.
package mirror

import (
	"context"
)

// Store is the durable key-value side of the persistence adapter for live
// tabs, keyed by user id then tab id.
type Store interface {
	// Put mirrors one tab snapshot.
	Put(ctx context.Context, userID, tabID string, snapshot []byte) error
	// Delete atomically clears one mirrored tab.
	Delete(ctx context.Context, userID, tabID string) error
	// List returns all mirrored tabs for the user.
	List(ctx context.Context, userID string) (map[string][]byte, error)
	// Watch delivers the full mirrored tab set after each remote change.
	// The channel closes when ctx is cancelled.
	Watch(ctx context.Context, userID string) (<-chan map[string][]byte, error)
}

// UserMirror narrows a Store to a single user, matching the register
// session's Mirror dependency.
type UserMirror struct {
	store  Store
	userID string
}

// ForUser binds the store to one user id.
func ForUser(store Store, userID string) *UserMirror {
	return &UserMirror{store: store, userID: userID}
}

func (m *UserMirror) PutTab(ctx context.Context, tabID string, snapshot []byte) error {
	return m.store.Put(ctx, m.userID, tabID, snapshot)
}

func (m *UserMirror) DeleteTab(ctx context.Context, tabID string) error {
	return m.store.Delete(ctx, m.userID, tabID)
}
