package domain

import (
	"context"
	"time"
)

// LedgerTx is a unit of work on one user's ledger. Implementations hold an
// exclusive lock on the user for the lifetime of the transaction; writes
// become visible together when the callback returns nil.
type LedgerTx interface {
	// User returns the locked user, reflecting UpdateUser calls made so far.
	User() User
	// Lots returns credit lots with remaining value, expired or not, ordered
	// by expiry, then creation time, then id.
	Lots(ctx context.Context) ([]Lot, error)
	InsertEntry(ctx context.Context, entry LedgerEntry, draws []LotDraw) error
	UpdateUser(ctx context.Context, user User) error
	AppendHistory(ctx context.Context, rec HistoryRecord) error
	History(ctx context.Context, limit int) ([]HistoryRecord, error)
}

// LedgerStore persists users, ledger entries and their history.
type LedgerStore interface {
	// Register creates the user when absent and runs fn in the same
	// transaction. It reports false without calling fn if the user exists.
	Register(ctx context.Context, user User, fn func(tx LedgerTx) error) (bool, error)
	// WithUser runs fn under the user's lock. ErrNotFound if the user is absent.
	WithUser(ctx context.Context, userID string, fn func(tx LedgerTx) error) error
	// UsersWithLapsedLots lists users holding lots expired at or before t
	// that still have remaining value.
	UsersWithLapsedLots(ctx context.Context, t time.Time) ([]string, error)
}
