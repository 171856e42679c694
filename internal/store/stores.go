package store

import "context"

// Stores bundles every store bound to the same connection or transaction.
type Stores struct {
	Tasks         TaskStore
	Logs          AuditLogStore
	Notifications NotificationStore
	Users         UserStore
	Teams         TeamStore
}

// StoresFn is a unit of work executed against transaction-bound stores.
type StoresFn func(ctx context.Context, s Stores) error

// Transactor runs units of work atomically.
type Transactor interface {
	// Stores returns stores that run each call in its own implicit transaction.
	Stores() Stores

	// WithinTx executes fn against stores bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back on error, panic
	// or context cancellation.
	WithinTx(ctx context.Context, fn StoresFn) error
}
