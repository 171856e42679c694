package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/taskhive/internal/store"
)

// Transactor implements store.Transactor over a *sql.DB.
type Transactor struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ store.Transactor = (*Transactor)(nil)

// NewTransactor creates a Transactor for db.
func NewTransactor(db *sql.DB, logger *slog.Logger) *Transactor {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Transactor{db: db, logger: logger}
}

// NewStores binds every PostgreSQL store to db.
func NewStores(db store.DBTX, logger *slog.Logger) store.Stores {
	return store.Stores{
		Tasks:         NewPostgresTaskStore(db, logger),
		Logs:          NewPostgresAuditLogStore(db, logger),
		Notifications: NewPostgresNotificationStore(db, logger),
		Users:         NewPostgresUserStore(db, logger),
		Teams:         NewPostgresTeamStore(db, logger),
	}
}

// Stores implements store.Transactor.Stores
func (t *Transactor) Stores() store.Stores {
	return NewStores(t.db, t.logger)
}

// WithinTx implements store.Transactor.WithinTx on store.RunInTransaction.
// Serialization failures and deadlocks surfacing at commit are reported as
// store.ErrTransient.
func (t *Transactor) WithinTx(ctx context.Context, fn store.StoresFn) error {
	err := store.RunInTransaction(ctx, t.db, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, NewStores(tx, t.logger))
	})
	if err != nil && IsTransient(err) && !errors.Is(err, store.ErrTransient) {
		return fmt.Errorf("%w: %w", store.ErrTransient, err)
	}
	return err
}
