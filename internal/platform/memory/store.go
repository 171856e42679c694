package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhive/internal/domain"
	"github.com/phrazzld/taskhive/internal/platform/logger"
	"github.com/phrazzld/taskhive/internal/store"
)

// state is one consistent version of the dataset.
type state struct {
	tasks         map[uuid.UUID]*domain.Task
	logs          map[uuid.UUID]*logRecord
	notifications map[uuid.UUID]*notificationRecord
	users         map[uuid.UUID]*domain.User
	teams         map[uuid.UUID]*domain.Team
	// seq orders log and notification rows written within the same instant.
	seq int64
}

type logRecord struct {
	entry domain.AuditLogEntry
	seq   int64
}

type notificationRecord struct {
	n   domain.Notification
	seq int64
}

func newState() *state {
	return &state{
		tasks:         make(map[uuid.UUID]*domain.Task),
		logs:          make(map[uuid.UUID]*logRecord),
		notifications: make(map[uuid.UUID]*notificationRecord),
		users:         make(map[uuid.UUID]*domain.User),
		teams:         make(map[uuid.UUID]*domain.Team),
	}
}

func (s *state) clone() *state {
	c := &state{
		tasks:         make(map[uuid.UUID]*domain.Task, len(s.tasks)),
		logs:          make(map[uuid.UUID]*logRecord, len(s.logs)),
		notifications: make(map[uuid.UUID]*notificationRecord, len(s.notifications)),
		users:         make(map[uuid.UUID]*domain.User, len(s.users)),
		teams:         make(map[uuid.UUID]*domain.Team, len(s.teams)),
		seq:           s.seq,
	}
	for id, t := range s.tasks {
		c.tasks[id] = copyTask(t)
	}
	for id, l := range s.logs {
		cp := *l
		c.logs[id] = &cp
	}
	for id, n := range s.notifications {
		cp := *n
		c.notifications[id] = &cp
	}
	for id, u := range s.users {
		cp := *u
		c.users[id] = &cp
	}
	for id, t := range s.teams {
		cp := *t
		cp.MemberIDs = append([]uuid.UUID(nil), t.MemberIDs...)
		c.teams[id] = &cp
	}
	return c
}

func (s *state) nextSeq() int64 {
	s.seq++
	return s.seq
}

// Store is an in-memory implementation of store.Transactor.
type Store struct {
	// txMu serializes writers: transactions and autocommitted writes.
	txMu sync.Mutex
	// mu guards current.
	mu      sync.RWMutex
	current *state
	logger  *slog.Logger
}

var _ store.Transactor = (*Store)(nil)

// New creates an empty in-memory store.
func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		current: newState(),
		logger:  logger.With(slog.String("component", "memory_store")),
	}
}

// Stores returns stores that commit every write immediately.
func (s *Store) Stores() store.Stores {
	return storesFor(&repo{store: s})
}

// WithinTx runs fn against a private copy of the data and publishes the copy
// only if fn succeeds and ctx is still live.
func (s *Store) WithinTx(ctx context.Context, fn store.StoresFn) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	s.mu.RLock()
	work := s.current.clone()
	s.mu.RUnlock()

	if err := fn(ctx, storesFor(&repo{store: s, tx: work})); err != nil {
		log.Debug("rolled back transaction due to error", slog.String("error", err.Error()))
		return err
	}
	if err := ctx.Err(); err != nil {
		log.Debug("rolled back cancelled transaction", slog.String("error", err.Error()))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.mu.Lock()
	s.current = work
	s.mu.Unlock()

	log.Debug("transaction committed successfully")
	return nil
}

// repo is the shared receiver behind every store in one Stores bundle.
// A nil tx means autocommit against the shared state.
type repo struct {
	store *Store
	tx    *state
}

func storesFor(r *repo) store.Stores {
	return store.Stores{
		Tasks:         &TaskStore{r: r},
		Logs:          &AuditLogStore{r: r},
		Notifications: &NotificationStore{r: r},
		Users:         &UserStore{r: r},
		Teams:         &TeamStore{r: r},
	}
}

func (r *repo) read(fn func(st *state) error) error {
	if r.tx != nil {
		return fn(r.tx)
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return fn(r.store.current)
}

func (r *repo) write(ctx context.Context, fn func(st *state) error) error {
	if r.tx != nil {
		return fn(r.tx)
	}
	return r.store.WithinTx(ctx, func(ctx context.Context, s store.Stores) error {
		return fn(s.Tasks.(*TaskStore).r.tx)
	})
}
