package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhive/internal/domain"
	"github.com/phrazzld/taskhive/internal/platform/logger"
	"github.com/phrazzld/taskhive/internal/store"
)

// taskColumns selects a task row plus its membership sets, each aggregated
// as a comma-separated list in insertion order.
const taskColumns = `
	t.id, t.title, t.description, t.status, t.due_date, t.creator_id, t.parent_id,
	t.is_recurring, t.recurrence_rule, t.is_private, t.last_notification_sent,
	t.created_at, t.updated_at,
	COALESCE((SELECT string_agg(a.user_id::text, ',' ORDER BY a.added_at, a.user_id)
		FROM task_assignees a WHERE a.task_id = t.id), ''),
	COALESCE((SELECT string_agg(f.user_id::text, ',' ORDER BY f.added_at, f.user_id)
		FROM task_followers f WHERE f.task_id = t.id), ''),
	COALESCE((SELECT string_agg(m.team_id::text, ',' ORDER BY m.added_at, m.team_id)
		FROM task_teams m WHERE m.task_id = t.id), '')`

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the TaskStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// Create implements store.TaskStore.Create.
// The task row and its membership rows are separate statements, so callers
// should run it inside a transaction.
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO tasks (
			id, title, description, status, due_date, creator_id, parent_id,
			is_recurring, recurrence_rule, is_private, last_notification_sent,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := s.db.ExecContext(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		string(task.Status),
		nullTime(task.DueDate),
		task.CreatorID,
		nullUUID(task.ParentID),
		task.IsRecurring,
		task.RecurrenceRule,
		task.IsPrivate,
		nullTime(task.LastNotificationSent),
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return MapError(err)
	}

	for _, rel := range []domain.Relation{domain.RelationAssignee, domain.RelationFollower, domain.RelationTeam} {
		for _, memberID := range membersOf(task, rel) {
			if err := s.AddMember(ctx, task.ID, rel, memberID); err != nil {
				return err
			}
		}
	}

	log.Info("task created successfully",
		slog.String("task_id", task.ID.String()),
		slog.String("creator_id", task.CreatorID.String()))
	return nil
}

// GetByID implements store.TaskStore.GetByID
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	log.Debug("retrieving task by ID", slog.String("task_id", id.String()))

	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE t.id = $1`
	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found", slog.String("task_id", id.String()))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task by ID",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, MapError(err)
	}
	return task, nil
}

// GetForUpdate implements store.TaskStore.GetForUpdate.
// The row lock is taken on the tasks row only; membership rows are read
// afterwards under the same transaction.
func (s *PostgresTaskStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var locked uuid.UUID
	err := s.db.QueryRowContext(ctx, `SELECT id FROM tasks WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to lock task",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, MapError(err)
	}
	return s.GetByID(ctx, id)
}

// Update implements store.TaskStore.Update
func (s *PostgresTaskStore) Update(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		UPDATE tasks
		SET title = $2, description = $3, status = $4, due_date = $5,
			is_recurring = $6, recurrence_rule = $7, is_private = $8,
			last_notification_sent = $9, updated_at = $10
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		string(task.Status),
		nullTime(task.DueDate),
		task.IsRecurring,
		task.RecurrenceRule,
		task.IsPrivate,
		nullTime(task.LastNotificationSent),
		task.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to update task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return MapError(err)
	}
	if err := CheckRowsAffected(result, store.ErrTaskNotFound); err != nil {
		return err
	}

	log.Debug("task updated",
		slog.String("task_id", task.ID.String()),
		slog.String("status", string(task.Status)))
	return nil
}

// Delete implements store.TaskStore.Delete.
// Audit log entries, notifications and membership rows go with the task
// through ON DELETE CASCADE. A task that still has subtasks fails with
// store.ErrInvalidEntity.
func (s *PostgresTaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		log.Error("failed to delete task",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return MapError(err)
	}
	if err := CheckRowsAffected(result, store.ErrTaskNotFound); err != nil {
		return err
	}

	log.Info("task deleted", slog.String("task_id", id.String()))
	return nil
}

// ListChildren implements store.TaskStore.ListChildren
func (s *PostgresTaskStore) ListChildren(ctx context.Context, parentID uuid.UUID) ([]*domain.Task, error) {
	query := `SELECT ` + taskColumns + `
		FROM tasks t
		WHERE t.parent_id = $1
		ORDER BY t.created_at, t.id`
	return s.queryTasks(ctx, "list children", query, parentID)
}

// AddMember implements store.TaskStore.AddMember
func (s *PostgresTaskStore) AddMember(ctx context.Context, taskID uuid.UUID, rel domain.Relation, memberID uuid.UUID) error {
	table, column, err := relationTable(rel)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (task_id, %s) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		table, column,
	)
	if _, err := s.db.ExecContext(ctx, query, taskID, memberID); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to add task member",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID.String()),
			slog.String("relation", string(rel)),
			slog.String("member_id", memberID.String()))
		return MapError(err)
	}
	return nil
}

// RemoveMember implements store.TaskStore.RemoveMember
func (s *PostgresTaskStore) RemoveMember(ctx context.Context, taskID uuid.UUID, rel domain.Relation, memberID uuid.UUID) error {
	table, column, err := relationTable(rel)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE task_id = $1 AND %s = $2`, table, column)
	if _, err := s.db.ExecContext(ctx, query, taskID, memberID); err != nil {
		return MapError(err)
	}
	return nil
}

// FindOpenDueBetween implements store.TaskStore.FindOpenDueBetween
func (s *PostgresTaskStore) FindOpenDueBetween(ctx context.Context, from, to time.Time) ([]*domain.Task, error) {
	query := `SELECT ` + taskColumns + `
		FROM tasks t
		WHERE t.status <> 'DONE' AND t.due_date > $1 AND t.due_date <= $2
		ORDER BY t.due_date, t.id`
	return s.queryTasks(ctx, "find due soon", query, from, to)
}

// FindOpenOverdue implements store.TaskStore.FindOpenOverdue
func (s *PostgresTaskStore) FindOpenOverdue(ctx context.Context, now time.Time) ([]*domain.Task, error) {
	query := `SELECT ` + taskColumns + `
		FROM tasks t
		WHERE t.status <> 'DONE' AND t.due_date < $1
		ORDER BY t.due_date, t.id`
	return s.queryTasks(ctx, "find overdue", query, now)
}

// FindRecurringDone implements store.TaskStore.FindRecurringDone
func (s *PostgresTaskStore) FindRecurringDone(ctx context.Context) ([]*domain.Task, error) {
	query := `SELECT ` + taskColumns + `
		FROM tasks t
		WHERE t.is_recurring AND t.status = 'DONE' AND t.recurrence_rule <> ''
		ORDER BY t.created_at, t.id`
	return s.queryTasks(ctx, "find recurring", query)
}

// List implements store.TaskStore.List
func (s *PostgresTaskStore) List(ctx context.Context, q store.TaskQuery) ([]*domain.Task, error) {
	query, args := buildListQuery(q.Normalize())
	return s.queryTasks(ctx, "list tasks", query, args...)
}

func buildListQuery(q store.TaskQuery) (string, []any) {
	args := []any{q.ViewerID}
	where := []string{`(
		t.creator_id = $1
		OR EXISTS (SELECT 1 FROM task_assignees a WHERE a.task_id = t.id AND a.user_id = $1)
		OR EXISTS (SELECT 1 FROM task_followers f WHERE f.task_id = t.id AND f.user_id = $1)
		OR EXISTS (
			SELECT 1 FROM task_teams tt JOIN teams tm ON tm.id = tt.team_id
			WHERE tt.task_id = t.id AND (
				tm.creator_id = $1
				OR EXISTS (SELECT 1 FROM team_members mm WHERE mm.team_id = tm.id AND mm.user_id = $1)
			)
		)
	)`}

	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if q.CreatorID != nil {
		add("t.creator_id = $%d", *q.CreatorID)
	}
	if q.AssigneeID != nil {
		add("EXISTS (SELECT 1 FROM task_assignees qa WHERE qa.task_id = t.id AND qa.user_id = $%d)", *q.AssigneeID)
	}
	if q.TeamID != nil {
		add("EXISTS (SELECT 1 FROM task_teams qt WHERE qt.task_id = t.id AND qt.team_id = $%d)", *q.TeamID)
	}
	if q.CreatedAfter != nil {
		add("t.created_at > $%d", *q.CreatedAfter)
	}
	if q.CreatedBefore != nil {
		add("t.created_at < $%d", *q.CreatedBefore)
	}
	if q.DueAfter != nil {
		add("t.due_date > $%d", *q.DueAfter)
	}
	if q.DueBefore != nil {
		add("t.due_date < $%d", *q.DueBefore)
	}

	dir := string(q.Order)
	var orderBy string
	switch q.SortBy {
	case store.SortByDueDate:
		orderBy = fmt.Sprintf("t.due_date %s NULLS LAST, t.id %s", dir, dir)
	case store.SortByCreator:
		orderBy = fmt.Sprintf("cu.username %s, t.id %s", dir, dir)
	case store.SortByID:
		orderBy = fmt.Sprintf("t.id %s", dir)
	default:
		orderBy = fmt.Sprintf("t.created_at %s, t.id %s", dir, dir)
	}

	query := `SELECT ` + taskColumns + `
		FROM tasks t
		JOIN users cu ON cu.id = t.creator_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY ` + orderBy
	return query, args
}

func (s *PostgresTaskStore) queryTasks(ctx context.Context, op, query string, args ...any) ([]*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query tasks",
			slog.String("operation", op),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			log.Error("failed to scan task row",
				slog.String("operation", op),
				slog.String("error", err.Error()))
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	log.Debug("tasks queried",
		slog.String("operation", op),
		slog.Int("count", len(tasks)))
	return tasks, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task                          domain.Task
		status                        string
		dueDate, lastNotificationSent sql.NullTime
		parentID                      uuid.NullUUID
		assignees, followers, teams   string
	)
	err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&status,
		&dueDate,
		&task.CreatorID,
		&parentID,
		&task.IsRecurring,
		&task.RecurrenceRule,
		&task.IsPrivate,
		&lastNotificationSent,
		&task.CreatedAt,
		&task.UpdatedAt,
		&assignees,
		&followers,
		&teams,
	)
	if err != nil {
		return nil, err
	}

	task.Status = domain.TaskStatus(status)
	if dueDate.Valid {
		t := dueDate.Time.UTC()
		task.DueDate = &t
	}
	if lastNotificationSent.Valid {
		t := lastNotificationSent.Time.UTC()
		task.LastNotificationSent = &t
	}
	if parentID.Valid {
		id := parentID.UUID
		task.ParentID = &id
	}
	task.CreatedAt = task.CreatedAt.UTC()
	task.UpdatedAt = task.UpdatedAt.UTC()

	if task.AssigneeIDs, err = parseIDList(assignees); err != nil {
		return nil, err
	}
	if task.FollowerIDs, err = parseIDList(followers); err != nil {
		return nil, err
	}
	if task.TeamIDs, err = parseIDList(teams); err != nil {
		return nil, err
	}
	return &task, nil
}

// parseIDList splits a string_agg result. An empty string yields an empty,
// non-nil slice.
func parseIDList(s string) ([]uuid.UUID, error) {
	if s == "" {
		return []uuid.UUID{}, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]uuid.UUID, 0, len(parts))
	for _, p := range parts {
		id, err := uuid.Parse(p)
		if err != nil {
			return nil, fmt.Errorf("invalid member id %q: %w", p, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func relationTable(rel domain.Relation) (table, column string, err error) {
	switch rel {
	case domain.RelationAssignee:
		return "task_assignees", "user_id", nil
	case domain.RelationFollower:
		return "task_followers", "user_id", nil
	case domain.RelationTeam:
		return "task_teams", "team_id", nil
	}
	return "", "", fmt.Errorf("%w: unknown relation %q", store.ErrInvalidEntity, rel)
}

func membersOf(task *domain.Task, rel domain.Relation) []uuid.UUID {
	switch rel {
	case domain.RelationAssignee:
		return task.AssigneeIDs
	case domain.RelationFollower:
		return task.FollowerIDs
	case domain.RelationTeam:
		return task.TeamIDs
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
