package memory

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhive/internal/domain"
	"github.com/phrazzld/taskhive/internal/store"
)

// TaskStore implements store.TaskStore in memory.
type TaskStore struct {
	r *repo
}

var _ store.TaskStore = (*TaskStore)(nil)

func copyTask(t *domain.Task) *domain.Task {
	cp := *t
	cp.AssigneeIDs = append([]uuid.UUID{}, t.AssigneeIDs...)
	cp.FollowerIDs = append([]uuid.UUID{}, t.FollowerIDs...)
	cp.TeamIDs = append([]uuid.UUID{}, t.TeamIDs...)
	if t.DueDate != nil {
		d := *t.DueDate
		cp.DueDate = &d
	}
	if t.ParentID != nil {
		p := *t.ParentID
		cp.ParentID = &p
	}
	if t.LastNotificationSent != nil {
		l := *t.LastNotificationSent
		cp.LastNotificationSent = &l
	}
	return &cp
}

func (s *TaskStore) Create(ctx context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	return s.r.write(ctx, func(st *state) error {
		if _, ok := st.tasks[task.ID]; ok {
			return store.ErrDuplicate
		}
		if _, ok := st.users[task.CreatorID]; !ok {
			return fmt.Errorf("%w: creator %s does not exist", store.ErrInvalidEntity, task.CreatorID)
		}
		if task.HasParent() {
			if _, ok := st.tasks[*task.ParentID]; !ok {
				return fmt.Errorf("%w: parent %s does not exist", store.ErrInvalidEntity, *task.ParentID)
			}
		}
		for _, rel := range []domain.Relation{domain.RelationAssignee, domain.RelationFollower, domain.RelationTeam} {
			for _, id := range memberIDs(task, rel) {
				if err := checkMember(st, rel, id); err != nil {
					return err
				}
			}
		}
		st.tasks[task.ID] = copyTask(task)
		return nil
	})
}

func (s *TaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	var out *domain.Task
	err := s.r.read(func(st *state) error {
		t, ok := st.tasks[id]
		if !ok {
			return store.ErrTaskNotFound
		}
		out = copyTask(t)
		return nil
	})
	return out, err
}

// GetForUpdate is GetByID; transactions are already serialized.
func (s *TaskStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return s.GetByID(ctx, id)
}

func (s *TaskStore) Update(ctx context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	return s.r.write(ctx, func(st *state) error {
		existing, ok := st.tasks[task.ID]
		if !ok {
			return store.ErrTaskNotFound
		}
		updated := copyTask(task)
		updated.CreatorID = existing.CreatorID
		updated.ParentID = existing.ParentID
		updated.CreatedAt = existing.CreatedAt
		updated.AssigneeIDs = existing.AssigneeIDs
		updated.FollowerIDs = existing.FollowerIDs
		updated.TeamIDs = existing.TeamIDs
		st.tasks[task.ID] = updated
		return nil
	})
}

func (s *TaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.r.write(ctx, func(st *state) error {
		if _, ok := st.tasks[id]; !ok {
			return store.ErrTaskNotFound
		}
		for _, t := range st.tasks {
			if t.ParentID != nil && *t.ParentID == id {
				return fmt.Errorf("%w: task %s still has subtasks", store.ErrInvalidEntity, id)
			}
		}
		delete(st.tasks, id)
		for logID, l := range st.logs {
			if l.entry.TaskID == id {
				delete(st.logs, logID)
			}
		}
		for nID, n := range st.notifications {
			if n.n.TaskID != nil && *n.n.TaskID == id {
				delete(st.notifications, nID)
			}
		}
		return nil
	})
}

func (s *TaskStore) ListChildren(ctx context.Context, parentID uuid.UUID) ([]*domain.Task, error) {
	tasks, err := s.filter(func(t *domain.Task) bool {
		return t.ParentID != nil && *t.ParentID == parentID
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		}
		return bytes.Compare(tasks[i].ID[:], tasks[j].ID[:]) < 0
	})
	return tasks, nil
}

func (s *TaskStore) AddMember(ctx context.Context, taskID uuid.UUID, rel domain.Relation, memberID uuid.UUID) error {
	return s.r.write(ctx, func(st *state) error {
		t, ok := st.tasks[taskID]
		if !ok {
			return store.ErrTaskNotFound
		}
		if t.Has(rel, memberID) {
			return nil
		}
		if err := checkMember(st, rel, memberID); err != nil {
			return err
		}
		t.Add(rel, memberID)
		return nil
	})
}

func (s *TaskStore) RemoveMember(ctx context.Context, taskID uuid.UUID, rel domain.Relation, memberID uuid.UUID) error {
	return s.r.write(ctx, func(st *state) error {
		t, ok := st.tasks[taskID]
		if !ok {
			return store.ErrTaskNotFound
		}
		t.Remove(rel, memberID)
		return nil
	})
}

func (s *TaskStore) FindOpenDueBetween(ctx context.Context, from, to time.Time) ([]*domain.Task, error) {
	tasks, err := s.filter(func(t *domain.Task) bool {
		return !t.IsDone() && t.DueDate != nil && t.DueDate.After(from) && !t.DueDate.After(to)
	})
	sortByDue(tasks)
	return tasks, err
}

func (s *TaskStore) FindOpenOverdue(ctx context.Context, now time.Time) ([]*domain.Task, error) {
	tasks, err := s.filter(func(t *domain.Task) bool {
		return !t.IsDone() && t.DueDate != nil && t.DueDate.Before(now)
	})
	sortByDue(tasks)
	return tasks, err
}

func (s *TaskStore) FindRecurringDone(ctx context.Context) ([]*domain.Task, error) {
	tasks, err := s.filter(func(t *domain.Task) bool {
		return t.IsRecurring && t.IsDone() && t.RecurrenceRule != ""
	})
	sortTasks(tasks, store.SortByCreatedAt, store.SortAsc, nil)
	return tasks, err
}

func (s *TaskStore) List(ctx context.Context, q store.TaskQuery) ([]*domain.Task, error) {
	q = q.Normalize()
	var (
		out       []*domain.Task
		usernames map[uuid.UUID]string
	)
	err := s.r.read(func(st *state) error {
		usernames = make(map[uuid.UUID]string, len(st.users))
		for id, u := range st.users {
			usernames[id] = u.Username
		}
		for _, t := range st.tasks {
			if visible(st, t, q.ViewerID) && matches(t, q) {
				out = append(out, copyTask(t))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortTasks(out, q.SortBy, q.Order, usernames)
	return out, nil
}

func (s *TaskStore) filter(keep func(t *domain.Task) bool) ([]*domain.Task, error) {
	var out []*domain.Task
	err := s.r.read(func(st *state) error {
		for _, t := range st.tasks {
			if keep(t) {
				out = append(out, copyTask(t))
			}
		}
		return nil
	})
	return out, err
}

func memberIDs(t *domain.Task, rel domain.Relation) []uuid.UUID {
	switch rel {
	case domain.RelationAssignee:
		return t.AssigneeIDs
	case domain.RelationFollower:
		return t.FollowerIDs
	case domain.RelationTeam:
		return t.TeamIDs
	}
	return nil
}

func checkMember(st *state, rel domain.Relation, id uuid.UUID) error {
	switch rel {
	case domain.RelationAssignee, domain.RelationFollower:
		if _, ok := st.users[id]; !ok {
			return fmt.Errorf("%w: user %s does not exist", store.ErrInvalidEntity, id)
		}
	case domain.RelationTeam:
		if _, ok := st.teams[id]; !ok {
			return fmt.Errorf("%w: team %s does not exist", store.ErrInvalidEntity, id)
		}
	default:
		return fmt.Errorf("%w: unknown relation %q", store.ErrInvalidEntity, rel)
	}
	return nil
}

func visible(st *state, t *domain.Task, viewer uuid.UUID) bool {
	if t.CreatorID == viewer || t.HasAssignee(viewer) || t.HasFollower(viewer) {
		return true
	}
	for _, teamID := range t.TeamIDs {
		if team, ok := st.teams[teamID]; ok && team.HasMember(viewer) {
			return true
		}
	}
	return false
}

func matches(t *domain.Task, q store.TaskQuery) bool {
	if q.CreatorID != nil && t.CreatorID != *q.CreatorID {
		return false
	}
	if q.AssigneeID != nil && !t.HasAssignee(*q.AssigneeID) {
		return false
	}
	if q.TeamID != nil && !t.HasTeam(*q.TeamID) {
		return false
	}
	if q.CreatedAfter != nil && !t.CreatedAt.After(*q.CreatedAfter) {
		return false
	}
	if q.CreatedBefore != nil && !t.CreatedAt.Before(*q.CreatedBefore) {
		return false
	}
	if q.DueAfter != nil && (t.DueDate == nil || !t.DueDate.After(*q.DueAfter)) {
		return false
	}
	if q.DueBefore != nil && (t.DueDate == nil || !t.DueDate.Before(*q.DueBefore)) {
		return false
	}
	return true
}

func sortByDue(tasks []*domain.Task) {
	sortTasks(tasks, store.SortByDueDate, store.SortAsc, nil)
}

// sortTasks orders by the given field with nil due dates last and the ID
// as a tie-breaker.
func sortTasks(tasks []*domain.Task, by store.TaskSortField, order store.SortOrder, usernames map[uuid.UUID]string) {
	desc := order == store.SortDesc
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		var cmp int
		switch by {
		case store.SortByDueDate:
			switch {
			case a.DueDate == nil && b.DueDate == nil:
			case a.DueDate == nil:
				return false
			case b.DueDate == nil:
				return true
			default:
				cmp = a.DueDate.Compare(*b.DueDate)
			}
		case store.SortByCreator:
			cmp = strings.Compare(usernames[a.CreatorID], usernames[b.CreatorID])
		case store.SortByID:
		default:
			cmp = a.CreatedAt.Compare(b.CreatedAt)
		}
		if cmp == 0 {
			cmp = bytes.Compare(a.ID[:], b.ID[:])
		}
		if desc {
			return cmp > 0
		}
		return cmp < 0
	})
}
