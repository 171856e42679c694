package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhive/internal/domain"
	"github.com/phrazzld/taskhive/internal/store"
)

// NotificationStore implements store.NotificationStore in memory.
type NotificationStore struct {
	r *repo
}

var _ store.NotificationStore = (*NotificationStore)(nil)

func (s *NotificationStore) Create(ctx context.Context, n *domain.Notification) error {
	if err := n.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	return s.r.write(ctx, func(st *state) error {
		if _, ok := st.users[n.UserID]; !ok {
			return fmt.Errorf("%w: user %s does not exist", store.ErrInvalidEntity, n.UserID)
		}
		if n.TaskID != nil {
			if _, ok := st.tasks[*n.TaskID]; !ok {
				return fmt.Errorf("%w: task %s does not exist", store.ErrInvalidEntity, *n.TaskID)
			}
		}
		if _, ok := st.notifications[n.ID]; ok {
			return store.ErrDuplicate
		}
		rec := &notificationRecord{n: *n, seq: st.nextSeq()}
		if n.TaskID != nil {
			id := *n.TaskID
			rec.n.TaskID = &id
		}
		st.notifications[n.ID] = rec
		return nil
	})
}

func (s *NotificationStore) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Notification, error) {
	out, err := s.collect(func(n *domain.Notification) bool { return n.UserID == userID })
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *NotificationStore) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.Notification, error) {
	return s.collect(func(n *domain.Notification) bool {
		return n.TaskID != nil && *n.TaskID == taskID
	})
}

func (s *NotificationStore) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	count := 0
	err := s.r.read(func(st *state) error {
		for _, rec := range st.notifications {
			if rec.n.UserID == userID && !rec.n.IsRead {
				count++
			}
		}
		return nil
	})
	return count, err
}

func (s *NotificationStore) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	return s.r.write(ctx, func(st *state) error {
		if rec, ok := st.notifications[id]; ok && rec.n.UserID == userID {
			rec.n.IsRead = true
		}
		return nil
	})
}

func (s *NotificationStore) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	return s.r.write(ctx, func(st *state) error {
		for _, rec := range st.notifications {
			if rec.n.UserID == userID {
				rec.n.IsRead = true
			}
		}
		return nil
	})
}

// collect returns matching notifications newest first.
func (s *NotificationStore) collect(keep func(n *domain.Notification) bool) ([]*domain.Notification, error) {
	var recs []notificationRecord
	err := s.r.read(func(st *state) error {
		for _, rec := range st.notifications {
			if keep(&rec.n) {
				recs = append(recs, *rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if !a.n.CreatedAt.Equal(b.n.CreatedAt) {
			return a.n.CreatedAt.After(b.n.CreatedAt)
		}
		return a.seq > b.seq
	})

	out := make([]*domain.Notification, 0, len(recs))
	for i := range recs {
		n := recs[i].n
		out = append(out, &n)
	}
	return out, nil
}
