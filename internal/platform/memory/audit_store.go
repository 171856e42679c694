package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhive/internal/domain"
	"github.com/phrazzld/taskhive/internal/store"
)

// AuditLogStore implements store.AuditLogStore in memory.
type AuditLogStore struct {
	r *repo
}

var _ store.AuditLogStore = (*AuditLogStore)(nil)

func (s *AuditLogStore) Create(ctx context.Context, entry *domain.AuditLogEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	return s.r.write(ctx, func(st *state) error {
		if _, ok := st.tasks[entry.TaskID]; !ok {
			return fmt.Errorf("%w: task %s does not exist", store.ErrInvalidEntity, entry.TaskID)
		}
		if _, ok := st.users[entry.UserID]; !ok {
			return fmt.Errorf("%w: user %s does not exist", store.ErrInvalidEntity, entry.UserID)
		}
		if _, ok := st.logs[entry.ID]; ok {
			return store.ErrDuplicate
		}
		rec := &logRecord{entry: *entry, seq: st.nextSeq()}
		rec.entry.AuthorName = ""
		st.logs[entry.ID] = rec
		return nil
	})
}

func (s *AuditLogStore) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.AuditLogEntry, error) {
	var recs []*logRecord
	names := make(map[uuid.UUID]string)
	err := s.r.read(func(st *state) error {
		for _, l := range st.logs {
			if l.entry.TaskID != taskID {
				continue
			}
			cp := *l
			recs = append(recs, &cp)
			if u, ok := st.users[l.entry.UserID]; ok {
				names[u.ID] = u.DisplayName()
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if !a.entry.CreatedAt.Equal(b.entry.CreatedAt) {
			return a.entry.CreatedAt.After(b.entry.CreatedAt)
		}
		return a.seq > b.seq
	})

	out := make([]*domain.AuditLogEntry, 0, len(recs))
	for _, rec := range recs {
		entry := rec.entry
		entry.AuthorName = names[entry.UserID]
		if entry.AuthorName == "" {
			entry.AuthorName = entry.UserID.String()
		}
		out = append(out, &entry)
	}
	return out, nil
}
