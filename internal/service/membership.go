package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhive/internal/domain"
	"github.com/phrazzld/taskhive/internal/events"
	"github.com/phrazzld/taskhive/internal/platform/logger"
	"github.com/phrazzld/taskhive/internal/store"
)

// membershipText holds the messages for one relation.
type membershipText struct {
	label   string
	added   string
	present string
	removed string
	absent  string
}

var membershipTexts = map[domain.Relation]membershipText{
	domain.RelationFollower: {
		label:   "follower",
		added:   "Follower added successfully",
		present: "User is already a follower",
		removed: "Follower removed successfully",
		absent:  "User is not a follower",
	},
	domain.RelationAssignee: {
		label:   "assignee",
		added:   "Assignee added successfully",
		present: "User is already an assignee",
		removed: "Assignee removed successfully",
		absent:  "User is not an assignee",
	},
	domain.RelationTeam: {
		label:   "team",
		added:   "Team added successfully",
		present: "Team is already assigned to this task",
		removed: "Team removed successfully",
		absent:  "Team is not assigned to this task",
	},
}

// AddFollower implements TaskService.AddFollower
func (s *taskServiceImpl) AddFollower(ctx context.Context, taskID, userID, actorID uuid.UUID) (string, error) {
	return s.changeMembership(ctx, "add_follower", taskID, domain.RelationFollower, userID, actorID, true, false)
}

// RemoveFollower implements TaskService.RemoveFollower
func (s *taskServiceImpl) RemoveFollower(ctx context.Context, taskID, userID, actorID uuid.UUID) (string, error) {
	return s.changeMembership(ctx, "remove_follower", taskID, domain.RelationFollower, userID, actorID, false, false)
}

// AddAssignee implements TaskService.AddAssignee.
// With addToFollowers the user also becomes a follower so the task stays
// visible to them.
func (s *taskServiceImpl) AddAssignee(
	ctx context.Context,
	taskID, userID, actorID uuid.UUID,
	addToFollowers bool,
) (string, error) {
	return s.changeMembership(ctx, "add_assignee", taskID, domain.RelationAssignee, userID, actorID, true, addToFollowers)
}

// RemoveAssignee implements TaskService.RemoveAssignee
func (s *taskServiceImpl) RemoveAssignee(ctx context.Context, taskID, userID, actorID uuid.UUID) (string, error) {
	return s.changeMembership(ctx, "remove_assignee", taskID, domain.RelationAssignee, userID, actorID, false, false)
}

// AddTeam implements TaskService.AddTeam
func (s *taskServiceImpl) AddTeam(ctx context.Context, taskID, teamID, actorID uuid.UUID) (string, error) {
	return s.changeMembership(ctx, "add_team", taskID, domain.RelationTeam, teamID, actorID, true, false)
}

// RemoveTeam implements TaskService.RemoveTeam
func (s *taskServiceImpl) RemoveTeam(ctx context.Context, taskID, teamID, actorID uuid.UUID) (string, error) {
	return s.changeMembership(ctx, "remove_team", taskID, domain.RelationTeam, teamID, actorID, false, false)
}

func (s *taskServiceImpl) changeMembership(
	ctx context.Context,
	operation string,
	taskID uuid.UUID,
	rel domain.Relation,
	memberID, actorID uuid.UUID,
	add, alsoFollow bool,
) (string, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	text := membershipTexts[rel]
	now := s.now()

	var (
		message string
		pending []*events.TaskEvent
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		task, err := st.Tasks.GetForUpdate(ctx, taskID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrTaskNotFound
			}
			return err
		}

		present := task.Has(rel, memberID)
		switch {
		case add && present:
			message = text.present
			return nil
		case !add && !present:
			message = text.absent
			return nil
		case add:
			ev, err := s.addMember(ctx, st, task, rel, memberID, actorID, alsoFollow, now)
			if err != nil {
				return err
			}
			if ev != nil {
				pending = append(pending, ev)
			}
			message = text.added
			return nil
		default:
			if err := s.removeMember(ctx, st, task, rel, memberID, actorID, now); err != nil {
				return err
			}
			message = text.removed
			return nil
		}
	})
	if err != nil {
		log.Error("membership change failed",
			slog.String("error", err.Error()),
			slog.String("operation", operation),
			slog.String("task_id", taskID.String()),
			slog.String("member_id", memberID.String()))
		return "", wrapErr(operation, "failed to change task membership", err)
	}

	s.emit(ctx, pending)
	return message, nil
}

// addMember inserts memberID into rel and logs it. It returns the event to
// publish after commit, which is non-nil only for assignees.
func (s *taskServiceImpl) addMember(
	ctx context.Context,
	st store.Stores,
	task *domain.Task,
	rel domain.Relation,
	memberID, actorID uuid.UUID,
	alsoFollow bool,
	now time.Time,
) (*events.TaskEvent, error) {
	if err := st.Tasks.AddMember(ctx, task.ID, rel, memberID); err != nil {
		return nil, mapStoreError(err)
	}
	task.Add(rel, memberID)

	if alsoFollow && !task.HasFollower(memberID) {
		if err := st.Tasks.AddMember(ctx, task.ID, domain.RelationFollower, memberID); err != nil {
			return nil, mapStoreError(err)
		}
		task.Add(domain.RelationFollower, memberID)
	}

	name := s.memberName(ctx, st, rel, memberID)
	content := "Added " + membershipTexts[rel].label + ": " + name
	if err := s.audit.History(ctx, st.Logs, task.ID, actorID, content, now); err != nil {
		return nil, mapStoreError(err)
	}

	if rel != domain.RelationAssignee {
		return nil, nil
	}
	return events.NewTaskEvent(events.AssigneeAdded, task.ID, actorID, memberID, now), nil
}

func (s *taskServiceImpl) removeMember(
	ctx context.Context,
	st store.Stores,
	task *domain.Task,
	rel domain.Relation,
	memberID, actorID uuid.UUID,
	now time.Time,
) error {
	name := s.memberName(ctx, st, rel, memberID)
	if err := st.Tasks.RemoveMember(ctx, task.ID, rel, memberID); err != nil {
		return mapStoreError(err)
	}
	task.Remove(rel, memberID)

	content := "Removed " + membershipTexts[rel].label + ": " + name
	return mapStoreError(s.audit.History(ctx, st.Logs, task.ID, actorID, content, now))
}

// memberName resolves a display name for audit messages, falling back to the ID.
func (s *taskServiceImpl) memberName(ctx context.Context, st store.Stores, rel domain.Relation, memberID uuid.UUID) string {
	if rel != domain.RelationTeam {
		return s.userName(ctx, st, memberID)
	}
	team, err := st.Teams.GetByID(ctx, memberID)
	if err != nil || team.Name == "" {
		return memberID.String()
	}
	return team.Name
}

func (s *taskServiceImpl) userName(ctx context.Context, st store.Stores, userID uuid.UUID) string {
	user, err := st.Users.GetByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.FromContextOrDefault(ctx, s.logger).Warn("failed to resolve user name",
				slog.String("error", err.Error()),
				slog.String("user_id", userID.String()))
		}
		return userID.String()
	}
	return user.DisplayName()
}
