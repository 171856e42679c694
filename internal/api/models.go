package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhive/internal/domain"
)

// CreateTaskRequest defines the payload for creating a task or subtask.
type CreateTaskRequest struct {
	Title          string      `json:"title"           validate:"required,max=500"`
	Description    string      `json:"description"     validate:"max=10000"`
	ParentID       *uuid.UUID  `json:"parentId"`
	AssigneeIDs    []uuid.UUID `json:"assigneeIds"`
	FollowerIDs    []uuid.UUID `json:"followerIds"`
	TeamIDs        []uuid.UUID `json:"teamIds"`
	DueDate        *time.Time  `json:"dueDate"`
	IsRecurring    bool        `json:"isRecurring"`
	RecurrenceRule string      `json:"recurrenceRule"  validate:"omitempty,oneof=daily weekly monthly"`
	IsPrivate      *bool       `json:"isPrivate"`
}

// UpdateTaskRequest defines a partial task update. Absent fields are left
// unchanged; assigneeId adds one assignee.
type UpdateTaskRequest struct {
	Title       *string    `json:"title"       validate:"omitempty,max=500"`
	Description *string    `json:"description" validate:"omitempty,max=10000"`
	Status      *string    `json:"status"      validate:"omitempty,oneof=TODO PENDING DONE"`
	AssigneeID  *uuid.UUID `json:"assigneeId"`
}

// AddAssigneeRequest is the optional body of POST /tasks/{id}/assignees/{userID}.
type AddAssigneeRequest struct {
	AddToFollowers bool `json:"addToFollowers"`
}

// CommentRequest defines the payload for commenting on a task.
type CommentRequest struct {
	Content string `json:"content" validate:"required,max=10000"`
}

// TaskResponse is the API representation of a task.
type TaskResponse struct {
	ID                   uuid.UUID   `json:"id"`
	Title                string      `json:"title"`
	Description          string      `json:"description"`
	Status               string      `json:"status"`
	DueDate              *time.Time  `json:"dueDate,omitempty"`
	CreatorID            uuid.UUID   `json:"creatorId"`
	AssigneeIDs          []uuid.UUID `json:"assigneeIds"`
	FollowerIDs          []uuid.UUID `json:"followerIds"`
	TeamIDs              []uuid.UUID `json:"teamIds"`
	ParentID             *uuid.UUID  `json:"parentId,omitempty"`
	IsRecurring          bool        `json:"isRecurring"`
	RecurrenceRule       string      `json:"recurrenceRule,omitempty"`
	IsPrivate            bool        `json:"isPrivate"`
	LastNotificationSent *time.Time  `json:"lastNotificationSent,omitempty"`
	CreatedAt            time.Time   `json:"createdAt"`
	UpdatedAt            time.Time   `json:"updatedAt"`
}

// HistoryEntryResponse is one audit log entry.
type HistoryEntryResponse struct {
	ID         uuid.UUID `json:"id"`
	Type       string    `json:"type"`
	Content    string    `json:"content"`
	UserID     uuid.UUID `json:"userId"`
	AuthorName string    `json:"authorName,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NotificationResponse is one inbox notification.
type NotificationResponse struct {
	ID        uuid.UUID  `json:"id"`
	Type      string     `json:"type"`
	Message   string     `json:"message"`
	IsRead    bool       `json:"isRead"`
	TaskID    *uuid.UUID `json:"taskId,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// UnreadCountResponse carries the number of unread notifications.
type UnreadCountResponse struct {
	Count int `json:"count"`
}

// MessageResponse carries the status message of a membership operation.
type MessageResponse struct {
	Message string `json:"message"`
}

func nonNilIDs(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}

func taskToResponse(t *domain.Task) TaskResponse {
	return TaskResponse{
		ID:                   t.ID,
		Title:                t.Title,
		Description:          t.Description,
		Status:               string(t.Status),
		DueDate:              t.DueDate,
		CreatorID:            t.CreatorID,
		AssigneeIDs:          nonNilIDs(t.AssigneeIDs),
		FollowerIDs:          nonNilIDs(t.FollowerIDs),
		TeamIDs:              nonNilIDs(t.TeamIDs),
		ParentID:             t.ParentID,
		IsRecurring:          t.IsRecurring,
		RecurrenceRule:       t.RecurrenceRule,
		IsPrivate:            t.IsPrivate,
		LastNotificationSent: t.LastNotificationSent,
		CreatedAt:            t.CreatedAt,
		UpdatedAt:            t.UpdatedAt,
	}
}

func tasksToResponse(tasks []*domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskToResponse(t))
	}
	return out
}

func historyToResponse(entries []*domain.AuditLogEntry) []HistoryEntryResponse {
	out := make([]HistoryEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, HistoryEntryResponse{
			ID:         e.ID,
			Type:       string(e.Type),
			Content:    e.Content,
			UserID:     e.UserID,
			AuthorName: e.AuthorName,
			CreatedAt:  e.CreatedAt,
		})
	}
	return out
}

func notificationsToResponse(list []*domain.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(list))
	for _, n := range list {
		out = append(out, NotificationResponse{
			ID:        n.ID,
			Type:      string(n.Type),
			Message:   n.Message,
			IsRead:    n.IsRead,
			TaskID:    n.TaskID,
			CreatedAt: n.CreatedAt,
		})
	}
	return out
}
