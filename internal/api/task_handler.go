package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhive/internal/api/shared"
	"github.com/phrazzld/taskhive/internal/domain"
	"github.com/phrazzld/taskhive/internal/platform/logger"
	"github.com/phrazzld/taskhive/internal/redact"
	"github.com/phrazzld/taskhive/internal/service"
)

// TaskHandler handles task-related HTTP requests
type TaskHandler struct {
	taskService service.TaskService
	logger      *slog.Logger
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(taskService service.TaskService, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskHandler{
		taskService: taskService,
		logger:      logger.With(slog.String("component", "task_handler")),
	}
}

// decodeAndValidate parses the JSON body into req and validates it. It
// writes a 400 response and returns false on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, log *slog.Logger, req interface{}) bool {
	if err := shared.DecodeJSON(r, req); err != nil {
		log.Warn("invalid request format", slog.String("error", redact.Error(err)))
		msg := "Invalid request format"
		if errors.Is(err, shared.ErrEmptyBody) {
			msg = "Request body is required"
		}
		shared.RespondWithError(w, r, http.StatusBadRequest, msg)
		return false
	}
	if err := shared.ValidateRequest(req); err != nil {
		log.Warn("validation error", slog.String("error", redact.Error(err)))
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return false
	}
	return true
}

// CreateTask handles POST /tasks
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if !decodeAndValidate(w, r, log, &req) {
		return
	}

	task, err := h.taskService.CreateTask(r.Context(), userID, service.CreateTaskInput{
		Title:          req.Title,
		Description:    req.Description,
		ParentID:       req.ParentID,
		AssigneeIDs:    req.AssigneeIDs,
		FollowerIDs:    req.FollowerIDs,
		TeamIDs:        req.TeamIDs,
		DueDate:        req.DueDate,
		IsRecurring:    req.IsRecurring,
		RecurrenceRule: req.RecurrenceRule,
		IsPrivate:      req.IsPrivate,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create task")
		return
	}

	log.Debug("task created", slog.String("task_id", task.ID.String()))
	shared.RespondWithJSON(w, r, http.StatusCreated, taskToResponse(task))
}

// ListTasks handles GET /tasks
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	q, err := parseTaskQuery(r, userID)
	if err != nil {
		log.Warn("invalid task query", slog.String("error", err.Error()))
		HandleAPIError(w, r, err, "")
		return
	}

	tasks, err := h.taskService.ListTasks(r.Context(), q)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list tasks")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, tasksToResponse(tasks))
}

// GetTask handles GET /tasks/{id}
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	_, taskID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	task, err := h.taskService.GetTask(r.Context(), taskID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get task")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task))
}

// UpdateTask handles PATCH /tasks/{id}
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, taskID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if !decodeAndValidate(w, r, log, &req) {
		return
	}

	in := service.UpdateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		AssigneeID:  req.AssigneeID,
	}
	if req.Status != nil {
		status := domain.TaskStatus(*req.Status)
		in.Status = &status
	}

	task, err := h.taskService.UpdateTask(r.Context(), taskID, userID, in)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update task")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task))
}

// DeleteTask handles DELETE /tasks/{id}. The task's subtree goes with it.
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, taskID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	if err := h.taskService.DeleteTask(r.Context(), taskID, userID); err != nil {
		HandleAPIError(w, r, err, "Failed to delete task")
		return
	}

	log.Debug("task deleted", slog.String("task_id", taskID.String()))
	w.WriteHeader(http.StatusNoContent)
}

// AddComment handles POST /tasks/{id}/comments
func (h *TaskHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, taskID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	var req CommentRequest
	if !decodeAndValidate(w, r, log, &req) {
		return
	}

	entry, err := h.taskService.AddComment(r.Context(), taskID, userID, req.Content)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to add comment")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, historyToResponse([]*domain.AuditLogEntry{entry})[0])
}

// GetHistory handles GET /tasks/{id}/history
func (h *TaskHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	_, taskID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	entries, err := h.taskService.GetHistory(r.Context(), taskID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get task history")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, historyToResponse(entries))
}

type membershipOp func(r *http.Request, taskID, memberID, actorID uuid.UUID) (string, error)

// membership adapts a membership operation to a handler. The member ID is
// read from the memberParam path parameter.
func (h *TaskHandler) membership(memberParam, fallbackMsg string, op membershipOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContextOrDefault(r.Context(), h.logger)

		actorID, taskID, ok := handleUserIDAndPathUUID(w, r, "id", log)
		if !ok {
			return
		}
		memberID, err := getPathUUID(r, memberParam)
		if err != nil {
			HandleAPIError(w, r, err, "")
			return
		}

		msg, err := op(r, taskID, memberID, actorID)
		if err != nil {
			HandleAPIError(w, r, err, fallbackMsg)
			return
		}
		shared.RespondWithJSON(w, r, http.StatusOK, MessageResponse{Message: msg})
	}
}

// AddFollower handles POST /tasks/{id}/followers/{userID}
func (h *TaskHandler) AddFollower() http.HandlerFunc {
	return h.membership("userID", "Failed to add follower", func(r *http.Request, taskID, userID, actorID uuid.UUID) (string, error) {
		return h.taskService.AddFollower(r.Context(), taskID, userID, actorID)
	})
}

// RemoveFollower handles DELETE /tasks/{id}/followers/{userID}
func (h *TaskHandler) RemoveFollower() http.HandlerFunc {
	return h.membership("userID", "Failed to remove follower", func(r *http.Request, taskID, userID, actorID uuid.UUID) (string, error) {
		return h.taskService.RemoveFollower(r.Context(), taskID, userID, actorID)
	})
}

// AddAssignee handles POST /tasks/{id}/assignees/{userID}. The body is
// optional.
func (h *TaskHandler) AddAssignee() http.HandlerFunc {
	return h.membership("userID", "Failed to add assignee", func(r *http.Request, taskID, userID, actorID uuid.UUID) (string, error) {
		var req AddAssigneeRequest
		if err := shared.DecodeJSON(r, &req); err != nil && !errors.Is(err, shared.ErrEmptyBody) {
			return "", domain.NewValidationError("body", "is not valid JSON", domain.ErrValidation)
		}
		return h.taskService.AddAssignee(r.Context(), taskID, userID, actorID, req.AddToFollowers)
	})
}

// RemoveAssignee handles DELETE /tasks/{id}/assignees/{userID}
func (h *TaskHandler) RemoveAssignee() http.HandlerFunc {
	return h.membership("userID", "Failed to remove assignee", func(r *http.Request, taskID, userID, actorID uuid.UUID) (string, error) {
		return h.taskService.RemoveAssignee(r.Context(), taskID, userID, actorID)
	})
}

// AddTeam handles POST /tasks/{id}/teams/{teamID}
func (h *TaskHandler) AddTeam() http.HandlerFunc {
	return h.membership("teamID", "Failed to add team", func(r *http.Request, taskID, teamID, actorID uuid.UUID) (string, error) {
		return h.taskService.AddTeam(r.Context(), taskID, teamID, actorID)
	})
}

// RemoveTeam handles DELETE /tasks/{id}/teams/{teamID}
func (h *TaskHandler) RemoveTeam() http.HandlerFunc {
	return h.membership("teamID", "Failed to remove team", func(r *http.Request, taskID, teamID, actorID uuid.UUID) (string, error) {
		return h.taskService.RemoveTeam(r.Context(), taskID, teamID, actorID)
	})
}
