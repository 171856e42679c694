package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/taskhive/internal/api/shared"
	"github.com/phrazzld/taskhive/internal/domain"
	"github.com/phrazzld/taskhive/internal/platform/logger"
	"github.com/phrazzld/taskhive/internal/store"
)

// getUserIDFromContext extracts the authenticated user's UUID from the request context.
// The user ID is expected to be placed in the context by the authentication middleware.
func getUserIDFromContext(r *http.Request) (uuid.UUID, bool) {
	return shared.UserIDFromContext(r.Context())
}

// getPathUUID extracts and parses a UUID path parameter.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, domain.NewValidationError(paramName, "is required", domain.ErrValidation)
	}

	id, err := uuid.Parse(pathParam)
	if err != nil {
		return uuid.Nil, domain.NewValidationError(paramName, "has invalid format", domain.ErrInvalidID)
	}

	return id, nil
}

// requireUserID writes a 401 response and returns false when the request
// carries no authenticated user.
func requireUserID(w http.ResponseWriter, r *http.Request, log *slog.Logger) (uuid.UUID, bool) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		log.Warn("user ID not found or invalid in request context")
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
		return uuid.Nil, false
	}
	return userID, true
}

// handleUserIDAndPathUUID is a composite helper that extracts both the user ID from context
// and a UUID from the path parameters. It writes an error response if either extraction fails.
func handleUserIDAndPathUUID(
	w http.ResponseWriter,
	r *http.Request,
	paramName string,
	log *slog.Logger,
) (uuid.UUID, uuid.UUID, bool) {
	if log == nil {
		log = logger.FromContextOrDefault(r.Context(), slog.Default())
	}

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}

	pathID, err := getPathUUID(r, paramName)
	if err != nil {
		log.Warn("invalid "+paramName, slog.String("value", chi.URLParam(r, paramName)))
		HandleAPIError(w, r, err, "")
		return uuid.Nil, uuid.Nil, false
	}

	return userID, pathID, true
}

// parseTaskQuery builds the list filter from query parameters:
// creatorId, assigneeId, teamId, createdAfter, createdBefore, dueAfter,
// dueBefore (RFC 3339), sortBy (createdAt|dueDate|creator|id) and
// order (asc|desc).
func parseTaskQuery(r *http.Request, viewerID uuid.UUID) (store.TaskQuery, error) {
	q := store.TaskQuery{ViewerID: viewerID}
	values := r.URL.Query()

	ids := []struct {
		name string
		dst  **uuid.UUID
	}{
		{"creatorId", &q.CreatorID},
		{"assigneeId", &q.AssigneeID},
		{"teamId", &q.TeamID},
	}
	for _, p := range ids {
		raw := values.Get(p.name)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return store.TaskQuery{}, domain.NewValidationError(p.name, "has invalid format", domain.ErrInvalidID)
		}
		*p.dst = &id
	}

	times := []struct {
		name string
		dst  **time.Time
	}{
		{"createdAfter", &q.CreatedAfter},
		{"createdBefore", &q.CreatedBefore},
		{"dueAfter", &q.DueAfter},
		{"dueBefore", &q.DueBefore},
	}
	for _, p := range times {
		raw := values.Get(p.name)
		if raw == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return store.TaskQuery{}, domain.NewValidationError(p.name, "must be an RFC 3339 timestamp", domain.ErrValidation)
		}
		*p.dst = &ts
	}

	if raw := values.Get("sortBy"); raw != "" {
		field := store.TaskSortField(raw)
		switch field {
		case store.SortByCreatedAt, store.SortByDueDate, store.SortByCreator, store.SortByID:
			q.SortBy = field
		default:
			return store.TaskQuery{}, domain.NewValidationError("sortBy", "must be one of createdAt, dueDate, creator, id", domain.ErrValidation)
		}
	}
	if raw := values.Get("order"); raw != "" {
		switch strings.ToUpper(raw) {
		case string(store.SortAsc):
			q.Order = store.SortAsc
		case string(store.SortDesc):
			q.Order = store.SortDesc
		default:
			return store.TaskQuery{}, domain.NewValidationError("order", "must be asc or desc", domain.ErrValidation)
		}
	}

	return q.Normalize(), nil
}
