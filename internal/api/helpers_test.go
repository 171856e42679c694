package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/taskhive/internal/api/middleware"
	"github.com/phrazzld/taskhive/internal/api/shared"
	"github.com/phrazzld/taskhive/internal/config"
	"github.com/phrazzld/taskhive/internal/domain"
	"github.com/phrazzld/taskhive/internal/events"
	"github.com/phrazzld/taskhive/internal/platform/memory"
	"github.com/phrazzld/taskhive/internal/service"
	"github.com/phrazzld/taskhive/internal/service/auth"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) shared.ErrorResponse {
	t.Helper()
	var body shared.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

// apiEnv serves the task API over the memory store with real services and
// real token checks.
type apiEnv struct {
	t      *testing.T
	store  *memory.Store
	jwt    auth.JWTService
	router http.Handler
	now    time.Time
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	e := &apiEnv{t: t, store: memory.New(discardLogger()), now: baseTime}
	log := discardLogger()
	clock := service.WithClock(func() time.Time { return e.now })

	emitter := events.NewInMemoryEventEmitter(log)
	emitter.RegisterHandler(service.NewAssignmentNotifier(e.store, log, clock))

	tasks, err := service.NewTaskService(e.store, emitter, log, clock)
	require.NoError(t, err)
	inbox, err := service.NewNotificationService(e.store, log)
	require.NoError(t, err)

	e.jwt, err = auth.NewJWTService(config.AuthConfig{
		JWTSecret:            "test-secret-that-is-at-least-32-chars",
		TokenLifetimeMinutes: 60,
	})
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(middleware.NewTraceMiddleware(log))
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(e.jwt).Authenticate)
		RegisterRoutes(r, NewTaskHandler(tasks, log), NewNotificationHandler(inbox, log))
	})
	e.router = r
	return e
}

func (e *apiEnv) user(name string) uuid.UUID {
	e.t.Helper()
	u := &domain.User{ID: uuid.New(), Username: name}
	require.NoError(e.t, e.store.Stores().Users.Create(context.Background(), u))
	return u.ID
}

func (e *apiEnv) team(name string, creator uuid.UUID) uuid.UUID {
	e.t.Helper()
	team := &domain.Team{ID: uuid.New(), Name: name, CreatorID: creator}
	require.NoError(e.t, e.store.Stores().Teams.Create(context.Background(), team))
	return team.ID
}

// do sends a request as user. A nil user sends no Authorization header.
func (e *apiEnv) do(method, path string, user uuid.UUID, body interface{}) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(e.t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != uuid.Nil {
		token, err := e.jwt.GenerateToken(context.Background(), user)
		require.NoError(e.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// createTask creates a task through the API one minute after the previous one.
func (e *apiEnv) createTask(user uuid.UUID, req CreateTaskRequest) TaskResponse {
	e.t.Helper()
	e.now = e.now.Add(time.Minute)
	w := e.do(http.MethodPost, "/api/tasks", user, req)
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())
	return decodeBody[TaskResponse](e.t, w)
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
