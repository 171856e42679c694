package api

import "github.com/go-chi/chi/v5"

// RegisterRoutes mounts the task and notification endpoints on r. Callers
// apply authentication before calling it.
func RegisterRoutes(r chi.Router, tasks *TaskHandler, notifications *NotificationHandler) {
	r.Route("/tasks", func(r chi.Router) {
		r.Post("/", tasks.CreateTask)
		r.Get("/", tasks.ListTasks)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", tasks.GetTask)
			r.Patch("/", tasks.UpdateTask)
			r.Delete("/", tasks.DeleteTask)

			r.Post("/comments", tasks.AddComment)
			r.Get("/history", tasks.GetHistory)

			r.Post("/followers/{userID}", tasks.AddFollower())
			r.Delete("/followers/{userID}", tasks.RemoveFollower())
			r.Post("/assignees/{userID}", tasks.AddAssignee())
			r.Delete("/assignees/{userID}", tasks.RemoveAssignee())
			r.Post("/teams/{teamID}", tasks.AddTeam())
			r.Delete("/teams/{teamID}", tasks.RemoveTeam())
		})
	})

	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", notifications.List)
		r.Get("/unread", notifications.UnreadCount)
		r.Patch("/read-all", notifications.MarkAllRead)
		r.Patch("/{id}/read", notifications.MarkRead)
	})
}
