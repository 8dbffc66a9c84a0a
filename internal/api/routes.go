package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postreview/internal/api/handlers"
	"github.com/maheshrc27/postreview/internal/api/middleware"
)

type Handlers struct {
	Auth     *handlers.AuthHandler
	Posts    *handlers.PostHandler
	Uploads  *handlers.UploadHandler
	Settings *handlers.SettingsHandler
}

// Register mounts every route. All of them require the public api key; the
// /api group also requires a live session.
func Register(app *fiber.App, m *middleware.AuthMiddleware, h Handlers) {
	app.Get("/auth/confirm", h.Auth.ConfirmEmail)

	auth := app.Group("/auth", m.APIKey())
	auth.Post("/login", h.Auth.Login)
	auth.Post("/register", h.Auth.Register)
	auth.Post("/reset-password", h.Auth.ResetPassword)
	auth.Post("/recover", h.Auth.RecoverPassword)

	api := app.Group("/api", m.APIKey(), m.AuthMiddleware())
	api.Post("/logout", h.Auth.Logout)

	// streams before /:id
	api.Get("/posts/stream", h.Posts.PostsStream)
	api.Get("/posts", h.Posts.ListPosts)
	api.Post("/posts/refresh", h.Posts.Refresh)
	api.Get("/posts/:id", h.Posts.GetPost)
	api.Post("/posts/:id/approve", h.Posts.Approve)
	api.Post("/posts/:id/reject", h.Posts.Reject)
	api.Get("/posts/:id/feedback", h.Posts.ListFeedback)
	api.Get("/posts/:id/feedback/stream", h.Posts.FeedbackStream)

	api.Post("/uploads/:kind", h.Uploads.Upload)

	api.Get("/settings", h.Settings.GetSettingsInfo)
	api.Post("/settings/avatar", h.Settings.UpdateAvatar)
	api.Post("/settings/password", h.Settings.UpdatePassword)
	api.Delete("/settings/account", h.Settings.DeleteAccount)
}
