package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// maxBody caps request bodies; zero leaves them uncapped.
func NewRouter(svc Service, auth Auth, sseHandler http.Handler, maxBody int64) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(auth))
	if maxBody > 0 {
		r.Use(BodyLimit(maxBody))
	}
	r.NotFound(NotFound)

	// Templates.
	r.Get("/templates", h.ReadIndex)
	r.Post("/templates", h.CreateTemplate)
	r.Put("/templates/{name}", h.UpdateTemplate)
	r.Post("/categories/{index}/order", h.ReorderTemplates)
	r.Post("/usage", h.UpdateUsage)

	// Translations.
	r.Get("/i18n", h.ReadTranslations)
	r.Put("/i18n", h.ApplyTranslations)
	r.Get("/locales", h.Locales)
	r.Post("/translate", h.Translate)

	// Branches.
	r.Post("/branches", h.CreateBranch)
	r.Post("/branches/{branch}/reset", h.ResetBranch)

	// Logos.
	r.Put("/logos", h.UpdateLogos)

	// Pull requests and forks.
	r.Get("/pulls", h.ListPullRequests)
	r.Post("/pulls", h.CreatePullRequest)
	r.Get("/pulls/review", h.ReviewBranch)
	r.Patch("/pulls/{number}", h.UpdatePullRequest)
	r.Get("/fork", h.ForkStatus)
	r.Post("/fork", h.CreateFork)
	r.Post("/fork/sync", h.SyncFork)
	r.Get("/fork/compare", h.CompareFork)

	// Journal.
	r.Get("/commits", h.ListCommits)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
