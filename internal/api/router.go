package api

import (
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// RouterConfig holds settings for the API router.
type RouterConfig struct {
	// CorsAllowedOrigins is a comma-separated list of allowed origins.
	// If empty, defaults to "*" (development mode).
	CorsAllowedOrigins string
}

// requestTimeout bounds a request, including synchronous match and generate.
const requestTimeout = 2 * time.Minute

func NewRouter(h *Handler, tokens TokenParser, cfg RouterConfig, log *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (applied to all routes including /health)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log.Named("http")))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg.CorsAllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)
		r.Post("/auth/check-nickname", h.CheckNickname)

		r.Group(func(r chi.Router) {
			r.Use(BearerAuth(tokens))

			r.Get("/auth/me", h.Me)

			// Projects
			r.Get("/projects", h.ListProjects)
			r.Post("/projects", h.CreateProject)
			r.Get("/projects/{id}", h.GetProject)
			r.Patch("/projects/{id}", h.UpdateProject)
			r.Delete("/projects/{id}", h.DeleteProject)
			r.Post("/projects/{id}/split", h.SplitProject)
			r.Post("/projects/{id}/match", h.MatchProject)
			r.Post("/projects/{id}/generate", h.GenerateProject)
			r.Post("/projects/{id}/reindex", h.ReindexProject)
			r.Get("/projects/{id}/blocks", h.ListBlocks)
			r.Post("/projects/{id}/blocks", h.CreateBlock)
			r.Post("/projects/{id}/blocks/merge", h.MergeBlocks)
			r.Get("/projects/{id}/jobs", h.GetProjectJobs)

			// Jobs
			r.Get("/jobs/{id}", h.GetJob)

			// Blocks
			r.Get("/blocks/{id}", h.GetBlock)
			r.Put("/blocks/{id}", h.UpdateBlock)
			r.Delete("/blocks/{id}", h.DeleteBlock)
			r.Post("/blocks/{id}/split", h.SplitBlock)
			r.Get("/blocks/{id}/assets", h.ListBlockAssets)
			r.Post("/blocks/{id}/primary", h.SetPrimaryAsset)
			r.Post("/blocks/{id}/match", h.MatchBlock)
			r.Post("/blocks/{id}/search-more", h.SearchMore)
		})
	})

	return r
}

// allowedOrigins restricts CORS when origins are configured, otherwise
// allows all (dev mode).
func allowedOrigins(raw string) []string {
	origins := []string{"*"}
	if raw == "" {
		return origins
	}
	trimmed := make([]string, 0)
	for _, o := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(o); s != "" {
			trimmed = append(trimmed, s)
		}
	}
	if len(trimmed) > 0 {
		return trimmed
	}
	return origins
}
