package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"notebook-ai/internal/contextbuilder"
	"notebook-ai/internal/handlers"
	"notebook-ai/internal/rag"
	"notebook-ai/internal/vectorstore"
	"notebook-ai/internal/visualcache"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Engine         rag.Engine
	ContextBuilder *contextbuilder.Builder
	VisualCache    *visualcache.Cache
	VectorStore    vectorstore.VectorStore
	CollectionName string
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(CORS)

	answerHandler := handlers.NewAnswerHandler(deps.Engine)
	contextHandler := handlers.NewContextHandler(deps.ContextBuilder)
	visualHandler := handlers.NewVisualHandler(deps.VisualCache)
	healthHandler := handlers.NewHealthHandler(deps.VectorStore, deps.VisualCache, deps.CollectionName)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/health", healthHandler)

		r.Route("/notebooks/{notebookID}", func(r chi.Router) {
			r.Post("/answer", answerHandler.Answer)
			r.Post("/answer/stream", answerHandler.Stream)
			r.Post("/context", contextHandler.Build)

			r.Route("/visual", func(r chi.Router) {
				r.Get("/classification", visualHandler.GetClassification)
				r.Post("/classification", visualHandler.StoreClassification)
				r.Get("/ready", visualHandler.Ready)
				r.Delete("/", visualHandler.Clear)
			})
		})

		r.Get("/visual/stats", visualHandler.Stats)
	})

	return r
}
