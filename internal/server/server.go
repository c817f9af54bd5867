package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"swcat/internal/catalog"
)

// Server is the HTTP layer over the catalog. It owns no state of its own;
// every request goes straight to the query service or the syncer.
type Server struct {
	service     *catalog.Service
	syncer      *catalog.Syncer
	logger      catalog.Logger
	syncWait    time.Duration // how long list/search wait on an initial sync
	corsOrigins []string
}

// NewServer creates a Server over the given service and syncer.
// syncWait of zero disables blocking on an in-flight sync.
func NewServer(service *catalog.Service, syncer *catalog.Syncer, logger catalog.Logger, syncWait time.Duration, corsOrigins []string) *Server {
	return &Server{
		service:     service,
		syncer:      syncer,
		logger:      logger,
		syncWait:    syncWait,
		corsOrigins: corsOrigins,
	}
}

// Router builds the chi router with all API routes mounted under /api/v1.
func (s *Server) Router() http.Handler {
	origins := s.corsOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/health", s.handleHealth)
		api.Route("/conversations", func(cr chi.Router) {
			cr.Get("/", s.handleListConversations)
			cr.Get("/search", s.handleSearch)
			cr.Get("/{conversationID}", s.handleGetConversation)
			cr.Get("/{conversationID}/audio/{versionID}", s.handleGetAudio)
		})
		api.Get("/sync", s.handleSyncStatus)
		api.Post("/sync", s.handleTriggerSync)
	})

	return r
}

// ListenAndServe starts the HTTP server on addr and blocks.
func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("http server listening", "addr", addr)
	return http.ListenAndServe(addr, s.Router())
}
