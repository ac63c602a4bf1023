package api

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sallandpioneers/docflow/internal/queue"
	"github.com/sallandpioneers/docflow/internal/registry"
	"github.com/sallandpioneers/docflow/internal/results"
	"github.com/sallandpioneers/docflow/internal/schema"
)

// Server is the coordinator's HTTP surface. It is stateless: every
// request performs at most one logical mutation on one store plus
// counter updates, all committed before the reply.
type Server struct {
	queue        *queue.Store
	registry     *registry.Registry
	schemas      *schema.Registry
	results      results.Store
	claimTimeout time.Duration
	logger       *log.Logger
}

func NewServer(q *queue.Store, r *registry.Registry, s *schema.Registry, res results.Store, claimTimeout time.Duration, logger *log.Logger) *Server {
	if claimTimeout <= 0 {
		claimTimeout = 1 * time.Second
	}
	return &Server{
		queue:        q,
		registry:     r,
		schemas:      s,
		results:      res,
		claimTimeout: claimTimeout,
		logger:       logger,
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleRoot)

	r.Route("/api", func(r chi.Router) {
		r.Post("/enqueue", s.handleEnqueue)
		r.Post("/enqueue-folder", s.handleEnqueueFolder)
		r.Get("/next-document/{workerID}", s.handleNextDocument)
		r.Post("/document-processed", s.handleDocumentProcessed)
		r.Get("/system-status", s.handleSystemStatus)

		r.Post("/register-worker", s.handleRegisterWorker)
		r.Post("/worker-heartbeat", s.handleWorkerHeartbeat)
		r.Post("/worker/stop/{workerID}", s.handleStopWorker)
		r.Post("/worker/start/{workerID}", s.handleStartWorker)
		r.Post("/remove-worker/{workerID}", s.handleRemoveWorker)
		r.Delete("/force-remove-worker/{workerID}", s.handleForceRemoveWorker)
		r.Get("/worker/{workerID}", s.handleGetWorker)

		r.Post("/schema", s.handleAddSchema)
		r.Get("/schemas", s.handleListSchemas)
		r.Get("/schema/{name}", s.handleGetSchema)
		r.Delete("/schema/{name}", s.handleDeleteSchema)
	})

	return r
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "Document Processing System Online",
	})
}
