package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/baxromumarov/job-collector/internal/core"
	"github.com/baxromumarov/job-collector/internal/store"
)

// ScheduleInfo is the scheduler state shown on the dashboard.
type ScheduleInfo interface {
	NextRun() time.Time
	LastTrigger() time.Time
	Interval() time.Duration
	State() core.State
	Skipped() int
}

type Server struct {
	router   *chi.Mux
	store    store.Store
	schedule ScheduleInfo
	title    string
	now      func() time.Time
}

type Option func(*Server)

// WithTitle sets the dashboard heading.
func WithTitle(title string) Option {
	return func(s *Server) { s.title = title }
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer builds the read-only dashboard. schedule may be nil when no
// scheduler runs in this process.
func NewServer(st store.Store, schedule ScheduleInfo, opts ...Option) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		store:    st,
		schedule: schedule,
		title:    "Collected jobs",
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "HEAD", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	s.router.Get("/", s.handleIndex)
	s.router.Get("/download", s.handleDownload)
	s.router.Get("/health", s.handleHealth)
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/jobs", s.handleJobs)
		r.Get("/stats", s.handleStats)
	})
}

func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
