// Package devserver is an in-memory stand-in for the contest backend, used
// for local development and end-to-end tests.
package devserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/mark3labs/contestr/internal/logger"
)

// Contest is a stored contest record.
type Contest struct {
	ContestID          string         `json:"contestId"`
	AssessmentOverview map[string]any `json:"assessmentOverview"`
	TestConfiguration  map[string]any `json:"testConfiguration"`
	SavedAt            time.Time      `json:"savedAt"`
	Token              string         `json:"token,omitempty"`
	StartedAt          *time.Time     `json:"startedAt,omitempty"`
}

// Server holds contests in memory.
type Server struct {
	router      *chi.Mux
	enforceCSRF bool

	mu       sync.RWMutex
	contests map[string]*Contest
	csrf     map[string]bool

	// FailSave and FailToken force the matching endpoint to answer 500.
	FailSave  atomic.Bool
	FailToken atomic.Bool
}

// Option configures the Server.
type Option func(*Server)

// WithCSRF toggles X-CSRFToken enforcement on start-contest. On by default.
func WithCSRF(enforce bool) Option {
	return func(s *Server) {
		s.enforceCSRF = enforce
	}
}

// New creates a Server.
func New(opts ...Option) *Server {
	s := &Server{
		enforceCSRF: true,
		contests:    make(map[string]*Contest),
		csrf:        make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Contest returns a copy of a stored contest.
func (s *Server) Contest(id string) (Contest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contests[id]
	if !ok {
		return Contest{}, false
	}
	return *c, true
}

// Count returns the number of stored contests.
func (s *Server) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contests)
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRFToken"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/csrf", s.handleCSRF)
		r.Post("/save-data", s.handleSaveData)
		r.Post("/start-contest", s.handleStartContest)
		r.Get("/contests/{id}", s.handleGetContest)
	})

	s.router = r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logger.Debug("devserver: %s %s %d %dms",
				r.Method, r.URL.Path, ww.Status(), time.Since(start).Milliseconds())
		}()

		next.ServeHTTP(ww, r)
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("devserver: encoding response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCSRF(w http.ResponseWriter, _ *http.Request) {
	token := uuid.NewString()

	s.mu.Lock()
	s.csrf[token] = true
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     "csrftoken",
		Value:    token,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

type saveDataRequest struct {
	ContestID          string         `json:"contestId"`
	AssessmentOverview map[string]any `json:"assessmentOverview"`
	TestConfiguration  map[string]any `json:"testConfiguration"`
}

func (s *Server) handleSaveData(w http.ResponseWriter, r *http.Request) {
	if s.FailSave.Load() {
		respondError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}

	var req saveDataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ContestID == "" {
		respondError(w, http.StatusBadRequest, "contestId is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.contests[req.ContestID]; exists {
		respondError(w, http.StatusConflict, "contest already exists")
		return
	}
	s.contests[req.ContestID] = &Contest{
		ContestID:          req.ContestID,
		AssessmentOverview: req.AssessmentOverview,
		TestConfiguration:  req.TestConfiguration,
		SavedAt:            time.Now().UTC(),
	}
	logger.Info("devserver: saved contest %s", req.ContestID)
	respondJSON(w, http.StatusCreated, map[string]string{"contestId": req.ContestID})
}

type startContestRequest struct {
	ContestID string `json:"contestId"`
}

func (s *Server) handleStartContest(w http.ResponseWriter, r *http.Request) {
	if s.FailToken.Load() {
		respondError(w, http.StatusInternalServerError, "token service unavailable")
		return
	}

	var req startContestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.enforceCSRF {
		header := r.Header.Get("X-CSRFToken")
		cookie, err := r.Cookie("csrftoken")
		if header == "" || err != nil || cookie.Value != header || !s.csrf[header] {
			respondError(w, http.StatusForbidden, "CSRF verification failed")
			return
		}
	}

	contest, ok := s.contests[req.ContestID]
	if !ok {
		respondError(w, http.StatusNotFound, "contest not found")
		return
	}

	if contest.Token == "" {
		now := time.Now().UTC()
		contest.Token = uuid.NewString()
		contest.StartedAt = &now
	}
	logger.Info("devserver: issued token for contest %s", req.ContestID)
	respondJSON(w, http.StatusOK, map[string]string{"token": contest.Token})
}

func (s *Server) handleGetContest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.RLock()
	contest, ok := s.contests[id]
	var out Contest
	if ok {
		out = *contest
	}
	s.mu.RUnlock()

	if !ok {
		respondError(w, http.StatusNotFound, "contest not found")
		return
	}
	respondJSON(w, http.StatusOK, out)
}
