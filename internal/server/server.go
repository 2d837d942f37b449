// Package server exposes the local HTTP control plane: trigger a search,
// read the last results and edit the searcher profile.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/spigell/jobscout/internal/pipeline"
	"github.com/spigell/jobscout/internal/profile"
)

const (
	maxBody = 1 << 20

	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

var allowedOrigins = []string{"http://localhost:", "http://127.0.0.1:"}

// Runner is the part of the pipeline the server drives.
type Runner interface {
	Run(ctx context.Context) (*pipeline.Outcome, error)
	RunWith(ctx context.Context, prepare pipeline.PrepareFunc) (*pipeline.Outcome, error)
	Last() *pipeline.Outcome
}

// SaveFunc persists an accepted profile.
type SaveFunc func(p *profile.Profile) error

type Server struct {
	runner   Runner
	profiles *profile.Context
	save     SaveFunc
	gatherer prometheus.Gatherer
	log      *zap.Logger
}

type Option func(*Server)

func WithLogger(log *zap.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// WithProfileSaver makes accepted profile updates durable.
func WithProfileSaver(save SaveFunc) Option {
	return func(s *Server) {
		s.save = save
	}
}

func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func New(runner Runner, profiles *profile.Context, opts ...Option) *Server {
	srv := &Server{
		runner:   runner,
		profiles: profiles,
		gatherer: prometheus.DefaultGatherer,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Use(localOrigin)
		r.Post("/search", s.handleSearch)
		r.Get("/results", s.handleResults)
		r.Get("/profile", s.handleGetProfile)
		r.Put("/profile", s.handlePutProfile)
	})

	return r
}

// ListenAndServe serves the router until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("control plane listening", zap.String("addr", addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

// localOrigin rejects cross-site requests coming from non-localhost pages.
func localOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && !hasAnyPrefix(origin, allowedOrigins) {
			writeError(w, http.StatusForbidden, "Forbidden: non-localhost origin")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSearch runs the pipeline synchronously. An optional body replaces
// the profile, but only once the run lock is held: a busy pipeline leaves
// the current profile untouched.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}

	var prepare pipeline.PrepareFunc
	var installErr error
	if len(body) > 0 {
		next, status, msg := s.parseProfile(body)
		if next == nil {
			writeError(w, status, msg)
			return
		}
		prepare = func(context.Context) error {
			installErr = s.installProfile(next)
			return installErr
		}
	}

	out, err := s.runner.RunWith(r.Context(), prepare)
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrRunInProgress):
			writeError(w, http.StatusConflict, "Search already in progress")
		case installErr != nil:
			writeError(w, http.StatusInternalServerError, "Saving profile failed")
		default:
			s.log.Error("search pipeline failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Search pipeline failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleResults(w http.ResponseWriter, _ *http.Request) {
	last := s.runner.Last()
	if last == nil {
		writeError(w, http.StatusNotFound, "No results yet")
		return
	}
	writeJSON(w, http.StatusOK, last)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.profiles.Current())
}

func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "No request body")
		return
	}

	next, status, msg := s.parseProfile(body)
	if next == nil {
		writeError(w, status, msg)
		return
	}
	if err := s.installProfile(next); err != nil {
		writeError(w, http.StatusInternalServerError, "Saving profile failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// parseProfile decodes and validates a profile document without side effects.
func (s *Server) parseProfile(body []byte) (*profile.Profile, int, string) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, http.StatusBadRequest, "Invalid JSON"
	}

	next, err := profile.FromMap(raw)
	if err != nil {
		s.log.Info("profile update rejected", zap.Error(err))
		return nil, http.StatusBadRequest, "Invalid profile structure"
	}
	return next, http.StatusOK, ""
}

// installProfile persists a validated profile and makes it current.
func (s *Server) installProfile(next *profile.Profile) error {
	if s.save != nil {
		if err := s.save(next); err != nil {
			s.log.Error("saving profile", zap.Error(err))
			return err
		}
	}

	if err := s.profiles.Replace(next); err != nil {
		s.log.Error("installing profile", zap.Error(err))
		return err
	}

	s.log.Info("profile updated", zap.Int("version", s.profiles.Version()))
	return nil
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
