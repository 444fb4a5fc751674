package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	sleepdiary "github.com/NicklasHM/P3-sleep-diary"
	"github.com/NicklasHM/P3-sleep-diary/internal/metrics"
	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// ShutdownTimeout bounds how long ListenAndServe waits for in-flight requests.
const ShutdownTimeout = 5 * time.Second

// Server exposes the App as a JSON REST API.
type Server struct {
	app     *sleepdiary.App
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Server.
type Option func(*Server)

// WithLogger overrides the App logger for request logging.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics mounts /metrics for m. Defaults to the App metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// New creates a Server for app.
func New(app *sleepdiary.App, opts ...Option) *Server {
	s := &Server{
		app:     app,
		logger:  app.Logger,
		metrics: app.Metrics,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)
	r.Get("/info", s.info)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/questionnaires/{type}", func(r chi.Router) {
			r.Get("/", s.getQuestionnaire)
			r.Get("/start", s.startQuestionnaire)
			r.Put("/order", s.reorderRoots)
		})
		r.Route("/questions", func(r chi.Router) {
			r.Get("/", s.listQuestions)
			r.Post("/", s.createQuestion)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getQuestion)
				r.Put("/", s.updateQuestion)
				r.Delete("/", s.deleteQuestion)
				r.Put("/draft", s.commitDraft)
				r.Post("/conditional", s.addEdge)
				r.Delete("/conditional", s.removeEdge)
				r.Put("/conditional/order", s.reorderEdges)
			})
		})
		r.Route("/responses", func(r chi.Router) {
			r.Post("/", s.submitResponse)
			r.Post("/next", s.nextQuestion)
			r.Get("/check-today", s.checkToday)
		})
		r.Route("/wizard", func(r chi.Router) {
			r.Post("/", s.startWizard)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getWizard)
				r.Put("/answers/{questionId}", s.setAnswer)
				r.Post("/next", s.wizardNext)
				r.Post("/previous", s.wizardPrevious)
				r.Post("/jump/{questionId}", s.wizardJump)
				r.Post("/submit", s.wizardSubmit)
				r.Put("/locale", s.wizardLocale)
			})
		})
	})
	return r
}

// ListenAndServe serves the API on addr until ctx is canceled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("graceful shutdown did not complete", "timeout", ShutdownTimeout, "err", err)
		return srv.Close()
	}
	s.logger.Info("http server stopped")
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"took", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "sleepdiary-http",
		"version": sleepdiary.Version,
	})
}

// -- Helpers --

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func locale(r *http.Request) domain.Locale {
	return domain.ParseLocale(r.URL.Query().Get("language"))
}

func boolParam(r *http.Request, key string) (bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, badRequest("%s must be a boolean", key)
	}
	return v, nil
}

func requireParam(r *http.Request, key string) (string, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return "", badRequest("%s is required", key)
	}
	return v, nil
}
