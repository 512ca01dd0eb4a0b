package monitor

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/autobrr/botmon/pkg/history"
	mw "github.com/autobrr/botmon/pkg/middleware"
	"github.com/autobrr/botmon/pkg/registry"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 5 * time.Second

type APIServer struct {
	host  string
	port  string
	token string

	service *Service
}

func NewAPIServer(cfg *Config, svc *Service) *APIServer {
	return &APIServer{
		host:    cfg.Http.Host,
		port:    cfg.Http.Port,
		token:   cfg.Http.Token,
		service: svc,
	}
}

// Open serves the API until ctx is done, then shuts down gracefully.
func (s *APIServer) Open(ctx context.Context) error {
	addr := net.JoinHostPort(s.host, s.port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "could not open listener on: %s", addr)
	}

	server := http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Msgf("listening on: %s", listener.Addr())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "http server failed")

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info().Msg("shutting down http server")

		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "could not shut down http server")
		}
		return nil
	}
}

type ClearRequest struct {
	Type registry.ClearFilter `json:"type"`
}

type ClearResponse struct {
	Success bool   `json:"success"`
	Cleared int    `json:"cleared"`
	Error   string `json:"error,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (s *APIServer) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(mw.CorrelationID)
	r.Use(mw.RequestLogger)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		render.Status(r, http.StatusOK)
		render.PlainText(w, r, "OK")
	})

	r.Handle("/metrics", s.service.Metrics().Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/healthz", func(r chi.Router) {
			r.Get("/liveness", func(w http.ResponseWriter, r *http.Request) {
				render.Status(r, http.StatusOK)
				render.PlainText(w, r, "OK")
			})

			r.Get("/readiness", func(w http.ResponseWriter, r *http.Request) {
				render.Status(r, http.StatusOK)
				render.PlainText(w, r, "OK")
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.IsAuthenticated(s.token))

			r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
				render.Status(r, http.StatusOK)
				render.JSON(w, r, s.service.Status())
			})

			r.Get("/logs", func(w http.ResponseWriter, r *http.Request) {
				render.Status(r, http.StatusOK)
				render.JSON(w, r, s.service.Logs().Lines())
			})

			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", s.getTasks)
				r.Post("/clear", s.clearTasks)
			})

			r.Route("/history", func(r chi.Router) {
				r.Get("/", s.getHistory)
				r.Get("/summary", s.getHistorySummary)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		renderError(w, r, http.StatusNotFound, "not found")
	})

	return r
}

func (s *APIServer) getTasks(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, s.service.Registry().Snapshot())
}

// clearTasks treats an empty body as a request to clear finished tasks.
func (s *APIServer) clearTasks(w http.ResponseWriter, r *http.Request) {
	req := ClearRequest{Type: registry.ClearCompleted}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		renderError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if req.Type == "" {
		req.Type = registry.ClearCompleted
	}

	if !req.Type.Valid() {
		renderError(w, r, http.StatusBadRequest, "unknown clear type: "+string(req.Type))
		return
	}

	cleared := s.service.Registry().Clear(req.Type)

	log.Ctx(r.Context()).Debug().Msgf("cleared %d tasks (%s)", cleared, req.Type)

	render.Status(r, http.StatusOK)
	render.JSON(w, r, ClearResponse{Success: true, Cleared: cleared})
}

func (s *APIServer) getHistory(w http.ResponseWriter, r *http.Request) {
	store := s.service.History()
	if store == nil {
		renderError(w, r, http.StatusNotFound, "task history is disabled")
		return
	}

	limit := history.DefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			renderError(w, r, http.StatusBadRequest, "invalid limit: "+v)
			return
		}
		limit = n
	}

	entries, err := store.List(r.Context(), limit)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("could not list history")
		renderError(w, r, http.StatusInternalServerError, "could not list history")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, entries)
}

func (s *APIServer) getHistorySummary(w http.ResponseWriter, r *http.Request) {
	store := s.service.History()
	if store == nil {
		renderError(w, r, http.StatusNotFound, "task history is disabled")
		return
	}

	sum, err := store.Summary(r.Context())
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("could not summarize history")
		renderError(w, r, http.StatusInternalServerError, "could not summarize history")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, sum)
}

func renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Success: false, Error: msg})
}
