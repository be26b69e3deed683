package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"notecast/internal/api"
	"notecast/internal/config"
	"notecast/internal/logging"
	"notecast/internal/podcast"
	"notecast/internal/services"
	"notecast/internal/store"
)

const maxRequestBody = 1 << 20

type apiServer struct {
	bind   string
	token  string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		token:  strings.TrimSpace(cfg.Paths.APIToken),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
	srv.server = &http.Server{
		Handler:           srv.handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      maxWaitTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/notifications/test", s.handleTestNotification)

	mux.HandleFunc("GET /api/notebooks", s.handleListNotebooks)
	mux.HandleFunc("POST /api/notebooks", s.handleCreateNotebook)
	mux.HandleFunc("GET /api/notebooks/{id}", s.handleGetNotebook)
	mux.HandleFunc("PUT /api/notebooks/{id}", s.handleUpdateNotebook)
	mux.HandleFunc("DELETE /api/notebooks/{id}", s.handleDeleteNotebook)

	mux.HandleFunc("GET /api/notebooks/{id}/sources", s.handleListSources)
	mux.HandleFunc("POST /api/notebooks/{id}/sources", s.handleAddSource)
	mux.HandleFunc("GET /api/sources/{id}", s.handleGetSource)
	mux.HandleFunc("DELETE /api/sources/{id}", s.handleDeleteSource)

	mux.HandleFunc("GET /api/notebooks/{id}/notes", s.handleListNotes)
	mux.HandleFunc("POST /api/notebooks/{id}/notes", s.handleCreateNote)
	mux.HandleFunc("DELETE /api/notes/{id}", s.handleDeleteNote)

	mux.HandleFunc("GET /api/sources/{id}/insights", s.handleListInsights)
	mux.HandleFunc("POST /api/sources/{id}/insights", s.handleApplyTransformation)
	mux.HandleFunc("DELETE /api/insights/{id}", s.handleDeleteInsight)

	mux.HandleFunc("GET /api/transformations", s.handleListTransformations)
	mux.HandleFunc("POST /api/transformations", s.handleCreateTransformation)
	mux.HandleFunc("GET /api/transformations/default", s.handleGetDefaultTransformation)
	mux.HandleFunc("DELETE /api/transformations/default", s.handleUnsetDefaultTransformation)
	mux.HandleFunc("GET /api/transformations/{id}", s.handleGetTransformation)
	mux.HandleFunc("PUT /api/transformations/{id}", s.handleUpdateTransformation)
	mux.HandleFunc("DELETE /api/transformations/{id}", s.handleDeleteTransformation)
	mux.HandleFunc("POST /api/transformations/{id}/default", s.handleSetDefaultTransformation)

	mux.HandleFunc("GET /api/templates", s.handleListTemplates)
	mux.HandleFunc("POST /api/templates", s.handleSaveTemplate)
	mux.HandleFunc("POST /api/templates/import", s.handleImportTemplates)
	mux.HandleFunc("GET /api/templates/{name}", s.handleGetTemplate)
	mux.HandleFunc("DELETE /api/templates/{name}", s.handleDeleteTemplate)

	mux.HandleFunc("GET /api/episodes", s.handleListAllEpisodes)
	mux.HandleFunc("GET /api/notebooks/{id}/episodes", s.handleListEpisodes)
	mux.HandleFunc("POST /api/notebooks/{id}/episodes", s.handleRequestEpisode)
	mux.HandleFunc("GET /api/episodes/{id}", s.handleGetEpisode)
	mux.HandleFunc("DELETE /api/episodes/{id}", s.handleDeleteEpisode)
	mux.HandleFunc("GET /api/episodes/{id}/audio", s.handleEpisodeAudio)
	mux.HandleFunc("GET /api/episodes/{id}/wait", s.handleWaitEpisode)
	mux.HandleFunc("GET /api/episodes/{id}/events", s.handleEpisodeEvents)

	return withRequestID(authMiddleware(s.token, mux.ServeHTTP))
}

func (s *apiServer) start() error {
	if s == nil || s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop(ctx context.Context) {
	if s == nil || s.listener == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		_ = s.server.Close()
	}
	s.listener = nil
}

func (s *apiServer) address() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.daemon.Status(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	counts := make(map[string]int, len(status.EpisodeCounts))
	for st, n := range status.EpisodeCounts {
		counts[string(st)] = n
	}
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:       status.Running,
		PID:           status.PID,
		DatabasePath:  status.DatabasePath,
		LockFilePath:  status.LockFilePath,
		AudioDir:      status.AudioDir,
		EpisodeCounts: counts,
		Watchers:      status.Watchers,
	})
}

func (s *apiServer) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	sent, message, err := s.daemon.TestNotification(r.Context())
	if err != nil {
		s.writeError(w, r, services.Wrap(services.ErrProvider, "api", "test notification", message, err))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sent": sent, "message": message})
}

// statusFor maps error markers to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, services.ErrChunking):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrProvider), errors.Is(err, services.ErrTimeout):
		return http.StatusBadGateway
	case errors.Is(err, podcast.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *apiServer) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return services.Wrap(services.ErrValidation, "api", "decode request", err.Error(), nil)
	}
	return nil
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logger := logging.WithContext(r.Context(), s.logger)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logger, "api request failed", "api_request_failed",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.Error(err),
		)
	} else {
		logger.Debug("api request rejected",
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.Error(err),
		)
	}
	s.writeJSON(w, status, api.ErrorResponse{Error: err.Error(), Code: services.Code(err)})
}

func withRequestID(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next(w, r.WithContext(services.WithRequestID(r.Context(), id)))
	})
}
