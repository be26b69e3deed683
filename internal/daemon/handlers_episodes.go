package daemon

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"notecast/internal/api"
	"notecast/internal/logging"
	"notecast/internal/podcast"
	"notecast/internal/services"
	"notecast/internal/textutil"
)

const (
	defaultWaitTimeout = time.Minute
	maxWaitTimeout     = 2 * time.Minute
	eventWriteTimeout  = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (s *apiServer) handleListAllEpisodes(w http.ResponseWriter, r *http.Request) {
	episodes, err := s.daemon.registry.List(r.Context(), "")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.EpisodeListResponse{Episodes: api.FromEpisodes(episodes)})
}

func (s *apiServer) handleListEpisodes(w http.ResponseWriter, r *http.Request) {
	if !s.requireNotebook(w, r) {
		return
	}
	episodes, err := s.daemon.registry.List(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.EpisodeListResponse{Episodes: api.FromEpisodes(episodes)})
}

func (s *apiServer) handleRequestEpisode(w http.ResponseWriter, r *http.Request) {
	var req api.EpisodeRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx := services.WithStage(r.Context(), "request")
	ep, err := s.daemon.orchestrator.RequestEpisode(ctx, podcast.Request{
		TemplateName: req.Template,
		NotebookID:   r.PathValue("id"),
		EpisodeName:  req.Name,
		Instructions: req.Instructions,
		Length:       req.Length,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.EpisodeResponse{Episode: api.FromEpisode(ep)})
}

func (s *apiServer) handleGetEpisode(w http.ResponseWriter, r *http.Request) {
	ep, err := s.daemon.registry.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.EpisodeResponse{Episode: api.FromEpisode(ep)})
}

func (s *apiServer) handleDeleteEpisode(w http.ResponseWriter, r *http.Request) {
	if _, err := s.daemon.orchestrator.Remove(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleEpisodeAudio(w http.ResponseWriter, r *http.Request) {
	path, ep, err := s.daemon.orchestrator.EpisodeAudio(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	file, err := os.Open(path)
	if err != nil {
		s.writeError(w, r, services.Wrap(services.ErrNotFound, "api", "episode audio", "audio file unavailable", err))
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	name := textutil.SanitizeFileName(ep.Name)
	if name == "" {
		name = ep.ID
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`.wav"`)
	http.ServeContent(w, r, name+".wav", info.ModTime(), file)
}

// handleWaitEpisode long-polls until the episode is terminal or the timeout
// passes, then returns the latest snapshot.
func (s *apiServer) handleWaitEpisode(w http.ResponseWriter, r *http.Request) {
	timeout, err := parseWaitTimeout(r.URL.Query().Get("timeout"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	ep, err := s.daemon.registry.Wait(ctx, r.PathValue("id"))
	if ep == nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.EpisodeResponse{Episode: api.FromEpisode(ep)})
}

func parseWaitTimeout(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultWaitTimeout, nil
	}
	timeout, err := time.ParseDuration(raw)
	if err != nil {
		seconds, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return 0, services.Wrap(services.ErrValidation, "api", "wait episode", "invalid timeout "+raw, nil)
		}
		timeout = time.Duration(seconds) * time.Second
	}
	if timeout <= 0 {
		return 0, services.Wrap(services.ErrValidation, "api", "wait episode", "timeout must be positive", nil)
	}
	return min(timeout, maxWaitTimeout), nil
}

// handleEpisodeEvents streams episode snapshots over a websocket until the
// episode reaches a terminal status or the client disconnects.
func (s *apiServer) handleEpisodeEvents(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	id := r.PathValue("id")
	updates, err := s.daemon.registry.Watch(ctx, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed",
			logging.String(logging.FieldEpisodeID, id),
			logging.Error(err),
		)
		return
	}
	defer conn.Close()

	// Reads only detect the peer going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for ep := range updates {
		_ = conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
		if err := conn.WriteJSON(api.FromEpisode(&ep)); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("episode event stream closed",
					logging.String(logging.FieldEpisodeID, id),
					logging.Error(err),
				)
			}
			return
		}
		if ep.Status.IsTerminal() {
			break
		}
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "episode finished")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

