package daemon

import (
	"net/http"
	"strings"

	"notecast/internal/api"
	"notecast/internal/services"
	"notecast/internal/store"
)

func (s *apiServer) handleListNotebooks(w http.ResponseWriter, r *http.Request) {
	notebooks, err := s.daemon.store.ListNotebooks(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]api.Notebook, 0, len(notebooks))
	for _, nb := range notebooks {
		out = append(out, api.FromNotebook(nb))
	}
	s.writeJSON(w, http.StatusOK, api.NotebookListResponse{Notebooks: out})
}

func (s *apiServer) handleCreateNotebook(w http.ResponseWriter, r *http.Request) {
	var req api.CreateNotebookRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	nb, err := s.daemon.store.CreateNotebook(r.Context(), req.Name, req.Description)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.FromNotebook(nb))
}

func (s *apiServer) handleGetNotebook(w http.ResponseWriter, r *http.Request) {
	nb, err := s.daemon.store.GetNotebook(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromNotebook(nb))
}

func (s *apiServer) handleUpdateNotebook(w http.ResponseWriter, r *http.Request) {
	var req api.CreateNotebookRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	nb, err := s.daemon.store.UpdateNotebook(r.Context(), r.PathValue("id"), req.Name, req.Description)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromNotebook(nb))
}

func (s *apiServer) handleDeleteNotebook(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.DeleteNotebook(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleListSources(w http.ResponseWriter, r *http.Request) {
	if !s.requireNotebook(w, r) {
		return
	}
	sources, err := s.daemon.store.ListSources(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]api.Source, 0, len(sources))
	for _, src := range sources {
		out = append(out, api.FromSource(src, false))
	}
	s.writeJSON(w, http.StatusOK, api.SourceListResponse{Sources: out})
}

func (s *apiServer) handleAddSource(w http.ResponseWriter, r *http.Request) {
	var req api.AddSourceRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx := r.Context()
	notebookID := r.PathValue("id")

	kind := store.SourceText
	if strings.TrimSpace(req.Kind) != "" {
		parsed, err := store.ParseSourceKind(req.Kind)
		if err != nil {
			s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "add source", err.Error(), nil))
			return
		}
		kind = parsed
	}

	var (
		src *store.Source
		err error
	)
	switch kind {
	case store.SourceText:
		src, err = s.daemon.ingest.AddText(ctx, notebookID, req.Title, req.Text)
	case store.SourceUpload:
		src, err = s.daemon.ingest.AddFile(ctx, notebookID, req.Path, req.Title)
	case store.SourceWebsite, store.SourceLink:
		src, err = s.daemon.ingest.AddURL(ctx, notebookID, req.URL, kind)
	default:
		err = services.Wrap(services.ErrValidation, "api", "add source",
			"unsupported source kind "+string(kind), nil)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.FromSource(src, false))
}

func (s *apiServer) handleGetSource(w http.ResponseWriter, r *http.Request) {
	src, err := s.daemon.store.GetSource(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromSource(src, true))
}

func (s *apiServer) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.store.DeleteSource(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleListNotes(w http.ResponseWriter, r *http.Request) {
	if !s.requireNotebook(w, r) {
		return
	}
	notes, err := s.daemon.store.ListNotes(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]api.Note, 0, len(notes))
	for _, note := range notes {
		out = append(out, api.FromNote(note))
	}
	s.writeJSON(w, http.StatusOK, api.NoteListResponse{Notes: out})
}

func (s *apiServer) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	var req api.CreateNoteRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	note, err := s.daemon.store.CreateNote(r.Context(), r.PathValue("id"), req.Title, req.Content)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.FromNote(note))
}

func (s *apiServer) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.store.DeleteNote(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleListInsights(w http.ResponseWriter, r *http.Request) {
	insights, err := s.daemon.engine.ListInsights(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]api.Insight, 0, len(insights))
	for _, in := range insights {
		out = append(out, api.FromInsight(in))
	}
	s.writeJSON(w, http.StatusOK, api.InsightListResponse{Insights: out})
}

func (s *apiServer) handleApplyTransformation(w http.ResponseWriter, r *http.Request) {
	var req api.ApplyTransformationRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx := r.Context()
	sourceID := r.PathValue("id")

	var (
		insight *store.Insight
		err     error
	)
	if name := strings.TrimSpace(req.Transformation); name != "" {
		insight, err = s.daemon.engine.Apply(ctx, name, sourceID)
	} else {
		insight, err = s.daemon.engine.ApplyDefault(ctx, sourceID)
		if err == nil && insight == nil {
			err = services.Wrap(services.ErrNotFound, "api", "apply transformation", "no default transformation is set", nil)
		}
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.FromInsight(insight))
}

func (s *apiServer) handleDeleteInsight(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.engine.DeleteInsight(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// requireNotebook writes a 404 and returns false when the path notebook is missing.
func (s *apiServer) requireNotebook(w http.ResponseWriter, r *http.Request) bool {
	if _, err := s.daemon.store.GetNotebook(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return false
	}
	return true
}
