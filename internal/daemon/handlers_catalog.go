package daemon

import (
	"io"
	"net/http"

	"notecast/internal/api"
	"notecast/internal/catalog"
	"notecast/internal/services"
	"notecast/internal/store"
)

func (s *apiServer) handleListTransformations(w http.ResponseWriter, r *http.Request) {
	list, err := s.daemon.transformations.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]api.Transformation, 0, len(list))
	for _, tr := range list {
		out = append(out, api.FromTransformation(tr))
	}
	s.writeJSON(w, http.StatusOK, api.TransformationListResponse{Transformations: out})
}

func (s *apiServer) handleCreateTransformation(w http.ResponseWriter, r *http.Request) {
	var req api.TransformationRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	tr, err := s.daemon.transformations.Create(r.Context(), transformationInput(req))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.FromTransformation(tr))
}

func (s *apiServer) handleGetTransformation(w http.ResponseWriter, r *http.Request) {
	tr, err := s.daemon.transformations.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromTransformation(tr))
}

func (s *apiServer) handleUpdateTransformation(w http.ResponseWriter, r *http.Request) {
	var req api.TransformationRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	tr, err := s.daemon.transformations.Update(r.Context(), r.PathValue("id"), transformationInput(req))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromTransformation(tr))
}

func (s *apiServer) handleDeleteTransformation(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.transformations.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleSetDefaultTransformation(w http.ResponseWriter, r *http.Request) {
	tr, err := s.daemon.transformations.SetDefault(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromTransformation(tr))
}

func (s *apiServer) handleGetDefaultTransformation(w http.ResponseWriter, r *http.Request) {
	tr, err := s.daemon.transformations.Default(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if tr == nil {
		s.writeError(w, r, services.Wrap(services.ErrNotFound, "api", "default transformation", "no default transformation is set", nil))
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromTransformation(tr))
}

func (s *apiServer) handleUnsetDefaultTransformation(w http.ResponseWriter, r *http.Request) {
	cleared, err := s.daemon.transformations.UnsetDefault(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.UnsetDefaultResponse{Cleared: cleared})
}

func transformationInput(req api.TransformationRequest) catalog.TransformationInput {
	return catalog.TransformationInput{
		Name:         req.Name,
		Title:        req.Title,
		Description:  req.Description,
		Prompt:       req.Prompt,
		ApplyDefault: req.ApplyDefault,
	}
}

func (s *apiServer) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := s.daemon.templates.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.TemplateListResponse{Templates: derefTemplates(list)})
}

func (s *apiServer) handleSaveTemplate(w http.ResponseWriter, r *http.Request) {
	var tpl store.EpisodeTemplate
	if err := s.decode(r, &tpl); err != nil {
		s.writeError(w, r, err)
		return
	}
	saved, err := s.daemon.templates.Save(r.Context(), tpl)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, saved)
}

func (s *apiServer) handleImportTemplates(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "import templates", err.Error(), nil))
		return
	}
	saved, err := s.daemon.templates.ImportData(r.Context(), data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.TemplateListResponse{Templates: derefTemplates(saved)})
}

func (s *apiServer) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := s.daemon.templates.Get(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tpl)
}

func (s *apiServer) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.templates.Delete(r.Context(), r.PathValue("name")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func derefTemplates(list []*store.EpisodeTemplate) []store.EpisodeTemplate {
	out := make([]store.EpisodeTemplate, 0, len(list))
	for _, tpl := range list {
		if tpl != nil {
			out = append(out, *tpl)
		}
	}
	return out
}
