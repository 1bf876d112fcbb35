package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/digkill/LandingForge/internal/auth"
	"github.com/digkill/LandingForge/internal/models"
)

type generateRequest struct {
	Idea string `json:"idea"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !s.decode(w, r, &req) {
		return
	}
	result, err := s.deps.Generation.Generate(r.Context(), auth.UserID(r.Context()), req.Idea)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

type savePageRequest struct {
	Idea    string             `json:"idea"`
	Content models.PageContent `json:"content"`
}

func (s *Server) handleSavePage(w http.ResponseWriter, r *http.Request) {
	var req savePageRequest
	if !s.decode(w, r, &req) {
		return
	}
	page, err := s.deps.Pages.Save(r.Context(), auth.UserID(r.Context()), req.Idea, req.Content)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, page)
}

func (s *Server) handleGetPage(w http.ResponseWriter, r *http.Request) {
	page, err := s.deps.Pages.Get(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleListPages(w http.ResponseWriter, r *http.Request) {
	pages, err := s.deps.Pages.ListForUser(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if pages == nil {
		pages = []models.LandingPage{}
	}
	s.writeJSON(w, http.StatusOK, pages)
}
