package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/digkill/LandingForge/internal/models"
	"github.com/digkill/LandingForge/internal/service"
)

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.deps.Plans.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, plans)
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req service.CreatePlanInput
	if !s.decode(w, r, &req) {
		return
	}
	plan, err := s.deps.Plans.Create(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, plan)
}

func (s *Server) handleUpdatePlan(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req service.UpdatePlanInput
	if !s.decode(w, r, &req) {
		return
	}
	plan, err := s.deps.Plans.Update(r.Context(), id, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleDeletePlan(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.deps.Plans.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListPromos(w http.ResponseWriter, r *http.Request) {
	promos, err := s.deps.Promos.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, promos)
}

func (s *Server) handleCreatePromo(w http.ResponseWriter, r *http.Request) {
	var req service.PromoInput
	if !s.decode(w, r, &req) {
		return
	}
	promo, err := s.deps.Promos.Create(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, promo)
}

func (s *Server) handleUpdatePromo(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req service.PromoInput
	if !s.decode(w, r, &req) {
		return
	}
	promo, err := s.deps.Promos.Update(r.Context(), id, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, promo)
}

func (s *Server) handleDeletePromo(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.deps.Promos.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type grantRequest struct {
	Credits int `json:"credits"`
}

func (s *Server) handleGrantCredits(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if !s.decode(w, r, &req) {
		return
	}
	balance, err := s.deps.Billing.AdminGrant(r.Context(), chi.URLParam(r, "userID"), req.Credits)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, balanceResponse{RemainingCredits: balance})
}

func (s *Server) handleListUncredited(w http.ResponseWriter, r *http.Request) {
	orders, err := s.deps.Reconciler.Uncredited(r.Context(), time.Now().Add(-s.deps.UncreditedGrace))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	s.writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handleApplyCredits(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Reconciler.RetryCredits(r.Context(), chi.URLParam(r, "orderNo"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}
