package httpapi

import (
	"net/http"

	"github.com/digkill/LandingForge/internal/auth"
)

func (s *Server) handleBillingStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.deps.Billing.Status(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

type deductResponse struct {
	Success bool `json:"success"`
}

func (s *Server) handleDeduct(w http.ResponseWriter, r *http.Request) {
	ok, err := s.deps.Billing.TryDeduct(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, deductResponse{Success: ok})
}

type codeRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleFollowBonus(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !s.decode(w, r, &req) {
		return
	}
	status, err := s.deps.Billing.GrantFollowBonus(r.Context(), auth.UserID(r.Context()), req.Code)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

type balanceResponse struct {
	RemainingCredits int `json:"remainingCredits"`
}

func (s *Server) handleRedeemPromo(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !s.decode(w, r, &req) {
		return
	}
	balance, err := s.deps.Promos.Redeem(r.Context(), auth.UserID(r.Context()), req.Code)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, balanceResponse{RemainingCredits: balance})
}

func (s *Server) handleListActivePlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.deps.Plans.ListActive(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, plans)
}
