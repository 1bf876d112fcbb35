package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/digkill/LandingForge/internal/auth"
	"github.com/digkill/LandingForge/internal/models"
	"github.com/digkill/LandingForge/internal/payment"
	"github.com/digkill/LandingForge/internal/service"
)

type sessionResponse struct {
	UserID  string `json:"userId"`
	Created bool   `json:"created"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	userID, created, err := s.deps.Sessions.Start(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	s.writeJSON(w, status, sessionResponse{UserID: userID, Created: created})
}

type checkoutRequest struct {
	PlanID   int64  `json:"planId"`
	Provider string `json:"provider"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if !s.decode(w, r, &req) {
		return
	}
	kind, err := payment.ParseProvider(req.Provider)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	result, err := s.deps.Checkout.Checkout(r.Context(), auth.UserID(r.Context()), req.PlanID, kind)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.deps.Checkout.ListOrders(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	s.writeJSON(w, http.StatusOK, orders)
}

type pendingResponse struct {
	OrderNo string `json:"orderNo"`
	Status  string `json:"status"`
}

// handleConfirm answers the client's "I paid" poll. Every failure other than
// pending or unknown reads the same to the user; details stay in the log.
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	orderNo := chi.URLParam(r, "orderNo")
	result, err := s.deps.Reconciler.ConfirmForUser(r.Context(), auth.UserID(r.Context()), orderNo)
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, result)
	case errors.Is(err, service.ErrPaymentPending):
		s.writeJSON(w, http.StatusAccepted, pendingResponse{OrderNo: orderNo, Status: string(models.OrderStatusPending)})
	case errors.Is(err, service.ErrOrderNotFound), errors.Is(err, service.ErrForbidden):
		s.writeError(w, http.StatusNotFound, "order not found")
	default:
		s.log.ErrorContext(r.Context(), "confirm payment", "order_no", orderNo, "err", err)
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrOrderClosed) {
			status = http.StatusConflict
		}
		s.writeError(w, status, "we couldn't confirm your payment yet, please retry in a moment")
	}
}

// handleWebhook acknowledges anything the provider should stop retrying. Only
// unauthentic callbacks and server-side failures are refused.
func (s *Server) handleWebhook(kind models.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider, err := s.deps.Providers.Get(kind)
		if err != nil {
			s.writeError(w, http.StatusNotFound, "provider not enabled")
			return
		}
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "read body error")
			return
		}

		result, err := s.deps.Reconciler.HandleNotification(r.Context(), kind, payment.Inbound{Body: body, Header: r.Header})
		switch {
		case err == nil:
			if result != nil {
				s.log.Info("webhook processed", "provider", kind, "order_no", result.OrderNo, "already_processed", result.AlreadyProcessed)
			}
		case errors.Is(err, payment.ErrNotAuthentic):
			s.writeError(w, http.StatusBadRequest, "invalid notification")
			return
		case errors.Is(err, service.ErrOrderNotFound),
			errors.Is(err, service.ErrOrderClosed),
			errors.Is(err, service.ErrAmountMismatch),
			errors.Is(err, service.ErrProviderMismatch):
			s.log.Warn("webhook acknowledged without crediting", "provider", kind, "err", err)
		default:
			s.log.Error("webhook processing failed", "provider", kind, "err", err)
			s.writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		contentType, ack := provider.Acknowledge()
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(ack)
	}
}
