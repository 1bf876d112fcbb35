package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/digkill/LandingForge/internal/auth"
	"github.com/digkill/LandingForge/internal/models"
	"github.com/digkill/LandingForge/internal/payment"
	"github.com/digkill/LandingForge/internal/service"
)

const maxBodyBytes = 1 << 20

// Deps are the services the HTTP layer dispatches to.
type Deps struct {
	Log        *slog.Logger
	Sessions   *auth.Sessions
	Billing    *service.BillingService
	Checkout   *service.CheckoutService
	Reconciler *service.Reconciler
	Plans      *service.PlanService
	Promos     *service.PromoService
	Generation *service.GenerationService
	Pages      *service.PageService
	Providers  *payment.Registry
	Limiter    *IPLimiter

	AdminUsername string
	AdminPassword string
	// UncreditedGrace hides orders that are still inside the normal crediting window
	// from the operator listing.
	UncreditedGrace time.Duration
}

type Server struct {
	addr   string
	log    *slog.Logger
	deps   Deps
	router *chi.Mux
}

func NewServer(addr string, deps Deps) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	s := &Server{
		addr:   addr,
		log:    deps.Log,
		deps:   deps,
		router: r,
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/stripe", s.handleWebhook(models.ProviderStripe))
		r.Post("/alipay", s.handleWebhook(models.ProviderAlipay))
	})

	r.Route("/api", func(api chi.Router) {
		if deps.Limiter != nil {
			api.Use(deps.Limiter.Middleware)
		}
		api.Use(deps.Sessions.Middleware)

		api.Post("/session", s.handleSession)
		api.Get("/plans", s.handleListActivePlans)
		api.Get("/billing/status", s.handleBillingStatus)
		api.Get("/pages/{slug}", s.handleGetPage)

		api.Group(func(user chi.Router) {
			user.Use(auth.RequireUser)
			user.Post("/billing/deduct", s.handleDeduct)
			user.Post("/billing/follow-bonus", s.handleFollowBonus)
			user.Post("/promo/redeem", s.handleRedeemPromo)
			user.Post("/checkout", s.handleCheckout)
			user.Get("/orders", s.handleListOrders)
			user.Post("/orders/{orderNo}/confirm", s.handleConfirm)
			user.Post("/generate", s.handleGenerate)
			user.Post("/pages", s.handleSavePage)
			user.Get("/pages", s.handleListPages)
		})
	})

	r.Route("/admin", func(admin chi.Router) {
		admin.Use(s.basicAuthMiddleware())
		admin.Route("/plans", func(r chi.Router) {
			r.Get("/", s.handleListPlans)
			r.Post("/", s.handleCreatePlan)
			r.Put("/{id}", s.handleUpdatePlan)
			r.Delete("/{id}", s.handleDeletePlan)
		})
		admin.Route("/promo-codes", func(r chi.Router) {
			r.Get("/", s.handleListPromos)
			r.Post("/", s.handleCreatePromo)
			r.Put("/{id}", s.handleUpdatePromo)
			r.Delete("/{id}", s.handleDeletePromo)
		})
		admin.Post("/users/{userID}/credits", s.handleGrantCredits)
		admin.Get("/orders/uncredited", s.handleListUncredited)
		admin.Post("/orders/{orderNo}/apply-credits", s.handleApplyCredits)
	})
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Generation waits on the model, so writes get more room than reads.
		WriteTimeout: 90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("http shutdown error", "err", err)
		}
	}()

	s.log.Info("http server listening", "addr", s.addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

func (s *Server) basicAuthMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || s.deps.AdminPassword == "" ||
				subtle.ConstantTimeCompare([]byte(user), []byte(s.deps.AdminUsername)) != 1 ||
				subtle.ConstantTimeCompare([]byte(pass), []byte(s.deps.AdminPassword)) != 1 {
				w.Header().Set("WWW-Authenticate", `Basic realm="landingforge"`)
				s.writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

// decode reads a JSON body capped at maxBodyBytes. An empty body leaves v untouched.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

// fail maps service errors onto HTTP statuses. Store and unexpected errors are
// logged and hidden behind a generic message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := classify(err)
	if status >= http.StatusInternalServerError {
		s.log.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"err", err,
		)
	}
	s.writeError(w, status, msg)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrPromoInvalid),
		errors.Is(err, service.ErrFollowCodeInvalid),
		errors.Is(err, payment.ErrUnknownProvider):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrPlanUnavailable):
		return http.StatusBadRequest, "plan is not available"
	case errors.Is(err, service.ErrCreditsRequired):
		return http.StatusPaymentRequired, "no credits left"
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrForbidden):
		return http.StatusNotFound, "order not found"
	case errors.Is(err, service.ErrPageNotFound):
		return http.StatusNotFound, "page not found"
	case errors.Is(err, service.ErrPromoExhausted):
		return http.StatusConflict, "promo code exhausted"
	case errors.Is(err, service.ErrPromoAlreadyRedeemed):
		return http.StatusConflict, "promo code already redeemed"
	case errors.Is(err, service.ErrFollowBonusGranted):
		return http.StatusConflict, "follow bonus already granted"
	case errors.Is(err, service.ErrOrderClosed):
		return http.StatusConflict, "order is closed"
	case errors.Is(err, service.ErrPaymentPending):
		return http.StatusAccepted, "payment pending"
	case errors.Is(err, payment.ErrProviderDisabled),
		errors.Is(err, service.ErrCheckoutUnavailable):
		return http.StatusServiceUnavailable, "payment provider unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func parseID(value string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(value), 10, 64)
}
