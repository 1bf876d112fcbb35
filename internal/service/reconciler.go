package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/digkill/LandingForge/internal/models"
	"github.com/digkill/LandingForge/internal/payment"
)

// Settlement is a verified "this order was paid" signal, from a webhook or a
// server-side status query.
type Settlement struct {
	OrderNo         string
	ProviderOrderNo string
	Payload         string
	// Amount in minor units as reported by the provider; zero skips the check.
	Amount int64
	// Provider that produced the signal; empty skips the check.
	Provider models.Provider
	Source   string
}

type ReconcileResult struct {
	OrderNo          string `json:"orderNo"`
	AlreadyProcessed bool   `json:"alreadyProcessed"`
	Credits          int    `json:"credits"`
}

// Reconciler drives orders from pending to paid and applies their credits exactly once.
type Reconciler struct {
	log          *slog.Logger
	orders       OrderStore
	providers    *payment.Registry
	alerter      Alerter
	queryTimeout time.Duration
}

func NewReconciler(log *slog.Logger, orders OrderStore, providers *payment.Registry, alerter Alerter, queryTimeout time.Duration) *Reconciler {
	if queryTimeout <= 0 {
		queryTimeout = 15 * time.Second
	}
	return &Reconciler{
		log:          log,
		orders:       orders,
		providers:    providers,
		alerter:      alerter,
		queryTimeout: queryTimeout,
	}
}

func (r *Reconciler) Reconcile(ctx context.Context, s Settlement) (*ReconcileResult, error) {
	order, err := r.orders.GetByOrderNo(ctx, s.OrderNo)
	if err != nil {
		return nil, storeErr("get order", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if s.Provider != "" && s.Provider != order.Provider {
		r.log.Warn("settlement provider mismatch", "order_no", order.OrderNo, "order_provider", order.Provider, "provider", s.Provider, "source", s.Source)
		return nil, ErrProviderMismatch
	}
	if s.Amount != 0 && s.Amount != order.Amount {
		r.log.Warn("settlement amount mismatch", "order_no", order.OrderNo, "expected", order.Amount, "got", s.Amount, "source", s.Source)
		r.alert(ctx, fmt.Sprintf("Order %s settled for %d, expected %d %s (%s)", order.OrderNo, s.Amount, order.Amount, order.Currency, s.Source))
		return nil, ErrAmountMismatch
	}

	result := &ReconcileResult{OrderNo: order.OrderNo, Credits: order.Credits}

	switch order.Status {
	case models.OrderStatusFailed:
		return nil, ErrOrderClosed
	case models.OrderStatusPaid:
		result.AlreadyProcessed = true
		if order.CreditsApplied() {
			return result, nil
		}
		if _, err := r.finish(ctx, order, s.Source); err != nil {
			return nil, err
		}
		return result, nil
	}

	updated, err := r.orders.MarkPaid(ctx, order.ID, s.ProviderOrderNo, s.Payload)
	if err != nil {
		return nil, storeErr("mark order paid", err)
	}
	if !updated {
		// Lost the race to another trigger; report what the winner left behind.
		current, err := r.orders.GetByOrderNo(ctx, s.OrderNo)
		if err != nil {
			return nil, storeErr("reload order", err)
		}
		if current == nil || current.Status == models.OrderStatusFailed {
			return nil, ErrOrderClosed
		}
		result.AlreadyProcessed = true
		return result, nil
	}

	r.log.Info("order paid", "order_no", order.OrderNo, "user_id", order.UserID, "provider", order.Provider, "source", s.Source)
	order.Status = models.OrderStatusPaid
	if _, err := r.finish(ctx, order, s.Source); err != nil {
		return nil, err
	}
	return result, nil
}

// finish applies credits for a paid order and reports whether this call applied them.
// A failure here is left to the sweeper.
func (r *Reconciler) finish(ctx context.Context, order *models.Order, source string) (bool, error) {
	applied, err := r.orders.ApplyCredits(ctx, order)
	if err != nil {
		r.log.Error("apply credits failed", "order_no", order.OrderNo, "user_id", order.UserID, "credits", order.Credits, "err", err)
		r.alert(ctx, fmt.Sprintf("Order %s is paid but %d credits for user %s were not applied: %v", order.OrderNo, order.Credits, order.UserID, err))
		return false, fmt.Errorf("order %s: %w: %w", order.OrderNo, ErrPartialCredit, err)
	}
	if applied {
		r.log.Info("credits applied", "order_no", order.OrderNo, "user_id", order.UserID, "credits", order.Credits, "source", source)
	}
	return applied, nil
}

// Fail closes a pending order after an explicit provider failure. Paid orders are left alone.
func (r *Reconciler) Fail(ctx context.Context, orderNo, payload string) error {
	order, err := r.orders.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return storeErr("get order", err)
	}
	if order == nil {
		return ErrOrderNotFound
	}
	updated, err := r.orders.MarkFailed(ctx, order.ID, payload)
	if err != nil {
		return storeErr("mark order failed", err)
	}
	if updated {
		r.log.Info("order failed", "order_no", orderNo, "provider", order.Provider)
	}
	return nil
}

// HandleNotification verifies an inbound provider callback and routes it. A nil result
// with a nil error means the notification was authentic but carried nothing to act on.
func (r *Reconciler) HandleNotification(ctx context.Context, kind models.Provider, in payment.Inbound) (*ReconcileResult, error) {
	provider, err := r.providers.Get(kind)
	if err != nil {
		return nil, err
	}
	n := provider.VerifyNotification(ctx, in)
	if !n.Authentic {
		r.log.Warn("rejected provider notification", "provider", kind, "reason", n.Reason)
		return nil, fmt.Errorf("%w: %s", payment.ErrNotAuthentic, n.Reason)
	}

	switch {
	case n.Settled:
		return r.Reconcile(ctx, Settlement{
			OrderNo:         n.OrderNo,
			ProviderOrderNo: n.ProviderOrderNo,
			Payload:         n.Raw,
			Amount:          n.Amount,
			Provider:        kind,
			Source:          "webhook",
		})
	case n.Failed:
		return nil, r.Fail(ctx, n.OrderNo, n.Raw)
	default:
		r.log.Debug("provider notification ignored", "provider", kind, "order_no", n.OrderNo, "reason", n.Reason)
		return nil, nil
	}
}

// ConfirmForUser is the client "I paid" trigger. The client is never trusted: a pending
// order is only reconciled when the provider itself reports it settled.
func (r *Reconciler) ConfirmForUser(ctx context.Context, userID, orderNo string) (*ReconcileResult, error) {
	order, err := r.orders.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, storeErr("get order", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.UserID != userID {
		return nil, ErrForbidden
	}

	switch order.Status {
	case models.OrderStatusFailed:
		return nil, ErrOrderClosed
	case models.OrderStatusPaid:
		return r.Reconcile(ctx, Settlement{OrderNo: orderNo, Source: "confirm"})
	}

	provider, err := r.providers.Get(order.Provider)
	if err != nil {
		return nil, err
	}
	queryCtx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	n, err := provider.QueryOrder(queryCtx, order)
	if err != nil {
		r.log.Warn("provider status query failed", "order_no", orderNo, "provider", order.Provider, "err", err)
		return nil, fmt.Errorf("%w: %w", ErrPaymentPending, err)
	}
	switch {
	case n.Settled:
		return r.Reconcile(ctx, Settlement{
			OrderNo:         orderNo,
			ProviderOrderNo: n.ProviderOrderNo,
			Payload:         n.Raw,
			Amount:          n.Amount,
			Provider:        order.Provider,
			Source:          "confirm",
		})
	case n.Failed:
		if err := r.Fail(ctx, orderNo, n.Raw); err != nil {
			return nil, err
		}
		return nil, ErrOrderClosed
	default:
		return nil, ErrPaymentPending
	}
}

// RetryCredits applies credits for a paid order on operator request.
func (r *Reconciler) RetryCredits(ctx context.Context, orderNo string) (*ReconcileResult, error) {
	order, err := r.orders.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, storeErr("get order", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	switch order.Status {
	case models.OrderStatusPending:
		return nil, ErrPaymentPending
	case models.OrderStatusFailed:
		return nil, ErrOrderClosed
	}
	applied, err := r.finish(ctx, order, "operator")
	if err != nil {
		return nil, err
	}
	return &ReconcileResult{OrderNo: order.OrderNo, AlreadyProcessed: !applied, Credits: order.Credits}, nil
}

// Uncredited lists paid orders whose credits have not reached the ledger.
func (r *Reconciler) Uncredited(ctx context.Context, paidBefore time.Time) ([]models.Order, error) {
	orders, err := r.orders.ListUncredited(ctx, paidBefore, 200)
	if err != nil {
		return nil, storeErr("list uncredited orders", err)
	}
	return orders, nil
}

func (r *Reconciler) alert(ctx context.Context, message string) {
	if r.alerter == nil {
		return
	}
	if err := r.alerter.Alert(ctx, message); err != nil {
		r.log.Error("send alert failed", "err", err)
	}
}
