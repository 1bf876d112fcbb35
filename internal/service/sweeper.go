package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// CreditSweeper applies credits for orders that reached paid without them, which
// happens when the ledger write fails after the status transition committed.
type CreditSweeper struct {
	log     *slog.Logger
	orders  OrderStore
	alerter Alerter
	grace   time.Duration
	batch   int
	now     func() time.Time
}

func NewCreditSweeper(log *slog.Logger, orders OrderStore, alerter Alerter, grace time.Duration) *CreditSweeper {
	if grace < 0 {
		grace = 0
	}
	return &CreditSweeper{
		log:     log,
		orders:  orders,
		alerter: alerter,
		grace:   grace,
		batch:   100,
		now:     time.Now,
	}
}

// Sweep credits every order paid longer than the grace period ago and still uncredited.
// It returns how many orders it credited.
func (s *CreditSweeper) Sweep(ctx context.Context) (int, error) {
	orders, err := s.orders.ListUncredited(ctx, s.now().Add(-s.grace), s.batch)
	if err != nil {
		return 0, storeErr("list uncredited orders", err)
	}

	credited := 0
	for i := range orders {
		order := &orders[i]
		applied, err := s.orders.ApplyCredits(ctx, order)
		if err != nil {
			s.log.Error("sweeper apply credits failed", "order_no", order.OrderNo, "user_id", order.UserID, "err", err)
			s.alert(ctx, fmt.Sprintf("Sweeper could not credit order %s (%d credits, user %s): %v", order.OrderNo, order.Credits, order.UserID, err))
			continue
		}
		if applied {
			credited++
			s.log.Info("sweeper applied credits", "order_no", order.OrderNo, "user_id", order.UserID, "credits", order.Credits)
		}
	}
	return credited, nil
}

func (s *CreditSweeper) alert(ctx context.Context, message string) {
	if s.alerter == nil {
		return
	}
	if err := s.alerter.Alert(ctx, message); err != nil {
		s.log.Error("send alert failed", "err", err)
	}
}
