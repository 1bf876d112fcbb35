package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/digkill/LandingForge/internal/models"
	"github.com/digkill/LandingForge/internal/payment"
)

func TestReconcileHappyPath(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, "u1", models.ProviderStripe)
	if order.Status != models.OrderStatusPending || order.CheckoutRef == "" {
		t.Fatalf("unexpected new order: %+v", order)
	}

	f.stripe.settle(payment.Notification{Authentic: true, Settled: true, OrderNo: order.OrderNo, ProviderOrderNo: "pi_1", Amount: 999, Raw: "{}"})
	res, err := f.reconciler.HandleNotification(context.Background(), models.ProviderStripe, payment.Inbound{})
	if err != nil {
		t.Fatalf("HandleNotification returned error: %v", err)
	}
	if res.AlreadyProcessed || res.Credits != 50 {
		t.Fatalf("unexpected result: %+v", res)
	}

	stored, _ := f.orders.GetByOrderNo(context.Background(), order.OrderNo)
	if stored.Status != models.OrderStatusPaid || stored.PaidAt == nil || stored.ProviderOrderNo != "pi_1" || !stored.CreditsApplied() {
		t.Fatalf("order not settled: %+v", stored)
	}
	if got := f.balance(t, "u1"); got != 50 {
		t.Fatalf("balance = %d, want 50", got)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, "u1", models.ProviderAlipay)
	settlement := Settlement{OrderNo: order.OrderNo, ProviderOrderNo: "2024001", Amount: 6900, Provider: models.ProviderAlipay}

	first, err := f.reconciler.Reconcile(context.Background(), settlement)
	if err != nil || first.AlreadyProcessed {
		t.Fatalf("first reconcile = %+v, %v", first, err)
	}
	stored, _ := f.orders.GetByOrderNo(context.Background(), order.OrderNo)
	paidAt := *stored.PaidAt

	settlement.ProviderOrderNo = "2024002"
	second, err := f.reconciler.Reconcile(context.Background(), settlement)
	if err != nil || !second.AlreadyProcessed {
		t.Fatalf("second reconcile = %+v, %v", second, err)
	}

	stored, _ = f.orders.GetByOrderNo(context.Background(), order.OrderNo)
	if !stored.PaidAt.Equal(paidAt) || stored.ProviderOrderNo != "2024001" {
		t.Fatalf("paid order mutated by replay: %+v", stored)
	}
	if got := f.balance(t, "u1"); got != 50 {
		t.Fatalf("balance = %d, want 50", got)
	}
}

func TestReconcileConcurrentExactlyOnce(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, "u1", models.ProviderStripe)

	const callers = 32
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		fresh int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.reconciler.Reconcile(context.Background(), Settlement{OrderNo: order.OrderNo, Amount: 999})
			if err != nil {
				t.Errorf("Reconcile returned error: %v", err)
				return
			}
			if !res.AlreadyProcessed {
				mu.Lock()
				fresh++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if fresh != 1 {
		t.Fatalf("%d callers saw a fresh transition, want 1", fresh)
	}
	if got := f.balance(t, "u1"); got != 50 {
		t.Fatalf("balance = %d, want 50", got)
	}
}

func TestReconcileUsesOrderSnapshot(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, "u1", models.ProviderStripe)

	plan := *f.plan
	plan.Credits = 500
	if _, err := f.store.Plans().Update(context.Background(), &plan); err != nil {
		t.Fatalf("update plan: %v", err)
	}

	res, err := f.reconciler.Reconcile(context.Background(), Settlement{OrderNo: order.OrderNo})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if res.Credits != 50 || f.balance(t, "u1") != 50 {
		t.Fatalf("credited %d (balance %d), want the 50 credit snapshot", res.Credits, f.balance(t, "u1"))
	}
}

func TestReconcileRejectsMismatches(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, "u1", models.ProviderStripe)

	if _, err := f.reconciler.Reconcile(context.Background(), Settlement{OrderNo: order.OrderNo, Amount: 1}); !errors.Is(err, ErrAmountMismatch) {
		t.Fatalf("expected ErrAmountMismatch, got %v", err)
	}
	if _, err := f.reconciler.Reconcile(context.Background(), Settlement{OrderNo: order.OrderNo, Provider: models.ProviderAlipay}); !errors.Is(err, ErrProviderMismatch) {
		t.Fatalf("expected ErrProviderMismatch, got %v", err)
	}
	if _, err := f.reconciler.Reconcile(context.Background(), Settlement{OrderNo: "LF-missing"}); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}

	stored, _ := f.orders.GetByOrderNo(context.Background(), order.OrderNo)
	if stored.Status != models.OrderStatusPending || f.balance(t, "u1") != 0 {
		t.Fatalf("rejected settlement changed state: %+v", stored)
	}
	if f.alerter.count() != 1 {
		t.Fatalf("expected one amount mismatch alert, got %d", f.alerter.count())
	}
}

func TestUnauthenticNotificationChangesNothing(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, "u1", models.ProviderAlipay)

	f.alipay.settle(payment.Notification{Authentic: false, Reason: "bad signature"})
	if _, err := f.reconciler.HandleNotification(context.Background(), models.ProviderAlipay, payment.Inbound{}); !errors.Is(err, payment.ErrNotAuthentic) {
		t.Fatalf("expected ErrNotAuthentic, got %v", err)
	}
	stored, _ := f.orders.GetByOrderNo(context.Background(), order.OrderNo)
	if stored.Status != models.OrderStatusPending || f.balance(t, "u1") != 0 {
		t.Fatalf("unauthentic notification changed state: %+v", stored)
	}
}

func TestFailedOrderIsClosed(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, "u1", models.ProviderStripe)

	f.stripe.settle(payment.Notification{Authentic: true, Failed: true, OrderNo: order.OrderNo})
	if res, err := f.reconciler.HandleNotification(context.Background(), models.ProviderStripe, payment.Inbound{}); err != nil || res != nil {
		t.Fatalf("failure notification = %+v, %v", res, err)
	}
	if _, err := f.reconciler.Reconcile(context.Background(), Settlement{OrderNo: order.OrderNo}); !errors.Is(err, ErrOrderClosed) {
		t.Fatalf("expected ErrOrderClosed, got %v", err)
	}
	if f.balance(t, "u1") != 0 {
		t.Fatal("failed order credited")
	}
}

func TestFailDoesNotTouchPaidOrder(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, "u1", models.ProviderStripe)
	if _, err := f.reconciler.Reconcile(context.Background(), Settlement{OrderNo: order.OrderNo}); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if err := f.reconciler.Fail(context.Background(), order.OrderNo, "late failure"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	stored, _ := f.orders.GetByOrderNo(context.Background(), order.OrderNo)
	if stored.Status != models.OrderStatusPaid {
		t.Fatalf("paid order moved to %s", stored.Status)
	}
}

func TestConfirmForUser(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, "u1", models.ProviderAlipay)

	if _, err := f.reconciler.ConfirmForUser(context.Background(), "intruder", order.OrderNo); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := f.reconciler.ConfirmForUser(context.Background(), "u1", "LF0"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}

	f.alipay.settle(payment.Notification{Authentic: true, OrderNo: order.OrderNo})
	if _, err := f.reconciler.ConfirmForUser(context.Background(), "u1", order.OrderNo); !errors.Is(err, ErrPaymentPending) {
		t.Fatalf("expected ErrPaymentPending, got %v", err)
	}
	if f.balance(t, "u1") != 0 {
		t.Fatal("unsettled confirm credited the user")
	}
}

func TestPollBeatsWebhook(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, "u1", models.ProviderAlipay)
	f.alipay.settle(payment.Notification{Authentic: true, Settled: true, OrderNo: order.OrderNo, ProviderOrderNo: "2024001", Amount: 6900})

	confirmed, err := f.reconciler.ConfirmForUser(context.Background(), "u1", order.OrderNo)
	if err != nil || confirmed.AlreadyProcessed || confirmed.Credits != 50 {
		t.Fatalf("confirm = %+v, %v", confirmed, err)
	}

	webhook, err := f.reconciler.HandleNotification(context.Background(), models.ProviderAlipay, payment.Inbound{})
	if err != nil || !webhook.AlreadyProcessed {
		t.Fatalf("late webhook = %+v, %v", webhook, err)
	}

	again, err := f.reconciler.ConfirmForUser(context.Background(), "u1", order.OrderNo)
	if err != nil || !again.AlreadyProcessed {
		t.Fatalf("repeat confirm = %+v, %v", again, err)
	}
	if f.alipay.queries != 1 {
		t.Fatalf("provider queried %d times, want 1", f.alipay.queries)
	}
	if got := f.balance(t, "u1"); got != 50 {
		t.Fatalf("balance = %d, want 50", got)
	}
}

func TestConfirmProviderErrorIsPending(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, "u1", models.ProviderStripe)
	f.stripe.queryErr = errors.New("timeout")

	if _, err := f.reconciler.ConfirmForUser(context.Background(), "u1", order.OrderNo); !errors.Is(err, ErrPaymentPending) {
		t.Fatalf("expected ErrPaymentPending, got %v", err)
	}
}

func TestPartialCreditRecovery(t *testing.T) {
	var flaky *flakyOrders
	f := newFixtureWithOrders(t, func(inner OrderStore) OrderStore {
		flaky = &flakyOrders{OrderStore: inner, failures: 1}
		return flaky
	})
	order := f.order(t, "u1", models.ProviderStripe)

	_, err := f.reconciler.Reconcile(context.Background(), Settlement{OrderNo: order.OrderNo, Amount: 999})
	if !errors.Is(err, ErrPartialCredit) {
		t.Fatalf("expected ErrPartialCredit, got %v", err)
	}
	if f.alerter.count() != 1 {
		t.Fatalf("expected one operator alert, got %d", f.alerter.count())
	}
	stored, _ := f.orders.GetByOrderNo(context.Background(), order.OrderNo)
	if stored.Status != models.OrderStatusPaid || stored.CreditsApplied() || f.balance(t, "u1") != 0 {
		t.Fatalf("unexpected state after partial credit: %+v", stored)
	}

	sweeper := NewCreditSweeper(discardLogger(), f.orders, f.alerter, 2*time.Minute)
	sweeper.now = func() time.Time { return time.Now().Add(time.Hour) }
	credited, err := sweeper.Sweep(context.Background())
	if err != nil || credited != 1 {
		t.Fatalf("Sweep = %d, %v", credited, err)
	}

	res, err := f.reconciler.Reconcile(context.Background(), Settlement{OrderNo: order.OrderNo})
	if err != nil || !res.AlreadyProcessed {
		t.Fatalf("reconcile after sweep = %+v, %v", res, err)
	}
	if credited, _ := sweeper.Sweep(context.Background()); credited != 0 {
		t.Fatalf("second sweep credited %d orders", credited)
	}
	if got := f.balance(t, "u1"); got != 50 {
		t.Fatalf("balance = %d, want 50", got)
	}
}

func TestReconcileCreditsPaidButUncreditedOrder(t *testing.T) {
	f := newFixtureWithOrders(t, func(inner OrderStore) OrderStore {
		return &flakyOrders{OrderStore: inner, failures: 1}
	})
	order := f.order(t, "u1", models.ProviderStripe)

	if _, err := f.reconciler.Reconcile(context.Background(), Settlement{OrderNo: order.OrderNo}); !errors.Is(err, ErrPartialCredit) {
		t.Fatalf("expected ErrPartialCredit, got %v", err)
	}
	res, err := f.reconciler.Reconcile(context.Background(), Settlement{OrderNo: order.OrderNo})
	if err != nil || !res.AlreadyProcessed {
		t.Fatalf("retry = %+v, %v", res, err)
	}
	if got := f.balance(t, "u1"); got != 50 {
		t.Fatalf("balance = %d, want 50", got)
	}
}

func TestSweeperRespectsGrace(t *testing.T) {
	f := newFixtureWithOrders(t, func(inner OrderStore) OrderStore {
		return &flakyOrders{OrderStore: inner, failures: 1}
	})
	order := f.order(t, "u1", models.ProviderStripe)
	_, _ = f.reconciler.Reconcile(context.Background(), Settlement{OrderNo: order.OrderNo})

	sweeper := NewCreditSweeper(discardLogger(), f.orders, nil, time.Hour)
	if credited, err := sweeper.Sweep(context.Background()); err != nil || credited != 0 {
		t.Fatalf("Sweep inside grace = %d, %v", credited, err)
	}
}

func TestRetryCredits(t *testing.T) {
	f := newFixtureWithOrders(t, func(inner OrderStore) OrderStore {
		return &flakyOrders{OrderStore: inner, failures: 1}
	})
	pending := f.order(t, "u1", models.ProviderStripe)
	if _, err := f.reconciler.RetryCredits(context.Background(), pending.OrderNo); !errors.Is(err, ErrPaymentPending) {
		t.Fatalf("expected ErrPaymentPending, got %v", err)
	}

	_, _ = f.reconciler.Reconcile(context.Background(), Settlement{OrderNo: pending.OrderNo})
	res, err := f.reconciler.RetryCredits(context.Background(), pending.OrderNo)
	if err != nil || res.AlreadyProcessed {
		t.Fatalf("RetryCredits = %+v, %v", res, err)
	}
	res, err = f.reconciler.RetryCredits(context.Background(), pending.OrderNo)
	if err != nil || !res.AlreadyProcessed {
		t.Fatalf("second RetryCredits = %+v, %v", res, err)
	}
	if got := f.balance(t, "u1"); got != 50 {
		t.Fatalf("balance = %d, want 50", got)
	}
}
