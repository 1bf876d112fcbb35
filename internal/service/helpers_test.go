package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/digkill/LandingForge/internal/models"
	"github.com/digkill/LandingForge/internal/payment"
	"github.com/digkill/LandingForge/internal/repository/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeProvider struct {
	kind models.Provider

	mu           sync.Mutex
	checkoutErr  error
	notification payment.Notification
	query        payment.Notification
	queryErr     error
	queries      int
}

func (f *fakeProvider) Kind() models.Provider { return f.kind }

func (f *fakeProvider) CreateCheckout(_ context.Context, order *models.Order, _, _ string) (*payment.Checkout, error) {
	if f.checkoutErr != nil {
		return nil, f.checkoutErr
	}
	return &payment.Checkout{RedirectTarget: "https://pay.example.com/" + order.OrderNo, SessionRef: "sess_" + order.OrderNo}, nil
}

func (f *fakeProvider) VerifyNotification(context.Context, payment.Inbound) payment.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.notification
}

func (f *fakeProvider) QueryOrder(context.Context, *models.Order) (payment.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	return f.query, f.queryErr
}

func (f *fakeProvider) Acknowledge() (string, []byte) { return "text/plain", []byte("ok") }

func (f *fakeProvider) settle(n payment.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notification = n
	f.query = n
}

type recordingAlerter struct {
	mu       sync.Mutex
	messages []string
}

func (a *recordingAlerter) Alert(_ context.Context, message string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages = append(a.messages, message)
	return nil
}

func (a *recordingAlerter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.messages)
}

// flakyOrders fails ApplyCredits a configurable number of times.
type flakyOrders struct {
	OrderStore
	mu       sync.Mutex
	failures int
}

func (f *flakyOrders) ApplyCredits(ctx context.Context, order *models.Order) (bool, error) {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return false, errors.New("ledger unavailable")
	}
	f.mu.Unlock()
	return f.OrderStore.ApplyCredits(ctx, order)
}

type fixture struct {
	store      *memory.Store
	orders     OrderStore
	stripe     *fakeProvider
	alipay     *fakeProvider
	alerter    *recordingAlerter
	checkout   *CheckoutService
	reconciler *Reconciler
	billing    *BillingService
	plan       *models.Plan
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithOrders(t, nil)
}

func newFixtureWithOrders(t *testing.T, wrap func(OrderStore) OrderStore) *fixture {
	t.Helper()
	store := memory.New(0)
	var orders OrderStore = store.Orders()
	if wrap != nil {
		orders = wrap(orders)
	}

	plan, err := store.Plans().Create(context.Background(), &models.Plan{
		Title: "Starter", Credits: 50, Currency: "USD", PriceMinorUnits: 999,
		WalletCurrency: "CNY", WalletPriceMinorUnits: 6900, IsActive: true,
	})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}

	numbers, err := NewOrderNumbers(1)
	if err != nil {
		t.Fatalf("NewOrderNumbers: %v", err)
	}
	stripe := &fakeProvider{kind: models.ProviderStripe}
	alipay := &fakeProvider{kind: models.ProviderAlipay}
	registry := payment.NewRegistry(stripe, alipay)
	alerter := &recordingAlerter{}
	log := discardLogger()

	return &fixture{
		store:      store,
		orders:     orders,
		stripe:     stripe,
		alipay:     alipay,
		alerter:    alerter,
		checkout:   NewCheckoutService(log, orders, store.Plans(), registry, numbers, "https://app.example.com", time.Second),
		reconciler: NewReconciler(log, orders, registry, alerter, time.Second),
		billing:    NewBillingService(log, store.Ledger(), 5, "HELLO"),
		plan:       plan,
	}
}

func (f *fixture) order(t *testing.T, userID string, provider models.Provider) *models.Order {
	t.Helper()
	res, err := f.checkout.Checkout(context.Background(), userID, f.plan.ID, provider)
	if err != nil {
		t.Fatalf("Checkout returned error: %v", err)
	}
	order, err := f.orders.GetByOrderNo(context.Background(), res.OrderNo)
	if err != nil || order == nil {
		t.Fatalf("GetByOrderNo(%s) = %v, %v", res.OrderNo, order, err)
	}
	return order
}

func (f *fixture) balance(t *testing.T, userID string) int {
	t.Helper()
	stats, err := f.store.Ledger().GetOrCreate(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	return stats.RemainingCredits
}
