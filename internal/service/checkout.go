package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"

	"github.com/digkill/LandingForge/internal/models"
	"github.com/digkill/LandingForge/internal/payment"
)

// OrderNumbers issues the merchant references handed to providers.
type OrderNumbers struct {
	node *snowflake.Node
}

func NewOrderNumbers(nodeID int64) (*OrderNumbers, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	return &OrderNumbers{node: node}, nil
}

func (n *OrderNumbers) Next() string {
	return "LF" + n.node.Generate().String()
}

type CheckoutService struct {
	log       *slog.Logger
	orders    OrderStore
	plans     PlanStore
	providers *payment.Registry
	numbers   *OrderNumbers
	baseURL   string
	timeout   time.Duration
}

type CheckoutResult struct {
	OrderNo        string `json:"orderNo"`
	RedirectTarget string `json:"redirectTarget"`
	QRCode         string `json:"qrCode,omitempty"`
}

func NewCheckoutService(log *slog.Logger, orders OrderStore, plans PlanStore, providers *payment.Registry, numbers *OrderNumbers, baseURL string, timeout time.Duration) *CheckoutService {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &CheckoutService{
		log:       log,
		orders:    orders,
		plans:     plans,
		providers: providers,
		numbers:   numbers,
		baseURL:   baseURL,
		timeout:   timeout,
	}
}

// CreateOrder inserts a pending order carrying a snapshot of the plan's credits and
// the price charged through the chosen provider.
func (s *CheckoutService) CreateOrder(ctx context.Context, userID string, planID int64, provider models.Provider) (*models.Order, error) {
	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		return nil, storeErr("get plan", err)
	}
	if plan == nil || !plan.IsActive || plan.Credits <= 0 {
		return nil, ErrPlanUnavailable
	}
	amount, currency := plan.PriceFor(provider)
	if amount <= 0 || currency == "" {
		return nil, fmt.Errorf("%w: no %s price", ErrPlanUnavailable, provider)
	}

	order := &models.Order{
		ID:       uuid.NewString(),
		OrderNo:  s.numbers.Next(),
		UserID:   userID,
		PlanID:   plan.ID,
		Provider: provider,
		Credits:  plan.Credits,
		Amount:   amount,
		Currency: currency,
		Status:   models.OrderStatusPending,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, storeErr("create order", err)
	}
	return order, nil
}

// Checkout creates the order first, then the provider session. A provider failure
// leaves the order pending; nothing is credited until a settlement arrives.
func (s *CheckoutService) Checkout(ctx context.Context, userID string, planID int64, kind models.Provider) (*CheckoutResult, error) {
	provider, err := s.providers.Get(kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCheckoutUnavailable, err)
	}
	order, err := s.CreateOrder(ctx, userID, planID, kind)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	checkout, err := provider.CreateCheckout(callCtx, order, s.returnURL("success", order.OrderNo), s.returnURL("cancel", order.OrderNo))
	if err != nil {
		s.log.Error("create checkout failed", "order_no", order.OrderNo, "provider", kind, "err", err)
		return nil, fmt.Errorf("%w: %w", ErrCheckoutUnavailable, err)
	}
	if checkout.SessionRef != "" {
		if err := s.orders.SetCheckoutRef(ctx, order.ID, checkout.SessionRef); err != nil {
			// The webhook path does not need the reference; only client confirm polling does.
			s.log.Error("store checkout ref failed", "order_no", order.OrderNo, "err", err)
		}
	}

	s.log.Info("checkout created", "order_no", order.OrderNo, "provider", kind, "user_id", userID, "amount", order.Amount, "currency", order.Currency)
	return &CheckoutResult{
		OrderNo:        order.OrderNo,
		RedirectTarget: checkout.RedirectTarget,
		QRCode:         checkout.QRCode,
	}, nil
}

func (s *CheckoutService) ListOrders(ctx context.Context, userID string) ([]models.Order, error) {
	orders, err := s.orders.ListByUser(ctx, userID, 50)
	if err != nil {
		return nil, storeErr("list orders", err)
	}
	return orders, nil
}

func (s *CheckoutService) returnURL(result, orderNo string) string {
	return fmt.Sprintf("%s/billing/%s?order_no=%s", s.baseURL, result, url.QueryEscape(orderNo))
}
