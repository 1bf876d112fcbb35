package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/digkill/LandingForge/internal/models"
)

const stripeOrderNoKey = "order_no"

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	// APIURL overrides the Stripe API host, used against stripe-mock.
	APIURL  string
	Timeout time.Duration
}

// checkoutSessions is the subset of the Stripe checkout session client we call.
type checkoutSessions interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type StripeProvider struct {
	sessions      checkoutSessions
	webhookSecret string
	tolerance     time.Duration
}

func NewStripeProvider(cfg StripeConfig) (*StripeProvider, error) {
	if cfg.SecretKey == "" || cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("stripe credentials are not configured")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	backendCfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		MaxNetworkRetries: stripe.Int64(0),
	}
	if cfg.APIURL != "" {
		backendCfg.URL = stripe.String(cfg.APIURL)
	}
	sc := &client.API{}
	sc.Init(cfg.SecretKey, &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendCfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendCfg),
	})

	return &StripeProvider{
		sessions:      sc.CheckoutSessions,
		webhookSecret: cfg.WebhookSecret,
		tolerance:     webhook.DefaultTolerance,
	}, nil
}

func (p *StripeProvider) Kind() models.Provider {
	return models.ProviderStripe
}

func (p *StripeProvider) CreateCheckout(ctx context.Context, order *models.Order, successURL, cancelURL string) (*Checkout, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(cancelURL),
		ClientReferenceID: stripe.String(order.OrderNo),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(order.Currency)),
					UnitAmount: stripe.Int64(order.Amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("%d credits", order.Credits)),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey("checkout-" + order.ID)
	params.AddMetadata(stripeOrderNoKey, order.OrderNo)
	params.AddMetadata("order_id", order.ID)
	params.AddMetadata("user_id", order.UserID)
	params.AddMetadata("credits", strconv.Itoa(order.Credits))

	sess, err := p.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create stripe checkout session: %w", err)
	}
	if sess.URL == "" {
		return nil, fmt.Errorf("stripe checkout session %s has no url", sess.ID)
	}
	return &Checkout{RedirectTarget: sess.URL, SessionRef: sess.ID}, nil
}

func (p *StripeProvider) VerifyNotification(_ context.Context, in Inbound) Notification {
	signature := in.Header.Get("Stripe-Signature")
	if signature == "" {
		return rejected("missing Stripe-Signature header")
	}
	event, err := webhook.ConstructEventWithOptions(in.Body, signature, p.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                p.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return rejected("stripe signature: %v", err)
	}

	n := Notification{Authentic: true, Raw: string(in.Body)}
	eventType := string(event.Type)
	switch eventType {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded",
		"checkout.session.async_payment_failed", "checkout.session.expired":
	default:
		n.Reason = "ignored event " + eventType
		return n
	}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return rejected("stripe event %s has no data", event.ID)
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return rejected("decode checkout session: %v", err)
	}
	fillFromSession(&n, &sess)
	if n.OrderNo == "" {
		return rejected("checkout session %s carries no order number", sess.ID)
	}

	switch eventType {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		n.Settled = sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid
	case "checkout.session.async_payment_failed", "checkout.session.expired":
		n.Failed = true
	}
	return n
}

func (p *StripeProvider) QueryOrder(ctx context.Context, order *models.Order) (Notification, error) {
	if order.CheckoutRef == "" {
		return Notification{}, ErrCheckoutRefMissing
	}
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := p.sessions.Get(order.CheckoutRef, params)
	if err != nil {
		return Notification{}, fmt.Errorf("get stripe checkout session: %w", err)
	}

	n := Notification{Authentic: true}
	fillFromSession(&n, sess)
	if n.OrderNo != order.OrderNo {
		return Notification{}, fmt.Errorf("checkout session %s belongs to order %q", sess.ID, n.OrderNo)
	}
	n.Settled = sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid
	n.Failed = sess.Status == stripe.CheckoutSessionStatusExpired
	if raw, err := json.Marshal(sess); err == nil {
		n.Raw = string(raw)
	}
	return n, nil
}

func (p *StripeProvider) Acknowledge() (string, []byte) {
	return "application/json", []byte(`{"received":true}`)
}

func fillFromSession(n *Notification, sess *stripe.CheckoutSession) {
	n.OrderNo = sess.Metadata[stripeOrderNoKey]
	if n.OrderNo == "" {
		n.OrderNo = sess.ClientReferenceID
	}
	n.ProviderOrderNo = sess.ID
	if sess.PaymentIntent != nil && sess.PaymentIntent.ID != "" {
		n.ProviderOrderNo = sess.PaymentIntent.ID
	}
	n.Amount = sess.AmountTotal
}
