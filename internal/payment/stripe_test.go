package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/digkill/LandingForge/internal/models"
)

const testWebhookSecret = "whsec_test_secret"

type fakeSessions struct {
	created *stripe.CheckoutSessionParams
	session *stripe.CheckoutSession
	err     error
}

func (f *fakeSessions) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.created = params
	return f.session, f.err
}

func (f *fakeSessions) Get(id string, _ *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.session == nil || f.session.ID != id {
		return nil, fmt.Errorf("no such session %s", id)
	}
	return f.session, nil
}

func newTestStripe(sessions checkoutSessions) *StripeProvider {
	return &StripeProvider{sessions: sessions, webhookSecret: testWebhookSecret, tolerance: webhook.DefaultTolerance}
}

func stripeSignature(secret string, ts time.Time, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func stripeEvent(eventType, orderNo, paymentStatus string, amount int64) string {
	return fmt.Sprintf(`{"id":"evt_1","object":"event","type":%q,"data":{"object":{"id":"cs_test_1","object":"checkout.session","client_reference_id":%q,"metadata":{"order_no":%q},"payment_intent":"pi_123","payment_status":%q,"amount_total":%d,"status":"complete"}}}`,
		eventType, orderNo, orderNo, paymentStatus, amount)
}

func inbound(payload, signature string) Inbound {
	h := http.Header{}
	if signature != "" {
		h.Set("Stripe-Signature", signature)
	}
	return Inbound{Body: []byte(payload), Header: h}
}

func TestStripeVerifyNotificationSettled(t *testing.T) {
	p := newTestStripe(&fakeSessions{})
	payload := stripeEvent("checkout.session.completed", "LF100", "paid", 999)

	n := p.VerifyNotification(context.Background(), inbound(payload, stripeSignature(testWebhookSecret, time.Now(), payload)))
	if !n.Authentic {
		t.Fatalf("expected authentic notification, reason: %s", n.Reason)
	}
	if !n.Settled || n.Failed {
		t.Fatalf("expected settled notification, got %+v", n)
	}
	if n.OrderNo != "LF100" || n.ProviderOrderNo != "pi_123" || n.Amount != 999 {
		t.Fatalf("unexpected fields: %+v", n)
	}
}

func TestStripeVerifyNotificationUnpaidCompletion(t *testing.T) {
	p := newTestStripe(&fakeSessions{})
	payload := stripeEvent("checkout.session.completed", "LF100", "unpaid", 999)

	n := p.VerifyNotification(context.Background(), inbound(payload, stripeSignature(testWebhookSecret, time.Now(), payload)))
	if !n.Authentic || n.Settled {
		t.Fatalf("unpaid completion must be authentic but not settled: %+v", n)
	}
}

func TestStripeVerifyNotificationExpired(t *testing.T) {
	p := newTestStripe(&fakeSessions{})
	payload := stripeEvent("checkout.session.expired", "LF100", "unpaid", 999)

	n := p.VerifyNotification(context.Background(), inbound(payload, stripeSignature(testWebhookSecret, time.Now(), payload)))
	if !n.Authentic || !n.Failed || n.Settled {
		t.Fatalf("expected failed notification, got %+v", n)
	}
}

func TestStripeVerifyNotificationFailsClosed(t *testing.T) {
	p := newTestStripe(&fakeSessions{})
	payload := stripeEvent("checkout.session.completed", "LF100", "paid", 999)
	other := stripeEvent("checkout.session.completed", "LF200", "paid", 999)

	tests := []struct {
		name string
		in   Inbound
	}{
		{"missing signature", inbound(payload, "")},
		{"wrong secret", inbound(payload, stripeSignature("whsec_other", time.Now(), payload))},
		{"tampered body", inbound(strings.Replace(payload, "999", "1", 1), stripeSignature(testWebhookSecret, time.Now(), payload))},
		{"replayed for another order", inbound(other, stripeSignature(testWebhookSecret, time.Now(), payload))},
		{"stale timestamp", inbound(payload, stripeSignature(testWebhookSecret, time.Now().Add(-time.Hour), payload))},
		{"garbage header", inbound(payload, "garbage")},
		{"malformed body", inbound("{not json", stripeSignature(testWebhookSecret, time.Now(), "{not json"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := p.VerifyNotification(context.Background(), tt.in)
			if n.Authentic {
				t.Fatalf("expected unauthentic notification, got %+v", n)
			}
			if n.Settled {
				t.Fatal("unauthentic notification must never be settled")
			}
		})
	}
}

func TestStripeCreateCheckout(t *testing.T) {
	fake := &fakeSessions{session: &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}}
	p := newTestStripe(fake)
	order := &models.Order{ID: "ord-1", OrderNo: "LF100", UserID: "user-1", Credits: 50, Amount: 999, Currency: "USD"}

	checkout, err := p.CreateCheckout(context.Background(), order, "https://app/success", "https://app/cancel")
	if err != nil {
		t.Fatalf("CreateCheckout returned error: %v", err)
	}
	if checkout.RedirectTarget != fake.session.URL || checkout.SessionRef != "cs_test_1" {
		t.Fatalf("unexpected checkout: %+v", checkout)
	}

	params := fake.created
	if params == nil {
		t.Fatal("expected session params to be sent")
	}
	if params.Metadata["order_no"] != "LF100" || params.Metadata["credits"] != "50" {
		t.Fatalf("metadata not embedded: %v", params.Metadata)
	}
	if *params.ClientReferenceID != "LF100" {
		t.Fatalf("client reference id = %s", *params.ClientReferenceID)
	}
	item := params.LineItems[0]
	if *item.PriceData.UnitAmount != 999 || *item.PriceData.Currency != "usd" {
		t.Fatalf("unexpected line item: amount=%d currency=%s", *item.PriceData.UnitAmount, *item.PriceData.Currency)
	}
}

func TestStripeCreateCheckoutError(t *testing.T) {
	p := newTestStripe(&fakeSessions{err: fmt.Errorf("timeout")})
	order := &models.Order{ID: "ord-1", OrderNo: "LF100", Credits: 50, Amount: 999, Currency: "USD"}
	if _, err := p.CreateCheckout(context.Background(), order, "s", "c"); err == nil {
		t.Fatal("expected error from provider failure")
	}
}

func TestStripeQueryOrder(t *testing.T) {
	fake := &fakeSessions{session: &stripe.CheckoutSession{
		ID:                "cs_test_1",
		ClientReferenceID: "LF100",
		PaymentStatus:     stripe.CheckoutSessionPaymentStatusPaid,
		AmountTotal:       999,
		PaymentIntent:     &stripe.PaymentIntent{ID: "pi_123"},
	}}
	p := newTestStripe(fake)

	n, err := p.QueryOrder(context.Background(), &models.Order{OrderNo: "LF100", CheckoutRef: "cs_test_1"})
	if err != nil {
		t.Fatalf("QueryOrder returned error: %v", err)
	}
	if !n.Settled || n.ProviderOrderNo != "pi_123" || n.Amount != 999 {
		t.Fatalf("unexpected notification: %+v", n)
	}

	if _, err := p.QueryOrder(context.Background(), &models.Order{OrderNo: "LF999", CheckoutRef: "cs_test_1"}); err == nil {
		t.Fatal("expected error when the session belongs to another order")
	}
	if _, err := p.QueryOrder(context.Background(), &models.Order{OrderNo: "LF100"}); err != ErrCheckoutRefMissing {
		t.Fatalf("expected ErrCheckoutRefMissing, got %v", err)
	}
}
