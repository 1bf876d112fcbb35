package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/digkill/LandingForge/internal/models"
)

var (
	ErrNotAuthentic       = errors.New("payment: notification is not authentic")
	ErrUnknownProvider    = errors.New("payment: unknown provider")
	ErrProviderDisabled   = errors.New("payment: provider is not configured")
	ErrCheckoutRefMissing = errors.New("payment: order has no checkout reference")
)

// Inbound is a raw provider callback as received over HTTP.
type Inbound struct {
	Body   []byte
	Header http.Header
}

// Notification is the provider-neutral result of verifying a callback or querying
// a provider for an order's status.
type Notification struct {
	Authentic       bool
	Reason          string
	OrderNo         string
	ProviderOrderNo string
	Settled         bool
	Failed          bool
	// Amount is the charged amount in minor units; zero when the provider did not report it.
	Amount int64
	Raw    string
}

// Checkout tells the client where to go (or what to scan) to pay.
type Checkout struct {
	RedirectTarget string
	SessionRef     string
	QRCode         string
}

// Provider is implemented once per payment integration.
type Provider interface {
	Kind() models.Provider
	CreateCheckout(ctx context.Context, order *models.Order, successURL, cancelURL string) (*Checkout, error)
	// VerifyNotification never returns an error: anything it cannot prove authentic is
	// reported with Authentic=false.
	VerifyNotification(ctx context.Context, in Inbound) Notification
	QueryOrder(ctx context.Context, order *models.Order) (Notification, error)
	Acknowledge() (contentType string, body []byte)
}

func rejected(format string, args ...any) Notification {
	return Notification{Authentic: false, Reason: fmt.Sprintf(format, args...)}
}

// ParseProvider maps user input onto the closed provider enum.
func ParseProvider(raw string) (models.Provider, error) {
	switch models.Provider(strings.ToLower(strings.TrimSpace(raw))) {
	case models.ProviderStripe:
		return models.ProviderStripe, nil
	case models.ProviderAlipay:
		return models.ProviderAlipay, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, raw)
	}
}

// Registry holds the configured providers keyed by kind.
type Registry struct {
	providers map[models.Provider]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[models.Provider]Provider, len(providers))}
	for _, p := range providers {
		if p == nil {
			continue
		}
		r.providers[p.Kind()] = p
	}
	return r
}

func (r *Registry) Get(kind models.Provider) (Provider, error) {
	p, ok := r.providers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderDisabled, kind)
	}
	return p, nil
}

// Kinds lists the enabled providers in a stable order.
func (r *Registry) Kinds() []models.Provider {
	kinds := make([]models.Provider, 0, len(r.providers))
	for k := range r.providers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
