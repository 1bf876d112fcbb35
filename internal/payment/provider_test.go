package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/digkill/LandingForge/internal/models"
)

type stubProvider struct {
	kind models.Provider
}

func (s stubProvider) Kind() models.Provider { return s.kind }
func (s stubProvider) CreateCheckout(context.Context, *models.Order, string, string) (*Checkout, error) {
	return &Checkout{}, nil
}
func (s stubProvider) VerifyNotification(context.Context, Inbound) Notification { return Notification{} }
func (s stubProvider) QueryOrder(context.Context, *models.Order) (Notification, error) {
	return Notification{}, nil
}
func (s stubProvider) Acknowledge() (string, []byte) { return "text/plain", nil }

func TestParseProvider(t *testing.T) {
	tests := []struct {
		in      string
		want    models.Provider
		wantErr bool
	}{
		{"stripe", models.ProviderStripe, false},
		{" Alipay ", models.ProviderAlipay, false},
		{"wechat", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseProvider(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownProvider) {
				t.Errorf("ParseProvider(%q) error = %v, want ErrUnknownProvider", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseProvider(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(stubProvider{kind: models.ProviderStripe}, nil)

	if _, err := r.Get(models.ProviderStripe); err != nil {
		t.Fatalf("Get(stripe) returned error: %v", err)
	}
	if _, err := r.Get(models.ProviderAlipay); !errors.Is(err, ErrProviderDisabled) {
		t.Fatalf("Get(alipay) error = %v, want ErrProviderDisabled", err)
	}
	if kinds := r.Kinds(); len(kinds) != 1 || kinds[0] != models.ProviderStripe {
		t.Fatalf("unexpected kinds: %v", kinds)
	}
}
