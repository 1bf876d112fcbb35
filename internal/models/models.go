package models

import "time"

// Provider is the closed set of payment integrations an order can be settled through.
type Provider string

const (
	ProviderStripe Provider = "stripe"
	ProviderAlipay Provider = "alipay"
)

type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending"
	OrderStatusPaid    OrderStatus = "paid"
	OrderStatusFailed  OrderStatus = "failed"
)

// Order is a single checkout attempt. Credits, Amount and Currency are a snapshot of the
// plan taken when the order was created.
type Order struct {
	ID               string      `json:"id"`
	OrderNo          string      `json:"orderNo"`
	UserID           string      `json:"userId"`
	PlanID           int64       `json:"planId"`
	Provider         Provider    `json:"provider"`
	Credits          int         `json:"credits"`
	Amount           int64       `json:"amount"`
	Currency         string      `json:"currency"`
	Status           OrderStatus `json:"status"`
	ProviderOrderNo  string      `json:"providerOrderNo,omitempty"`
	CheckoutRef      string      `json:"-"`
	PaidAt           *time.Time  `json:"paidAt,omitempty"`
	CreditsAppliedAt *time.Time  `json:"creditsAppliedAt,omitempty"`
	ProviderResponse string      `json:"-"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

// CreditsApplied reports whether the order's credits already reached the ledger.
func (o *Order) CreditsApplied() bool {
	return o.CreditsAppliedAt != nil
}

// UserStats is the per-user ledger row.
type UserStats struct {
	UserID             string    `json:"userId"`
	RemainingCredits   int       `json:"remainingCredits"`
	GenerationCount    int       `json:"generationCount"`
	SaveCount          int       `json:"saveCount"`
	FollowBonusGranted bool      `json:"followBonusGranted"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

type Plan struct {
	ID                    int64     `json:"id"`
	Title                 string    `json:"title"`
	Description           string    `json:"description"`
	Credits               int       `json:"credits"`
	Currency              string    `json:"currency"`
	PriceMinorUnits       int64     `json:"priceMinorUnits"`
	WalletCurrency        string    `json:"walletCurrency"`
	WalletPriceMinorUnits int64     `json:"walletPriceMinorUnits"`
	IsActive              bool      `json:"isActive"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

// PriceFor returns the amount and currency charged through the given provider.
func (p *Plan) PriceFor(provider Provider) (int64, string) {
	if provider == ProviderAlipay {
		return p.WalletPriceMinorUnits, p.WalletCurrency
	}
	return p.PriceMinorUnits, p.Currency
}

type PromoCode struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	MaxUses   int       `json:"maxUses"`
	Uses      int       `json:"uses"`
	CreatedAt time.Time `json:"createdAt"`
}

type Feature struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// PageContent is the structured landing page produced by the generator.
type PageContent struct {
	ProductName  string    `json:"productName"`
	Tagline      string    `json:"tagline"`
	PainPoints   []string  `json:"painPoints"`
	Features     []Feature `json:"features"`
	CallToAction string    `json:"callToAction"`
}

type LandingPage struct {
	ID          string      `json:"id"`
	UserID      string      `json:"-"`
	Slug        string      `json:"slug"`
	Idea        string      `json:"idea"`
	Content     PageContent `json:"content"`
	SnapshotURL string      `json:"snapshotUrl,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
}

type GenerationLog struct {
	ID        int64
	UserID    string
	Model     string
	Idea      string
	Fallback  bool
	CreatedAt time.Time
}
