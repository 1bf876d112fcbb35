package service

import (
	"context"
	"time"

	"github.com/digkill/LandingForge/internal/models"
)

// OrderStore persists checkout attempts. Lookups return nil, nil when nothing matches.
type OrderStore interface {
	Create(ctx context.Context, order *models.Order) error
	GetByOrderNo(ctx context.Context, orderNo string) (*models.Order, error)
	SetCheckoutRef(ctx context.Context, orderID, ref string) error
	// MarkPaid moves a pending order to paid. false means the order was not pending.
	MarkPaid(ctx context.Context, orderID, providerOrderNo, providerResponse string) (bool, error)
	MarkFailed(ctx context.Context, orderID, providerResponse string) (bool, error)
	// ApplyCredits stamps credits_applied_at on a paid order and increments the owner's
	// balance by order.Credits in one transaction. false means credits were already applied.
	ApplyCredits(ctx context.Context, order *models.Order) (bool, error)
	ListUncredited(ctx context.Context, paidBefore time.Time, limit int) ([]models.Order, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Order, error)
}

// LedgerStore owns user_stats. Rows are created lazily with the signup grant.
type LedgerStore interface {
	GetOrCreate(ctx context.Context, userID string) (*models.UserStats, error)
	AddCredits(ctx context.Context, userID string, amount int) (int, error)
	// DeductOne decrements the balance only while it is positive.
	DeductOne(ctx context.Context, userID string) (bool, error)
	IncrementGenerationCount(ctx context.Context, userID string) error
	IncrementSaveCount(ctx context.Context, userID string) error
	// GrantFollowBonus flips follow_bonus_granted and adds credits; false if already granted.
	GrantFollowBonus(ctx context.Context, userID string, credits int) (bool, error)
}

type PlanStore interface {
	GetByID(ctx context.Context, id int64) (*models.Plan, error)
	GetDefault(ctx context.Context) (*models.Plan, error)
	List(ctx context.Context) ([]models.Plan, error)
	ListActive(ctx context.Context) ([]models.Plan, error)
	Create(ctx context.Context, plan *models.Plan) (*models.Plan, error)
	Update(ctx context.Context, plan *models.Plan) (*models.Plan, error)
	Delete(ctx context.Context, id int64) error
}

type PromoStore interface {
	GetByCode(ctx context.Context, code string) (*models.PromoCode, error)
	GetByID(ctx context.Context, id int64) (*models.PromoCode, error)
	List(ctx context.Context) ([]models.PromoCode, error)
	Create(ctx context.Context, promo *models.PromoCode) (*models.PromoCode, error)
	Update(ctx context.Context, promo *models.PromoCode) (*models.PromoCode, error)
	Delete(ctx context.Context, id int64) error
	// Redeem records the redemption, bumps usage and credits the user atomically,
	// returning the new balance.
	Redeem(ctx context.Context, userID string, promoID int64, credits int) (int, error)
}

type PageStore interface {
	Create(ctx context.Context, page *models.LandingPage) error
	GetBySlug(ctx context.Context, slug string) (*models.LandingPage, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.LandingPage, error)
}

type GenerationLogStore interface {
	Record(ctx context.Context, entry *models.GenerationLog) error
}

// Alerter delivers operator notifications for states that need a human.
type Alerter interface {
	Alert(ctx context.Context, message string) error
}
