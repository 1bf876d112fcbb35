package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/digkill/LandingForge/internal/models"
)

// DefaultPlan seeds pricing_plans on an empty database.
type DefaultPlan struct {
	Title                 string
	Credits               int
	Currency              string
	PriceMinorUnits       int64
	WalletCurrency        string
	WalletPriceMinorUnits int64
}

type PlanService struct {
	plans    PlanStore
	defaults DefaultPlan
}

type CreatePlanInput struct {
	Title                 string `json:"title"`
	Description           string `json:"description"`
	Credits               int    `json:"credits"`
	Currency              string `json:"currency"`
	PriceMinorUnits       int64  `json:"priceMinorUnits"`
	WalletCurrency        string `json:"walletCurrency"`
	WalletPriceMinorUnits int64  `json:"walletPriceMinorUnits"`
	IsActive              *bool  `json:"isActive"`
}

type UpdatePlanInput struct {
	Title                 *string `json:"title"`
	Description           *string `json:"description"`
	Credits               *int    `json:"credits"`
	Currency              *string `json:"currency"`
	PriceMinorUnits       *int64  `json:"priceMinorUnits"`
	WalletCurrency        *string `json:"walletCurrency"`
	WalletPriceMinorUnits *int64  `json:"walletPriceMinorUnits"`
	IsActive              *bool   `json:"isActive"`
}

func NewPlanService(plans PlanStore, defaults DefaultPlan) *PlanService {
	return &PlanService{plans: plans, defaults: defaults}
}

func (s *PlanService) EnsureDefaultPlan(ctx context.Context) error {
	plan, err := s.plans.GetDefault(ctx)
	if err != nil {
		return storeErr("get default plan", err)
	}
	if plan != nil {
		return nil
	}
	if _, err := s.Create(ctx, CreatePlanInput{
		Title:                 s.defaults.Title,
		Description:           fmt.Sprintf("%d landing page credits", s.defaults.Credits),
		Credits:               s.defaults.Credits,
		Currency:              s.defaults.Currency,
		PriceMinorUnits:       s.defaults.PriceMinorUnits,
		WalletCurrency:        s.defaults.WalletCurrency,
		WalletPriceMinorUnits: s.defaults.WalletPriceMinorUnits,
	}); err != nil {
		return fmt.Errorf("create default plan: %w", err)
	}
	return nil
}

func (s *PlanService) ListActive(ctx context.Context) ([]models.Plan, error) {
	plans, err := s.plans.ListActive(ctx)
	if err != nil {
		return nil, storeErr("list active plans", err)
	}
	return plans, nil
}

func (s *PlanService) List(ctx context.Context) ([]models.Plan, error) {
	plans, err := s.plans.List(ctx)
	if err != nil {
		return nil, storeErr("list plans", err)
	}
	return plans, nil
}

func (s *PlanService) Create(ctx context.Context, input CreatePlanInput) (*models.Plan, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, invalid("title is required")
	}
	if input.Credits <= 0 {
		return nil, invalid("credits must be positive")
	}
	if input.PriceMinorUnits <= 0 {
		return nil, invalid("price must be positive")
	}
	if input.WalletPriceMinorUnits < 0 {
		return nil, invalid("wallet price must not be negative")
	}
	if input.Currency == "" {
		input.Currency = s.defaults.Currency
	}
	if input.WalletCurrency == "" {
		input.WalletCurrency = s.defaults.WalletCurrency
	}
	isActive := true
	if input.IsActive != nil {
		isActive = *input.IsActive
	}
	plan := &models.Plan{
		Title:                 strings.TrimSpace(input.Title),
		Description:           input.Description,
		Credits:               input.Credits,
		Currency:              strings.ToUpper(input.Currency),
		PriceMinorUnits:       input.PriceMinorUnits,
		WalletCurrency:        strings.ToUpper(input.WalletCurrency),
		WalletPriceMinorUnits: input.WalletPriceMinorUnits,
		IsActive:              isActive,
	}
	created, err := s.plans.Create(ctx, plan)
	if err != nil {
		return nil, storeErr("create plan", err)
	}
	return created, nil
}

// Update never touches existing orders: they carry their own credit and price snapshot.
func (s *PlanService) Update(ctx context.Context, id int64, input UpdatePlanInput) (*models.Plan, error) {
	existing, err := s.plans.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("get plan", err)
	}
	if existing == nil {
		return nil, ErrPlanUnavailable
	}
	if input.Title != nil && strings.TrimSpace(*input.Title) != "" {
		existing.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		existing.Description = *input.Description
	}
	if input.Credits != nil {
		if *input.Credits <= 0 {
			return nil, invalid("credits must be positive")
		}
		existing.Credits = *input.Credits
	}
	if input.Currency != nil && *input.Currency != "" {
		existing.Currency = strings.ToUpper(*input.Currency)
	}
	if input.PriceMinorUnits != nil {
		if *input.PriceMinorUnits <= 0 {
			return nil, invalid("price must be positive")
		}
		existing.PriceMinorUnits = *input.PriceMinorUnits
	}
	if input.WalletCurrency != nil && *input.WalletCurrency != "" {
		existing.WalletCurrency = strings.ToUpper(*input.WalletCurrency)
	}
	if input.WalletPriceMinorUnits != nil {
		if *input.WalletPriceMinorUnits < 0 {
			return nil, invalid("wallet price must not be negative")
		}
		existing.WalletPriceMinorUnits = *input.WalletPriceMinorUnits
	}
	if input.IsActive != nil {
		existing.IsActive = *input.IsActive
	}
	updated, err := s.plans.Update(ctx, existing)
	if err != nil {
		return nil, storeErr("update plan", err)
	}
	return updated, nil
}

func (s *PlanService) Delete(ctx context.Context, id int64) error {
	if err := s.plans.Delete(ctx, id); err != nil {
		return storeErr("delete plan", err)
	}
	return nil
}
