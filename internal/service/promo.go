package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/digkill/LandingForge/internal/models"
)

type PromoService struct {
	log    *slog.Logger
	promos PromoStore
	bonus  int
}

type PromoInput struct {
	Code    string `json:"code"`
	MaxUses int    `json:"maxUses"`
	Uses    *int   `json:"uses"`
}

func NewPromoService(log *slog.Logger, promos PromoStore, bonus int) *PromoService {
	return &PromoService{log: log, promos: promos, bonus: bonus}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Redeem grants the promo bonus once per user and code, returning the new balance.
func (s *PromoService) Redeem(ctx context.Context, userID, code string) (int, error) {
	code = normalizeCode(code)
	if code == "" {
		return 0, ErrPromoInvalid
	}
	promo, err := s.promos.GetByCode(ctx, code)
	if err != nil {
		return 0, storeErr("get promo", err)
	}
	if promo == nil {
		return 0, ErrPromoInvalid
	}
	if promo.Uses >= promo.MaxUses {
		return 0, ErrPromoExhausted
	}

	balance, err := s.promos.Redeem(ctx, userID, promo.ID, s.bonus)
	if err != nil {
		if errors.Is(err, ErrPromoExhausted) || errors.Is(err, ErrPromoAlreadyRedeemed) {
			return 0, err
		}
		return 0, storeErr("redeem promo", err)
	}
	s.log.Info("promo redeemed", "user_id", userID, "code", code, "credits", s.bonus)
	return balance, nil
}

func (s *PromoService) List(ctx context.Context) ([]models.PromoCode, error) {
	promos, err := s.promos.List(ctx)
	if err != nil {
		return nil, storeErr("list promos", err)
	}
	return promos, nil
}

func (s *PromoService) Create(ctx context.Context, input PromoInput) (*models.PromoCode, error) {
	code := normalizeCode(input.Code)
	if code == "" {
		return nil, invalid("code is required")
	}
	if input.MaxUses <= 0 {
		return nil, invalid("maxUses must be positive")
	}
	existing, err := s.promos.GetByCode(ctx, code)
	if err != nil {
		return nil, storeErr("get promo", err)
	}
	if existing != nil {
		return nil, invalid("code %s already exists", code)
	}
	created, err := s.promos.Create(ctx, &models.PromoCode{Code: code, MaxUses: input.MaxUses})
	if err != nil {
		return nil, storeErr("create promo", err)
	}
	return created, nil
}

func (s *PromoService) Update(ctx context.Context, id int64, input PromoInput) (*models.PromoCode, error) {
	existing, err := s.promos.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("get promo", err)
	}
	if existing == nil {
		return nil, ErrPromoInvalid
	}
	if code := normalizeCode(input.Code); code != "" {
		existing.Code = code
	}
	if input.MaxUses > 0 {
		existing.MaxUses = input.MaxUses
	}
	if input.Uses != nil {
		if *input.Uses < 0 {
			return nil, invalid("uses must not be negative")
		}
		existing.Uses = *input.Uses
	}
	updated, err := s.promos.Update(ctx, existing)
	if err != nil {
		return nil, storeErr("update promo", err)
	}
	return updated, nil
}

func (s *PromoService) Delete(ctx context.Context, id int64) error {
	if err := s.promos.Delete(ctx, id); err != nil {
		return storeErr("delete promo", err)
	}
	return nil
}
