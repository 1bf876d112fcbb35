package service

import (
	"errors"
	"fmt"

	"github.com/digkill/LandingForge/internal/repository"
)

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrPlanUnavailable     = errors.New("plan is inactive or unknown")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrPartialCredit       = errors.New("order paid but credits not applied")
	ErrPaymentPending      = errors.New("payment not settled yet")
	ErrOrderClosed         = errors.New("order is closed")
	ErrAmountMismatch      = errors.New("settled amount does not match order")
	ErrProviderMismatch    = errors.New("settlement came from another provider")
	ErrCheckoutUnavailable = errors.New("checkout provider unavailable")
	ErrCreditsRequired     = errors.New("insufficient credits, payment required")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidInput        = errors.New("invalid input")

	ErrFollowCodeInvalid  = errors.New("follow unlock code invalid")
	ErrFollowBonusGranted = errors.New("follow bonus already granted")

	ErrPromoInvalid         = errors.New("promo code invalid")
	ErrPromoExhausted       = repository.ErrPromoExhausted
	ErrPromoAlreadyRedeemed = repository.ErrPromoAlreadyRedeemed

	ErrPageNotFound = errors.New("page not found")
)

// storeErr tags a persistence failure so handlers can answer 500 without string matching.
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
