package service

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"strings"
)

// BillingStatus is the read-only projection of a user's ledger row.
type BillingStatus struct {
	RemainingCredits   int  `json:"remainingCredits"`
	GenerationCount    int  `json:"generationCount"`
	SaveCount          int  `json:"saveCount"`
	CanGenerate        bool `json:"canGenerate"`
	CanSave            bool `json:"canSave"`
	FollowBonusGranted bool `json:"followBonusGranted"`
	Authenticated      bool `json:"authenticated"`
}

type BillingService struct {
	log          *slog.Logger
	ledger       LedgerStore
	followCredit int
	followCode   string
}

func NewBillingService(log *slog.Logger, ledger LedgerStore, followCredits int, followCode string) *BillingService {
	return &BillingService{
		log:          log,
		ledger:       ledger,
		followCredit: followCredits,
		followCode:   strings.TrimSpace(followCode),
	}
}

// Status returns the anonymous projection when userID is empty.
func (s *BillingService) Status(ctx context.Context, userID string) (*BillingStatus, error) {
	if userID == "" {
		return &BillingStatus{}, nil
	}
	stats, err := s.ledger.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, storeErr("get ledger", err)
	}
	return &BillingStatus{
		RemainingCredits:   stats.RemainingCredits,
		GenerationCount:    stats.GenerationCount,
		SaveCount:          stats.SaveCount,
		CanGenerate:        stats.RemainingCredits > 0,
		CanSave:            stats.RemainingCredits > 0,
		FollowBonusGranted: stats.FollowBonusGranted,
		Authenticated:      true,
	}, nil
}

// TryDeduct takes exactly one credit or reports false without touching the balance.
func (s *BillingService) TryDeduct(ctx context.Context, userID string) (bool, error) {
	ok, err := s.ledger.DeductOne(ctx, userID)
	if err != nil {
		return false, storeErr("deduct credit", err)
	}
	return ok, nil
}

// GrantFollowBonus credits the one-time bonus after the user enters the code shown
// by the official account.
func (s *BillingService) GrantFollowBonus(ctx context.Context, userID, code string) (*BillingStatus, error) {
	if s.followCode == "" || s.followCredit <= 0 {
		return nil, ErrFollowCodeInvalid
	}
	code = strings.TrimSpace(code)
	if subtle.ConstantTimeCompare([]byte(strings.ToUpper(code)), []byte(strings.ToUpper(s.followCode))) != 1 {
		return nil, ErrFollowCodeInvalid
	}
	granted, err := s.ledger.GrantFollowBonus(ctx, userID, s.followCredit)
	if err != nil {
		return nil, storeErr("grant follow bonus", err)
	}
	if !granted {
		return nil, ErrFollowBonusGranted
	}
	s.log.Info("follow bonus granted", "user_id", userID, "credits", s.followCredit)
	return s.Status(ctx, userID)
}

// AdminGrant adds credits on operator request and returns the new balance.
func (s *BillingService) AdminGrant(ctx context.Context, userID string, credits int) (int, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, invalid("user id is required")
	}
	if credits <= 0 {
		return 0, invalid("credits must be positive")
	}
	balance, err := s.ledger.AddCredits(ctx, userID, credits)
	if err != nil {
		return 0, storeErr("add credits", err)
	}
	s.log.Info("admin credit grant", "user_id", userID, "credits", credits, "balance", balance)
	return balance, nil
}
