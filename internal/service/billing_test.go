package service

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestStatusAnonymous(t *testing.T) {
	f := newFixture(t)
	status, err := f.billing.Status(context.Background(), "")
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if status.RemainingCredits != 0 || status.CanGenerate || status.CanSave || status.Authenticated {
		t.Fatalf("unexpected anonymous projection: %+v", status)
	}
}

func TestStatusProjection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.store.Ledger().AddCredits(ctx, "u1", 2)
	_ = f.store.Ledger().IncrementGenerationCount(ctx, "u1")
	_ = f.store.Ledger().IncrementSaveCount(ctx, "u1")

	status, err := f.billing.Status(ctx, "u1")
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if status.RemainingCredits != 2 || status.GenerationCount != 1 || status.SaveCount != 1 || !status.CanGenerate || !status.CanSave {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestDeductionExhaustion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.store.Ledger().AddCredits(ctx, "u1", 1)

	ok, err := f.billing.TryDeduct(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("first TryDeduct = %v, %v", ok, err)
	}
	ok, err = f.billing.TryDeduct(ctx, "u1")
	if err != nil || ok {
		t.Fatalf("second TryDeduct = %v, %v", ok, err)
	}
	if got := f.balance(t, "u1"); got != 0 {
		t.Fatalf("balance = %d, want 0", got)
	}
	status, _ := f.billing.Status(ctx, "u1")
	if status.CanGenerate || status.CanSave {
		t.Fatalf("exhausted user can still act: %+v", status)
	}
}

func TestConcurrentDeductionNeverNegative(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.store.Ledger().AddCredits(ctx, "u1", 1)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := f.billing.TryDeduct(ctx, "u1")
			if err != nil {
				t.Errorf("TryDeduct returned error: %v", err)
				return
			}
			if ok {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("%d deductions succeeded, want 1", successes)
	}
	if got := f.balance(t, "u1"); got != 0 {
		t.Fatalf("balance = %d, want 0", got)
	}
}

func TestFollowBonusOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.billing.GrantFollowBonus(ctx, "u1", "nope"); !errors.Is(err, ErrFollowCodeInvalid) {
		t.Fatalf("expected ErrFollowCodeInvalid, got %v", err)
	}
	status, err := f.billing.GrantFollowBonus(ctx, "u1", " hello ")
	if err != nil {
		t.Fatalf("GrantFollowBonus returned error: %v", err)
	}
	if status.RemainingCredits != 5 || !status.FollowBonusGranted {
		t.Fatalf("unexpected status: %+v", status)
	}
	if _, err := f.billing.GrantFollowBonus(ctx, "u1", "HELLO"); !errors.Is(err, ErrFollowBonusGranted) {
		t.Fatalf("expected ErrFollowBonusGranted, got %v", err)
	}
	if got := f.balance(t, "u1"); got != 5 {
		t.Fatalf("balance = %d, want 5", got)
	}
}

func TestFollowBonusDisabledWithoutCode(t *testing.T) {
	billing := NewBillingService(discardLogger(), newFixture(t).store.Ledger(), 5, "")
	if _, err := billing.GrantFollowBonus(context.Background(), "u1", ""); !errors.Is(err, ErrFollowCodeInvalid) {
		t.Fatalf("expected ErrFollowCodeInvalid, got %v", err)
	}
}

func TestAdminGrant(t *testing.T) {
	f := newFixture(t)
	balance, err := f.billing.AdminGrant(context.Background(), "u1", 7)
	if err != nil || balance != 7 {
		t.Fatalf("AdminGrant = %d, %v", balance, err)
	}
	if _, err := f.billing.AdminGrant(context.Background(), "u1", 0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
