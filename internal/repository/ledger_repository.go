package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/digkill/LandingForge/internal/database"
	"github.com/digkill/LandingForge/internal/models"
)

type LedgerRepository struct {
	db            *sql.DB
	dialect       database.Dialect
	signupCredits int
}

func NewLedgerRepository(db *sql.DB, dialect database.Dialect, signupCredits int) *LedgerRepository {
	return &LedgerRepository{db: db, dialect: dialect, signupCredits: signupCredits}
}

// ensureRow creates the user's row with the signup grant if it does not exist yet.
func (r *LedgerRepository) ensureRow(ctx context.Context, q querier, userID string) error {
	query := r.dialect.InsertIgnore("user_stats", "user_id, remaining_credits", "user_id", 2)
	if _, err := q.ExecContext(ctx, query, userID, r.signupCredits); err != nil {
		return fmt.Errorf("ensure user_stats row: %w", err)
	}
	return nil
}

func (r *LedgerRepository) GetOrCreate(ctx context.Context, userID string) (*models.UserStats, error) {
	if err := r.ensureRow(ctx, r.db, userID); err != nil {
		return nil, err
	}
	query := r.dialect.Rebind(`
SELECT user_id, remaining_credits, generation_count, save_count, follow_bonus_granted, created_at, updated_at
FROM user_stats WHERE user_id = ?`)
	var s models.UserStats
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&s.UserID, &s.RemainingCredits, &s.GenerationCount, &s.SaveCount, &s.FollowBonusGranted, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user_stats row for %s vanished", userID)
		}
		return nil, fmt.Errorf("scan user_stats: %w", err)
	}
	return &s, nil
}

func (r *LedgerRepository) AddCredits(ctx context.Context, userID string, amount int) (int, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	balance, err := r.addCreditsTx(ctx, tx, userID, amount)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit credits tx: %w", err)
	}
	return balance, nil
}

func (r *LedgerRepository) addCreditsTx(ctx context.Context, tx *sql.Tx, userID string, amount int) (int, error) {
	if err := r.ensureRow(ctx, tx, userID); err != nil {
		return 0, err
	}
	update := r.dialect.Rebind(`UPDATE user_stats SET remaining_credits = remaining_credits + ?, updated_at = NOW() WHERE user_id = ?`)
	if _, err := tx.ExecContext(ctx, update, amount, userID); err != nil {
		return 0, fmt.Errorf("add credits: %w", err)
	}
	var balance int
	if err := tx.QueryRowContext(ctx, r.dialect.Rebind(`SELECT remaining_credits FROM user_stats WHERE user_id = ?`), userID).Scan(&balance); err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return balance, nil
}

func (r *LedgerRepository) DeductOne(ctx context.Context, userID string) (bool, error) {
	if err := r.ensureRow(ctx, r.db, userID); err != nil {
		return false, err
	}
	query := r.dialect.Rebind(`
UPDATE user_stats SET remaining_credits = remaining_credits - 1, updated_at = NOW()
WHERE user_id = ? AND remaining_credits > 0`)
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return false, fmt.Errorf("deduct credit: %w", err)
	}
	return affected(res, "deduct credit")
}

func (r *LedgerRepository) IncrementGenerationCount(ctx context.Context, userID string) error {
	return r.increment(ctx, userID, "generation_count")
}

func (r *LedgerRepository) IncrementSaveCount(ctx context.Context, userID string) error {
	return r.increment(ctx, userID, "save_count")
}

func (r *LedgerRepository) increment(ctx context.Context, userID, column string) error {
	if err := r.ensureRow(ctx, r.db, userID); err != nil {
		return err
	}
	query := r.dialect.Rebind(fmt.Sprintf(`UPDATE user_stats SET %s = %s + 1, updated_at = NOW() WHERE user_id = ?`, column, column))
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("increment %s: %w", column, err)
	}
	return nil
}

func (r *LedgerRepository) GrantFollowBonus(ctx context.Context, userID string, credits int) (bool, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := r.ensureRow(ctx, tx, userID); err != nil {
		return false, err
	}
	query := r.dialect.Rebind(`
UPDATE user_stats SET follow_bonus_granted = TRUE, remaining_credits = remaining_credits + ?, updated_at = NOW()
WHERE user_id = ? AND follow_bonus_granted = FALSE`)
	res, err := tx.ExecContext(ctx, query, credits, userID)
	if err != nil {
		return false, fmt.Errorf("grant follow bonus: %w", err)
	}
	granted, err := affected(res, "grant follow bonus")
	if err != nil || !granted {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit follow bonus tx: %w", err)
	}
	return true, nil
}
