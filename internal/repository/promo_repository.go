package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/digkill/LandingForge/internal/database"
	"github.com/digkill/LandingForge/internal/models"
)

type PromoRepository struct {
	db      *sql.DB
	dialect database.Dialect
	ledger  *LedgerRepository
}

func NewPromoRepository(db *sql.DB, dialect database.Dialect, ledger *LedgerRepository) *PromoRepository {
	return &PromoRepository{db: db, dialect: dialect, ledger: ledger}
}

func (r *PromoRepository) get(ctx context.Context, where string, arg any) (*models.PromoCode, error) {
	query := r.dialect.Rebind(`SELECT id, code, max_uses, uses, created_at FROM promo_codes WHERE ` + where + ` = ?`)
	var promo models.PromoCode
	if err := r.db.QueryRowContext(ctx, query, arg).Scan(&promo.ID, &promo.Code, &promo.MaxUses, &promo.Uses, &promo.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan promo: %w", err)
	}
	return &promo, nil
}

func (r *PromoRepository) GetByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	return r.get(ctx, "code", code)
}

func (r *PromoRepository) GetByID(ctx context.Context, id int64) (*models.PromoCode, error) {
	return r.get(ctx, "id", id)
}

func (r *PromoRepository) List(ctx context.Context) ([]models.PromoCode, error) {
	const query = `SELECT id, code, max_uses, uses, created_at FROM promo_codes ORDER BY id DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list promos: %w", err)
	}
	defer rows.Close()

	var promos []models.PromoCode
	for rows.Next() {
		var promo models.PromoCode
		if err := rows.Scan(&promo.ID, &promo.Code, &promo.MaxUses, &promo.Uses, &promo.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan promo list: %w", err)
		}
		promos = append(promos, promo)
	}
	return promos, rows.Err()
}

func (r *PromoRepository) Create(ctx context.Context, promo *models.PromoCode) (*models.PromoCode, error) {
	const query = `INSERT INTO promo_codes (code, max_uses, uses) VALUES (?, ?, 0)`
	id, err := insertID(ctx, r.db, r.dialect, query, promo.Code, promo.MaxUses)
	if err != nil {
		return nil, fmt.Errorf("create promo: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *PromoRepository) Update(ctx context.Context, promo *models.PromoCode) (*models.PromoCode, error) {
	query := r.dialect.Rebind(`UPDATE promo_codes SET code = ?, max_uses = ?, uses = ? WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, query, promo.Code, promo.MaxUses, promo.Uses, promo.ID); err != nil {
		return nil, fmt.Errorf("update promo: %w", err)
	}
	return r.GetByID(ctx, promo.ID)
}

func (r *PromoRepository) Delete(ctx context.Context, id int64) error {
	query := r.dialect.Rebind(`DELETE FROM promo_codes WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete promo: %w", err)
	}
	return nil
}

// Redeem locks the code row, records the redemption and credits the user in one transaction.
func (r *PromoRepository) Redeem(ctx context.Context, userID string, promoID int64, credits int) (int, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var uses, maxUses int
	lock := r.dialect.Rebind(`SELECT uses, max_uses FROM promo_codes WHERE id = ? FOR UPDATE`)
	if err := tx.QueryRowContext(ctx, lock, promoID).Scan(&uses, &maxUses); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrPromoExhausted
		}
		return 0, fmt.Errorf("lock promo: %w", err)
	}
	if uses >= maxUses {
		return 0, ErrPromoExhausted
	}

	insert := r.dialect.InsertIgnore("promo_redemptions", "user_id, promo_code_id", "user_id, promo_code_id", 2)
	res, err := tx.ExecContext(ctx, insert, userID, promoID)
	if err != nil {
		return 0, fmt.Errorf("insert redemption: %w", err)
	}
	recorded, err := affected(res, "insert redemption")
	if err != nil {
		return 0, err
	}
	if !recorded {
		return 0, ErrPromoAlreadyRedeemed
	}

	if _, err := tx.ExecContext(ctx, r.dialect.Rebind(`UPDATE promo_codes SET uses = uses + 1 WHERE id = ?`), promoID); err != nil {
		return 0, fmt.Errorf("increment promo uses: %w", err)
	}
	balance, err := r.ledger.addCreditsTx(ctx, tx, userID, credits)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit promo tx: %w", err)
	}
	return balance, nil
}
