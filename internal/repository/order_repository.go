package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/digkill/LandingForge/internal/database"
	"github.com/digkill/LandingForge/internal/models"
)

type OrderRepository struct {
	db      *sql.DB
	dialect database.Dialect
	ledger  *LedgerRepository
}

func NewOrderRepository(db *sql.DB, dialect database.Dialect, ledger *LedgerRepository) *OrderRepository {
	return &OrderRepository{db: db, dialect: dialect, ledger: ledger}
}

const orderColumns = `id, order_no, user_id, plan_id, provider, credits, amount, currency, status,
COALESCE(provider_order_no, ''), COALESCE(checkout_ref, ''), paid_at, credits_applied_at,
COALESCE(provider_response, ''), created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var (
		o              models.Order
		paidAt         sql.NullTime
		creditsApplied sql.NullTime
	)
	if err := row.Scan(&o.ID, &o.OrderNo, &o.UserID, &o.PlanID, &o.Provider, &o.Credits, &o.Amount, &o.Currency, &o.Status,
		&o.ProviderOrderNo, &o.CheckoutRef, &paidAt, &creditsApplied, &o.ProviderResponse, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	if paidAt.Valid {
		o.PaidAt = &paidAt.Time
	}
	if creditsApplied.Valid {
		o.CreditsAppliedAt = &creditsApplied.Time
	}
	return &o, nil
}

func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	query := r.dialect.Rebind(`
INSERT INTO orders (id, order_no, user_id, plan_id, provider, credits, amount, currency, status)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, query, order.ID, order.OrderNo, order.UserID, order.PlanID, order.Provider,
		order.Credits, order.Amount, order.Currency, order.Status); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *OrderRepository) GetByOrderNo(ctx context.Context, orderNo string) (*models.Order, error) {
	query := r.dialect.Rebind(`SELECT ` + orderColumns + ` FROM orders WHERE order_no = ?`)
	order, err := scanOrder(r.db.QueryRowContext(ctx, query, orderNo))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return order, nil
}

func (r *OrderRepository) SetCheckoutRef(ctx context.Context, orderID, ref string) error {
	query := r.dialect.Rebind(`UPDATE orders SET checkout_ref = ?, updated_at = NOW() WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, query, ref, orderID); err != nil {
		return fmt.Errorf("set checkout ref: %w", err)
	}
	return nil
}

func (r *OrderRepository) MarkPaid(ctx context.Context, orderID, providerOrderNo, providerResponse string) (bool, error) {
	query := r.dialect.Rebind(`
UPDATE orders
SET status = 'paid', provider_order_no = NULLIF(?, ''), provider_response = ?, paid_at = NOW(), updated_at = NOW()
WHERE id = ? AND status = 'pending'`)
	res, err := r.db.ExecContext(ctx, query, providerOrderNo, providerResponse, orderID)
	if err != nil {
		return false, fmt.Errorf("mark order paid: %w", err)
	}
	return affected(res, "mark order paid")
}

func (r *OrderRepository) MarkFailed(ctx context.Context, orderID, providerResponse string) (bool, error) {
	query := r.dialect.Rebind(`
UPDATE orders SET status = 'failed', provider_response = ?, updated_at = NOW()
WHERE id = ? AND status = 'pending'`)
	res, err := r.db.ExecContext(ctx, query, providerResponse, orderID)
	if err != nil {
		return false, fmt.Errorf("mark order failed: %w", err)
	}
	return affected(res, "mark order failed")
}

// ApplyCredits stamps the order and credits its owner in one transaction. The amount and
// recipient are read back from the stored row, never from the caller's copy.
func (r *OrderRepository) ApplyCredits(ctx context.Context, order *models.Order) (bool, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stamp := r.dialect.Rebind(`
UPDATE orders SET credits_applied_at = NOW(), updated_at = NOW()
WHERE id = ? AND status = 'paid' AND credits_applied_at IS NULL`)
	res, err := tx.ExecContext(ctx, stamp, order.ID)
	if err != nil {
		return false, fmt.Errorf("stamp credits applied: %w", err)
	}
	stamped, err := affected(res, "stamp credits applied")
	if err != nil || !stamped {
		return false, err
	}

	var (
		userID  string
		credits int
	)
	if err := tx.QueryRowContext(ctx, r.dialect.Rebind(`SELECT user_id, credits FROM orders WHERE id = ?`), order.ID).Scan(&userID, &credits); err != nil {
		return false, fmt.Errorf("read order snapshot: %w", err)
	}
	if _, err := r.ledger.addCreditsTx(ctx, tx, userID, credits); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit apply credits tx: %w", err)
	}
	return true, nil
}

func (r *OrderRepository) ListUncredited(ctx context.Context, paidBefore time.Time, limit int) ([]models.Order, error) {
	query := r.dialect.Rebind(`SELECT ` + orderColumns + ` FROM orders
WHERE status = 'paid' AND credits_applied_at IS NULL AND paid_at <= ?
ORDER BY paid_at ASC LIMIT ?`)
	return r.list(ctx, "list uncredited orders", query, paidBefore.UTC(), limit)
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.Order, error) {
	query := r.dialect.Rebind(`SELECT ` + orderColumns + ` FROM orders WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`)
	return r.list(ctx, "list user orders", query, userID, limit)
}

func (r *OrderRepository) list(ctx context.Context, op, query string, args ...any) ([]models.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order list: %w", err)
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}
