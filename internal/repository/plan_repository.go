package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/digkill/LandingForge/internal/database"
	"github.com/digkill/LandingForge/internal/models"
)

type PlanRepository struct {
	db      *sql.DB
	dialect database.Dialect
}

func NewPlanRepository(db *sql.DB, dialect database.Dialect) *PlanRepository {
	return &PlanRepository{db: db, dialect: dialect}
}

const planColumns = `id, title, COALESCE(description, ''), credits, currency, price_minor_units,
wallet_currency, wallet_price_minor_units, is_active, created_at, updated_at`

func scanPlan(row rowScanner) (*models.Plan, error) {
	var p models.Plan
	if err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Credits, &p.Currency, &p.PriceMinorUnits,
		&p.WalletCurrency, &p.WalletPriceMinorUnits, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PlanRepository) List(ctx context.Context) ([]models.Plan, error) {
	return r.list(ctx, `SELECT `+planColumns+` FROM pricing_plans ORDER BY id ASC`)
}

func (r *PlanRepository) ListActive(ctx context.Context) ([]models.Plan, error) {
	return r.list(ctx, `SELECT `+planColumns+` FROM pricing_plans WHERE is_active = TRUE ORDER BY price_minor_units ASC, id ASC`)
}

func (r *PlanRepository) list(ctx context.Context, query string) ([]models.Plan, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var plans []models.Plan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, *plan)
	}
	return plans, rows.Err()
}

func (r *PlanRepository) GetDefault(ctx context.Context) (*models.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM pricing_plans WHERE is_active = TRUE ORDER BY id ASC LIMIT 1`
	plan, err := scanPlan(r.db.QueryRowContext(ctx, query))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get default plan: %w", err)
	}
	return plan, nil
}

func (r *PlanRepository) GetByID(ctx context.Context, id int64) (*models.Plan, error) {
	query := r.dialect.Rebind(`SELECT ` + planColumns + ` FROM pricing_plans WHERE id = ?`)
	plan, err := scanPlan(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return plan, nil
}

func (r *PlanRepository) Create(ctx context.Context, plan *models.Plan) (*models.Plan, error) {
	const query = `
INSERT INTO pricing_plans (title, description, credits, currency, price_minor_units, wallet_currency, wallet_price_minor_units, is_active)
VALUES (?, NULLIF(?, ''), ?, ?, ?, ?, ?, ?)`
	id, err := insertID(ctx, r.db, r.dialect, query, plan.Title, plan.Description, plan.Credits, plan.Currency,
		plan.PriceMinorUnits, plan.WalletCurrency, plan.WalletPriceMinorUnits, plan.IsActive)
	if err != nil {
		return nil, fmt.Errorf("create plan: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *PlanRepository) Update(ctx context.Context, plan *models.Plan) (*models.Plan, error) {
	query := r.dialect.Rebind(`
UPDATE pricing_plans
SET title = ?, description = NULLIF(?, ''), credits = ?, currency = ?, price_minor_units = ?,
    wallet_currency = ?, wallet_price_minor_units = ?, is_active = ?, updated_at = NOW()
WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, query, plan.Title, plan.Description, plan.Credits, plan.Currency, plan.PriceMinorUnits,
		plan.WalletCurrency, plan.WalletPriceMinorUnits, plan.IsActive, plan.ID); err != nil {
		return nil, fmt.Errorf("update plan: %w", err)
	}
	return r.GetByID(ctx, plan.ID)
}

func (r *PlanRepository) Delete(ctx context.Context, id int64) error {
	query := r.dialect.Rebind(`DELETE FROM pricing_plans WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	return nil
}
