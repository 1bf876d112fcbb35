package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/digkill/LandingForge/internal/database"
	"github.com/digkill/LandingForge/internal/models"
)

type PageRepository struct {
	db      *sql.DB
	dialect database.Dialect
}

func NewPageRepository(db *sql.DB, dialect database.Dialect) *PageRepository {
	return &PageRepository{db: db, dialect: dialect}
}

const pageColumns = `id, user_id, slug, idea, content, COALESCE(snapshot_url, ''), created_at`

func scanPage(row rowScanner) (*models.LandingPage, error) {
	var (
		p       models.LandingPage
		content string
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.Slug, &p.Idea, &content, &p.SnapshotURL, &p.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(content), &p.Content); err != nil {
		return nil, fmt.Errorf("decode page content %s: %w", p.Slug, err)
	}
	return &p, nil
}

func (r *PageRepository) Create(ctx context.Context, page *models.LandingPage) error {
	content, err := json.Marshal(page.Content)
	if err != nil {
		return fmt.Errorf("encode page content: %w", err)
	}
	query := r.dialect.Rebind(`
INSERT INTO landing_pages (id, user_id, slug, idea, content, snapshot_url, created_at)
VALUES (?, ?, ?, ?, ?, NULLIF(?, ''), ?)`)
	if _, err := r.db.ExecContext(ctx, query, page.ID, page.UserID, page.Slug, page.Idea, string(content), page.SnapshotURL, page.CreatedAt); err != nil {
		return fmt.Errorf("insert page: %w", err)
	}
	return nil
}

func (r *PageRepository) GetBySlug(ctx context.Context, slug string) (*models.LandingPage, error) {
	query := r.dialect.Rebind(`SELECT ` + pageColumns + ` FROM landing_pages WHERE slug = ?`)
	page, err := scanPage(r.db.QueryRowContext(ctx, query, slug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan page: %w", err)
	}
	return page, nil
}

func (r *PageRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.LandingPage, error) {
	query := r.dialect.Rebind(`SELECT ` + pageColumns + ` FROM landing_pages WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`)
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	var pages []models.LandingPage
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan page list: %w", err)
		}
		pages = append(pages, *page)
	}
	return pages, rows.Err()
}
