package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/digkill/LandingForge/internal/database"
	"github.com/digkill/LandingForge/internal/models"
)

type GenerationRepository struct {
	db      *sql.DB
	dialect database.Dialect
}

func NewGenerationRepository(db *sql.DB, dialect database.Dialect) *GenerationRepository {
	return &GenerationRepository{db: db, dialect: dialect}
}

func (r *GenerationRepository) Record(ctx context.Context, entry *models.GenerationLog) error {
	query := r.dialect.Rebind(`
INSERT INTO generation_logs (user_id, model, idea, fallback)
VALUES (?, ?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, query, entry.UserID, entry.Model, entry.Idea, entry.Fallback); err != nil {
		return fmt.Errorf("insert generation log: %w", err)
	}
	return nil
}
