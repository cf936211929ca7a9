package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bobarin/director/internal/models"
	"github.com/bobarin/director/internal/production"
	"github.com/google/uuid"
)

// The whole production is stored as one JSONB document; title and status are
// denormalized for listings.

func (db *DB) Create(ctx context.Context, p *models.Production) error {
	query := `
		INSERT INTO productions (id, title, status, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	p.UpdatedAt = p.CreatedAt

	_, err := db.ExecContext(ctx, query, p.ID, p.State.Title, p.State.Status(), p, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert production: %w", err)
	}
	return nil
}

func (db *DB) Get(ctx context.Context, id uuid.UUID) (*models.Production, error) {
	p := &models.Production{}
	err := db.QueryRowContext(ctx, `SELECT document FROM productions WHERE id = $1`, id).Scan(p)
	if err == sql.ErrNoRows {
		return nil, production.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get production: %w", err)
	}
	return p, nil
}

// Update locks the row, applies fn and writes the new document in one transaction.
func (db *DB) Update(ctx context.Context, id uuid.UUID, fn func(*models.Production) (*models.Production, error)) (*models.Production, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	current := &models.Production{}
	err = tx.QueryRowContext(ctx, `SELECT document FROM productions WHERE id = $1 FOR UPDATE`, id).Scan(current)
	if err == sql.ErrNoRows {
		return nil, production.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock production: %w", err)
	}

	next, err := fn(current)
	if err != nil {
		return nil, err
	}
	next.ID = id
	next.CreatedAt = current.CreatedAt
	next.UpdatedAt = time.Now()

	query := `
		UPDATE productions
		SET title = $1, status = $2, document = $3, updated_at = $4
		WHERE id = $5
	`
	if _, err := tx.ExecContext(ctx, query, next.State.Title, next.State.Status(), next, next.UpdatedAt, id); err != nil {
		return nil, fmt.Errorf("failed to update production: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit production update: %w", err)
	}
	return next, nil
}

// List returns productions ordered by creation date (newest first).
// A non-positive limit returns all rows.
func (db *DB) List(ctx context.Context, limit, offset int) ([]*models.Production, int, error) {
	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM productions`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count productions: %w", err)
	}

	var limitArg sql.NullInt64
	if limit > 0 {
		limitArg = sql.NullInt64{Int64: int64(limit), Valid: true}
	}

	rows, err := db.QueryContext(ctx, `
		SELECT document FROM productions
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limitArg, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query productions: %w", err)
	}
	defer rows.Close()

	out := []*models.Production{}
	for rows.Next() {
		p := &models.Production{}
		if err := rows.Scan(p); err != nil {
			return nil, 0, fmt.Errorf("failed to scan production: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read productions: %w", err)
	}

	return out, total, nil
}

var _ production.Store = (*DB)(nil)
