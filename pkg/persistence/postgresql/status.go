package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tracklane/tracklane/pkg/models"
	"github.com/tracklane/tracklane/pkg/persistence"
)

// StatusRepository handles the global status catalog.
type StatusRepository struct {
	db *sql.DB
}

func (r *StatusRepository) List(ctx context.Context) ([]*models.Status, error) {
	query := `SELECT id, name, category, color, created_at, updated_at FROM statuses ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query statuses: %w", err)
	}

	defer func() { _ = rows.Close() }()

	statuses := make([]*models.Status, 0)

	for rows.Next() {
		var status models.Status

		err := rows.Scan(&status.ID, &status.Name, &status.Category, &status.Color, &status.CreatedAt, &status.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan status: %w", err)
		}

		statuses = append(statuses, &status)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating statuses: %w", err)
	}

	return statuses, nil
}

func (r *StatusRepository) GetByID(ctx context.Context, id string) (*models.Status, error) {
	return r.getBy(ctx, "id = $1", id)
}

func (r *StatusRepository) GetByName(ctx context.Context, name string) (*models.Status, error) {
	return r.getBy(ctx, "name = $1", name)
}

func (r *StatusRepository) getBy(ctx context.Context, where, arg string) (*models.Status, error) {
	query := `SELECT id, name, category, color, created_at, updated_at FROM statuses WHERE ` + where

	var status models.Status

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&status.ID, &status.Name, &status.Category, &status.Color, &status.CreatedAt, &status.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", persistence.ErrStatusNotFound, arg)
		}

		return nil, fmt.Errorf("failed to scan status: %w", err)
	}

	return &status, nil
}

func (r *StatusRepository) Save(ctx context.Context, status *models.Status) error {
	now := time.Now().UTC()

	if status.CreatedAt.IsZero() {
		status.CreatedAt = now
	}

	status.UpdatedAt = now

	if status.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate status ID: %w", err)
		}

		status.ID = id.String()
	}

	query := `
		INSERT INTO statuses (id, name, category, color, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			color = EXCLUDED.color,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		status.ID, status.Name, status.Category, status.Color, status.CreatedAt, status.UpdatedAt,
	)
	if err != nil {
		return translateConstraint(fmt.Errorf("failed to save status: %w", err))
	}

	return nil
}

// Delete removes a status. Statuses placed by any workflow step are
// protected by the foreign key and surface as a constraint violation.
func (r *StatusRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM statuses WHERE id = $1", id)
	if err != nil {
		return translateConstraint(fmt.Errorf("failed to delete status: %w", err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", persistence.ErrStatusNotFound, id)
	}

	return nil
}
