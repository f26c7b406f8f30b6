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

// ProjectRepository handles project rows.
type ProjectRepository struct {
	db *sql.DB
}

func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	query := `SELECT id, key, name, lead_id, created_at, updated_at FROM projects WHERE id = $1`

	var project models.Project

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&project.ID, &project.Key, &project.Name, &project.LeadID, &project.CreatedAt, &project.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", persistence.ErrProjectNotFound, id)
		}

		return nil, fmt.Errorf("failed to scan project: %w", err)
	}

	return &project, nil
}

func (r *ProjectRepository) Save(ctx context.Context, project *models.Project) error {
	now := time.Now().UTC()

	if project.CreatedAt.IsZero() {
		project.CreatedAt = now
	}

	project.UpdatedAt = now

	if project.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate project ID: %w", err)
		}

		project.ID = id.String()
	}

	query := `
		INSERT INTO projects (id, key, name, lead_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			key = EXCLUDED.key,
			name = EXCLUDED.name,
			lead_id = EXCLUDED.lead_id,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		project.ID, project.Key, project.Name, project.LeadID, project.CreatedAt, project.UpdatedAt,
	)
	if err != nil {
		return translateConstraint(fmt.Errorf("failed to save project: %w", err))
	}

	return nil
}
