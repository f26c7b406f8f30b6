package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tracklane/tracklane/pkg/models"
	"github.com/tracklane/tracklane/pkg/persistence"
)

// SchemeRepository handles workflow schemes, their mappings and the
// project assignments.
type SchemeRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const schemeColumns = `id, name, description, is_default, created_at, updated_at`

func (r *SchemeRepository) List(ctx context.Context) ([]*models.WorkflowScheme, error) {
	query := `SELECT ` + schemeColumns + ` FROM schemes ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query schemes: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	schemes := make([]*models.WorkflowScheme, 0)

	for rows.Next() {
		scheme, err := r.scanScheme(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scheme: %w", err)
		}

		schemes = append(schemes, scheme)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schemes: %w", err)
	}

	for _, scheme := range schemes {
		if err := r.loadMappings(ctx, scheme); err != nil {
			return nil, err
		}
	}

	return schemes, nil
}

func (r *SchemeRepository) GetByID(ctx context.Context, id string) (*models.WorkflowScheme, error) {
	return r.getWhere(ctx, "id = $1", id)
}

// GetDefault returns the scheme flagged as the fallback for projects
// without an assignment.
func (r *SchemeRepository) GetDefault(ctx context.Context) (*models.WorkflowScheme, error) {
	return r.getWhere(ctx, "is_default = TRUE")
}

func (r *SchemeRepository) getWhere(ctx context.Context, where string, args ...any) (*models.WorkflowScheme, error) {
	query := `SELECT ` + schemeColumns + ` FROM schemes WHERE ` + where

	row := r.db.QueryRowContext(ctx, query, args...)

	scheme, err := r.scanScheme(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrSchemeNotFound
		}

		return nil, fmt.Errorf("failed to scan scheme: %w", err)
	}

	if err := r.loadMappings(ctx, scheme); err != nil {
		return nil, err
	}

	return scheme, nil
}

// Save saves a scheme and replaces its mappings in one transaction.
func (r *SchemeRepository) Save(ctx context.Context, scheme *models.WorkflowScheme) error {
	now := time.Now().UTC()

	if scheme.CreatedAt.IsZero() {
		scheme.CreatedAt = now
	}

	scheme.UpdatedAt = now

	if scheme.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate scheme ID: %w", err)
		}

		scheme.ID = id.String()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	schemeQuery := `
		INSERT INTO schemes (id, name, description, is_default, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			is_default = EXCLUDED.is_default,
			updated_at = EXCLUDED.updated_at
	`

	_, err = tx.ExecContext(ctx, schemeQuery,
		scheme.ID, scheme.Name, scheme.Description, scheme.IsDefault, scheme.CreatedAt, scheme.UpdatedAt,
	)
	if err != nil {
		return translateConstraint(fmt.Errorf("failed to save scheme: %w", err))
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM scheme_mappings WHERE scheme_id = $1", scheme.ID)
	if err != nil {
		return fmt.Errorf("failed to delete existing mappings: %w", err)
	}

	mappingQuery := `INSERT INTO scheme_mappings (scheme_id, issue_type_id, workflow_id) VALUES ($1, $2, $3)`

	for _, mapping := range scheme.Mappings {
		_, err = tx.ExecContext(ctx, mappingQuery, scheme.ID, mapping.IssueTypeID, mapping.WorkflowID)
		if err != nil {
			return translateConstraint(fmt.Errorf("failed to save scheme mapping: %w", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *SchemeRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM schemes WHERE id = $1", id)
	if err != nil {
		return translateConstraint(fmt.Errorf("failed to delete scheme: %w", err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.ErrSchemeNotFound
	}

	return nil
}

// AssignProject binds a project to a scheme, replacing any previous binding.
func (r *SchemeRepository) AssignProject(ctx context.Context, projectID, schemeID string) error {
	query := `
		INSERT INTO project_scheme_assignments (project_id, scheme_id, assigned_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (project_id) DO UPDATE SET
			scheme_id = EXCLUDED.scheme_id,
			assigned_at = EXCLUDED.assigned_at
	`

	_, err := r.db.ExecContext(ctx, query, projectID, schemeID, time.Now().UTC())
	if err != nil {
		return translateConstraint(fmt.Errorf("failed to assign project to scheme: %w", err))
	}

	return nil
}

func (r *SchemeRepository) ProjectAssignment(ctx context.Context, projectID string) (*models.ProjectSchemeAssignment, error) {
	query := `SELECT project_id, scheme_id, assigned_at FROM project_scheme_assignments WHERE project_id = $1`

	var assignment models.ProjectSchemeAssignment

	err := r.db.QueryRowContext(ctx, query, projectID).Scan(
		&assignment.ProjectID, &assignment.SchemeID, &assignment.AssignedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: project %s", persistence.ErrSchemeAssignmentNotFound, projectID)
		}

		return nil, fmt.Errorf("failed to scan scheme assignment: %w", err)
	}

	return &assignment, nil
}

func (r *SchemeRepository) loadMappings(ctx context.Context, scheme *models.WorkflowScheme) error {
	query := `SELECT issue_type_id, workflow_id FROM scheme_mappings WHERE scheme_id = $1 ORDER BY issue_type_id NULLS LAST`

	rows, err := r.db.QueryContext(ctx, query, scheme.ID)
	if err != nil {
		return fmt.Errorf("failed to query scheme mappings: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	mappings := make([]*models.SchemeMapping, 0)

	for rows.Next() {
		mapping := models.SchemeMapping{SchemeID: scheme.ID}

		err := rows.Scan(&mapping.IssueTypeID, &mapping.WorkflowID)
		if err != nil {
			return fmt.Errorf("failed to scan scheme mapping: %w", err)
		}

		mappings = append(mappings, &mapping)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating scheme mappings: %w", err)
	}

	scheme.Mappings = mappings

	return nil
}

func (r *SchemeRepository) scanScheme(scanner interface {
	Scan(dest ...any) error
}) (*models.WorkflowScheme, error) {
	var scheme models.WorkflowScheme

	err := scanner.Scan(
		&scheme.ID,
		&scheme.Name,
		&scheme.Description,
		&scheme.IsDefault,
		&scheme.CreatedAt,
		&scheme.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &scheme, nil
}
