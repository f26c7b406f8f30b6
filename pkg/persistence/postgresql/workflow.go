package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tracklane/tracklane/pkg/models"
	"github.com/tracklane/tracklane/pkg/persistence"
)

// WorkflowRepository handles workflow-related database operations. A
// workflow is stored as three tables: the workflow row, its steps and its
// transitions; Save replaces the whole graph.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const workflowColumns = `
	id
  , name
  , description
  , is_default
  , is_active
  , is_draft
  , draft_of
  , created_at
  , updated_at
  , published_at
`

// List returns all workflows, drafts included, newest first.
func (r *WorkflowRepository) List(ctx context.Context) ([]*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := r.scanWorkflowBase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		err = r.loadGraph(ctx, workflow)
		if err != nil {
			return nil, fmt.Errorf("failed to load workflow graph: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, id)

	workflow, err := r.scanWorkflowBase(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	if err := r.loadGraph(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to load workflow graph: %w", err)
	}

	return workflow, nil
}

// GetDraftOf returns the open draft of a live workflow, if any.
func (r *WorkflowRepository) GetDraftOf(ctx context.Context, liveID string) (*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE draft_of = $1`

	row := r.db.QueryRowContext(ctx, query, liveID)

	workflow, err := r.scanWorkflowBase(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetDraftOf", liveID, persistence.ErrDraftWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to scan draft workflow: %w", err)
	}

	if err := r.loadGraph(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to load workflow graph: %w", err)
	}

	return workflow, nil
}

// Save saves a workflow and its whole graph in one transaction.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
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

	err = r.saveInTx(ctx, tx, workflow)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Delete removes a workflow; steps, transitions and any open draft cascade.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM workflows WHERE id = $1", id)
	if err != nil {
		return translateConstraint(fmt.Errorf("failed to delete workflow: %w", err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

// PublishDraft writes the updated live workflow and deletes the draft row
// in one transaction, so readers never observe a half-published state.
func (r *WorkflowRepository) PublishDraft(ctx context.Context, live *models.Workflow, draftID string) error {
	live.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// The draft has to go first: its steps reference the same statuses and
	// its row points at the live workflow.
	_, err = tx.ExecContext(ctx, "DELETE FROM workflows WHERE id = $1 AND is_draft = TRUE", draftID)
	if err != nil {
		return translateConstraint(fmt.Errorf("failed to delete draft workflow: %w", err))
	}

	err = r.saveInTx(ctx, tx, live)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit publish transaction: %w", err)
	}

	return nil
}

func (r *WorkflowRepository) saveInTx(ctx context.Context, tx *sql.Tx, workflow *models.Workflow) error {
	workflowQuery := `
		INSERT INTO workflows (id, name, description, is_default, is_active, is_draft, draft_of, created_at, updated_at, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			is_default = EXCLUDED.is_default,
			is_active = EXCLUDED.is_active,
			is_draft = EXCLUDED.is_draft,
			draft_of = EXCLUDED.draft_of,
			updated_at = EXCLUDED.updated_at,
			published_at = EXCLUDED.published_at
	`

	_, err := tx.ExecContext(ctx, workflowQuery,
		workflow.ID,
		workflow.Name,
		workflow.Description,
		workflow.IsDefault,
		workflow.IsActive,
		workflow.IsDraft,
		workflow.DraftOf,
		workflow.CreatedAt,
		workflow.UpdatedAt,
		workflow.PublishedAt,
	)
	if err != nil {
		return translateConstraint(fmt.Errorf("failed to save workflow base: %w", err))
	}

	// Replace the graph: delete existing transitions and steps, re-insert.
	_, err = tx.ExecContext(ctx, "DELETE FROM workflow_transitions WHERE workflow_id = $1", workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to delete existing transitions: %w", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM workflow_steps WHERE workflow_id = $1", workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to delete existing steps: %w", err)
	}

	if err := r.saveSteps(ctx, tx, workflow); err != nil {
		return err
	}

	if err := r.saveTransitions(ctx, tx, workflow); err != nil {
		return err
	}

	return nil
}

func (r *WorkflowRepository) saveSteps(ctx context.Context, tx *sql.Tx, workflow *models.Workflow) error {
	query := `
		INSERT INTO workflow_steps (id, workflow_id, status_id, is_initial, position_x, position_y)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	for _, step := range workflow.Steps {
		_, err := tx.ExecContext(ctx, query,
			step.ID,
			workflow.ID,
			step.StatusID,
			step.IsInitial,
			step.PositionX,
			step.PositionY,
		)
		if err != nil {
			return translateConstraint(fmt.Errorf("failed to save step: %w", err))
		}
	}

	return nil
}

func (r *WorkflowRepository) saveTransitions(ctx context.Context, tx *sql.Tx, workflow *models.Workflow) error {
	query := `
		INSERT INTO workflow_transitions (id, workflow_id, from_step_id, to_step_id, name, description, conditions, validators, post_functions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	for _, transition := range workflow.Transitions {
		conditionsJSON, err := json.Marshal(transition.Conditions)
		if err != nil {
			return fmt.Errorf("failed to marshal conditions: %w", err)
		}

		validatorsJSON, err := json.Marshal(transition.Validators)
		if err != nil {
			return fmt.Errorf("failed to marshal validators: %w", err)
		}

		postFunctionsJSON, err := json.Marshal(transition.PostFunctions)
		if err != nil {
			return fmt.Errorf("failed to marshal post functions: %w", err)
		}

		_, err = tx.ExecContext(ctx, query,
			transition.ID,
			workflow.ID,
			transition.FromStepID,
			transition.ToStepID,
			transition.Name,
			transition.Description,
			conditionsJSON,
			validatorsJSON,
			postFunctionsJSON,
		)
		if err != nil {
			return translateConstraint(fmt.Errorf("failed to save transition: %w", err))
		}
	}

	return nil
}

func (r *WorkflowRepository) loadGraph(ctx context.Context, workflow *models.Workflow) error {
	stepsQuery := `
		SELECT id, status_id, is_initial, position_x, position_y
		FROM workflow_steps
		WHERE workflow_id = $1
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, stepsQuery, workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to query workflow steps: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	steps := make([]*models.Step, 0)

	for rows.Next() {
		step := models.Step{WorkflowID: workflow.ID}

		err := rows.Scan(
			&step.ID,
			&step.StatusID,
			&step.IsInitial,
			&step.PositionX,
			&step.PositionY,
		)
		if err != nil {
			return fmt.Errorf("failed to scan step: %w", err)
		}

		steps = append(steps, &step)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating steps: %w", err)
	}

	workflow.Steps = steps

	transitionsQuery := `
		SELECT id, from_step_id, to_step_id, name, description, conditions, validators, post_functions
		FROM workflow_transitions
		WHERE workflow_id = $1
		ORDER BY id
	`

	rows, err = r.db.QueryContext(ctx, transitionsQuery, workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to query workflow transitions: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	transitions := make([]*models.Transition, 0)

	for rows.Next() {
		var (
			transition                                    models.Transition
			conditionsJSON, validatorsJSON, postFuncsJSON []byte
		)

		transition.WorkflowID = workflow.ID

		err := rows.Scan(
			&transition.ID,
			&transition.FromStepID,
			&transition.ToStepID,
			&transition.Name,
			&transition.Description,
			&conditionsJSON,
			&validatorsJSON,
			&postFuncsJSON,
		)
		if err != nil {
			return fmt.Errorf("failed to scan transition: %w", err)
		}

		if err := json.Unmarshal(conditionsJSON, &transition.Conditions); err != nil {
			return fmt.Errorf("failed to unmarshal conditions: %w", err)
		}

		if err := json.Unmarshal(validatorsJSON, &transition.Validators); err != nil {
			return fmt.Errorf("failed to unmarshal validators: %w", err)
		}

		if err := json.Unmarshal(postFuncsJSON, &transition.PostFunctions); err != nil {
			return fmt.Errorf("failed to unmarshal post functions: %w", err)
		}

		transitions = append(transitions, &transition)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating transitions: %w", err)
	}

	workflow.Transitions = transitions

	return nil
}

func (r *WorkflowRepository) scanWorkflowBase(scanner interface {
	Scan(dest ...any) error
}) (*models.Workflow, error) {
	var workflow models.Workflow

	err := scanner.Scan(
		&workflow.ID,
		&workflow.Name,
		&workflow.Description,
		&workflow.IsDefault,
		&workflow.IsActive,
		&workflow.IsDraft,
		&workflow.DraftOf,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
		&workflow.PublishedAt,
	)
	if err != nil {
		return nil, err
	}

	return &workflow, nil
}
