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

// IssueRepository handles issues, their transition history and comments.
type IssueRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const issueColumns = `
	id
  , project_id
  , issue_type_id
  , parent_id
  , status_id
  , assignee_id
  , reporter_id
  , resolution
  , summary
  , fields
  , created_at
  , updated_at
`

func (r *IssueRepository) GetByID(ctx context.Context, id string) (*models.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues WHERE id = $1`

	issue, err := r.scanIssue(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewIssueError("GetByID", id, persistence.ErrIssueNotFound)
		}

		return nil, fmt.Errorf("failed to scan issue: %w", err)
	}

	return issue, nil
}

func (r *IssueRepository) Save(ctx context.Context, issue *models.Issue) error {
	now := time.Now().UTC()

	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = now
	}

	issue.UpdatedAt = now

	if issue.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate issue ID: %w", err)
		}

		issue.ID = id.String()
	}

	args, err := issueUpsertArgs(issue)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, issueUpsertQuery, args...)
	if err != nil {
		return translateConstraint(fmt.Errorf("failed to save issue: %w", err))
	}

	return nil
}

const issueUpsertQuery = `
	INSERT INTO issues (id, project_id, issue_type_id, parent_id, status_id, assignee_id, reporter_id, resolution, summary, fields, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (id) DO UPDATE SET
		project_id = EXCLUDED.project_id,
		issue_type_id = EXCLUDED.issue_type_id,
		parent_id = EXCLUDED.parent_id,
		status_id = EXCLUDED.status_id,
		assignee_id = EXCLUDED.assignee_id,
		reporter_id = EXCLUDED.reporter_id,
		resolution = EXCLUDED.resolution,
		summary = EXCLUDED.summary,
		fields = EXCLUDED.fields,
		updated_at = EXCLUDED.updated_at
`

func issueUpsertArgs(issue *models.Issue) ([]any, error) {
	fieldsJSON := []byte("{}")

	if issue.Fields != nil {
		var err error

		fieldsJSON, err = json.Marshal(issue.Fields)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal issue fields: %w", err)
		}
	}

	return []any{
		issue.ID,
		issue.ProjectID,
		issue.IssueTypeID,
		issue.ParentID,
		issue.StatusID,
		issue.AssigneeID,
		issue.ReporterID,
		issue.Resolution,
		issue.Summary,
		fieldsJSON,
		issue.CreatedAt,
		issue.UpdatedAt,
	}, nil
}

func (r *IssueRepository) Subtasks(ctx context.Context, issueID string) ([]*models.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues WHERE parent_id = $1 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, issueID)
	if err != nil {
		return nil, fmt.Errorf("failed to query subtasks: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	subtasks := make([]*models.Issue, 0)

	for rows.Next() {
		issue, err := r.scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subtask: %w", err)
		}

		subtasks = append(subtasks, issue)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subtasks: %w", err)
	}

	return subtasks, nil
}

func (r *IssueRepository) History(ctx context.Context, issueID string) ([]*models.HistoryRecord, error) {
	query := `
		SELECT id, issue_id, from_status_id, to_status_id, transition_id, transition_name, actor_id, created_at
		FROM issue_history
		WHERE issue_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, issueID)
	if err != nil {
		return nil, fmt.Errorf("failed to query issue history: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	records := make([]*models.HistoryRecord, 0)

	for rows.Next() {
		var record models.HistoryRecord

		err := rows.Scan(
			&record.ID,
			&record.IssueID,
			&record.FromStatusID,
			&record.ToStatusID,
			&record.TransitionID,
			&record.TransitionName,
			&record.ActorID,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}

		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history records: %w", err)
	}

	return records, nil
}

func (r *IssueRepository) AddComment(ctx context.Context, comment *models.Comment) error {
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO issue_comments (id, issue_id, author_id, body, created_at) VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.ExecContext(ctx, query,
		comment.ID, comment.IssueID, comment.AuthorID, comment.Body, comment.CreatedAt,
	)
	if err != nil {
		return translateConstraint(fmt.Errorf("failed to add comment: %w", err))
	}

	return nil
}

// CommitTransition writes the issue's new status and the history record in
// one transaction.
func (r *IssueRepository) CommitTransition(ctx context.Context, issue *models.Issue, record *models.HistoryRecord) error {
	issue.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	args, err := issueUpsertArgs(issue)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, issueUpsertQuery, args...)
	if err != nil {
		return translateConstraint(fmt.Errorf("failed to save issue: %w", err))
	}

	historyQuery := `
		INSERT INTO issue_history (id, issue_id, from_status_id, to_status_id, transition_id, transition_name, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = tx.ExecContext(ctx, historyQuery,
		record.ID,
		record.IssueID,
		record.FromStatusID,
		record.ToStatusID,
		record.TransitionID,
		record.TransitionName,
		record.ActorID,
		record.CreatedAt,
	)
	if err != nil {
		return translateConstraint(fmt.Errorf("failed to append history record: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transition: %w", err)
	}

	return nil
}

func (r *IssueRepository) scanIssue(scanner interface {
	Scan(dest ...any) error
}) (*models.Issue, error) {
	var (
		issue      models.Issue
		fieldsJSON []byte
	)

	err := scanner.Scan(
		&issue.ID,
		&issue.ProjectID,
		&issue.IssueTypeID,
		&issue.ParentID,
		&issue.StatusID,
		&issue.AssigneeID,
		&issue.ReporterID,
		&issue.Resolution,
		&issue.Summary,
		&fieldsJSON,
		&issue.CreatedAt,
		&issue.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if fieldsJSON != nil {
		err := json.Unmarshal(fieldsJSON, &issue.Fields)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal issue fields: %w", err)
		}
	}

	return &issue, nil
}
