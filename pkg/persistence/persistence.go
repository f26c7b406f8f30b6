// Package persistence provides the data storage abstraction layer for the
// workflow engine. Implementations must keep referential integrity between
// an issue's status and the governing workflow's transitions, and commit
// CommitTransition in a single transaction.
package persistence

import (
	"context"

	"github.com/tracklane/tracklane/pkg/models"
)

type Persistence interface {
	WorkflowRepository() WorkflowRepository
	StatusRepository() StatusRepository
	SchemeRepository() SchemeRepository
	ProjectRepository() ProjectRepository
	IssueRepository() IssueRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores workflow aggregates: the workflow row together
// with its steps and transitions. Save replaces the whole graph; Delete
// cascades to steps and transitions.
type WorkflowRepository interface {
	List(ctx context.Context) ([]*models.Workflow, error)
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
	Delete(ctx context.Context, id string) error

	// GetDraftOf returns the open draft of a live workflow, or
	// ErrDraftWorkflowNotFound when none is open.
	GetDraftOf(ctx context.Context, liveID string) (*models.Workflow, error)

	// PublishDraft persists the updated live workflow and deletes the
	// draft row in one transaction. A failure leaves the live workflow
	// unchanged.
	PublishDraft(ctx context.Context, live *models.Workflow, draftID string) error
}

// StatusRepository stores the global status catalog.
type StatusRepository interface {
	List(ctx context.Context) ([]*models.Status, error)
	GetByID(ctx context.Context, id string) (*models.Status, error)
	GetByName(ctx context.Context, name string) (*models.Status, error)
	Save(ctx context.Context, status *models.Status) error
	Delete(ctx context.Context, id string) error
}

// SchemeRepository stores workflow schemes with their mappings, plus the
// project-to-scheme assignments.
type SchemeRepository interface {
	List(ctx context.Context) ([]*models.WorkflowScheme, error)
	GetByID(ctx context.Context, id string) (*models.WorkflowScheme, error)
	GetDefault(ctx context.Context) (*models.WorkflowScheme, error)
	Save(ctx context.Context, scheme *models.WorkflowScheme) error
	Delete(ctx context.Context, id string) error

	// AssignProject binds a project to a scheme with upsert semantics.
	AssignProject(ctx context.Context, projectID, schemeID string) error
	ProjectAssignment(ctx context.Context, projectID string) (*models.ProjectSchemeAssignment, error)
}

type ProjectRepository interface {
	GetByID(ctx context.Context, id string) (*models.Project, error)
	Save(ctx context.Context, project *models.Project) error
}

// IssueRepository stores issues, their transition history and comments.
type IssueRepository interface {
	GetByID(ctx context.Context, id string) (*models.Issue, error)
	Save(ctx context.Context, issue *models.Issue) error
	Subtasks(ctx context.Context, issueID string) ([]*models.Issue, error)
	History(ctx context.Context, issueID string) ([]*models.HistoryRecord, error)
	AddComment(ctx context.Context, comment *models.Comment) error

	// CommitTransition sets the issue's status and appends the history
	// record atomically. A store-level constraint rejection surfaces as
	// ErrConstraintViolation so callers can translate it.
	CommitTransition(ctx context.Context, issue *models.Issue, record *models.HistoryRecord) error
}
