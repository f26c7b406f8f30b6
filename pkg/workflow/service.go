package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tracklane/tracklane/pkg/models"
	"github.com/tracklane/tracklane/pkg/persistence"
)

// Service manages the workflow catalog itself. Graph edits live in
// GraphService, versioning in DraftService.
type Service struct {
	persistence persistence.Persistence
	logger      *slog.Logger
}

// NewService creates a new workflow catalog service.
func NewService(persistence persistence.Persistence, logger *slog.Logger) *Service {
	return &Service{
		persistence: persistence,
		logger:      logger.With("module", "workflow"),
	}
}

// List returns live workflows only; drafts are reachable through their
// live workflow.
func (s *Service) List(ctx context.Context) ([]*models.Workflow, error) {
	all, err := s.persistence.WorkflowRepository().List(ctx)
	if err != nil {
		return nil, err
	}

	workflows := make([]*models.Workflow, 0, len(all))

	for _, wf := range all {
		if !wf.IsDraft {
			workflows = append(workflows, wf)
		}
	}

	return workflows, nil
}

func (s *Service) Get(ctx context.Context, workflowID string) (*models.Workflow, error) {
	return s.persistence.WorkflowRepository().GetByID(ctx, workflowID)
}

// Create creates an empty live workflow. Steps and transitions are added
// through the graph service.
func (s *Service) Create(ctx context.Context, name, description string) (*models.Workflow, error) {
	now := time.Now().UTC()

	wf := &models.Workflow{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		IsActive:    true,
		Steps:       []*models.Step{},
		Transitions: []*models.Transition{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.persistence.WorkflowRepository().Save(ctx, wf); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "workflow created", "workflow_id", wf.ID, "name", wf.Name)

	return wf, nil
}

// Update applies partial changes to a workflow's name and description.
func (s *Service) Update(ctx context.Context, workflowID string, name, description *string) (*models.Workflow, error) {
	wf, err := s.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if name != nil {
		wf.Name = *name
	}

	if description != nil {
		wf.Description = *description
	}

	if err := s.persistence.WorkflowRepository().Save(ctx, wf); err != nil {
		return nil, err
	}

	return wf, nil
}

// Delete removes a workflow and its graph. Workflows referenced by a
// scheme mapping are protected by the store and surface as a constraint
// violation.
func (s *Service) Delete(ctx context.Context, workflowID string) error {
	wf, err := s.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return err
	}

	if wf.IsDraft {
		return ErrIsADraft
	}

	// An open draft goes with its live workflow.
	draft, err := s.persistence.WorkflowRepository().GetDraftOf(ctx, workflowID)
	if err != nil && !persistence.IsDraftWorkflowNotFound(err) {
		return err
	}

	if draft != nil {
		if err := s.persistence.WorkflowRepository().Delete(ctx, draft.ID); err != nil {
			return err
		}
	}

	if err := s.persistence.WorkflowRepository().Delete(ctx, workflowID); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "workflow deleted", "workflow_id", workflowID)

	return nil
}
