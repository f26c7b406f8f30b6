package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tracklane/tracklane/pkg/models"
	"github.com/tracklane/tracklane/pkg/persistence"
)

// DraftService implements copy-on-write versioning of workflows. A live
// workflow has at most one open draft; publishing swaps the draft's graph
// into the live workflow atomically so scheme mappings keep referencing
// the same workflow id.
type DraftService struct {
	persistence persistence.Persistence
	logger      *slog.Logger
}

// NewDraftService creates a new draft service.
func NewDraftService(persistence persistence.Persistence, logger *slog.Logger) *DraftService {
	return &DraftService{
		persistence: persistence,
		logger:      logger.With("module", "workflow_drafts"),
	}
}

// CreateDraft snapshots a live workflow into a new draft row. It fails
// with ErrDraftAlreadyOpen when a draft for the workflow already exists.
func (s *DraftService) CreateDraft(ctx context.Context, workflowID string) (*models.Workflow, error) {
	live, err := s.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if live.IsDraft {
		return nil, fmt.Errorf("workflow %s: %w", workflowID, ErrIsADraft)
	}

	existing, err := s.persistence.WorkflowRepository().GetDraftOf(ctx, workflowID)
	if err != nil && !persistence.IsDraftWorkflowNotFound(err) {
		return nil, err
	}

	if existing != nil {
		return nil, fmt.Errorf("workflow %s: %w", workflowID, ErrDraftAlreadyOpen)
	}

	now := time.Now().UTC()
	draft := &models.Workflow{
		ID:          uuid.New().String(),
		Name:        live.Name,
		Description: live.Description,
		IsActive:    live.IsActive,
		IsDraft:     true,
		DraftOf:     &workflowID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	draft.Steps, draft.Transitions = CloneGraph(live, draft.ID)

	if err := s.persistence.WorkflowRepository().Save(ctx, draft); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "draft created", "workflow_id", workflowID, "draft_id", draft.ID)

	return draft, nil
}

// PublishDraft replaces the live workflow's steps and transitions with the
// draft's content and deletes the draft, in one transaction. The live
// workflow keeps its id, so scheme mappings and project assignments stay
// valid. A failure leaves the live workflow unchanged.
func (s *DraftService) PublishDraft(ctx context.Context, draftID string) (*models.Workflow, error) {
	draft, err := s.persistence.WorkflowRepository().GetByID(ctx, draftID)
	if err != nil {
		return nil, err
	}

	if !draft.IsDraft || draft.DraftOf == nil {
		return nil, fmt.Errorf("workflow %s: %w", draftID, ErrNotADraft)
	}

	live, err := s.persistence.WorkflowRepository().GetByID(ctx, *draft.DraftOf)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	live.Name = draft.Name
	live.Description = draft.Description
	live.Steps, live.Transitions = CloneGraph(draft, live.ID)
	live.UpdatedAt = now
	live.PublishedAt = &now

	if err := s.persistence.WorkflowRepository().PublishDraft(ctx, live, draftID); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "draft published", "workflow_id", live.ID, "draft_id", draftID)

	return live, nil
}

// DiscardDraft deletes the draft and its graph. The live workflow is
// untouched.
func (s *DraftService) DiscardDraft(ctx context.Context, draftID string) error {
	draft, err := s.persistence.WorkflowRepository().GetByID(ctx, draftID)
	if err != nil {
		return err
	}

	if !draft.IsDraft {
		return fmt.Errorf("workflow %s: %w", draftID, ErrNotADraft)
	}

	if err := s.persistence.WorkflowRepository().Delete(ctx, draftID); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "draft discarded", "draft_id", draftID)

	return nil
}

// DraftOf returns the open draft for a live workflow, or
// persistence.ErrDraftWorkflowNotFound when none is open.
func (s *DraftService) DraftOf(ctx context.Context, workflowID string) (*models.Workflow, error) {
	return s.persistence.WorkflowRepository().GetDraftOf(ctx, workflowID)
}
