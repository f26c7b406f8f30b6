package file

import (
	"context"
	"fmt"

	"github.com/tracklane/tracklane/pkg/models"
	"github.com/tracklane/tracklane/pkg/persistence"
)

// WorkflowRepository stores one JSON document per workflow aggregate,
// steps and transitions included.
type WorkflowRepository struct {
	persistence *Persistence
}

func (r *WorkflowRepository) List(ctx context.Context) ([]*models.Workflow, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	ids, err := r.persistence.listIDs("workflows")
	if err != nil {
		return nil, err
	}

	workflows := make([]*models.Workflow, 0, len(ids))

	for _, id := range ids {
		wf, err := r.getLocked(id)
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, wf)
	}

	return workflows, nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	return r.getLocked(id)
}

func (r *WorkflowRepository) getLocked(id string) (*models.Workflow, error) {
	var wf models.Workflow

	notFound := persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
	if err := r.persistence.readJSON(r.persistence.path("workflows", id+".json"), &wf, notFound); err != nil {
		return nil, err
	}

	return &wf, nil
}

func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	return r.saveLocked(workflow)
}

func (r *WorkflowRepository) saveLocked(workflow *models.Workflow) error {
	if workflow.ID == "" {
		return persistence.NewWorkflowError("Save", "", fmt.Errorf("workflow id is empty"))
	}

	return r.persistence.writeJSON(r.persistence.path("workflows", workflow.ID+".json"), workflow)
}

func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	notFound := persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)

	return r.persistence.remove(r.persistence.path("workflows", id+".json"), notFound)
}

func (r *WorkflowRepository) GetDraftOf(ctx context.Context, liveID string) (*models.Workflow, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	ids, err := r.persistence.listIDs("workflows")
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		wf, err := r.getLocked(id)
		if err != nil {
			return nil, err
		}

		if wf.IsDraft && wf.DraftOf != nil && *wf.DraftOf == liveID {
			return wf, nil
		}
	}

	return nil, persistence.NewWorkflowError("GetDraftOf", liveID, persistence.ErrDraftWorkflowNotFound)
}

// PublishDraft writes the updated live workflow and removes the draft.
// Two file writes stand in for the transaction a database adapter gives;
// the live document is written first so a failure keeps it authoritative.
func (r *WorkflowRepository) PublishDraft(ctx context.Context, live *models.Workflow, draftID string) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	if err := r.saveLocked(live); err != nil {
		return err
	}

	notFound := persistence.NewWorkflowError("PublishDraft", draftID, persistence.ErrWorkflowNotFound)

	return r.persistence.remove(r.persistence.path("workflows", draftID+".json"), notFound)
}
