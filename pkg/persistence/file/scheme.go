package file

import (
	"context"
	"fmt"
	"time"

	"github.com/tracklane/tracklane/pkg/models"
	"github.com/tracklane/tracklane/pkg/persistence"
)

// SchemeRepository stores scheme aggregates, mappings included, plus the
// project assignment table as one document.
type SchemeRepository struct {
	persistence *Persistence
}

func (r *SchemeRepository) List(ctx context.Context) ([]*models.WorkflowScheme, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	return r.listLocked()
}

func (r *SchemeRepository) listLocked() ([]*models.WorkflowScheme, error) {
	ids, err := r.persistence.listIDs("schemes")
	if err != nil {
		return nil, err
	}

	schemes := make([]*models.WorkflowScheme, 0, len(ids))

	for _, id := range ids {
		scheme, err := r.getLocked(id)
		if err != nil {
			return nil, err
		}

		schemes = append(schemes, scheme)
	}

	return schemes, nil
}

func (r *SchemeRepository) GetByID(ctx context.Context, id string) (*models.WorkflowScheme, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	return r.getLocked(id)
}

func (r *SchemeRepository) getLocked(id string) (*models.WorkflowScheme, error) {
	var scheme models.WorkflowScheme

	notFound := fmt.Errorf("scheme %s: %w", id, persistence.ErrSchemeNotFound)
	if err := r.persistence.readJSON(r.persistence.path("schemes", id+".json"), &scheme, notFound); err != nil {
		return nil, err
	}

	return &scheme, nil
}

func (r *SchemeRepository) GetDefault(ctx context.Context) (*models.WorkflowScheme, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	schemes, err := r.listLocked()
	if err != nil {
		return nil, err
	}

	for _, scheme := range schemes {
		if scheme.IsDefault {
			return scheme, nil
		}
	}

	return nil, fmt.Errorf("default scheme: %w", persistence.ErrSchemeNotFound)
}

func (r *SchemeRepository) Save(ctx context.Context, scheme *models.WorkflowScheme) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	return r.persistence.writeJSON(r.persistence.path("schemes", scheme.ID+".json"), scheme)
}

func (r *SchemeRepository) Delete(ctx context.Context, id string) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	notFound := fmt.Errorf("scheme %s: %w", id, persistence.ErrSchemeNotFound)

	return r.persistence.remove(r.persistence.path("schemes", id+".json"), notFound)
}

func (r *SchemeRepository) AssignProject(ctx context.Context, projectID, schemeID string) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	assignments, err := r.assignmentsLocked()
	if err != nil {
		return err
	}

	assignments[projectID] = &models.ProjectSchemeAssignment{
		ProjectID:  projectID,
		SchemeID:   schemeID,
		AssignedAt: time.Now().UTC(),
	}

	return r.persistence.writeJSON(r.persistence.path("scheme_assignments.json"), assignments)
}

func (r *SchemeRepository) ProjectAssignment(ctx context.Context, projectID string) (*models.ProjectSchemeAssignment, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	assignments, err := r.assignmentsLocked()
	if err != nil {
		return nil, err
	}

	assignment, exists := assignments[projectID]
	if !exists {
		return nil, fmt.Errorf("project %s: %w", projectID, persistence.ErrSchemeAssignmentNotFound)
	}

	return assignment, nil
}

func (r *SchemeRepository) assignmentsLocked() (map[string]*models.ProjectSchemeAssignment, error) {
	assignments := make(map[string]*models.ProjectSchemeAssignment)

	err := r.persistence.readJSON(r.persistence.path("scheme_assignments.json"), &assignments, nil)
	if err != nil {
		return nil, err
	}

	return assignments, nil
}
