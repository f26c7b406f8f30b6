package file

import (
	"context"
	"fmt"

	"github.com/tracklane/tracklane/pkg/models"
	"github.com/tracklane/tracklane/pkg/persistence"
)

type ProjectRepository struct {
	persistence *Persistence
}

func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	var project models.Project

	notFound := fmt.Errorf("project %s: %w", id, persistence.ErrProjectNotFound)
	if err := r.persistence.readJSON(r.persistence.path("projects", id+".json"), &project, notFound); err != nil {
		return nil, err
	}

	return &project, nil
}

func (r *ProjectRepository) Save(ctx context.Context, project *models.Project) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	return r.persistence.writeJSON(r.persistence.path("projects", project.ID+".json"), project)
}
