package file

import (
	"context"
	"fmt"

	"github.com/tracklane/tracklane/pkg/models"
	"github.com/tracklane/tracklane/pkg/persistence"
)

// StatusRepository stores the global status catalog, one document per status.
type StatusRepository struct {
	persistence *Persistence
}

func (r *StatusRepository) List(ctx context.Context) ([]*models.Status, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	ids, err := r.persistence.listIDs("statuses")
	if err != nil {
		return nil, err
	}

	statuses := make([]*models.Status, 0, len(ids))

	for _, id := range ids {
		status, err := r.getLocked(id)
		if err != nil {
			return nil, err
		}

		statuses = append(statuses, status)
	}

	return statuses, nil
}

func (r *StatusRepository) GetByID(ctx context.Context, id string) (*models.Status, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	return r.getLocked(id)
}

func (r *StatusRepository) getLocked(id string) (*models.Status, error) {
	var status models.Status

	notFound := fmt.Errorf("status %s: %w", id, persistence.ErrStatusNotFound)
	if err := r.persistence.readJSON(r.persistence.path("statuses", id+".json"), &status, notFound); err != nil {
		return nil, err
	}

	return &status, nil
}

func (r *StatusRepository) GetByName(ctx context.Context, name string) (*models.Status, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	ids, err := r.persistence.listIDs("statuses")
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		status, err := r.getLocked(id)
		if err != nil {
			return nil, err
		}

		if status.Name == name {
			return status, nil
		}
	}

	return nil, fmt.Errorf("status named %q: %w", name, persistence.ErrStatusNotFound)
}

func (r *StatusRepository) Save(ctx context.Context, status *models.Status) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	return r.persistence.writeJSON(r.persistence.path("statuses", status.ID+".json"), status)
}

func (r *StatusRepository) Delete(ctx context.Context, id string) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	notFound := fmt.Errorf("status %s: %w", id, persistence.ErrStatusNotFound)

	return r.persistence.remove(r.persistence.path("statuses", id+".json"), notFound)
}
