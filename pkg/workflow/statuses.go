package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tracklane/tracklane/pkg/models"
	"github.com/tracklane/tracklane/pkg/persistence"
)

// StatusService manages the global status catalog. Statuses are shared
// across workflows, so deletion is refused while any workflow places the
// status.
type StatusService struct {
	persistence persistence.Persistence
	logger      *slog.Logger
}

// NewStatusService creates a new status catalog service.
func NewStatusService(persistence persistence.Persistence, logger *slog.Logger) *StatusService {
	return &StatusService{
		persistence: persistence,
		logger:      logger.With("module", "statuses"),
	}
}

func (s *StatusService) List(ctx context.Context) ([]*models.Status, error) {
	return s.persistence.StatusRepository().List(ctx)
}

func (s *StatusService) Get(ctx context.Context, statusID string) (*models.Status, error) {
	return s.persistence.StatusRepository().GetByID(ctx, statusID)
}

func (s *StatusService) Create(ctx context.Context, name string, category models.StatusCategory, color string) (*models.Status, error) {
	now := time.Now().UTC()

	status := &models.Status{
		ID:        uuid.NewString(),
		Name:      name,
		Category:  category,
		Color:     color,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.persistence.StatusRepository().Save(ctx, status); err != nil {
		return nil, err
	}

	return status, nil
}

// Update applies partial changes to a status. Renaming is safe because
// steps reference statuses by id.
func (s *StatusService) Update(ctx context.Context, statusID string, name *string, category *models.StatusCategory, color *string) (*models.Status, error) {
	status, err := s.persistence.StatusRepository().GetByID(ctx, statusID)
	if err != nil {
		return nil, err
	}

	if name != nil {
		status.Name = *name
	}

	if category != nil {
		status.Category = *category
	}

	if color != nil {
		status.Color = *color
	}

	if err := s.persistence.StatusRepository().Save(ctx, status); err != nil {
		return nil, err
	}

	return status, nil
}

// Delete removes a status from the catalog, failing with ErrStatusInUse
// while any workflow, draft included, still places it.
func (s *StatusService) Delete(ctx context.Context, statusID string) error {
	workflows, err := s.persistence.WorkflowRepository().List(ctx)
	if err != nil {
		return err
	}

	for _, wf := range workflows {
		if wf.StepByStatus(statusID) != nil {
			return ErrStatusInUse
		}
	}

	return s.persistence.StatusRepository().Delete(ctx, statusID)
}
