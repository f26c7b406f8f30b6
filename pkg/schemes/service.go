package schemes

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tracklane/tracklane/pkg/models"
	"github.com/tracklane/tracklane/pkg/persistence"
)

// ErrWorkflowIsDraft indicates a scheme mapping tried to bind a draft;
// only live workflows govern issues.
var ErrWorkflowIsDraft = errors.New("cannot map a draft workflow")

// Service manages workflow schemes, their mappings and the project
// bindings. Mapping writes keep the one-mapping-per-issue-type invariant,
// wildcard included.
type Service struct {
	persistence persistence.Persistence
	logger      *slog.Logger
}

// NewService creates a new scheme service.
func NewService(persistence persistence.Persistence, logger *slog.Logger) *Service {
	return &Service{
		persistence: persistence,
		logger:      logger.With("module", "schemes"),
	}
}

func (s *Service) List(ctx context.Context) ([]*models.WorkflowScheme, error) {
	return s.persistence.SchemeRepository().List(ctx)
}

func (s *Service) Get(ctx context.Context, schemeID string) (*models.WorkflowScheme, error) {
	return s.persistence.SchemeRepository().GetByID(ctx, schemeID)
}

// Create stores a new scheme with no mappings.
func (s *Service) Create(ctx context.Context, name, description string, isDefault bool) (*models.WorkflowScheme, error) {
	now := time.Now().UTC()
	scheme := &models.WorkflowScheme{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		IsDefault:   isDefault,
		Mappings:    make([]*models.SchemeMapping, 0),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.persistence.SchemeRepository().Save(ctx, scheme); err != nil {
		return nil, err
	}

	return scheme, nil
}

func (s *Service) Delete(ctx context.Context, schemeID string) error {
	return s.persistence.SchemeRepository().Delete(ctx, schemeID)
}

// SetMapping binds an issue type, or the wildcard when issueTypeID is nil,
// to a workflow. An existing mapping for the same issue type is replaced.
func (s *Service) SetMapping(ctx context.Context, schemeID string, issueTypeID *string, workflowID string) (*models.SchemeMapping, error) {
	scheme, err := s.persistence.SchemeRepository().GetByID(ctx, schemeID)
	if err != nil {
		return nil, err
	}

	wf, err := s.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if wf.IsDraft {
		return nil, ErrWorkflowIsDraft
	}

	mapping := &models.SchemeMapping{
		SchemeID:    schemeID,
		IssueTypeID: issueTypeID,
		WorkflowID:  workflowID,
	}

	mappings := make([]*models.SchemeMapping, 0, len(scheme.Mappings)+1)

	for _, existing := range scheme.Mappings {
		if sameIssueType(existing.IssueTypeID, issueTypeID) {
			continue
		}

		mappings = append(mappings, existing)
	}

	scheme.Mappings = append(mappings, mapping)
	scheme.UpdatedAt = time.Now().UTC()

	if err := s.persistence.SchemeRepository().Save(ctx, scheme); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "scheme mapping set",
		"scheme_id", schemeID, "workflow_id", workflowID, "wildcard", issueTypeID == nil)

	return mapping, nil
}

// RemoveMapping drops the mapping for an issue type; a nil issueTypeID
// drops the wildcard mapping.
func (s *Service) RemoveMapping(ctx context.Context, schemeID string, issueTypeID *string) error {
	scheme, err := s.persistence.SchemeRepository().GetByID(ctx, schemeID)
	if err != nil {
		return err
	}

	mappings := make([]*models.SchemeMapping, 0, len(scheme.Mappings))

	for _, existing := range scheme.Mappings {
		if sameIssueType(existing.IssueTypeID, issueTypeID) {
			continue
		}

		mappings = append(mappings, existing)
	}

	scheme.Mappings = mappings
	scheme.UpdatedAt = time.Now().UTC()

	return s.persistence.SchemeRepository().Save(ctx, scheme)
}

// AssignProject binds a project to a scheme. Assigning again replaces the
// previous binding.
func (s *Service) AssignProject(ctx context.Context, projectID, schemeID string) error {
	if _, err := s.persistence.ProjectRepository().GetByID(ctx, projectID); err != nil {
		return err
	}

	if _, err := s.persistence.SchemeRepository().GetByID(ctx, schemeID); err != nil {
		return err
	}

	return s.persistence.SchemeRepository().AssignProject(ctx, projectID, schemeID)
}

func sameIssueType(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	return *a == *b
}
