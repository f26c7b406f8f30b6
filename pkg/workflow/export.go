package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/tracklane/tracklane/pkg/models"
	"github.com/tracklane/tracklane/pkg/persistence"
)

// PortabilityService moves workflow graphs between environments through
// the versioned export document.
type PortabilityService struct {
	persistence persistence.Persistence
	logger      *slog.Logger
}

// NewPortabilityService creates a new portability service.
func NewPortabilityService(persistence persistence.Persistence, logger *slog.Logger) *PortabilityService {
	return &PortabilityService{
		persistence: persistence,
		logger:      logger.With("module", "workflow_portability"),
	}
}

// Export renders a workflow as a portable document. Status names are
// carried next to the ids so imports into another environment can fall
// back to a name match.
func (s *PortabilityService) Export(ctx context.Context, workflowID string) (*models.WorkflowExport, error) {
	wf, err := s.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	statusNames := make(map[string]string, len(wf.Steps))

	for _, step := range wf.Steps {
		status, err := s.persistence.StatusRepository().GetByID(ctx, step.StatusID)
		if err != nil {
			if persistence.IsNotFound(err) {
				continue
			}

			return nil, err
		}

		statusNames[step.StatusID] = status.Name
	}

	doc := &models.WorkflowExport{
		Version:    models.ExportVersion,
		ExportedAt: time.Now().UTC(),
		Workflow: models.ExportWorkflow{
			Name:        wf.Name,
			Description: wf.Description,
			Steps:       make([]models.ExportStep, 0, len(wf.Steps)),
			Transitions: make([]models.ExportTransition, 0, len(wf.Transitions)),
		},
	}

	for _, step := range wf.Steps {
		doc.Workflow.Steps = append(doc.Workflow.Steps, models.ExportStep{
			StatusID:   step.StatusID,
			StatusName: statusNames[step.StatusID],
			PositionX:  step.PositionX,
			PositionY:  step.PositionY,
			IsInitial:  step.IsInitial,
		})
	}

	for _, transition := range wf.Transitions {
		// A dangling endpoint only happens with a corrupted store; the
		// edge is skipped rather than poisoning the document.
		to := wf.StepByID(transition.ToStepID)
		if to == nil {
			s.logger.WarnContext(ctx, "skipping transition with dangling target step",
				"workflow_id", workflowID, "transition_id", transition.ID)

			continue
		}

		exported := models.ExportTransition{
			ToStatusID:    to.StatusID,
			Name:          transition.Name,
			Description:   transition.Description,
			Conditions:    transition.Conditions,
			Validators:    transition.Validators,
			PostFunctions: transition.PostFunctions,
		}

		if transition.FromStepID != nil {
			from := wf.StepByID(*transition.FromStepID)
			if from == nil {
				s.logger.WarnContext(ctx, "skipping transition with dangling source step",
					"workflow_id", workflowID, "transition_id", transition.ID)

				continue
			}

			exported.FromStatusID = from.StatusID
		}

		doc.Workflow.Transitions = append(doc.Workflow.Transitions, exported)
	}

	return doc, nil
}
