package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tracklane/tracklane/pkg/models"
	"github.com/tracklane/tracklane/pkg/persistence"
	"github.com/xeipuuv/gojsonschema"
)

// exportSchema validates the shape of an export document before decoding.
// Unknown statuses are not a schema concern; they are resolved, and
// possibly skipped, during import.
const exportSchema = `{
	"type": "object",
	"required": ["version", "workflow"],
	"properties": {
		"version": {"type": "integer", "minimum": 1},
		"exported_at": {"type": "string"},
		"workflow": {
			"type": "object",
			"required": ["name", "steps", "transitions"],
			"properties": {
				"name": {"type": "string", "minLength": 1},
				"description": {"type": "string"},
				"steps": {
					"type": "array",
					"items": {
						"type": "object",
						"required": ["status_id"],
						"properties": {
							"status_id": {"type": "string", "minLength": 1},
							"status_name": {"type": "string"},
							"position_x": {"type": "integer"},
							"position_y": {"type": "integer"},
							"is_initial": {"type": "boolean"}
						}
					}
				},
				"transitions": {
					"type": "array",
					"items": {
						"type": "object",
						"required": ["to_status_id", "name"],
						"properties": {
							"from_status_id": {"type": "string"},
							"to_status_id": {"type": "string", "minLength": 1},
							"name": {"type": "string", "minLength": 1}
						}
					}
				}
			}
		}
	}
}`

// ImportResult carries the imported workflow and the warnings for any
// steps or transitions that were skipped instead of aborting the import.
type ImportResult struct {
	Workflow *models.Workflow `json:"workflow"`
	Warnings []string         `json:"warnings"`
}

// Import creates a new workflow from a raw export document. Each step's
// status resolves by id first, then by name; a step whose status cannot be
// resolved is skipped with a warning, as is a transition whose endpoints do
// not resolve. A malformed document fails with ImportFormatError.
func (s *PortabilityService) Import(ctx context.Context, raw []byte) (*ImportResult, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(exportSchema),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return nil, &ImportFormatError{Reason: "document is not valid JSON", Err: err}
	}

	if !result.Valid() {
		reason := "schema validation failed"
		if len(result.Errors()) > 0 {
			reason = result.Errors()[0].String()
		}

		return nil, &ImportFormatError{Reason: reason}
	}

	var doc models.WorkflowExport
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &ImportFormatError{Reason: "cannot decode document", Err: err}
	}

	if doc.Version > models.ExportVersion {
		return nil, &ImportFormatError{Reason: fmt.Sprintf("unsupported export version %d", doc.Version)}
	}

	now := time.Now().UTC()
	wf := &models.Workflow{
		ID:          uuid.New().String(),
		Name:        doc.Workflow.Name,
		Description: doc.Workflow.Description,
		IsActive:    true,
		Steps:       make([]*models.Step, 0, len(doc.Workflow.Steps)),
		Transitions: make([]*models.Transition, 0, len(doc.Workflow.Transitions)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	warnings := make([]string, 0)

	// Maps the document's status ids to the steps created for them.
	steps := make(map[string]*models.Step, len(doc.Workflow.Steps))

	for _, exported := range doc.Workflow.Steps {
		status, err := s.resolveStatus(ctx, exported.StatusID, exported.StatusName)
		if err != nil {
			if persistence.IsNotFound(err) {
				warnings = append(warnings, fmt.Sprintf("skipped step: status %q not resolvable", exported.StatusID))

				continue
			}

			return nil, err
		}

		if wf.StepByStatus(status.ID) != nil {
			warnings = append(warnings, fmt.Sprintf("skipped step: status %q already placed", status.ID))

			continue
		}

		step := &models.Step{
			ID:         uuid.New().String(),
			WorkflowID: wf.ID,
			StatusID:   status.ID,
			IsInitial:  exported.IsInitial && wf.InitialStep() == nil,
			PositionX:  exported.PositionX,
			PositionY:  exported.PositionY,
		}
		wf.Steps = append(wf.Steps, step)
		steps[exported.StatusID] = step
	}

	for _, exported := range doc.Workflow.Transitions {
		to, toOK := steps[exported.ToStatusID]
		if !toOK {
			warnings = append(warnings, fmt.Sprintf("skipped transition %q: target status %q not resolvable",
				exported.Name, exported.ToStatusID))

			continue
		}

		transition := &models.Transition{
			ID:            uuid.New().String(),
			WorkflowID:    wf.ID,
			ToStepID:      to.ID,
			Name:          exported.Name,
			Description:   exported.Description,
			Conditions:    exported.Conditions,
			Validators:    exported.Validators,
			PostFunctions: exported.PostFunctions,
		}

		if exported.FromStatusID != "" {
			from, fromOK := steps[exported.FromStatusID]
			if !fromOK {
				warnings = append(warnings, fmt.Sprintf("skipped transition %q: source status %q not resolvable",
					exported.Name, exported.FromStatusID))

				continue
			}

			transition.FromStepID = &from.ID
		}

		wf.Transitions = append(wf.Transitions, transition)
	}

	if err := s.persistence.WorkflowRepository().Save(ctx, wf); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "workflow imported",
		"workflow_id", wf.ID, "steps", len(wf.Steps), "transitions", len(wf.Transitions), "warnings", len(warnings))

	return &ImportResult{Workflow: wf, Warnings: warnings}, nil
}

// resolveStatus matches a document status against the local catalog, by id
// first and by name second for cross-environment portability.
func (s *PortabilityService) resolveStatus(ctx context.Context, statusID, statusName string) (*models.Status, error) {
	status, err := s.persistence.StatusRepository().GetByID(ctx, statusID)
	if err == nil {
		return status, nil
	}

	if !persistence.IsNotFound(err) {
		return nil, err
	}

	if statusName == "" {
		return nil, err
	}

	return s.persistence.StatusRepository().GetByName(ctx, statusName)
}
