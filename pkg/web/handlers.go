package web

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/tracklane/tracklane/pkg/engine"
	"github.com/tracklane/tracklane/pkg/eventbus"
	"github.com/tracklane/tracklane/pkg/events"
	"github.com/tracklane/tracklane/pkg/models"
	"github.com/tracklane/tracklane/pkg/persistence"
	"github.com/tracklane/tracklane/pkg/schemes"
	"github.com/tracklane/tracklane/pkg/workflow"
)

// APIHandlers bundles the services behind the REST API.
type APIHandlers struct {
	workflows   *workflow.Service
	statuses    *workflow.StatusService
	graph       *workflow.GraphService
	drafts      *workflow.DraftService
	portability *workflow.PortabilityService
	schemes     *schemes.Service
	pipeline    *engine.Pipeline
	persistence persistence.Persistence
	validator   *validator.Validate
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
}

func NewAPIHandlers(
	workflows *workflow.Service,
	statuses *workflow.StatusService,
	graph *workflow.GraphService,
	drafts *workflow.DraftService,
	portability *workflow.PortabilityService,
	schemeService *schemes.Service,
	pipeline *engine.Pipeline,
	persistence persistence.Persistence,
	validator *validator.Validate,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		workflows:   workflows,
		statuses:    statuses,
		graph:       graph,
		drafts:      drafts,
		portability: portability,
		schemes:     schemeService,
		pipeline:    pipeline,
		persistence: persistence,
		validator:   validator,
		publisher:   publisher,
		logger:      logger.With("module", "web"),
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	err := h.persistence.HealthCheck(c.Context())

	status := "healthy"
	message := "Tracklane API is healthy"
	httpStatus := http.StatusOK

	if err != nil {
		status = "unhealthy"
		message = "Tracklane API is unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
}

// Statuses

func (h *APIHandlers) GetStatuses(c fiber.Ctx) error {
	statuses, err := h.statuses.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(statuses)
}

func (h *APIHandlers) GetStatus(c fiber.Ctx) error {
	status, err := h.statuses.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(status)
}

func (h *APIHandlers) CreateStatus(c fiber.Ctx) error {
	var req CreateStatusRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	status, err := h.statuses.Create(c.Context(), req.Name, models.StatusCategory(req.Category), req.Color)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(status)
}

func (h *APIHandlers) UpdateStatus(c fiber.Ctx) error {
	var req UpdateStatusRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	var category *models.StatusCategory

	if req.Category != nil {
		value := models.StatusCategory(*req.Category)
		category = &value
	}

	status, err := h.statuses.Update(c.Context(), c.Params("id"), req.Name, category, req.Color)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(status)
}

func (h *APIHandlers) DeleteStatus(c fiber.Ctx) error {
	if err := h.statuses.Delete(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Workflows

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.workflows.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflows)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	wf, err := h.workflows.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(wf)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	wf, err := h.workflows.Create(c.Context(), req.Name, req.Description)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(wf)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	wf, err := h.workflows.Update(c.Context(), c.Params("id"), req.Name, req.Description)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(wf)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	if err := h.workflows.Delete(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Graph edits

func (h *APIHandlers) AddStep(c fiber.Ctx) error {
	var req AddStepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	step, err := h.graph.AddStep(c.Context(), c.Params("id"), req.StatusID, req.IsInitial)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(step)
}

func (h *APIHandlers) MoveStep(c fiber.Ctx) error {
	var req MoveStepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	err := h.graph.MoveStep(c.Context(), c.Params("id"), c.Params("stepId"), req.PositionX, req.PositionY)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) SetInitialStep(c fiber.Ctx) error {
	err := h.graph.SetInitial(c.Context(), c.Params("id"), c.Params("stepId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) RemoveStep(c fiber.Ctx) error {
	err := h.graph.RemoveStep(c.Context(), c.Params("id"), c.Params("stepId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) AddTransition(c fiber.Ctx) error {
	var req AddTransitionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	transition, err := h.graph.AddTransition(c.Context(), c.Params("id"), req.FromStepID, req.ToStepID, req.Name)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(transition)
}

func (h *APIHandlers) SetTransitionRules(c fiber.Ctx) error {
	var req SetTransitionRulesRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	transition, err := h.graph.SetTransitionRules(
		c.Context(), c.Params("id"), c.Params("transitionId"),
		req.Conditions, req.Validators, req.PostFunctions,
	)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(transition)
}

func (h *APIHandlers) RemoveTransition(c fiber.Ctx) error {
	err := h.graph.RemoveTransition(c.Context(), c.Params("id"), c.Params("transitionId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Drafts

func (h *APIHandlers) CreateDraft(c fiber.Ctx) error {
	draft, err := h.drafts.CreateDraft(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(draft)
}

func (h *APIHandlers) GetDraft(c fiber.Ctx) error {
	draft, err := h.drafts.DraftOf(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(draft)
}

func (h *APIHandlers) PublishDraft(c fiber.Ctx) error {
	workflowID := c.Params("id")

	draft, err := h.drafts.DraftOf(c.Context(), workflowID)
	if err != nil {
		return handleServiceError(c, err)
	}

	published, err := h.drafts.PublishDraft(c.Context(), draft.ID)
	if err != nil {
		return handleServiceError(c, err)
	}

	h.announcePublished(c, published.ID, draft.ID)

	return c.JSON(published)
}

func (h *APIHandlers) DiscardDraft(c fiber.Ctx) error {
	draft, err := h.drafts.DraftOf(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	if err := h.drafts.DiscardDraft(c.Context(), draft.ID); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// CompareDraft diffs a live workflow against its open draft.
func (h *APIHandlers) CompareDraft(c fiber.Ctx) error {
	live, err := h.workflows.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	draft, err := h.drafts.DraftOf(c.Context(), live.ID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow.Compare(live, draft))
}

// Portability

func (h *APIHandlers) ExportWorkflow(c fiber.Ctx) error {
	export, err := h.portability.Export(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(export)
}

func (h *APIHandlers) ImportWorkflow(c fiber.Ctx) error {
	result, err := h.portability.Import(c.Context(), c.Body())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

// Schemes

func (h *APIHandlers) GetSchemes(c fiber.Ctx) error {
	list, err := h.schemes.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(list)
}

func (h *APIHandlers) GetScheme(c fiber.Ctx) error {
	scheme, err := h.schemes.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(scheme)
}

func (h *APIHandlers) CreateScheme(c fiber.Ctx) error {
	var req CreateSchemeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	scheme, err := h.schemes.Create(c.Context(), req.Name, req.Description, req.IsDefault)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(scheme)
}

func (h *APIHandlers) DeleteScheme(c fiber.Ctx) error {
	if err := h.schemes.Delete(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) SetSchemeMapping(c fiber.Ctx) error {
	var req SetMappingRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	mapping, err := h.schemes.SetMapping(c.Context(), c.Params("id"), req.IssueTypeID, req.WorkflowID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(mapping)
}

// RemoveSchemeMapping drops a mapping. The issue type comes from the
// issue_type_id query parameter; leaving it off targets the wildcard
// mapping.
func (h *APIHandlers) RemoveSchemeMapping(c fiber.Ctx) error {
	var issueTypeID *string

	if value := c.Query("issue_type_id"); value != "" {
		issueTypeID = &value
	}

	if err := h.schemes.RemoveMapping(c.Context(), c.Params("id"), issueTypeID); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) AssignProjectScheme(c fiber.Ctx) error {
	var req AssignSchemeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.schemes.AssignProject(c.Context(), c.Params("id"), req.SchemeID); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Issues

func (h *APIHandlers) GetIssue(c fiber.Ctx) error {
	issue, err := h.persistence.IssueRepository().GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(issue)
}

func (h *APIHandlers) GetIssueHistory(c fiber.Ctx) error {
	history, err := h.persistence.IssueRepository().History(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(history)
}

// ExecuteTransition runs the transition pipeline for one issue.
func (h *APIHandlers) ExecuteTransition(c fiber.Ctx) error {
	var req ExecuteTransitionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.pipeline.Execute(c.Context(), engine.TransitionRequest{
		IssueID:        c.Params("id"),
		TargetStatusID: req.TargetStatusID,
		Actor:          req.Actor,
		Fields:         req.Fields,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

// GetAvailableTransitions lists the transitions the actor may fire from
// the issue's current status. Actor memberships come from query
// parameters so the endpoint stays a plain GET.
func (h *APIHandlers) GetAvailableTransitions(c fiber.Ctx) error {
	actor := engine.Actor{
		ID:          c.Query("actor_id"),
		Groups:      queryList(c, "groups"),
		Roles:       queryList(c, "roles"),
		Permissions: queryList(c, "permissions"),
	}

	transitions, err := h.pipeline.AvailableTransitions(c.Context(), c.Params("id"), actor)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(transitions)
}

func queryList(c fiber.Ctx, name string) []string {
	value := c.Query(name)
	if value == "" {
		return nil
	}

	return splitComma(value)
}

func splitComma(value string) []string {
	parts := make([]string, 0)

	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}

	return parts
}

func (h *APIHandlers) announcePublished(c fiber.Ctx, workflowID, draftID string) {
	if h.publisher == nil {
		return
	}

	event := events.WorkflowPublished{
		BaseEvent: events.BaseEvent{
			ID:        uuid.New().String(),
			Type:      events.WorkflowPublishedEvent,
			Timestamp: time.Now().UTC(),
		},
		WorkflowID: workflowID,
		DraftID:    draftID,
	}

	if err := h.publisher.Publish(c.Context(), workflowID, event); err != nil {
		// Publication already committed; event loss is tolerable.
		h.logger.WarnContext(c.Context(), "failed to publish workflow event",
			"workflow_id", workflowID, "error", err)
	}
}
