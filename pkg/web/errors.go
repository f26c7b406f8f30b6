package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/tracklane/tracklane/pkg/engine"
	"github.com/tracklane/tracklane/pkg/persistence"
	"github.com/tracklane/tracklane/pkg/schemes"
	"github.com/tracklane/tracklane/pkg/workflow"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func conflict(c fiber.Ctx, problemType, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType(problemType).
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError maps domain errors onto RFC 7807 problem responses.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case workflow.IsImportFormatError(err):
		return badRequest(c, err.Error())

	case workflow.IsStructuralConflict(err):
		return conflict(c, "structural_conflict", err.Error())

	case engine.IsPermissionDenied(err):
		problem := problems.NewStatusProblem(403).
			WithInstance(c.Path()).
			WithType("permission_denied").
			WithDetail(err.Error())

		return c.Status(fiber.StatusForbidden).JSON(problem)

	case engine.IsValidationFailed(err):
		return validationFailed(c, err)

	case engine.IsTransitionNotAllowed(err):
		return conflict(c, "transition_not_allowed", err.Error())

	case errors.Is(err, schemes.ErrNoWorkflowConfigured):
		return conflict(c, "no_workflow_configured", err.Error())

	case errors.Is(err, schemes.ErrWorkflowIsDraft):
		return conflict(c, "workflow_is_draft", err.Error())

	case persistence.IsNotFound(err),
		errors.Is(err, workflow.ErrStepNotFound),
		errors.Is(err, workflow.ErrTransitionNotFound):
		return notFound(c, err.Error())

	case persistence.IsConstraintViolation(err):
		return conflict(c, "constraint_violation", err.Error())

	default:
		return internalError(c, err)
	}
}

// validationFailed returns 422 with the full failure list so the client
// can render every problem at once.
func validationFailed(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(422).
		WithInstance(c.Path()).
		WithType("validation_failed").
		WithDetail(err.Error())

	response := fiber.Map{
		"type":     problem.Type,
		"title":    problem.Title,
		"status":   problem.Status,
		"detail":   problem.Detail,
		"instance": problem.Instance,
	}

	var validationErr *engine.ValidationFailedError
	if errors.As(err, &validationErr) {
		response["failures"] = validationErr.Failures
	}

	return c.Status(fiber.StatusUnprocessableEntity).JSON(response)
}
