// Package schemes maps projects and issue types to the workflows that
// govern them.
package schemes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tracklane/tracklane/pkg/persistence"
)

// ErrNoWorkflowConfigured indicates scheme resolution found no workflow
// for the issue type, not even through a wildcard or default-scheme
// fallback.
var ErrNoWorkflowConfigured = errors.New("no workflow configured for issue type")

// Resolver answers which workflow governs a given project and issue type.
type Resolver struct {
	persistence persistence.Persistence
	logger      *slog.Logger
}

// NewResolver creates a new scheme resolver.
func NewResolver(persistence persistence.Persistence, logger *slog.Logger) *Resolver {
	return &Resolver{
		persistence: persistence,
		logger:      logger.With("module", "scheme_resolver"),
	}
}

// Resolve returns the workflow id the scheme binds to the issue type: the
// exact mapping first, the wildcard mapping second, ErrNoWorkflowConfigured
// when neither exists.
func (r *Resolver) Resolve(ctx context.Context, schemeID, issueTypeID string) (string, error) {
	scheme, err := r.persistence.SchemeRepository().GetByID(ctx, schemeID)
	if err != nil {
		return "", err
	}

	if mapping := scheme.MappingFor(issueTypeID); mapping != nil {
		return mapping.WorkflowID, nil
	}

	if mapping := scheme.WildcardMapping(); mapping != nil {
		return mapping.WorkflowID, nil
	}

	return "", fmt.Errorf("scheme %s, issue type %s: %w", schemeID, issueTypeID, ErrNoWorkflowConfigured)
}

// ResolveForIssue resolves the project's assigned scheme, falling back to
// the system default scheme when the project has none, then delegates to
// Resolve.
func (r *Resolver) ResolveForIssue(ctx context.Context, projectID, issueTypeID string) (string, error) {
	schemeID, err := r.schemeForProject(ctx, projectID)
	if err != nil {
		return "", err
	}

	return r.Resolve(ctx, schemeID, issueTypeID)
}

func (r *Resolver) schemeForProject(ctx context.Context, projectID string) (string, error) {
	assignment, err := r.persistence.SchemeRepository().ProjectAssignment(ctx, projectID)
	if err == nil {
		return assignment.SchemeID, nil
	}

	if !errors.Is(err, persistence.ErrSchemeAssignmentNotFound) {
		return "", err
	}

	fallback, err := r.persistence.SchemeRepository().GetDefault(ctx)
	if err != nil {
		if errors.Is(err, persistence.ErrSchemeNotFound) {
			return "", fmt.Errorf("project %s has no scheme and no default exists: %w", projectID, ErrNoWorkflowConfigured)
		}

		return "", err
	}

	return fallback.ID, nil
}
