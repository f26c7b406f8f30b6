package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tracklane/tracklane/pkg/eventbus"
	"github.com/tracklane/tracklane/pkg/events"
	"github.com/tracklane/tracklane/pkg/models"
	"github.com/tracklane/tracklane/pkg/persistence"
)

var errNoEventBus = errors.New("no event bus configured")

// PostFunctionExecutor runs a transition's post functions after the status
// change committed. Execution follows declaration order strictly; a failing
// post function is recorded as a warning and the rest still run, because
// the committed transition is the authoritative effect and side effects
// are best effort.
type PostFunctionExecutor struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
}

// NewPostFunctionExecutor creates a new post function executor. The
// publisher may be nil; send_notification then degrades to a warning.
func NewPostFunctionExecutor(persistence persistence.Persistence, publisher eventbus.EventPublisher, logger *slog.Logger) *PostFunctionExecutor {
	return &PostFunctionExecutor{
		persistence: persistence,
		publisher:   publisher,
		logger:      logger.With("module", "post_functions"),
	}
}

// Execute runs the transition's post functions against the issue and
// returns the warnings for the ones that failed.
func (e *PostFunctionExecutor) Execute(ctx context.Context, transition *models.Transition, issue *models.Issue, actor Actor) []Warning {
	warnings := make([]Warning, 0)

	for _, postFunction := range transition.PostFunctions {
		if err := e.apply(ctx, postFunction, transition, issue, actor); err != nil {
			e.logger.WarnContext(ctx, "post function failed",
				"issue_id", issue.ID, "post_function", postFunction.Type, "error", err)

			warnings = append(warnings, Warning{
				PostFunction: postFunction.Type,
				Message:      err.Error(),
			})
		}
	}

	return warnings
}

func (e *PostFunctionExecutor) apply(ctx context.Context, postFunction models.PostFunction, transition *models.Transition, issue *models.Issue, actor Actor) error {
	switch postFunction.Type {
	case models.PostFunctionSetField:
		SetIssueField(issue, postFunction.Field, postFunction.Value)

		return e.saveIssue(ctx, issue)
	case models.PostFunctionClearField:
		ClearIssueField(issue, postFunction.Field)

		return e.saveIssue(ctx, issue)
	case models.PostFunctionAssignToLead:
		project, err := e.persistence.ProjectRepository().GetByID(ctx, issue.ProjectID)
		if err != nil {
			return err
		}

		if project.LeadID == "" {
			return fmt.Errorf("project %s has no lead", project.ID)
		}

		issue.AssigneeID = project.LeadID

		return e.saveIssue(ctx, issue)
	case models.PostFunctionAssignToReporter:
		issue.AssigneeID = issue.ReporterID

		return e.saveIssue(ctx, issue)
	case models.PostFunctionAddComment:
		comment := &models.Comment{
			ID:        uuid.New().String(),
			IssueID:   issue.ID,
			AuthorID:  actor.ID,
			Body:      postFunction.Text,
			CreatedAt: time.Now().UTC(),
		}

		return e.persistence.IssueRepository().AddComment(ctx, comment)
	case models.PostFunctionSendNotification:
		if e.publisher == nil {
			return errNoEventBus
		}

		return e.publisher.Publish(ctx, issue.ID, events.NotificationRequested{
			BaseEvent: events.BaseEvent{
				ID:        uuid.New().String(),
				Type:      events.NotificationRequestedEvent,
				Timestamp: time.Now().UTC(),
			},
			IssueID:        issue.ID,
			ActorID:        actor.ID,
			TransitionName: transition.Name,
			Text:           postFunction.Text,
		})
	default:
		return fmt.Errorf("unknown post function type %q", postFunction.Type)
	}
}

func (e *PostFunctionExecutor) saveIssue(ctx context.Context, issue *models.Issue) error {
	issue.UpdatedAt = time.Now().UTC()

	return e.persistence.IssueRepository().Save(ctx, issue)
}

// SetIssueField writes a field value, routing the well-known fields to
// their typed columns and everything else to the free-form field map.
func SetIssueField(issue *models.Issue, field, value string) {
	switch field {
	case "assignee":
		issue.AssigneeID = value
	case "reporter":
		issue.ReporterID = value
	case "resolution":
		issue.Resolution = value
	case "summary":
		issue.Summary = value
	default:
		if issue.Fields == nil {
			issue.Fields = make(map[string]any)
		}

		issue.Fields[field] = value
	}
}

// ClearIssueField removes a field value.
func ClearIssueField(issue *models.Issue, field string) {
	switch field {
	case "assignee":
		issue.AssigneeID = ""
	case "reporter":
		issue.ReporterID = ""
	case "resolution":
		issue.Resolution = ""
	case "summary":
		issue.Summary = ""
	default:
		delete(issue.Fields, field)
	}
}
