package testutil

import (
	"context"
	"fmt"

	"github.com/tracklane/tracklane/pkg/models"
	"github.com/tracklane/tracklane/pkg/persistence"
)

// MemoryPersistence is an in-memory persistence implementation for tests.
// It is not safe for concurrent use beyond what the services themselves
// serialize.
type MemoryPersistence struct {
	Workflows   map[string]*models.Workflow
	Statuses    map[string]*models.Status
	Schemes     map[string]*models.WorkflowScheme
	Projects    map[string]*models.Project
	Issues      map[string]*models.Issue
	History     map[string][]*models.HistoryRecord
	Comments    map[string][]*models.Comment
	Assignments map[string]*models.ProjectSchemeAssignment

	// CommitErr, when set, is returned by CommitTransition to simulate a
	// store-level rejection.
	CommitErr error
}

// NewMemoryPersistence creates an empty in-memory store.
func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{
		Workflows:   make(map[string]*models.Workflow),
		Statuses:    make(map[string]*models.Status),
		Schemes:     make(map[string]*models.WorkflowScheme),
		Projects:    make(map[string]*models.Project),
		Issues:      make(map[string]*models.Issue),
		History:     make(map[string][]*models.HistoryRecord),
		Comments:    make(map[string][]*models.Comment),
		Assignments: make(map[string]*models.ProjectSchemeAssignment),
	}
}

func (p *MemoryPersistence) WorkflowRepository() persistence.WorkflowRepository {
	return &memoryWorkflowRepo{p}
}

func (p *MemoryPersistence) StatusRepository() persistence.StatusRepository {
	return &memoryStatusRepo{p}
}

func (p *MemoryPersistence) SchemeRepository() persistence.SchemeRepository {
	return &memorySchemeRepo{p}
}

func (p *MemoryPersistence) ProjectRepository() persistence.ProjectRepository {
	return &memoryProjectRepo{p}
}

func (p *MemoryPersistence) IssueRepository() persistence.IssueRepository {
	return &memoryIssueRepo{p}
}

func (p *MemoryPersistence) HealthCheck(ctx context.Context) error { return nil }

func (p *MemoryPersistence) Close(ctx context.Context) error { return nil }

type memoryWorkflowRepo struct{ p *MemoryPersistence }

func (r *memoryWorkflowRepo) List(ctx context.Context) ([]*models.Workflow, error) {
	workflows := make([]*models.Workflow, 0, len(r.p.Workflows))
	for _, wf := range r.p.Workflows {
		workflows = append(workflows, wf)
	}

	return workflows, nil
}

func (r *memoryWorkflowRepo) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	wf, exists := r.p.Workflows[id]
	if !exists {
		return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
	}

	return wf, nil
}

func (r *memoryWorkflowRepo) Save(ctx context.Context, workflow *models.Workflow) error {
	r.p.Workflows[workflow.ID] = workflow

	return nil
}

func (r *memoryWorkflowRepo) Delete(ctx context.Context, id string) error {
	if _, exists := r.p.Workflows[id]; !exists {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	delete(r.p.Workflows, id)

	return nil
}

func (r *memoryWorkflowRepo) GetDraftOf(ctx context.Context, liveID string) (*models.Workflow, error) {
	for _, wf := range r.p.Workflows {
		if wf.DraftOf != nil && *wf.DraftOf == liveID {
			return wf, nil
		}
	}

	return nil, persistence.NewWorkflowError("GetDraftOf", liveID, persistence.ErrDraftWorkflowNotFound)
}

func (r *memoryWorkflowRepo) PublishDraft(ctx context.Context, live *models.Workflow, draftID string) error {
	r.p.Workflows[live.ID] = live
	delete(r.p.Workflows, draftID)

	return nil
}

type memoryStatusRepo struct{ p *MemoryPersistence }

func (r *memoryStatusRepo) List(ctx context.Context) ([]*models.Status, error) {
	statuses := make([]*models.Status, 0, len(r.p.Statuses))
	for _, status := range r.p.Statuses {
		statuses = append(statuses, status)
	}

	return statuses, nil
}

func (r *memoryStatusRepo) GetByID(ctx context.Context, id string) (*models.Status, error) {
	status, exists := r.p.Statuses[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", persistence.ErrStatusNotFound, id)
	}

	return status, nil
}

func (r *memoryStatusRepo) GetByName(ctx context.Context, name string) (*models.Status, error) {
	for _, status := range r.p.Statuses {
		if status.Name == name {
			return status, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", persistence.ErrStatusNotFound, name)
}

func (r *memoryStatusRepo) Save(ctx context.Context, status *models.Status) error {
	r.p.Statuses[status.ID] = status

	return nil
}

func (r *memoryStatusRepo) Delete(ctx context.Context, id string) error {
	if _, exists := r.p.Statuses[id]; !exists {
		return fmt.Errorf("%w: %s", persistence.ErrStatusNotFound, id)
	}

	delete(r.p.Statuses, id)

	return nil
}

type memorySchemeRepo struct{ p *MemoryPersistence }

func (r *memorySchemeRepo) List(ctx context.Context) ([]*models.WorkflowScheme, error) {
	schemes := make([]*models.WorkflowScheme, 0, len(r.p.Schemes))
	for _, scheme := range r.p.Schemes {
		schemes = append(schemes, scheme)
	}

	return schemes, nil
}

func (r *memorySchemeRepo) GetByID(ctx context.Context, id string) (*models.WorkflowScheme, error) {
	scheme, exists := r.p.Schemes[id]
	if !exists {
		return nil, persistence.ErrSchemeNotFound
	}

	return scheme, nil
}

func (r *memorySchemeRepo) GetDefault(ctx context.Context) (*models.WorkflowScheme, error) {
	for _, scheme := range r.p.Schemes {
		if scheme.IsDefault {
			return scheme, nil
		}
	}

	return nil, persistence.ErrSchemeNotFound
}

func (r *memorySchemeRepo) Save(ctx context.Context, scheme *models.WorkflowScheme) error {
	r.p.Schemes[scheme.ID] = scheme

	return nil
}

func (r *memorySchemeRepo) Delete(ctx context.Context, id string) error {
	if _, exists := r.p.Schemes[id]; !exists {
		return persistence.ErrSchemeNotFound
	}

	delete(r.p.Schemes, id)

	return nil
}

func (r *memorySchemeRepo) AssignProject(ctx context.Context, projectID, schemeID string) error {
	r.p.Assignments[projectID] = &models.ProjectSchemeAssignment{
		ProjectID: projectID,
		SchemeID:  schemeID,
	}

	return nil
}

func (r *memorySchemeRepo) ProjectAssignment(ctx context.Context, projectID string) (*models.ProjectSchemeAssignment, error) {
	assignment, exists := r.p.Assignments[projectID]
	if !exists {
		return nil, fmt.Errorf("%w: project %s", persistence.ErrSchemeAssignmentNotFound, projectID)
	}

	return assignment, nil
}

type memoryProjectRepo struct{ p *MemoryPersistence }

func (r *memoryProjectRepo) GetByID(ctx context.Context, id string) (*models.Project, error) {
	project, exists := r.p.Projects[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", persistence.ErrProjectNotFound, id)
	}

	return project, nil
}

func (r *memoryProjectRepo) Save(ctx context.Context, project *models.Project) error {
	r.p.Projects[project.ID] = project

	return nil
}

type memoryIssueRepo struct{ p *MemoryPersistence }

func (r *memoryIssueRepo) GetByID(ctx context.Context, id string) (*models.Issue, error) {
	issue, exists := r.p.Issues[id]
	if !exists {
		return nil, persistence.NewIssueError("GetByID", id, persistence.ErrIssueNotFound)
	}

	return issue, nil
}

func (r *memoryIssueRepo) Save(ctx context.Context, issue *models.Issue) error {
	r.p.Issues[issue.ID] = issue

	return nil
}

func (r *memoryIssueRepo) Subtasks(ctx context.Context, issueID string) ([]*models.Issue, error) {
	subtasks := make([]*models.Issue, 0)

	for _, issue := range r.p.Issues {
		if issue.ParentID != nil && *issue.ParentID == issueID {
			subtasks = append(subtasks, issue)
		}
	}

	return subtasks, nil
}

func (r *memoryIssueRepo) History(ctx context.Context, issueID string) ([]*models.HistoryRecord, error) {
	return r.p.History[issueID], nil
}

func (r *memoryIssueRepo) AddComment(ctx context.Context, comment *models.Comment) error {
	r.p.Comments[comment.IssueID] = append(r.p.Comments[comment.IssueID], comment)

	return nil
}

func (r *memoryIssueRepo) CommitTransition(ctx context.Context, issue *models.Issue, record *models.HistoryRecord) error {
	if r.p.CommitErr != nil {
		return r.p.CommitErr
	}

	r.p.Issues[issue.ID] = issue
	r.p.History[issue.ID] = append(r.p.History[issue.ID], record)

	return nil
}
