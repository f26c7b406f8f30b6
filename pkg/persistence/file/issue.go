package file

import (
	"context"
	"fmt"

	"github.com/tracklane/tracklane/pkg/models"
	"github.com/tracklane/tracklane/pkg/persistence"
)

// IssueRepository stores issues, with the history and comments of each
// issue as sidecar documents.
type IssueRepository struct {
	persistence *Persistence
}

func (r *IssueRepository) GetByID(ctx context.Context, id string) (*models.Issue, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	return r.getLocked(id)
}

func (r *IssueRepository) getLocked(id string) (*models.Issue, error) {
	var issue models.Issue

	notFound := persistence.NewIssueError("GetByID", id, persistence.ErrIssueNotFound)
	if err := r.persistence.readJSON(r.persistence.path("issues", id+".json"), &issue, notFound); err != nil {
		return nil, err
	}

	return &issue, nil
}

func (r *IssueRepository) Save(ctx context.Context, issue *models.Issue) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	return r.saveLocked(issue)
}

func (r *IssueRepository) saveLocked(issue *models.Issue) error {
	return r.persistence.writeJSON(r.persistence.path("issues", issue.ID+".json"), issue)
}

func (r *IssueRepository) Subtasks(ctx context.Context, issueID string) ([]*models.Issue, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	ids, err := r.persistence.listIDs("issues")
	if err != nil {
		return nil, err
	}

	subtasks := make([]*models.Issue, 0)

	for _, id := range ids {
		issue, err := r.getLocked(id)
		if err != nil {
			return nil, err
		}

		if issue.ParentID != nil && *issue.ParentID == issueID {
			subtasks = append(subtasks, issue)
		}
	}

	return subtasks, nil
}

func (r *IssueRepository) History(ctx context.Context, issueID string) ([]*models.HistoryRecord, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	return r.historyLocked(issueID)
}

func (r *IssueRepository) historyLocked(issueID string) ([]*models.HistoryRecord, error) {
	records := make([]*models.HistoryRecord, 0)

	err := r.persistence.readJSON(r.persistence.path("history", issueID+".json"), &records, nil)
	if err != nil {
		return nil, err
	}

	return records, nil
}

func (r *IssueRepository) AddComment(ctx context.Context, comment *models.Comment) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	comments := make([]*models.Comment, 0)

	err := r.persistence.readJSON(r.persistence.path("comments", comment.IssueID+".json"), &comments, nil)
	if err != nil {
		return err
	}

	comments = append(comments, comment)

	return r.persistence.writeJSON(r.persistence.path("comments", comment.IssueID+".json"), comments)
}

// CommitTransition writes the issue and appends the history record. The
// issue document is written first so a failure between the two writes
// loses the log entry, never the status.
func (r *IssueRepository) CommitTransition(ctx context.Context, issue *models.Issue, record *models.HistoryRecord) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	if _, err := r.getLocked(issue.ID); err != nil {
		return err
	}

	if err := r.saveLocked(issue); err != nil {
		return err
	}

	records, err := r.historyLocked(issue.ID)
	if err != nil {
		return err
	}

	records = append(records, record)

	if err := r.persistence.writeJSON(r.persistence.path("history", issue.ID+".json"), records); err != nil {
		return fmt.Errorf("failed to append history for issue %s: %w", issue.ID, err)
	}

	return nil
}
