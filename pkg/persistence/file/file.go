// Package file provides file-based persistence for development and tests.
// Each aggregate is one JSON document on disk.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tracklane/tracklane/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the
// file system. A single lock guards all repositories; this adapter trades
// concurrency for simplicity.
type Persistence struct {
	root string
	mu   sync.RWMutex

	workflowRepo *WorkflowRepository
	statusRepo   *StatusRepository
	schemeRepo   *SchemeRepository
	projectRepo  *ProjectRepository
	issueRepo    *IssueRepository
}

// NewPersistence creates a file persistence layer rooted at the given
// directory. A "file://" prefix is stripped.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	p := &Persistence{root: cleanRoot}
	p.workflowRepo = &WorkflowRepository{persistence: p}
	p.statusRepo = &StatusRepository{persistence: p}
	p.schemeRepo = &SchemeRepository{persistence: p}
	p.projectRepo = &ProjectRepository{persistence: p}
	p.issueRepo = &IssueRepository{persistence: p}

	return p
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

func (p *Persistence) StatusRepository() persistence.StatusRepository {
	return p.statusRepo
}

func (p *Persistence) SchemeRepository() persistence.SchemeRepository {
	return p.schemeRepo
}

func (p *Persistence) ProjectRepository() persistence.ProjectRepository {
	return p.projectRepo
}

func (p *Persistence) IssueRepository() persistence.IssueRepository {
	return p.issueRepo
}

// Close performs any necessary cleanup. There is nothing to clean up for
// file persistence.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (p *Persistence) path(parts ...string) string {
	return filepath.Join(append([]string{p.root}, parts...)...)
}

// readJSON decodes one document, reporting notFound when the file does
// not exist.
func (p *Persistence) readJSON(path string, out any, notFound error) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return notFound
		}

		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}

	return nil
}

func (p *Persistence) writeJSON(path string, in any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}

	data, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}

func (p *Persistence) remove(path string, notFound error) error {
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return notFound
		}

		return fmt.Errorf("failed to remove %s: %w", path, err)
	}

	return nil
}

// listIDs returns the document ids stored under a directory.
func (p *Persistence) listIDs(dir string) ([]string, error) {
	entries, err := os.ReadDir(p.path(dir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	ids := make([]string, 0, len(entries))

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}

		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}

	return ids, nil
}
