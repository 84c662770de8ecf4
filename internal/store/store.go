// Package store defines the persistence interface for tender projects and
// their requirement graphs.
package store

import (
	"context"
	"errors"

	"github.com/alfredjeanlab/tendergraph/internal/model"
)

// ErrNotFound is returned when a project does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface for projects, graphs and
// document content hashes.
type Store interface {
	// Projects
	ListProjects(ctx context.Context) ([]*model.Project, error)
	CreateProject(ctx context.Context, p *model.Project) error
	GetProject(ctx context.Context, id string) (*model.Project, error)
	DeleteProject(ctx context.Context, id string) error

	// Graph. SaveGraph replaces the project's nodes and edges wholesale;
	// LoadGraph returns them in the order they were saved.
	LoadGraph(ctx context.Context, projectID string) (*model.GraphData, error)
	SaveGraph(ctx context.Context, projectID string, data *model.GraphData) error

	// Document hashes used for incremental extraction, keyed by path.
	DocumentHashes(ctx context.Context, projectID string) (map[string]string, error)
	SetDocumentHash(ctx context.Context, projectID, path, hash string) error
	DeleteDocumentHash(ctx context.Context, projectID, path string) error

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
