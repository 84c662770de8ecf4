// Package client talks to a running tendergraph server over its HTTP API
// and gRPC health service.
package client

import (
	"context"

	"github.com/alfredjeanlab/tendergraph/internal/model"
	"github.com/alfredjeanlab/tendergraph/internal/project"
	"github.com/alfredjeanlab/tendergraph/internal/todo"
)

// Client is the subset of the server API the CLI uses in remote mode.
type Client interface {
	Health(ctx context.Context) (string, error)
	ListProjects(ctx context.Context) ([]*model.Project, error)

	Todos(ctx context.Context, projectID string) (*Todos, error)
	FilterTodos(ctx context.Context, projectID, where string) ([]*todo.Item, error)
	View(ctx context.Context, projectID string, view View) ([]*todo.Item, error)
	Export(ctx context.Context, projectID, format string) (string, error)

	Complete(ctx context.Context, projectID, nodeID string) (*project.StatusChange, error)
	UpdateStatus(ctx context.Context, projectID, nodeID string, status model.Status) (*project.StatusChange, error)
	SearchNodes(ctx context.Context, projectID, query string) ([]*model.Node, error)

	Close() error
}

// View names one of the server's item lists.
type View string

const (
	ViewCritical   View = "critical"
	ViewActionable View = "actionable"
	ViewDeadlines  View = "deadlines"
)

// Todos is the categorized to-do list with its summary.
type Todos struct {
	Categories []*todo.Category `json:"categories"`
	Summary    *todo.Summary    `json:"summary"`
}
