package mcptools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/alfredjeanlab/tendergraph/internal/model"
	"github.com/alfredjeanlab/tendergraph/internal/project"
	"github.com/alfredjeanlab/tendergraph/internal/todo"
)

const defaultSearchLimit = 20

// Tools holds the project service used by MCP tool handlers.
type Tools struct {
	svc *project.Service
}

// NewTools wraps svc for MCP.
func NewTools(svc *project.Service) *Tools {
	return &Tools{svc: svc}
}

func requireProject(p string) error {
	if strings.TrimSpace(p) == "" {
		return fmt.Errorf("project is required")
	}
	return nil
}

// ListProjects returns every known project.
func (t *Tools) ListProjects(ctx context.Context, _ *mcp.CallToolRequest, _ ListProjectsInput) (*mcp.CallToolResult, ListProjectsOutput, error) {
	ps, err := t.svc.Projects(ctx)
	if err != nil {
		return nil, ListProjectsOutput{}, err
	}
	out := ListProjectsOutput{Projects: make([]ProjectInfo, 0, len(ps))}
	for _, p := range ps {
		out.Projects = append(out.Projects, ProjectInfo{
			ID:        p.ID,
			Name:      p.Name,
			Directory: p.Directory,
			UpdatedAt: p.UpdatedAt.Format(time.RFC3339),
		})
	}
	return nil, out, nil
}

// GetTodos returns the project's to-do items, optionally narrowed to one
// category and a CEL filter.
func (t *Tools) GetTodos(ctx context.Context, _ *mcp.CallToolRequest, in GetTodosInput) (*mcp.CallToolResult, TodosOutput, error) {
	if err := requireProject(in.Project); err != nil {
		return nil, TodosOutput{}, err
	}
	gen, err := t.svc.Todos(ctx, in.Project)
	if err != nil {
		return nil, TodosOutput{}, err
	}

	var items []*todo.Item
	for _, c := range gen.Generate() {
		if in.Category != "" && !strings.EqualFold(c.Name, in.Category) {
			continue
		}
		items = append(items, c.Items...)
	}
	if in.Where != "" {
		f, err := todo.CompileFilter(in.Where)
		if err != nil {
			return nil, TodosOutput{}, err
		}
		if items, err = f.Apply(items); err != nil {
			return nil, TodosOutput{}, err
		}
	}
	return nil, todosOutput(items), nil
}

// GetActionable returns items that can be worked on right now.
func (t *Tools) GetActionable(ctx context.Context, _ *mcp.CallToolRequest, in ProjectInput) (*mcp.CallToolResult, TodosOutput, error) {
	return t.view(ctx, in.Project, (*todo.Generator).ActionableNow)
}

// GetCritical returns open critical items.
func (t *Tools) GetCritical(ctx context.Context, _ *mcp.CallToolRequest, in ProjectInput) (*mcp.CallToolResult, TodosOutput, error) {
	return t.view(ctx, in.Project, (*todo.Generator).CriticalItems)
}

// GetDeadlines returns unfinished items with a deadline, earliest first.
func (t *Tools) GetDeadlines(ctx context.Context, _ *mcp.CallToolRequest, in ProjectInput) (*mcp.CallToolResult, TodosOutput, error) {
	return t.view(ctx, in.Project, (*todo.Generator).ByDeadline)
}

func (t *Tools) view(ctx context.Context, project string, fn func(*todo.Generator) []*todo.Item) (*mcp.CallToolResult, TodosOutput, error) {
	if err := requireProject(project); err != nil {
		return nil, TodosOutput{}, err
	}
	gen, err := t.svc.Todos(ctx, project)
	if err != nil {
		return nil, TodosOutput{}, err
	}
	return nil, todosOutput(fn(gen)), nil
}

// GetSummary returns overall and per-category progress.
func (t *Tools) GetSummary(ctx context.Context, _ *mcp.CallToolRequest, in ProjectInput) (*mcp.CallToolResult, GetSummaryOutput, error) {
	if err := requireProject(in.Project); err != nil {
		return nil, GetSummaryOutput{}, err
	}
	gen, err := t.svc.Todos(ctx, in.Project)
	if err != nil {
		return nil, GetSummaryOutput{}, err
	}
	return nil, GetSummaryOutput{Summary: *gen.Summary()}, nil
}

// UpdateStatus changes the status of the node in.Node resolves to.
func (t *Tools) UpdateStatus(ctx context.Context, _ *mcp.CallToolRequest, in UpdateStatusInput) (*mcp.CallToolResult, UpdateStatusOutput, error) {
	if err := requireProject(in.Project); err != nil {
		return nil, UpdateStatusOutput{}, err
	}
	status := model.Status(in.Status)
	if !status.IsValid() {
		return nil, UpdateStatusOutput{}, fmt.Errorf("invalid status %q", in.Status)
	}
	n, err := t.svc.Resolve(ctx, in.Project, in.Node)
	if err != nil {
		return nil, UpdateStatusOutput{}, err
	}
	change, err := t.svc.UpdateStatus(ctx, in.Project, n.ID, status)
	if err != nil {
		return nil, UpdateStatusOutput{}, err
	}
	return nil, UpdateStatusOutput{
		NodeID:    change.Node.ID,
		Title:     change.Node.Title,
		OldStatus: change.OldStatus.String(),
		NewStatus: change.Node.Status.String(),
		Unblocked: change.Unblocked,
	}, nil
}

// SearchNodes finds nodes by title or description substring.
func (t *Tools) SearchNodes(ctx context.Context, _ *mcp.CallToolRequest, in SearchNodesInput) (*mcp.CallToolResult, SearchNodesOutput, error) {
	if err := requireProject(in.Project); err != nil {
		return nil, SearchNodesOutput{}, err
	}
	if strings.TrimSpace(in.Query) == "" {
		return nil, SearchNodesOutput{}, fmt.Errorf("query is required")
	}
	limit := in.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	g, err := t.svc.Graph(ctx, in.Project)
	if err != nil {
		return nil, SearchNodesOutput{}, err
	}
	matches := g.FindNodes(in.Query)
	out := SearchNodesOutput{Nodes: make([]NodeInfo, 0, min(limit, len(matches))), Total: len(matches)}
	for _, n := range matches {
		if len(out.Nodes) == limit {
			break
		}
		out.Nodes = append(out.Nodes, toNodeInfo(n))
	}
	return nil, out, nil
}

func todosOutput(items []*todo.Item) TodosOutput {
	return TodosOutput{Items: toTodoItems(items), Total: len(items)}
}
