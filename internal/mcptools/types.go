package mcptools

import (
	"time"

	"github.com/alfredjeanlab/tendergraph/internal/model"
	"github.com/alfredjeanlab/tendergraph/internal/todo"
)

// ProjectInput names the project a tool operates on.
type ProjectInput struct {
	Project string `json:"project" jsonschema:"the tender project ID"`
}

// ListProjectsInput is the input for the list_projects MCP tool.
type ListProjectsInput struct{}

// ProjectInfo is one project in a list_projects result.
type ProjectInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Directory string `json:"directory,omitempty"`
	UpdatedAt string `json:"updatedAt"`
}

// ListProjectsOutput is the result of the list_projects MCP tool.
type ListProjectsOutput struct {
	Projects []ProjectInfo `json:"projects"`
}

// GetTodosInput is the input for the get_todos MCP tool.
type GetTodosInput struct {
	Project  string `json:"project" jsonschema:"the tender project ID"`
	Category string `json:"category,omitempty" jsonschema:"only return items of this category (e.g. Signatures, Attachments)"`
	Where    string `json:"where,omitempty" jsonschema:"CEL filter over item fields, e.g. priority == \"CRITICAL\" && !blocked"`
}

// TodoItem is the wire form of a to-do item.
type TodoItem struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Category  string   `json:"category"`
	Priority  string   `json:"priority"`
	Status    string   `json:"status"`
	Source    string   `json:"source,omitempty"`
	Deadline  string   `json:"deadline,omitempty"`
	BlockedBy []string `json:"blockedBy,omitempty"`
}

// TodosOutput is the result of every tool returning a list of items.
type TodosOutput struct {
	Items []TodoItem `json:"items"`
	Total int        `json:"total"`
}

// GetSummaryOutput is the result of the get_summary MCP tool.
type GetSummaryOutput struct {
	Summary todo.Summary `json:"summary"`
}

// UpdateStatusInput is the input for the update_status MCP tool.
type UpdateStatusInput struct {
	Project string `json:"project" jsonschema:"the tender project ID"`
	Node    string `json:"node" jsonschema:"node ID, or a title fragment that matches exactly one node"`
	Status  string `json:"status" jsonschema:"new status: not_started, in_progress, completed, not_applicable or blocked"`
}

// UpdateStatusOutput is the result of the update_status MCP tool.
type UpdateStatusOutput struct {
	NodeID    string   `json:"nodeId"`
	Title     string   `json:"title"`
	OldStatus string   `json:"oldStatus"`
	NewStatus string   `json:"newStatus"`
	Unblocked []string `json:"unblocked,omitempty"`
}

// SearchNodesInput is the input for the search_nodes MCP tool.
type SearchNodesInput struct {
	Project string `json:"project" jsonschema:"the tender project ID"`
	Query   string `json:"query" jsonschema:"case-insensitive substring of a node title or description"`
	Limit   int    `json:"limit,omitempty" jsonschema:"maximum number of results (default: 20)"`
}

// NodeInfo is one node in a search_nodes result.
type NodeInfo struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Source   string `json:"source,omitempty"`
	Location string `json:"location,omitempty"`
}

// SearchNodesOutput is the result of the search_nodes MCP tool.
type SearchNodesOutput struct {
	Nodes []NodeInfo `json:"nodes"`
	Total int        `json:"total"`
}

func toTodoItems(items []*todo.Item) []TodoItem {
	out := make([]TodoItem, 0, len(items))
	for _, it := range items {
		ti := TodoItem{
			ID:        it.ID,
			Title:     it.Title,
			Category:  it.Category,
			Priority:  it.Priority.String(),
			Status:    it.Status.String(),
			Source:    it.SourceDocument,
			BlockedBy: it.BlockedBy,
		}
		if it.Deadline != nil {
			ti.Deadline = it.Deadline.Format(time.DateOnly)
		}
		out = append(out, ti)
	}
	return out
}

func toNodeInfo(n *model.Node) NodeInfo {
	return NodeInfo{
		ID:       n.ID,
		Type:     n.Type.String(),
		Title:    n.Title,
		Status:   n.Status.String(),
		Source:   n.SourceDocument,
		Location: n.SourceLocation,
	}
}
