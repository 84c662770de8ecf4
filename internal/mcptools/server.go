// Package mcptools exposes tender to-do views over the Model Context
// Protocol.
package mcptools

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/alfredjeanlab/tendergraph/internal/project"
)

// NewServer creates an MCP server with every tender tool registered.
func NewServer(svc *project.Service, version string) *mcp.Server {
	t := NewTools(svc)
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "tendergraph",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_projects",
		Description: "List all tender projects known to the store.",
	}, t.ListProjects)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_todos",
		Description: "Return the to-do items of a tender project. Optionally restrict to one category or filter with a CEL expression over priority, status, category, title, source_document, tags, blocked and has_deadline.",
	}, t.GetTodos)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_actionable",
		Description: "Return items that are actionable now: not finished and with every dependency completed.",
	}, t.GetActionable)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_critical",
		Description: "Return open CRITICAL items: mandatory signatures, exclusion criteria and imminent deadlines.",
	}, t.GetCritical)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_deadlines",
		Description: "Return unfinished items with a deadline, earliest first.",
	}, t.GetDeadlines)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_summary",
		Description: "Return overall completion, critical counts and per-category progress.",
	}, t.GetSummary)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_status",
		Description: "Set the status of one node, identified by ID or by a title fragment matching exactly one node. Completing a node unblocks its dependents.",
	}, t.UpdateStatus)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_nodes",
		Description: "Find nodes whose title or description contains the query, ignoring case.",
	}, t.SearchNodes)

	return server
}

// HTTPHandler serves server over the streamable HTTP transport.
func HTTPHandler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)
}

// RunStdio serves on stdin/stdout until stdin closes or ctx is cancelled.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}
