package project

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/tendergraph/internal/model"
)

// Stats summarizes a project's graph.
type Stats struct {
	Project    string                 `json:"project"`
	Nodes      int                    `json:"nodes"`
	Edges      int                    `json:"edges"`
	ByType     map[model.NodeType]int `json:"by_type"`
	Documents  int                    `json:"documents"`
	Completion model.CompletionStats  `json:"completion"`
}

// Stats computes node and edge counts and completion for a project.
func (s *Service) Stats(ctx context.Context, project string) (*Stats, error) {
	g, err := s.Graph(ctx, project)
	if err != nil {
		return nil, err
	}
	st := &Stats{
		Project:    project,
		Nodes:      g.NodeCount(),
		Edges:      g.EdgeCount(),
		ByType:     make(map[model.NodeType]int),
		Completion: g.CompletionStats(),
	}
	docs := make(map[string]bool)
	for _, n := range g.Nodes() {
		st.ByType[n.Type]++
		if n.SourceDocument != "" {
			docs[n.SourceDocument] = true
		}
	}
	st.Documents = len(docs)
	return st, nil
}

// CriticalPath returns the nodes most others wait on.
func (s *Service) CriticalPath(ctx context.Context, project string) ([]model.CriticalNode, error) {
	g, err := s.Graph(ctx, project)
	if err != nil {
		return nil, err
	}
	return g.CriticalPath(), nil
}

// Report formats.
const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// Report renders the project's to-do list as markdown or HTML.
func (s *Service) Report(ctx context.Context, project, format string) (string, error) {
	gen, err := s.Todos(ctx, project)
	if err != nil {
		return "", err
	}
	switch format {
	case "", FormatMarkdown, "md":
		return gen.Markdown(), nil
	case FormatHTML:
		return gen.HTML()
	default:
		return "", InputError(fmt.Sprintf("unknown report format %q (want markdown or html)", format))
	}
}
