package sync

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/alfredjeanlab/tendergraph/internal/model"
	"github.com/alfredjeanlab/tendergraph/internal/store"
)

// FormatVersion is written into every export header.
const FormatVersion = "1"

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version      string    `json:"version"`
	Type         string    `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	ProjectCount int       `json:"project_count"`
	NodeCount    int       `json:"node_count"`
	EdgeCount    int       `json:"edge_count"`
}

// record wraps a single JSONL line with a type discriminator. Node and edge
// records carry the project they belong to.
type record struct {
	Type    string `json:"type"`
	Project string `json:"project,omitempty"`
	Data    any    `json:"data"`
}

type projectExport struct {
	project *model.Project
	graph   *model.GraphData
}

// ExportJSONL writes the given projects (all projects when none are named)
// as JSONL to w: a header, then for each project sorted by ID one project
// record followed by its node and edge records in graph order.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer, projectIDs ...string) error {
	var projects []*model.Project
	if len(projectIDs) == 0 {
		all, err := s.ListProjects(ctx)
		if err != nil {
			return fmt.Errorf("list projects: %w", err)
		}
		projects = all
	} else {
		for _, id := range projectIDs {
			p, err := s.GetProject(ctx, id)
			if err != nil {
				return fmt.Errorf("get project %s: %w", id, err)
			}
			projects = append(projects, p)
		}
	}
	sort.Slice(projects, func(i, j int) bool {
		return projects[i].ID < projects[j].ID
	})

	exports := make([]projectExport, 0, len(projects))
	var nodes, edges int
	for _, p := range projects {
		g, err := s.LoadGraph(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("load graph for %s: %w", p.ID, err)
		}
		nodes += len(g.Nodes)
		edges += len(g.Edges)
		exports = append(exports, projectExport{project: p, graph: g})
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:      FormatVersion,
		Type:         "header",
		Timestamp:    time.Now().UTC(),
		ProjectCount: len(exports),
		NodeCount:    nodes,
		EdgeCount:    edges,
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, ex := range exports {
		if err := enc.Encode(record{Type: "project", Data: ex.project}); err != nil {
			return fmt.Errorf("encode project %s: %w", ex.project.ID, err)
		}
		for _, n := range ex.graph.Nodes {
			if err := enc.Encode(record{Type: "node", Project: ex.project.ID, Data: n}); err != nil {
				return fmt.Errorf("encode node %s: %w", n.ID, err)
			}
		}
		for _, e := range ex.graph.Edges {
			if err := enc.Encode(record{Type: "edge", Project: ex.project.ID, Data: e}); err != nil {
				return fmt.Errorf("encode edge %s: %w", e.ID, err)
			}
		}
	}

	return nil
}

// rawRecord is record with the payload left undecoded.
type rawRecord struct {
	Type    string          `json:"type"`
	Version string          `json:"version"`
	Project string          `json:"project"`
	Data    json.RawMessage `json:"data"`
}

// ImportJSONL restores an ExportJSONL stream. Each project in the stream is
// created when missing and its graph replaced, all in one transaction. It
// returns the number of projects restored.
func ImportJSONL(ctx context.Context, s store.Store, r io.Reader) (int, error) {
	var (
		order  []string
		infos  = make(map[string]*model.Project)
		graphs = make(map[string]*model.GraphData)
	)
	graphFor := func(id string) (*model.GraphData, error) {
		g, ok := graphs[id]
		if !ok {
			return nil, fmt.Errorf("record for project %q before its project record", id)
		}
		return g, nil
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var rec rawRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return 0, fmt.Errorf("line %d: %w", line, err)
		}
		switch rec.Type {
		case "header":
			if rec.Version != FormatVersion {
				return 0, fmt.Errorf("line %d: unsupported export version %q", line, rec.Version)
			}
		case "project":
			var p model.Project
			if err := json.Unmarshal(rec.Data, &p); err != nil {
				return 0, fmt.Errorf("line %d: %w", line, err)
			}
			if _, seen := infos[p.ID]; !seen {
				order = append(order, p.ID)
			}
			infos[p.ID] = &p
			graphs[p.ID] = &model.GraphData{Nodes: []*model.Node{}, Edges: []*model.Edge{}}
		case "node":
			g, err := graphFor(rec.Project)
			if err != nil {
				return 0, fmt.Errorf("line %d: %w", line, err)
			}
			var n model.Node
			if err := json.Unmarshal(rec.Data, &n); err != nil {
				return 0, fmt.Errorf("line %d: %w", line, err)
			}
			if err := model.ValidateNode(&n); err != nil {
				return 0, fmt.Errorf("line %d: node %s: %w", line, n.ID, err)
			}
			g.Nodes = append(g.Nodes, &n)
		case "edge":
			g, err := graphFor(rec.Project)
			if err != nil {
				return 0, fmt.Errorf("line %d: %w", line, err)
			}
			var e model.Edge
			if err := json.Unmarshal(rec.Data, &e); err != nil {
				return 0, fmt.Errorf("line %d: %w", line, err)
			}
			if err := model.ValidateEdge(&e); err != nil {
				return 0, fmt.Errorf("line %d: edge %s: %w", line, e.ID, err)
			}
			g.Edges = append(g.Edges, &e)
		default:
			return 0, fmt.Errorf("line %d: unknown record type %q", line, rec.Type)
		}
	}
	if err := sc.Err(); err != nil {
		return 0, fmt.Errorf("read export: %w", err)
	}

	err := s.RunInTransaction(ctx, func(tx store.Store) error {
		for _, id := range order {
			if _, err := tx.GetProject(ctx, id); errors.Is(err, store.ErrNotFound) {
				if err := tx.CreateProject(ctx, infos[id]); err != nil {
					return fmt.Errorf("create project %s: %w", id, err)
				}
			} else if err != nil {
				return err
			}
			if err := tx.SaveGraph(ctx, id, graphs[id]); err != nil {
				return fmt.Errorf("save graph for %s: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(order), nil
}
