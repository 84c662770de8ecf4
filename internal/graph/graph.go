// Package graph holds the in-memory requirement graph: typed nodes and edges
// with forward and reverse adjacency indices, status propagation, merging
// and statistics.
//
// A Graph is not safe for concurrent use. Callers that share one instance
// across goroutines must serialize access themselves.
package graph

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/alfredjeanlab/tendergraph/internal/idgen"
	"github.com/alfredjeanlab/tendergraph/internal/model"
)

var (
	// ErrNotFound is returned by mutations that reference an unknown node.
	ErrNotFound = errors.New("node not found")
	// ErrSelfMerge is returned when a node would be merged into itself.
	ErrSelfMerge = errors.New("cannot merge a node into itself")
)

// Graph is a directed multigraph of requirement nodes.
type Graph struct {
	nodes map[string]*model.Node
	edges map[string]*model.Edge

	// Insertion order, used to keep listings deterministic.
	nodeOrder []string
	edgeOrder []string

	// node id -> ids of outgoing / incoming edges
	forward map[string][]string
	reverse map[string][]string
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes:   make(map[string]*model.Node),
		edges:   make(map[string]*model.Edge),
		forward: make(map[string][]string),
		reverse: make(map[string][]string),
	}
}

// NodeOption customizes a node built by CreateNode.
type NodeOption func(*model.Node)

// WithID sets an explicit node id instead of a generated one.
func WithID(id string) NodeOption {
	return func(n *model.Node) { n.ID = id }
}

// WithStatus sets the initial status.
func WithStatus(s model.Status) NodeOption {
	return func(n *model.Node) { n.Status = s }
}

// WithSource records where the node was found.
func WithSource(document, location, text string) NodeOption {
	return func(n *model.Node) {
		n.SourceDocument = document
		n.SourceLocation = location
		n.SourceText = text
	}
}

// WithCheckboxState sets the tri-state checkbox value.
func WithCheckboxState(v *bool) NodeOption {
	return func(n *model.Node) { n.CheckboxState = v }
}

// WithConditionMet sets the tri-state condition value.
func WithConditionMet(v *bool) NodeOption {
	return func(n *model.Node) { n.ConditionMet = v }
}

// WithDeadline sets the deadline.
func WithDeadline(t time.Time) NodeOption {
	return func(n *model.Node) { n.Deadline = &t }
}

// WithConfidence sets the extraction confidence.
func WithConfidence(c float64) NodeOption {
	return func(n *model.Node) { n.Confidence = c }
}

// WithTags adds tags to the node.
func WithTags(tags ...string) NodeOption {
	return func(n *model.Node) { n.Tags = unionTags(n.Tags, tags) }
}

// WithMetadata sets a metadata key.
func WithMetadata(key string, value any) NodeOption {
	return func(n *model.Node) {
		if n.Metadata == nil {
			n.Metadata = make(map[string]any)
		}
		n.Metadata[key] = value
	}
}

// AddNode inserts n and initializes its adjacency lists. Missing ids,
// statuses and timestamps are filled in. A node with an existing id
// replaces the stored one and keeps its edges.
func (g *Graph) AddNode(n *model.Node) (*model.Node, error) {
	if !n.Type.IsValid() {
		return nil, fmt.Errorf("add node: invalid type %q", n.Type)
	}
	if n.ID == "" {
		n.ID = idgen.NodeID()
	}
	if n.Status == "" {
		n.Status = model.StatusNotStarted
	}
	now := time.Now().UTC()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = n.CreatedAt
	}

	if _, exists := g.nodes[n.ID]; !exists {
		g.nodeOrder = append(g.nodeOrder, n.ID)
		if g.forward[n.ID] == nil {
			g.forward[n.ID] = []string{}
		}
		if g.reverse[n.ID] == nil {
			g.reverse[n.ID] = []string{}
		}
	}
	g.nodes[n.ID] = n
	return n, nil
}

// CreateNode builds a node of the given type and adds it to the graph.
func (g *Graph) CreateNode(typ model.NodeType, title, description string, opts ...NodeOption) (*model.Node, error) {
	n := &model.Node{
		Type:        typ,
		Title:       title,
		Description: description,
		Status:      model.StatusNotStarted,
		Confidence:  1.0,
	}
	for _, opt := range opts {
		opt(n)
	}
	return g.AddNode(n)
}

// EdgeOption customizes an edge built by Connect.
type EdgeOption func(*model.Edge)

// WithEdgeID sets an explicit edge id.
func WithEdgeID(id string) EdgeOption {
	return func(e *model.Edge) { e.ID = id }
}

// WithDescription sets the edge description.
func WithDescription(d string) EdgeOption {
	return func(e *model.Edge) { e.Description = d }
}

// WithEdgeConfidence sets the edge confidence.
func WithEdgeConfidence(c float64) EdgeOption {
	return func(e *model.Edge) { e.Confidence = c }
}

// AddEdge inserts e and records it in both adjacency indices. Endpoints are
// not checked; reads skip edges whose endpoints are missing.
func (g *Graph) AddEdge(e *model.Edge) (*model.Edge, error) {
	if !e.Type.IsValid() {
		return nil, fmt.Errorf("add edge: invalid type %q", e.Type)
	}
	if e.ID == "" {
		e.ID = idgen.EdgeID()
	}
	if old, exists := g.edges[e.ID]; exists {
		g.unlinkEdge(old)
	} else {
		g.edgeOrder = append(g.edgeOrder, e.ID)
	}
	g.edges[e.ID] = e
	g.forward[e.SourceID] = append(g.forward[e.SourceID], e.ID)
	g.reverse[e.TargetID] = append(g.reverse[e.TargetID], e.ID)
	return e, nil
}

// Connect creates an edge from sourceID to targetID.
func (g *Graph) Connect(sourceID, targetID string, typ model.EdgeType, opts ...EdgeOption) (*model.Edge, error) {
	e := &model.Edge{
		SourceID:   sourceID,
		TargetID:   targetID,
		Type:       typ,
		Confidence: 1.0,
	}
	for _, opt := range opts {
		opt(e)
	}
	return g.AddEdge(e)
}

// GetNode returns the stored node. The returned pointer is owned by the
// graph; change it only through Graph methods.
func (g *Graph) GetNode(id string) (*model.Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// GetEdge returns the stored edge.
func (g *Graph) GetEdge(id string) (*model.Edge, bool) {
	e, ok := g.edges[id]
	return e, ok
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges, dangling ones included.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []*model.Node {
	out := make([]*model.Node, 0, len(g.nodes))
	for _, id := range g.nodeOrder {
		if n, ok := g.nodes[id]; ok {
			out = append(out, n)
		}
	}
	return out
}

// Edges returns all edges in insertion order, dangling ones included.
func (g *Graph) Edges() []*model.Edge {
	out := make([]*model.Edge, 0, len(g.edges))
	for _, id := range g.edgeOrder {
		if e, ok := g.edges[id]; ok {
			out = append(out, e)
		}
	}
	return out
}

// OutgoingEdges returns edges leaving id whose target exists.
func (g *Graph) OutgoingEdges(id string) []*model.Edge {
	var out []*model.Edge
	for _, eid := range g.forward[id] {
		e, ok := g.edges[eid]
		if !ok {
			continue
		}
		if _, ok := g.nodes[e.TargetID]; !ok {
			continue
		}
		out = append(out, e)
	}
	return out
}

// IncomingEdges returns edges entering id whose source exists.
func (g *Graph) IncomingEdges(id string) []*model.Edge {
	var out []*model.Edge
	for _, eid := range g.reverse[id] {
		e, ok := g.edges[eid]
		if !ok {
			continue
		}
		if _, ok := g.nodes[e.SourceID]; !ok {
			continue
		}
		out = append(out, e)
	}
	return out
}

// RemoveNode deletes a node together with every edge touching it.
func (g *Graph) RemoveNode(id string) error {
	if _, ok := g.nodes[id]; !ok {
		return ErrNotFound
	}
	g.removeNodes(map[string]bool{id: true})
	return nil
}

// RemoveNodesByDocument deletes every node whose source document is path,
// along with their edges, and returns how many nodes were removed.
func (g *Graph) RemoveNodesByDocument(path string) int {
	drop := make(map[string]bool)
	for id, n := range g.nodes {
		if n.SourceDocument == path {
			drop[id] = true
		}
	}
	if len(drop) > 0 {
		g.removeNodes(drop)
	}
	return len(drop)
}

func (g *Graph) removeNodes(drop map[string]bool) {
	for id := range drop {
		edgeIDs := append(slices.Clone(g.forward[id]), g.reverse[id]...)
		for _, eid := range edgeIDs {
			if e, ok := g.edges[eid]; ok {
				g.deleteEdge(e)
			}
		}
		delete(g.nodes, id)
		delete(g.forward, id)
		delete(g.reverse, id)
	}
	g.nodeOrder = slices.DeleteFunc(g.nodeOrder, func(id string) bool { return drop[id] })
}

func (g *Graph) deleteEdge(e *model.Edge) {
	g.unlinkEdge(e)
	delete(g.edges, e.ID)
	g.edgeOrder = slices.DeleteFunc(g.edgeOrder, func(id string) bool { return id == e.ID })
}

// unlinkEdge removes e from both adjacency indices.
func (g *Graph) unlinkEdge(e *model.Edge) {
	g.forward[e.SourceID] = removeID(g.forward[e.SourceID], e.ID)
	g.reverse[e.TargetID] = removeID(g.reverse[e.TargetID], e.ID)
}

func removeID(ids []string, id string) []string {
	return slices.DeleteFunc(ids, func(s string) bool { return s == id })
}

// unionTags merges b into a, keeping the result sorted and unique.
func unionTags(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	out := slices.Clone(a)
	for _, t := range b {
		if t != "" && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return out
}
