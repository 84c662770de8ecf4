package graph

import (
	"encoding/json"
	"fmt"

	"github.com/alfredjeanlab/tendergraph/internal/model"
)

// Data returns a deep copy of the graph as plain node and edge lists, in
// insertion order.
func (g *Graph) Data() *model.GraphData {
	d := &model.GraphData{
		Nodes: make([]*model.Node, 0, len(g.nodes)),
		Edges: make([]*model.Edge, 0, len(g.edges)),
	}
	for _, n := range g.Nodes() {
		d.Nodes = append(d.Nodes, n.Clone())
	}
	for _, e := range g.Edges() {
		d.Edges = append(d.Edges, e.Clone())
	}
	return d
}

// FromData builds a graph from its serialized form. Nodes and edges are
// copied; d is not retained.
func FromData(d *model.GraphData) (*Graph, error) {
	g := New()
	if d == nil {
		return g, nil
	}
	for _, n := range d.Nodes {
		if _, err := g.AddNode(n.Clone()); err != nil {
			return nil, fmt.Errorf("node %s: %w", n.ID, err)
		}
	}
	for _, e := range d.Edges {
		if _, err := g.AddEdge(e.Clone()); err != nil {
			return nil, fmt.Errorf("edge %s: %w", e.ID, err)
		}
	}
	return g, nil
}

// MarshalJSON encodes the graph as {"nodes": [...], "edges": [...]} with
// enums as their string tokens and timestamps in RFC 3339.
func (g *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.Data())
}

// UnmarshalJSON replaces the receiver's contents with the decoded graph.
func (g *Graph) UnmarshalJSON(b []byte) error {
	var d model.GraphData
	if err := json.Unmarshal(b, &d); err != nil {
		return err
	}
	decoded, err := FromData(&d)
	if err != nil {
		return err
	}
	*g = *decoded
	return nil
}
