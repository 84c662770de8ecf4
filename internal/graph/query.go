package graph

import (
	"math"
	"sort"
	"strings"

	"github.com/alfredjeanlab/tendergraph/internal/model"
)

// criticalPathLimit caps the number of nodes CriticalPath returns.
const criticalPathLimit = 10

// Dependencies returns the nodes id directly depends on through depends_on,
// requires or conditional_on edges. Self-loops are ignored.
func (g *Graph) Dependencies(id string) []*model.Node {
	var out []*model.Node
	seen := make(map[string]bool)
	for _, e := range g.OutgoingEdges(id) {
		if !e.Type.IsDependency() || e.TargetID == id || seen[e.TargetID] {
			continue
		}
		seen[e.TargetID] = true
		out = append(out, g.nodes[e.TargetID])
	}
	return out
}

// Dependents returns the nodes that directly depend on id.
func (g *Graph) Dependents(id string) []*model.Node {
	var out []*model.Node
	seen := make(map[string]bool)
	for _, e := range g.IncomingEdges(id) {
		if !e.Type.IsDependency() || e.SourceID == id || seen[e.SourceID] {
			continue
		}
		seen[e.SourceID] = true
		out = append(out, g.nodes[e.SourceID])
	}
	return out
}

// FindNodes returns nodes whose title or description contains query,
// ignoring case.
func (g *Graph) FindNodes(query string) []*model.Node {
	q := strings.ToLower(query)
	return g.filter(func(n *model.Node) bool {
		return strings.Contains(strings.ToLower(n.Title), q) ||
			strings.Contains(strings.ToLower(n.Description), q)
	})
}

// NodesByType returns nodes of the given type.
func (g *Graph) NodesByType(t model.NodeType) []*model.Node {
	return g.filter(func(n *model.Node) bool { return n.Type == t })
}

// NodesByStatus returns nodes with the given status.
func (g *Graph) NodesByStatus(s model.Status) []*model.Node {
	return g.filter(func(n *model.Node) bool { return n.Status == s })
}

// NodesByDocument returns nodes extracted from the given document.
func (g *Graph) NodesByDocument(path string) []*model.Node {
	return g.filter(func(n *model.Node) bool { return n.SourceDocument == path })
}

func (g *Graph) filter(keep func(*model.Node) bool) []*model.Node {
	var out []*model.Node
	for _, n := range g.Nodes() {
		if keep(n) {
			out = append(out, n)
		}
	}
	return out
}

// ActionableItems returns nodes that are not started or in progress and
// whose dependencies are all completed or not applicable.
func (g *Graph) ActionableItems() []*model.Node {
	return g.filter(func(n *model.Node) bool {
		if n.Status != model.StatusNotStarted && n.Status != model.StatusInProgress {
			return false
		}
		for _, dep := range g.Dependencies(n.ID) {
			if !dep.Status.IsResolved() {
				return false
			}
		}
		return true
	})
}

// CompletionStats counts nodes by status. The percentage only considers
// applicable nodes, so items ruled out by conditions do not lower it.
func (g *Graph) CompletionStats() model.CompletionStats {
	byStatus := make(map[model.Status]int, len(model.Statuses))
	for _, s := range model.Statuses {
		byStatus[s] = 0
	}
	for _, n := range g.nodes {
		byStatus[n.Status]++
	}

	total := len(g.nodes)
	completed := byStatus[model.StatusCompleted]
	applicable := total - byStatus[model.StatusNotApplicable]

	var pct float64
	if applicable > 0 {
		pct = round1(float64(completed) / float64(applicable) * 100)
	}
	return model.CompletionStats{
		TotalItems:           total,
		ByStatus:             byStatus,
		ApplicableItems:      applicable,
		CompletedItems:       completed,
		CompletionPercentage: pct,
	}
}

// CriticalPath ranks incomplete nodes by how many nodes transitively depend
// on them and returns the top ten.
func (g *Graph) CriticalPath() []model.CriticalNode {
	var ranked []model.CriticalNode
	for _, n := range g.Nodes() {
		if n.Status == model.StatusCompleted {
			continue
		}
		ranked = append(ranked, model.CriticalNode{Node: n, Dependents: len(g.TransitiveDependents(n.ID))})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Dependents != b.Dependents {
			return a.Dependents > b.Dependents
		}
		if a.Node.Title != b.Node.Title {
			return a.Node.Title < b.Node.Title
		}
		return a.Node.ID < b.Node.ID
	})
	if len(ranked) > criticalPathLimit {
		ranked = ranked[:criticalPathLimit]
	}
	return ranked
}

// TransitiveDependents returns the ids of every node that depends on id,
// directly or indirectly. Cycles are tolerated; id itself is never included.
func (g *Graph) TransitiveDependents(id string) map[string]bool {
	visited := map[string]bool{id: true}
	out := make(map[string]bool)
	stack := []string{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, dep := range g.Dependents(cur) {
			if visited[dep.ID] {
				continue
			}
			visited[dep.ID] = true
			out[dep.ID] = true
			stack = append(stack, dep.ID)
		}
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
