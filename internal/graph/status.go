package graph

import (
	"fmt"

	"github.com/alfredjeanlab/tendergraph/internal/model"
)

// UpdateStatus sets the status of a node. Completing a node unblocks each
// blocked direct dependent whose dependencies are now all completed; those
// dependents move to not_started, never further. Propagation is one hop
// per call. The ids of unblocked dependents are returned.
func (g *Graph) UpdateStatus(id string, status model.Status) ([]string, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("update status: invalid status %q", status)
	}
	n, ok := g.nodes[id]
	if !ok {
		return nil, ErrNotFound
	}
	n.Status = status
	n.Touch()

	if status != model.StatusCompleted {
		return nil, nil
	}

	var unblocked []string
	for _, dep := range g.Dependents(id) {
		if dep.Status != model.StatusBlocked || !g.allDependenciesCompleted(dep.ID) {
			continue
		}
		dep.Status = model.StatusNotStarted
		dep.Touch()
		unblocked = append(unblocked, dep.ID)
	}
	return unblocked, nil
}

func (g *Graph) allDependenciesCompleted(id string) bool {
	for _, d := range g.Dependencies(id) {
		if d.Status != model.StatusCompleted {
			return false
		}
	}
	return true
}

// EvaluateConditions applies condition outcomes to the nodes that are
// conditional on them. A condition explicitly not met makes its dependents
// not_applicable; otherwise not_applicable dependents revert to
// not_started. It returns the number of nodes whose status changed.
func (g *Graph) EvaluateConditions() int {
	changed := 0
	for _, cond := range g.NodesByType(model.NodeCondition) {
		unmet := cond.ConditionMet != nil && !*cond.ConditionMet
		for _, e := range g.IncomingEdges(cond.ID) {
			if e.Type != model.EdgeConditionalOn {
				continue
			}
			dep := g.nodes[e.SourceID]
			switch {
			case unmet && dep.Status != model.StatusNotApplicable:
				dep.Status = model.StatusNotApplicable
			case !unmet && dep.Status == model.StatusNotApplicable:
				dep.Status = model.StatusNotStarted
			default:
				continue
			}
			dep.Touch()
			changed++
		}
	}
	return changed
}

// SetConditionMet records whether a condition holds. Pass nil to mark it
// unknown. Call EvaluateConditions afterwards to apply the outcome.
func (g *Graph) SetConditionMet(id string, met *bool) error {
	n, ok := g.nodes[id]
	if !ok {
		return ErrNotFound
	}
	if n.Type != model.NodeCondition {
		return fmt.Errorf("set condition: node %s is a %s, not a condition", id, n.Type)
	}
	n.ConditionMet = met
	n.Touch()
	return nil
}

// SetCheckboxState records a checkbox value. Checking a box completes it
// through UpdateStatus so propagation runs.
func (g *Graph) SetCheckboxState(id string, checked *bool) ([]string, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, ErrNotFound
	}
	if n.Type != model.NodeCheckbox {
		return nil, fmt.Errorf("set checkbox: node %s is a %s, not a checkbox", id, n.Type)
	}
	n.CheckboxState = checked
	n.Touch()
	if checked != nil && *checked {
		return g.UpdateStatus(id, model.StatusCompleted)
	}
	return nil, nil
}

// SetNotes replaces the free-text notes of a node.
func (g *Graph) SetNotes(id, notes string) error {
	n, ok := g.nodes[id]
	if !ok {
		return ErrNotFound
	}
	n.Notes = notes
	n.Touch()
	return nil
}
