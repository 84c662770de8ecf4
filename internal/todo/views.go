package todo

import (
	"cmp"
	"slices"
	"strings"

	"github.com/alfredjeanlab/tendergraph/internal/model"
)

// ActionableNow returns items the graph considers actionable that also have
// no unfinished dependency, sorted by priority then title.
func (gen *Generator) ActionableNow() []*Item {
	var out []*Item
	for _, n := range gen.g.ActionableItems() {
		it := gen.Item(n)
		if len(it.BlockedBy) == 0 {
			out = append(out, it)
		}
	}
	sortByPriority(out)
	return out
}

// CriticalItems returns open CRITICAL items sorted by title.
func (gen *Generator) CriticalItems() []*Item {
	var out []*Item
	for _, n := range gen.g.Nodes() {
		if n.Status == model.StatusCompleted || n.Status == model.StatusNotApplicable {
			continue
		}
		if gen.Priority(n) == PriorityCritical {
			out = append(out, gen.Item(n))
		}
	}
	slices.SortStableFunc(out, func(a, b *Item) int { return strings.Compare(a.Title, b.Title) })
	return out
}

// ByDeadline returns unfinished items that carry a deadline, earliest first.
func (gen *Generator) ByDeadline() []*Item {
	var out []*Item
	for _, n := range gen.g.Nodes() {
		if n.Deadline != nil && n.Status != model.StatusCompleted {
			out = append(out, gen.Item(n))
		}
	}
	slices.SortStableFunc(out, func(a, b *Item) int {
		return cmp.Or(a.Deadline.Compare(*b.Deadline), strings.Compare(a.Title, b.Title))
	})
	return out
}

// CategorySummary is the per-category line of a Summary.
type CategorySummary struct {
	Name       string  `json:"name"`
	Total      int     `json:"total"`
	Completed  int     `json:"completed"`
	Percentage float64 `json:"percentage"`
}

// Summary is a flat digest of to-do progress.
type Summary struct {
	TotalItems           int               `json:"total_items"`
	CompletedItems       int               `json:"completed_items"`
	CompletionPercentage float64           `json:"completion_percentage"`
	CriticalItems        int               `json:"critical_items"`
	CriticalCompleted    int               `json:"critical_completed"`
	ActionableNow        int               `json:"actionable_now"`
	Categories           []CategorySummary `json:"categories"`
}

// Summary aggregates the categorized view. CriticalItems counts open
// critical items; CriticalCompleted counts critical items already done.
func (gen *Generator) Summary() *Summary {
	return gen.summarize(gen.Generate())
}

func (gen *Generator) summarize(categories []*Category) *Summary {
	s := &Summary{Categories: make([]CategorySummary, 0, len(categories))}
	for _, c := range categories {
		s.TotalItems += c.Total()
		s.CompletedItems += c.Completed()
		s.Categories = append(s.Categories, CategorySummary{
			Name:       c.Name,
			Total:      c.Total(),
			Completed:  c.Completed(),
			Percentage: c.Percentage(),
		})
	}
	s.CompletionPercentage = percentage(s.CompletedItems, s.TotalItems)

	for _, n := range gen.g.Nodes() {
		if n.Status == model.StatusNotApplicable || gen.Priority(n) != PriorityCritical {
			continue
		}
		if n.Status == model.StatusCompleted {
			s.CriticalCompleted++
		} else {
			s.CriticalItems++
		}
	}
	s.ActionableNow = len(gen.ActionableNow())
	return s
}
