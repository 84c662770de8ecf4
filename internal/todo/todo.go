// Package todo derives prioritized, categorized to-do lists from a
// requirement graph. Everything here is a read-only view; the graph is never
// modified.
package todo

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/alfredjeanlab/tendergraph/internal/graph"
	"github.com/alfredjeanlab/tendergraph/internal/model"
)

// Priority ranks to-do items; lower values come first.
type Priority int

const (
	PriorityCritical Priority = 1 // missing means disqualification
	PriorityHigh     Priority = 2
	PriorityMedium   Priority = 3
	PriorityLow      Priority = 4
)

// String returns the upper-case priority name.
func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "CRITICAL"
	case PriorityHigh:
		return "HIGH"
	case PriorityMedium:
		return "MEDIUM"
	case PriorityLow:
		return "LOW"
	default:
		return fmt.Sprintf("Priority(%d)", int(p))
	}
}

// MarshalText encodes the priority by name.
func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a priority name.
func (p *Priority) UnmarshalText(b []byte) error {
	v, err := ParsePriority(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// ParsePriority converts a name such as "high" into a Priority.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CRITICAL":
		return PriorityCritical, nil
	case "HIGH":
		return PriorityHigh, nil
	case "MEDIUM":
		return PriorityMedium, nil
	case "LOW":
		return PriorityLow, nil
	}
	return 0, fmt.Errorf("unknown priority %q", s)
}

// Category names in report order.
const (
	CategoryDocuments    = "Documents to Submit"
	CategorySignatures   = "Signatures Required"
	CategoryCheckboxes   = "Checkboxes to Complete"
	CategoryFields       = "Fields to Fill"
	CategoryAttachments  = "Attachments to Include"
	CategoryRequirements = "Requirements to Meet"
	CategoryDeadlines    = "Deadlines to Track"
	CategoryConditions   = "Conditions to Evaluate"
	CategoryOther        = "Other"
)

// CategoryOrder is the fixed order in which categories are reported.
var CategoryOrder = []string{
	CategoryDocuments,
	CategorySignatures,
	CategoryCheckboxes,
	CategoryFields,
	CategoryAttachments,
	CategoryRequirements,
	CategoryDeadlines,
	CategoryConditions,
	CategoryOther,
}

var categoryByType = map[model.NodeType]string{
	model.NodeDocument:    CategoryDocuments,
	model.NodeSignature:   CategorySignatures,
	model.NodeCheckbox:    CategoryCheckboxes,
	model.NodeField:       CategoryFields,
	model.NodeAttachment:  CategoryAttachments,
	model.NodeRequirement: CategoryRequirements,
	model.NodeDeadline:    CategoryDeadlines,
	model.NodeCondition:   CategoryConditions,
}

// CategoryFor returns the category a node type is listed under.
func CategoryFor(t model.NodeType) string {
	if name, ok := categoryByType[t]; ok {
		return name
	}
	return CategoryOther
}

// criticalKeywords flag items whose absence excludes a bid. Matching is a
// case-insensitive substring test.
var criticalKeywords = []string{
	"ausschluss",
	"zwingend",
	"muss",
	"pflicht",
	"erforderlich",
	"unbedingt",
	"ausgeschlossen",
	"nicht berücksichtigt",
	"fehlen",
	"mangel",
	"ungültig",
	"disqualif",
}

// manyDependents is the number of unfinished dependents that makes an item
// HIGH priority.
const manyDependents = 3

// Item is one to-do entry derived from a graph node.
type Item struct {
	ID             string       `json:"id"`
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	Priority       Priority     `json:"priority"`
	Status         model.Status `json:"status"`
	Category       string       `json:"category"`
	SourceDocument string       `json:"source_document,omitempty"`
	Deadline       *time.Time   `json:"deadline,omitempty"`
	BlockedBy      []string     `json:"blocked_by"`
	Blocks         []string     `json:"blocks"`
	NodeID         string       `json:"node_id"`
	Tags           []string     `json:"tags"`
}

// Completed reports whether the underlying node is completed.
func (i *Item) Completed() bool {
	return i.Status == model.StatusCompleted
}

// Category groups items of one node type. Counts are always derived from
// the current item list.
type Category struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Items       []*Item `json:"items"`
}

// Total returns the number of items.
func (c *Category) Total() int {
	return len(c.Items)
}

// Completed returns the number of completed items.
func (c *Category) Completed() int {
	n := 0
	for _, it := range c.Items {
		if it.Completed() {
			n++
		}
	}
	return n
}

// Percentage returns the completed share rounded to one decimal, or 100 for
// an empty category.
func (c *Category) Percentage() float64 {
	return percentage(c.Completed(), c.Total())
}

// Generator builds to-do views over a graph.
type Generator struct {
	g *graph.Graph
}

// New returns a generator reading from g.
func New(g *graph.Graph) *Generator {
	return &Generator{g: g}
}

// Generate buckets every node into its category. Condition nodes already
// ruled out are left out. Items are sorted by priority then title and
// empty categories are omitted.
func (gen *Generator) Generate() []*Category {
	byName := make(map[string]*Category)
	for _, n := range gen.g.Nodes() {
		if n.Type == model.NodeCondition && n.Status == model.StatusNotApplicable {
			continue
		}
		name := CategoryFor(n.Type)
		cat, ok := byName[name]
		if !ok {
			cat = &Category{Name: name, Description: "Items of type: " + string(n.Type)}
			byName[name] = cat
		}
		cat.Items = append(cat.Items, gen.Item(n))
	}

	var out []*Category
	for _, name := range CategoryOrder {
		if cat, ok := byName[name]; ok {
			sortByPriority(cat.Items)
			out = append(out, cat)
		}
	}
	return out
}

// Item converts a node into a to-do item.
func (gen *Generator) Item(n *model.Node) *Item {
	it := &Item{
		ID:             n.ID,
		Title:          n.Title,
		Description:    n.Description,
		Priority:       gen.Priority(n),
		Status:         n.Status,
		Category:       CategoryFor(n.Type),
		SourceDocument: n.SourceDocument,
		Deadline:       n.Deadline,
		BlockedBy:      []string{},
		Blocks:         []string{},
		NodeID:         n.ID,
		Tags:           slices.Clone(n.Tags),
	}
	if it.Tags == nil {
		it.Tags = []string{}
	}
	for _, dep := range gen.g.Dependencies(n.ID) {
		if !isFinished(dep) {
			it.BlockedBy = append(it.BlockedBy, dep.Title)
		}
	}
	for _, dep := range gen.g.Dependents(n.ID) {
		if !isFinished(dep) {
			it.Blocks = append(it.Blocks, dep.Title)
		}
	}
	return it
}

// Priority computes a node's priority. Rules are checked in order and the
// first match wins.
func (gen *Generator) Priority(n *model.Node) Priority {
	text := strings.ToLower(n.Title + n.Description + n.SourceText)
	for _, kw := range criticalKeywords {
		if strings.Contains(text, kw) {
			return PriorityCritical
		}
	}

	if req, ok := n.Metadata["is_required"].(bool); ok && req {
		return PriorityHigh
	}

	switch n.Type {
	case model.NodeSignature, model.NodeDeadline:
		return PriorityCritical
	case model.NodeDocument:
		return PriorityHigh
	}

	unfinished := 0
	for _, dep := range gen.g.Dependents(n.ID) {
		if !isFinished(dep) {
			unfinished++
		}
	}
	if unfinished >= manyDependents {
		return PriorityHigh
	}

	for _, e := range gen.g.IncomingEdges(n.ID) {
		if e.Type == model.EdgeConditionalOn {
			return PriorityMedium
		}
	}
	return PriorityMedium
}

// isFinished treats only completed nodes as finished.
func isFinished(n *model.Node) bool {
	return n.Status == model.StatusCompleted
}

func sortByPriority(items []*Item) {
	slices.SortStableFunc(items, func(a, b *Item) int {
		return cmp.Or(cmp.Compare(a.Priority, b.Priority), strings.Compare(a.Title, b.Title))
	})
}

func percentage(done, total int) float64 {
	if total == 0 {
		return 100
	}
	return float64(int(float64(done)/float64(total)*1000+0.5)) / 10
}
