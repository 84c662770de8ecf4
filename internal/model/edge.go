package model

import "fmt"

// EdgeType categorizes the relationship between two nodes.
type EdgeType string

const (
	EdgeRequires          EdgeType = "requires"
	EdgeRequiredBy        EdgeType = "required_by"
	EdgeConditionalOn     EdgeType = "conditional_on"
	EdgeTriggers          EdgeType = "triggers"
	EdgePartOf            EdgeType = "part_of"
	EdgeReferences        EdgeType = "references"
	EdgeMutuallyExclusive EdgeType = "mutually_exclusive"
	EdgeDependsOn         EdgeType = "depends_on"
)

// String returns the string representation of the edge type.
func (t EdgeType) String() string {
	return string(t)
}

// IsValid checks whether the edge type is a known value.
func (t EdgeType) IsValid() bool {
	switch t {
	case EdgeRequires, EdgeRequiredBy, EdgeConditionalOn, EdgeTriggers,
		EdgePartOf, EdgeReferences, EdgeMutuallyExclusive, EdgeDependsOn:
		return true
	}
	return false
}

// IsDependency reports whether edges of this type take part in blocking
// and actionability. Only depends_on, requires and conditional_on do.
func (t EdgeType) IsDependency() bool {
	switch t {
	case EdgeDependsOn, EdgeRequires, EdgeConditionalOn:
		return true
	}
	return false
}

// ParseEdgeType converts a token into an EdgeType.
func ParseEdgeType(s string) (EdgeType, error) {
	t := EdgeType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("unknown edge type %q", s)
	}
	return t, nil
}

// Edge is a directed, typed relation between two nodes. The source depends
// on (requires, is conditional on) the target.
type Edge struct {
	ID          string         `json:"id"`
	SourceID    string         `json:"source_id"`
	TargetID    string         `json:"target_id"`
	Type        EdgeType       `json:"type"`
	Description string         `json:"description,omitempty"`
	Confidence  float64        `json:"confidence"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Clone returns a deep copy of the edge.
func (e *Edge) Clone() *Edge {
	c := *e
	if e.Metadata != nil {
		c.Metadata = make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
