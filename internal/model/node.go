package model

import (
	"fmt"
	"time"
)

// NodeType classifies an obligation discovered in a tender document.
type NodeType string

const (
	NodeDocument    NodeType = "document"
	NodeRequirement NodeType = "requirement"
	NodeCondition   NodeType = "condition"
	NodeCheckbox    NodeType = "checkbox"
	NodeSignature   NodeType = "signature"
	NodeField       NodeType = "field"
	NodeAttachment  NodeType = "attachment"
	NodeDeadline    NodeType = "deadline"
)

// NodeTypes lists every node type in declaration order.
var NodeTypes = []NodeType{
	NodeDocument, NodeRequirement, NodeCondition, NodeCheckbox,
	NodeSignature, NodeField, NodeAttachment, NodeDeadline,
}

// String returns the string representation of the node type.
func (t NodeType) String() string {
	return string(t)
}

// IsValid checks whether the node type is a known value.
func (t NodeType) IsValid() bool {
	switch t {
	case NodeDocument, NodeRequirement, NodeCondition, NodeCheckbox,
		NodeSignature, NodeField, NodeAttachment, NodeDeadline:
		return true
	}
	return false
}

// ParseNodeType converts a token into a NodeType.
func ParseNodeType(s string) (NodeType, error) {
	t := NodeType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("unknown node type %q", s)
	}
	return t, nil
}

// Status is the completion state of a node.
type Status string

const (
	StatusNotStarted    Status = "not_started"
	StatusInProgress    Status = "in_progress"
	StatusCompleted     Status = "completed"
	StatusNotApplicable Status = "not_applicable"
	StatusBlocked       Status = "blocked"
)

// Statuses lists every status in declaration order.
var Statuses = []Status{
	StatusNotStarted, StatusInProgress, StatusCompleted, StatusNotApplicable, StatusBlocked,
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsValid checks whether the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted, StatusNotApplicable, StatusBlocked:
		return true
	}
	return false
}

// IsResolved reports whether the status no longer blocks dependents.
func (s Status) IsResolved() bool {
	return s == StatusCompleted || s == StatusNotApplicable
}

// ParseStatus converts a token into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.IsValid() {
		return "", fmt.Errorf("unknown status %q (want one of %v)", s, Statuses)
	}
	return st, nil
}

// Node is one entity of the requirement graph.
type Node struct {
	ID             string         `json:"id"`
	Type           NodeType       `json:"type"`
	Title          string         `json:"title"`
	Description    string         `json:"description,omitempty"`
	Status         Status         `json:"status"`
	SourceDocument string         `json:"source_document,omitempty"`
	SourceLocation string         `json:"source_location,omitempty"`
	SourceText     string         `json:"source_text,omitempty"`
	CheckboxState  *bool          `json:"checkbox_state,omitempty"`
	ConditionMet   *bool          `json:"condition_met,omitempty"`
	Deadline       *time.Time     `json:"deadline,omitempty"`
	Confidence     float64        `json:"confidence"`
	Tags           []string       `json:"tags,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Notes          string         `json:"notes,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Touch refreshes UpdatedAt.
func (n *Node) Touch() {
	n.UpdatedAt = time.Now().UTC()
}

// HasTag reports whether the node carries tag.
func (n *Node) HasTag(tag string) bool {
	for _, t := range n.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// IsRequired reads the is_required metadata flag.
func (n *Node) IsRequired() bool {
	v, ok := n.Metadata["is_required"].(bool)
	return ok && v
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	c := *n
	if n.CheckboxState != nil {
		v := *n.CheckboxState
		c.CheckboxState = &v
	}
	if n.ConditionMet != nil {
		v := *n.ConditionMet
		c.ConditionMet = &v
	}
	if n.Deadline != nil {
		d := *n.Deadline
		c.Deadline = &d
	}
	if n.Tags != nil {
		c.Tags = append([]string(nil), n.Tags...)
	}
	if n.Metadata != nil {
		c.Metadata = make(map[string]any, len(n.Metadata))
		for k, v := range n.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// Bool returns a pointer to v, for tri-state fields.
func Bool(v bool) *bool {
	return &v
}
