package model

import "time"

// GraphData is the plain serialized form of a requirement graph, exchanged
// with persistence adapters.
type GraphData struct {
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`
}

// CompletionStats holds aggregate node counts by status.
type CompletionStats struct {
	TotalItems           int            `json:"total_items"`
	ByStatus             map[Status]int `json:"by_status"`
	ApplicableItems      int            `json:"applicable_items"`
	CompletedItems       int            `json:"completed_items"`
	CompletionPercentage float64        `json:"completion_percentage"`
}

// CriticalNode pairs a node with the number of nodes transitively waiting on it.
type CriticalNode struct {
	Node       *Node `json:"node"`
	Dependents int   `json:"dependents"`
}

// Project is a named collection of tender documents and their graph.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Directory string    `json:"directory,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
