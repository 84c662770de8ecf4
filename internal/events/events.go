// Package events publishes project activity (status changes, extraction
// outcomes, merges) to an event bus.
package events

import (
	"context"
	"time"

	"github.com/alfredjeanlab/tendergraph/internal/model"
)

// Event topic constants
const (
	TopicStatusChanged       = "tender.node.status_changed"
	TopicExtractionCompleted = "tender.extraction.completed"
	TopicExtractionFailed    = "tender.extraction.failed"
	TopicBatchCompleted      = "tender.batch.completed"
	TopicNodesMerged         = "tender.nodes.merged"

	// TopicAll matches every tendergraph topic.
	TopicAll = "tender.>"
)

// Topics lists every concrete topic.
var Topics = []string{
	TopicStatusChanged,
	TopicExtractionCompleted,
	TopicExtractionFailed,
	TopicBatchCompleted,
	TopicNodesMerged,
}

// Event types

type StatusChanged struct {
	Project   string       `json:"project"`
	NodeID    string       `json:"node_id"`
	Title     string       `json:"title"`
	OldStatus model.Status `json:"old_status"`
	NewStatus model.Status `json:"new_status"`
	// Unblocked lists dependents that became actionable.
	Unblocked []string  `json:"unblocked,omitempty"`
	At        time.Time `json:"at"`
}

type ExtractionCompleted struct {
	Project      string `json:"project"`
	RunID        string `json:"run_id"`
	Document     string `json:"document"`
	DocumentType string `json:"document_type,omitempty"`
	NodesCreated int    `json:"nodes_created"`
	EdgesCreated int    `json:"edges_created"`
	Attempts     int    `json:"attempts"`
}

type ExtractionFailed struct {
	Project  string `json:"project"`
	RunID    string `json:"run_id"`
	Document string `json:"document"`
	Error    string `json:"error"`
}

type BatchCompleted struct {
	Project            string        `json:"project"`
	RunID              string        `json:"run_id"`
	Processed          int           `json:"processed"`
	Skipped            int           `json:"skipped"`
	Failed             int           `json:"failed"`
	NodesCreated       int           `json:"nodes_created"`
	EdgesCreated       int           `json:"edges_created"`
	PlaceholdersMerged int           `json:"placeholders_merged"`
	Duration           time.Duration `json:"duration_ns"`
}

type NodesMerged struct {
	Project string `json:"project"`
	KeepID  string `json:"keep_id"`
	DropID  string `json:"drop_id"`
}

// NewBatchCompleted summarizes a finished batch.
func NewBatchCompleted(b *model.BatchResult) BatchCompleted {
	return BatchCompleted{
		Project:            b.Project,
		RunID:              b.RunID,
		Processed:          b.Processed,
		Skipped:            b.Skipped,
		Failed:             len(b.Errors),
		NodesCreated:       b.NodesCreated,
		EdgesCreated:       b.EdgesCreated,
		PlaceholdersMerged: b.PlaceholdersMerged,
		Duration:           b.FinishedAt.Sub(b.StartedAt),
	}
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
