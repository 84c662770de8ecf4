package model

import (
	"strings"
	"time"
)

// Document is the text of one tender file as supplied by a reader.
type Document struct {
	Path      string            `json:"path"`
	Filename  string            `json:"filename"`
	Extension string            `json:"extension"`
	Text      string            `json:"text,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Method    string            `json:"extraction_method,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Successful reports whether the document was read and carries text.
func (d *Document) Successful() bool {
	return d.Error == "" && strings.TrimSpace(d.Text) != ""
}

// ExtractionResult describes the outcome of extracting one document.
type ExtractionResult struct {
	Document        string `json:"document"`
	DocumentSummary string `json:"document_summary,omitempty"`
	DocumentType    string `json:"document_type,omitempty"`
	NodesCreated    int    `json:"nodes_created"`
	EdgesCreated    int    `json:"edges_created"`
	Attempts        int    `json:"attempts"`
	Skipped         bool   `json:"skipped,omitempty"`
	Raw             string `json:"raw,omitempty"`
	Error           string `json:"error,omitempty"`
}

// Succeeded reports whether the extraction finished without error.
func (r *ExtractionResult) Succeeded() bool {
	return r.Error == ""
}

// DocumentError records a per-document failure inside a batch.
type DocumentError struct {
	Document string `json:"document"`
	Error    string `json:"error"`
}

// BatchResult aggregates the extraction of several documents.
type BatchResult struct {
	RunID              string              `json:"run_id"`
	Project            string              `json:"project"`
	Results            []*ExtractionResult `json:"results"`
	Errors             []DocumentError     `json:"errors,omitempty"`
	Processed          int                 `json:"processed"`
	Skipped            int                 `json:"skipped"`
	NodesCreated       int                 `json:"nodes_created"`
	EdgesCreated       int                 `json:"edges_created"`
	PlaceholdersMerged int                 `json:"placeholders_merged"`
	StartedAt          time.Time           `json:"started_at"`
	FinishedAt         time.Time           `json:"finished_at"`
}

// Add folds one document's result into the batch totals.
func (b *BatchResult) Add(r *ExtractionResult) {
	b.Results = append(b.Results, r)
	switch {
	case r.Skipped:
		b.Skipped++
	case r.Error != "":
		b.Errors = append(b.Errors, DocumentError{Document: r.Document, Error: r.Error})
	default:
		b.Processed++
		b.NodesCreated += r.NodesCreated
		b.EdgesCreated += r.EdgesCreated
	}
}
