// Package extract turns tender documents into requirement-graph nodes by
// asking a language model for a structured analysis of each document.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/alfredjeanlab/tendergraph/internal/graph"
	"github.com/alfredjeanlab/tendergraph/internal/llm"
	"github.com/alfredjeanlab/tendergraph/internal/model"
)

// Defaults for Extractor options.
const (
	DefaultMaxChars    = 50000
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 2 * time.Second
	DefaultConfidence  = 0.8

	truncationMarker = "\n\n[... content truncated ...]"
)

var (
	// ErrEmptyResponse is returned when the model answered without content.
	ErrEmptyResponse = llm.ErrEmptyResponse
	// ErrMalformedResponse is returned when the model output is not valid JSON.
	ErrMalformedResponse = errors.New("malformed extraction response")
	// ErrEmptyDocument is reported for documents without readable text.
	ErrEmptyDocument = errors.New("document is empty")
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Extractor calls the model for one document at a time and applies the
// answer to a graph.
type Extractor struct {
	client      llm.Client
	maxChars    int
	maxAttempts int
	baseDelay   time.Duration
	sleep       SleepFunc
	logger      *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxChars sets the truncation limit for document text.
func WithMaxChars(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxChars = n
		}
	}
}

// WithRetry sets the attempt budget and the initial backoff delay.
func WithRetry(attempts int, baseDelay time.Duration) Option {
	return func(e *Extractor) {
		if attempts > 0 {
			e.maxAttempts = attempts
		}
		if baseDelay >= 0 {
			e.baseDelay = baseDelay
		}
	}
}

// WithSleep replaces the backoff wait, mainly for tests.
func WithSleep(fn SleepFunc) Option {
	return func(e *Extractor) { e.sleep = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Extractor backed by client.
func New(client llm.Client, opts ...Option) *Extractor {
	e := &Extractor{
		client:      client,
		maxChars:    DefaultMaxChars,
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		sleep:       sleepContext,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract analyzes doc and adds the extracted items to g. Failures are
// reported on the result; the graph is only modified on success.
func (e *Extractor) Extract(ctx context.Context, doc *model.Document, g *graph.Graph) *model.ExtractionResult {
	return e.Apply(doc, e.Fetch(ctx, doc), g)
}

// Fetched is the outcome of the model call for one document, before it is
// applied to a graph.
type Fetched struct {
	Response *Response
	Raw      string
	Attempts int
	Err      error
}

// Fetch runs the model call for doc with retries. It does not touch any
// graph and is safe to call concurrently.
func (e *Extractor) Fetch(ctx context.Context, doc *model.Document) *Fetched {
	if doc.Error != "" {
		return &Fetched{Err: errors.New(doc.Error)}
	}
	if !doc.Successful() {
		return &Fetched{Err: ErrEmptyDocument}
	}

	content := doc.Text
	if chars := utf8.RuneCountInString(content); chars > e.maxChars {
		content = truncate(content, e.maxChars) + truncationMarker
		e.logger.Debug("truncated document", "document", doc.Path, "from", chars, "to", e.maxChars)
	}
	req := llm.Request{
		Prompt:     BuildPrompt(doc.Path, doc.Filename, content),
		SchemaName: SchemaName,
		Schema:     Schema(),
	}
	return e.complete(ctx, doc, req)
}

func (e *Extractor) complete(ctx context.Context, doc *model.Document, req llm.Request) *Fetched {
	f := &Fetched{}
	for attempt := 0; attempt < e.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := e.baseDelay * time.Duration(1<<(attempt-1))
			e.logger.Info("retrying extraction",
				"document", doc.Filename,
				"attempt", attempt+1,
				"max_attempts", e.maxAttempts,
				"delay", delay)
			if err := e.sleep(ctx, delay); err != nil {
				f.Err = fmt.Errorf("extraction aborted: %w", err)
				return f
			}
		}

		f.Attempts++
		text, err := e.client.Complete(ctx, req)
		if err == nil {
			resp, perr := parseResponse(text)
			if perr == nil {
				f.Response, f.Raw, f.Err = resp, text, nil
				return f
			}
			f.Raw = text
			f.Err = perr
			e.logger.Warn("unparseable extraction response", "document", doc.Filename, "attempt", attempt+1, "err", perr)
			continue
		}

		switch {
		case errors.Is(err, llm.ErrEmptyResponse):
			f.Err = fmt.Errorf("empty API response: %w", ErrEmptyResponse)
			e.logger.Warn("empty extraction response", "document", doc.Filename, "attempt", attempt+1)
			continue
		case ctx.Err() != nil:
			f.Err = fmt.Errorf("LLM API error: %w", ctx.Err())
			return f
		case llm.IsTransient(err):
			f.Err = fmt.Errorf("LLM API error: %w", err)
			e.logger.Warn("transient extraction error", "document", doc.Filename, "attempt", attempt+1, "err", err)
			continue
		default:
			f.Err = fmt.Errorf("LLM API error: %w", err)
			e.logger.Error("extraction failed", "document", doc.Filename, "err", err)
			return f
		}
	}
	e.logger.Error("extraction failed after retries", "document", doc.Filename, "attempts", f.Attempts, "err", f.Err)
	return f
}

func parseResponse(text string) (*Response, error) {
	var resp Response
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse LLM response as JSON: %w: %v", ErrMalformedResponse, err)
	}
	if err := checkFields(text); err != nil {
		return nil, fmt.Errorf("incomplete LLM response: %w: %v", ErrMalformedResponse, err)
	}
	return &resp, nil
}

// checkFields reports the first required key missing from the response or
// one of its items. item_type and title may be absent; they fall back to
// requirement and "Untitled".
func checkFields(text string) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &top); err != nil {
		return err
	}
	for _, k := range responseFields {
		if _, ok := top[k]; !ok {
			return fmt.Errorf("missing %s", k)
		}
	}
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(top["items"], &items); err != nil || items == nil {
		return errors.New("items is not an array")
	}
	for i, item := range items {
		for _, k := range itemFields {
			if k == "item_type" || k == "title" {
				continue
			}
			if _, ok := item[k]; !ok {
				return fmt.Errorf("item %d: missing %s", i, k)
			}
		}
	}
	return nil
}

// Apply materializes a fetched response into g. Nodes are created first;
// requires and conditional_on references are resolved in a second pass
// against this document's items and then the whole graph.
func (e *Extractor) Apply(doc *model.Document, f *Fetched, g *graph.Graph) *model.ExtractionResult {
	result := &model.ExtractionResult{
		Document: doc.Path,
		Attempts: f.Attempts,
		Raw:      f.Raw,
	}
	if f.Err != nil {
		result.Error = f.Err.Error()
		return result
	}
	resp := f.Response
	result.DocumentSummary = resp.DocumentSummary
	result.DocumentType = resp.DocumentType

	byTitle := make(map[string]string, len(resp.Items))
	for _, item := range resp.Items {
		n, err := g.AddNode(nodeFromItem(doc.Path, resp.DocumentType, item))
		if err != nil {
			e.logger.Warn("skipping extracted item", "document", doc.Path, "title", item.Title, "err", err)
			continue
		}
		result.NodesCreated++
		if key := strings.ToLower(item.Title); key != "" {
			byTitle[key] = n.ID
		}
	}

	for _, item := range resp.Items {
		sourceID, ok := byTitle[strings.ToLower(item.Title)]
		if !ok {
			continue
		}
		confidence := itemConfidence(item)
		links := []struct {
			ref  string
			typ  model.EdgeType
			verb string
		}{
			{item.RequiresItem, model.EdgeRequires, "requires"},
			{item.ConditionalOnItem, model.EdgeConditionalOn, "conditional on"},
		}
		for _, l := range links {
			ref := strings.TrimSpace(l.ref)
			if ref == "" {
				continue
			}
			targetID := resolveReference(g, byTitle, ref)
			if targetID == "" || targetID == sourceID {
				continue
			}
			_, err := g.Connect(sourceID, targetID, l.typ,
				graph.WithDescription(fmt.Sprintf("%s %s %s", item.Title, l.verb, l.ref)),
				graph.WithEdgeConfidence(confidence))
			if err != nil {
				e.logger.Warn("skipping extracted relationship", "document", doc.Path, "title", item.Title, "err", err)
				continue
			}
			result.EdgesCreated++
		}
	}

	e.logger.Info("extraction completed",
		"document", doc.Filename,
		"nodes", result.NodesCreated,
		"edges", result.EdgesCreated,
		"attempts", result.Attempts)
	return result
}

func resolveReference(g *graph.Graph, byTitle map[string]string, ref string) string {
	if id, ok := byTitle[strings.ToLower(ref)]; ok {
		return id
	}
	if found := g.FindNodes(ref); len(found) > 0 {
		return found[0].ID
	}
	return ""
}

func nodeFromItem(docPath, docType string, item Item) *model.Node {
	title := item.Title
	if title == "" {
		title = "Untitled"
	}
	required := true
	if item.IsRequired != nil {
		required = *item.IsRequired
	}

	n := &model.Node{
		Type:           mapItemType(item.ItemType),
		Title:          title,
		Description:    item.Description,
		Status:         model.StatusNotStarted,
		SourceDocument: docPath,
		SourceLocation: item.SourceLocation,
		SourceText:     item.SourceText,
		Confidence:     itemConfidence(item),
		Tags:           splitTags(item.TagsCSV),
		Metadata: map[string]any{
			"is_required":   required,
			"document_type": docType,
		},
	}

	if n.Type == model.NodeCheckbox {
		n.CheckboxState = model.Bool(item.IsChecked)
		if item.IsChecked {
			n.Status = model.StatusCompleted
		}
	}

	if raw := strings.TrimSpace(item.DeadlineDate); raw != "" {
		if t, ok := parseDeadline(raw); ok {
			n.Deadline = &t
		} else {
			n.Metadata["deadline_raw"] = item.DeadlineDate
		}
	}
	return n
}

func mapItemType(s string) model.NodeType {
	t, err := model.ParseNodeType(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return model.NodeRequirement
	}
	return t
}

func itemConfidence(item Item) float64 {
	if item.Confidence == nil {
		return DefaultConfidence
	}
	return min(max(*item.Confidence, 0), 1)
}

func splitTags(csv string) []string {
	var tags []string
	seen := make(map[string]bool)
	for _, t := range strings.Split(csv, ",") {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
	}
	slices.Sort(tags)
	return tags
}

var deadlineLayouts = []string{
	time.DateOnly,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.DateTime,
}

func parseDeadline(s string) (time.Time, bool) {
	for _, layout := range deadlineLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// truncate cuts s to its first n characters.
func truncate(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
