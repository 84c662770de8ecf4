// Package project ties the graph, extractor, store and event bus together.
// The CLI, the HTTP server and the MCP tools all go through a Service.
package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alfredjeanlab/tendergraph/internal/events"
	"github.com/alfredjeanlab/tendergraph/internal/extract"
	"github.com/alfredjeanlab/tendergraph/internal/graph"
	"github.com/alfredjeanlab/tendergraph/internal/model"
	"github.com/alfredjeanlab/tendergraph/internal/store"
	"github.com/alfredjeanlab/tendergraph/internal/todo"
)

var (
	// ErrAmbiguous is returned when a search term matches several nodes.
	ErrAmbiguous = errors.New("search term matches more than one node")
	// ErrNoMatch is returned when a search term matches nothing.
	ErrNoMatch = errors.New("no node matches")
	// ErrNoExtractor is returned by Process on a service built without one.
	ErrNoExtractor = errors.New("no extractor configured")
)

// InputError indicates invalid user input.
// Transport layers map this to 400 / InvalidArgument.
type InputError string

func (e InputError) Error() string { return string(e) }

// AmbiguousError lists the nodes a search term matched.
type AmbiguousError struct {
	Term       string
	Candidates []*model.Node
}

func (e *AmbiguousError) Error() string {
	titles := make([]string, 0, len(e.Candidates))
	for _, n := range e.Candidates {
		titles = append(titles, fmt.Sprintf("%s (%s)", n.Title, n.ID))
	}
	return fmt.Sprintf("%q matches %d nodes: %s", e.Term, len(e.Candidates), strings.Join(titles, ", "))
}

func (e *AmbiguousError) Unwrap() error { return ErrAmbiguous }

// Service serializes load-mutate-save cycles per project.
type Service struct {
	store     store.Store
	extractor *extract.Extractor
	publisher events.Publisher
	logger    *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithExtractor enables Process.
func WithExtractor(ex *extract.Extractor) Option {
	return func(s *Service) { s.extractor = ex }
}

// WithPublisher sets the event publisher. The default publishes nothing.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New returns a service backed by st.
func New(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:     st,
		publisher: &events.NoopPublisher{},
		logger:    slog.Default(),
		locks:     make(map[string]*sync.Mutex),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Store returns the underlying store.
func (s *Service) Store() store.Store {
	return s.store
}

func (s *Service) lock(project string) func() {
	s.mu.Lock()
	l, ok := s.locks[project]
	if !ok {
		l = &sync.Mutex{}
		s.locks[project] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Projects lists all projects.
func (s *Service) Projects(ctx context.Context) ([]*model.Project, error) {
	return s.store.ListProjects(ctx)
}

// GetProject returns one project.
func (s *Service) GetProject(ctx context.Context, id string) (*model.Project, error) {
	return s.store.GetProject(ctx, id)
}

// EnsureProject returns the project, creating it when missing.
func (s *Service) EnsureProject(ctx context.Context, id, name, dir string) (*model.Project, error) {
	if strings.TrimSpace(id) == "" {
		return nil, InputError("project id is required")
	}
	p, err := s.store.GetProject(ctx, id)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if name == "" {
		name = id
	}
	now := time.Now().UTC()
	p = &model.Project{ID: id, Name: name, Directory: dir, CreatedAt: now, UpdatedAt: now}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return nil, fmt.Errorf("create project %s: %w", id, err)
	}
	s.logger.Info("project created", "project", id)
	return p, nil
}

// DeleteProject removes a project with its graph and hashes.
func (s *Service) DeleteProject(ctx context.Context, id string) error {
	unlock := s.lock(id)
	defer unlock()
	return s.store.DeleteProject(ctx, id)
}

// Graph loads the project's graph. The result is a private copy.
func (s *Service) Graph(ctx context.Context, project string) (*graph.Graph, error) {
	data, err := s.store.LoadGraph(ctx, project)
	if err != nil {
		return nil, err
	}
	g, err := graph.FromData(data)
	if err != nil {
		return nil, fmt.Errorf("decode graph for %s: %w", project, err)
	}
	return g, nil
}

// Todos returns a to-do generator over the project's graph.
func (s *Service) Todos(ctx context.Context, project string) (*todo.Generator, error) {
	g, err := s.Graph(ctx, project)
	if err != nil {
		return nil, err
	}
	return todo.New(g), nil
}

// mutate loads the graph, applies fn and saves the result, holding the
// project lock throughout. Nothing is saved when fn fails.
func (s *Service) mutate(ctx context.Context, project string, fn func(g *graph.Graph) error) error {
	unlock := s.lock(project)
	defer unlock()

	g, err := s.Graph(ctx, project)
	if err != nil {
		return err
	}
	if err := fn(g); err != nil {
		return err
	}
	if err := s.store.SaveGraph(ctx, project, g.Data()); err != nil {
		return fmt.Errorf("save graph for %s: %w", project, err)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, topic string, event any) {
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		s.logger.Warn("failed to publish event", "topic", topic, "err", err)
	}
}

// ProcessOptions configures Process.
type ProcessOptions struct {
	// Full re-extracts every document, ignoring recorded hashes.
	Full        bool
	Concurrency int
	Progress    extract.ProgressFunc
}

// Process extracts docs into the project's graph and persists the graph and
// the document hashes together. Unchanged documents are skipped unless
// opts.Full is set.
func (s *Service) Process(ctx context.Context, project string, docs []*model.Document, opts ProcessOptions) (*model.BatchResult, error) {
	if s.extractor == nil {
		return nil, ErrNoExtractor
	}
	unlock := s.lock(project)
	defer unlock()

	g, err := s.Graph(ctx, project)
	if err != nil {
		return nil, err
	}
	previous, err := s.store.DocumentHashes(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("load document hashes: %w", err)
	}

	seed := previous
	if opts.Full {
		seed = nil
		for _, d := range docs {
			g.RemoveNodesByDocument(d.Path)
		}
	}
	hashes := extract.NewMemoryHashStore(seed)
	batch := extract.NewIncremental(s.extractor, hashes).ProcessBatch(ctx, docs, g, extract.BatchOptions{
		Concurrency: opts.Concurrency,
		Progress:    opts.Progress,
	})
	batch.RunID = uuid.NewString()
	batch.Project = project

	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.SaveGraph(ctx, project, g.Data()); err != nil {
			return fmt.Errorf("save graph: %w", err)
		}
		for path, h := range hashes.Snapshot() {
			if previous[path] == h {
				continue
			}
			if err := tx.SetDocumentHash(ctx, project, path, h); err != nil {
				return fmt.Errorf("record hash for %s: %w", path, err)
			}
		}
		// A failed document lost its nodes, so its old hash must not let
		// the next run skip it.
		for _, r := range batch.Results {
			if r.Skipped || r.Succeeded() {
				continue
			}
			if _, ok := previous[r.Document]; !ok {
				continue
			}
			if err := tx.DeleteDocumentHash(ctx, project, r.Document); err != nil {
				return fmt.Errorf("clear hash for %s: %w", r.Document, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, r := range batch.Results {
		switch {
		case r.Skipped:
		case r.Succeeded():
			s.publish(ctx, events.TopicExtractionCompleted, events.ExtractionCompleted{
				Project:      project,
				RunID:        batch.RunID,
				Document:     r.Document,
				DocumentType: r.DocumentType,
				NodesCreated: r.NodesCreated,
				EdgesCreated: r.EdgesCreated,
				Attempts:     r.Attempts,
			})
		default:
			s.publish(ctx, events.TopicExtractionFailed, events.ExtractionFailed{
				Project:  project,
				RunID:    batch.RunID,
				Document: r.Document,
				Error:    r.Error,
			})
		}
	}
	s.publish(ctx, events.TopicBatchCompleted, events.NewBatchCompleted(batch))
	return batch, nil
}

// StatusChange describes the outcome of UpdateStatus.
type StatusChange struct {
	Node      *model.Node  `json:"node"`
	OldStatus model.Status `json:"old_status"`
	Unblocked []string     `json:"unblocked,omitempty"`
	// RuledOut counts nodes whose applicability changed afterwards.
	RuledOut int `json:"conditions_changed,omitempty"`
}

// UpdateStatus sets a node's status, re-evaluates conditions and publishes
// a status change.
func (s *Service) UpdateStatus(ctx context.Context, project, nodeID string, status model.Status) (*StatusChange, error) {
	if !status.IsValid() {
		return nil, InputError(fmt.Sprintf("invalid status %q (want one of %v)", status, model.Statuses))
	}
	var change StatusChange
	err := s.mutate(ctx, project, func(g *graph.Graph) error {
		n, ok := g.GetNode(nodeID)
		if !ok {
			return fmt.Errorf("node %s: %w", nodeID, graph.ErrNotFound)
		}
		change.OldStatus = n.Status
		var unblocked []string
		var err error
		if n.Type == model.NodeCheckbox && status == model.StatusCompleted {
			unblocked, err = g.SetCheckboxState(nodeID, model.Bool(true))
		} else {
			// Reopening a ticked checkbox clears the tick.
			if n.Type == model.NodeCheckbox && n.CheckboxState != nil && *n.CheckboxState {
				_, err = g.SetCheckboxState(nodeID, model.Bool(false))
			}
			if err == nil {
				unblocked, err = g.UpdateStatus(nodeID, status)
			}
		}
		if err != nil {
			return err
		}
		change.Unblocked = unblocked
		change.RuledOut = g.EvaluateConditions()
		change.Node = n.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("status updated", "project", project, "node", nodeID, "from", change.OldStatus, "to", status, "unblocked", len(change.Unblocked))
	s.publish(ctx, events.TopicStatusChanged, events.StatusChanged{
		Project:   project,
		NodeID:    nodeID,
		Title:     change.Node.Title,
		OldStatus: change.OldStatus,
		NewStatus: status,
		Unblocked: change.Unblocked,
		At:        change.Node.UpdatedAt,
	})
	return &change, nil
}

// Complete marks a node completed.
func (s *Service) Complete(ctx context.Context, project, nodeID string) (*StatusChange, error) {
	return s.UpdateStatus(ctx, project, nodeID, model.StatusCompleted)
}

// Resolve finds the single node identified by term: an exact node ID, or
// else a case-insensitive substring of exactly one title or description.
func (s *Service) Resolve(ctx context.Context, project, term string) (*model.Node, error) {
	if strings.TrimSpace(term) == "" {
		return nil, InputError("search term is required")
	}
	g, err := s.Graph(ctx, project)
	if err != nil {
		return nil, err
	}
	if n, ok := g.GetNode(term); ok {
		return n, nil
	}
	matches := g.FindNodes(term)
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %q", ErrNoMatch, term)
	case 1:
		return matches[0], nil
	default:
		return nil, &AmbiguousError{Term: term, Candidates: matches}
	}
}

// CompleteMatching completes the single node term identifies.
func (s *Service) CompleteMatching(ctx context.Context, project, term string) (*StatusChange, error) {
	n, err := s.Resolve(ctx, project, term)
	if err != nil {
		return nil, err
	}
	return s.Complete(ctx, project, n.ID)
}

// Merge folds drop into keep and publishes the merge.
func (s *Service) Merge(ctx context.Context, project, keepID, dropID string) (*model.Node, error) {
	var kept *model.Node
	err := s.mutate(ctx, project, func(g *graph.Graph) error {
		n, err := g.MergeDuplicateNodes(keepID, dropID)
		if errors.Is(err, graph.ErrSelfMerge) {
			return InputError(err.Error())
		}
		if err != nil {
			return fmt.Errorf("merge %s into %s: %w", dropID, keepID, err)
		}
		kept = n.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("nodes merged", "project", project, "keep", keepID, "drop", dropID)
	s.publish(ctx, events.TopicNodesMerged, events.NodesMerged{Project: project, KeepID: keepID, DropID: dropID})
	return kept, nil
}

// SetCondition records a condition outcome (nil for unknown) and applies it
// to the dependent nodes. It returns the number of nodes whose status
// changed.
func (s *Service) SetCondition(ctx context.Context, project, nodeID string, met *bool) (int, error) {
	var changed int
	err := s.mutate(ctx, project, func(g *graph.Graph) error {
		n, ok := g.GetNode(nodeID)
		if !ok {
			return fmt.Errorf("node %s: %w", nodeID, graph.ErrNotFound)
		}
		if n.Type != model.NodeCondition {
			return InputError(fmt.Sprintf("node %s is a %s, not a condition", nodeID, n.Type))
		}
		if err := g.SetConditionMet(nodeID, met); err != nil {
			return err
		}
		changed = g.EvaluateConditions()
		return nil
	})
	return changed, err
}

// SetNotes replaces a node's notes.
func (s *Service) SetNotes(ctx context.Context, project, nodeID, notes string) error {
	return s.mutate(ctx, project, func(g *graph.Graph) error {
		if err := g.SetNotes(nodeID, notes); err != nil {
			return fmt.Errorf("node %s: %w", nodeID, err)
		}
		return nil
	})
}
