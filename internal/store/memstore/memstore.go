// Package memstore is an in-memory store.Store, used for memory:// URLs
// and tests.
package memstore

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/alfredjeanlab/tendergraph/internal/model"
	"github.com/alfredjeanlab/tendergraph/internal/store"
)

type state struct {
	projects map[string]*model.Project
	graphs   map[string]*model.GraphData
	hashes   map[string]map[string]string
}

func newState() *state {
	return &state{
		projects: make(map[string]*model.Project),
		graphs:   make(map[string]*model.GraphData),
		hashes:   make(map[string]map[string]string),
	}
}

func (s *state) clone() *state {
	c := newState()
	for id, p := range s.projects {
		cp := *p
		c.projects[id] = &cp
	}
	for id, g := range s.graphs {
		c.graphs[id] = cloneGraph(g)
	}
	for id, h := range s.hashes {
		c.hashes[id] = maps.Clone(h)
	}
	return c
}

// Store keeps everything in process memory. It is safe for concurrent use.
type Store struct {
	mu sync.RWMutex
	st *state
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{st: newState()}
}

func (s *Store) ListProjects(_ context.Context) ([]*model.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Project, 0, len(s.st.projects))
	for _, p := range s.st.projects {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreateProject(_ context.Context, p *model.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.projects[p.ID]; ok {
		return fmt.Errorf("project %s already exists", p.ID)
	}
	cp := *p
	s.st.projects[p.ID] = &cp
	s.st.graphs[p.ID] = &model.GraphData{Nodes: []*model.Node{}, Edges: []*model.Edge{}}
	s.st.hashes[p.ID] = make(map[string]string)
	return nil
}

func (s *Store) GetProject(_ context.Context, id string) (*model.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.st.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", id, store.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (s *Store) DeleteProject(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.projects[id]; !ok {
		return fmt.Errorf("project %s: %w", id, store.ErrNotFound)
	}
	delete(s.st.projects, id)
	delete(s.st.graphs, id)
	delete(s.st.hashes, id)
	return nil
}

func (s *Store) LoadGraph(_ context.Context, projectID string) (*model.GraphData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.st.graphs[projectID]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", projectID, store.ErrNotFound)
	}
	return cloneGraph(g), nil
}

func (s *Store) SaveGraph(_ context.Context, projectID string, data *model.GraphData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.projects[projectID]
	if !ok {
		return fmt.Errorf("project %s: %w", projectID, store.ErrNotFound)
	}
	if data == nil {
		data = &model.GraphData{}
	}
	s.st.graphs[projectID] = cloneGraph(data)
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) DocumentHashes(_ context.Context, projectID string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.st.hashes[projectID]), nil
}

func (s *Store) SetDocumentHash(_ context.Context, projectID, path, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.st.hashes[projectID]
	if !ok {
		return fmt.Errorf("project %s: %w", projectID, store.ErrNotFound)
	}
	h[path] = hash
	return nil
}

func (s *Store) DeleteDocumentHash(_ context.Context, projectID, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.st.hashes[projectID], path)
	return nil
}

// RunInTransaction runs fn against a private copy of the data and
// publishes the copy only when fn succeeds. The store is locked for the
// duration of fn.
func (s *Store) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Store{st: s.st.clone()}
	if err := fn(&txStore{Store: tx}); err != nil {
		return err
	}
	s.st = tx.st
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// txStore reuses its transaction for nested calls.
type txStore struct {
	*Store
}

func (t *txStore) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	return fn(t)
}

func cloneGraph(g *model.GraphData) *model.GraphData {
	c := &model.GraphData{
		Nodes: make([]*model.Node, 0, len(g.Nodes)),
		Edges: make([]*model.Edge, 0, len(g.Edges)),
	}
	for _, n := range g.Nodes {
		c.Nodes = append(c.Nodes, n.Clone())
	}
	for _, e := range g.Edges {
		c.Edges = append(c.Edges, e.Clone())
	}
	return c
}
