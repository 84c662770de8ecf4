package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"maps"
	"sync"

	"github.com/alfredjeanlab/tendergraph/internal/graph"
	"github.com/alfredjeanlab/tendergraph/internal/model"
)

// HashStore remembers the content hash of every successfully extracted
// document, keyed by path.
type HashStore interface {
	Hash(path string) (string, bool)
	SetHash(path, hash string)
}

// MemoryHashStore is an in-memory HashStore.
type MemoryHashStore struct {
	mu     sync.Mutex
	hashes map[string]string
}

// NewMemoryHashStore returns a store seeded with initial (which may be nil).
func NewMemoryHashStore(initial map[string]string) *MemoryHashStore {
	h := make(map[string]string, len(initial))
	maps.Copy(h, initial)
	return &MemoryHashStore{hashes: h}
}

// Hash returns the recorded hash for path.
func (s *MemoryHashStore) Hash(path string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hashes[path]
	return h, ok
}

// SetHash records the hash for path.
func (s *MemoryHashStore) SetHash(path, hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hashes[path] = hash
}

// Snapshot returns a copy of all recorded hashes.
func (s *MemoryHashStore) Snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.hashes)
}

// ContentHash returns the hex SHA-256 of a document's text.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// IncrementalExtractor skips documents whose content has not changed since
// their last successful extraction. Changed documents have their previous
// nodes removed before they are extracted again.
type IncrementalExtractor struct {
	extractor *Extractor
	hashes    HashStore
}

// NewIncremental wraps ex. A nil store starts from an empty in-memory one.
func NewIncremental(ex *Extractor, hashes HashStore) *IncrementalExtractor {
	if hashes == nil {
		hashes = NewMemoryHashStore(nil)
	}
	return &IncrementalExtractor{extractor: ex, hashes: hashes}
}

// Hashes returns the underlying hash store.
func (ie *IncrementalExtractor) Hashes() HashStore {
	return ie.hashes
}

// Process extracts new or changed documents into g, one at a time.
func (ie *IncrementalExtractor) Process(ctx context.Context, docs []*model.Document, g *graph.Graph) []*model.ExtractionResult {
	results := make([]*model.ExtractionResult, 0, len(docs))
	added, changed, unchanged := 0, 0, 0
	for _, doc := range docs {
		state := ie.check(doc)
		switch {
		case state.unchanged:
			unchanged++
			results = append(results, &model.ExtractionResult{Document: doc.Path, Skipped: true})
			continue
		case state.known:
			changed++
		default:
			added++
		}
		results = append(results, ie.apply(doc, state, ie.extractor.Fetch(ctx, doc), g))
	}
	ie.extractor.logger.Info("incremental processing", "new", added, "changed", changed, "unchanged", unchanged)
	return results
}

type docState struct {
	hash      string
	known     bool
	unchanged bool
}

func (ie *IncrementalExtractor) check(doc *model.Document) docState {
	hash := ContentHash(doc.Text)
	prev, ok := ie.hashes.Hash(doc.Path)
	return docState{hash: hash, known: ok, unchanged: ok && prev == hash}
}

// apply removes stale nodes of a changed document, applies the fetched
// result and records the hash after a successful extraction.
func (ie *IncrementalExtractor) apply(doc *model.Document, state docState, f *Fetched, g *graph.Graph) *model.ExtractionResult {
	if state.known {
		removed := g.RemoveNodesByDocument(doc.Path)
		ie.extractor.logger.Info("document changed", "document", doc.Filename, "removed_nodes", removed)
	}
	result := ie.extractor.Apply(doc, f, g)
	if result.Succeeded() {
		ie.hashes.SetHash(doc.Path, state.hash)
	}
	return result
}
