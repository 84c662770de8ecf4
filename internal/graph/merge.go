package graph

import (
	"slices"

	"github.com/alfredjeanlab/tendergraph/internal/model"
)

// MergeDuplicateNodes folds drop into keep. Every edge touching drop is
// re-pointed to keep, tags are unioned, metadata is merged with keep's
// values winning, and an empty source text on keep is backfilled. drop is
// then removed.
func (g *Graph) MergeDuplicateNodes(keepID, dropID string) (*model.Node, error) {
	if keepID == dropID {
		return nil, ErrSelfMerge
	}
	keep, ok := g.nodes[keepID]
	if !ok {
		return nil, ErrNotFound
	}
	drop, ok := g.nodes[dropID]
	if !ok {
		return nil, ErrNotFound
	}

	for _, eid := range slices.Clone(g.reverse[dropID]) {
		e, ok := g.edges[eid]
		if !ok {
			continue
		}
		e.TargetID = keepID
		g.reverse[keepID] = append(g.reverse[keepID], eid)
	}
	for _, eid := range slices.Clone(g.forward[dropID]) {
		e, ok := g.edges[eid]
		if !ok {
			continue
		}
		e.SourceID = keepID
		g.forward[keepID] = append(g.forward[keepID], eid)
	}

	keep.Tags = unionTags(keep.Tags, drop.Tags)
	for k, v := range drop.Metadata {
		if keep.Metadata == nil {
			keep.Metadata = make(map[string]any)
		}
		if _, exists := keep.Metadata[k]; !exists {
			keep.Metadata[k] = v
		}
	}
	if keep.SourceText == "" && drop.SourceText != "" {
		keep.SourceText = drop.SourceText
	}
	keep.Touch()

	delete(g.nodes, dropID)
	delete(g.forward, dropID)
	delete(g.reverse, dropID)
	g.nodeOrder = removeID(g.nodeOrder, dropID)
	return keep, nil
}
