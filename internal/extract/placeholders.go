package extract

import (
	"slices"
	"strings"

	"github.com/alfredjeanlab/tendergraph/internal/graph"
	"github.com/alfredjeanlab/tendergraph/internal/model"
)

// PlaceholderTag marks document nodes that stand in for a file referenced by
// another document but not yet seen.
const PlaceholderTag = "placeholder"

// similarityThreshold is the minimum word-level Jaccard similarity for two
// titles to name the same document.
const similarityThreshold = 0.6

// ResolvePlaceholders merges each placeholder node into the first real
// document node whose title matches it and returns the number merged.
func ResolvePlaceholders(g *graph.Graph) int {
	var placeholders, docs []*model.Node
	for _, n := range g.Nodes() {
		switch {
		case n.HasTag(PlaceholderTag):
			placeholders = append(placeholders, n)
		case n.Type == model.NodeDocument:
			docs = append(docs, n)
		}
	}

	merged := 0
	for _, p := range placeholders {
		name := strings.ToLower(p.Title)
		for _, d := range docs {
			if !titlesMatch(name, strings.ToLower(d.Title)) {
				continue
			}
			if kept, err := g.MergeDuplicateNodes(d.ID, p.ID); err == nil {
				kept.Tags = slices.DeleteFunc(kept.Tags, func(t string) bool { return t == PlaceholderTag })
				merged++
			}
			break
		}
	}
	return merged
}

func titlesMatch(a, b string) bool {
	return strings.Contains(b, a) || strings.Contains(a, b) || jaccard(a, b) >= similarityThreshold
}

func jaccard(a, b string) float64 {
	wa := wordSet(a)
	wb := wordSet(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	inter := 0
	for w := range wa {
		if wb[w] {
			inter++
		}
	}
	union := len(wa) + len(wb) - inter
	return float64(inter) / float64(union)
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		set[w] = true
	}
	return set
}
