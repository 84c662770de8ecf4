package extract

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alfredjeanlab/tendergraph/internal/graph"
	"github.com/alfredjeanlab/tendergraph/internal/model"
)

// DefaultConcurrency bounds the number of in-flight model requests.
const DefaultConcurrency = 4

// ProgressFunc is called once per document, in input order, after its
// result has been applied.
type ProgressFunc func(done, total int, result *model.ExtractionResult)

// BatchOptions configures ProcessBatch.
type BatchOptions struct {
	Concurrency int
	Progress    ProgressFunc
}

// ProcessBatch extracts docs into g. Model requests run concurrently; their
// results are applied to the graph one at a time in input order, so g has a
// single writer. Per-document failures are collected on the result and do
// not stop the batch. Afterwards placeholders are resolved and conditions
// evaluated.
func (ie *IncrementalExtractor) ProcessBatch(ctx context.Context, docs []*model.Document, g *graph.Graph, opts BatchOptions) *model.BatchResult {
	ex := ie.extractor
	limit := opts.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	batch := &model.BatchResult{StartedAt: time.Now().UTC()}
	states := make([]docState, len(docs))
	fetched := make([]*Fetched, len(docs))

	var eg errgroup.Group
	eg.SetLimit(limit)
	for i, doc := range docs {
		states[i] = ie.check(doc)
		if states[i].unchanged {
			continue
		}
		eg.Go(func() error {
			fetched[i] = ex.Fetch(ctx, doc)
			return nil
		})
	}
	// Fetch never fails the group; errors live on each Fetched.
	_ = eg.Wait()

	for i, doc := range docs {
		var result *model.ExtractionResult
		if states[i].unchanged {
			ex.logger.Debug("unchanged document", "document", doc.Filename)
			result = &model.ExtractionResult{Document: doc.Path, Skipped: true}
		} else {
			result = ie.apply(doc, states[i], fetched[i], g)
			if !result.Succeeded() {
				ex.logger.Warn("document failed", "document", doc.Filename, "err", result.Error)
			}
		}
		batch.Add(result)
		if opts.Progress != nil {
			opts.Progress(i+1, len(docs), result)
		}
	}

	batch.PlaceholdersMerged = ResolvePlaceholders(g)
	ruledOut := g.EvaluateConditions()
	batch.FinishedAt = time.Now().UTC()

	ex.logger.Info("batch completed",
		"documents", len(docs),
		"processed", batch.Processed,
		"skipped", batch.Skipped,
		"failed", len(batch.Errors),
		"placeholders_merged", batch.PlaceholdersMerged,
		"conditions_ruled_out", ruledOut,
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
		"elapsed", batch.FinishedAt.Sub(batch.StartedAt))
	return batch
}

// ProcessBatch extracts every document in docs, regardless of earlier runs.
func (e *Extractor) ProcessBatch(ctx context.Context, docs []*model.Document, g *graph.Graph, opts BatchOptions) *model.BatchResult {
	return NewIncremental(e, nil).ProcessBatch(ctx, docs, g, opts)
}
