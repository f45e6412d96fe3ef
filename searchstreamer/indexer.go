package searchstreamer

import (
	"context"

	"github.com/thorium-platform/thorium/errs"
	"github.com/thorium-platform/thorium/logging"
	"github.com/thorium-platform/thorium/search"
)

// Indexer resolves a batch of ItemKeys against MDS and writes the
// resulting documents to the search store in one bulk call, shared by
// both the initiation and event phases.
type Indexer struct {
	Resolver *Resolver
	Search   *search.Client
	Metrics  *logging.Metrics
}

// IndexAll resolves every key in keys and flushes them through one
// BulkIndex call, so a batch of compacted events costs one round trip to
// the search store.
func (ix *Indexer) IndexAll(ctx context.Context, keys []ItemKey) error {
	if len(keys) == 0 {
		return nil
	}

	docs := make([]search.Document, 0, len(keys))
	kinds := make([]Kind, 0, len(keys))
	for _, k := range keys {
		doc, err := ix.Resolver.Resolve(ctx, k)
		if err != nil {
			if errs.Is(err, errs.NotFound) {
				continue // item has no remaining rows; nothing to index
			}
			return err
		}
		docs = append(docs, doc)
		kinds = append(kinds, k.Kind)
	}
	if len(docs) == 0 {
		return nil
	}

	results, err := ix.Search.BulkIndex(ctx, docs)
	if err != nil {
		return err
	}

	var failed int64
	for i, r := range results {
		if !r.OK {
			failed++
			continue
		}
		if ix.Metrics != nil {
			ix.Metrics.DocumentsIndexed.WithLabelValues(string(kinds[i])).Inc()
		}
	}
	if failed > 0 && ix.Metrics != nil {
		ix.Metrics.BulkErrors.WithLabelValues("mixed").Add(float64(failed))
	}
	if failed == int64(len(results)) {
		return errs.New(errs.Unavailable, "bulk index: every document failed")
	}
	return nil
}
