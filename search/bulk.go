package search

import (
	"context"

	"github.com/thorium-platform/thorium/errs"
)

// BulkResult is the per-document outcome of a BulkIndex call.
type BulkResult struct {
	ID    string
	OK    bool
	Error string
}

// BulkIndex writes a batch of documents in one CouchDB request, grounded
// on db/couchdb_bulk.go's BulkSaveDocuments (kivik's BulkDocs, one
// HTTP round trip for the whole batch). Used by the search-streamer's
// event phase to flush a compacted batch and by the initiation phase to
// flush one token-range chunk.
func (c *Client) BulkIndex(ctx context.Context, docs []Document) ([]BulkResult, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	payload := make([]any, len(docs))
	for i, d := range docs {
		payload[i] = d
	}

	raw, err := c.db.BulkDocs(ctx, payload)
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "bulk index documents", err)
	}

	out := make([]BulkResult, len(raw))
	for i, r := range raw {
		out[i] = BulkResult{ID: r.ID, OK: r.Error == nil}
		if r.Error != nil {
			out[i].Error = r.Error.Error()
		}
	}
	return out, nil
}
