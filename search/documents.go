package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	kivik "github.com/go-kivik/kivik/v4"

	"github.com/thorium-platform/thorium/errs"
)

// Document is one indexed (entity, group) tuple. ID is deterministic so
// repeated writes for the same (kind, item, group) update the same row
// rather than accumulating duplicates.
type Document struct {
	ID    string         `json:"_id"`
	Rev   string         `json:"_rev,omitempty"`
	Kind  string         `json:"kind"`
	Item  string         `json:"item"`
	Group string         `json:"group"`
	Body  map[string]any `json:"body"`
}

// DocID derives the deterministic document id for (kind, item, group) per
// §4.3's "id = deterministic hash of (kind, item, group)".
func DocID(kind, item, group string) string {
	h := sha256.Sum256([]byte(kind + "\x00" + item + "\x00" + group))
	return hex.EncodeToString(h[:])
}

// GetDocument reads one document by its deterministic id.
func (c *Client) GetDocument(ctx context.Context, id string) (Document, error) {
	var doc Document
	if err := c.db.Get(ctx, id).ScanDoc(&doc); err != nil {
		if kivik.HTTPStatus(err) == 404 {
			return Document{}, errs.New(errs.NotFound, "search document: "+id)
		}
		return Document{}, errs.Wrap(errs.Unavailable, "read search document", err)
	}
	return doc, nil
}

// PutDocument creates or updates a document, resolving its current
// revision first so repeated writes for the same key don't conflict.
func (c *Client) PutDocument(ctx context.Context, doc Document) error {
	if doc.Rev == "" {
		existing, err := c.GetDocument(ctx, doc.ID)
		if err == nil {
			doc.Rev = existing.Rev
		} else if !errs.Is(err, errs.NotFound) {
			return err
		}
	}
	if _, err := c.db.Put(ctx, doc.ID, doc); err != nil {
		return errs.Wrap(errs.Unavailable, "write search document", err)
	}
	return nil
}

// DeleteDocument removes a document by id and current revision.
func (c *Client) DeleteDocument(ctx context.Context, id, rev string) error {
	if _, err := c.db.Delete(ctx, id, rev); err != nil {
		return errs.Wrap(errs.Unavailable, "delete search document", err)
	}
	return nil
}
