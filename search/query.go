package search

import (
	"context"

	"github.com/thorium-platform/thorium/errs"
)

// FindByGroup runs one Mango query, an equality selector on both kind and
// group, to list every document of one kind that belongs to one group. It
// creates and names no secondary index.
func (c *Client) FindByGroup(ctx context.Context, kind, group string) ([]Document, error) {
	selector := map[string]any{
		"selector": map[string]any{
			"kind":  kind,
			"group": group,
		},
	}

	rows := c.db.Find(ctx, selector)
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var doc Document
		if err := rows.ScanDoc(&doc); err != nil {
			return nil, errs.Wrap(errs.Internal, "scan search document", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.Unavailable, "query search documents", err)
	}
	return out, nil
}
