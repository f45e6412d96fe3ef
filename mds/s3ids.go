package mds

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/thorium-platform/thorium/errs"
)

// PutS3ID records the bidirectional mapping between a content hash and
// its blob-store object id. The s3_sha256s direction is served by a
// materialised view over the same table in a real deployment; here both
// lookups are plain indexed queries against one table.
func (c *Client) PutS3ID(ctx context.Context, sha256, objectID string) error {
	const q = `
		INSERT INTO s3_ids (sha256, object_id) VALUES ($1, $2)
		ON CONFLICT (sha256) DO UPDATE SET object_id = EXCLUDED.object_id`
	if _, err := c.pool.Exec(ctx, q, sha256, objectID); err != nil {
		return errs.Wrap(errs.Unavailable, "insert s3 id mapping", err)
	}
	return nil
}

// ObjectIDForSHA256 resolves a content hash to its blob-store object id.
func (c *Client) ObjectIDForSHA256(ctx context.Context, sha256 string) (string, error) {
	const q = `SELECT object_id FROM s3_ids WHERE sha256 = $1`
	var objectID string
	err := c.pool.QueryRow(ctx, q, sha256).Scan(&objectID)
	if err == pgx.ErrNoRows {
		return "", errs.New(errs.NotFound, "s3 id for sha256: "+sha256)
	}
	if err != nil {
		return "", errs.Wrap(errs.Unavailable, "read s3 id mapping", err)
	}
	return objectID, nil
}

// SHA256ForObjectID resolves a blob-store object id back to its content
// hash: the s3_sha256s direction of the mapping.
func (c *Client) SHA256ForObjectID(ctx context.Context, objectID string) (string, error) {
	const q = `SELECT sha256 FROM s3_ids WHERE object_id = $1`
	var sha256 string
	err := c.pool.QueryRow(ctx, q, objectID).Scan(&sha256)
	if err == pgx.ErrNoRows {
		return "", errs.New(errs.NotFound, "sha256 for s3 id: "+objectID)
	}
	if err != nil {
		return "", errs.Wrap(errs.Unavailable, "read s3 id mapping", err)
	}
	return sha256, nil
}
