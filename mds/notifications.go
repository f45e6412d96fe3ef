package mds

import (
	"context"

	"github.com/thorium-platform/thorium/errs"
	"github.com/thorium-platform/thorium/model"
)

// PutNotification inserts a notification row, partitioned by (kind, key)
// and clustered by (created, id). The expires column records
// n.Expires(optOutOfExpiry), which is false for level Error. This client
// neither purges nor filters expired rows: ListNotifications returns every
// row regardless of that column.
func (c *Client) PutNotification(ctx context.Context, n model.Notification, optOutOfExpiry bool) error {
	const q = `
		INSERT INTO notifications (kind, entity_key, created, id, level, msg, ban_id, expires)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := c.pool.Exec(ctx, q, n.Kind, n.EntityKey, n.Created, n.ID, n.Level, n.Msg, nullableString(n.BanID), n.Expires(optOutOfExpiry))
	if err != nil {
		return errs.Wrap(errs.Unavailable, "insert notification", err)
	}
	return nil
}

// ListNotifications returns every notification for one (kind, entity_key)
// partition, newest first.
func (c *Client) ListNotifications(ctx context.Context, kind, entityKey string) ([]model.Notification, error) {
	const q = `
		SELECT kind, entity_key, created, id, level, msg, COALESCE(ban_id, '')
		FROM notifications
		WHERE kind = $1 AND entity_key = $2
		ORDER BY created DESC, id DESC`
	rows, err := c.pool.Query(ctx, q, kind, entityKey)
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "list notifications", err)
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.Kind, &n.EntityKey, &n.Created, &n.ID, &n.Level, &n.Msg, &n.BanID); err != nil {
			return nil, errs.Wrap(errs.Internal, "scan notification row", err)
		}
		out = append(out, n)
	}
	return out, nil
}

// DeleteNotification removes a notification explicitly (as opposed to
// waiting for TTL expiry).
func (c *Client) DeleteNotification(ctx context.Context, kind, entityKey, id string) error {
	const q = `DELETE FROM notifications WHERE kind = $1 AND entity_key = $2 AND id = $3`
	tag, err := c.pool.Exec(ctx, q, kind, entityKey, id)
	if err != nil {
		return errs.Wrap(errs.Unavailable, "delete notification", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.New(errs.NotFound, "notification: "+id)
	}
	return nil
}
