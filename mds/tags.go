package mds

import (
	"time"

	"context"

	"github.com/thorium-platform/thorium/errs"
	"github.com/thorium-platform/thorium/model"
	"github.com/thorium-platform/thorium/partition"
)

// tagPartitionSize is the size-second window used to derive a tag's
// (year, bucket) partition key from its uploaded timestamp, per §6.
const tagPartitionSize = time.Hour

// PutTag inserts a tag row, deriving its partition key from Uploaded.
// Partition key is (type, group, year, bucket, key, value), clustering
// by (uploaded DESC, item).
func (c *Client) PutTag(ctx context.Context, t model.Tag) error {
	year, bucket := partition.Bucket(t.Uploaded, tagPartitionSize)
	const q = `
		INSERT INTO tags (item_type, "group", year, bucket, key, value, uploaded, item)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (item_type, "group", year, bucket, key, value, uploaded, item) DO NOTHING`
	_, err := c.pool.Exec(ctx, q, t.ItemType, t.Group, year, bucket, t.Key, t.Value, t.Uploaded, t.Item)
	if err != nil {
		return errs.Wrap(errs.Unavailable, "insert tag", err)
	}
	return nil
}

// ListTagsInPartition returns every tag uploaded into one (group, year,
// bucket) partition, newest first, for one (key, value) pair.
func (c *Client) ListTagsInPartition(ctx context.Context, itemType model.TagItemType, group string, year int, bucket int64, key, value string) ([]model.Tag, error) {
	const q = `
		SELECT item_type, "group", year, bucket, key, value, uploaded, item
		FROM tags
		WHERE item_type = $1 AND "group" = $2 AND year = $3 AND bucket = $4 AND key = $5 AND value = $6
		ORDER BY uploaded DESC, item`
	rows, err := c.pool.Query(ctx, q, itemType, group, year, bucket, key, value)
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "list tags", err)
	}
	defer rows.Close()

	var out []model.Tag
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.ItemType, &t.Group, &t.Year, &t.Bucket, &t.Key, &t.Value, &t.Uploaded, &t.Item); err != nil {
			return nil, errs.Wrap(errs.Internal, "scan tag row", err)
		}
		out = append(out, t)
	}
	return out, nil
}

// PartitionsForRange returns every (year, bucket) pair a scan over
// [from, to) must visit, given tagPartitionSize resolution: used by
// callers that need to fan a query out across partitions rather than
// relying on a cross-partition index.
func PartitionsForRange(from, to time.Time) [][2]any {
	var out [][2]any
	if !from.Before(to) {
		return out
	}
	startYear, startBucket := partition.Bucket(from, tagPartitionSize)
	start, _ := partition.Window(startYear, startBucket, tagPartitionSize)
	for t := start; t.Before(to); t = t.Add(tagPartitionSize) {
		year, bucket := partition.Bucket(t, tagPartitionSize)
		out = append(out, [2]any{year, bucket})
	}
	return out
}

// ListTagsByItem returns every tag currently recorded against one item in
// one group, across every (key, value) pair and partition: the point
// lookup the search-streamer's event phase uses to resolve a TagSearchEvent
// into the current document state for (item, group). This is a direct
// equality filter on item/group, not a partition-range scan, so it doesn't
// need the (year, bucket, key, value) prefix the table's clustering is
// optimised for.
func (c *Client) ListTagsByItem(ctx context.Context, itemType model.TagItemType, group, item string) ([]model.Tag, error) {
	const q = `
		SELECT item_type, "group", year, bucket, key, value, uploaded, item
		FROM tags
		WHERE item_type = $1 AND "group" = $2 AND item = $3
		ORDER BY uploaded DESC`
	rows, err := c.pool.Query(ctx, q, itemType, group, item)
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "list tags by item", err)
	}
	defer rows.Close()

	var out []model.Tag
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.ItemType, &t.Group, &t.Year, &t.Bucket, &t.Key, &t.Value, &t.Uploaded, &t.Item); err != nil {
			return nil, errs.Wrap(errs.Internal, "scan tag row", err)
		}
		out = append(out, t)
	}
	return out, nil
}

// TagItemRef names one (item_type, group, item) tuple with its most recent
// upload time, as enumerated by ListDistinctTagItems.
type TagItemRef struct {
	ItemType TagItemType
	Group    string
	Item     string
	Uploaded time.Time
}

// TagItemType is re-exported at the package level so callers outside mds
// (searchstreamer's initiation scan) don't need to import model just to
// name TagItemRef.ItemType.
type TagItemType = model.TagItemType

// ListDistinctTagItems enumerates every (item_type, group, item) tuple that
// has at least one tag, for the search-streamer's initiation phase to hash
// into token-range chunks. Thorium's tag volume is bounded by retention, so
// a full distinct scan is acceptable off the hot scheduling path.
func (c *Client) ListDistinctTagItems(ctx context.Context) ([]TagItemRef, error) {
	const q = `
		SELECT item_type, "group", item, MAX(uploaded)
		FROM tags
		GROUP BY item_type, "group", item`
	rows, err := c.pool.Query(ctx, q)
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "list distinct tag items", err)
	}
	defer rows.Close()

	var out []TagItemRef
	for rows.Next() {
		var r TagItemRef
		if err := rows.Scan(&r.ItemType, &r.Group, &r.Item, &r.Uploaded); err != nil {
			return nil, errs.Wrap(errs.Internal, "scan tag item ref", err)
		}
		out = append(out, r)
	}
	return out, nil
}
