package mds

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPartitionsForRangeCoversEachBucketOnce(t *testing.T) {
	from := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(3 * tagPartitionSize)

	partitions := PartitionsForRange(from, to)

	assert.Len(t, partitions, 3)
	seen := map[[2]any]bool{}
	for _, p := range partitions {
		assert.False(t, seen[p], "bucket %v listed twice", p)
		seen[p] = true
	}
}

func TestPartitionsForRangeEmptyWhenFromNotBeforeTo(t *testing.T) {
	now := time.Now().UTC()
	assert.Empty(t, PartitionsForRange(now, now))
}
