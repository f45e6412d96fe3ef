package partition

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketMonotoneWithinYear(t *testing.T) {
	size := 10 * time.Minute
	base := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	_, b1 := Bucket(base, size)
	_, b2 := Bucket(base.Add(5*time.Minute), size)
	_, b3 := Bucket(base.Add(15*time.Minute), size)

	assert.LessOrEqual(t, b1, b2)
	assert.Less(t, b2, b3)
}

func TestBucketResetsAcrossYearBoundary(t *testing.T) {
	size := time.Hour
	endOfYear := time.Date(2025, time.December, 31, 23, 0, 0, 0, time.UTC)
	startOfNextYear := time.Date(2026, time.January, 1, 1, 0, 0, 0, time.UTC)

	year1, bucket1 := Bucket(endOfYear, size)
	year2, bucket2 := Bucket(startOfNextYear, size)

	require.Equal(t, 2025, year1)
	require.Equal(t, 2026, year2)
	assert.Equal(t, int64(8759), bucket1)
	assert.Equal(t, int64(1), bucket2)
}

func TestWindowInvertsBucketWithinResolution(t *testing.T) {
	size := 30 * time.Second
	original := time.Date(2026, time.July, 31, 12, 34, 56, 0, time.UTC)

	year, bucket := Bucket(original, size)
	start, end := Window(year, bucket, size)

	assert.True(t, !original.Before(start) && original.Before(end))
	assert.Equal(t, size, end.Sub(start))
}

func TestBucketClampsNonPositiveSize(t *testing.T) {
	assert.NotPanics(t, func() {
		Bucket(time.Now().UTC(), 0)
		Bucket(time.Now().UTC(), -time.Second)
	})
}
