// Package partition derives wide-column partition keys from timestamps.
//
// A (year, bucket) pair bounds the size of a single MDS partition: all rows
// uploaded in the same year and within the same size-second window share a
// partition, so a partition never grows past one year's worth of size-second
// buckets.
package partition

import "time"

// Bucket returns the (year, bucket) partition key for t, where bucket is the
// zero-based index of the size-second window within t's year that t falls
// into. size must be positive.
//
// Bucket is monotone non-decreasing in t within a single year (the property
// the scaler and search-streamer rely on when scanning a partition range in
// upload order), and (year, bucket) recovers t to within size seconds.
func Bucket(t time.Time, size time.Duration) (year int, bucket int64) {
	if size <= 0 {
		size = time.Second
	}
	utc := t.UTC()
	year = utc.Year()
	startOfYear := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	elapsed := utc.Sub(startOfYear)
	if elapsed < 0 {
		elapsed = 0
	}
	bucket = int64(elapsed / size)
	return year, bucket
}

// Window returns the inclusive start and exclusive end of the time range
// that maps to (year, bucket) under the given size: the inverse of
// Bucket, exact up to size's resolution.
func Window(year int, bucket int64, size time.Duration) (start, end time.Time) {
	if size <= 0 {
		size = time.Second
	}
	startOfYear := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	start = startOfYear.Add(time.Duration(bucket) * size)
	end = start.Add(size)
	return start, end
}
