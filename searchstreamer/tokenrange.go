// Package searchstreamer implements the search-streamer (C7): the
// control loop that keeps the external search store's documents in sync
// with MDS, either by a one-time token-range initiation scan over an
// empty index or by consuming ResultSearch/TagSearch events off the
// coordination store.
package searchstreamer

import (
	"math"

	"github.com/twmb/murmur3"

	"github.com/thorium-platform/thorium/errs"
)

// minToken and maxToken bound the full token space the initiation phase
// subdivides: [-2^63, 2^63).
const (
	minToken int64 = math.MinInt64
	maxToken int64 = math.MaxInt64
)

// Range is a half-open [Start, End) slice of the token space.
type Range struct {
	Start int64
	End   int64
}

// Contains reports whether token falls in [r.Start, r.End). The final
// chunk of a split is closed on the right to include maxToken itself.
func (r Range) Contains(token int64) bool {
	if token < r.Start {
		return false
	}
	if r.End == maxToken {
		return token <= r.End
	}
	return token < r.End
}

// TokenFor hashes key into the signed 64-bit token space via Murmur3, the
// same hash function Cassandra-style partitioners use for token-ring
// placement.
func TokenFor(key string) int64 {
	return int64(murmur3.Sum64([]byte(key)))
}

// SplitRange subdivides [minToken, maxToken) into chunks contiguous,
// non-overlapping, equal-width (up to integer rounding) Ranges. chunks
// must be positive.
func SplitRange(chunks int) ([]Range, error) {
	if chunks <= 0 {
		return nil, errs.New(errs.Validation, "chunk_count must be positive")
	}
	if chunks == 1 {
		return []Range{{Start: minToken, End: maxToken}}, nil
	}

	// The full span (2^64 - 1) doesn't fit in an int64, so the width is
	// computed in uint64 and converted back only once chunks >= 2 has
	// guaranteed it is at most span/2 = 2^63 - 1, which fits.
	span := uint64(maxToken) - uint64(minToken) // == 2^64 - 1
	width := span / uint64(chunks)
	if width == 0 {
		width = 1
	}

	out := make([]Range, 0, chunks)
	start := minToken
	for i := 0; i < chunks; i++ {
		var end int64
		if i == chunks-1 {
			end = maxToken
		} else {
			end = start + int64(width)
		}
		out = append(out, Range{Start: start, End: end})
		start = end
	}
	return out, nil
}
