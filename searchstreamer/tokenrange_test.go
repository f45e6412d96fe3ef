package searchstreamer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitRangeSingleChunkCoversFullSpan(t *testing.T) {
	ranges, err := SplitRange(1)
	require.NoError(t, err)
	require.Len(t, ranges, 1)
	assert.Equal(t, minToken, ranges[0].Start)
	assert.Equal(t, maxToken, ranges[0].End)
}

func TestSplitRangeIsContiguousAndCoversFullSpan(t *testing.T) {
	ranges, err := SplitRange(7)
	require.NoError(t, err)
	require.Len(t, ranges, 7)

	assert.Equal(t, minToken, ranges[0].Start)
	assert.Equal(t, maxToken, ranges[len(ranges)-1].End)
	for i := 1; i < len(ranges); i++ {
		assert.Equal(t, ranges[i-1].End, ranges[i].Start, "chunk %d must start where %d ended", i, i-1)
	}
}

func TestSplitRangeRejectsNonPositiveChunkCount(t *testing.T) {
	_, err := SplitRange(0)
	assert.Error(t, err)
	_, err = SplitRange(-3)
	assert.Error(t, err)
}

func TestRangeContainsIsHalfOpenExceptTheFinalChunk(t *testing.T) {
	ranges, err := SplitRange(4)
	require.NoError(t, err)

	first := ranges[0]
	assert.True(t, first.Contains(first.Start))
	assert.False(t, first.Contains(first.End), "end boundary belongs to the next chunk")

	last := ranges[len(ranges)-1]
	assert.True(t, last.Contains(last.End), "the final chunk is closed on both ends so maxToken is reachable")
}

func TestEveryTokenFallsInExactlyOneChunk(t *testing.T) {
	ranges, err := SplitRange(16)
	require.NoError(t, err)

	keys := []string{"a", "b", "some/file/path", "group-1:item-2", ""}
	for _, k := range keys {
		tok := TokenFor(k)
		hits := 0
		for _, r := range ranges {
			if r.Contains(tok) {
				hits++
			}
		}
		assert.Equal(t, 1, hits, "token for %q must land in exactly one chunk", k)
	}
}

func TestTokenForIsDeterministic(t *testing.T) {
	assert.Equal(t, TokenFor("abc"), TokenFor("abc"))
}
