package searchstreamer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thorium-platform/thorium/model"
)

func TestEventKindMapsSearchEventTypesOnly(t *testing.T) {
	kind, ok := eventKind(model.EventResultSearch)
	assert.True(t, ok)
	assert.Equal(t, KindResult, kind)

	kind, ok = eventKind(model.EventTagSearch)
	assert.True(t, ok)
	assert.Equal(t, KindTag, kind)

	_, ok = eventKind(model.EventNewSample)
	assert.False(t, ok)
	_, ok = eventKind(model.EventNewTags)
	assert.False(t, ok)
}

func TestCompoundKeyDistinguishesKindAndGroup(t *testing.T) {
	a := compoundKey(ItemKey{Kind: KindResult, Item: "x", Group: "g"})
	b := compoundKey(ItemKey{Kind: KindTag, Item: "x", Group: "g"})
	c := compoundKey(ItemKey{Kind: KindResult, Item: "x", Group: "other"})
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestChunkIDIsStableAndOrdered(t *testing.T) {
	assert.Equal(t, "chunk-0000", chunkID(0))
	assert.Equal(t, "chunk-0099", chunkID(99))
	assert.Less(t, chunkID(5), chunkID(10))
}
