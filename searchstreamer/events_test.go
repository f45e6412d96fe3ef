package searchstreamer

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thorium-platform/thorium/cs"
)

func popped(t *testing.T, id string, payload map[string]any) cs.PoppedEvent {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return cs.PoppedEvent{ID: id, Timestamp: time.Now(), Payload: raw}
}

func TestCompactPoppedKeepsLastWriterPerItem(t *testing.T) {
	events := []cs.PoppedEvent{
		popped(t, "e1", map[string]any{"key": "sha-a", "group": "g1"}),
		popped(t, "e2", map[string]any{"key": "sha-b", "group": "g1"}),
		popped(t, "e3", map[string]any{"key": "sha-a", "group": "g1"}),
	}

	keys, idsByKey, malformed := compactPopped(KindResult, events)

	assert.Empty(t, malformed)
	require.Len(t, keys, 2)
	assert.ElementsMatch(t, []ItemKey{
		{Kind: KindResult, Item: "sha-a", Group: "g1"},
		{Kind: KindResult, Item: "sha-b", Group: "g1"},
	}, keys)

	// both events for sha-a (e1 and e3) must still be cleared once the
	// compacted key is indexed, not just the most recent one.
	assert.ElementsMatch(t, []string{"e1", "e3"}, idsByKey[ItemKey{Kind: KindResult, Item: "sha-a", Group: "g1"}])
	assert.ElementsMatch(t, []string{"e2"}, idsByKey[ItemKey{Kind: KindResult, Item: "sha-b", Group: "g1"}])
}

func TestCompactPoppedUsesItemFieldForTags(t *testing.T) {
	events := []cs.PoppedEvent{
		popped(t, "e1", map[string]any{"item": "sha-a", "group": "g1"}),
	}
	keys, _, malformed := compactPopped(KindTag, events)
	assert.Empty(t, malformed)
	require.Len(t, keys, 1)
	assert.Equal(t, ItemKey{Kind: KindTag, Item: "sha-a", Group: "g1"}, keys[0])
}

func TestCompactPoppedDropsMalformedPayloads(t *testing.T) {
	events := []cs.PoppedEvent{
		{ID: "bad", Payload: []byte("not json")},
		popped(t, "good", map[string]any{"key": "sha-a", "group": "g1"}),
	}
	keys, idsByKey, malformed := compactPopped(KindResult, events)
	assert.Equal(t, []string{"bad"}, malformed)
	require.Len(t, keys, 1)
	assert.Equal(t, []string{"good"}, idsByKey[keys[0]])
}
