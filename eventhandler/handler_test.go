package eventhandler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/thorium-platform/thorium/apiclient"
	"github.com/thorium-platform/thorium/model"
)

func TestMatchesPayloadEmptyMatchesAnything(t *testing.T) {
	assert.True(t, matchesPayload(nil, map[string]any{"kind": "pe"}))
}

func TestMatchesPayloadRequiresAllKeys(t *testing.T) {
	match := map[string]string{"kind": "pe", "arch": "x86"}
	assert.True(t, matchesPayload(match, map[string]any{"kind": "pe", "arch": "x86", "extra": "1"}))
	assert.False(t, matchesPayload(match, map[string]any{"kind": "pe"}))
	assert.False(t, matchesPayload(match, map[string]any{"kind": "elf", "arch": "x86"}))
}

func TestTriggerCacheMatchingFiltersByEventTypeAndPattern(t *testing.T) {
	c := newTriggerCache(nil)
	c.triggers = []apiclient.TriggerSource{
		{Group: "g1", Pipeline: "triage", Trigger: model.Trigger{EventType: model.EventNewTags, Match: map[string]string{"kind": "pe"}}},
		{Group: "g1", Pipeline: "unrelated", Trigger: model.Trigger{EventType: model.EventNewSample}},
	}
	c.warm = true

	ev := model.Event{Type: model.EventNewTags, Payload: map[string]any{"kind": "pe"}}
	matches := c.matching(ev)
	assert := assert.New(t)
	assert.Len(matches, 1)
	assert.Equal("triage", matches[0].Pipeline)
}

func TestRuntimeBudgetPrefersImageEstimate(t *testing.T) {
	img := model.Image{RuntimeEstimate: 45 * time.Second}
	pipeline := model.Pipeline{SLASeconds: 300}
	assert.Equal(t, 45*time.Second, runtimeBudget(img, pipeline))
}

func TestRuntimeBudgetFallsBackToPipelineSLA(t *testing.T) {
	pipeline := model.Pipeline{SLASeconds: 120}
	assert.Equal(t, 120*time.Second, runtimeBudget(model.Image{}, pipeline))
}

func TestRuntimeBudgetDefaultsWhenNeitherSet(t *testing.T) {
	assert.Equal(t, 60*time.Second, runtimeBudget(model.Image{}, model.Pipeline{}))
}

func TestReactRejectsBeyondMaxDepth(t *testing.T) {
	h := &Handler{MaxDepth: 2, cache: newTriggerCache(nil)}
	h.cache.triggers = []apiclient.TriggerSource{
		{Group: "g1", Pipeline: "triage", Trigger: model.Trigger{EventType: model.EventNewTags, Match: map[string]string{"kind": "pe"}}},
	}
	h.cache.warm = true

	// depth 2 -> child depth 3 exceeds MaxDepth 2, so no API/MDS calls should
	// be attempted (a nil API/MDS would panic if reached).
	ev := model.Event{Type: model.EventNewTags, Depth: 2, Payload: map[string]any{"kind": "pe"}}
	err := h.react(context.Background(), ev)
	assert.NoError(t, err)
}
