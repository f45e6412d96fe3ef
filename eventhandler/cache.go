package eventhandler

import (
	"context"
	"fmt"
	"sync"

	"github.com/thorium-platform/thorium/apiclient"
	"github.com/thorium-platform/thorium/model"
)

// triggerCache is the handler's read-many view of every pipeline-level
// trigger, rebuilt wholesale whenever the API's cache-status dirty flag
// for the "triggers" domain is set, the same dirty-flag-rebuild contract
// scaler.Cache uses for images/pipelines.
type triggerCache struct {
	api *apiclient.Client

	mu       sync.RWMutex
	triggers []apiclient.TriggerSource
	warm     bool
}

func newTriggerCache(api *apiclient.Client) *triggerCache {
	return &triggerCache{api: api}
}

// refresh checks the dirty flag and, when set (or the cache has never been
// populated), refetches the full trigger list.
func (c *triggerCache) refresh(ctx context.Context) error {
	status, err := c.api.CacheStatus(ctx, true)
	if err != nil {
		return err
	}

	c.mu.RLock()
	warm := c.warm
	c.mu.RUnlock()
	if warm && !status["triggers"] {
		return nil
	}

	triggers, err := c.api.ListTriggers(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.triggers = triggers
	c.warm = true
	c.mu.Unlock()
	return nil
}

// matching returns every trigger source whose EventType and Match pattern
// are satisfied by ev.
func (c *triggerCache) matching(ev model.Event) []apiclient.TriggerSource {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []apiclient.TriggerSource
	for _, t := range c.triggers {
		if t.Trigger.EventType != ev.Type {
			continue
		}
		if matchesPayload(t.Trigger.Match, ev.Payload) {
			out = append(out, t)
		}
	}
	return out
}

// matchesPayload reports whether every key in match is present in payload
// with an equal stringified value. An empty match matches every payload of
// the right event type.
func matchesPayload(match map[string]string, payload map[string]any) bool {
	for k, want := range match {
		got, ok := payload[k]
		if !ok {
			return false
		}
		if fmt.Sprint(got) != want {
			return false
		}
	}
	return true
}
