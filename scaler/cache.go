package scaler

import (
	"context"
	"sync"

	"github.com/thorium-platform/thorium/apiclient"
	"github.com/thorium-platform/thorium/model"
)

// Cache is the scaler's read-many view of images and pipelines, protected
// by a read/write lock and resolved lazily against the API. The HTTP
// surface only exposes per-(group,name) lookups rather than a bulk list
// route, so this cache is populated on first use and invalidated
// wholesale rather than diffed incrementally.
type Cache struct {
	api *apiclient.Client

	mu        sync.RWMutex
	images    map[string]model.Image
	pipelines map[string]model.Pipeline
}

// NewCache builds an empty Cache resolved against api.
func NewCache(api *apiclient.Client) *Cache {
	return &Cache{
		api:       api,
		images:    make(map[string]model.Image),
		pipelines: make(map[string]model.Pipeline),
	}
}

func imageKey(group, name string) string    { return group + "/" + name }
func pipelineKey(group, name string) string { return group + "/" + name }

// Image resolves an Image definition, caching it for subsequent calls this
// process's lifetime (until Invalidate is called, e.g. on the API's cache
// dirty-flag signal).
func (c *Cache) Image(ctx context.Context, group, name string) (model.Image, error) {
	key := imageKey(group, name)

	c.mu.RLock()
	img, ok := c.images[key]
	c.mu.RUnlock()
	if ok {
		return img, nil
	}

	img, err := c.api.GetImage(ctx, group, name)
	if err != nil {
		return model.Image{}, err
	}

	c.mu.Lock()
	c.images[key] = img
	c.mu.Unlock()
	return img, nil
}

// Pipeline resolves a Pipeline definition, same caching contract as Image.
func (c *Cache) Pipeline(ctx context.Context, group, name string) (model.Pipeline, error) {
	key := pipelineKey(group, name)

	c.mu.RLock()
	p, ok := c.pipelines[key]
	c.mu.RUnlock()
	if ok {
		return p, nil
	}

	p, err := c.api.GetPipeline(ctx, group, name)
	if err != nil {
		return model.Pipeline{}, err
	}

	c.mu.Lock()
	c.pipelines[key] = p
	c.mu.Unlock()
	return p, nil
}

// Invalidate drops every cached entry, forcing the next lookup to refetch.
// Nothing in this repository calls it.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.images = make(map[string]model.Image)
	c.pipelines = make(map[string]model.Pipeline)
}
