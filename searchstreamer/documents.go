package searchstreamer

import (
	"context"

	"github.com/thorium-platform/thorium/errs"
	"github.com/thorium-platform/thorium/mds"
	"github.com/thorium-platform/thorium/model"
	"github.com/thorium-platform/thorium/search"
)

// Kind names the entity a search document indexes, independent of
// model.EventType so a (kind, item, group) compaction key stays stable across
// the event and initiation phases.
type Kind string

const (
	KindResult Kind = "result"
	KindTag    Kind = "tag"
)

// eventKind maps an event type to the document Kind it resolves into.
func eventKind(t model.EventType) (Kind, bool) {
	switch t {
	case model.EventResultSearch:
		return KindResult, true
	case model.EventTagSearch:
		return KindTag, true
	default:
		return "", false
	}
}

// ItemKey is the compound (kind, item, group) compaction key: the same
// triple search.DocID derives a search document's id from.
type ItemKey struct {
	Kind  Kind
	Item  string
	Group string
}

// Resolver resolves the current MDS state for one ItemKey into the
// document that should be written for it.
type Resolver struct {
	MDS *mds.Client
}

// Resolve reads every result or tag currently recorded for k from MDS and
// folds them into one search.Document, issuing one query for a result key
// and two (files, then repos) for a tag key.
func (r *Resolver) Resolve(ctx context.Context, k ItemKey) (search.Document, error) {
	switch k.Kind {
	case KindResult:
		return r.resolveResult(ctx, k)
	case KindTag:
		return r.resolveTag(ctx, k)
	default:
		return search.Document{}, errs.New(errs.Validation, "unknown search document kind: "+string(k.Kind))
	}
}

func (r *Resolver) resolveResult(ctx context.Context, k ItemKey) (search.Document, error) {
	results, err := r.MDS.ListResultsByItem(ctx, k.Group, k.Item)
	if err != nil {
		return search.Document{}, err
	}

	tools := make([]map[string]any, 0, len(results))
	for _, res := range results {
		tools = append(tools, map[string]any{
			"id":           res.ID,
			"tool":         res.Tool,
			"tool_version": res.ToolVersion,
			"cmd":          res.Cmd,
			"uploaded":     res.Uploaded,
			"display_type": res.DisplayType,
			"result":       res.Result,
		})
	}

	return search.Document{
		ID:    search.DocID(string(KindResult), k.Item, k.Group),
		Kind:  string(KindResult),
		Item:  k.Item,
		Group: k.Group,
		Body:  map[string]any{"results": tools},
	}, nil
}

func (r *Resolver) resolveTag(ctx context.Context, k ItemKey) (search.Document, error) {
	files, err := r.MDS.ListTagsByItem(ctx, model.TagItemFiles, k.Group, k.Item)
	if err != nil {
		return search.Document{}, err
	}
	repos, err := r.MDS.ListTagsByItem(ctx, model.TagItemRepos, k.Group, k.Item)
	if err != nil {
		return search.Document{}, err
	}
	all := append(files, repos...)

	tags := make(map[string][]string, len(all))
	for _, t := range all {
		tags[t.Key] = append(tags[t.Key], t.Value)
	}

	return search.Document{
		ID:    search.DocID(string(KindTag), k.Item, k.Group),
		Kind:  string(KindTag),
		Item:  k.Item,
		Group: k.Group,
		Body:  map[string]any{"tags": tags},
	}, nil
}
