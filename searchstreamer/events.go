package searchstreamer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/thorium-platform/thorium/cs"
	"github.com/thorium-platform/thorium/logging"
	"github.com/thorium-platform/thorium/model"
)

// popBatch and inFlightLag mirror eventhandler's constants: the
// search-streamer's event phase uses the identical pop/clear/reset_all
// protocol against a different pair of event types.
const (
	popBatch    = 200
	inFlightLag = 3 * time.Second
)

// EventPhase drives the steady-state search-streamer loop: pop a batch of
// ResultSearch/TagSearch events, compact same-key events within the
// batch, resolve and index the survivors, clear what succeeded.
type EventPhase struct {
	EventType model.EventType

	CS      *cs.Client
	Indexer *Indexer
	Monitor *Monitor
}

// NewEventPhase builds an EventPhase for one event type.
func NewEventPhase(eventType model.EventType, csClient *cs.Client, indexer *Indexer, monitor *Monitor) *EventPhase {
	return &EventPhase{EventType: eventType, CS: csClient, Indexer: indexer, Monitor: monitor}
}

// ResetAll returns every in-flight event for this phase's event type back
// to the main queue. Called once on process start to recover events left
// in flight by a crashed prior run.
func (p *EventPhase) ResetAll(ctx context.Context) error {
	return p.CS.ResetAllEvents(ctx, string(p.EventType))
}

// Tick pops one batch, compacts it down to one ItemKey per last-writer,
// indexes the survivors, and clears every event whose key was
// successfully indexed, including the earlier, compacted-away events
// for the same key, since their content is already folded into the
// document the final event produced.
func (p *EventPhase) Tick(ctx context.Context) error {
	log := logging.FromContext(ctx)

	popped, err := p.CS.PopEvents(ctx, string(p.EventType), popBatch, inFlightLag, time.Now())
	if err != nil {
		return err
	}
	if len(popped) == 0 {
		return nil
	}

	kind, ok := eventKind(p.EventType)
	if !ok {
		log.Error().Str("event_type", string(p.EventType)).Msg("search-streamer event phase bound to an unknown event type")
		return nil
	}

	keys, idsByKey, malformed := compactPopped(kind, popped)

	var successes, failures int64
	indexErr := p.Indexer.IndexAll(ctx, keys)

	var clearIDs []string
	clearIDs = append(clearIDs, malformed...)
	if indexErr != nil {
		log.Warn().Err(indexErr).Int("keys", len(keys)).Msg("search-streamer batch index failed, leaving events in flight for retry")
		failures = int64(len(keys))
	} else {
		successes = int64(len(keys))
		for _, ids := range idsByKey {
			clearIDs = append(clearIDs, ids...)
		}
	}

	if len(clearIDs) > 0 {
		if err := p.CS.ClearEvents(ctx, string(p.EventType), clearIDs); err != nil {
			return err
		}
	}
	if p.Monitor != nil {
		p.Monitor.Report(Progress{Kind: string(kind), Successes: successes, Failures: failures})
	}
	return nil
}

// compactPopped decodes a batch of popped events and folds them down to
// one ItemKey per (kind, item, group), keeping every event id that
// contributed so a successful index clears all of them, not just the last.
// Keys come back in the order first seen; a later occurrence of a key only
// adds its id to that key's list. The document written for a key is
// resolved from current MDS state, so it reflects the latest write.
//
// ResultSearch payloads name the item under "key" (it mirrors
// model.Result.Key); TagSearch payloads name it under "item" (it
// mirrors model.Tag.Item); both always carry "group".
func compactPopped(kind Kind, popped []cs.PoppedEvent) (keys []ItemKey, idsByKey map[ItemKey][]string, malformed []string) {
	idsByKey = make(map[ItemKey][]string)
	order := make([]ItemKey, 0, len(popped))

	for _, pe := range popped {
		var payload struct {
			Key   string `json:"key"`
			Item  string `json:"item"`
			Group string `json:"group"`
		}
		if err := json.Unmarshal(pe.Payload, &payload); err != nil {
			malformed = append(malformed, pe.ID)
			continue
		}
		item := payload.Item
		if kind == KindResult {
			item = payload.Key
		}
		key := ItemKey{Kind: kind, Item: item, Group: payload.Group}
		if _, seen := idsByKey[key]; !seen {
			order = append(order, key)
		}
		idsByKey[key] = append(idsByKey[key], pe.ID)
	}

	keys = order
	return keys, idsByKey, malformed
}
