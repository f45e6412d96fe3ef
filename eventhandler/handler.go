// Package eventhandler consumes NewSample/NewTags events from the
// coordination store, matches them against the pipeline trigger cache, and
// creates depth-bounded child reactions. One Handler per event type runs
// its own pop/match/clear loop, logging and continuing past errors instead
// of aborting the process.
package eventhandler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/thorium-platform/thorium/apiclient"
	"github.com/thorium-platform/thorium/cs"
	"github.com/thorium-platform/thorium/logging"
	"github.com/thorium-platform/thorium/mds"
	"github.com/thorium-platform/thorium/model"
)

// popBatch is how many events one tick tries to pop per event type.
const popBatch = 200

// inFlightLag is the age below which an event is left in the main queue,
// covering MDS read-your-writes lag between the API committing an event
// and this process being able to read the entities it names.
const inFlightLag = 3 * time.Second

// Handler drives one event type's pop/match/clear loop.
type Handler struct {
	EventType model.EventType
	MaxDepth  int

	CS  *cs.Client
	MDS *mds.Client
	API *apiclient.Client

	Metrics *logging.Metrics

	cache *triggerCache
}

// New builds a Handler for one event type.
func New(eventType model.EventType, maxDepth int, csClient *cs.Client, mdsClient *mds.Client, api *apiclient.Client, metrics *logging.Metrics) *Handler {
	return &Handler{
		EventType: eventType,
		MaxDepth:  maxDepth,
		CS:        csClient,
		MDS:       mdsClient,
		API:       api,
		Metrics:   metrics,
		cache:     newTriggerCache(api),
	}
}

// Run resets any in-flight events left over from a crashed prior run, then
// loops Tick on interval until ctx is cancelled.
func (h *Handler) Run(ctx context.Context, interval time.Duration) {
	log := logging.FromContext(ctx).With().Str("event_type", string(h.EventType)).Logger()

	if err := withRetry(ctx, func(c context.Context) error {
		return h.CS.ResetAllEvents(c, string(h.EventType))
	}); err != nil {
		log.Error().Err(err).Msg("reset_all failed on start, continuing with events potentially stuck in-flight")
	}

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := h.Tick(ctx); err != nil {
				log.Warn().Err(err).Msg("event handler tick failed")
			}
		}
	}
}

// Tick refreshes the trigger cache if dirty, pops a batch of events,
// creates child reactions for every trigger match within max_depth, and
// clears the events that were fully processed.
func (h *Handler) Tick(ctx context.Context) error {
	log := logging.FromContext(ctx)

	if err := h.cache.refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("trigger cache refresh failed, using last known triggers")
	}

	popped, err := h.CS.PopEvents(ctx, string(h.EventType), popBatch, inFlightLag, time.Now())
	if err != nil {
		return err
	}
	if len(popped) == 0 {
		return nil
	}
	if h.Metrics != nil {
		h.Metrics.EventsPopped.WithLabelValues(string(h.EventType)).Add(float64(len(popped)))
	}

	var succeeded []string
	for _, pe := range popped {
		var ev model.Event
		if err := json.Unmarshal(pe.Payload, &ev); err != nil {
			log.Warn().Err(err).Str("event_id", pe.ID).Msg("unmarshal event payload, dropping")
			succeeded = append(succeeded, pe.ID)
			continue
		}

		if err := h.react(ctx, ev); err != nil {
			log.Warn().Err(err).Str("event_id", pe.ID).Msg("trigger reaction failed, leaving event in flight for retry")
			continue
		}
		succeeded = append(succeeded, pe.ID)
	}

	if len(succeeded) > 0 {
		if err := h.CS.ClearEvents(ctx, string(h.EventType), succeeded); err != nil {
			return err
		}
		if h.Metrics != nil {
			h.Metrics.EventsCleared.WithLabelValues(string(h.EventType)).Add(float64(len(succeeded)))
		}
	}
	return nil
}

// react creates one child reaction per matching trigger, rejecting any
// whose depth would exceed MaxDepth. The depth check is the termination
// guarantee for a cyclic trigger graph.
func (h *Handler) react(ctx context.Context, ev model.Event) error {
	childDepth := ev.Depth + 1

	for _, t := range h.cache.matching(ev) {
		log := logging.FromContext(ctx).With().Str("group", t.Group).Str("pipeline", t.Pipeline).Logger()

		if childDepth > h.MaxDepth {
			if h.Metrics != nil {
				h.Metrics.DepthRejections.WithLabelValues(t.Group, t.Pipeline).Inc()
			}
			log.Debug().Int("depth", childDepth).Msg("trigger match rejected: exceeds max_depth")
			continue
		}

		pipeline, err := h.resolvePipeline(ctx, t.Group, t.Pipeline)
		if err != nil {
			return err
		}

		reactionID := uuid.New().String()
		reaction := model.Reaction{
			ID:           reactionID,
			Group:        t.Group,
			Pipeline:     t.Pipeline,
			Status:       model.ReactionCreated,
			CurrentStage: 0,
			SLASeconds:   pipeline.SLASeconds,
			Creator:      ev.User,
			Depth:        childDepth,
			Parent:       ev.ID,
		}
		if err := h.MDS.CreateReaction(ctx, reaction); err != nil {
			return err
		}
		if err := h.createStageJobs(ctx, reaction, pipeline, 0); err != nil {
			return err
		}
		if h.Metrics != nil {
			h.Metrics.ReactionsSpawned.WithLabelValues(t.Group, t.Pipeline).Inc()
		}
	}
	return nil
}

func (h *Handler) resolvePipeline(ctx context.Context, group, name string) (model.Pipeline, error) {
	return h.API.GetPipeline(ctx, group, name)
}
