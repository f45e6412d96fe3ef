// Package searchstreamer implements the search-streamer (C7): it keeps
// the search database (C4) in sync with MDS, either by replaying the
// full item set chunk-by-chunk after the index is rebuilt from empty
// (the initiation phase) or by draining ResultSearch/TagSearch events
// off the coordination store (the steady-state event phase).
package searchstreamer

import (
	"context"
	"time"

	"github.com/thorium-platform/thorium/apiclient"
	"github.com/thorium-platform/thorium/cs"
	"github.com/thorium-platform/thorium/logging"
	"github.com/thorium-platform/thorium/mds"
	"github.com/thorium-platform/thorium/model"
	"github.com/thorium-platform/thorium/search"
)

// Streamer is the top-level search-streamer control loop for one index.
// The phase is switchable at runtime: each tick it asks the search store
// whether it's empty and runs the initiation phase if so, the event phase
// otherwise, so a manually-wiped index is rebuilt automatically on the
// next tick without a restart or a config change.
type Streamer struct {
	CS     *cs.Client
	MDS    *mds.Client
	Search *search.Client

	Results *EventPhase
	Tags    *EventPhase

	initiator *Initiator
	monitor   *Monitor
}

// Config bundles the dependencies New needs, mirroring eventhandler's
// constructor-parameter shape.
type Config struct {
	CS      *cs.Client
	MDS     *mds.Client
	Search  *search.Client
	API     *apiclient.Client
	Metrics *logging.Metrics

	ChunkCount int
}

// New wires one Streamer: a shared Indexer and Monitor feed both the
// initiation phase and the two event phases (results, tags).
func New(cfg Config) *Streamer {
	resolver := &Resolver{MDS: cfg.MDS}
	indexer := &Indexer{Resolver: resolver, Search: cfg.Search, Metrics: cfg.Metrics}
	monitor := NewMonitor(cfg.API, cfg.Metrics)

	return &Streamer{
		CS:      cfg.CS,
		MDS:     cfg.MDS,
		Search:  cfg.Search,
		Results: NewEventPhase(model.EventResultSearch, cfg.CS, indexer, monitor),
		Tags:    NewEventPhase(model.EventTagSearch, cfg.CS, indexer, monitor),

		initiator: NewInitiator(cfg.CS, cfg.MDS, indexer, monitor, cfg.ChunkCount),
		monitor:   monitor,
	}
}

// Run starts the status monitor, resets any events stranded in-flight by a
// prior crash, then ticks on interval until ctx is cancelled.
func (s *Streamer) Run(ctx context.Context, interval time.Duration) {
	log := logging.FromContext(ctx)

	go s.monitor.Run(ctx)

	if err := s.Results.ResetAll(ctx); err != nil {
		log.Error().Err(err).Msg("reset_all failed for result search events on start")
	}
	if err := s.Tags.ResetAll(ctx); err != nil {
		log.Error().Err(err).Msg("reset_all failed for tag search events on start")
	}

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := s.Tick(ctx); err != nil {
				log.Warn().Err(err).Msg("search-streamer tick failed")
			}
		}
	}
}

// Tick runs one iteration: the initiation phase while the index is empty
// or a rebuild is in progress, the event phase otherwise.
func (s *Streamer) Tick(ctx context.Context) error {
	empty, err := s.Search.IsEmpty(ctx)
	if err != nil {
		return err
	}
	if empty {
		_, err := s.initiator.Run(ctx)
		return err
	}

	remaining, err := s.CS.RemainingChunkCount(ctx, sessionKind)
	if err == nil && remaining > 0 {
		_, err := s.initiator.Run(ctx)
		return err
	}

	if err := s.Results.Tick(ctx); err != nil {
		return err
	}
	return s.Tags.Tick(ctx)
}
