package searchstreamer

import (
	"context"
	"fmt"

	"github.com/thorium-platform/thorium/cs"
	"github.com/thorium-platform/thorium/logging"
	"github.com/thorium-platform/thorium/mds"
)

// defaultChunkCount is the default chunk count used when the config
// layer doesn't override it.
const defaultChunkCount = 64

// sessionKind is the name the initiation session log is keyed under: one
// combined session covers every document Kind, since both tags and
// results share the same token space and are indexed into the same
// search database.
const sessionKind = "documents"

// Initiator drives the initiation phase: split the token space into
// chunks, persist the session in CS, and for each remaining chunk scan
// MDS for every item whose token falls inside it.
type Initiator struct {
	CS         *cs.Client
	MDS        *mds.Client
	Resolver   *Resolver
	Indexer    *Indexer
	Monitor    *Monitor
	ChunkCount int
}

// NewInitiator builds an Initiator with defaultChunkCount chunks unless
// overridden by the caller.
func NewInitiator(csClient *cs.Client, mdsClient *mds.Client, indexer *Indexer, monitor *Monitor, chunkCount int) *Initiator {
	if chunkCount <= 0 {
		chunkCount = defaultChunkCount
	}
	return &Initiator{
		CS: csClient, MDS: mdsClient,
		Resolver: &Resolver{MDS: mdsClient}, Indexer: indexer, Monitor: monitor,
		ChunkCount: chunkCount,
	}
}

// Run seeds the session if none is in progress, then processes every
// remaining chunk once. Callers re-invoke Run on each tick; once
// RemainingChunks returns empty, Run deletes the session and returns
// done=true.
func (in *Initiator) Run(ctx context.Context) (done bool, err error) {
	log := logging.FromContext(ctx)

	ranges, err := SplitRange(in.ChunkCount)
	if err != nil {
		return false, err
	}
	chunks := make([]cs.InitiationChunk, len(ranges))
	for i, r := range ranges {
		chunks[i] = cs.InitiationChunk{ID: chunkID(i), Start: r.Start, End: r.End}
	}
	if err := in.CS.SeedInitiationSession(ctx, sessionKind, chunks); err != nil {
		return false, err
	}

	remaining, err := in.CS.RemainingChunks(ctx, sessionKind)
	if err != nil {
		return false, err
	}
	if len(remaining) == 0 {
		if err := in.CS.DeleteInitiationSession(ctx, sessionKind); err != nil {
			return false, err
		}
		return true, nil
	}

	items, err := in.allItems(ctx)
	if err != nil {
		return false, err
	}

	for _, chunk := range remaining {
		if err := in.processChunk(ctx, chunk, items); err != nil {
			log.Warn().Err(err).Str("chunk", chunk.ID).Msg("initiation chunk failed, will retry next tick")
			continue
		}
		if err := in.CS.CompleteChunk(ctx, sessionKind, chunk.ID); err != nil {
			log.Warn().Err(err).Str("chunk", chunk.ID).Msg("mark initiation chunk complete")
		}
	}

	left, err := in.CS.RemainingChunkCount(ctx, sessionKind)
	if err == nil && in.Monitor != nil {
		in.Monitor.Report(Progress{Kind: sessionKind, TokensLeft: left})
	}
	return left == 0, nil
}

// allItems enumerates every item this session must place into a chunk:
// every (group, key) with a result and every (item_type, group, item)
// with a tag, collapsed to the (kind, item, group) identity a document
// is keyed by.
func (in *Initiator) allItems(ctx context.Context) ([]ItemKey, error) {
	results, err := in.MDS.ListDistinctResultItems(ctx)
	if err != nil {
		return nil, err
	}
	tags, err := in.MDS.ListDistinctTagItems(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]ItemKey, 0, len(results)+len(tags))
	for _, r := range results {
		out = append(out, ItemKey{Kind: KindResult, Item: r.Key, Group: r.Group})
	}
	for _, t := range tags {
		out = append(out, ItemKey{Kind: KindTag, Item: t.Item, Group: t.Group})
	}
	return out, nil
}

func (in *Initiator) processChunk(ctx context.Context, chunk cs.InitiationChunk, items []ItemKey) error {
	r := Range{Start: chunk.Start, End: chunk.End}

	var docs []ItemKey
	for _, k := range items {
		if r.Contains(TokenFor(compoundKey(k))) {
			docs = append(docs, k)
		}
	}
	if len(docs) == 0 {
		return nil
	}
	return in.Indexer.IndexAll(ctx, docs)
}

func compoundKey(k ItemKey) string {
	return string(k.Kind) + "\x00" + k.Item + "\x00" + k.Group
}

func chunkID(i int) string {
	return fmt.Sprintf("chunk-%04d", i)
}
