package searchstreamer

import (
	"context"
	"time"

	"github.com/thorium-platform/thorium/apiclient"
	"github.com/thorium-platform/thorium/logging"
)

// monitorFlushInterval and monitorFlushCount bound how long progress can
// sit unflushed: whichever threshold is hit first triggers a flush.
const (
	monitorFlushInterval = time.Second
	monitorFlushCount    = 5000
)

// Progress is one worker's report of a processed batch, pushed onto the
// monitor's channel. Exactly one of Successes/Failures is expected to be
// non-zero per message in practice, but both are accumulated regardless.
type Progress struct {
	Kind      string
	Successes int64
	Failures  int64
	TokensLeft int64
}

// Monitor owns the single channel every worker task pushes batched
// progress onto, and is the only goroutine that calls SendStreamStatus:
// a single-writer channel pattern, explicit rather than a hidden global.
type Monitor struct {
	api     *apiclient.Client
	metrics *logging.Metrics
	ch      chan Progress
}

// NewMonitor builds a Monitor with a buffered channel so worker tasks
// never block on a slow flush.
func NewMonitor(api *apiclient.Client, metrics *logging.Metrics) *Monitor {
	return &Monitor{api: api, metrics: metrics, ch: make(chan Progress, 1024)}
}

// Report is how a worker task pushes one batch's outcome. Safe to call
// from multiple goroutines.
func (m *Monitor) Report(p Progress) {
	m.ch <- p
}

// Run drains the channel and flushes accumulated totals per kind to the
// API every monitorFlushInterval or once a kind's count crosses
// monitorFlushCount, whichever comes first, until ctx is cancelled, at
// which point it flushes once more and returns.
func (m *Monitor) Run(ctx context.Context) {
	log := logging.FromContext(ctx)
	totals := make(map[string]*Progress)

	t := time.NewTicker(monitorFlushInterval)
	defer t.Stop()

	flush := func() {
		for kind, p := range totals {
			if p.Successes == 0 && p.Failures == 0 && p.TokensLeft == 0 {
				continue
			}
			if err := m.api.SendStreamStatus(ctx, apiclient.StreamStatus{
				Kind: kind, Successes: p.Successes, Failures: p.Failures, TokensLeft: p.TokensLeft,
			}); err != nil {
				log.Warn().Err(err).Str("kind", kind).Msg("flush search-streamer status failed")
				continue
			}
			delete(totals, kind)
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case p := <-m.ch:
			cur, ok := totals[p.Kind]
			if !ok {
				cur = &Progress{Kind: p.Kind}
				totals[p.Kind] = cur
			}
			cur.Successes += p.Successes
			cur.Failures += p.Failures
			if p.TokensLeft > 0 {
				cur.TokensLeft = p.TokensLeft
				if m.metrics != nil {
					m.metrics.InitiationChunksRemaining.WithLabelValues(p.Kind).Set(float64(p.TokensLeft))
				}
			}
			if cur.Successes+cur.Failures >= monitorFlushCount {
				flush()
			}
		case <-t.C:
			flush()
		}
	}
}
