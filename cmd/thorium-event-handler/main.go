// Command thorium-event-handler runs the trigger evaluator (C6): it pops
// NewSample and NewTags events from the coordination store and creates
// depth-bounded child reactions for any pipeline whose trigger matches.
//
// eventhandler.New is scoped to a single model.EventType, so this process
// runs one Handler per event type concurrently, each on its own Run loop,
// the same one-worker-per-queue shape worker/pool.go used per queue name.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/thorium-platform/thorium/apiclient"
	"github.com/thorium-platform/thorium/config"
	"github.com/thorium-platform/thorium/cs"
	"github.com/thorium-platform/thorium/eventhandler"
	"github.com/thorium-platform/thorium/logging"
	"github.com/thorium-platform/thorium/mds"
	"github.com/thorium-platform/thorium/model"
)

var (
	cfgFile  string
	interval time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "thorium-event-handler",
	Short: "Matches NewSample/NewTags events against pipeline triggers and creates child reactions",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "path to thorium.yml (default: search ./ and /etc/thorium)")
	rootCmd.Flags().DurationVar(&interval, "interval", time.Second, "event pop/match/clear tick interval")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logging.New("event-handler", cfg.Log.Level, cfg.Log.Pretty)
	metrics := logging.NewMetrics(cfg.MetricsNamespace)

	mdsClient, err := mds.NewClient(ctx, mds.Config{ConnString: cfg.MDS.ConnString})
	if err != nil {
		return fmt.Errorf("connect mds: %w", err)
	}
	csClient, err := cs.NewClient(ctx, cs.Config{RedisURL: cfg.CS.RedisURL, Namespace: cfg.Namespace})
	if err != nil {
		return fmt.Errorf("connect cs: %w", err)
	}
	api := apiclient.New(apiclient.Config{BaseURL: cfg.API.BaseURL, Token: cfg.API.Token, Timeout: cfg.API.Timeout})

	eventTypes := []model.EventType{model.EventNewSample, model.EventNewTags}

	var wg sync.WaitGroup
	for _, et := range eventTypes {
		h := eventhandler.New(et, cfg.MaxTriggerDepth, csClient, mdsClient, api, metrics)
		wg.Add(1)
		go func(et model.EventType) {
			defer wg.Done()
			log.Info().Str("event_type", string(et)).Dur("interval", interval).Msg("event handler starting")
			h.Run(ctx, interval)
		}(et)
	}

	wg.Wait()
	log.Info().Msg("event handler stopped")
	return nil
}
