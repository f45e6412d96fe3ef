// Command thorium-search-streamer runs the search-streamer (C7): it keeps
// the CouchDB-backed search store in sync with MDS, replaying the full
// item set after an index rebuild (initiation phase) or draining
// ResultSearch/TagSearch events off the coordination store (event phase).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/thorium-platform/thorium/apiclient"
	"github.com/thorium-platform/thorium/config"
	"github.com/thorium-platform/thorium/cs"
	"github.com/thorium-platform/thorium/logging"
	"github.com/thorium-platform/thorium/mds"
	"github.com/thorium-platform/thorium/search"
	"github.com/thorium-platform/thorium/searchstreamer"
)

var (
	cfgFile    string
	interval   time.Duration
	chunkCount int
)

var rootCmd = &cobra.Command{
	Use:   "thorium-search-streamer",
	Short: "Keeps the search store in sync with MDS via initiation replay or event draining",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "path to thorium.yml (default: search ./ and /etc/thorium)")
	rootCmd.Flags().DurationVar(&interval, "interval", time.Second, "tick interval")
	rootCmd.Flags().IntVar(&chunkCount, "chunk-count", 64, "number of token-range chunks the initiation phase splits into")
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

	log := logging.New("search-streamer", cfg.Log.Level, cfg.Log.Pretty)
	metrics := logging.NewMetrics(cfg.MetricsNamespace)

	mdsClient, err := mds.NewClient(ctx, mds.Config{ConnString: cfg.MDS.ConnString})
	if err != nil {
		return fmt.Errorf("connect mds: %w", err)
	}
	csClient, err := cs.NewClient(ctx, cs.Config{RedisURL: cfg.CS.RedisURL, Namespace: cfg.Namespace})
	if err != nil {
		return fmt.Errorf("connect cs: %w", err)
	}
	searchClient, err := search.NewClient(ctx, search.Config{URL: cfg.SS.URL, Database: cfg.SS.Database})
	if err != nil {
		return fmt.Errorf("connect search store: %w", err)
	}
	api := apiclient.New(apiclient.Config{BaseURL: cfg.API.BaseURL, Token: cfg.API.Token, Timeout: cfg.API.Timeout})

	s := searchstreamer.New(searchstreamer.Config{
		CS:         csClient,
		MDS:        mdsClient,
		Search:     searchClient,
		API:        api,
		Metrics:    metrics,
		ChunkCount: chunkCount,
	})

	log.Info().Dur("interval", interval).Int("chunk_count", chunkCount).Msg("search-streamer starting")
	s.Run(ctx, interval)
	log.Info().Msg("search-streamer stopped")
	return nil
}
