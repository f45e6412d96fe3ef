// Command thorium-agent is the per-job worker process (C10) every launch
// backend execs. It never takes command-line flags for its own identity:
// the spawning backend (baremetal, windows, kvm launchers, or the
// k8sscheduler Pod spec) passes THORIUM_WORKER_NAME/THORIUM_CLUSTER/
// THORIUM_NODE/THORIUM_GROUP/THORIUM_PIPELINE/THORIUM_STAGE/THORIUM_USER/
// THORIUM_POOL as environment variables, the same convention
// reactor/launchers/*/agentEnv builds. The agent resolves its own Image
// via group+stage, then runs the claim/execute/report loop until its
// image's lifetime budget is exhausted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/thorium-platform/thorium/agent"
	"github.com/thorium-platform/thorium/apiclient"
	"github.com/thorium-platform/thorium/blobstore"
	"github.com/thorium-platform/thorium/config"
	"github.com/thorium-platform/thorium/cs"
	"github.com/thorium-platform/thorium/logging"
	"github.com/thorium-platform/thorium/mds"
	"github.com/thorium-platform/thorium/model"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "thorium-agent",
	Short: "Claims and executes a single job at a time against this worker's assigned stage",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "path to thorium.yml (default: search ./ and /etc/thorium)")
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

	log := logging.New("agent", cfg.Log.Level, cfg.Log.Pretty)
	metrics := logging.NewMetrics(cfg.MetricsNamespace)

	id, err := identityFromEnv()
	if err != nil {
		return err
	}

	mdsClient, err := mds.NewClient(ctx, mds.Config{ConnString: cfg.MDS.ConnString})
	if err != nil {
		return fmt.Errorf("connect mds: %w", err)
	}
	csClient, err := cs.NewClient(ctx, cs.Config{RedisURL: cfg.CS.RedisURL, Namespace: cfg.Namespace})
	if err != nil {
		return fmt.Errorf("connect cs: %w", err)
	}
	bsClient, err := blobstore.NewClient(ctx, blobstore.Config{
		Endpoint:        cfg.BS.Endpoint,
		Region:          cfg.BS.Region,
		AccessKeyID:     cfg.BS.AccessKey,
		SecretAccessKey: cfg.BS.SecretKey,
		Bucket:          cfg.BS.Bucket,
		UsePathStyle:    cfg.BS.UsePathStyle,
	})
	if err != nil {
		return fmt.Errorf("connect blobstore: %w", err)
	}
	api := apiclient.New(apiclient.Config{BaseURL: cfg.API.BaseURL, Token: cfg.API.Token, Timeout: cfg.API.Timeout})

	img, err := api.GetImage(ctx, id.Group, id.Stage)
	if err != nil {
		return fmt.Errorf("resolve image %s/%s: %w", id.Group, id.Stage, err)
	}

	a := agent.New(agent.Config{
		MDS: mdsClient, CS: csClient, BS: bsClient, API: api, Metrics: metrics,
		Identity: id,
	})

	log.Info().Str("worker", id.Name).Str("group", id.Group).Str("stage", id.Stage).Msg("agent starting")
	if err := a.Run(ctx, img); err != nil {
		return fmt.Errorf("agent run: %w", err)
	}
	log.Info().Msg("agent stopped")
	return nil
}

// identityFromEnv reads the THORIUM_* environment variables the spawning
// backend set, matching reactor/launchers/*/agentEnv and k8sscheduler's
// identityEnv.
func identityFromEnv() (agent.Identity, error) {
	id := agent.Identity{
		Cluster:  os.Getenv("THORIUM_CLUSTER"),
		Node:     os.Getenv("THORIUM_NODE"),
		Name:     os.Getenv("THORIUM_WORKER_NAME"),
		Group:    os.Getenv("THORIUM_GROUP"),
		Pipeline: os.Getenv("THORIUM_PIPELINE"),
		Stage:    os.Getenv("THORIUM_STAGE"),
		User:     os.Getenv("THORIUM_USER"),
		Pool:     model.Pool(os.Getenv("THORIUM_POOL")),
	}
	if id.Name == "" || id.Group == "" || id.Stage == "" {
		return agent.Identity{}, fmt.Errorf("THORIUM_WORKER_NAME, THORIUM_GROUP and THORIUM_STAGE must be set")
	}
	return id, nil
}
