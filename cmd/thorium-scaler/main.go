// Command thorium-scaler runs the cluster-wide bin-packing scaler (C8):
// one process per cluster that reconciles pipeline/reaction/user-submit
// requisitions against live node capacity and drives a single scaler.Scheduler
// backend (Kubernetes, bare metal, Windows, or KVM).
//
// Flag/config wiring follows cli/root.go's cobra+viper pattern: persistent
// --config selects thorium.yml, AutomaticEnv overlays THORIUM_* variables,
// and the command blocks until SIGINT/SIGTERM, cancelling the scaler's
// context so its in-flight tick finishes before the process exits.
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
	"github.com/thorium-platform/thorium/model"
	"github.com/thorium-platform/thorium/scaler"
	"github.com/thorium-platform/thorium/scaler/k8sscheduler"
	"github.com/thorium-platform/thorium/scaler/reactorscheduler"
)

var (
	cfgFile  string
	cluster  string
	kind     string
	interval time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "thorium-scaler",
	Short: "Reconciles worker requisitions against node capacity for one cluster and one Scheduler backend",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "path to thorium.yml (default: search ./ and /etc/thorium)")
	rootCmd.Flags().StringVar(&cluster, "cluster", "", "cluster name this scaler reconciles")
	rootCmd.Flags().StringVar(&kind, "kind", "K8s", "scaler backend: K8s, BareMetal, Windows, KVM")
	rootCmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "reconcile tick interval")
	rootCmd.MarkFlagRequired("cluster")
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

	log := logging.New("scaler", cfg.Log.Level, cfg.Log.Pretty)
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

	scalerKind := model.Scaler(kind)
	backend, err := newBackend(scalerKind, mdsClient, cfg.Namespace)
	if err != nil {
		return err
	}

	settings := scaler.Settings{
		Reserved:          cfg.SystemSettings.Reserved,
		FairShareCap:      cfg.SystemSettings.FairShareCap,
		ScaleDownGrace:    cfg.SystemSettings.ScaleDownGrace,
		NodeHealthTimeout: cfg.SystemSettings.NodeHealthTimeout,
	}

	s := scaler.New(cluster, scalerKind, mdsClient, csClient, backend, api, metrics, settings)

	log.Info().Str("cluster", cluster).Str("kind", kind).Dur("interval", interval).Msg("scaler starting")
	s.Run(ctx, interval)
	log.Info().Msg("scaler stopped")
	return nil
}

// newBackend resolves kind to the Scheduler it drives: K8s talks to the
// cluster's API server directly, the other three write worker assignments
// into the shared MDS connection for each node's reactor to pick up.
func newBackend(kind model.Scaler, mdsClient *mds.Client, namespace string) (scaler.Scheduler, error) {
	switch kind {
	case model.ScalerK8s:
		client, err := k8sscheduler.NewClient(k8sscheduler.Config{Namespace: namespace})
		if err != nil {
			return nil, fmt.Errorf("build k8s scheduler: %w", err)
		}
		return client, nil
	case model.ScalerBareMetal, model.ScalerWindows, model.ScalerKVM:
		return reactorscheduler.New(mdsClient, kind), nil
	default:
		return nil, fmt.Errorf("unsupported scaler kind %q", kind)
	}
}
