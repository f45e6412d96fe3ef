// Command thorium-reactor runs the per-node worker reconciler (C9): it
// reads this node's worker assignments directly from MDS and drives
// exactly one Launcher backend (bare metal, Windows, or KVM) to spawn,
// terminate, or clean up orphaned worker processes/domains. Kubernetes
// clusters have no reactor process: the scaler's k8sscheduler talks to
// the API server directly instead.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/thorium-platform/thorium/apiclient"
	"github.com/thorium-platform/thorium/config"
	"github.com/thorium-platform/thorium/cs"
	"github.com/thorium-platform/thorium/logging"
	"github.com/thorium-platform/thorium/mds"
	"github.com/thorium-platform/thorium/reactor"
)

var (
	cfgFile      string
	cluster      string
	node         string
	backend      string
	agentCommand string

	libvirtSocket string
	baseImageDir  string
	overlayDir    string
	cloudInitDir  string
	networkName   string
	sshPublicKey  string
)

var rootCmd = &cobra.Command{
	Use:   "thorium-reactor",
	Short: "Reconciles this node's worker assignments against one launch backend",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "path to thorium.yml (default: search ./ and /etc/thorium)")
	rootCmd.Flags().StringVar(&cluster, "cluster", "", "cluster this node belongs to")
	rootCmd.Flags().StringVar(&node, "node", "", "this node's name")
	rootCmd.Flags().StringVar(&backend, "backend", "BareMetal", "launch backend: BareMetal, Windows, KVM")
	rootCmd.Flags().StringVar(&agentCommand, "agent-command", "/usr/local/bin/thorium-agent run", "command (space-separated) exec'd for every worker")

	rootCmd.Flags().StringVar(&libvirtSocket, "libvirt-socket", "/var/run/libvirt/libvirt-sock", "libvirt socket path (KVM only)")
	rootCmd.Flags().StringVar(&baseImageDir, "kvm-base-image-dir", "/var/lib/thorium/images", "qcow2 base image directory (KVM only)")
	rootCmd.Flags().StringVar(&overlayDir, "kvm-overlay-dir", "/var/lib/thorium/overlays", "per-worker qcow2 overlay directory (KVM only)")
	rootCmd.Flags().StringVar(&cloudInitDir, "kvm-cloud-init-dir", "/var/lib/thorium/cloud-init", "per-worker cloud-init seed directory (KVM only)")
	rootCmd.Flags().StringVar(&networkName, "kvm-network", "default", "libvirt network name (KVM only)")
	rootCmd.Flags().StringVar(&sshPublicKey, "kvm-ssh-public-key", "", "SSH public key seeded into every domain (KVM only)")

	rootCmd.MarkFlagRequired("cluster")
	rootCmd.MarkFlagRequired("node")
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

	log := logging.New("reactor", cfg.Log.Level, cfg.Log.Pretty)
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

	kind, launcher, err := newLauncher(backend)
	if err != nil {
		return err
	}

	r := reactor.New(cluster, node, kind, mdsClient, csClient, launcher, api, metrics)

	log.Info().Str("cluster", cluster).Str("node", node).Str("backend", backend).Msg("reactor starting")
	r.Run(ctx)
	log.Info().Msg("reactor stopped")
	return nil
}
