package main

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/gardener/chaos-engineering/pkg/cloud"
	"github.com/gardener/chaos-engineering/pkg/gardener"
	"github.com/gardener/chaos-engineering/pkg/logger"
)

// Global flags every subcommand that resolves a shoot shares: the garden
// cluster kubeconfig and the (project, shoot, zone) coordinate the spec's
// cluster-discovery flow resolves against.
var (
	gardenKubeconfig  string
	project           string
	shoot             string
	zoneSelector      string
	logLevel          string
	logFormat         string
	providerRateLimit float64
)

var rootCmd = &cobra.Command{
	Use:   "chaos-engineering",
	Short: "Drives controlled cloud-provider and in-cluster failures against Gardener shoots",
	Long: `chaos-engineering resolves a Gardener shoot's cloud provider credentials and
zones from the garden cluster, then runs one of several failure simulations
or the cluster health probe pipeline against it.

probe-agent and suicidal-pod are not meant for operator use: the probe
Deployment and suicidal-pod Job this binary's own "probe" subcommand installs
invoke them as their container Command.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&gardenKubeconfig, "garden-kubeconfig", "", "kubeconfig of the garden cluster (defaults to in-cluster config if empty)")
	rootCmd.PersistentFlags().StringVar(&project, "project", "", "Gardener project the shoot belongs to")
	rootCmd.PersistentFlags().StringVar(&shoot, "shoot", "", "shoot name")
	rootCmd.PersistentFlags().StringVar(&zoneSelector, "zone", "", "zone selector: a literal zone, a sorted-zone-list index, or empty to resolve a random zone")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format: text, json")
	rootCmd.PersistentFlags().Float64Var(&providerRateLimit, "provider-rate-limit", 0, "max cloud provider API calls per second across a simulation's adapter (0 disables pacing)")

	for _, name := range []string{"garden-kubeconfig", "project", "shoot", "zone", "log-level", "log-format", "provider-rate-limit"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
	viper.SetEnvPrefix("chaos_engineering")
	viper.AutomaticEnv()
}

// newLogr builds the logr.Logger every control loop (pkg/orchestrator,
// pkg/gardener, pkg/probe) and pkg/terminator/pkg/registry expect.
func newLogr() (logr.Logger, error) {
	return logger.NewZapLogger(logger.LogLevel(viper.GetString("log-level")), logger.Format(viper.GetString("log-format")))
}

// newResolver builds a gardener.Resolver against the garden cluster
// identified by --garden-kubeconfig, falling back to in-cluster config when
// it is empty (the orchestrator runs as a Pod inside the garden cluster
// itself in normal operation, per spec §1's deployment model).
func newResolver() (*gardener.Resolver, error) {
	cfg, err := gardenRestConfig()
	if err != nil {
		return nil, err
	}
	return gardener.NewResolver(cfg)
}

func gardenRestConfig() (*rest.Config, error) {
	kubeconfig := viper.GetString("garden-kubeconfig")
	if kubeconfig == "" {
		return rest.InClusterConfig()
	}
	cfg, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("building garden cluster config from %q: %w", kubeconfig, err)
	}
	return cfg, nil
}

// newProviderLimiter builds the *rate.Limiter every simulation's
// orchestrator.ComputeFailureConfig/NetworkFailureConfig.Limiter is set from,
// so a single --provider-rate-limit flag caps every pkg/cloud.Adapter call a
// simulation makes (list, terminate/restart, associate, ...) regardless of
// how many resources it drives concurrently. A non-positive value disables
// pacing, leaving only pkg/cloud.WithThrottleRetry's fixed backoff schedule.
func newProviderLimiter() *rate.Limiter {
	qps := viper.GetFloat64("provider-rate-limit")
	if qps <= 0 {
		return nil
	}
	burst := int(qps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(qps), burst)
}

func requireProjectAndShoot() error {
	if project == "" || shoot == "" {
		return fmt.Errorf("--project and --shoot are required")
	}
	return nil
}

// parseNetworkMode validates a --mode flag value against cloud.Mode's three
// allowed values, shared by every subcommand that drives a network-failure
// simulation.
func parseNetworkMode(mode string) (cloud.Mode, error) {
	switch mode {
	case string(cloud.Total), string(cloud.Ingress), string(cloud.Egress):
		return cloud.Mode(mode), nil
	default:
		return "", fmt.Errorf("--mode must be %q, %q or %q, got %q", cloud.Total, cloud.Ingress, cloud.Egress, mode)
	}
}
