package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	admissionregistrationv1 "k8s.io/api/admissionregistration/v1"
	appsv1 "k8s.io/api/apps/v1"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/tools/clientcmd"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/spf13/cobra"

	chaosv1 "github.com/gardener/chaos-engineering/pkg/apis/chaos/v1"
	"github.com/gardener/chaos-engineering/pkg/probe"
	"github.com/gardener/chaos-engineering/pkg/threshold"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Runs the cluster health probe pipeline against this shoot",
	Long: `probe resolves the shoot's kubeconfig and zones from the garden cluster,
installs the probe Deployment/Job/webhook resources in it, lets the probe
pods emit heartbeats for --duration, tears the resources back down, then
assesses the collected metrics against the threshold table and reports
whether every zone/probe combination stayed within its toleration.

Returns a non-zero exit code if any threshold was violated.`,
	RunE: runProbe,
}

func init() {
	probeCmd.Flags().Duration("duration", 10*time.Minute, "how long to let the probe run before collecting metrics (<=0 means a single pass)")
	probeCmd.Flags().String("thresholds", "{}", `JSON object mapping zone-selector -> probe-name -> toleration-seconds, e.g. {"!eu-west-1a":{"api-external":30}}`)
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, _ []string) error {
	if err := requireProjectAndShoot(); err != nil {
		return err
	}
	duration, _ := cmd.Flags().GetDuration("duration")
	rawThresholds, _ := cmd.Flags().GetString("thresholds")

	var rules map[string]map[string]int
	if err := json.Unmarshal([]byte(rawThresholds), &rules); err != nil {
		return fmt.Errorf("parsing --thresholds: %w", err)
	}

	log, err := newLogr()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	resolver, err := newResolver()
	if err != nil {
		return err
	}
	kubeconfig, zones, err := resolver.ResolveShootKubeconfig(ctx, project, shoot)
	if err != nil {
		return fmt.Errorf("resolving shoot kubeconfig: %w", err)
	}

	shootClient, err := clientForKubeconfig([]byte(kubeconfig))
	if err != nil {
		return err
	}

	table := threshold.NewTable(rules, zones)
	result, err := probe.RunClusterHealthProbe(ctx, log, shootClient, zones, duration, table)
	if err != nil {
		return fmt.Errorf("running cluster health probe: %w", err)
	}

	for _, m := range result.Metrics {
		log.Info("probe metrics", "probe", m.Probe, "zone", m.Zone, "sent", m.HeartbeatsSent, "lost", m.Lost(), "downtime", m.Downtime)
	}
	for _, v := range result.Violations {
		log.Info("threshold violated", "probe", v.Probe, "zone", v.Zone, "message", v.Message)
	}
	if !result.Passed {
		return fmt.Errorf("cluster health probe failed: %d threshold violation(s)", len(result.Violations))
	}
	return nil
}

// probeScheme is the runtime.Scheme every client.Client that talks to the
// probe's own resources (its CRDs, Deployment, Job, webhook configuration)
// must be built with, mirroring pkg/probe's own test scheme.
func probeScheme() (*runtime.Scheme, error) {
	scheme := runtime.NewScheme()
	for _, add := range []func(*runtime.Scheme) error{
		corev1.AddToScheme,
		rbacv1.AddToScheme,
		appsv1.AddToScheme,
		batchv1.AddToScheme,
		apiextensionsv1.AddToScheme,
		admissionregistrationv1.AddToScheme,
		chaosv1.AddToScheme,
	} {
		if err := add(scheme); err != nil {
			return nil, err
		}
	}
	return scheme, nil
}

func clientForKubeconfig(kubeconfig []byte) (client.Client, error) {
	restConfig, err := clientcmd.RESTConfigFromKubeConfig(kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("parsing shoot kubeconfig: %w", err)
	}
	scheme, err := probeScheme()
	if err != nil {
		return nil, err
	}
	c, err := client.New(restConfig, client.Options{Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("building shoot client: %w", err)
	}
	return c, nil
}
