package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/rest"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/manager"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"

	"github.com/gardener/chaos-engineering/pkg/controllerutils"
	"github.com/gardener/chaos-engineering/pkg/probe/agent"
	"github.com/gardener/chaos-engineering/pkg/probe/suicidal"
)

// probeAgentCmd and suicidalPodCmd are never run by an operator: the probe
// Deployment and suicidal-pod Job pkg/probe's manifests install invoke them
// as their container Command, wired through POD_NAME/POD_NAMESPACE/
// EXTERNAL_API_HOST/EXTERNAL_API_TOKEN env vars and the in-cluster service
// account rather than through --project/--shoot/--garden-kubeconfig.
var probeAgentCmd = &cobra.Command{
	Use:    "probe-agent",
	Short:  "Runs the in-cluster probe pod agent (installed, not operator-invoked)",
	Hidden: true,
	RunE:   runProbeAgent,
}

var suicidalPodCmd = &cobra.Command{
	Use:    "suicidal-pod",
	Short:  "Runs the pod-lifecycle probe's self-terminating job body (installed, not operator-invoked)",
	Hidden: true,
	RunE:   runSuicidalPod,
}

func init() {
	probeAgentCmd.Flags().String("listen-addr", ":8080", "address the webhook/healthz HTTPS server listens on")
	probeAgentCmd.Flags().String("tls-cert-path", "/tls/tls.crt", "path to the webhook server's TLS certificate")
	probeAgentCmd.Flags().String("tls-key-path", "/tls/tls.key", "path to the webhook server's TLS private key")
	rootCmd.AddCommand(probeAgentCmd)
	rootCmd.AddCommand(suicidalPodCmd)
}

func runProbeAgent(cmd *cobra.Command, _ []string) error {
	podName := os.Getenv("POD_NAME")
	podNamespace := os.Getenv("POD_NAMESPACE")
	if podName == "" || podNamespace == "" {
		return fmt.Errorf("POD_NAME and POD_NAMESPACE must be set")
	}
	listenAddr, _ := cmd.Flags().GetString("listen-addr")
	tlsCertPath, _ := cmd.Flags().GetString("tls-cert-path")
	tlsKeyPath, _ := cmd.Flags().GetString("tls-key-path")

	log, err := newLogr()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	restConfig, err := rest.InClusterConfig()
	if err != nil {
		return fmt.Errorf("building in-cluster config: %w", err)
	}
	scheme, err := probeScheme()
	if err != nil {
		return err
	}

	mgr, err := manager.New(restConfig, manager.Options{
		Scheme:                 scheme,
		Logger:                 log,
		HealthProbeBindAddress: "0",
		Metrics:                metricsserver.Options{BindAddress: "0"},
	})
	if err != nil {
		return fmt.Errorf("building controller-runtime manager: %w", err)
	}

	discoveryClient, err := discovery.NewDiscoveryClientForConfig(restConfig)
	if err != nil {
		return fmt.Errorf("building discovery client for apiserver healthz: %w", err)
	}

	agentCfg := agent.Config{
		PodName:             podName,
		PodNamespace:        podNamespace,
		ExternalAPIHost:     os.Getenv("EXTERNAL_API_HOST"),
		ExternalAPIToken:    os.Getenv("EXTERNAL_API_TOKEN"),
		TLSCertPath:         tlsCertPath,
		TLSKeyPath:          tlsKeyPath,
		ListenAddr:          listenAddr,
		Cache:               mgr.GetCache(),
		APIServerRestClient: discoveryClient.RESTClient(),
	}

	// ControlledRunner has no bootstrap runnables here (the TLS secret is
	// already mounted by the time this container starts); it exists to run
	// agent.Run as an ordinary manager.Runnable alongside the manager's own
	// cache, so agent.Run's client reads benefit from a warm, synced cache
	// rather than hitting the API server directly for every Get.
	runner := &controllerutils.ControlledRunner{
		Manager: mgr,
		ActualRunnables: []manager.Runnable{
			manager.RunnableFunc(func(ctx context.Context) error {
				return agent.Run(ctx, mgr.GetClient(), agentCfg)
			}),
		},
	}
	if err := runner.Start(ctx); err != nil {
		return err
	}
	return mgr.Start(ctx)
}

func runSuicidalPod(cmd *cobra.Command, _ []string) error {
	podName := os.Getenv("POD_NAME")
	podNamespace := os.Getenv("POD_NAMESPACE")
	if podName == "" || podNamespace == "" {
		return fmt.Errorf("POD_NAME and POD_NAMESPACE must be set")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	restConfig, err := rest.InClusterConfig()
	if err != nil {
		return fmt.Errorf("building in-cluster config: %w", err)
	}
	scheme, err := probeScheme()
	if err != nil {
		return err
	}
	c, err := client.New(restConfig, client.Options{Scheme: scheme})
	if err != nil {
		return fmt.Errorf("building in-cluster client: %w", err)
	}

	heartbeatErr, killErr := suicidal.Run(ctx, c, podName, podNamespace)
	if heartbeatErr != nil {
		return heartbeatErr
	}
	return killErr
}
