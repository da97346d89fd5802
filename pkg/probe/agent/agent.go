// Package agent implements the in-cluster probe pod (spec §4.8): the
// process that runs api-external/api-internal/dns-external/dns-internal/
// dns-management probes concurrently, emits Heartbeat custom resources
// every Interval, challenges the mutating admission webhook, and serves
// that webhook's HTTPS endpoint.
//
// Grounded on original_source/chaosgarden/k8s/probe/resources/probe_pod.py.
package agent

import (
	"context"
	"fmt"
	"net/http"
	"time"

	corev1 "k8s.io/api/core/v1"
	apitypes "k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/rest"
	"k8s.io/utils/clock"
	"sigs.k8s.io/controller-runtime/pkg/cache"
	"sigs.k8s.io/controller-runtime/pkg/client"
	crhealthz "sigs.k8s.io/controller-runtime/pkg/healthz"

	chaosv1 "github.com/gardener/chaos-engineering/pkg/apis/chaos/v1"
	"github.com/gardener/chaos-engineering/pkg/healthz"
)

const zoneLabel = "topology.kubernetes.io/zone"

// Config is the agent's runtime configuration, normally read from the
// fieldRef-populated POD_NAME/POD_NAMESPACE environment variables and the
// deployment's own TLS secret mount.
type Config struct {
	PodName      string
	PodNamespace string
	// ExternalAPIHost is the API server URL this probe pod's cluster
	// targets externally (the garden-facing URL), passed in rather than
	// re-derived, since the agent has no Gardener resolver access of its
	// own.
	ExternalAPIHost  string
	ExternalAPIToken string
	TLSCertPath      string
	TLSKeyPath       string
	ListenAddr       string

	// Cache, when non-nil, backs a cache-sync Checker on the webhook
	// server's /healthz endpoint: the server is only useful once its
	// client's informers have a consistent view of this cluster.
	Cache cache.Cache
	// APIServerRestClient, when non-nil, backs an apiserver-reachability
	// Checker on the same endpoint.
	APIServerRestClient rest.Interface
}

// Run resolves this pod's placement zone, starts every concurrent probe
// goroutine, and serves the webhook HTTPS endpoint until ctx is cancelled.
func Run(ctx context.Context, c client.Client, cfg Config) error {
	zone, err := resolveZone(ctx, c, cfg.PodName, cfg.PodNamespace)
	if err != nil {
		return fmt.Errorf("resolving probe pod zone: %w", err)
	}

	emitter := NewEmitter(c)

	// regional heartbeat emitter: one initial heartbeat so this replica is
	// visible in the series immediately, like probe_pod.py's startup emit().
	emitter.Enqueue(ctx, "pod-lifecycle", zone, true, cfg.PodName)

	external := NewExternalVersionClient(cfg.ExternalAPIHost, cfg.ExternalAPIToken)

	// challengeLive flips unhealthy if WebhookChallenger stops succeeding
	// for longer than twice the probe interval, so a wedged challenger
	// (rather than just a failing webhook) is visible on /healthz too.
	challengeLive := healthz.NewPeriodicHealthz(clock.RealClock{}, 2*Interval)
	challengeLive.Start()
	defer challengeLive.Stop()

	errCh := make(chan error, 4)
	go func() { errCh <- WebhookChallenger(ctx, c, zone, challengeLive) }()
	go func() { errCh <- DNSProbe(ctx, emitter, zone, cfg.ExternalAPIHost) }()
	go func() { errCh <- APIProbe(ctx, emitter, zone, external) }()
	go func() {
		domain, err := readClusterDomain(ctx, c)
		if err != nil {
			errCh <- fmt.Errorf("reading cluster domain for dns-management probe: %w", err)
			return
		}
		errCh <- DNSManagementProbe(ctx, emitter, c, zone, domain)
	}()

	go serveWebhook(ctx, cfg, challengeLive)

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// serveWebhook serves the mutating admission webhook plus two liveness
// surfaces on the same listener: /healthz (apiserver reachability and
// informer cache sync, when cfg carries the capabilities to check them) and
// /healthz/webhook-challenge (challengeLive, reset by WebhookChallenger).
func serveWebhook(ctx context.Context, cfg Config, challengeLive healthz.Manager) {
	checks := map[string]crhealthz.Checker{}
	if cfg.APIServerRestClient != nil {
		checks["apiserver"] = healthz.NewAPIServerHealthz(ctx, cfg.APIServerRestClient)
	}
	if cfg.Cache != nil {
		checks["cache-sync"] = healthz.NewCacheSyncHealthz(cfg.Cache)
	}

	// serving tracks only "has this listener come up", independent of
	// challengeLive's "is the webhook still admitting requests": a server
	// that never managed a single ListenAndServeTLS call (bad cert path,
	// port already bound) is a distinct failure from one serving but wedged.
	serving := healthz.NewDefaultHealthz()

	mux := http.NewServeMux()
	mux.Handle("/webhook", WebhookHandler(cfg.PodName))
	mux.Handle("/healthz", &crhealthz.Handler{Checks: checks})
	mux.HandleFunc("/healthz/webhook-challenge", healthz.HandlerFunc(challengeLive))
	mux.HandleFunc("/healthz/webhook-serving", healthz.HandlerFunc(serving))

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}
	go func() {
		<-ctx.Done()
		serving.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	serving.Start()
	for {
		if ctx.Err() != nil {
			return
		}
		err := server.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		if err == http.ErrServerClosed {
			return
		}
		serving.Set(false)
		time.Sleep(time.Second)
		serving.Set(true)
	}
}

// resolveZone reads this pod's node placement, the same two-step lookup
// probe_pod.py's main block does (read_namespaced_pod then read_node).
func resolveZone(ctx context.Context, c client.Client, podName, podNamespace string) (string, error) {
	pod := &corev1.Pod{}
	if err := c.Get(ctx, apitypes.NamespacedName{Name: podName, Namespace: podNamespace}, pod); err != nil {
		return "", err
	}
	if pod.Spec.NodeName == "" {
		return "", fmt.Errorf("pod %s/%s has no assigned node yet", podNamespace, podName)
	}
	node := &corev1.Node{}
	if err := c.Get(ctx, apitypes.NamespacedName{Name: pod.Spec.NodeName}, node); err != nil {
		return "", err
	}
	zone, ok := node.Labels[zoneLabel]
	if !ok {
		return "na", nil
	}
	return zone, nil
}

func readClusterDomain(ctx context.Context, c client.Client) (string, error) {
	cm := &corev1.ConfigMap{}
	if err := c.Get(ctx, apitypes.NamespacedName{Name: "shoot-info", Namespace: "kube-system"}, cm); err != nil {
		return "", err
	}
	domain, ok := cm.Data["domain"]
	if !ok {
		return "", fmt.Errorf("shoot-info ConfigMap has no domain key")
	}
	return domain, nil
}

// WebhookChallenger repeatedly creates AcknowledgedHeartbeat resources with
// Ready=false; a passing mutating admission webhook flips each to true on
// admission. A 409 (another replica already created this tick's resource)
// is ignored. Every successful create marks live healthy, so a stalled
// challenger (not just a failing webhook) is visible on the webhook server's
// liveness endpoint.
//
// Grounded on probe_pod.py's web_hook_challenger.
func WebhookChallenger(ctx context.Context, c client.Client, zone string, live healthz.Manager) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		hb := &chaosv1.AcknowledgedHeartbeat{
			Ready: false,
		}
		// "webhook", not "web-hook", to match the probe name the toleration
		// table keys on (spec's default toleration table names this probe
		// "webhook"; original_source's CR name used a hyphen its own
		// toleration lookup never actually consulted).
		hb.Name = fmt.Sprintf("webhook-probe-%s-%d", zone, time.Now().Unix())
		createCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := c.Create(createCtx, hb)
		cancel()
		if err == nil {
			live.Set(true)
		}

		time.Sleep(Interval)
	}
}
