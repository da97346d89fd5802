package selector

import (
	"context"
	"sync"

	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// ZoneLabel is the well-known topology label carried on Nodes and used to
// enrich Pod label sets with their Node's zone for filtering purposes.
const ZoneLabel = "topology.kubernetes.io/zone"

// nodeGetter is the minimal client surface ZoneEnricher needs; satisfied by
// sigs.k8s.io/controller-runtime/pkg/client.Client.
type nodeGetter interface {
	Get(ctx context.Context, key client.ObjectKey, obj client.Object, opts ...client.GetOption) error
}

// ZoneEnricher enriches a Pod's labels with its Node's topology.kubernetes.io/zone
// label, retrieving (and caching) the Node on demand so that node label
// selectors can be matched the same way requirement matching matches pod
// labels, per spec §4.3.
type ZoneEnricher struct {
	client nodeGetter

	mu    sync.Mutex
	cache map[string]string // nodeName -> zone
}

// NewZoneEnricher constructs a ZoneEnricher backed by c.
func NewZoneEnricher(c nodeGetter) *ZoneEnricher {
	return &ZoneEnricher{client: c, cache: map[string]string{}}
}

// Enrich returns a copy of pod.Labels with ZoneLabel set from the pod's
// node, looking the node up (and caching the result) on first use for that
// node name. If the node cannot be read, the original labels are returned
// unmodified.
func (z *ZoneEnricher) Enrich(ctx context.Context, pod *corev1.Pod) map[string]string {
	labels := map[string]string{}
	for k, v := range pod.Labels {
		labels[k] = v
	}
	if pod.Spec.NodeName == "" {
		return labels
	}
	zone, ok := z.zoneForNode(ctx, pod.Spec.NodeName)
	if ok {
		labels[ZoneLabel] = zone
	}
	return labels
}

func (z *ZoneEnricher) zoneForNode(ctx context.Context, nodeName string) (string, bool) {
	z.mu.Lock()
	if zone, ok := z.cache[nodeName]; ok {
		z.mu.Unlock()
		return zone, true
	}
	z.mu.Unlock()

	var node corev1.Node
	if err := z.client.Get(ctx, client.ObjectKey{Name: nodeName}, &node); err != nil {
		return "", false
	}
	zone := node.Labels[ZoneLabel]

	z.mu.Lock()
	z.cache[nodeName] = zone
	z.mu.Unlock()
	return zone, zone != ""
}
