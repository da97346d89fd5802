package agent

import (
	"context"
	"fmt"
	"time"

	chaosv1 "github.com/gardener/chaos-engineering/pkg/apis/chaos/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// Interval is the tick every probe goroutine sleeps between iterations,
// matching probe_pod.py's module-level `interval = 1`.
const Interval = time.Second

// Emitter creates Heartbeat custom resources against a cluster, retrying
// indefinitely (with a 1s back-off) on failure, since a probe heartbeat that
// never made it to the API server is itself the signal this system exists
// to detect — swallowing the error here and reporting it as a missed
// heartbeat via the series' own gap-synthesis is correct, not negligent.
type Emitter struct {
	client client.Client
}

// NewEmitter wraps c for heartbeat emission.
func NewEmitter(c client.Client) *Emitter {
	return &Emitter{client: c}
}

// Enqueue fires off a heartbeat creation in the background (non-blocking,
// mirrors probe_pod.py's enqueue() spawning a daemon thread per heartbeat)
// for (probe, zone) with the given readiness and optional payload.
func (e *Emitter) Enqueue(ctx context.Context, probe, zone string, ready bool, payload string) {
	hb := &chaosv1.Heartbeat{
		ObjectMeta: metav1.ObjectMeta{Name: fmt.Sprintf("%s-probe-%s-%d", probe, zone, time.Now().Unix())},
		Ready:      ready,
		Payload:    payload,
	}
	go e.emit(ctx, hb)
}

func (e *Emitter) emit(ctx context.Context, hb *chaosv1.Heartbeat) {
	for {
		createCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := e.client.Create(createCtx, hb)
		cancel()
		if err == nil {
			return
		}
		if ctx.Err() != nil {
			return
		}
		time.Sleep(Interval)
	}
}
