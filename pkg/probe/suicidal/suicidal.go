// Package suicidal implements the pod-lifecycle probe job (spec §4.8): a
// pod that reports its own restart count as a Heartbeat, then deletes
// itself to exercise the kubelet/scheduler restart loop.
//
// Grounded on
// original_source/chaosgarden/k8s/probe/resources/suicidal_pod.py.
package suicidal

import (
	"context"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	apitypes "k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	chaosv1 "github.com/gardener/chaos-engineering/pkg/apis/chaos/v1"
)

const zoneLabel = "topology.kubernetes.io/zone"

// Run reads this pod's own status and node to determine restart count and
// zone, creates one pod-lifecycle Heartbeat (ready iff this is the pod's
// first run), then deletes the pod itself with zero grace period.
//
// Like suicidal_pod.py, it returns the heartbeat-send error (if any)
// immediately without attempting self-deletion, since a heartbeat that
// never made it through makes the probe's restart-detection meaningless
// regardless of whether the kill succeeds; the self-deletion error, if any,
// is returned separately so the caller can map it to a distinct exit code.
func Run(ctx context.Context, c client.Client, podName, podNamespace string) (heartbeatErr, killErr error) {
	pod := &corev1.Pod{}
	if err := c.Get(ctx, apitypes.NamespacedName{Name: podName, Namespace: podNamespace}, pod); err != nil {
		return fmt.Errorf("reading pod %s/%s: %w", podNamespace, podName, err), nil
	}

	restartCount := int32(0)
	if len(pod.Status.ContainerStatuses) > 0 {
		restartCount = pod.Status.ContainerStatuses[0].RestartCount
	}

	zone := "na"
	if pod.Spec.NodeName != "" {
		node := &corev1.Node{}
		if err := c.Get(ctx, apitypes.NamespacedName{Name: pod.Spec.NodeName}, node); err == nil {
			if z, ok := node.Labels[zoneLabel]; ok {
				zone = z
			}
		}
	}

	hb := &chaosv1.Heartbeat{
		Ready: restartCount == 0,
	}
	hb.Name = fmt.Sprintf("pod-lifecycle-probe-%s-%d", zone, time.Now().Unix())
	if err := c.Create(ctx, hb); err != nil {
		return fmt.Errorf("sending pod-lifecycle heartbeat: %w", err), nil
	}

	gracePeriod := int64(0)
	killErr = c.Delete(ctx, pod, &client.DeleteOptions{GracePeriodSeconds: &gracePeriod})
	return nil, killErr
}
