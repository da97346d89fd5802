package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"sigs.k8s.io/controller-runtime/pkg/client"

	chaosv1 "github.com/gardener/chaos-engineering/pkg/apis/chaos/v1"
	gardenererrors "github.com/gardener/chaos-engineering/pkg/errors"
	"github.com/gardener/chaos-engineering/pkg/heartbeat"
	"github.com/gardener/chaos-engineering/pkg/terminator"
	"github.com/gardener/chaos-engineering/pkg/threshold"
)

const regionalZone = "regional"

// Result is what RunClusterHealthProbe returns: the assembled metrics, any
// threshold violations found, and whether the run passed.
type Result struct {
	Metrics    []heartbeat.Metrics
	Violations []heartbeat.Violation
	Passed     bool
}

// RunClusterHealthProbe runs the full external probe lifecycle against c
// (the target cluster): rollback any leftovers, set up the probe resources
// for zones, emit regional "api" heartbeats directly every Interval until
// duration elapses (duration <= 0 means run once), collect metrics, tear
// down, then assess the metrics against table.
//
// Grounded on probes.py's run_cluster_health_probe.
func RunClusterHealthProbe(ctx context.Context, log logr.Logger, c client.Client, zones []string, duration time.Duration, table *threshold.Table) (*Result, error) {
	if err := Teardown(ctx, c); err != nil {
		return nil, fmt.Errorf("rolling back leftover probe resources: %w", err)
	}
	if err := Setup(ctx, c, zones, ExternalAPI{}); err != nil {
		return nil, err
	}

	start := time.Now().UTC()
	var successful, failed []heartbeat.Heartbeat

	term := terminator.New(log, "cluster-health-probe", duration, func() bool { return false })
	for !term.IsTerminated() {
		hb := heartbeat.Heartbeat{Probe: "api", Zone: regionalZone, Timestamp: time.Now().UTC(), Ready: true}
		obj := &chaosv1.Heartbeat{Ready: hb.Ready}
		obj.Name = hb.Name()
		createCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := c.Create(createCtx, obj)
		cancel()
		if err != nil {
			hb.Ready = false
			failed = append(failed, hb)
			log.Error(err, "API probe failed")
		} else {
			successful = append(successful, hb)
		}
		time.Sleep(time.Second)
	}
	stop := time.Now().UTC()

	metrics, err := aggregateMetrics(ctx, c, zones, start, stop, successful, failed)
	if err != nil {
		return nil, err
	}

	if err := Teardown(ctx, c); err != nil {
		return nil, fmt.Errorf("tearing down probe resources: %w", err)
	}

	var violations []heartbeat.Violation
	for _, m := range metrics {
		violations = append(violations, heartbeat.Assess(m, table.Get(m.Probe, m.Zone))...)
	}

	return &Result{Metrics: metrics, Violations: violations, Passed: len(violations) == 0}, nil
}

// aggregateMetrics combines externally-known failed api heartbeats (lost
// before ever reaching the cluster) with every Heartbeat and
// AcknowledgedHeartbeat the cluster itself recorded, builds a StateSeries
// per (probe, zone), and derives Metrics from each.
//
// Grounded on probes.py's generate_metrics.
func aggregateMetrics(ctx context.Context, c client.Client, zones []string, start, stop time.Time, successfulAPI, failedAPI []heartbeat.Heartbeat) ([]heartbeat.Metrics, error) {
	var all []heartbeat.Heartbeat
	all = append(all, failedAPI...)

	clusterHeartbeats, err := readHeartbeats(ctx, c)
	if err != nil {
		return nil, err
	}
	all = append(all, clusterHeartbeats...)

	clusterAcknowledged, err := readAcknowledgedHeartbeats(ctx, c)
	if err != nil {
		return nil, err
	}
	all = append(all, clusterAcknowledged...)

	if len(all) == 0 {
		return nil, gardenererrors.NewFatal("aggregating probe metrics", fmt.Errorf("no heartbeats observed (probe errored or ran too briefly)"))
	}

	tolerations := heartbeat.DefaultTolerations()
	grouped := map[string][]heartbeat.Heartbeat{}
	for _, hb := range all {
		key := hb.Probe + "|" + hb.Zone
		grouped[key] = append(grouped[key], hb)
	}

	var metrics []heartbeat.Metrics
	for key, heartbeats := range grouped {
		probeName, zone := splitKey(key)
		tol := tolerations[probeName]
		series := heartbeat.BuildStateSeries(probeName, zone, heartbeats, start, stop, tol)
		// sent defaults to received unless this is the regional api probe,
		// the one case the external aggregator actually knows an
		// independent send count for (it issued those creates itself).
		m := heartbeat.BuildMetrics(series, 0)
		m.HeartbeatsSent = m.HeartbeatsReceived
		if probeName == "api" && zone == regionalZone {
			m.HeartbeatsSent = len(successfulAPI) + len(failedAPI)
		}
		metrics = append(metrics, m)
	}
	return metrics, nil
}

func splitKey(key string) (probeName, zone string) {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '|' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}

func readHeartbeats(ctx context.Context, c client.Client) ([]heartbeat.Heartbeat, error) {
	list := &chaosv1.HeartbeatList{}
	if err := c.List(ctx, list); err != nil {
		return nil, fmt.Errorf("listing heartbeats: %w", err)
	}
	var out []heartbeat.Heartbeat
	for _, hb := range list.Items {
		probeName, zone, ts, err := parseHeartbeatName(hb.Name)
		if err != nil {
			continue
		}
		out = append(out, heartbeat.Heartbeat{Probe: probeName, Zone: zone, Timestamp: ts, Ready: hb.Ready, Payload: hb.Payload})
	}
	return out, nil
}

func readAcknowledgedHeartbeats(ctx context.Context, c client.Client) ([]heartbeat.Heartbeat, error) {
	list := &chaosv1.AcknowledgedHeartbeatList{}
	if err := c.List(ctx, list); err != nil {
		return nil, fmt.Errorf("listing acknowledged heartbeats: %w", err)
	}
	var out []heartbeat.Heartbeat
	for _, hb := range list.Items {
		probeName, zone, ts, err := parseHeartbeatName(hb.Name)
		if err != nil {
			continue
		}
		out = append(out, heartbeat.Heartbeat{Probe: probeName, Zone: zone, Timestamp: ts, Ready: hb.Ready, Payload: hb.Payload})
	}
	return out, nil
}

// parseHeartbeatName decomposes "{probe}-probe-{zone}-{unixTimestamp}" back
// into its parts, the inverse of heartbeat.Heartbeat.Name.
func parseHeartbeatName(name string) (probeName, zone string, ts time.Time, err error) {
	const marker = "-probe-"
	markerIdx := lastIndex(name, marker)
	if markerIdx < 0 {
		return "", "", time.Time{}, fmt.Errorf("unrecognized heartbeat name %q", name)
	}
	probeName = name[:markerIdx]
	rest := name[markerIdx+len(marker):]

	dashIdx := lastIndex(rest, "-")
	if dashIdx < 0 {
		return "", "", time.Time{}, fmt.Errorf("unrecognized heartbeat name %q", name)
	}
	zone = rest[:dashIdx]
	var unixSeconds int64
	if _, scanErr := fmt.Sscanf(rest[dashIdx+1:], "%d", &unixSeconds); scanErr != nil {
		return "", "", time.Time{}, fmt.Errorf("unrecognized heartbeat timestamp in %q: %w", name, scanErr)
	}
	return probeName, zone, time.Unix(unixSeconds, 0).UTC(), nil
}

func lastIndex(s, substr string) int {
	for i := len(s) - len(substr); i >= 0; i-- {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
