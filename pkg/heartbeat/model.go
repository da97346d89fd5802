// Package heartbeat implements the Heartbeat Model: state-series
// reconstruction with gap insertion, phase-series derivation, per-zone
// metrics, and threshold assessment, per spec §4.6 and §8.
//
// Grounded on original_source/chaosgarden/k8s/probe/metrics.py.
package heartbeat

import (
	"fmt"
	"sort"
	"time"
)

// State is the reconstructed liveness state of a probe at a point in time.
type State string

const (
	Ready    State = "Ready"
	NotReady State = "NotReady"
	Unknown  State = "Unknown" // synthesized, never emitted by a probe
)

// Heartbeat is a single observed liveness record.
type Heartbeat struct {
	Probe     string
	Zone      string
	Timestamp time.Time
	Ready     bool
	Payload   string
}

// Name renders the composite heartbeat custom-resource name.
func (h Heartbeat) Name() string {
	return fmt.Sprintf("%s-probe-%s-%d", h.Probe, h.Zone, h.Timestamp.Unix())
}

// Tolerations are the per-probe gap-synthesis policy constants from spec
// §4.6. They are configuration, not magic numbers, so operators can
// calibrate them to their own SLOs.
type Tolerations struct {
	InitialFailureExclusion time.Duration
	InitialGap              time.Duration
	RegularGap              time.Duration
}

// DefaultTolerations returns the spec's default toleration table, keyed by
// probe name.
func DefaultTolerations() map[string]Tolerations {
	return map[string]Tolerations{
		"api":             {InitialGap: 15 * time.Second, RegularGap: 15 * time.Second},
		"api-external":    {InitialGap: 30 * time.Second, RegularGap: 15 * time.Second},
		"api-internal":    {InitialGap: 30 * time.Second, RegularGap: 15 * time.Second},
		"dns-external":    {InitialGap: 30 * time.Second, RegularGap: 15 * time.Second},
		"dns-internal":    {InitialGap: 30 * time.Second, RegularGap: 15 * time.Second},
		"dns-management":  {InitialFailureExclusion: 60 * time.Second, InitialGap: 60 * time.Second, RegularGap: 30 * time.Second},
		"pod-lifecycle":   {InitialGap: 40 * time.Second, RegularGap: 30 * time.Second},
		"webhook":         {InitialFailureExclusion: 50 * time.Second, InitialGap: 50 * time.Second, RegularGap: 30 * time.Second},
	}
}

// entry is one point in a reconstructed StateSeries.
type entry struct {
	timestamp time.Time
	state     State
	payload   string
}

// StateSeries is the per-(probe, zone) reconstructed state timeline: a
// timestamp -> (state, payload) mapping with synthesized Unknown entries
// filling gaps, in ascending timestamp order. Timestamps are unique.
type StateSeries struct {
	Probe   string
	Zone    string
	entries []entry
}

// BuildStateSeries reconstructs the state series for a single (probe, zone)
// from its raw heartbeats plus the run's [start, stop) window and this
// probe's gap-synthesis tolerations.
//
// Known trade-off (spec §9, left unresolved deliberately): the
// initial-failure-exclusion window drops heartbeats even if they represent
// a genuine failure. If the probe starts during an outage, that outage can
// be silently erased from the series. Callers who need outage-from-start
// detection must special-case it themselves; this package implements the
// policy as specified.
func BuildStateSeries(probe, zone string, heartbeats []Heartbeat, start, stop time.Time, tol Tolerations) *StateSeries {
	sorted := make([]Heartbeat, len(heartbeats))
	copy(sorted, heartbeats)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	s := &StateSeries{Probe: probe, Zone: zone}

	for _, hb := range sorted {
		if !hb.Ready && hb.Timestamp.Before(start.Add(tol.InitialFailureExclusion)) {
			continue // dropped: within the initial-failure-exclusion window
		}
		state := NotReady
		if hb.Ready {
			state = Ready
		}
		s.entries = append(s.entries, entry{timestamp: hb.Timestamp, state: state, payload: hb.Payload})
	}

	// (b) insert a leading Unknown if nothing exists by start+initial_gap.
	if len(s.entries) == 0 || s.entries[0].timestamp.After(start.Add(tol.InitialGap)) {
		leading := entry{timestamp: start.Add(tol.InitialGap), state: Unknown}
		s.entries = append([]entry{leading}, s.entries...)
	}

	// (d) insert an Unknown every regular_gap between entries spaced further
	// apart than regular_gap.
	filled := make([]entry, 0, len(s.entries))
	for i, e := range s.entries {
		filled = append(filled, e)
		if i+1 >= len(s.entries) {
			continue
		}
		next := s.entries[i+1]
		for gapStart := e.timestamp.Add(tol.RegularGap); next.timestamp.Sub(gapStart) > 0 && gapStart.Before(next.timestamp); gapStart = gapStart.Add(tol.RegularGap) {
			if next.timestamp.Sub(e.timestamp) <= tol.RegularGap {
				break
			}
			filled = append(filled, entry{timestamp: gapStart, state: Unknown})
		}
	}
	s.entries = filled

	// (c) insert a trailing Unknown if nothing exists after last+regular_gap.
	if len(s.entries) == 0 || !s.entries[len(s.entries)-1].timestamp.Add(tol.RegularGap).After(stop) {
		last := s.entries[len(s.entries)-1]
		if stop.Sub(last.timestamp) > tol.RegularGap {
			s.entries = append(s.entries, entry{timestamp: stop, state: Unknown})
		}
	}

	return s
}

// Phase is a contiguous run of a single state with its duration.
type Phase struct {
	State    State
	Duration time.Duration
}

// PhaseSeries collapses a StateSeries into contiguous equal-state runs. For
// a series of length 1, a single phase of duration 0 is emitted.
func (s *StateSeries) PhaseSeries() []Phase {
	if len(s.entries) == 0 {
		return nil
	}
	if len(s.entries) == 1 {
		return []Phase{{State: s.entries[0].state, Duration: 0}}
	}

	var phases []Phase
	runState := s.entries[0].state
	runStart := s.entries[0].timestamp
	for i := 1; i < len(s.entries); i++ {
		if s.entries[i].state != runState {
			phases = append(phases, Phase{State: runState, Duration: s.entries[i].timestamp.Sub(runStart)})
			runState = s.entries[i].state
			runStart = s.entries[i].timestamp
		}
	}
	last := s.entries[len(s.entries)-1]
	phases = append(phases, Phase{State: runState, Duration: last.timestamp.Sub(runStart)})
	return mergeAdjacent(phases)
}

func mergeAdjacent(phases []Phase) []Phase {
	if len(phases) == 0 {
		return phases
	}
	merged := []Phase{phases[0]}
	for _, p := range phases[1:] {
		last := &merged[len(merged)-1]
		if last.State == p.State {
			last.Duration += p.Duration
		} else {
			merged = append(merged, p)
		}
	}
	return merged
}

// Downtime sums the duration of every non-Ready phase.
func Downtime(phases []Phase) time.Duration {
	var total time.Duration
	for _, p := range phases {
		if p.State != Ready {
			total += p.Duration
		}
	}
	return total
}

// Metrics is a per-probe-per-zone summary derived from a StateSeries and the
// externally-tracked send/receive counters.
type Metrics struct {
	Probe              string
	Zone               string
	HeartbeatsSent     int
	HeartbeatsReceived int
	Gaps               int
	Downtime           time.Duration
}

// Lost is HeartbeatsSent - HeartbeatsReceived.
func (m Metrics) Lost() int {
	return m.HeartbeatsSent - m.HeartbeatsReceived
}

// BuildMetrics derives Metrics for a (probe, zone) from its reconstructed
// series and the caller-supplied sent counter. HeartbeatsReceived is counted
// here from the series' non-synthetic (non-Unknown) entries.
func BuildMetrics(s *StateSeries, sent int) Metrics {
	received := 0
	gaps := 0
	for _, e := range s.entries {
		if e.state == Unknown {
			gaps++
		} else {
			received++
		}
	}
	return Metrics{
		Probe:              s.Probe,
		Zone:               s.Zone,
		HeartbeatsSent:     sent,
		HeartbeatsReceived: received,
		Gaps:               gaps,
		Downtime:           Downtime(s.PhaseSeries()),
	}
}

// Violation describes a single assessment failure for a (probe, zone) pair.
type Violation struct {
	Probe   string
	Zone    string
	Message string
}

// Assess compares Metrics against a toleration and returns every violation:
// data loss (lost != 0) and/or a functional outage beyond the toleration.
func Assess(m Metrics, toleration time.Duration) []Violation {
	var violations []Violation
	if lost := m.Lost(); lost != 0 {
		violations = append(violations, Violation{
			Probe:   m.Probe,
			Zone:    m.Zone,
			Message: fmt.Sprintf("data loss: we lost %d state-store writes for %s in zone %s", lost, m.Probe, m.Zone),
		})
	}
	if m.Downtime > toleration {
		violations = append(violations, Violation{
			Probe:   m.Probe,
			Zone:    m.Zone,
			Message: fmt.Sprintf("%s in zone %s was %ds not Ready, but only %ds were tolerated", m.Probe, m.Zone, int(m.Downtime.Seconds()), int(toleration.Seconds())),
		})
	}
	return violations
}
