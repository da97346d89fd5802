// Package threshold implements the per-probe, per-zone toleration table
// assessed against observed downtime, per spec §4.7.
//
// Grounded on original_source/chaosgarden/k8s/probe/thresholds.py.
package threshold

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// DefaultToleration is returned by Get when no rule matches.
const DefaultToleration = 0 * time.Second

// Table maps zone-selector -> probe-name -> toleration.
//
// A zone-selector is a literal zone name, an integer string index (resolved
// against a sorted list of known zones), or a negated form "!<zone>"/"!<index>"
// meaning "every zone except this one".
type Table struct {
	rules       map[string]map[string]time.Duration
	knownZones  []string // sorted, for integer-index resolution
}

// NewTable constructs a Table from raw zone-selector -> probe -> seconds
// data and the set of known zones (used to resolve integer indices).
func NewTable(rules map[string]map[string]int, knownZones []string) *Table {
	sorted := append([]string(nil), knownZones...)
	sort.Strings(sorted)

	t := &Table{
		rules:      map[string]map[string]time.Duration{},
		knownZones: sorted,
	}
	for selector, probes := range rules {
		normalized := t.normalizeSelector(selector)
		durations := make(map[string]time.Duration, len(probes))
		for probe, seconds := range probes {
			durations[probe] = time.Duration(seconds) * time.Second
		}
		t.rules[normalized] = durations
	}
	return t
}

// normalizeSelector lowercases the selector and resolves a bare or negated
// integer index against the sorted known-zones list. Non-integer selectors
// pass through lowercased, negation preserved.
func (t *Table) normalizeSelector(selector string) string {
	negated := strings.HasPrefix(selector, "!")
	body := strings.ToLower(strings.TrimPrefix(selector, "!"))
	if idx, err := strconv.Atoi(body); err == nil && idx >= 0 && idx < len(t.knownZones) {
		body = t.knownZones[idx]
	}
	if negated {
		return "!" + body
	}
	return body
}

// Get returns the toleration for (probe, zone): the first match under exact
// selector first, then negated selectors where zone != the negated zone. If
// nothing matches, DefaultToleration (0, i.e. any downtime violates) is
// returned.
func (t *Table) Get(probe, zone string) time.Duration {
	zone = strings.ToLower(zone)

	if probes, ok := t.rules[zone]; ok {
		if d, ok := probes[probe]; ok {
			return d
		}
	}
	for selector, probes := range t.rules {
		if !strings.HasPrefix(selector, "!") {
			continue
		}
		negatedZone := strings.TrimPrefix(selector, "!")
		if zone == negatedZone {
			continue
		}
		if d, ok := probes[probe]; ok {
			return d
		}
	}
	return DefaultToleration
}
