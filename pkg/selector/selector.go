// Package selector implements the regex-extended label selector grammar
// used throughout this system to target resources: a comma-separated list
// of "key op value" requirements, where op extends the upstream Kubernetes
// label-selector grammar (`==`, `!=`) with two regex operators (`=~`, `!~`).
//
// This is a deliberate superset of the upstream grammar documented in
// k8s.io/apimachinery/pkg/labels: regex matches are anchored at the start of
// the value, never at the end, so "=~ foo" matches "foobar" but not "barfoo".
package selector

import (
	"fmt"
	"regexp"
	"strings"
)

// Op is a selector requirement operator.
type Op string

const (
	Equals     Op = "=="
	NotEquals  Op = "!="
	Matches    Op = "=~"
	NotMatches Op = "!~"
)

// Requirement is an immutable (key, op, value) triple.
type Requirement struct {
	Key   string
	Op    Op
	Value string

	re *regexp.Regexp // compiled lazily for Matches/NotMatches
}

// NewRequirement validates and constructs a single Requirement.
func NewRequirement(key string, op Op, value string) (Requirement, error) {
	r := Requirement{Key: strings.TrimSpace(key), Op: op, Value: strings.TrimSpace(value)}
	if r.Key == "" {
		return Requirement{}, fmt.Errorf("selector: empty key in requirement %q %s %q", key, op, value)
	}
	switch op {
	case Equals, NotEquals:
	case Matches, NotMatches:
		re, err := regexp.Compile("^(?:" + r.Value + ")")
		if err != nil {
			return Requirement{}, fmt.Errorf("selector: invalid regex %q for key %q: %w", r.Value, r.Key, err)
		}
		r.re = re
	default:
		return Requirement{}, fmt.Errorf("selector: unsupported operator %q", op)
	}
	return r, nil
}

// Matches evaluates the requirement against labels. When the key is absent,
// the default is false for ==/=~ and true for !=/!~, per spec.
func (r Requirement) Matches(labels map[string]string) bool {
	value, ok := labels[r.Key]
	switch r.Op {
	case Equals:
		return ok && value == r.Value
	case NotEquals:
		return !ok || value != r.Value
	case Matches:
		return ok && r.re.MatchString(value)
	case NotMatches:
		return !ok || !r.re.MatchString(value)
	default:
		return false
	}
}

// String renders the requirement back to selector syntax. parse(format(r))
// reproduces an equivalent Requirement for any well-formed input.
func (r Requirement) String() string {
	return fmt.Sprintf("%s%s%s", r.Key, r.Op, r.Value)
}

// Set is an ordered, conjunctively-combined sequence of Requirements. An
// entity matches a Set iff every Requirement matches.
type Set []Requirement

// Matches reports whether every requirement in the set matches labels. An
// empty set matches everything.
func (s Set) Matches(labels map[string]string) bool {
	for _, r := range s {
		if !r.Matches(labels) {
			return false
		}
	}
	return true
}

// String renders the set back to selector syntax, comma-separated.
func (s Set) String() string {
	parts := make([]string, len(s))
	for i, r := range s {
		parts[i] = r.String()
	}
	return strings.Join(parts, ", ")
}

var requirementPattern = regexp.MustCompile(`^\s*([^\s!=~]+)\s*(==|!=|=~|!~|=)\s*(.*?)\s*$`)

// Parse parses a comma-separated "key op value" selector string. An empty or
// whitespace-only selector matches everything. The single-char `=` is
// normalized to `==`. Malformed requirements return a descriptive error.
func Parse(selector string) (Set, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return nil, nil
	}

	var set Set
	for _, part := range strings.Split(selector, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		m := requirementPattern.FindStringSubmatch(part)
		if m == nil {
			return nil, fmt.Errorf("selector: cannot parse requirement %q", part)
		}
		key, op, value := m[1], Op(m[2]), m[3]
		if op == "=" {
			op = Equals
		}
		req, err := NewRequirement(key, op, value)
		if err != nil {
			return nil, err
		}
		set = append(set, req)
	}
	return set, nil
}

// Filter returns every entity in entities whose labels (as produced by
// labelsOf) satisfy set.
func Filter[T any](set Set, entities []T, labelsOf func(T) map[string]string) []T {
	var out []T
	for _, e := range entities {
		if set.Matches(labelsOf(e)) {
			out = append(out, e)
		}
	}
	return out
}
