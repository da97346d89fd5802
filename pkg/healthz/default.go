// Copyright (c) 2020 SAP SE or an SAP affiliate company. All rights reserved. This file is licensed under the Apache Software License, v. 2 except as noted otherwise in the LICENSE file
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package healthz implements the liveness endpoint the probe pipeline's
// admission webhook server exposes: a Manager tracking a boolean health
// status, wired to an http.HandlerFunc, plus controller-runtime Checker
// constructors for API-server reachability and informer-cache-sync.
package healthz

import "sync"

// Manager tracks a boolean health status that only takes effect while
// started, used by HandlerFunc to answer liveness probes.
type Manager interface {
	// Name returns the manager's identifier, for registration with a
	// manager.Manager's AddHealthzCheck-equivalent.
	Name() string
	// Start marks the manager healthy and ready to accept Set calls.
	Start()
	// Stop marks the manager unhealthy and ignores further Set calls until
	// Start is called again.
	Stop()
	// Set updates the health status. A no-op while not started.
	Set(healthy bool)
	// Get returns the current health status.
	Get() bool
}

// defaultHealthz is the simplest Manager: Start/Stop directly flip health,
// Set is a no-op unless started.
type defaultHealthz struct {
	mu      sync.Mutex
	health  bool
	started bool
}

// NewDefaultHealthz returns a Manager that is healthy for as long as it has
// been started and not subsequently stopped.
func NewDefaultHealthz() Manager {
	return &defaultHealthz{}
}

func (d *defaultHealthz) Name() string { return "default" }

func (d *defaultHealthz) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = true
	d.health = true
}

func (d *defaultHealthz) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = false
	d.health = false
}

func (d *defaultHealthz) Set(healthy bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		return
	}
	d.health = healthy
}

func (d *defaultHealthz) Get() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.health
}
