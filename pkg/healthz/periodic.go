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

package healthz

import (
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// periodicHealthz reports healthy only as long as Set(true) keeps being
// called at least every resetDuration. Used by the probe agent's webhook
// challenger: once its successful creates stop, the liveness endpoint flips
// unhealthy on its own, without a separate watchdog.
type periodicHealthz struct {
	mu            sync.Mutex
	clock         clock.Clock
	resetDuration time.Duration

	health  bool
	started bool
	timer   clock.Timer
	stopCh  chan struct{}
}

// NewPeriodicHealthz returns a Manager that resets to unhealthy resetDuration
// after the last Set(true), using c as the time source (a real clock in
// production, a fake one in tests).
func NewPeriodicHealthz(c clock.Clock, resetDuration time.Duration) Manager {
	return &periodicHealthz{clock: c, resetDuration: resetDuration}
}

func (p *periodicHealthz) Name() string { return "periodic" }

func (p *periodicHealthz) Start() {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.health = true
	p.stopCh = make(chan struct{})
	p.timer = p.clock.NewTimer(p.resetDuration)
	timerC := p.timer.C()
	stopCh := p.stopCh
	p.mu.Unlock()

	go func() {
		for {
			select {
			case <-timerC:
				p.mu.Lock()
				p.health = false
				p.mu.Unlock()
			case <-stopCh:
				return
			}
		}
	}()
}

func (p *periodicHealthz) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	p.started = false
	p.health = false
	p.timer.Stop()
	close(p.stopCh)
}

func (p *periodicHealthz) Set(healthy bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	p.health = healthy
	if healthy {
		p.timer.Reset(p.resetDuration)
	}
}

func (p *periodicHealthz) Get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.health
}
