// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package healthz

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
)

// syncWaiter is the narrow cache.Informers capability this package depends
// on, so tests can fake it without a real informer cache.
type syncWaiter interface {
	WaitForCacheSync(ctx context.Context) bool
}

func requestContext(req *http.Request) context.Context {
	if req == nil {
		return context.Background()
	}
	return req.Context()
}

// NewCacheSyncHealthz returns a Checker that fails for as long as waiter's
// caches are not synced, with no grace period.
func NewCacheSyncHealthz(waiter syncWaiter) healthz.Checker {
	return func(req *http.Request) error {
		if !waiter.WaitForCacheSync(requestContext(req)) {
			return fmt.Errorf("informers not synced")
		}
		return nil
	}
}

// NewCacheSyncHealthzWithDeadline returns a Checker tolerant of transient
// desync: it only starts failing once waiter has reported not-synced
// continuously for at least deadline since the last time it was seen
// synced (or since construction, if it was never seen synced at all), and
// resets that grace period the moment waiter reports synced again. This
// absorbs brief resync windows (e.g. a watch reconnect after a seed API
// server restart) without flapping the liveness endpoint.
func NewCacheSyncHealthzWithDeadline(log logr.Logger, c clock.Clock, waiter syncWaiter, deadline time.Duration) healthz.Checker {
	var (
		mu         sync.Mutex
		lastSynced = c.Now()
	)

	return func(req *http.Request) error {
		mu.Lock()
		defer mu.Unlock()

		if waiter.WaitForCacheSync(requestContext(req)) {
			lastSynced = c.Now()
			return nil
		}

		if c.Since(lastSynced) < deadline {
			return nil
		}

		log.Info("informers have not synced within the deadline", "deadline", deadline.String())
		return fmt.Errorf("informers not synced for more than %s", deadline)
	}
}
