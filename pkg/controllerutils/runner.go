// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package controllerutils

import (
	"context"
	"fmt"

	"sigs.k8s.io/controller-runtime/pkg/manager"
)

// ControlledRunner runs its BootstrapRunnables to completion, in order, then
// adds its ActualRunnables to Manager, in order. The probe-agent command uses
// it with no BootstrapRunnables, only to add agent.Run to its manager.
type ControlledRunner struct {
	Manager            manager.Manager
	BootstrapRunnables []manager.Runnable
	ActualRunnables    []manager.Runnable
}

func (c *ControlledRunner) Start(ctx context.Context) error {
	for _, r := range c.BootstrapRunnables {
		if err := r.Start(ctx); err != nil {
			return fmt.Errorf("failed running bootstrap runnable: %w", err)
		}
	}
	return AddAllRunnables(c.Manager, c.ActualRunnables...)
}

// AddAllRunnables adds each of runnables to mgr, in order, stopping at the
// first error.
func AddAllRunnables(mgr manager.Manager, runnables ...manager.Runnable) error {
	for _, r := range runnables {
		if err := mgr.Add(r); err != nil {
			return fmt.Errorf("failed adding runnable to manager: %w", err)
		}
	}
	return nil
}
