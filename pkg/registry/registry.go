// Package registry implements a process-wide registry of cooperative
// background workers, mirroring the thread registry that the Python
// original (chaosgarden.util.threading) keeps for its simulation threads.
package registry

import (
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"

	"github.com/go-logr/logr"
)

// Handle identifies a launched worker so callers can cancel and join it.
type Handle struct {
	name string
	w    *worker
	done chan struct{}
	noop bool
}

// Name returns the worker's display name.
func (h *Handle) Name() string {
	return h.name
}

// Join blocks until the worker has returned. Safe to call on a no-op handle.
func (h *Handle) Join() {
	if h.noop {
		return
	}
	<-h.done
}

// Registry tracks every launched worker and its cancel flag.
//
// Workers never block on the registry mutex for normal progress: the lock is
// held only briefly, by launch, cancel, CancelAll, a worker's exit
// bookkeeping and the O(1) IsCancelled read.
type Registry struct {
	log logr.Logger

	mu            sync.Mutex
	wg            sync.WaitGroup
	workers       map[*worker]struct{}
	inTermination bool

	prevTERM, prevINT, prevQUIT os.Signal
	signalsInstalled            bool
}

type worker struct {
	name      string
	cancelled bool
}

// New creates an empty registry.
func New(log logr.Logger) *Registry {
	return &Registry{
		log:     log,
		workers: map[*worker]struct{}{},
	}
}

// Launch starts target in its own goroutine and records it as a cooperative
// worker. If the registry is already in global termination, Launch returns a
// no-op handle whose Join returns immediately, so callers never need to
// branch on termination state before launching.
func (r *Registry) Launch(name string, target func(cancelled func() bool)) *Handle {
	r.mu.Lock()
	if r.inTermination {
		r.mu.Unlock()
		return &Handle{name: name, noop: true}
	}
	w := &worker{name: name}
	r.workers[w] = struct{}{}
	r.wg.Add(1)
	r.mu.Unlock()

	r.log.Info("Launching background worker", "worker", name)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer r.wg.Done()
		defer r.forget(w)
		target(func() bool { return r.isCancelled(w) })
	}()
	return &Handle{name: name, w: w, done: done}
}

// Cancel flags h's worker for cancellation and joins it.
func (r *Registry) Cancel(h *Handle) {
	if h.noop {
		return
	}
	r.cancel(h.w)
	h.Join()
}

// IsCancelled reports whether h's worker has been individually cancelled or
// the registry is in global termination.
func (r *Registry) IsCancelled(h *Handle) bool {
	if h.noop {
		return true
	}
	return r.isCancelled(h.w)
}

func (r *Registry) forget(w *worker) {
	r.mu.Lock()
	delete(r.workers, w)
	r.mu.Unlock()
}

func (r *Registry) isCancelled(w *worker) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inTermination {
		return true
	}
	return w.cancelled
}

// Cancel flags w for cancellation; it does not wait for w to observe the
// flag. Callers typically follow with Handle.Join.
func (r *Registry) cancel(w *worker) {
	r.mu.Lock()
	w.cancelled = true
	r.mu.Unlock()
}

// CancelAll flags every live worker for cancellation and waits until all of
// them have returned. It is idempotent: a second call dumps every
// goroutine's stack trace instead of re-signalling,
// matching the original's "still active background thread" diagnostic.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	alreadyInTermination := r.inTermination
	r.inTermination = true
	workers := make([]*worker, 0, len(r.workers))
	for w := range r.workers {
		workers = append(workers, w)
	}
	r.mu.Unlock()

	r.log.Info("Looking for still active background workers", "count", len(workers))
	if alreadyInTermination {
		dumpStacks(r.log)
		return
	}

	r.mu.Lock()
	for w := range r.workers {
		w.cancelled = true
	}
	r.mu.Unlock()

	for _, w := range workers {
		r.log.Info("Waiting for background worker to end", "worker", w.name)
	}
	r.wg.Wait()
	r.log.Info("Shutdown completed, all background workers terminated")
}

func dumpStacks(log logr.Logger) {
	buf := make([]byte, 1<<20)
	n := runtime.Stack(buf, true)
	log.Info("Still active background workers", "stack", string(buf[:n]))
}

// InstallSignalHandlers wires SIGTERM/SIGINT/SIGQUIT to CancelAll, chaining
// to any previously installed handler the same way the original chains to
// the hosting CLI's own Ctrl-C handling.
func (r *Registry) InstallSignalHandlers() {
	r.mu.Lock()
	if r.signalsInstalled {
		r.mu.Unlock()
		return
	}
	r.signalsInstalled = true
	r.mu.Unlock()

	r.log.Info("Installing signal handlers to terminate all active background workers on involuntary signals")
	ch := make(chan os.Signal, 3)
	signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	go func() {
		for sig := range ch {
			r.log.Info("Signal handler invoked, aborting now", "signal", sig)
			r.CancelAll()
			signal.Stop(ch)
			// Re-raise so any process-level default (or a handler installed
			// before us, e.g. a hosting CLI) still gets to run.
			p, err := os.FindProcess(os.Getpid())
			if err == nil {
				_ = p.Signal(sig)
			}
			return
		}
	}()
}
