// Package lifecycle coordinates startup, background work, readiness and
// graceful shutdown.
package lifecycle

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Probe reports an error while a dependency cannot serve traffic.
type Probe func(ctx context.Context) error

// Coordinator manages startup hooks, long-running workers, readiness probes
// and shutdown hooks.
type Coordinator struct {
	ctx        context.Context
	cancel     context.CancelFunc
	startupWg  sync.WaitGroup
	workerWg   sync.WaitGroup
	shutdownWg sync.WaitGroup
	started    atomic.Bool

	probeMu sync.RWMutex
	probes  map[string]Probe
}

// New creates a Coordinator with a cancellable context.
func New() *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		ctx:    ctx,
		cancel: cancel,
		probes: make(map[string]Probe),
	}
}

// Context returns the coordinator's context, cancelled on shutdown.
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

// OnStartup registers a function to run concurrently during startup.
func (c *Coordinator) OnStartup(fn func()) {
	c.startupWg.Go(fn)
}

// Run starts a long-running worker bound to the coordinator context.
// Shutdown waits for every worker to return before running shutdown hooks
// that depend on Drained.
func (c *Coordinator) Run(fn func(ctx context.Context)) {
	c.workerWg.Go(func() { fn(c.ctx) })
}

// Drained blocks until all workers started with Run have returned.
func (c *Coordinator) Drained() {
	c.workerWg.Wait()
}

// OnShutdown registers a function to run concurrently during shutdown.
// Shutdown hooks should block on <-c.Context().Done() before executing cleanup.
func (c *Coordinator) OnShutdown(fn func()) {
	c.shutdownWg.Go(fn)
}

// AddProbe registers a named readiness probe. A later probe with the same
// name replaces the earlier one.
func (c *Coordinator) AddProbe(name string, p Probe) {
	c.probeMu.Lock()
	defer c.probeMu.Unlock()
	c.probes[name] = p
}

// Ready reports whether startup has completed and shutdown has not begun.
func (c *Coordinator) Ready() bool {
	return c.started.Load() && c.ctx.Err() == nil
}

// Check runs every probe and returns the failures keyed by probe name.
// An empty result means the service can take traffic.
func (c *Coordinator) Check(ctx context.Context) map[string]string {
	failures := make(map[string]string)
	if !c.started.Load() {
		failures["startup"] = "in progress"
	}
	if c.ctx.Err() != nil {
		failures["shutdown"] = "in progress"
	}

	c.probeMu.RLock()
	probes := maps.Clone(c.probes)
	c.probeMu.RUnlock()

	for _, name := range slices.Sorted(maps.Keys(probes)) {
		if err := probes[name](ctx); err != nil {
			failures[name] = err.Error()
		}
	}
	return failures
}

// WaitForStartup blocks until all startup hooks have completed and marks the
// coordinator started.
func (c *Coordinator) WaitForStartup() {
	c.startupWg.Wait()
	c.started.Store(true)
}

// Shutdown cancels the context and waits for workers and shutdown hooks
// to complete within the given timeout.
func (c *Coordinator) Shutdown(timeout time.Duration) error {
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.workerWg.Wait()
		c.shutdownWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timeout after %v", timeout)
	}
}
