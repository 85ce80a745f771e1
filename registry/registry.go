// Package registry provides centralized management of domain experts. It is
// the leaf dependency of every composition in the engine: ensembles, chains
// and mixtures hold a *Registry and resolve experts by ID at query time.
//
// The registry caches the result of the last availability sweep so hot paths
// can consult liveness without re-probing every backend. Probes run
// concurrently with a bounded per-probe timeout; a slow expert degrades to
// unavailable instead of stalling the sweep.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/expertmesh/expert"
	"github.com/hupe1980/expertmesh/logging"
)

var (
	// ErrExpertNotFound is returned when a lookup references an unknown expert ID.
	ErrExpertNotFound = errors.New("expert not found")

	// ErrDuplicateExpert is returned when Register is called with an ID that is
	// already taken. Use Replace to overwrite.
	ErrDuplicateExpert = errors.New("expert already registered")
)

// Options configures a Registry.
type Options struct {
	// ProbeTimeout bounds each individual availability probe.
	ProbeTimeout time.Duration

	// LivenessTTL controls how long a cached availability sweep stays fresh.
	// Available refreshes the cache once it is older than this.
	LivenessTTL time.Duration

	Logger logging.Logger
}

// Option mutates Options.
type Option func(o *Options)

// WithProbeTimeout sets the per-probe timeout for availability sweeps.
func WithProbeTimeout(d time.Duration) Option {
	return func(o *Options) { o.ProbeTimeout = d }
}

// WithLivenessTTL sets how long a cached availability sweep remains valid.
func WithLivenessTTL(d time.Duration) Option {
	return func(o *Options) { o.LivenessTTL = d }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// Registry holds the experts known to the engine. All methods are safe for
// concurrent use.
type Registry struct {
	mu      sync.RWMutex
	experts map[string]expert.Expert
	order   []string

	liveness   map[string]bool
	livenessAt time.Time

	opts Options
}

// New creates an empty Registry.
func New(optFns ...Option) *Registry {
	opts := Options{
		ProbeTimeout: 5 * time.Second,
		LivenessTTL:  30 * time.Second,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Registry{
		experts: make(map[string]expert.Expert),
		opts:    opts,
	}
}

// Register adds an expert under its Info().ID. It fails with
// ErrDuplicateExpert when the ID is already taken.
func (r *Registry) Register(e expert.Expert) error {
	id := e.Info().ID
	if id == "" {
		return fmt.Errorf("register: expert has empty ID")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.experts[id]; exists {
		return fmt.Errorf("register %q: %w", id, ErrDuplicateExpert)
	}

	r.experts[id] = e
	r.order = append(r.order, id)
	r.invalidateLocked()

	r.opts.Logger.Debug("Registered expert", "expert_id", id, "provider", e.Info().Provider)

	return nil
}

// Replace registers an expert, overwriting any existing registration with the
// same ID.
func (r *Registry) Replace(e expert.Expert) {
	id := e.Info().ID

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.experts[id]; !exists {
		r.order = append(r.order, id)
	}
	r.experts[id] = e
	r.invalidateLocked()
}

// Get returns the expert registered under id.
func (r *Registry) Get(id string) (expert.Expert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.experts[id]
	if !ok {
		return nil, fmt.Errorf("get %q: %w", id, ErrExpertNotFound)
	}

	return e, nil
}

// Remove deletes the expert registered under id.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.experts[id]; !ok {
		return fmt.Errorf("remove %q: %w", id, ErrExpertNotFound)
	}

	delete(r.experts, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.invalidateLocked()

	return nil
}

// List returns all registered expert IDs in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...)
}

// Len returns the number of registered experts.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.experts)
}

// CheckAvailability probes every registered expert concurrently and returns a
// liveness map. Each probe is bounded by the configured probe timeout; probes
// that exceed it report unavailable. The result also refreshes the cached
// liveness snapshot.
func (r *Registry) CheckAvailability(ctx context.Context) map[string]bool {
	r.mu.RLock()
	ids := append([]string(nil), r.order...)
	experts := make(map[string]expert.Expert, len(ids))
	for _, id := range ids {
		experts[id] = r.experts[id]
	}
	timeout := r.opts.ProbeTimeout
	r.mu.RUnlock()

	liveness := make(map[string]bool, len(ids))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	for _, id := range ids {
		wg.Add(1)

		go func(id string, e expert.Expert) {
			defer wg.Done()

			probeCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan bool, 1)
			go func() { done <- e.IsAvailable(probeCtx) }()

			var alive bool
			select {
			case alive = <-done:
			case <-probeCtx.Done():
			}

			mu.Lock()
			liveness[id] = alive
			mu.Unlock()
		}(id, experts[id])
	}

	wg.Wait()

	r.mu.Lock()
	r.liveness = liveness
	r.livenessAt = time.Now()
	r.mu.Unlock()

	return liveness
}

// Available returns the IDs of experts whose last liveness probe succeeded,
// in registration order. The cached sweep is refreshed when it is older than
// the liveness TTL.
func (r *Registry) Available(ctx context.Context) []string {
	r.mu.RLock()
	fresh := r.liveness != nil && time.Since(r.livenessAt) < r.opts.LivenessTTL
	r.mu.RUnlock()

	if !fresh {
		r.CheckAvailability(ctx)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.order))
	for _, id := range r.order {
		if r.liveness[id] {
			out = append(out, id)
		}
	}

	return out
}

// Snapshot returns a copy of the current ID-to-expert mapping for the given
// IDs, skipping unknown entries. Fan-out paths iterate the snapshot so
// concurrent registry mutations never affect an in-flight query.
func (r *Registry) Snapshot(ids []string) map[string]expert.Expert {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]expert.Expert, len(ids))
	for _, id := range ids {
		if e, ok := r.experts[id]; ok {
			out[id] = e
		}
	}

	return out
}

// Info summarizes the registry state: total experts, per-provider counts and
// the registered IDs.
func (r *Registry) Info() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make(map[string]int)
	for _, e := range r.experts {
		providers[e.Info().Provider]++
	}

	return map[string]any{
		"total_experts": len(r.experts),
		"providers":     providers,
		"expert_ids":    append([]string(nil), r.order...),
	}
}

// invalidateLocked drops the cached liveness sweep. Callers must hold mu.
func (r *Registry) invalidateLocked() {
	r.liveness = nil
	r.livenessAt = time.Time{}
}
