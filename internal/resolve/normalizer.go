package resolve

import (
	"context"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/path2target/transform-core/internal/core"
)

const (
	// DefaultBatchSize bounds how many raw values go to a provider per call.
	DefaultBatchSize = 100

	// DefaultWorkers bounds concurrent batches per authority.
	DefaultWorkers = 4

	// scoreEpsilon is the tie window for equally-ranked candidates.
	scoreEpsilon = 1e-9
)

// Options tunes the normalizer.
type Options struct {
	BatchSize int
	Workers   int
}

// Normalizer resolves raw identifiers through the authority registry,
// populating the injected cache. Resolution failure is never fatal: exhausted
// retries produce unresolved records, not errors.
type Normalizer struct {
	registry  *Registry
	cache     *Cache
	batchSize int
	workers   int
	now       func() time.Time
}

// NewNormalizer creates a normalizer over the given registry and cache.
func NewNormalizer(registry *Registry, cache *Cache, opts Options) *Normalizer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	return &Normalizer{
		registry:  registry,
		cache:     cache,
		batchSize: opts.BatchSize,
		workers:   opts.Workers,
		now:       time.Now,
	}
}

// Check fails fast when any declared authority has no provider. Runs before
// any row processing.
func (n *Normalizer) Check(authorities []core.Authority) error {
	return n.registry.Check(authorities)
}

// ResolveAll is the bounded-concurrency resolution phase: it dedupes pending
// values per authority, skips fresh cache hits, re-enqueues stale ones, and
// dispatches batches to one worker pool per authority. After it returns the
// cache holds a record for every requested (authority, rawValue) pair.
func (n *Normalizer) ResolveAll(ctx context.Context, pending map[core.Authority][]string) error {
	for authority, rawValues := range pending {
		provider, ok := n.registry.Get(authority)
		if !ok {
			return core.Errorf(core.CodeConfiguration, "no resolution provider registered for authority %q", authority)
		}

		todo := n.dedupePending(authority, rawValues)
		if len(todo) == 0 {
			continue
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(n.workers)
		for start := 0; start < len(todo); start += n.batchSize {
			end := start + n.batchSize
			if end > len(todo) {
				end = len(todo)
			}
			batch := todo[start:end]
			g.Go(func() error {
				n.resolveBatch(gctx, provider, authority, batch)
				return nil
			})
		}
		// Workers never return errors (failures degrade to unresolved
		// records), so Wait only propagates context cancellation after
		// in-flight provider calls drain.
		if err := g.Wait(); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

// dedupePending returns the distinct values that still need a provider call:
// cache misses plus stale hits. Order is stabilized so batch composition is
// deterministic.
func (n *Normalizer) dedupePending(authority core.Authority, rawValues []string) []string {
	seen := make(map[string]bool, len(rawValues))
	var todo []string
	for _, v := range rawValues {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		rec, ok := n.cache.Get(authority, v)
		if ok && rec.Status != core.StatusCachedStale {
			continue
		}
		todo = append(todo, v)
	}
	sort.Strings(todo)
	return todo
}

// resolveBatch calls the provider once for a batch and caches one record per
// value. A batch-level provider failure (after the transport's retries)
// downgrades every value in the batch to unresolved.
func (n *Normalizer) resolveBatch(ctx context.Context, provider Provider, authority core.Authority, batch []string) {
	candidates, err := provider.Resolve(ctx, batch)
	for _, raw := range batch {
		var rec *core.CanonicalIdentifier
		if err != nil {
			rec = &core.CanonicalIdentifier{
				RawValue:   raw,
				Authority:  authority,
				Status:     core.StatusUnresolved,
				ResolvedAt: n.now(),
			}
		} else {
			rec = classify(raw, authority, candidates[raw], n.now())
		}
		n.cache.Put(rec)
	}
}

// Normalize resolves a single raw value, serving from cache when possible.
// The only error is an unknown authority; resolution failure comes back as
// an unresolved record.
func (n *Normalizer) Normalize(ctx context.Context, rawValue string, authority core.Authority) (*core.CanonicalIdentifier, error) {
	provider, ok := n.registry.Get(authority)
	if !ok {
		return nil, core.Errorf(core.CodeConfiguration, "no resolution provider registered for authority %q", authority)
	}
	if rec, ok := n.cache.Get(authority, rawValue); ok {
		return rec, nil
	}
	n.resolveBatch(ctx, provider, authority, []string{rawValue})
	rec, _ := n.cache.Get(authority, rawValue)
	return rec, nil
}

// Lookup is the read-only cache access used by the materialization phase.
func (n *Normalizer) Lookup(authority core.Authority, rawValue string) (*core.CanonicalIdentifier, bool) {
	return n.cache.Get(authority, rawValue)
}

// classify turns a provider candidate list into a resolution record:
// no candidates is unresolved, a clear winner is resolved, and several
// equally-ranked top candidates are ambiguous with the best guess kept
// alongside the raw value.
func classify(raw string, authority core.Authority, candidates []core.Candidate, at time.Time) *core.CanonicalIdentifier {
	rec := &core.CanonicalIdentifier{
		RawValue:   raw,
		Authority:  authority,
		ResolvedAt: at,
	}
	if len(candidates) == 0 {
		rec.Status = core.StatusUnresolved
		return rec
	}

	ranked := make([]core.Candidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

	top := ranked[0]
	rec.CanonicalID = top.ID
	rec.Label = top.Label
	rec.Confidence = top.Score
	rec.Status = core.StatusResolved

	if len(ranked) > 1 && math.Abs(ranked[0].Score-ranked[1].Score) < scoreEpsilon {
		rec.Status = core.StatusAmbiguous
		rec.Alternates = ranked[1:]
	}
	return rec
}
