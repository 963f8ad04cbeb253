package resolve

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/path2target/transform-core/internal/core"
)

// fakeProvider serves a fixed candidate table and records every batch it saw.
type fakeProvider struct {
	authority core.Authority
	table     map[string][]core.Candidate
	err       error

	mu      sync.Mutex
	batches [][]string
}

func (p *fakeProvider) Authority() core.Authority { return p.authority }

func (p *fakeProvider) Resolve(ctx context.Context, rawValues []string) (map[string][]core.Candidate, error) {
	p.mu.Lock()
	batch := make([]string, len(rawValues))
	copy(batch, rawValues)
	p.batches = append(p.batches, batch)
	p.mu.Unlock()

	if p.err != nil {
		return nil, p.err
	}
	out := make(map[string][]core.Candidate)
	for _, v := range rawValues {
		if cands, ok := p.table[v]; ok {
			out[v] = cands
		}
	}
	return out, nil
}

func (p *fakeProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.batches)
}

func newTestNormalizer(p Provider, opts Options) (*Normalizer, *Cache) {
	cache := NewCache(128, time.Hour)
	return NewNormalizer(NewRegistry(p), cache, opts), cache
}

func TestNormalizer_Unit_ResolvesAndCaches(t *testing.T) {
	p := &fakeProvider{
		authority: core.AuthorityEnsembl,
		table: map[string][]core.Candidate{
			"BRCA1": {{ID: "ENSG00000012048", Label: "BRCA1", Score: 1.0}},
		},
	}
	n, _ := newTestNormalizer(p, Options{})

	rec, err := n.Normalize(context.Background(), "BRCA1", core.AuthorityEnsembl)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if rec.Status != core.StatusResolved || rec.CanonicalID != "ENSG00000012048" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.EffectiveID() != "ENSG00000012048" {
		t.Fatalf("unexpected effective id: %s", rec.EffectiveID())
	}

	// Second call must come from cache.
	if _, err := n.Normalize(context.Background(), "BRCA1", core.AuthorityEnsembl); err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if p.calls() != 1 {
		t.Fatalf("expected 1 provider call, got %d", p.calls())
	}
}

func TestNormalizer_Unit_NoMatchIsUnresolvedNotError(t *testing.T) {
	p := &fakeProvider{authority: core.AuthorityEnsembl, table: map[string][]core.Candidate{}}
	n, _ := newTestNormalizer(p, Options{})

	rec, err := n.Normalize(context.Background(), "XYZ99", core.AuthorityEnsembl)
	if err != nil {
		t.Fatalf("no-match must not be an error: %v", err)
	}
	if rec.Status != core.StatusUnresolved {
		t.Fatalf("expected unresolved, got %s", rec.Status)
	}
	if rec.EffectiveID() != "XYZ99" {
		t.Fatalf("unresolved record must carry the raw value: %s", rec.EffectiveID())
	}
}

func TestNormalizer_Unit_TiedCandidatesAreAmbiguous(t *testing.T) {
	p := &fakeProvider{
		authority: core.AuthorityEnsembl,
		table: map[string][]core.Candidate{
			"DUP": {
				{ID: "ENSG00000000001", Score: 0.9},
				{ID: "ENSG00000000002", Score: 0.9},
				{ID: "ENSG00000000003", Score: 0.1},
			},
		},
	}
	n, _ := newTestNormalizer(p, Options{})

	rec, err := n.Normalize(context.Background(), "DUP", core.AuthorityEnsembl)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if rec.Status != core.StatusAmbiguous {
		t.Fatalf("expected ambiguous, got %s", rec.Status)
	}
	if rec.CanonicalID != "ENSG00000000001" {
		t.Fatalf("ambiguous record should keep the best guess: %s", rec.CanonicalID)
	}
	if len(rec.Alternates) != 2 {
		t.Fatalf("expected 2 alternates, got %d", len(rec.Alternates))
	}
	if rec.Confirmed() {
		t.Fatal("ambiguous resolution must not be confirmed")
	}
	if rec.EffectiveID() != "DUP" {
		t.Fatalf("ambiguous record must keep the raw value as its effective id: %s", rec.EffectiveID())
	}
}

func TestNormalizer_Unit_ClearWinnerIsResolved(t *testing.T) {
	p := &fakeProvider{
		authority: core.AuthorityEnsembl,
		table: map[string][]core.Candidate{
			"TP53": {
				{ID: "ENSG00000141510", Score: 0.95},
				{ID: "ENSG00000999999", Score: 0.4},
			},
		},
	}
	n, _ := newTestNormalizer(p, Options{})

	rec, err := n.Normalize(context.Background(), "TP53", core.AuthorityEnsembl)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if rec.Status != core.StatusResolved || rec.CanonicalID != "ENSG00000141510" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestNormalizer_Unit_BatchFailureDegradesToUnresolved(t *testing.T) {
	p := &fakeProvider{authority: core.AuthorityEnsembl, err: errors.New("service down")}
	n, _ := newTestNormalizer(p, Options{})

	err := n.ResolveAll(context.Background(), map[core.Authority][]string{
		core.AuthorityEnsembl: {"BRCA1", "TP53"},
	})
	if err != nil {
		t.Fatalf("batch failure must not fail the phase: %v", err)
	}
	for _, raw := range []string{"BRCA1", "TP53"} {
		rec, ok := n.Lookup(core.AuthorityEnsembl, raw)
		if !ok {
			t.Fatalf("expected cached record for %s", raw)
		}
		if rec.Status != core.StatusUnresolved {
			t.Fatalf("%s: expected unresolved, got %s", raw, rec.Status)
		}
	}
}

func TestNormalizer_Unit_ResolveAllDedupesAndBatches(t *testing.T) {
	p := &fakeProvider{
		authority: core.AuthorityEnsembl,
		table: map[string][]core.Candidate{
			"A": {{ID: "ENSG00000000001", Score: 1}},
			"B": {{ID: "ENSG00000000002", Score: 1}},
			"C": {{ID: "ENSG00000000003", Score: 1}},
		},
	}
	n, _ := newTestNormalizer(p, Options{BatchSize: 2, Workers: 1})

	err := n.ResolveAll(context.Background(), map[core.Authority][]string{
		core.AuthorityEnsembl: {"B", "A", "B", "C", "", "A"},
	})
	if err != nil {
		t.Fatalf("ResolveAll failed: %v", err)
	}
	// 3 distinct values at batch size 2 means exactly 2 provider calls, the
	// first over the sorted pair A,B.
	if p.calls() != 2 {
		t.Fatalf("expected 2 batches, got %d", p.calls())
	}
	if got := p.batches[0]; len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Fatalf("unexpected first batch: %v", got)
	}
}

func TestNormalizer_Unit_UnknownAuthorityFailsFast(t *testing.T) {
	n, _ := newTestNormalizer(&fakeProvider{authority: core.AuthorityEnsembl}, Options{})

	if err := n.Check([]core.Authority{core.AuthorityEnsembl}); err != nil {
		t.Fatalf("Check failed for registered authority: %v", err)
	}
	err := n.Check([]core.Authority{core.AuthorityUniProt})
	if !core.IsCode(err, core.CodeConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if _, err := n.Normalize(context.Background(), "x", core.AuthorityUniProt); !core.IsCode(err, core.CodeConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

// cancellingProvider cancels the run when a batch reaches it, then fails the
// batch with the cancellation.
type cancellingProvider struct {
	authority core.Authority
	cancel    context.CancelFunc
}

func (p *cancellingProvider) Authority() core.Authority { return p.authority }

func (p *cancellingProvider) Resolve(ctx context.Context, rawValues []string) (map[string][]core.Candidate, error) {
	p.cancel()
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestNormalizer_Unit_CancellationDrainsInFlightBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := &cancellingProvider{authority: core.AuthorityEnsembl, cancel: cancel}
	n, _ := newTestNormalizer(p, Options{})

	err := n.ResolveAll(ctx, map[core.Authority][]string{
		core.AuthorityEnsembl: {"BRCA1", "TP53"},
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	// The interrupted batch still landed one record per value, so the cache
	// never holds a half-written batch.
	for _, raw := range []string{"BRCA1", "TP53"} {
		rec, ok := n.Lookup(core.AuthorityEnsembl, raw)
		if !ok || rec.Status != core.StatusUnresolved {
			t.Fatalf("%s: expected a drained unresolved record, got %+v", raw, rec)
		}
	}
}

func TestCache_Unit_StaleEntriesServedAsCopies(t *testing.T) {
	cache := NewCache(16, time.Hour)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return base }

	rec := &core.CanonicalIdentifier{
		RawValue:    "BRCA1",
		Authority:   core.AuthorityEnsembl,
		CanonicalID: "ENSG00000012048",
		Status:      core.StatusResolved,
		ResolvedAt:  base,
	}
	cache.Put(rec)

	fresh, ok := cache.Get(core.AuthorityEnsembl, "BRCA1")
	if !ok || fresh.Status != core.StatusResolved {
		t.Fatalf("expected fresh hit, got %+v", fresh)
	}

	cache.now = func() time.Time { return base.Add(2 * time.Hour) }
	stale, ok := cache.Get(core.AuthorityEnsembl, "BRCA1")
	if !ok {
		t.Fatal("stale entry must still be served")
	}
	if stale.Status != core.StatusCachedStale {
		t.Fatalf("expected cachedStale, got %s", stale.Status)
	}
	if stale.CanonicalID != "ENSG00000012048" {
		t.Fatalf("stale copy must keep the resolution: %+v", stale)
	}
	// The stored record itself is never mutated.
	if rec.Status != core.StatusResolved {
		t.Fatalf("stored record was mutated: %s", rec.Status)
	}
}

func TestNormalizer_Unit_StaleEntriesReEnqueued(t *testing.T) {
	p := &fakeProvider{
		authority: core.AuthorityEnsembl,
		table: map[string][]core.Candidate{
			"BRCA1": {{ID: "ENSG00000012048", Score: 1}},
		},
	}
	cache := NewCache(16, time.Hour)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return base.Add(2 * time.Hour) }

	cache.Put(&core.CanonicalIdentifier{
		RawValue:    "BRCA1",
		Authority:   core.AuthorityEnsembl,
		CanonicalID: "ENSG00000012048",
		Status:      core.StatusResolved,
		ResolvedAt:  base, // past the horizon
	})

	n := NewNormalizer(NewRegistry(p), cache, Options{})
	n.now = func() time.Time { return base.Add(2 * time.Hour) }

	err := n.ResolveAll(context.Background(), map[core.Authority][]string{
		core.AuthorityEnsembl: {"BRCA1"},
	})
	if err != nil {
		t.Fatalf("ResolveAll failed: %v", err)
	}
	if p.calls() != 1 {
		t.Fatalf("stale entry should trigger a refresh, got %d calls", p.calls())
	}
	rec, _ := cache.Get(core.AuthorityEnsembl, "BRCA1")
	if rec.Status != core.StatusResolved {
		t.Fatalf("expected refreshed record, got %s", rec.Status)
	}
}

func TestCache_Unit_Invalidate(t *testing.T) {
	cache := NewCache(16, time.Hour)
	cache.Put(&core.CanonicalIdentifier{
		RawValue:   "BRCA1",
		Authority:  core.AuthorityEnsembl,
		Status:     core.StatusResolved,
		ResolvedAt: time.Now(),
	})
	if cache.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", cache.Len())
	}
	cache.Invalidate()
	if cache.Len() != 0 {
		t.Fatalf("expected empty cache, got %d", cache.Len())
	}
	if _, ok := cache.Get(core.AuthorityEnsembl, "BRCA1"); ok {
		t.Fatal("entry survived invalidation")
	}
}
