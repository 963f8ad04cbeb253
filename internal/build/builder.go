// Package build materializes the intermediate graph from raw rows and a
// binding plan, consulting the identifier normalizer for normalizeIdentifier
// bindings.
//
// The build runs in three phases: a parallel collection phase gathering the
// distinct (authority, rawValue) pairs that need resolution, a
// bounded-concurrency resolution phase populating the identifier cache, and
// a parallel materialization phase consuming the now-populated cache. The
// cache is the only shared mutable state, written in the resolution phase
// and read-only afterward. Merge order is keyed by original row index, never
// by completion order, so shuffled row arrival yields an identical graph.
package build

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/path2target/transform-core/internal/core"
	"github.com/path2target/transform-core/internal/mapping"
	"github.com/path2target/transform-core/internal/resolve"
	"github.com/path2target/transform-core/internal/source"
	"golang.org/x/sync/errgroup"
)

// Options tunes the builder.
type Options struct {
	// Workers bounds the parallel collection and materialization phases.
	// Zero means GOMAXPROCS.
	Workers int
}

// Result is the outcome of one build.
type Result struct {
	Graph *core.Graph

	// Warnings accumulates non-fatal row-level conditions (failed casts,
	// rows that produced no node). A single bad row never aborts the batch.
	Warnings []core.Finding

	// Stats counters for the run state.
	RowsProcessed int
	NodesMerged   int
	EdgesEmitted  int
	PairsResolved int
}

// Builder materializes graphs. Safe for one run at a time; create one per
// transformation run.
type Builder struct {
	normalizer *resolve.Normalizer
	workers    int
}

// New creates a builder over the given normalizer.
func New(normalizer *resolve.Normalizer, opts Options) *Builder {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Builder{normalizer: normalizer, workers: workers}
}

// Build runs the three build phases and the dangling-edge check. Fatal
// failures are dangling edges (all offenders collected) and cancellation;
// identifier resolution failures degrade to annotated unresolved nodes.
func (b *Builder) Build(ctx context.Context, src source.Source, plan *mapping.Plan, runID string) (*Result, error) {
	rows, err := readAll(src)
	if err != nil {
		return nil, err
	}

	// Phase (a): collect distinct (authority, rawValue) pairs.
	pending, err := b.collectPending(ctx, rows, plan)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Phase (b): bounded-concurrency resolution populating the cache.
	pairs := 0
	for _, vals := range pending {
		pairs += len(vals)
	}
	if err := b.normalizer.ResolveAll(ctx, pending); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Phase (c): parallel materialization, sequential reduce by row index.
	drafts, err := b.materialize(ctx, rows, plan)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := b.reduce(drafts, plan, runID)
	result.RowsProcessed = len(rows)
	result.PairsResolved = pairs

	if dangling := result.Graph.DanglingEdges(); len(dangling) > 0 {
		refs := make([]string, len(dangling))
		for i, e := range dangling {
			refs[i] = e.Key()
		}
		return nil, &core.Error{
			Code:    core.CodeBuild,
			Err:     fmt.Errorf("dangling edges: %s", strings.Join(refs, ", ")),
			Details: map[string]any{"edges": refs},
		}
	}
	return result, nil
}

func readAll(src source.Source) ([]source.Row, error) {
	it, err := src.Rows()
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var rows []source.Row
	for it.Next() {
		rows = append(rows, it.Value())
	}
	if err := it.Err(); err != nil {
		return nil, core.Errorf(core.CodeBuild, "read rows of %s: %w", src.ID(), err)
	}
	return rows, nil
}

// =============================================================================
// PHASE (a): COLLECTION
// =============================================================================

// collectPending gathers the distinct identifier values each authority must
// resolve, scanning row chunks in parallel and merging per-chunk sets.
func (b *Builder) collectPending(ctx context.Context, rows []source.Row, plan *mapping.Plan) (map[core.Authority][]string, error) {
	var bindings []*mapping.Binding
	for _, bind := range plan.Bindings {
		if bind.NeedsResolution {
			bindings = append(bindings, bind)
		}
	}
	if len(bindings) == 0 {
		return map[core.Authority][]string{}, nil
	}

	var mu sync.Mutex
	merged := make(map[core.Authority]map[string]bool)

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for _, chunk := range chunks(rows, b.workers) {
		g.Go(func() error {
			local := make(map[core.Authority]map[string]bool)
			for _, row := range chunk {
				for _, bind := range bindings {
					v, err := bind.Apply(row)
					if err != nil {
						continue // surfaces as a materialization warning
					}
					s, _ := v.(string)
					if s == "" {
						continue
					}
					if local[bind.Authority] == nil {
						local[bind.Authority] = make(map[string]bool)
					}
					local[bind.Authority][s] = true
				}
			}
			mu.Lock()
			for auth, vals := range local {
				if merged[auth] == nil {
					merged[auth] = make(map[string]bool)
				}
				for v := range vals {
					merged[auth][v] = true
				}
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[core.Authority][]string, len(merged))
	for auth, vals := range merged {
		list := make([]string, 0, len(vals))
		for v := range vals {
			list = append(list, v)
		}
		sort.Strings(list)
		out[auth] = list
	}
	return out, nil
}

// =============================================================================
// PHASE (c): MATERIALIZATION
// =============================================================================

// propWrite is one pending property write from a binding.
type propWrite struct {
	predicate string
	value     any
	ruleID    string
	merge     mapping.MergeStrategy
}

// nodeDraft is a per-row, per-class node before merging.
type nodeDraft struct {
	class      string
	id         string
	resolution *core.CanonicalIdentifier
	writes     []propWrite
}

// rowDraft holds one row's materialization keyed by its original index.
type rowDraft struct {
	index    int
	nodes    []*nodeDraft
	edges    []*core.GraphEdge
	warnings []core.Finding
}

func (b *Builder) materialize(ctx context.Context, rows []source.Row, plan *mapping.Plan) ([]*rowDraft, error) {
	drafts := make([]*rowDraft, len(rows))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i := range rows {
		g.Go(func() error {
			drafts[i] = b.materializeRow(rows[i], plan)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Reduce order is the original row sequence, not completion order.
	sort.Slice(drafts, func(i, j int) bool { return drafts[i].index < drafts[j].index })
	return drafts, nil
}

func (b *Builder) materializeRow(row source.Row, plan *mapping.Plan) *rowDraft {
	draft := &rowDraft{index: row.Index}
	byClass := make(map[string]*nodeDraft)

	node := func(class string) *nodeDraft {
		if n, ok := byClass[class]; ok {
			return n
		}
		n := &nodeDraft{class: class}
		byClass[class] = n
		draft.nodes = append(draft.nodes, n)
		return n
	}

	for _, bind := range plan.Bindings {
		v, err := bind.Apply(row)
		if err != nil {
			draft.warnings = append(draft.warnings, core.Finding{
				Severity:  core.SeverityWarning,
				Scope:     core.ScopeNode,
				TargetRef: fmt.Sprintf("row %d", row.Index),
				Message:   fmt.Sprintf("transform failed: %v", err),
				RuleID:    bind.RuleID,
			})
			continue
		}

		n := node(bind.Rule.TargetClass)
		if bind.IsNodeID {
			raw, _ := v.(string)
			if bind.NeedsResolution && raw != "" {
				// Cache is fully populated by phase (b); the status is
				// annotated on the node, never silently substituted.
				if rec, ok := b.normalizer.Lookup(bind.Authority, raw); ok {
					n.resolution = rec
					n.id = rec.EffectiveID()
				} else {
					n.id = raw
				}
			} else {
				n.id = raw
			}
			if n.id != "" {
				n.writes = append(n.writes, propWrite{
					predicate: mapping.IDPredicate,
					value:     n.id,
					ruleID:    bind.RuleID,
					merge:     bind.Rule.Merge,
				})
			} else if bind.Rule.Required {
				draft.warnings = append(draft.warnings, requiredWarning(row.Index, bind))
			}
			continue
		}
		if v == nil {
			if bind.Rule.Required {
				draft.warnings = append(draft.warnings, requiredWarning(row.Index, bind))
			}
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			if bind.Rule.Required {
				draft.warnings = append(draft.warnings, requiredWarning(row.Index, bind))
			}
			continue
		}
		n.writes = append(n.writes, propWrite{
			predicate: bind.Rule.TargetPredicate,
			value:     v,
			ruleID:    bind.RuleID,
			merge:     bind.Rule.Merge,
		})
	}

	// Nodes with no identity get a deterministic local id so unchanged input
	// re-exports byte-identically.
	for _, n := range draft.nodes {
		if n.id == "" {
			if len(n.writes) == 0 {
				continue
			}
			n.id = fmt.Sprintf("_:%s:%d", n.class, row.Index)
		}
	}

	for _, eb := range plan.Edges {
		edge := b.materializeEdge(row, plan, eb, byClass)
		if edge != nil {
			draft.edges = append(draft.edges, edge)
		}
	}
	return draft
}

// requiredWarning flags a required rule whose cell produced no value. The
// node still materializes; the shape check reports the missing property at
// validation time.
func requiredWarning(rowIndex int, bind *mapping.Binding) core.Finding {
	return core.Finding{
		Severity:  core.SeverityWarning,
		Scope:     core.ScopeNode,
		TargetRef: fmt.Sprintf("row %d", rowIndex),
		Message: fmt.Sprintf("required rule produced no value for %s.%s",
			bind.Rule.TargetClass, bind.Rule.TargetPredicate),
		RuleID: bind.RuleID,
	}
}

// materializeEdge produces one edge for a row, or nil when either endpoint
// cell is empty. Endpoint ids go through the same resolution records that
// keyed the nodes; explicit field overrides are taken verbatim, so an
// override pointing at values that never become nodes dangles by design.
func (b *Builder) materializeEdge(row source.Row, plan *mapping.Plan, eb *mapping.EdgeBinding, byClass map[string]*nodeDraft) *core.GraphEdge {
	subjectID := b.endpointID(row, plan, eb.Rule.SubjectClass, eb.SubjectField, eb.SubjectOverride, byClass)
	objectID := b.endpointID(row, plan, eb.Rule.ObjectClass, eb.ObjectField, eb.ObjectOverride, byClass)
	if subjectID == "" || objectID == "" {
		return nil
	}

	predicate := eb.Rule.Predicate
	if eb.PredicateField != "" {
		predicate = strings.TrimSpace(row.Values[eb.PredicateField])
	}
	if predicate == "" {
		return nil
	}

	return &core.GraphEdge{
		SubjectID: subjectID,
		Predicate: predicate,
		ObjectID:  objectID,
		Row:       row.Index,
	}
}

func (b *Builder) endpointID(row source.Row, plan *mapping.Plan, class, field string, override bool, byClass map[string]*nodeDraft) string {
	if !override {
		if n, ok := byClass[class]; ok {
			return n.id
		}
	}
	raw := strings.TrimSpace(row.Values[field])
	if raw == "" || override {
		return raw
	}
	if idb := plan.IDBinding(class); idb != nil && idb.NeedsResolution {
		if rec, ok := b.normalizer.Lookup(idb.Authority, raw); ok {
			return rec.EffectiveID()
		}
	}
	return raw
}

// =============================================================================
// SEQUENTIAL REDUCE
// =============================================================================

// reduce folds row drafts into the graph in original row order. Node-id
// collisions deep-merge properties, last writer wins per property, and every
// write lands on the provenance trail.
func (b *Builder) reduce(drafts []*rowDraft, plan *mapping.Plan, runID string) *Result {
	result := &Result{Graph: core.NewGraph(runID, plan.Root)}

	for _, draft := range drafts {
		result.Warnings = append(result.Warnings, draft.warnings...)

		for _, nd := range draft.nodes {
			if nd.id == "" {
				continue
			}
			existing := result.Graph.Node(nd.id)
			if existing == nil {
				existing = &core.GraphNode{
					ID:         nd.id,
					Type:       nd.class,
					Properties: make(map[string]any),
					Provenance: make(map[string][]core.PropertyWrite),
				}
				result.Graph.PutNode(existing)
				result.NodesMerged++
			} else if existing.Type != nd.class {
				// Same canonical id from two classes: first class wins, the
				// conflict is annotated for the validator.
				if existing.Annotations == nil {
					existing.Annotations = make(map[string]any)
				}
				existing.Annotations["typeConflict"] = nd.class
			}

			if nd.resolution != nil {
				existing.Resolution = nd.resolution
			}

			for _, w := range nd.writes {
				trail := existing.Provenance[w.predicate]
				_, present := existing.Properties[w.predicate]
				if w.merge == mapping.MergeFirstWins && present {
					// Losing write still lands on the trail.
					existing.Provenance[w.predicate] = append(trail, core.PropertyWrite{
						Row: draft.index, Rule: w.ruleID, Value: w.value,
					})
					continue
				}
				existing.Properties[w.predicate] = w.value
				existing.Provenance[w.predicate] = append(trail, core.PropertyWrite{
					Row: draft.index, Rule: w.ruleID, Value: w.value,
				})
			}
		}

		for _, e := range draft.edges {
			result.Graph.AddEdge(e)
			result.EdgesEmitted++
		}
	}
	return result
}

func chunks(rows []source.Row, n int) [][]source.Row {
	if n <= 1 || len(rows) <= n {
		return [][]source.Row{rows}
	}
	size := (len(rows) + n - 1) / n
	var out [][]source.Row
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, rows[start:end])
	}
	return out
}
