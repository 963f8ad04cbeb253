// Package profile infers a schema descriptor from a raw tabular source:
// column types, null and cardinality ratios, identifier-authority detection,
// and column-role hints for mapping authors.
package profile

import (
	"strconv"
	"strings"
	"time"

	"github.com/path2target/transform-core/internal/core"
	"github.com/path2target/transform-core/internal/source"
)

// Options tunes the profiling pass.
type Options struct {
	// SampleRows bounds the number of rows inspected for type inference and
	// cardinality. Zero means DefaultSampleRows.
	SampleRows int

	// MatchFraction is the minimum fraction of non-null sampled values a type
	// rule must match to win. Zero means DefaultMatchFraction.
	MatchFraction float64

	// MaxSampleValues bounds the per-column sample values kept on the
	// descriptor. Zero means DefaultMaxSampleValues.
	MaxSampleValues int
}

const (
	DefaultSampleRows      = 1000
	DefaultMatchFraction   = 0.95
	DefaultMaxSampleValues = 5
)

func (o Options) withDefaults() Options {
	if o.SampleRows <= 0 {
		o.SampleRows = DefaultSampleRows
	}
	if o.MatchFraction <= 0 {
		o.MatchFraction = DefaultMatchFraction
	}
	if o.MaxSampleValues <= 0 {
		o.MaxSampleValues = DefaultMaxSampleValues
	}
	return o
}

// Profile inspects src and produces its schema descriptor. Empty or
// unreadable sources surface as a profiling error from the source layer;
// malformed rows never fail the pass.
func Profile(src source.Source, opts Options) (*core.SchemaDescriptor, error) {
	opts = opts.withDefaults()

	it, err := src.Rows()
	if err != nil {
		return nil, err
	}
	defer it.Close()

	columns := src.Columns()
	stats := make([]*columnStats, len(columns))
	for i, name := range columns {
		stats[i] = newColumnStats(name, i, opts.MaxSampleValues)
	}

	sampled := 0
	for it.Next() && sampled < opts.SampleRows {
		row := it.Value()
		for i, name := range columns {
			stats[i].observe(row.Values[name])
		}
		sampled++
	}
	if err := it.Err(); err != nil {
		return nil, core.Errorf(core.CodeProfiling, "scan %s: %w", src.ID(), err)
	}
	if sampled == 0 {
		return nil, core.Errorf(core.CodeProfiling, "source %s has no rows to profile", src.ID())
	}

	desc := &core.SchemaDescriptor{
		SourceID:      src.ID(),
		RowsSampled:   sampled,
		MalformedRows: src.Malformed(),
	}
	for _, cs := range stats {
		desc.Columns = append(desc.Columns, cs.finish(sampled, opts.MatchFraction))
	}
	desc.Hints = nameHints(columns)
	return desc, nil
}

// =============================================================================
// PER-COLUMN STATISTICS
// =============================================================================

type columnStats struct {
	name       string
	position   int
	nulls      int
	nonNull    int
	distinct   map[string]struct{}
	samples    []string
	maxSamples int

	// per-type match counters over non-null values
	identifier int
	boolean    int
	integer    int
	float      int
	date       int

	// majority authority among identifier matches
	authorities map[core.Authority]int
}

func newColumnStats(name string, position, maxSamples int) *columnStats {
	return &columnStats{
		name:        name,
		position:    position,
		distinct:    make(map[string]struct{}),
		maxSamples:  maxSamples,
		authorities: make(map[core.Authority]int),
	}
}

func (cs *columnStats) observe(raw string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		cs.nulls++
		return
	}
	cs.nonNull++
	cs.distinct[v] = struct{}{}
	if len(cs.samples) < cs.maxSamples {
		cs.samples = append(cs.samples, v)
	}

	if auth := core.DetectAuthority(v); auth != "" {
		cs.identifier++
		cs.authorities[auth]++
	}
	if isBool(v) {
		cs.boolean++
	}
	if _, err := strconv.ParseInt(v, 10, 64); err == nil {
		cs.integer++
	}
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		cs.float++
	}
	if isDate(v) {
		cs.date++
	}
}

// finish applies the type precedence: identifier > boolean > integer > float
// > date > string. The first rule matching at least the configured fraction
// of non-null values wins.
func (cs *columnStats) finish(sampled int, fraction float64) *core.ColumnProfile {
	p := &core.ColumnProfile{
		Name:         cs.name,
		Position:     cs.position,
		InferredType: core.TypeString,
		NullRatio:    float64(cs.nulls) / float64(sampled),
		SampleValues: cs.samples,
	}
	if cs.nonNull > 0 {
		p.DistinctRatio = float64(len(cs.distinct)) / float64(cs.nonNull)
		threshold := int(fraction*float64(cs.nonNull) + 0.5)
		if threshold < 1 {
			threshold = 1
		}
		switch {
		case cs.identifier >= threshold:
			p.InferredType = core.TypeIdentifier
			p.Authority = cs.topAuthority()
		case cs.boolean >= threshold:
			p.InferredType = core.TypeBoolean
		case cs.integer >= threshold:
			p.InferredType = core.TypeInteger
		case cs.float >= threshold:
			p.InferredType = core.TypeFloat
		case cs.date >= threshold:
			p.InferredType = core.TypeDate
		}
	}
	return p
}

func (cs *columnStats) topAuthority() core.Authority {
	var best core.Authority
	bestN := 0
	for _, auth := range core.KnownAuthorities() {
		if n := cs.authorities[auth]; n > bestN {
			best, bestN = auth, n
		}
	}
	return best
}

// =============================================================================
// VALUE CLASSIFIERS
// =============================================================================

func isBool(v string) bool {
	switch strings.ToLower(v) {
	case "true", "false", "t", "f", "yes", "no":
		return true
	}
	return false
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"01/02/2006",
}

func isDate(v string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, v); err == nil {
			return true
		}
	}
	return false
}

// =============================================================================
// COLUMN-ROLE HINTS
// =============================================================================

var (
	idTokens       = []string{"id", "identifier", "accession", "iri", "curie"}
	labelTokens    = []string{"name", "label", "title", "description"}
	relationTokens = []string{"predicate", "relation", "edge", "type"}
)

func nameHints(columns []string) core.ColumnHints {
	var hints core.ColumnHints
	for _, col := range columns {
		lower := strings.ToLower(col)
		if containsAny(lower, idTokens) {
			hints.IDColumns = append(hints.IDColumns, col)
		}
		if containsAny(lower, labelTokens) {
			hints.LabelColumns = append(hints.LabelColumns, col)
		}
		if containsAny(lower, relationTokens) {
			hints.RelationColumns = append(hints.RelationColumns, col)
		}
	}
	return hints
}

func containsAny(s string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}
