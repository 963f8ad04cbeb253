// Package engine wires the pipeline: profiler, mapping resolver, identifier
// normalizer, graph builder, validator, exporter. One Run per invocation;
// the schema and identifier caches outlive runs and invalidate on source or
// config change.
package engine

import (
	"context"
	"fmt"
	"sync"

	rdf "github.com/geoknoesis/rdf-go/rdf"
	"github.com/google/uuid"

	"github.com/path2target/transform-core/internal/build"
	"github.com/path2target/transform-core/internal/config"
	"github.com/path2target/transform-core/internal/core"
	"github.com/path2target/transform-core/internal/export"
	"github.com/path2target/transform-core/internal/mapping"
	"github.com/path2target/transform-core/internal/profile"
	"github.com/path2target/transform-core/internal/resolve"
	"github.com/path2target/transform-core/internal/source"
	"github.com/path2target/transform-core/internal/validate"
)

// RunRequest describes one transformation invocation.
type RunRequest struct {
	Source  source.Source
	Mapping *mapping.Config

	// Shapes is the externally supplied constraint set; nil selects the
	// built-in Biolink skeleton.
	Shapes *validate.ShapeSet

	// Formats defaults to RDF, JSON-LD, and TSV.
	Formats []export.Format

	// SinkID selects the artifact destination; empty uses the engine's
	// configured sink.
	SinkID string

	// AllowExportWithErrors exports despite error-severity findings and
	// leaves the report as a sidecar instead of blocking.
	AllowExportWithErrors bool
}

// RunResult is everything a run surfaces to the calling layer. Reports are
// structured and machine-readable; rendering them is the caller's job.
type RunResult struct {
	RunID  string
	Schema *core.SchemaDescriptor
	Graph  *core.Graph

	// PreReport and PostReports stay distinct; they are never merged.
	PreReport   *core.Report
	PostReports map[export.Format]*core.Report

	// BuildWarnings are row-level conditions accumulated by the builder.
	BuildWarnings []core.Finding

	Artifacts    []*export.Artifact
	ArtifactRefs []string

	// ExportBlocked is set when error findings blocked export and the run
	// was not configured to export with a sidecar report.
	ExportBlocked bool

	Stats map[string]any
}

// Engine owns the long-lived collaborators: the provider registry, the
// identifier cache, the schema cache, and the artifact sinks.
type Engine struct {
	cfg       *config.EngineConfig
	providers *resolve.Registry
	cache     *resolve.Cache
	sinks     *export.SinkRegistry

	mu              sync.Mutex
	schemaCache     map[string]*core.SchemaDescriptor
	lastFingerprint string
}

// New creates an engine. Nil arguments select the defaults: the startup
// provider table, a fresh cache, and a memory-only sink registry.
func New(cfg *config.EngineConfig, providers *resolve.Registry, cache *resolve.Cache, sinks *export.SinkRegistry) *Engine {
	if cfg == nil {
		cfg = config.Load()
	}
	if providers == nil {
		providers = resolve.DefaultRegistry()
	}
	if cache == nil {
		cache = resolve.NewCache(cfg.CacheSize, cfg.StalenessHorizon)
	}
	if sinks == nil {
		sinks = export.NewSinkRegistry(export.NewMemorySink(), export.NewFileSink(cfg.ArtifactDir))
	}
	return &Engine{
		cfg:         cfg,
		providers:   providers,
		cache:       cache,
		sinks:       sinks,
		schemaCache: make(map[string]*core.SchemaDescriptor),
	}
}

// Run executes the full pipeline. Fatal errors (profiling, configuration,
// mapping, build) abort with context; everything else accumulates into the
// result's reports.
func (e *Engine) Run(ctx context.Context, req *RunRequest) (*RunResult, error) {
	if req == nil || req.Source == nil || req.Mapping == nil {
		return nil, core.Errorf(core.CodeConfiguration, "run request needs a source and a mapping config")
	}

	result := &RunResult{
		RunID:       "run-" + uuid.New().String(),
		PostReports: make(map[export.Format]*core.Report),
		Stats:       make(map[string]any),
	}

	e.invalidateOnChange(req)

	// Profiling. Descriptors are cached by source identity.
	schema, err := e.profileCached(req.Source)
	if err != nil {
		return nil, err
	}
	result.Schema = schema
	result.Stats["columns"] = len(schema.Columns)
	result.Stats["malformedRows"] = schema.MalformedRows

	// Mapping resolution: pure, deterministic, fatal on mismatch.
	plan, err := mapping.Resolve(schema, req.Mapping)
	if err != nil {
		return nil, err
	}

	// Authority check runs before any row work.
	normalizer := resolve.NewNormalizer(e.providers, e.cache, resolve.Options{
		BatchSize: e.cfg.BatchSize,
		Workers:   e.cfg.WorkersPerAuthority,
	})
	if err := normalizer.Check(declaredAuthorities(plan)); err != nil {
		return nil, err
	}

	// Build.
	builder := build.New(normalizer, build.Options{Workers: e.cfg.BuildWorkers})
	buildResult, err := builder.Build(ctx, req.Source, plan, result.RunID)
	if err != nil {
		return nil, err
	}
	result.Graph = buildResult.Graph
	result.BuildWarnings = buildResult.Warnings
	result.Stats["rows"] = buildResult.RowsProcessed
	result.Stats["nodes"] = buildResult.Graph.NodeCount()
	result.Stats["edges"] = buildResult.Graph.EdgeCount()
	result.Stats["identifiersResolved"] = buildResult.PairsResolved

	if err := ctx.Err(); err != nil {
		return result, err
	}

	// Pre-export structural pass.
	shapes := req.Shapes
	if shapes == nil {
		shapes = validate.BiolinkSkeleton()
	}
	result.PreReport = validate.PreExport(result.Graph, shapes)

	allowErrors := req.AllowExportWithErrors || e.cfg.AllowExportWithErrors
	if result.PreReport.HasErrors() && !allowErrors {
		result.ExportBlocked = true
		return result, nil
	}

	// Export + post-export shape pass.
	sink, err := e.selectSink(req.SinkID)
	if err != nil {
		return nil, core.NewError(core.CodeExport, err)
	}

	formats := req.Formats
	if len(formats) == 0 {
		formats = []export.Format{export.FormatRDF, export.FormatJSONLD, export.FormatTSV}
	}
	for _, format := range formats {
		artifact, err := export.Export(result.Graph, format, export.Options{BaseIRI: plan.BaseIRI})
		if err != nil {
			return nil, err
		}
		ref, err := sink.Put(ctx, result.RunID, artifact)
		if err != nil {
			return nil, err
		}
		result.Artifacts = append(result.Artifacts, artifact)
		result.ArtifactRefs = append(result.ArtifactRefs, ref)

		if rdfFormat, ok := serializedFormat(format); ok {
			result.PostReports[format] = validate.PostExport(result.RunID, artifact.Data, rdfFormat, shapes)
		}
	}
	return result, nil
}

func (e *Engine) profileCached(src source.Source) (*core.SchemaDescriptor, error) {
	e.mu.Lock()
	cached, ok := e.schemaCache[src.ID()]
	e.mu.Unlock()
	if ok {
		return cached, nil
	}
	schema, err := profile.Profile(src, profile.Options{
		SampleRows:    e.cfg.SampleRows,
		MatchFraction: e.cfg.MatchFraction,
	})
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.schemaCache[src.ID()] = schema
	e.mu.Unlock()
	return schema, nil
}

// invalidateOnChange drops the schema and identifier caches when the source
// identity or mapping config fingerprint changed since the previous run.
func (e *Engine) invalidateOnChange(req *RunRequest) {
	fingerprint := req.Source.ID() + "|" + fmt.Sprintf("%+v", req.Mapping)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastFingerprint != "" && e.lastFingerprint != fingerprint {
		e.schemaCache = make(map[string]*core.SchemaDescriptor)
		e.cache.Invalidate()
	}
	e.lastFingerprint = fingerprint
}

func (e *Engine) selectSink(preferred string) (export.Sink, error) {
	if preferred == "" {
		preferred = e.cfg.SinkID
	}
	return e.sinks.SelectSink(preferred)
}

func declaredAuthorities(plan *mapping.Plan) []core.Authority {
	seen := make(map[core.Authority]bool)
	var out []core.Authority
	for _, b := range plan.Bindings {
		if b.NeedsResolution && !seen[b.Authority] {
			seen[b.Authority] = true
			out = append(out, b.Authority)
		}
	}
	return out
}

func serializedFormat(format export.Format) (rdf.Format, bool) {
	switch format {
	case export.FormatRDF:
		return rdf.FormatTurtle, true
	case export.FormatJSONLD:
		return rdf.FormatJSONLD, true
	}
	var zero rdf.Format
	return zero, false
}
