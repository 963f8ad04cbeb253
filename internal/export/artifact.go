// Package export serializes a validated intermediate graph into byte-stable
// artifacts (RDF, JSON-LD, TSV) and writes them through pluggable sinks.
// Format grammars are delegated to the external codec; this package owns
// only the deterministic node/edge ordering and the sink plumbing.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/path2target/transform-core/internal/core"
)

// Format selects an export serialization.
type Format string

const (
	FormatRDF    Format = "rdf"
	FormatJSONLD Format = "jsonld"
	FormatTSV    Format = "tsv"
)

// Artifact is one serialized export. Byte-identical across reruns on
// unchanged input, config, and provider responses.
type Artifact struct {
	Format Format
	// Name is the primary file name (export.ttl, export.jsonld, nodes.tsv).
	Name string
	Data []byte
	// Aux holds secondary files; the TSV export carries edges.tsv here.
	Aux map[string][]byte
}

// Files returns every file of the artifact in stable name order.
func (a *Artifact) Files() map[string][]byte {
	out := map[string][]byte{a.Name: a.Data}
	for name, data := range a.Aux {
		out[name] = data
	}
	return out
}

// Sink is a pluggable artifact destination.
type Sink interface {
	ID() string
	// Put writes all artifact files under the run's namespace and returns an
	// opaque reference to the written location.
	Put(ctx context.Context, runID string, artifact *Artifact) (string, error)
}

// SinkRegistry holds available sinks for selection.
type SinkRegistry struct {
	mu    sync.RWMutex
	sinks map[string]Sink
}

// NewSinkRegistry builds a registry with optional initial sinks.
func NewSinkRegistry(sinks ...Sink) *SinkRegistry {
	reg := &SinkRegistry{sinks: make(map[string]Sink)}
	for _, s := range sinks {
		reg.Register(s)
	}
	return reg
}

// Register adds or replaces a sink by ID.
func (r *SinkRegistry) Register(s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[s.ID()] = s
}

// Get returns a sink by ID.
func (r *SinkRegistry) Get(id string) (Sink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sinks[id]
	return s, ok
}

// =============================================================================
// MEMORY SINK
// =============================================================================

// MemorySink keeps artifacts in memory; the test and preview destination.
type MemorySink struct {
	mu    sync.Mutex
	files map[string][]byte // "<runID>/<name>" -> data
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{files: make(map[string][]byte)}
}

// ID implements Sink.
func (s *MemorySink) ID() string { return "memory" }

// Put implements Sink.
func (s *MemorySink) Put(_ context.Context, runID string, artifact *Artifact) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, data := range artifact.Files() {
		s.files[runID+"/"+name] = data
	}
	return "memory:" + runID, nil
}

// Get returns a stored file.
func (s *MemorySink) Get(runID, name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[runID+"/"+name]
	return data, ok
}

// Names lists stored file keys, sorted.
func (s *MemorySink) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.files))
	for k := range s.files {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// =============================================================================
// FILESYSTEM SINK
// =============================================================================

// FileSink writes artifacts under a base directory, one subdirectory per run.
type FileSink struct {
	baseDir string
}

// NewFileSink creates a filesystem sink rooted at baseDir.
func NewFileSink(baseDir string) *FileSink {
	return &FileSink{baseDir: baseDir}
}

// ID implements Sink.
func (s *FileSink) ID() string { return "file" }

// Put implements Sink.
func (s *FileSink) Put(_ context.Context, runID string, artifact *Artifact) (string, error) {
	dir := filepath.Join(s.baseDir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", core.Errorf(core.CodeExport, "create artifact dir %s: %w", dir, err)
	}
	for name, data := range artifact.Files() {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return "", core.Errorf(core.CodeExport, "write artifact %s: %w", path, err)
		}
	}
	return "file:" + dir, nil
}

var (
	_ Sink = (*MemorySink)(nil)
	_ Sink = (*FileSink)(nil)
)

// SelectSink returns the preferred sink, falling back to memory.
func (r *SinkRegistry) SelectSink(preferred string) (Sink, error) {
	if preferred != "" {
		if s, ok := r.Get(preferred); ok {
			return s, nil
		}
		return nil, fmt.Errorf("unknown artifact sink %q", preferred)
	}
	if s, ok := r.Get("memory"); ok {
		return s, nil
	}
	return nil, fmt.Errorf("no artifact sinks registered")
}
