package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"

	"github.com/path2target/transform-core/internal/core"
)

// BiolinkNS is the vocabulary namespace for classes and predicates.
const BiolinkNS = "https://w3id.org/biolink/vocab/"

// DefaultBaseIRI prefixes entity IRIs when the mapping declares none.
const DefaultBaseIRI = "http://example.org/"

// Options tunes an export.
type Options struct {
	// BaseIRI prefixes node IRIs in RDF and JSON-LD output.
	BaseIRI string
}

// Export serializes the graph in the requested format. Ordering is fixed:
// nodes sorted by id, edges in insertion order, property names sorted, so
// re-running the pipeline on unchanged input yields byte-identical output.
func Export(graph *core.Graph, format Format, opts Options) (*Artifact, error) {
	if opts.BaseIRI == "" {
		opts.BaseIRI = DefaultBaseIRI
	}
	switch format {
	case FormatRDF:
		data, err := encodeRDF(graph, opts.BaseIRI, formatTurtle)
		if err != nil {
			return nil, core.Errorf(core.CodeExport, "serialize turtle: %w", err)
		}
		return &Artifact{Format: format, Name: "export.ttl", Data: data}, nil

	case FormatJSONLD:
		data, err := encodeRDF(graph, opts.BaseIRI, formatJSONLD)
		if err != nil {
			return nil, core.Errorf(core.CodeExport, "serialize json-ld: %w", err)
		}
		return &Artifact{Format: format, Name: "export.jsonld", Data: data}, nil

	case FormatTSV:
		nodes, err := encodeNodesTSV(graph)
		if err != nil {
			return nil, core.Errorf(core.CodeExport, "serialize nodes tsv: %w", err)
		}
		edges, err := encodeEdgesTSV(graph)
		if err != nil {
			return nil, core.Errorf(core.CodeExport, "serialize edges tsv: %w", err)
		}
		return &Artifact{
			Format: format,
			Name:   "nodes.tsv",
			Data:   nodes,
			Aux:    map[string][]byte{"edges.tsv": edges},
		}, nil
	}
	return nil, core.Errorf(core.CodeExport, "unknown export format %q", format)
}

// =============================================================================
// TSV
// =============================================================================

// encodeNodesTSV writes the node table: id, category, then the sorted union
// of property names across all nodes.
func encodeNodesTSV(graph *core.Graph) ([]byte, error) {
	props := make(map[string]bool)
	nodes := graph.Nodes()
	for _, n := range nodes {
		for name := range n.Properties {
			if name != "id" {
				props[name] = true
			}
		}
	}
	propNames := make([]string, 0, len(props))
	for name := range props {
		propNames = append(propNames, name)
	}
	sort.Strings(propNames)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = '\t'

	header := append([]string{"id", "category"}, propNames...)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, n := range nodes {
		row := []string{n.ID, n.Type}
		for _, name := range propNames {
			if v, ok := n.Properties[name]; ok {
				row = append(row, fmt.Sprint(v))
			} else {
				row = append(row, "")
			}
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// encodeEdgesTSV writes the edge table in insertion order.
func encodeEdgesTSV(graph *core.Graph) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = '\t'

	if err := w.Write([]string{"subject", "predicate", "object"}); err != nil {
		return nil, err
	}
	for _, e := range graph.Edges() {
		if err := w.Write([]string{e.SubjectID, e.Predicate, e.ObjectID}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// sortedPropertyNames returns a node's property names minus id, sorted.
func sortedPropertyNames(n *core.GraphNode) []string {
	out := make([]string, 0, len(n.Properties))
	for name := range n.Properties {
		if name != "id" {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
