package export

import (
	"bytes"
	"fmt"
	"net/url"

	rdf "github.com/geoknoesis/rdf-go/rdf"

	"github.com/path2target/transform-core/internal/core"
)

// The serialization grammar lives in the external codec; this file only maps
// the intermediate graph onto quads in the fixed deterministic order.

const (
	rdfTypeIRI   = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
	rdfsLabelIRI = "http://www.w3.org/2000/01/rdf-schema#label"
)

var (
	formatTurtle = rdf.FormatTurtle
	formatJSONLD = rdf.FormatJSONLD
)

func encodeRDF(graph *core.Graph, baseIRI string, format rdf.Format) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := rdf.NewWriter(&buf, format)
	if err != nil {
		return nil, err
	}

	emit := func(s, p string, o rdf.Term) error {
		return enc.Write(rdf.Statement{S: rdf.IRI{Value: s}, P: rdf.IRI{Value: p}, O: o})
	}

	for _, node := range graph.Nodes() {
		subject := nodeIRI(baseIRI, node.ID)
		if err := emit(subject, rdfTypeIRI, rdf.IRI{Value: BiolinkNS + node.Type}); err != nil {
			return nil, err
		}
		for _, name := range sortedPropertyNames(node) {
			value := fmt.Sprint(node.Properties[name])
			if value == "" {
				continue
			}
			predicate := BiolinkNS + name
			if name == "name" {
				predicate = rdfsLabelIRI
			}
			if err := emit(subject, predicate, rdf.Literal{Lexical: value}); err != nil {
				return nil, err
			}
		}
	}

	for _, edge := range graph.Edges() {
		err := emit(
			nodeIRI(baseIRI, edge.SubjectID),
			BiolinkNS+edge.Predicate,
			rdf.IRI{Value: nodeIRI(baseIRI, edge.ObjectID)},
		)
		if err != nil {
			return nil, err
		}
	}

	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// nodeIRI builds the entity IRI for a node id.
func nodeIRI(baseIRI, id string) string {
	return baseIRI + url.PathEscape(id)
}
