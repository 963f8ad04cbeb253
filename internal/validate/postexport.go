package validate

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	rdf "github.com/geoknoesis/rdf-go/rdf"

	"github.com/path2target/transform-core/internal/core"
)

const (
	rdfTypeIRI   = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
	rdfsLabelIRI = "http://www.w3.org/2000/01/rdf-schema#label"
)

// PostExport re-validates the serialized RDF artifact against the shape set
// using the codec's pull decoder. The serialization grammar itself is the
// codec's concern; this pass only evaluates the shapes over decoded quads.
func PostExport(runID string, data []byte, format rdf.Format, shapes *ShapeSet) *core.Report {
	report := core.NewReport("post-export", runID)

	dec, err := rdf.NewReader(bytes.NewReader(data), format)
	if err != nil {
		report.Add(core.Finding{
			Severity:  core.SeverityError,
			Scope:     core.ScopeGraph,
			TargetRef: "artifact",
			Message:   fmt.Sprintf("open decoder: %v", err),
			RuleID:    RuleSerializedShape,
		})
		return report
	}
	defer dec.Close()

	// subject -> type names and predicate local names seen
	types := make(map[string][]string)
	preds := make(map[string]map[string]bool)
	var subjects []string

	for {
		quad, err := dec.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			report.Add(core.Finding{
				Severity:  core.SeverityError,
				Scope:     core.ScopeGraph,
				TargetRef: "artifact",
				Message:   fmt.Sprintf("decode: %v", err),
				RuleID:    RuleSerializedShape,
			})
			return report
		}

		subject := fmt.Sprint(quad.S)
		predicate := fmt.Sprint(quad.P)
		if _, seen := preds[subject]; !seen {
			preds[subject] = make(map[string]bool)
			subjects = append(subjects, subject)
		}
		if predicate == rdfTypeIRI {
			types[subject] = append(types[subject], localName(fmt.Sprint(quad.O)))
			continue
		}
		preds[subject][localName(predicate)] = true
	}

	for _, subject := range subjects {
		typeNames := types[subject]
		if len(typeNames) == 0 {
			report.Add(core.Finding{
				Severity:  core.SeverityError,
				Scope:     core.ScopeNode,
				TargetRef: subject,
				Message:   "serialized subject carries no rdf:type",
				RuleID:    RuleSerializedType,
			})
			continue
		}
		for _, typeName := range typeNames {
			cls := shapes.Class(typeName)
			if cls == nil {
				continue // unknown classes were already flagged pre-export
			}
			for _, prop := range cls.Properties {
				// Node identity is the subject IRI itself in serialized form.
				if !prop.Required || prop.Name == "id" {
					continue
				}
				name := prop.Name
				if name == "name" {
					name = "label" // serialized as rdfs:label
				}
				if !preds[subject][name] {
					report.Add(core.Finding{
						Severity:  core.SeverityError,
						Scope:     core.ScopeNode,
						TargetRef: subject,
						Message:   fmt.Sprintf("serialized subject misses required property %q of class %s", prop.Name, typeName),
						RuleID:    RuleSerializedShape,
					})
				}
			}
		}
	}
	return report
}

// localName strips an IRI (possibly angle-bracketed) to its last path or
// fragment segment.
func localName(iri string) string {
	s := strings.Trim(iri, "<>")
	if i := strings.LastIndexAny(s, "/#"); i >= 0 {
		return s[i+1:]
	}
	return s
}
