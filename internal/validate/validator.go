package validate

import (
	"fmt"

	"github.com/path2target/transform-core/internal/core"
)

// Rule ids for findings, stable across runs for machine consumers.
const (
	RuleRequiredProperty = "shape.required-property"
	RuleUnknownClass     = "shape.unknown-class"
	RuleExtraProperty    = "shape.extra-property"
	RulePredicateBinding = "shape.predicate-binding"
	RuleIdentifierStatus = "identifier.status"
	RuleTypeConflict     = "node.type-conflict"
	RuleSerializedType   = "serialized.missing-type"
	RuleSerializedShape  = "serialized.missing-required"
)

// PreExport validates the intermediate graph against the shape set. A fresh
// report per pass; never merged with the post-export report.
func PreExport(graph *core.Graph, shapes *ShapeSet) *core.Report {
	report := core.NewReport("pre-export", graph.RunID)

	for _, node := range graph.Nodes() {
		cls := shapes.Class(node.Type)
		if cls == nil {
			report.Add(core.Finding{
				Severity:  core.SeverityWarning,
				Scope:     core.ScopeNode,
				TargetRef: node.ID,
				Message:   fmt.Sprintf("class %q is not in the shape set", node.Type),
				RuleID:    RuleUnknownClass,
			})
		} else {
			for _, prop := range cls.Properties {
				if !prop.Required {
					continue
				}
				if _, ok := node.Properties[prop.Name]; !ok {
					report.Add(core.Finding{
						Severity:  core.SeverityError,
						Scope:     core.ScopeNode,
						TargetRef: node.ID,
						Message:   fmt.Sprintf("missing required property %q for class %s", prop.Name, node.Type),
						RuleID:    RuleRequiredProperty,
					})
				}
			}
			for name := range node.Properties {
				if cls.Property(name) == nil {
					report.Add(core.Finding{
						Severity:  core.SeverityWarning,
						Scope:     core.ScopeNode,
						TargetRef: node.ID,
						Message:   fmt.Sprintf("unexpected property %q on class %s", name, node.Type),
						RuleID:    RuleExtraProperty,
					})
				}
			}
		}

		if node.Resolution != nil {
			switch node.Resolution.Status {
			case core.StatusUnresolved:
				report.Add(core.Finding{
					Severity:  core.SeverityWarning,
					Scope:     core.ScopeNode,
					TargetRef: node.ID,
					Message:   fmt.Sprintf("identifier %q did not resolve against %s", node.Resolution.RawValue, node.Resolution.Authority),
					RuleID:    RuleIdentifierStatus,
				})
			case core.StatusAmbiguous:
				report.Add(core.Finding{
					Severity:  core.SeverityWarning,
					Scope:     core.ScopeNode,
					TargetRef: node.ID,
					Message:   fmt.Sprintf("identifier %q resolved ambiguously against %s (%d alternates)", node.Resolution.RawValue, node.Resolution.Authority, len(node.Resolution.Alternates)),
					RuleID:    RuleIdentifierStatus,
				})
			}
		}

		if conflict, ok := node.Annotations["typeConflict"]; ok {
			report.Add(core.Finding{
				Severity:  core.SeverityWarning,
				Scope:     core.ScopeNode,
				TargetRef: node.ID,
				Message:   fmt.Sprintf("node mapped as both %s and %v", node.Type, conflict),
				RuleID:    RuleTypeConflict,
			})
		}
	}

	for _, edge := range graph.Edges() {
		subject := graph.Node(edge.SubjectID)
		object := graph.Node(edge.ObjectID)
		if subject == nil || object == nil {
			// Dangling edges are a build-time error; a validator sighting
			// means the graph was assembled outside the builder.
			report.Add(core.Finding{
				Severity:  core.SeverityError,
				Scope:     core.ScopeEdge,
				TargetRef: edge.Key(),
				Message:   "edge references a node missing from the snapshot",
				RuleID:    RulePredicateBinding,
			})
			continue
		}
		if !shapes.Permits(subject.Type, edge.Predicate, object.Type) {
			report.Add(core.Finding{
				Severity:  core.SeverityError,
				Scope:     core.ScopeEdge,
				TargetRef: edge.Key(),
				Message:   fmt.Sprintf("predicate %q is not permitted between %s and %s", edge.Predicate, subject.Type, object.Type),
				RuleID:    RulePredicateBinding,
			})
		}
	}

	return report
}
